package props

import (
	"fmt"
	"reflect"
)

// orderedMap accumulates entries in contribution order: a key written twice
// keeps the position of its first insertion but takes the last-written
// value.
type orderedMap[K comparable, V any] struct {
	order   []K
	entries map[K]V
}

func newOrderedMap[K comparable, V any]() *orderedMap[K, V] {
	return &orderedMap[K, V]{entries: make(map[K]V)}
}

func (m *orderedMap[K, V]) put(k K, v V) {
	if _, ok := m.entries[k]; !ok {
		m.order = append(m.order, k)
	}
	m.entries[k] = v
}

func (m *orderedMap[K, V]) toMap() map[K]V {
	out := make(map[K]V, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

func (m *orderedMap[K, V]) keys() []K {
	out := make([]K, len(m.order))
	copy(out, m.order)
	return out
}

// orderedKeys accumulates keys with first-occurrence-wins deduplication.
type orderedKeys[K comparable] struct {
	seen map[K]struct{}
	keys []K
}

func (s *orderedKeys[K]) add(k K) {
	if s.seen == nil {
		s.seen = make(map[K]struct{})
	}
	if _, ok := s.seen[k]; ok {
		return
	}
	s.seen[k] = struct{}{}
	s.keys = append(s.keys, k)
}

// mapCollector is one contribution to a map's entries: a literal entry, an
// entry whose value comes from a provider, a literal map, a provider of a
// map, or the left-to-right combination of two collectors.
type mapCollector[K comparable, V any] interface {
	calculatePresence(e *EvalCtx, c valueConsumer) (bool, error)

	collectEntries(e *EvalCtx, c valueConsumer, dest *orderedMap[K, V], fx *SideEffectBuilder[map[K]V]) (Value[struct{}], error)

	// collectKeys accumulates the contribution's keys without resolving
	// per-entry value providers.
	collectKeys(e *EvalCtx, c valueConsumer, dest *orderedKeys[K]) (Value[struct{}], error)

	calculateExecutionTimeValues(e *EvalCtx, visit func(ExecutionTimeValue[map[K]V])) error

	producer(e *EvalCtx) (ValueProducer, error)
}

type singleEntry[K comparable, V any] struct {
	k K
	v V
}

func (s singleEntry[K, V]) calculatePresence(*EvalCtx, valueConsumer) (bool, error) {
	return true, nil
}

func (s singleEntry[K, V]) collectEntries(_ *EvalCtx, _ valueConsumer, dest *orderedMap[K, V], _ *SideEffectBuilder[map[K]V]) (Value[struct{}], error) {
	dest.put(s.k, s.v)
	return ValueOf(struct{}{}), nil
}

func (s singleEntry[K, V]) collectKeys(_ *EvalCtx, _ valueConsumer, dest *orderedKeys[K]) (Value[struct{}], error) {
	dest.add(s.k)
	return ValueOf(struct{}{}), nil
}

func (s singleEntry[K, V]) calculateExecutionTimeValues(_ *EvalCtx, visit func(ExecutionTimeValue[map[K]V])) error {
	visit(FixedExecutionTimeValue(map[K]V{s.k: s.v}))
	return nil
}

func (s singleEntry[K, V]) producer(*EvalCtx) (ValueProducer, error) {
	return NoValueProducer(), nil
}

type entryWithProvider[K comparable, V any] struct {
	k K
	p Provider[V]
	// mapP lifts the value provider to map shape for snapshotting.
	mapP Provider[map[K]V]
}

func newEntryWithProvider[K comparable, V any](k K, p Provider[V]) entryWithProvider[K, V] {
	return entryWithProvider[K, V]{
		k:    k,
		p:    p,
		mapP: Map(p, func(v V) map[K]V { return map[K]V{k: v} }),
	}
}

func (s entryWithProvider[K, V]) calculatePresence(e *EvalCtx, c valueConsumer) (bool, error) {
	return s.p.calculatePresence(e, c)
}

func (s entryWithProvider[K, V]) collectEntries(e *EvalCtx, c valueConsumer, dest *orderedMap[K, V], fx *SideEffectBuilder[map[K]V]) (Value[struct{}], error) {
	v, err := s.p.calculateValue(e, c)
	if err != nil {
		return Value[struct{}]{}, err
	}
	if v.IsMissing() {
		return MissingAs[struct{}](v), nil
	}
	dest.put(s.k, v.GetWithoutSideEffect())
	fx.Add(FixedFrom[map[K]V](v))
	return ValueOf(struct{}{}), nil
}

// collectKeys adds the key without querying the value provider, so keySet
// reads stay cheap even when entry values are expensive.
func (s entryWithProvider[K, V]) collectKeys(_ *EvalCtx, _ valueConsumer, dest *orderedKeys[K]) (Value[struct{}], error) {
	dest.add(s.k)
	return ValueOf(struct{}{}), nil
}

func (s entryWithProvider[K, V]) calculateExecutionTimeValues(e *EvalCtx, visit func(ExecutionTimeValue[map[K]V])) error {
	etv, err := s.mapP.calculateExecutionTimeValue(e)
	if err != nil {
		return err
	}
	visit(etv)
	return nil
}

func (s entryWithProvider[K, V]) producer(e *EvalCtx) (ValueProducer, error) {
	return s.p.calculateProducer(e)
}

type entriesFromMap[K comparable, V any] struct {
	m map[K]V
}

func (s entriesFromMap[K, V]) calculatePresence(*EvalCtx, valueConsumer) (bool, error) {
	return true, nil
}

func (s entriesFromMap[K, V]) collectEntries(_ *EvalCtx, _ valueConsumer, dest *orderedMap[K, V], _ *SideEffectBuilder[map[K]V]) (Value[struct{}], error) {
	for k, v := range s.m {
		dest.put(k, v)
	}
	return ValueOf(struct{}{}), nil
}

func (s entriesFromMap[K, V]) collectKeys(_ *EvalCtx, _ valueConsumer, dest *orderedKeys[K]) (Value[struct{}], error) {
	for k := range s.m {
		dest.add(k)
	}
	return ValueOf(struct{}{}), nil
}

func (s entriesFromMap[K, V]) calculateExecutionTimeValues(_ *EvalCtx, visit func(ExecutionTimeValue[map[K]V])) error {
	visit(FixedExecutionTimeValue(s.m))
	return nil
}

func (s entriesFromMap[K, V]) producer(*EvalCtx) (ValueProducer, error) {
	return NoValueProducer(), nil
}

type entriesFromProvider[K comparable, V any] struct {
	p Provider[map[K]V]
}

func (s entriesFromProvider[K, V]) calculatePresence(e *EvalCtx, c valueConsumer) (bool, error) {
	return s.p.calculatePresence(e, c)
}

func (s entriesFromProvider[K, V]) collectEntries(e *EvalCtx, c valueConsumer, dest *orderedMap[K, V], fx *SideEffectBuilder[map[K]V]) (Value[struct{}], error) {
	v, err := s.p.calculateValue(e, c)
	if err != nil {
		return Value[struct{}]{}, err
	}
	if v.IsMissing() {
		return MissingAs[struct{}](v), nil
	}
	for k, value := range v.GetWithoutSideEffect() {
		dest.put(k, value)
	}
	fx.Add(FixedFrom[map[K]V](v))
	return ValueOf(struct{}{}), nil
}

func (s entriesFromProvider[K, V]) collectKeys(e *EvalCtx, c valueConsumer, dest *orderedKeys[K]) (Value[struct{}], error) {
	v, err := s.p.calculateValue(e, c)
	if err != nil {
		return Value[struct{}]{}, err
	}
	if v.IsMissing() {
		return MissingAs[struct{}](v), nil
	}
	for k := range v.GetWithoutSideEffect() {
		dest.add(k)
	}
	return ValueOf(struct{}{}), nil
}

func (s entriesFromProvider[K, V]) calculateExecutionTimeValues(e *EvalCtx, visit func(ExecutionTimeValue[map[K]V])) error {
	etv, err := s.p.calculateExecutionTimeValue(e)
	if err != nil {
		return err
	}
	visit(etv)
	return nil
}

func (s entriesFromProvider[K, V]) producer(e *EvalCtx) (ValueProducer, error) {
	return s.p.calculateProducer(e)
}

// plusMapCollector combines two collectors left to right. Presence is the
// AND of both sides, even when a side would contribute zero entries.
type plusMapCollector[K comparable, V any] struct {
	left  mapCollector[K, V]
	right mapCollector[K, V]
}

func (s plusMapCollector[K, V]) calculatePresence(e *EvalCtx, c valueConsumer) (bool, error) {
	present, err := s.left.calculatePresence(e, c)
	if err != nil || !present {
		return false, err
	}
	return s.right.calculatePresence(e, c)
}

func (s plusMapCollector[K, V]) collectEntries(e *EvalCtx, c valueConsumer, dest *orderedMap[K, V], fx *SideEffectBuilder[map[K]V]) (Value[struct{}], error) {
	res, err := s.left.collectEntries(e, c, dest, fx)
	if err != nil || res.IsMissing() {
		return res, err
	}
	return s.right.collectEntries(e, c, dest, fx)
}

func (s plusMapCollector[K, V]) collectKeys(e *EvalCtx, c valueConsumer, dest *orderedKeys[K]) (Value[struct{}], error) {
	res, err := s.left.collectKeys(e, c, dest)
	if err != nil || res.IsMissing() {
		return res, err
	}
	return s.right.collectKeys(e, c, dest)
}

func (s plusMapCollector[K, V]) calculateExecutionTimeValues(e *EvalCtx, visit func(ExecutionTimeValue[map[K]V])) error {
	if err := s.left.calculateExecutionTimeValues(e, visit); err != nil {
		return err
	}
	return s.right.calculateExecutionTimeValues(e, visit)
}

func (s plusMapCollector[K, V]) producer(e *EvalCtx) (ValueProducer, error) {
	left, err := s.left.producer(e)
	if err != nil {
		return ValueProducer{}, err
	}
	right, err := s.right.producer(e)
	if err != nil {
		return ValueProducer{}, err
	}
	return left.Plus(right), nil
}

// mapSupplier is the state of a map property's value slot. Same monoid as
// the element-collection supplier, extended with a keys-only read.
type mapSupplier[K comparable, V any] interface {
	isNoValue() bool
	calculateValue(e *EvalCtx, c valueConsumer) (Value[map[K]V], error)
	calculatePresence(e *EvalCtx, c valueConsumer) (bool, error)
	calculateKeys(e *EvalCtx, c valueConsumer) (Value[[]K], error)
	calculateOwnExecutionTimeValue(e *EvalCtx) (ExecutionTimeValue[map[K]V], error)
	producer(e *EvalCtx) (ValueProducer, error)
	plus(c mapCollector[K, V]) mapSupplier[K, V]
}

type noValueMapSupplier[K comparable, V any] struct {
	missing Value[map[K]V]
}

func (s noValueMapSupplier[K, V]) isNoValue() bool { return true }

func (s noValueMapSupplier[K, V]) calculateValue(*EvalCtx, valueConsumer) (Value[map[K]V], error) {
	return MissingValueWithPath[map[K]V](s.missing.PathToOrigin()...), nil
}

func (s noValueMapSupplier[K, V]) calculatePresence(*EvalCtx, valueConsumer) (bool, error) {
	return false, nil
}

func (s noValueMapSupplier[K, V]) calculateKeys(*EvalCtx, valueConsumer) (Value[[]K], error) {
	return MissingValueWithPath[[]K](s.missing.PathToOrigin()...), nil
}

func (s noValueMapSupplier[K, V]) calculateOwnExecutionTimeValue(*EvalCtx) (ExecutionTimeValue[map[K]V], error) {
	return MissingExecutionTimeValue[map[K]V](), nil
}

func (s noValueMapSupplier[K, V]) producer(*EvalCtx) (ValueProducer, error) {
	return UnknownValueProducer(), nil
}

func (s noValueMapSupplier[K, V]) plus(mapCollector[K, V]) mapSupplier[K, V] {
	return s
}

type emptyMapSupplier[K comparable, V any] struct{}

func (s emptyMapSupplier[K, V]) isNoValue() bool { return false }

func (s emptyMapSupplier[K, V]) calculateValue(*EvalCtx, valueConsumer) (Value[map[K]V], error) {
	return ValueOf(map[K]V{}), nil
}

func (s emptyMapSupplier[K, V]) calculatePresence(*EvalCtx, valueConsumer) (bool, error) {
	return true, nil
}

func (s emptyMapSupplier[K, V]) calculateKeys(*EvalCtx, valueConsumer) (Value[[]K], error) {
	return ValueOf([]K{}), nil
}

func (s emptyMapSupplier[K, V]) calculateOwnExecutionTimeValue(*EvalCtx) (ExecutionTimeValue[map[K]V], error) {
	return FixedExecutionTimeValue(map[K]V{}), nil
}

func (s emptyMapSupplier[K, V]) producer(*EvalCtx) (ValueProducer, error) {
	return NoValueProducer(), nil
}

func (s emptyMapSupplier[K, V]) plus(c mapCollector[K, V]) mapSupplier[K, V] {
	return collectingMapSupplier[K, V]{c: c}
}

type fixedMapSupplier[K comparable, V any] struct {
	entries map[K]V
	order   []K
	effect  SideEffect[map[K]V]
	name    string
}

func (s fixedMapSupplier[K, V]) isNoValue() bool { return false }

func (s fixedMapSupplier[K, V]) calculateValue(*EvalCtx, valueConsumer) (Value[map[K]V], error) {
	return ValueOf(s.entries).WithSideEffect(s.effect), nil
}

func (s fixedMapSupplier[K, V]) calculatePresence(*EvalCtx, valueConsumer) (bool, error) {
	return true, nil
}

func (s fixedMapSupplier[K, V]) calculateKeys(*EvalCtx, valueConsumer) (Value[[]K], error) {
	return ValueOf(s.order), nil
}

func (s fixedMapSupplier[K, V]) calculateOwnExecutionTimeValue(*EvalCtx) (ExecutionTimeValue[map[K]V], error) {
	return FixedExecutionTimeValue(s.entries).WithSideEffect(s.effect), nil
}

func (s fixedMapSupplier[K, V]) producer(*EvalCtx) (ValueProducer, error) {
	return NoValueProducer(), nil
}

func (s fixedMapSupplier[K, V]) plus(mapCollector[K, V]) mapSupplier[K, V] {
	panic(&UnsupportedOperationError{Op: "add entries", DisplayName: s.name})
}

type collectingMapSupplier[K comparable, V any] struct {
	c mapCollector[K, V]
}

func (s collectingMapSupplier[K, V]) isNoValue() bool { return false }

func (s collectingMapSupplier[K, V]) calculateValue(e *EvalCtx, c valueConsumer) (Value[map[K]V], error) {
	dest := newOrderedMap[K, V]()
	var fx SideEffectBuilder[map[K]V]
	res, err := s.c.collectEntries(e, c, dest, &fx)
	if err != nil {
		return Value[map[K]V]{}, err
	}
	if res.IsMissing() {
		return MissingAs[map[K]V](res), nil
	}
	return ValueOf(dest.toMap()).WithSideEffect(fx.Build()), nil
}

func (s collectingMapSupplier[K, V]) calculatePresence(e *EvalCtx, c valueConsumer) (bool, error) {
	return s.c.calculatePresence(e, c)
}

func (s collectingMapSupplier[K, V]) calculateKeys(e *EvalCtx, c valueConsumer) (Value[[]K], error) {
	var dest orderedKeys[K]
	res, err := s.c.collectKeys(e, c, &dest)
	if err != nil {
		return Value[[]K]{}, err
	}
	if res.IsMissing() {
		return MissingAs[[]K](res), nil
	}
	return ValueOf(dest.keysOrEmpty()), nil
}

func (s collectingMapSupplier[K, V]) calculateOwnExecutionTimeValue(e *EvalCtx) (ExecutionTimeValue[map[K]V], error) {
	var parts []ExecutionTimeValue[map[K]V]
	if err := s.c.calculateExecutionTimeValues(e, func(v ExecutionTimeValue[map[K]V]) {
		parts = append(parts, v)
	}); err != nil {
		return ExecutionTimeValue[map[K]V]{}, err
	}

	allFixed := true
	changingContent := false
	for _, part := range parts {
		if part.IsMissing() {
			return MissingExecutionTimeValue[map[K]V](), nil
		}
		if part.IsChanging() {
			allFixed = false
		} else if part.HasChangingContent() {
			changingContent = true
		}
	}

	if allFixed {
		dest := newOrderedMap[K, V]()
		var fx SideEffectBuilder[map[K]V]
		for _, part := range parts {
			payload := part.FixedValue()
			for k, v := range payload {
				dest.put(k, v)
			}
			if effect := part.SideEffect(); effect != nil {
				fx.Add(func(map[K]V) { effect(payload) })
			}
		}
		out := FixedExecutionTimeValue(dest.toMap()).WithSideEffect(fx.Build())
		if changingContent {
			out = out.WithChangingContent()
		}
		return out, nil
	}
	return ChangingExecutionTimeValue[map[K]V](s.asProvider()), nil
}

func (s collectingMapSupplier[K, V]) asProvider() Provider[map[K]V] {
	p := &providerFn[map[K]V]{typ: typeOf[map[K]V]()}
	p.calc = s.calculateValue
	p.pres = s.calculatePresence
	p.etv = func(*EvalCtx) (ExecutionTimeValue[map[K]V], error) {
		return ChangingExecutionTimeValue[map[K]V](p), nil
	}
	p.prod = s.producer
	return p
}

func (s collectingMapSupplier[K, V]) producer(e *EvalCtx) (ValueProducer, error) {
	return s.c.producer(e)
}

func (s collectingMapSupplier[K, V]) plus(c mapCollector[K, V]) mapSupplier[K, V] {
	return collectingMapSupplier[K, V]{c: plusMapCollector[K, V]{left: s.c, right: c}}
}

func (s *orderedKeys[K]) keysOrEmpty() []K {
	if s.keys == nil {
		return []K{}
	}
	return s.keys
}

// MapProperty is a property holding key/value entries. Contributions merge
// left to right: a key written twice keeps the position of its first
// insertion but takes the last-written value. A fresh map property is
// present and empty.
//
// Entry order within a single map-literal contribution follows Go's map
// iteration and is unspecified; order across contributions is the
// contribution order.
type MapProperty[K comparable, V any] struct {
	owner      *owner
	typ        reflect.Type
	value      mapSupplier[K, V]
	convention mapSupplier[K, V]
	defaultSup mapSupplier[K, V]
	explicit   bool
	finalized  bool
}

// NewMapProperty creates a map property that is present and empty.
func NewMapProperty[K comparable, V any]() *MapProperty[K, V] {
	empty := emptyMapSupplier[K, V]{}
	return &MapProperty[K, V]{
		owner:      &owner{displayName: "this map property"},
		typ:        typeOf[map[K]V](),
		value:      empty,
		convention: noValueMapSupplier[K, V]{},
		defaultSup: empty,
	}
}

// Named attaches a display name used in diagnostics.
func (p *MapProperty[K, V]) Named(name string) *MapProperty[K, V] {
	p.owner.displayName = fmt.Sprintf("map property '%s'", name)
	return p
}

func (p *MapProperty[K, V]) displayName() string        { return p.owner.displayName }
func (p *MapProperty[K, V]) declaredType() reflect.Type { return p.typ }

func (p *MapProperty[K, V]) calculateValue(e *EvalCtx, c valueConsumer) (Value[map[K]V], error) {
	release, err := e.open(p.owner)
	if err != nil {
		return Value[map[K]V]{}, err
	}
	defer release()
	return p.value.calculateValue(e, c)
}

func (p *MapProperty[K, V]) calculatePresence(e *EvalCtx, c valueConsumer) (bool, error) {
	release, err := e.open(p.owner)
	if err != nil {
		return false, err
	}
	defer release()
	return p.value.calculatePresence(e, c)
}

func (p *MapProperty[K, V]) calculateKeys(e *EvalCtx, c valueConsumer) (Value[[]K], error) {
	release, err := e.open(p.owner)
	if err != nil {
		return Value[[]K]{}, err
	}
	defer release()
	return p.value.calculateKeys(e, c)
}

func (p *MapProperty[K, V]) calculateExecutionTimeValue(e *EvalCtx) (ExecutionTimeValue[map[K]V], error) {
	release, err := e.open(p.owner)
	if err != nil {
		return ExecutionTimeValue[map[K]V]{}, err
	}
	defer release()
	return p.value.calculateOwnExecutionTimeValue(e)
}

func (p *MapProperty[K, V]) calculateProducer(e *EvalCtx) (ValueProducer, error) {
	release, err := e.open(p.owner)
	if err != nil {
		return ValueProducer{}, err
	}
	defer release()
	return p.value.producer(e)
}

func (p *MapProperty[K, V]) Get() (map[K]V, error)        { return getOf[map[K]V](p) }
func (p *MapProperty[K, V]) GetOrElse(fb map[K]V) map[K]V { return getOrElseOf[map[K]V](p, fb) }
func (p *MapProperty[K, V]) GetOrZero() map[K]V           { return getOrElseOf[map[K]V](p, nil) }
func (p *MapProperty[K, V]) IsPresent() (bool, error)     { return isPresentOf[map[K]V](p) }

func (p *MapProperty[K, V]) OrElse(other Provider[map[K]V]) Provider[map[K]V] {
	return orElseOf[map[K]V](p, other)
}

func (p *MapProperty[K, V]) OrElseValue(v map[K]V) Provider[map[K]V] {
	return orElseOf[map[K]V](p, Of(v))
}

func (p *MapProperty[K, V]) CalculateExecutionTimeValue() (ExecutionTimeValue[map[K]V], error) {
	return p.calculateExecutionTimeValue(newEvalCtx())
}

func (p *MapProperty[K, V]) GetProducer() (ValueProducer, error) {
	return p.calculateProducer(newEvalCtx())
}

func (p *MapProperty[K, V]) assertCanMutate(op string) {
	if p.finalized {
		panic(&UnsupportedOperationError{Op: op, DisplayName: p.owner.displayName})
	}
}

func (p *MapProperty[K, V]) setSupplier(s mapSupplier[K, V]) {
	p.value = s
	p.explicit = true
}

func (p *MapProperty[K, V]) effectiveBase() mapSupplier[K, V] {
	if p.explicit {
		return p.value
	}
	return p.defaultSup
}

func (p *MapProperty[K, V]) addCollector(c mapCollector[K, V]) {
	p.setSupplier(p.effectiveBase().plus(c))
}

func (p *MapProperty[K, V]) checkKey(k K) {
	if isNilAny(k) {
		panic(invalidArgumentf("cannot add an entry with a null key to %s", p.owner.displayName))
	}
}

func (p *MapProperty[K, V]) checkValue(v V) {
	if isNilAny(v) {
		panic(invalidArgumentf("cannot add an entry with a null value to %s", p.owner.displayName))
	}
}

// Put adds or overwrites one entry.
func (p *MapProperty[K, V]) Put(k K, v V) {
	p.assertCanMutate("put entry")
	p.checkKey(k)
	p.checkValue(v)
	p.addCollector(singleEntry[K, V]{k: k, v: v})
}

// PutProvider adds an entry whose value is produced by a provider,
// re-evaluated on every read.
func (p *MapProperty[K, V]) PutProvider(k K, provider Provider[V]) {
	p.assertCanMutate("put entry")
	p.checkKey(k)
	if provider == nil {
		panic(invalidArgumentf("cannot add an entry to %s using a null provider", p.owner.displayName))
	}
	p.addCollector(newEntryWithProvider(k, provider))
}

// PutAll adds or overwrites all entries of the given map.
func (p *MapProperty[K, V]) PutAll(m map[K]V) {
	p.assertCanMutate("put entries")
	for k, v := range m {
		p.checkKey(k)
		p.checkValue(v)
	}
	p.addCollector(entriesFromMap[K, V]{m: m})
}

// PutAllProvider adds or overwrites all entries produced by a map provider.
func (p *MapProperty[K, V]) PutAllProvider(provider Provider[map[K]V]) {
	p.assertCanMutate("put entries")
	if provider == nil {
		panic(invalidArgumentf("cannot add entries to %s using a null provider", p.owner.displayName))
	}
	p.addCollector(entriesFromProvider[K, V]{p: provider})
}

// Set replaces the accumulation with the given entries. A nil map unsets
// the property and degrades its default to missing.
func (p *MapProperty[K, V]) Set(m map[K]V) {
	p.assertCanMutate("set value")
	if m == nil {
		p.unsetAndDegrade()
		return
	}
	p.setSupplier(emptyMapSupplier[K, V]{}.plus(entriesFromMap[K, V]{m: m}))
}

// SetProvider replaces the accumulation with the entries of a provider.
func (p *MapProperty[K, V]) SetProvider(provider Provider[map[K]V]) {
	p.assertCanMutate("set value")
	if provider == nil {
		panic(invalidArgumentf("cannot set the value of %s using a null provider", p.owner.displayName))
	}
	p.setSupplier(emptyMapSupplier[K, V]{}.plus(entriesFromProvider[K, V]{p: provider}))
}

// Value replaces the accumulation with the given entries and returns the
// property for chaining.
func (p *MapProperty[K, V]) Value(m map[K]V) *MapProperty[K, V] {
	p.Set(m)
	return p
}

// ValueProvider replaces the accumulation with a provider and returns the
// property.
func (p *MapProperty[K, V]) ValueProvider(provider Provider[map[K]V]) *MapProperty[K, V] {
	p.SetProvider(provider)
	return p
}

// SetFromAny assigns an untyped value: nil unsets, a map[K]V or
// Provider[map[K]V] is assigned directly.
func (p *MapProperty[K, V]) SetFromAny(v any) {
	p.assertCanMutate("set value")
	switch value := v.(type) {
	case nil:
		p.unsetAndDegrade()
	case Provider[map[K]V]:
		p.SetProvider(value)
	case map[K]V:
		p.Set(value)
	default:
		if declared, ok := declaredTypeOfAnyProvider(v); ok {
			panic(invalidArgumentf("cannot set the value of a property of type %s using a provider of type %s", p.typ, declared))
		}
		panic(invalidArgumentf("cannot set the value of a property of type %s using an instance of type %T", p.typ, v))
	}
}

// Empty replaces the accumulation with a present, empty map.
func (p *MapProperty[K, V]) Empty() *MapProperty[K, V] {
	p.assertCanMutate("set value")
	p.setSupplier(emptyMapSupplier[K, V]{})
	return p
}

// Convention replaces the convention entries; nil discards the convention.
func (p *MapProperty[K, V]) Convention(m map[K]V) *MapProperty[K, V] {
	p.assertCanMutate("set convention")
	if m == nil {
		p.convention = noValueMapSupplier[K, V]{}
	} else {
		p.convention = emptyMapSupplier[K, V]{}.plus(entriesFromMap[K, V]{m: m})
	}
	p.applyConvention()
	return p
}

// ConventionProvider replaces the convention with a provider.
func (p *MapProperty[K, V]) ConventionProvider(provider Provider[map[K]V]) *MapProperty[K, V] {
	p.assertCanMutate("set convention")
	if provider == nil {
		panic(invalidArgumentf("cannot set the convention of %s using a null provider", p.owner.displayName))
	}
	p.convention = emptyMapSupplier[K, V]{}.plus(entriesFromProvider[K, V]{p: provider})
	p.applyConvention()
	return p
}

// UnsetConvention discards the convention.
func (p *MapProperty[K, V]) UnsetConvention() *MapProperty[K, V] {
	p.assertCanMutate("unset convention")
	p.convention = noValueMapSupplier[K, V]{}
	p.applyConvention()
	return p
}

func (p *MapProperty[K, V]) applyConvention() {
	if !p.explicit {
		if p.convention.isNoValue() {
			p.value = p.defaultSup
		} else {
			p.value = p.convention
		}
	}
}

// Unset discards the explicit value, re-enabling convention fallback. The
// default degrades to missing, so without a convention the property reads
// as missing rather than empty.
func (p *MapProperty[K, V]) Unset() *MapProperty[K, V] {
	p.assertCanMutate("unset value")
	p.unsetAndDegrade()
	return p
}

func (p *MapProperty[K, V]) unsetAndDegrade() {
	p.defaultSup = noValueMapSupplier[K, V]{}
	p.explicit = false
	p.applyConvention()
}

func (p *MapProperty[K, V]) setToConventionIfUnset() {
	if p.explicit {
		return
	}
	if p.convention.isNoValue() {
		p.value = p.defaultSup
	} else {
		p.value = p.convention
	}
	p.explicit = true
}

// FinalizeValue computes the entries once and locks the property.
func (p *MapProperty[K, V]) FinalizeValue() error {
	if p.finalized {
		return nil
	}
	e := newEvalCtx()
	v, err := p.calculateValue(e, forValue)
	if err != nil {
		return err
	}
	if v.IsMissing() {
		if len(v.PathToOrigin()) == 0 {
			p.value = noValueMapSupplier[K, V]{}
		} else {
			p.value = noValueMapSupplier[K, V]{missing: v}
		}
	} else {
		keys, err := p.calculateKeys(newEvalCtx(), forValue)
		if err != nil {
			return err
		}
		p.value = fixedMapSupplier[K, V]{
			entries: v.GetWithoutSideEffect(),
			order:   keys.GetWithoutSideEffect(),
			effect:  v.SideEffect(),
			name:    p.owner.displayName,
		}
	}
	p.explicit = true
	p.finalized = true
	return nil
}

// Update captures the current accumulation as a detached provider, applies
// transform, and assigns the result. A nil result unsets the property.
func (p *MapProperty[K, V]) Update(transform func(current Provider[map[K]V]) Provider[map[K]V]) {
	p.assertCanMutate("update value")
	if transform == nil {
		panic(invalidArgumentf("cannot update %s using a null transform", p.owner.displayName))
	}
	next := transform(p.shallowCopy())
	if next == nil {
		p.unsetAndDegrade()
		return
	}
	p.SetProvider(next)
}

func (p *MapProperty[K, V]) shallowCopy() Provider[map[K]V] {
	sup := p.value
	detached := &owner{displayName: p.owner.displayName + " (current value)"}
	sc := &providerFn[map[K]V]{typ: p.typ, name: detached.displayName}
	sc.calc = func(e *EvalCtx, c valueConsumer) (Value[map[K]V], error) {
		release, err := e.open(detached)
		if err != nil {
			return Value[map[K]V]{}, err
		}
		defer release()
		return sup.calculateValue(e, c)
	}
	sc.pres = func(e *EvalCtx, c valueConsumer) (bool, error) {
		release, err := e.open(detached)
		if err != nil {
			return false, err
		}
		defer release()
		return sup.calculatePresence(e, c)
	}
	sc.etv = func(e *EvalCtx) (ExecutionTimeValue[map[K]V], error) {
		release, err := e.open(detached)
		if err != nil {
			return ExecutionTimeValue[map[K]V]{}, err
		}
		defer release()
		return sup.calculateOwnExecutionTimeValue(e)
	}
	sc.prod = func(e *EvalCtx) (ValueProducer, error) {
		release, err := e.open(detached)
		if err != nil {
			return ValueProducer{}, err
		}
		defer release()
		return sup.producer(e)
	}
	return sc
}

// FromState rehydrates the property from a collapsed snapshot.
func (p *MapProperty[K, V]) FromState(state ExecutionTimeValue[map[K]V]) {
	switch {
	case state.IsMissing():
		p.value = noValueMapSupplier[K, V]{}
	case state.HasFixedValue():
		entries := state.FixedValue()
		keys := make([]K, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		p.value = fixedMapSupplier[K, V]{
			entries: entries,
			order:   keys,
			effect:  state.SideEffect(),
			name:    p.owner.displayName,
		}
	default:
		p.value = emptyMapSupplier[K, V]{}.plus(entriesFromProvider[K, V]{p: state.ChangingValue()})
	}
	p.explicit = true
}

// Getting returns a provider for one entry's value. It is missing when the
// whole map is missing or the resolved map does not contain the key.
func (p *MapProperty[K, V]) Getting(key K) Provider[V] {
	g := &providerFn[V]{typ: typeOf[V](), name: fmt.Sprintf("entry '%v' of %s", key, p.owner.displayName)}
	g.calc = func(e *EvalCtx, c valueConsumer) (Value[V], error) {
		v, err := p.calculateValue(e, c)
		if err != nil {
			return Value[V]{}, err
		}
		if v.IsMissing() {
			return MissingAs[V](v), nil
		}
		value, ok := v.GetWithoutSideEffect()[key]
		if !ok {
			return MissingValue[V](), nil
		}
		return ValueOf(value).WithSideEffect(FixedFrom[V](v)), nil
	}
	g.prod = p.calculateProducer
	return g
}

// KeySet returns a provider for the accumulated keys, in contribution
// order. It resolves per-entry value providers neither for its value nor
// for its presence check, so keys stay cheap to read.
func (p *MapProperty[K, V]) KeySet() Provider[[]K] {
	k := &providerFn[[]K]{typ: typeOf[[]K](), name: fmt.Sprintf("key set of %s", p.owner.displayName)}
	k.calc = func(e *EvalCtx, c valueConsumer) (Value[[]K], error) {
		return p.calculateKeys(e, c)
	}
	k.pres = func(e *EvalCtx, c valueConsumer) (bool, error) {
		v, err := p.calculateKeys(e, c)
		if err != nil {
			return false, err
		}
		return v.IsPresent(), nil
	}
	k.prod = p.calculateProducer
	return k
}

// MapMutator is the put-only surface handed to WithActualValue callbacks.
type MapMutator[K comparable, V any] struct {
	p *MapProperty[K, V]
}

func (m *MapMutator[K, V]) Put(k K, v V)                          { m.p.Put(k, v) }
func (m *MapMutator[K, V]) PutProvider(k K, provider Provider[V]) { m.p.PutProvider(k, provider) }
func (m *MapMutator[K, V]) PutAll(entries map[K]V)                { m.p.PutAll(entries) }
func (m *MapMutator[K, V]) PutAllProvider(provider Provider[map[K]V]) {
	m.p.PutAllProvider(provider)
}

// WithActualValue promotes the convention into the explicit slot when no
// explicit value is in force, then runs fn with a scoped mutator.
func (p *MapProperty[K, V]) WithActualValue(fn func(m *MapMutator[K, V])) {
	p.assertCanMutate("mutate value")
	if fn == nil {
		panic(invalidArgumentf("cannot mutate %s using a null action", p.owner.displayName))
	}
	p.setToConventionIfUnset()
	fn(&MapMutator[K, V]{p: p})
}
