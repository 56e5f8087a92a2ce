package props

import (
	"fmt"
	"reflect"
)

// collectionBuilder accumulates elements in contribution order. The list
// builder concatenates; the set builder keeps the first occurrence and
// drops later duplicates.
type collectionBuilder[T any] interface {
	add(v T)
	values() []T
}

type listBuilder[T any] struct {
	elements []T
}

func (b *listBuilder[T]) add(v T)     { b.elements = append(b.elements, v) }
func (b *listBuilder[T]) values() []T { return b.elements }

// collector is one contribution to a collection's value: a literal element,
// a slice of literals, a provider of one element, a provider of many, or
// the left-to-right combination of two collectors.
type collector[T any] interface {
	calculatePresence(e *EvalCtx, c valueConsumer) (bool, error)

	// collectInto realizes the contribution into the builder. A missing
	// result carries the diagnostic path of the contributor that had no
	// value; effects of realized contributors are staged on fx, bound to
	// their own payloads, and fire only when the merged value is extracted.
	collectInto(e *EvalCtx, c valueConsumer, b collectionBuilder[T], fx *SideEffectBuilder[[]T]) (Value[struct{}], error)

	// calculateExecutionTimeValues visits the snapshot of each leaf
	// contribution, left to right.
	calculateExecutionTimeValues(e *EvalCtx, visit func(ExecutionTimeValue[[]T])) error

	producer(e *EvalCtx) (ValueProducer, error)
}

type singleElement[T any] struct {
	v T
}

func (s singleElement[T]) calculatePresence(*EvalCtx, valueConsumer) (bool, error) {
	return true, nil
}

func (s singleElement[T]) collectInto(_ *EvalCtx, _ valueConsumer, b collectionBuilder[T], _ *SideEffectBuilder[[]T]) (Value[struct{}], error) {
	b.add(s.v)
	return ValueOf(struct{}{}), nil
}

func (s singleElement[T]) calculateExecutionTimeValues(_ *EvalCtx, visit func(ExecutionTimeValue[[]T])) error {
	visit(FixedExecutionTimeValue([]T{s.v}))
	return nil
}

func (s singleElement[T]) producer(*EvalCtx) (ValueProducer, error) {
	return NoValueProducer(), nil
}

type elementsFromSlice[T any] struct {
	vs []T
}

func (s elementsFromSlice[T]) calculatePresence(*EvalCtx, valueConsumer) (bool, error) {
	return true, nil
}

func (s elementsFromSlice[T]) collectInto(_ *EvalCtx, _ valueConsumer, b collectionBuilder[T], _ *SideEffectBuilder[[]T]) (Value[struct{}], error) {
	for _, v := range s.vs {
		b.add(v)
	}
	return ValueOf(struct{}{}), nil
}

func (s elementsFromSlice[T]) calculateExecutionTimeValues(_ *EvalCtx, visit func(ExecutionTimeValue[[]T])) error {
	visit(FixedExecutionTimeValue(s.vs))
	return nil
}

func (s elementsFromSlice[T]) producer(*EvalCtx) (ValueProducer, error) {
	return NoValueProducer(), nil
}

type elementFromProvider[T any] struct {
	p Provider[T]
	// sliceP carries the provider lifted to slice shape for snapshotting.
	sliceP Provider[[]T]
}

func newElementFromProvider[T any](p Provider[T]) elementFromProvider[T] {
	return elementFromProvider[T]{
		p:      p,
		sliceP: Map(p, func(v T) []T { return []T{v} }),
	}
}

func (s elementFromProvider[T]) calculatePresence(e *EvalCtx, c valueConsumer) (bool, error) {
	return s.p.calculatePresence(e, c)
}

func (s elementFromProvider[T]) collectInto(e *EvalCtx, c valueConsumer, b collectionBuilder[T], fx *SideEffectBuilder[[]T]) (Value[struct{}], error) {
	v, err := s.p.calculateValue(e, c)
	if err != nil {
		return Value[struct{}]{}, err
	}
	if v.IsMissing() {
		return MissingAs[struct{}](v), nil
	}
	b.add(v.GetWithoutSideEffect())
	fx.Add(FixedFrom[[]T](v))
	return ValueOf(struct{}{}), nil
}

func (s elementFromProvider[T]) calculateExecutionTimeValues(e *EvalCtx, visit func(ExecutionTimeValue[[]T])) error {
	etv, err := s.sliceP.calculateExecutionTimeValue(e)
	if err != nil {
		return err
	}
	visit(etv)
	return nil
}

func (s elementFromProvider[T]) producer(e *EvalCtx) (ValueProducer, error) {
	return s.p.calculateProducer(e)
}

type elementsFromProvider[T any] struct {
	p Provider[[]T]
}

func (s elementsFromProvider[T]) calculatePresence(e *EvalCtx, c valueConsumer) (bool, error) {
	return s.p.calculatePresence(e, c)
}

func (s elementsFromProvider[T]) collectInto(e *EvalCtx, c valueConsumer, b collectionBuilder[T], fx *SideEffectBuilder[[]T]) (Value[struct{}], error) {
	v, err := s.p.calculateValue(e, c)
	if err != nil {
		return Value[struct{}]{}, err
	}
	if v.IsMissing() {
		return MissingAs[struct{}](v), nil
	}
	for _, element := range v.GetWithoutSideEffect() {
		b.add(element)
	}
	fx.Add(FixedFrom[[]T](v))
	return ValueOf(struct{}{}), nil
}

func (s elementsFromProvider[T]) calculateExecutionTimeValues(e *EvalCtx, visit func(ExecutionTimeValue[[]T])) error {
	etv, err := s.p.calculateExecutionTimeValue(e)
	if err != nil {
		return err
	}
	visit(etv)
	return nil
}

func (s elementsFromProvider[T]) producer(e *EvalCtx) (ValueProducer, error) {
	return s.p.calculateProducer(e)
}

// plusCollector combines two collectors left to right. Presence is the AND
// of both sides: one unresolved contribution renders the whole collection
// missing, not merely its own share.
type plusCollector[T any] struct {
	left  collector[T]
	right collector[T]
}

func (s plusCollector[T]) calculatePresence(e *EvalCtx, c valueConsumer) (bool, error) {
	present, err := s.left.calculatePresence(e, c)
	if err != nil || !present {
		return false, err
	}
	return s.right.calculatePresence(e, c)
}

func (s plusCollector[T]) collectInto(e *EvalCtx, c valueConsumer, b collectionBuilder[T], fx *SideEffectBuilder[[]T]) (Value[struct{}], error) {
	res, err := s.left.collectInto(e, c, b, fx)
	if err != nil || res.IsMissing() {
		return res, err
	}
	return s.right.collectInto(e, c, b, fx)
}

func (s plusCollector[T]) calculateExecutionTimeValues(e *EvalCtx, visit func(ExecutionTimeValue[[]T])) error {
	if err := s.left.calculateExecutionTimeValues(e, visit); err != nil {
		return err
	}
	return s.right.calculateExecutionTimeValues(e, visit)
}

func (s plusCollector[T]) producer(e *EvalCtx) (ValueProducer, error) {
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

// collectionSupplier is the state of a collection property's value slot.
// The four states form a monoid over plus: noValue absorbs, empty is the
// identity, collecting accumulates, fixed is terminal.
type collectionSupplier[T any] interface {
	isNoValue() bool
	calculateValue(e *EvalCtx, c valueConsumer) (Value[[]T], error)
	calculatePresence(e *EvalCtx, c valueConsumer) (bool, error)
	calculateOwnExecutionTimeValue(e *EvalCtx) (ExecutionTimeValue[[]T], error)
	producer(e *EvalCtx) (ValueProducer, error)
	plus(c collector[T]) collectionSupplier[T]
}

type noValueCollectionSupplier[T any] struct {
	missing Value[[]T]
}

func (s noValueCollectionSupplier[T]) isNoValue() bool { return true }

func (s noValueCollectionSupplier[T]) calculateValue(*EvalCtx, valueConsumer) (Value[[]T], error) {
	return MissingValueWithPath[[]T](s.missing.PathToOrigin()...), nil
}

func (s noValueCollectionSupplier[T]) calculatePresence(*EvalCtx, valueConsumer) (bool, error) {
	return false, nil
}

func (s noValueCollectionSupplier[T]) calculateOwnExecutionTimeValue(*EvalCtx) (ExecutionTimeValue[[]T], error) {
	return MissingExecutionTimeValue[[]T](), nil
}

func (s noValueCollectionSupplier[T]) producer(*EvalCtx) (ValueProducer, error) {
	return UnknownValueProducer(), nil
}

func (s noValueCollectionSupplier[T]) plus(collector[T]) collectionSupplier[T] {
	return s
}

type emptyCollectionSupplier[T any] struct {
	newBuilder func() collectionBuilder[T]
}

func (s emptyCollectionSupplier[T]) isNoValue() bool { return false }

func (s emptyCollectionSupplier[T]) calculateValue(*EvalCtx, valueConsumer) (Value[[]T], error) {
	return ValueOf([]T{}), nil
}

func (s emptyCollectionSupplier[T]) calculatePresence(*EvalCtx, valueConsumer) (bool, error) {
	return true, nil
}

func (s emptyCollectionSupplier[T]) calculateOwnExecutionTimeValue(*EvalCtx) (ExecutionTimeValue[[]T], error) {
	return FixedExecutionTimeValue([]T{}), nil
}

func (s emptyCollectionSupplier[T]) producer(*EvalCtx) (ValueProducer, error) {
	return NoValueProducer(), nil
}

func (s emptyCollectionSupplier[T]) plus(c collector[T]) collectionSupplier[T] {
	return collectingSupplier[T]{newBuilder: s.newBuilder, c: c}
}

type fixedCollectionSupplier[T any] struct {
	elements []T
	effect   SideEffect[[]T]
	name     string
}

func (s fixedCollectionSupplier[T]) isNoValue() bool { return false }

func (s fixedCollectionSupplier[T]) calculateValue(*EvalCtx, valueConsumer) (Value[[]T], error) {
	return ValueOf(s.elements).WithSideEffect(s.effect), nil
}

func (s fixedCollectionSupplier[T]) calculatePresence(*EvalCtx, valueConsumer) (bool, error) {
	return true, nil
}

func (s fixedCollectionSupplier[T]) calculateOwnExecutionTimeValue(*EvalCtx) (ExecutionTimeValue[[]T], error) {
	return FixedExecutionTimeValue(s.elements).WithSideEffect(s.effect), nil
}

func (s fixedCollectionSupplier[T]) producer(*EvalCtx) (ValueProducer, error) {
	return NoValueProducer(), nil
}

func (s fixedCollectionSupplier[T]) plus(collector[T]) collectionSupplier[T] {
	panic(&UnsupportedOperationError{Op: "add elements", DisplayName: s.name})
}

type collectingSupplier[T any] struct {
	newBuilder func() collectionBuilder[T]
	c          collector[T]
}

func (s collectingSupplier[T]) isNoValue() bool { return false }

func (s collectingSupplier[T]) calculateValue(e *EvalCtx, c valueConsumer) (Value[[]T], error) {
	b := s.newBuilder()
	var fx SideEffectBuilder[[]T]
	res, err := s.c.collectInto(e, c, b, &fx)
	if err != nil {
		return Value[[]T]{}, err
	}
	if res.IsMissing() {
		return MissingAs[[]T](res), nil
	}
	return ValueOf(b.values()).WithSideEffect(fx.Build()), nil
}

func (s collectingSupplier[T]) calculatePresence(e *EvalCtx, c valueConsumer) (bool, error) {
	return s.c.calculatePresence(e, c)
}

// calculateOwnExecutionTimeValue collapses the contributions: any missing
// part makes the whole missing; all-fixed parts merge into one fixed value,
// ORing their changing-content flags and staging their effects; otherwise
// the result is a changing handle that re-merges on demand.
func (s collectingSupplier[T]) calculateOwnExecutionTimeValue(e *EvalCtx) (ExecutionTimeValue[[]T], error) {
	var parts []ExecutionTimeValue[[]T]
	if err := s.c.calculateExecutionTimeValues(e, func(v ExecutionTimeValue[[]T]) {
		parts = append(parts, v)
	}); err != nil {
		return ExecutionTimeValue[[]T]{}, err
	}

	allFixed := true
	changingContent := false
	for _, part := range parts {
		if part.IsMissing() {
			return MissingExecutionTimeValue[[]T](), nil
		}
		if part.IsChanging() {
			allFixed = false
		} else if part.HasChangingContent() {
			changingContent = true
		}
	}

	if allFixed {
		b := s.newBuilder()
		var fx SideEffectBuilder[[]T]
		for _, part := range parts {
			payload := part.FixedValue()
			for _, element := range payload {
				b.add(element)
			}
			if effect := part.SideEffect(); effect != nil {
				fx.Add(func([]T) { effect(payload) })
			}
		}
		out := FixedExecutionTimeValue(b.values()).WithSideEffect(fx.Build())
		if changingContent {
			out = out.WithChangingContent()
		}
		return out, nil
	}
	return ChangingExecutionTimeValue[[]T](s.asProvider()), nil
}

// asProvider wraps the supplier as a provider handle for changing
// snapshots. Suppliers are immutable once installed, so capturing the
// receiver is safe.
func (s collectingSupplier[T]) asProvider() Provider[[]T] {
	p := &providerFn[[]T]{typ: typeOf[[]T]()}
	p.calc = s.calculateValue
	p.pres = s.calculatePresence
	p.etv = func(*EvalCtx) (ExecutionTimeValue[[]T], error) {
		return ChangingExecutionTimeValue[[]T](p), nil
	}
	p.prod = s.producer
	return p
}

func (s collectingSupplier[T]) producer(e *EvalCtx) (ValueProducer, error) {
	return s.c.producer(e)
}

func (s collectingSupplier[T]) plus(c collector[T]) collectionSupplier[T] {
	return collectingSupplier[T]{newBuilder: s.newBuilder, c: plusCollector[T]{left: s.c, right: c}}
}

// collectionProperty is the shared core of ListProperty and SetProperty: a
// mutable holder of an element accumulation, with convention fallback and
// one-time finalization. A fresh collection property is present and empty;
// assigning nil degrades it to missing until a new value is set.
type collectionProperty[T any] struct {
	owner      *owner
	typ        reflect.Type
	newBuilder func() collectionBuilder[T]
	value      collectionSupplier[T]
	convention collectionSupplier[T]
	defaultSup collectionSupplier[T]
	explicit   bool
	finalized  bool
}

func newCollectionProperty[T any](kind string, newBuilder func() collectionBuilder[T]) collectionProperty[T] {
	empty := emptyCollectionSupplier[T]{newBuilder: newBuilder}
	return collectionProperty[T]{
		owner:      &owner{displayName: "this " + kind},
		typ:        typeOf[[]T](),
		newBuilder: newBuilder,
		value:      empty,
		convention: noValueCollectionSupplier[T]{},
		defaultSup: empty,
	}
}

func (p *collectionProperty[T]) named(kind, name string) {
	p.owner.displayName = fmt.Sprintf("%s '%s'", kind, name)
}

func (p *collectionProperty[T]) displayName() string        { return p.owner.displayName }
func (p *collectionProperty[T]) declaredType() reflect.Type { return p.typ }

func (p *collectionProperty[T]) calculateValue(e *EvalCtx, c valueConsumer) (Value[[]T], error) {
	release, err := e.open(p.owner)
	if err != nil {
		return Value[[]T]{}, err
	}
	defer release()
	return p.value.calculateValue(e, c)
}

func (p *collectionProperty[T]) calculatePresence(e *EvalCtx, c valueConsumer) (bool, error) {
	release, err := e.open(p.owner)
	if err != nil {
		return false, err
	}
	defer release()
	return p.value.calculatePresence(e, c)
}

func (p *collectionProperty[T]) calculateExecutionTimeValue(e *EvalCtx) (ExecutionTimeValue[[]T], error) {
	release, err := e.open(p.owner)
	if err != nil {
		return ExecutionTimeValue[[]T]{}, err
	}
	defer release()
	return p.value.calculateOwnExecutionTimeValue(e)
}

func (p *collectionProperty[T]) calculateProducer(e *EvalCtx) (ValueProducer, error) {
	release, err := e.open(p.owner)
	if err != nil {
		return ValueProducer{}, err
	}
	defer release()
	return p.value.producer(e)
}

func (p *collectionProperty[T]) Get() ([]T, error)        { return getOf[[]T](p) }
func (p *collectionProperty[T]) GetOrElse(fb []T) []T     { return getOrElseOf[[]T](p, fb) }
func (p *collectionProperty[T]) GetOrZero() []T           { return getOrElseOf[[]T](p, nil) }
func (p *collectionProperty[T]) IsPresent() (bool, error) { return isPresentOf[[]T](p) }

func (p *collectionProperty[T]) OrElse(other Provider[[]T]) Provider[[]T] {
	return orElseOf[[]T](p, other)
}

func (p *collectionProperty[T]) OrElseValue(v []T) Provider[[]T] {
	return orElseOf[[]T](p, Of(v))
}

func (p *collectionProperty[T]) CalculateExecutionTimeValue() (ExecutionTimeValue[[]T], error) {
	return p.calculateExecutionTimeValue(newEvalCtx())
}

func (p *collectionProperty[T]) GetProducer() (ValueProducer, error) {
	return p.calculateProducer(newEvalCtx())
}

func (p *collectionProperty[T]) assertCanMutate(op string) {
	if p.finalized {
		panic(&UnsupportedOperationError{Op: op, DisplayName: p.owner.displayName})
	}
}

func (p *collectionProperty[T]) setSupplier(s collectionSupplier[T]) {
	p.value = s
	p.explicit = true
}

// effectiveBase picks the supplier a new contribution extends: the explicit
// chain when one is in force, otherwise the default. The convention never
// participates in accumulation.
func (p *collectionProperty[T]) effectiveBase() collectionSupplier[T] {
	if p.explicit {
		return p.value
	}
	return p.defaultSup
}

func (p *collectionProperty[T]) addCollector(c collector[T]) {
	p.setSupplier(p.effectiveBase().plus(c))
}

// Add appends one element to the accumulation.
func (p *collectionProperty[T]) Add(v T) {
	p.assertCanMutate("add element")
	if isNilAny(v) {
		panic(invalidArgumentf("cannot add a null element to %s", p.owner.displayName))
	}
	p.addCollector(singleElement[T]{v: v})
}

// AddProvider appends the element produced by a provider, re-evaluated on
// every read.
func (p *collectionProperty[T]) AddProvider(provider Provider[T]) {
	p.assertCanMutate("add element")
	if provider == nil {
		panic(invalidArgumentf("cannot add an element to %s using a null provider", p.owner.displayName))
	}
	p.addCollector(newElementFromProvider(provider))
}

// AddAll appends the given elements in order.
func (p *collectionProperty[T]) AddAll(vs ...T) {
	p.assertCanMutate("add elements")
	for _, v := range vs {
		if isNilAny(v) {
			panic(invalidArgumentf("cannot add a null element to %s", p.owner.displayName))
		}
	}
	p.addCollector(elementsFromSlice[T]{vs: vs})
}

// AddAllProvider appends every element produced by a slice provider.
func (p *collectionProperty[T]) AddAllProvider(provider Provider[[]T]) {
	p.assertCanMutate("add elements")
	if provider == nil {
		panic(invalidArgumentf("cannot add elements to %s using a null provider", p.owner.displayName))
	}
	p.addCollector(elementsFromProvider[T]{p: provider})
}

// Set replaces the accumulation with the given elements. A nil slice unsets
// the property and degrades its default to missing, so later additions
// alone cannot resurrect it.
func (p *collectionProperty[T]) Set(vs []T) {
	p.assertCanMutate("set value")
	if vs == nil {
		p.unsetAndDegrade()
		return
	}
	p.setSupplier(emptyCollectionSupplier[T]{newBuilder: p.newBuilder}.plus(elementsFromSlice[T]{vs: vs}))
}

// SetProvider replaces the accumulation with the elements of a provider.
func (p *collectionProperty[T]) SetProvider(provider Provider[[]T]) {
	p.assertCanMutate("set value")
	if provider == nil {
		panic(invalidArgumentf("cannot set the value of %s using a null provider", p.owner.displayName))
	}
	p.setSupplier(emptyCollectionSupplier[T]{newBuilder: p.newBuilder}.plus(elementsFromProvider[T]{p: provider}))
}

// SetFromAny assigns an untyped value: nil unsets, a []T or Provider[[]T]
// is assigned directly.
func (p *collectionProperty[T]) SetFromAny(v any) {
	p.assertCanMutate("set value")
	switch value := v.(type) {
	case nil:
		p.unsetAndDegrade()
	case Provider[[]T]:
		p.SetProvider(value)
	case []T:
		p.Set(value)
	default:
		if declared, ok := declaredTypeOfAnyProvider(v); ok {
			panic(invalidArgumentf("cannot set the value of a property of type %s using a provider of type %s", p.typ, declared))
		}
		panic(invalidArgumentf("cannot set the value of a property of type %s using an instance of type %T", p.typ, v))
	}
}

// Empty replaces the accumulation with a present, empty collection.
func (p *collectionProperty[T]) Empty() {
	p.assertCanMutate("set value")
	p.setSupplier(emptyCollectionSupplier[T]{newBuilder: p.newBuilder})
}

// Convention replaces the convention with the given elements; nil discards
// the convention.
func (p *collectionProperty[T]) Convention(vs []T) {
	p.assertCanMutate("set convention")
	if vs == nil {
		p.convention = noValueCollectionSupplier[T]{}
	} else {
		p.convention = emptyCollectionSupplier[T]{newBuilder: p.newBuilder}.plus(elementsFromSlice[T]{vs: vs})
	}
	p.applyConvention()
}

// ConventionProvider replaces the convention with a provider.
func (p *collectionProperty[T]) ConventionProvider(provider Provider[[]T]) {
	p.assertCanMutate("set convention")
	if provider == nil {
		panic(invalidArgumentf("cannot set the convention of %s using a null provider", p.owner.displayName))
	}
	p.convention = emptyCollectionSupplier[T]{newBuilder: p.newBuilder}.plus(elementsFromProvider[T]{p: provider})
	p.applyConvention()
}

// UnsetConvention discards the convention.
func (p *collectionProperty[T]) UnsetConvention() {
	p.assertCanMutate("unset convention")
	p.convention = noValueCollectionSupplier[T]{}
	p.applyConvention()
}

func (p *collectionProperty[T]) applyConvention() {
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
func (p *collectionProperty[T]) Unset() {
	p.assertCanMutate("unset value")
	p.unsetAndDegrade()
}

func (p *collectionProperty[T]) unsetAndDegrade() {
	p.defaultSup = noValueCollectionSupplier[T]{}
	p.explicit = false
	p.applyConvention()
}

// setToConventionIfUnset promotes the current fallback into the explicit
// slot so scoped mutation extends it rather than the default.
func (p *collectionProperty[T]) setToConventionIfUnset() {
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

// FinalizeValue computes the elements once and locks the property. Further
// mutation panics with *UnsupportedOperationError; finalizing again is a
// no-op.
func (p *collectionProperty[T]) FinalizeValue() error {
	if p.finalized {
		return nil
	}
	v, err := p.calculateValue(newEvalCtx(), forValue)
	if err != nil {
		return err
	}
	if v.IsMissing() {
		if len(v.PathToOrigin()) == 0 {
			p.value = noValueCollectionSupplier[T]{}
		} else {
			p.value = noValueCollectionSupplier[T]{missing: v}
		}
	} else {
		p.value = fixedCollectionSupplier[T]{
			elements: v.GetWithoutSideEffect(),
			effect:   v.SideEffect(),
			name:     p.owner.displayName,
		}
	}
	p.explicit = true
	p.finalized = true
	return nil
}

// Update captures the current accumulation as a detached provider, applies
// transform, and assigns the result. A nil result unsets the property.
func (p *collectionProperty[T]) Update(transform func(current Provider[[]T]) Provider[[]T]) {
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

func (p *collectionProperty[T]) shallowCopy() Provider[[]T] {
	sup := p.value
	detached := &owner{displayName: p.owner.displayName + " (current value)"}
	sc := &providerFn[[]T]{typ: p.typ, name: detached.displayName}
	sc.calc = func(e *EvalCtx, c valueConsumer) (Value[[]T], error) {
		release, err := e.open(detached)
		if err != nil {
			return Value[[]T]{}, err
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
	sc.etv = func(e *EvalCtx) (ExecutionTimeValue[[]T], error) {
		release, err := e.open(detached)
		if err != nil {
			return ExecutionTimeValue[[]T]{}, err
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
func (p *collectionProperty[T]) FromState(state ExecutionTimeValue[[]T]) {
	switch {
	case state.IsMissing():
		p.value = noValueCollectionSupplier[T]{}
	case state.HasFixedValue():
		p.value = fixedCollectionSupplier[T]{
			elements: state.FixedValue(),
			effect:   state.SideEffect(),
			name:     p.owner.displayName,
		}
	default:
		p.value = emptyCollectionSupplier[T]{newBuilder: p.newBuilder}.plus(elementsFromProvider[T]{p: state.ChangingValue()})
	}
	p.explicit = true
}

// CollectionMutator is the add-only surface handed to WithActualValue
// callbacks. Mutations apply against the explicit accumulation chain.
type CollectionMutator[T any] struct {
	p *collectionProperty[T]
}

func (m *CollectionMutator[T]) Add(v T)                          { m.p.Add(v) }
func (m *CollectionMutator[T]) AddProvider(provider Provider[T]) { m.p.AddProvider(provider) }
func (m *CollectionMutator[T]) AddAll(vs ...T)                   { m.p.AddAll(vs...) }
func (m *CollectionMutator[T]) AddAllProvider(provider Provider[[]T]) {
	m.p.AddAllProvider(provider)
}

// WithActualValue promotes the convention into the explicit slot when no
// explicit value is in force, then runs fn with a scoped mutator.
func (p *collectionProperty[T]) WithActualValue(fn func(m *CollectionMutator[T])) {
	p.assertCanMutate("mutate value")
	if fn == nil {
		panic(invalidArgumentf("cannot mutate %s using a null action", p.owner.displayName))
	}
	p.setToConventionIfUnset()
	fn(&CollectionMutator[T]{p: p})
}

// isNilAny reports whether v is a nil value of a nilable kind.
func isNilAny(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	}
	return false
}
