package props

import (
	"fmt"
	"reflect"
)

// propertySupplier is the state of a scalar property's value slot: the
// explicit "unset" sentinel, a finalized snapshot, or a live provider.
type propertySupplier[T any] interface {
	isNoValue() bool
	calculateValue(e *EvalCtx, c valueConsumer) (Value[T], error)
	calculatePresence(e *EvalCtx, c valueConsumer) (bool, error)
	calculateOwnExecutionTimeValue(e *EvalCtx) (ExecutionTimeValue[T], error)
	producer(e *EvalCtx) (ValueProducer, error)
}

// noValueSupplier is the canonical "unset" sentinel. Equality is by variant,
// not identity; the zero value carries an empty diagnostic path.
type noValueSupplier[T any] struct {
	missing Value[T]
}

func (s noValueSupplier[T]) isNoValue() bool { return true }

func (s noValueSupplier[T]) calculateValue(*EvalCtx, valueConsumer) (Value[T], error) {
	return MissingValueWithPath[T](s.missing.PathToOrigin()...), nil
}

func (s noValueSupplier[T]) calculatePresence(*EvalCtx, valueConsumer) (bool, error) {
	return false, nil
}

func (s noValueSupplier[T]) calculateOwnExecutionTimeValue(*EvalCtx) (ExecutionTimeValue[T], error) {
	return MissingExecutionTimeValue[T](), nil
}

func (s noValueSupplier[T]) producer(*EvalCtx) (ValueProducer, error) {
	return UnknownValueProducer(), nil
}

// fixedSupplier is a terminal, finalized snapshot. The captured side effect
// is preserved and re-fired once per subsequent full read.
type fixedSupplier[T any] struct {
	value  T
	effect SideEffect[T]
}

func (s fixedSupplier[T]) isNoValue() bool { return false }

func (s fixedSupplier[T]) calculateValue(*EvalCtx, valueConsumer) (Value[T], error) {
	return ValueOf(s.value).WithSideEffect(s.effect), nil
}

func (s fixedSupplier[T]) calculatePresence(*EvalCtx, valueConsumer) (bool, error) {
	return true, nil
}

func (s fixedSupplier[T]) calculateOwnExecutionTimeValue(*EvalCtx) (ExecutionTimeValue[T], error) {
	return FixedExecutionTimeValue(s.value).WithSideEffect(s.effect), nil
}

func (s fixedSupplier[T]) producer(*EvalCtx) (ValueProducer, error) {
	return NoValueProducer(), nil
}

// providerSupplier backs the property with a live provider, re-evaluated on
// every read.
type providerSupplier[T any] struct {
	p Provider[T]
}

func (s providerSupplier[T]) isNoValue() bool { return false }

func (s providerSupplier[T]) calculateValue(e *EvalCtx, c valueConsumer) (Value[T], error) {
	return s.p.calculateValue(e, c)
}

func (s providerSupplier[T]) calculatePresence(e *EvalCtx, c valueConsumer) (bool, error) {
	return s.p.calculatePresence(e, c)
}

func (s providerSupplier[T]) calculateOwnExecutionTimeValue(e *EvalCtx) (ExecutionTimeValue[T], error) {
	return s.p.calculateExecutionTimeValue(e)
}

func (s providerSupplier[T]) producer(e *EvalCtx) (ValueProducer, error) {
	return s.p.calculateProducer(e)
}

// Property is a mutable holder of a provider, with convention fallback and
// one-time finalization. The effective value is the explicit value when one
// is in force, otherwise the convention.
//
// A property is not safe for unsynchronized concurrent mutation and
// reading; after FinalizeValue the backing supplier is immutable and safe
// for concurrent reads.
type Property[T any] struct {
	owner      *owner
	typ        reflect.Type
	value      propertySupplier[T]
	convention propertySupplier[T]
	explicit   bool
	finalized  bool
}

// NewProperty creates a property with no value and no convention.
func NewProperty[T any]() *Property[T] {
	return &Property[T]{
		owner:      &owner{displayName: "this property"},
		typ:        typeOf[T](),
		value:      noValueSupplier[T]{},
		convention: noValueSupplier[T]{},
	}
}

// Named attaches a display name used in diagnostics.
func (p *Property[T]) Named(name string) *Property[T] {
	p.owner.displayName = fmt.Sprintf("property '%s'", name)
	return p
}

func (p *Property[T]) displayName() string        { return p.owner.displayName }
func (p *Property[T]) declaredType() reflect.Type { return p.typ }

// Every supplier operation opens a guard scope for this property's owner
// and releases it on every exit path.

func (p *Property[T]) calculateValue(e *EvalCtx, c valueConsumer) (Value[T], error) {
	release, err := e.open(p.owner)
	if err != nil {
		return Value[T]{}, err
	}
	defer release()
	return p.value.calculateValue(e, c)
}

func (p *Property[T]) calculatePresence(e *EvalCtx, c valueConsumer) (bool, error) {
	release, err := e.open(p.owner)
	if err != nil {
		return false, err
	}
	defer release()
	return p.value.calculatePresence(e, c)
}

func (p *Property[T]) calculateExecutionTimeValue(e *EvalCtx) (ExecutionTimeValue[T], error) {
	release, err := e.open(p.owner)
	if err != nil {
		return ExecutionTimeValue[T]{}, err
	}
	defer release()
	return p.value.calculateOwnExecutionTimeValue(e)
}

func (p *Property[T]) calculateProducer(e *EvalCtx) (ValueProducer, error) {
	release, err := e.open(p.owner)
	if err != nil {
		return ValueProducer{}, err
	}
	defer release()
	return p.value.producer(e)
}

func (p *Property[T]) Get() (T, error)          { return getOf[T](p) }
func (p *Property[T]) GetOrElse(fallback T) T   { return getOrElseOf[T](p, fallback) }
func (p *Property[T]) GetOrZero() T             { var zero T; return getOrElseOf[T](p, zero) }
func (p *Property[T]) IsPresent() (bool, error) { return isPresentOf[T](p) }

func (p *Property[T]) OrElse(other Provider[T]) Provider[T] { return orElseOf[T](p, other) }
func (p *Property[T]) OrElseValue(v T) Provider[T]          { return orElseOf[T](p, Of(v)) }

func (p *Property[T]) CalculateExecutionTimeValue() (ExecutionTimeValue[T], error) {
	return p.calculateExecutionTimeValue(newEvalCtx())
}

func (p *Property[T]) GetProducer() (ValueProducer, error) {
	return p.calculateProducer(newEvalCtx())
}

func (p *Property[T]) assertCanMutate(op string) {
	if p.finalized {
		panic(&UnsupportedOperationError{Op: op, DisplayName: p.owner.displayName})
	}
}

func (p *Property[T]) setSupplier(s propertySupplier[T]) {
	p.value = s
	p.explicit = true
}

// Set replaces the explicit value with a fixed value.
func (p *Property[T]) Set(v T) {
	p.assertCanMutate("set value")
	p.setSupplier(fixedSupplier[T]{value: v})
}

// SetProvider replaces the explicit value with a provider, re-evaluated on
// every read.
func (p *Property[T]) SetProvider(provider Provider[T]) {
	p.assertCanMutate("set value")
	if provider == nil {
		panic(invalidArgumentf("cannot set the value of %s using a null provider", p.owner.displayName))
	}
	p.setSupplier(providerSupplier[T]{p: provider})
}

// Value sets a fixed explicit value and returns the property for chaining.
func (p *Property[T]) Value(v T) *Property[T] {
	p.Set(v)
	return p
}

// ValueProvider sets an explicit provider and returns the property.
func (p *Property[T]) ValueProvider(provider Provider[T]) *Property[T] {
	p.SetProvider(provider)
	return p
}

// SetFromAny assigns an untyped value: nil unsets, a T or a Provider[T] is
// assigned directly. Any other type, including a provider with an
// incompatible declared type, fails at this call with
// *InvalidArgumentError rather than at resolution time.
func (p *Property[T]) SetFromAny(v any) {
	p.assertCanMutate("set value")
	switch value := v.(type) {
	case nil:
		p.Unset()
	case Provider[T]:
		p.SetProvider(value)
	case T:
		p.Set(value)
	default:
		if declared, ok := declaredTypeOfAnyProvider(v); ok {
			panic(invalidArgumentf("cannot set the value of a property of type %s using a provider of type %s", p.typ, declared))
		}
		panic(invalidArgumentf("cannot set the value of a property of type %s using an instance of type %T", p.typ, v))
	}
}

// anyProvider lets untyped assignment inspect a provider's declared type
// without knowing its payload type parameter.
type anyProvider interface {
	declaredType() reflect.Type
}

func declaredTypeOfAnyProvider(v any) (reflect.Type, bool) {
	if ap, ok := v.(anyProvider); ok {
		return ap.declaredType(), true
	}
	return nil, false
}

// Convention replaces the convention with a fixed value. The convention is
// the default used while no explicit value is in force; it stays tracked
// after an explicit value is assigned so a later Unset reactivates it.
func (p *Property[T]) Convention(v T) *Property[T] {
	p.assertCanMutate("set convention")
	p.convention = fixedSupplier[T]{value: v}
	if !p.explicit {
		p.value = p.convention
	}
	return p
}

// ConventionProvider replaces the convention with a provider.
func (p *Property[T]) ConventionProvider(provider Provider[T]) *Property[T] {
	p.assertCanMutate("set convention")
	if provider == nil {
		panic(invalidArgumentf("cannot set the convention of %s using a null provider", p.owner.displayName))
	}
	p.convention = providerSupplier[T]{p: provider}
	if !p.explicit {
		p.value = p.convention
	}
	return p
}

// Unset discards the explicit value, re-enabling convention fallback.
func (p *Property[T]) Unset() *Property[T] {
	p.assertCanMutate("unset value")
	p.explicit = false
	p.value = p.convention
	return p
}

// UnsetConvention discards the convention.
func (p *Property[T]) UnsetConvention() *Property[T] {
	p.assertCanMutate("unset convention")
	p.convention = noValueSupplier[T]{}
	if !p.explicit {
		p.value = p.convention
	}
	return p
}

// FinalizeValue computes the value once and locks the property: the
// supplier becomes an immutable snapshot and any further mutation panics
// with *UnsupportedOperationError. Finalizing twice is a no-op; the cached
// snapshot is returned on all subsequent reads without re-invoking the
// original computation. A captured side effect is preserved and re-fires
// once per subsequent full read.
func (p *Property[T]) FinalizeValue() error {
	if p.finalized {
		return nil
	}
	v, err := p.calculateValue(newEvalCtx(), forValue)
	if err != nil {
		return err
	}
	if v.IsMissing() {
		if len(v.PathToOrigin()) == 0 {
			p.value = noValueSupplier[T]{}
		} else {
			p.value = noValueSupplier[T]{missing: v}
		}
	} else {
		p.value = fixedSupplier[T]{value: v.GetWithoutSideEffect(), effect: v.SideEffect()}
	}
	p.explicit = true
	p.finalized = true
	return nil
}

// Update captures the current effective value as a detached provider,
// applies transform to it, and assigns the result as the new explicit
// value. A nil result unsets the property.
//
// The transform sees only a detached snapshot provider, never the property
// itself, so setting the result back cannot reference the property by
// construction. Upstream providers feeding the snapshot stay live: later
// changes to them remain visible through the updated value.
func (p *Property[T]) Update(transform func(current Provider[T]) Provider[T]) {
	p.assertCanMutate("update value")
	if transform == nil {
		panic(invalidArgumentf("cannot update %s using a null transform", p.owner.displayName))
	}
	next := transform(p.shallowCopy())
	if next == nil {
		p.Unset()
		return
	}
	p.SetProvider(next)
}

// shallowCopy returns a provider over the current effective supplier,
// guarded by a detached owner so evaluating it does not re-enter this
// property's scope.
func (p *Property[T]) shallowCopy() Provider[T] {
	sup := p.value
	detached := &owner{displayName: p.owner.displayName + " (current value)"}
	sc := &providerFn[T]{typ: p.typ, name: detached.displayName}
	sc.calc = func(e *EvalCtx, c valueConsumer) (Value[T], error) {
		release, err := e.open(detached)
		if err != nil {
			return Value[T]{}, err
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
	sc.etv = func(e *EvalCtx) (ExecutionTimeValue[T], error) {
		release, err := e.open(detached)
		if err != nil {
			return ExecutionTimeValue[T]{}, err
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

// FromState rehydrates the property from a previously collapsed snapshot.
// This is the snapshot/cache collaborator's entry point; it bypasses
// finalization checks deliberately because rehydration happens before any
// user code runs.
func (p *Property[T]) FromState(state ExecutionTimeValue[T]) {
	switch {
	case state.IsMissing():
		p.value = noValueSupplier[T]{}
	case state.HasFixedValue():
		p.value = fixedSupplier[T]{value: state.FixedValue(), effect: state.SideEffect()}
	default:
		p.value = providerSupplier[T]{p: state.ChangingValue()}
	}
	p.explicit = true
}
