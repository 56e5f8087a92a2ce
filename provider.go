package props

import "reflect"

// Provider is a lazy, possibly-absent computation of a value. Providers are
// stateless: evaluation is re-executed on every terminal read unless the
// backing supplier has been finalized.
//
// The interface is sealed; implementations live in this package. Transforms
// that change the payload type (Map, FlatMap) are package functions because
// Go methods cannot introduce type parameters.
type Provider[T any] interface {
	// Get computes the value, fires its pending side effects, and returns
	// the payload. It returns *MissingValueError when the source has no
	// value and *CircularEvaluationError when evaluation re-enters an open
	// owner.
	Get() (T, error)

	// GetOrElse returns the payload, or fallback when the value is
	// missing. Evaluation failures, including circular evaluation, panic
	// with the underlying error.
	GetOrElse(fallback T) T

	// GetOrZero returns the payload, or the zero value when missing.
	// Evaluation failures panic like GetOrElse.
	GetOrZero() T

	// IsPresent reports whether a value is available, without extracting
	// it. Side effects do not fire.
	IsPresent() (bool, error)

	// OrElse returns a provider yielding this provider's value when
	// present, otherwise other's value.
	OrElse(other Provider[T]) Provider[T]

	// OrElseValue returns a provider yielding this provider's value when
	// present, otherwise the fixed fallback.
	OrElseValue(v T) Provider[T]

	// CalculateExecutionTimeValue collapses the provider to the cheapest
	// snapshot representation without firing side effects.
	CalculateExecutionTimeValue() (ExecutionTimeValue[T], error)

	// GetProducer returns an opaque description of what would produce the
	// value, without forcing its computation.
	GetProducer() (ValueProducer, error)

	calculateValue(e *EvalCtx, c valueConsumer) (Value[T], error)
	calculatePresence(e *EvalCtx, c valueConsumer) (bool, error)
	calculateExecutionTimeValue(e *EvalCtx) (ExecutionTimeValue[T], error)
	calculateProducer(e *EvalCtx) (ValueProducer, error)
	declaredType() reflect.Type
	displayName() string
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// providerFn is the single concrete provider: behavior is injected as
// closures, so every combinator and derived accessor is an instance of this
// one struct.
type providerFn[T any] struct {
	typ  reflect.Type
	name string
	calc func(e *EvalCtx, c valueConsumer) (Value[T], error)
	pres func(e *EvalCtx, c valueConsumer) (bool, error)
	etv  func(e *EvalCtx) (ExecutionTimeValue[T], error)
	prod func(e *EvalCtx) (ValueProducer, error)
}

func (p *providerFn[T]) calculateValue(e *EvalCtx, c valueConsumer) (Value[T], error) {
	return p.calc(e, c)
}

func (p *providerFn[T]) calculatePresence(e *EvalCtx, c valueConsumer) (bool, error) {
	if p.pres != nil {
		return p.pres(e, c)
	}
	v, err := p.calc(e, c)
	if err != nil {
		return false, err
	}
	return v.IsPresent(), nil
}

func (p *providerFn[T]) calculateExecutionTimeValue(e *EvalCtx) (ExecutionTimeValue[T], error) {
	if p.etv != nil {
		return p.etv(e)
	}
	// Arbitrary computations are re-executed on every read.
	return ChangingExecutionTimeValue[T](p), nil
}

func (p *providerFn[T]) calculateProducer(e *EvalCtx) (ValueProducer, error) {
	if p.prod != nil {
		return p.prod(e)
	}
	return UnknownValueProducer(), nil
}

func (p *providerFn[T]) declaredType() reflect.Type {
	return p.typ
}

func (p *providerFn[T]) displayName() string {
	if p.name != "" {
		return p.name
	}
	return "this provider"
}

func (p *providerFn[T]) Get() (T, error)          { return getOf[T](p) }
func (p *providerFn[T]) GetOrElse(fallback T) T   { return getOrElseOf[T](p, fallback) }
func (p *providerFn[T]) GetOrZero() T             { var zero T; return getOrElseOf[T](p, zero) }
func (p *providerFn[T]) IsPresent() (bool, error) { return isPresentOf[T](p) }

func (p *providerFn[T]) OrElse(other Provider[T]) Provider[T] { return orElseOf[T](p, other) }
func (p *providerFn[T]) OrElseValue(v T) Provider[T]          { return orElseOf[T](p, Of(v)) }

func (p *providerFn[T]) CalculateExecutionTimeValue() (ExecutionTimeValue[T], error) {
	return p.calculateExecutionTimeValue(newEvalCtx())
}

func (p *providerFn[T]) GetProducer() (ValueProducer, error) {
	return p.calculateProducer(newEvalCtx())
}

// Terminal accessor helpers shared by providers and properties. Each opens
// a fresh evaluation chain.

func getOf[T any](p Provider[T]) (T, error) {
	v, err := p.calculateValue(newEvalCtx(), forValue)
	if err != nil {
		var zero T
		return zero, err
	}
	if v.IsMissing() {
		var zero T
		return zero, &MissingValueError{DisplayName: p.displayName(), Path: v.PathToOrigin()}
	}
	return v.extract(), nil
}

func getOrElseOf[T any](p Provider[T], fallback T) T {
	v, err := p.calculateValue(newEvalCtx(), forValue)
	if err != nil {
		// Absence is the only state the fallback covers; evaluation
		// failures surface synchronously.
		panic(err)
	}
	if v.IsMissing() {
		return fallback
	}
	return v.extract()
}

func isPresentOf[T any](p Provider[T]) (bool, error) {
	return p.calculatePresence(newEvalCtx(), forPresence)
}

// Eval reads a provider inside an already running evaluation chain. Factory
// functions must use it instead of Get so that cycle detection spans the
// nested read.
func Eval[T any](ctx *EvalCtx, p Provider[T]) (T, error) {
	if ctx == nil {
		panic(invalidArgumentf("cannot evaluate a provider outside an evaluation chain"))
	}
	v, err := p.calculateValue(ctx, forValue)
	if err != nil {
		var zero T
		return zero, err
	}
	if v.IsMissing() {
		var zero T
		return zero, &MissingValueError{DisplayName: p.displayName(), Path: v.PathToOrigin()}
	}
	return v.extract(), nil
}

// Of returns a provider of a fixed value.
func Of[T any](v T) Provider[T] {
	return &providerFn[T]{
		typ: typeOf[T](),
		calc: func(*EvalCtx, valueConsumer) (Value[T], error) {
			return ValueOf(v), nil
		},
		etv: func(*EvalCtx) (ExecutionTimeValue[T], error) {
			return FixedExecutionTimeValue(v), nil
		},
		prod: func(*EvalCtx) (ValueProducer, error) {
			return NoValueProducer(), nil
		},
	}
}

// OfNilable returns a provider of the pointee, or a missing provider when
// the pointer is nil.
func OfNilable[T any](v *T) Provider[T] {
	if v == nil {
		return Missing[T]()
	}
	return Of(*v)
}

// Missing returns a provider with no value and an empty diagnostic path.
func Missing[T any]() Provider[T] {
	return MissingWithPath[T]()
}

// MissingWithPath returns a provider with no value whose missing values
// carry the given diagnostic path.
func MissingWithPath[T any](segments ...string) Provider[T] {
	return &providerFn[T]{
		typ: typeOf[T](),
		calc: func(*EvalCtx, valueConsumer) (Value[T], error) {
			return MissingValueWithPath[T](segments...), nil
		},
		pres: func(*EvalCtx, valueConsumer) (bool, error) {
			return false, nil
		},
		etv: func(*EvalCtx) (ExecutionTimeValue[T], error) {
			return MissingExecutionTimeValue[T](), nil
		},
	}
}

// Provide creates a provider backed by a factory. The factory receives the
// evaluation chain; nested provider reads must go through Eval.
func Provide[T any](factory func(ctx *EvalCtx) (T, error)) Provider[T] {
	if factory == nil {
		panic(invalidArgumentf("cannot create a provider from a null factory"))
	}
	return &providerFn[T]{
		typ: typeOf[T](),
		calc: func(e *EvalCtx, _ valueConsumer) (Value[T], error) {
			v, err := factory(e)
			if err != nil {
				return Value[T]{}, err
			}
			return ValueOf(v), nil
		},
	}
}

// ProvideNilable creates a provider backed by a factory whose nil result
// means missing.
func ProvideNilable[T any](factory func(ctx *EvalCtx) (*T, error)) Provider[T] {
	if factory == nil {
		panic(invalidArgumentf("cannot create a provider from a null factory"))
	}
	return &providerFn[T]{
		typ: typeOf[T](),
		calc: func(e *EvalCtx, _ valueConsumer) (Value[T], error) {
			v, err := factory(e)
			if err != nil {
				return Value[T]{}, err
			}
			return ValueOfNilable(v), nil
		},
	}
}

// Map returns a provider applying fn to the upstream value. Evaluation is
// deferred until a terminal read; a missing upstream propagates untouched.
func Map[T any, U any](p Provider[T], fn func(T) U) Provider[U] {
	if p == nil || fn == nil {
		panic(invalidArgumentf("cannot map with a null provider or transform"))
	}
	m := &providerFn[U]{typ: typeOf[U]()}
	m.calc = func(e *EvalCtx, c valueConsumer) (Value[U], error) {
		v, err := p.calculateValue(e, c)
		if err != nil {
			return Value[U]{}, err
		}
		if v.IsMissing() {
			return MissingAs[U](v), nil
		}
		return ValueOf(fn(v.GetWithoutSideEffect())).WithSideEffect(FixedFrom[U](v)), nil
	}
	m.pres = p.calculatePresence
	m.etv = func(e *EvalCtx) (ExecutionTimeValue[U], error) {
		up, err := p.calculateExecutionTimeValue(e)
		if err != nil {
			return ExecutionTimeValue[U]{}, err
		}
		if up.IsMissing() {
			return MissingExecutionTimeValue[U](), nil
		}
		if up.HasFixedValue() {
			payload := up.FixedValue()
			out := FixedExecutionTimeValue(fn(payload))
			if up.HasChangingContent() {
				out = out.WithChangingContent()
			}
			if eff := up.SideEffect(); eff != nil {
				out = out.WithSideEffect(SideEffect[U](func(U) { eff(payload) }))
			}
			return out, nil
		}
		return ChangingExecutionTimeValue[U](m), nil
	}
	m.prod = p.calculateProducer
	return m
}

// FlatMap returns a provider applying fn to the upstream value and
// evaluating the provider it returns. The function is not invoked when the
// upstream value is missing; a nil result means missing.
func FlatMap[T any, U any](p Provider[T], fn func(T) Provider[U]) Provider[U] {
	if p == nil || fn == nil {
		panic(invalidArgumentf("cannot flat-map with a null provider or transform"))
	}
	m := &providerFn[U]{typ: typeOf[U]()}
	m.calc = func(e *EvalCtx, c valueConsumer) (Value[U], error) {
		v, err := p.calculateValue(e, c)
		if err != nil {
			return Value[U]{}, err
		}
		if v.IsMissing() {
			return MissingAs[U](v), nil
		}
		next := fn(v.GetWithoutSideEffect())
		if next == nil {
			return MissingValue[U](), nil
		}
		nv, err := next.calculateValue(e, c)
		if err != nil {
			return Value[U]{}, err
		}
		return nv.WithSideEffect(FixedFrom[U](v)), nil
	}
	m.etv = func(e *EvalCtx) (ExecutionTimeValue[U], error) {
		up, err := p.calculateExecutionTimeValue(e)
		if err != nil {
			return ExecutionTimeValue[U]{}, err
		}
		if up.IsMissing() {
			return MissingExecutionTimeValue[U](), nil
		}
		return ChangingExecutionTimeValue[U](m), nil
	}
	return m
}

// WithSideEffect attaches an effect to every value the provider produces.
// The effect fires when the payload is extracted, not when the provider is
// collapsed to an execution-time value.
func WithSideEffect[T any](p Provider[T], effect SideEffect[T]) Provider[T] {
	if p == nil || effect == nil {
		panic(invalidArgumentf("cannot attach a null side effect or attach to a null provider"))
	}
	w := &providerFn[T]{typ: p.declaredType(), name: p.displayName()}
	w.calc = func(e *EvalCtx, c valueConsumer) (Value[T], error) {
		v, err := p.calculateValue(e, c)
		if err != nil {
			return Value[T]{}, err
		}
		return v.WithSideEffect(effect), nil
	}
	w.pres = p.calculatePresence
	w.etv = func(e *EvalCtx) (ExecutionTimeValue[T], error) {
		up, err := p.calculateExecutionTimeValue(e)
		if err != nil {
			return ExecutionTimeValue[T]{}, err
		}
		return up.WithSideEffect(effect), nil
	}
	w.prod = p.calculateProducer
	return w
}

func orElseOf[T any](p Provider[T], other Provider[T]) Provider[T] {
	if other == nil {
		panic(invalidArgumentf("cannot compose with a null provider"))
	}
	o := &providerFn[T]{typ: p.declaredType()}
	o.calc = func(e *EvalCtx, c valueConsumer) (Value[T], error) {
		v, err := p.calculateValue(e, c)
		if err != nil {
			return Value[T]{}, err
		}
		if v.IsPresent() {
			return v, nil
		}
		return other.calculateValue(e, c)
	}
	o.pres = func(e *EvalCtx, c valueConsumer) (bool, error) {
		present, err := p.calculatePresence(e, c)
		if err != nil || present {
			return present, err
		}
		return other.calculatePresence(e, c)
	}
	o.etv = func(e *EvalCtx) (ExecutionTimeValue[T], error) {
		up, err := p.calculateExecutionTimeValue(e)
		if err != nil {
			return ExecutionTimeValue[T]{}, err
		}
		if up.HasFixedValue() {
			return up, nil
		}
		if up.IsMissing() {
			return other.calculateExecutionTimeValue(e)
		}
		return ChangingExecutionTimeValue[T](o), nil
	}
	o.prod = func(e *EvalCtx) (ValueProducer, error) {
		left, err := p.calculateProducer(e)
		if err != nil {
			return ValueProducer{}, err
		}
		right, err := other.calculateProducer(e)
		if err != nil {
			return ValueProducer{}, err
		}
		return left.Plus(right), nil
	}
	return o
}
