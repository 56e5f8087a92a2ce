package props

// SideEffect is a deferred action bound to a realized value. Effects fire
// when a consumer extracts the payload, never on presence checks or
// execution-time-value collapsing.
type SideEffect[T any] func(T)

// FixedFrom captures the payload and pending effects of an already realized
// value into an effect of another type. Firing the returned effect fires the
// source's effects against the source's payload, ignoring the input.
//
// Returns nil when the source is missing or carries no effects, so it can be
// passed straight to WithSideEffect.
func FixedFrom[T any, S any](source Value[S]) SideEffect[T] {
	if source.IsMissing() || len(source.sideEffects) == 0 {
		return nil
	}
	payload := source.value
	effects := source.sideEffects
	return func(T) {
		for _, effect := range effects {
			effect(payload)
		}
	}
}

// SideEffectBuilder accumulates effects from sub-computations in order
// before producing the composite effect.
type SideEffectBuilder[T any] struct {
	effects []SideEffect[T]
}

// Add appends an effect. Nil effects are ignored.
func (b *SideEffectBuilder[T]) Add(effect SideEffect[T]) {
	if effect != nil {
		b.effects = append(b.effects, effect)
	}
}

// Build returns the composite effect, or nil when nothing was added.
func (b *SideEffectBuilder[T]) Build() SideEffect[T] {
	switch len(b.effects) {
	case 0:
		return nil
	case 1:
		return b.effects[0]
	}
	effects := b.effects
	return func(v T) {
		for _, effect := range effects {
			effect(v)
		}
	}
}

// Value is the result of evaluating a provider: either present, wrapping a
// payload plus an ordered list of pending side effects, or missing, carrying
// an ordered diagnostic path explaining the cause. Present and missing are
// mutually exclusive.
type Value[T any] struct {
	value       T
	present     bool
	sideEffects []SideEffect[T]
	path        []string
}

// ValueOf wraps a payload into a present value with no pending effects.
func ValueOf[T any](v T) Value[T] {
	return Value[T]{value: v, present: true}
}

// ValueOfNilable wraps the pointee when non-nil, otherwise a missing value.
func ValueOfNilable[T any](v *T) Value[T] {
	if v == nil {
		return MissingValue[T]()
	}
	return ValueOf(*v)
}

// MissingValue constructs a missing value with an empty diagnostic path.
func MissingValue[T any]() Value[T] {
	return Value[T]{}
}

// MissingValueWithPath constructs a missing value carrying the given
// diagnostic path segments, outermost first.
func MissingValueWithPath[T any](segments ...string) Value[T] {
	return Value[T]{path: segments}
}

// IsPresent reports whether the value wraps a payload. It never fires
// side effects.
func (v Value[T]) IsPresent() bool {
	return v.present
}

// IsMissing reports whether the value has no payload.
func (v Value[T]) IsMissing() bool {
	return !v.present
}

// GetWithoutSideEffect returns the payload without firing pending effects.
// Panics with *IllegalStateError when the value is missing.
func (v Value[T]) GetWithoutSideEffect() T {
	if !v.present {
		panic(&IllegalStateError{Msg: "cannot extract the payload of a missing value"})
	}
	return v.value
}

// extract returns the payload and fires the pending effects in the order
// they were attached. Panics with *IllegalStateError when missing.
func (v Value[T]) extract() T {
	payload := v.GetWithoutSideEffect()
	for _, effect := range v.sideEffects {
		effect(payload)
	}
	return payload
}

// WithSideEffect appends an effect to fire on extraction. No-op when the
// value is missing or the effect is nil.
func (v Value[T]) WithSideEffect(effect SideEffect[T]) Value[T] {
	if !v.present || effect == nil {
		return v
	}
	effects := make([]SideEffect[T], 0, len(v.sideEffects)+1)
	effects = append(effects, v.sideEffects...)
	effects = append(effects, effect)
	v.sideEffects = effects
	return v
}

// SideEffect returns the composed pending effect, or nil when none.
func (v Value[T]) SideEffect() SideEffect[T] {
	b := SideEffectBuilder[T]{}
	for _, effect := range v.sideEffects {
		b.Add(effect)
	}
	return b.Build()
}

// PathToOrigin returns the diagnostic path of a missing value. Empty for
// present values and for plain missing values.
func (v Value[T]) PathToOrigin() []string {
	return v.path
}

// WithPathSegment appends a diagnostic segment. No-op on present values.
func (v Value[T]) WithPathSegment(segment string) Value[T] {
	if v.present {
		return v
	}
	path := make([]string, 0, len(v.path)+1)
	path = append(path, v.path...)
	path = append(path, segment)
	v.path = path
	return v
}

// MissingAs re-types a missing value, preserving its diagnostic path. Panics
// with *IllegalStateError when the source is present: a payload cannot be
// re-typed.
func MissingAs[U any, T any](v Value[T]) Value[U] {
	if v.present {
		panic(&IllegalStateError{Msg: "cannot re-type a present value"})
	}
	return Value[U]{path: v.path}
}
