package props

type executionTimeValueKind int

const (
	execMissing executionTimeValueKind = iota
	execFixed
	execChanging
)

// ExecutionTimeValue is the collapsible snapshot representation of a
// provider or property, consumed by the snapshot/cache layer. It is one of:
//
//   - missing: the source has no value
//   - fixed: a concrete payload, with its pending side effect and a flag
//     marking whether the pointed-to content may still change in
//     value-equality terms
//   - changing: a handle to a provider that must be re-evaluated on demand
type ExecutionTimeValue[T any] struct {
	kind            executionTimeValueKind
	fixed           T
	sideEffect      SideEffect[T]
	changingContent bool
	changing        Provider[T]
}

// MissingExecutionTimeValue is the snapshot of a source with no value.
func MissingExecutionTimeValue[T any]() ExecutionTimeValue[T] {
	return ExecutionTimeValue[T]{kind: execMissing}
}

// FixedExecutionTimeValue snapshots a concrete payload.
func FixedExecutionTimeValue[T any](v T) ExecutionTimeValue[T] {
	return ExecutionTimeValue[T]{kind: execFixed, fixed: v}
}

// ChangingExecutionTimeValue wraps a provider that must be re-evaluated on
// every run.
func ChangingExecutionTimeValue[T any](p Provider[T]) ExecutionTimeValue[T] {
	return ExecutionTimeValue[T]{kind: execChanging, changing: p}
}

// IsMissing reports whether the snapshot carries no value.
func (v ExecutionTimeValue[T]) IsMissing() bool {
	return v.kind == execMissing
}

// HasFixedValue reports whether the snapshot carries a concrete payload.
func (v ExecutionTimeValue[T]) HasFixedValue() bool {
	return v.kind == execFixed
}

// IsChanging reports whether the snapshot must be re-evaluated on demand.
func (v ExecutionTimeValue[T]) IsChanging() bool {
	return v.kind == execChanging
}

// FixedValue returns the fixed payload. Panics with *IllegalStateError on
// non-fixed snapshots.
func (v ExecutionTimeValue[T]) FixedValue() T {
	if v.kind != execFixed {
		panic(&IllegalStateError{Msg: "execution-time value has no fixed value"})
	}
	return v.fixed
}

// ChangingValue returns the provider handle of a changing snapshot. Panics
// with *IllegalStateError otherwise.
func (v ExecutionTimeValue[T]) ChangingValue() Provider[T] {
	if v.kind != execChanging {
		panic(&IllegalStateError{Msg: "execution-time value is not changing"})
	}
	return v.changing
}

// HasChangingContent reports whether the snapshot's content may differ
// between reads even when the reference is fixed. Changing snapshots always
// have changing content.
func (v ExecutionTimeValue[T]) HasChangingContent() bool {
	return v.changingContent || v.kind == execChanging
}

// WithChangingContent marks a fixed snapshot's content as mutable. The flag
// must propagate through every composition that merges fixed values. No-op
// on missing and changing snapshots.
func (v ExecutionTimeValue[T]) WithChangingContent() ExecutionTimeValue[T] {
	if v.kind == execFixed {
		v.changingContent = true
	}
	return v
}

// WithSideEffect attaches an effect. Fixed snapshots compose it with any
// pending effect; changing snapshots push it down into the provider handle;
// missing snapshots are unaffected.
func (v ExecutionTimeValue[T]) WithSideEffect(effect SideEffect[T]) ExecutionTimeValue[T] {
	if effect == nil {
		return v
	}
	switch v.kind {
	case execFixed:
		b := SideEffectBuilder[T]{}
		b.Add(v.sideEffect)
		b.Add(effect)
		v.sideEffect = b.Build()
	case execChanging:
		v.changing = WithSideEffect(v.changing, effect)
	}
	return v
}

// SideEffect returns the pending effect of a fixed snapshot, or nil.
func (v ExecutionTimeValue[T]) SideEffect() SideEffect[T] {
	return v.sideEffect
}

// ToProvider lifts the snapshot back into the provider abstraction for
// further composition.
func (v ExecutionTimeValue[T]) ToProvider() Provider[T] {
	switch v.kind {
	case execFixed:
		fixed := v.fixed
		effect := v.sideEffect
		return &providerFn[T]{
			typ: typeOf[T](),
			calc: func(*EvalCtx, valueConsumer) (Value[T], error) {
				return ValueOf(fixed).WithSideEffect(effect), nil
			},
			etv: func(*EvalCtx) (ExecutionTimeValue[T], error) {
				return v, nil
			},
		}
	case execChanging:
		return v.changing
	default:
		return Missing[T]()
	}
}
