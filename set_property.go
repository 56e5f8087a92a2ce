package props

// setBuilder keeps the first occurrence of each element and drops later
// duplicates, preserving contribution order.
type setBuilder[T comparable] struct {
	seen     map[T]struct{}
	elements []T
}

func (b *setBuilder[T]) add(v T) {
	if b.seen == nil {
		b.seen = make(map[T]struct{})
	}
	if _, ok := b.seen[v]; ok {
		return
	}
	b.seen[v] = struct{}{}
	b.elements = append(b.elements, v)
}

func (b *setBuilder[T]) values() []T { return b.elements }

// SetProperty is a property holding an ordered set of elements: the first
// occurrence of an element wins its position, later duplicates are dropped.
type SetProperty[T comparable] struct {
	collectionProperty[T]
}

// NewSetProperty creates a set property that is present and empty.
func NewSetProperty[T comparable]() *SetProperty[T] {
	return &SetProperty[T]{
		collectionProperty: newCollectionProperty[T]("set property", func() collectionBuilder[T] {
			return &setBuilder[T]{}
		}),
	}
}

// Named attaches a display name used in diagnostics.
func (p *SetProperty[T]) Named(name string) *SetProperty[T] {
	p.named("set property", name)
	return p
}

// Value replaces the accumulation with the given elements and returns the
// property for chaining.
func (p *SetProperty[T]) Value(vs []T) *SetProperty[T] {
	p.Set(vs)
	return p
}

// ValueProvider replaces the accumulation with a provider and returns the
// property.
func (p *SetProperty[T]) ValueProvider(provider Provider[[]T]) *SetProperty[T] {
	p.SetProvider(provider)
	return p
}

// Empty replaces the accumulation with a present, empty set.
func (p *SetProperty[T]) Empty() *SetProperty[T] {
	p.collectionProperty.Empty()
	return p
}

// Convention replaces the convention elements; nil discards the convention.
func (p *SetProperty[T]) Convention(vs []T) *SetProperty[T] {
	p.collectionProperty.Convention(vs)
	return p
}

// ConventionProvider replaces the convention with a provider.
func (p *SetProperty[T]) ConventionProvider(provider Provider[[]T]) *SetProperty[T] {
	p.collectionProperty.ConventionProvider(provider)
	return p
}

// Unset discards the explicit value, re-enabling convention fallback.
func (p *SetProperty[T]) Unset() *SetProperty[T] {
	p.collectionProperty.Unset()
	return p
}

// UnsetConvention discards the convention.
func (p *SetProperty[T]) UnsetConvention() *SetProperty[T] {
	p.collectionProperty.UnsetConvention()
	return p
}
