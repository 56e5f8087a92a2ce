package props

// ListProperty is a property holding an ordered list of elements.
// Contributions are concatenated in left-to-right order.
type ListProperty[T any] struct {
	collectionProperty[T]
}

// NewListProperty creates a list property that is present and empty.
func NewListProperty[T any]() *ListProperty[T] {
	return &ListProperty[T]{
		collectionProperty: newCollectionProperty[T]("list property", func() collectionBuilder[T] {
			return &listBuilder[T]{}
		}),
	}
}

// Named attaches a display name used in diagnostics.
func (p *ListProperty[T]) Named(name string) *ListProperty[T] {
	p.named("list property", name)
	return p
}

// Value replaces the accumulation with the given elements and returns the
// property for chaining.
func (p *ListProperty[T]) Value(vs []T) *ListProperty[T] {
	p.Set(vs)
	return p
}

// ValueProvider replaces the accumulation with a provider and returns the
// property.
func (p *ListProperty[T]) ValueProvider(provider Provider[[]T]) *ListProperty[T] {
	p.SetProvider(provider)
	return p
}

// Empty replaces the accumulation with a present, empty list.
func (p *ListProperty[T]) Empty() *ListProperty[T] {
	p.collectionProperty.Empty()
	return p
}

// Convention replaces the convention elements; nil discards the convention.
func (p *ListProperty[T]) Convention(vs []T) *ListProperty[T] {
	p.collectionProperty.Convention(vs)
	return p
}

// ConventionProvider replaces the convention with a provider.
func (p *ListProperty[T]) ConventionProvider(provider Provider[[]T]) *ListProperty[T] {
	p.collectionProperty.ConventionProvider(provider)
	return p
}

// Unset discards the explicit value, re-enabling convention fallback.
func (p *ListProperty[T]) Unset() *ListProperty[T] {
	p.collectionProperty.Unset()
	return p
}

// UnsetConvention discards the convention.
func (p *ListProperty[T]) UnsetConvention() *ListProperty[T] {
	p.collectionProperty.UnsetConvention()
	return p
}
