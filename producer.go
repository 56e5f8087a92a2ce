package props

// ValueProducer is an opaque description of what would produce a value. It
// is consumed by the work-graph collaborator to discover producers without
// forcing the value's computation.
type ValueProducer struct {
	known bool
	units []any
}

// UnknownValueProducer describes a value whose producer cannot be
// determined.
func UnknownValueProducer() ValueProducer {
	return ValueProducer{}
}

// NoValueProducer describes a value that no unit of work produces, such as
// a literal.
func NoValueProducer() ValueProducer {
	return ValueProducer{known: true}
}

// ProducerOf describes a value produced by the given unit of work. The unit
// is opaque to this engine.
func ProducerOf(unit any) ValueProducer {
	return ValueProducer{known: true, units: []any{unit}}
}

// IsKnown reports whether the producer could be determined.
func (p ValueProducer) IsKnown() bool {
	return p.known
}

// Plus combines two producer descriptions. The combination is known only
// when both sides are.
func (p ValueProducer) Plus(o ValueProducer) ValueProducer {
	units := make([]any, 0, len(p.units)+len(o.units))
	units = append(units, p.units...)
	units = append(units, o.units...)
	return ValueProducer{known: p.known && o.known, units: units}
}

// VisitProducers calls fn for each producing unit, in contribution order.
func (p ValueProducer) VisitProducers(fn func(unit any)) {
	for _, unit := range p.units {
		fn(unit)
	}
}
