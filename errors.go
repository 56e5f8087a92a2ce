package props

import (
	"fmt"
	"strings"
)

// CircularEvaluationError is returned when a property's evaluation chain
// re-enters its own owner. Chain holds the ordered owner names, outermost
// first, ending with the owner whose re-entry was detected.
type CircularEvaluationError struct {
	Chain []string
}

func (e *CircularEvaluationError) Error() string {
	return fmt.Sprintf("circular evaluation detected: %s", strings.Join(e.Chain, " -> "))
}

// MissingValueError is returned when a presence-demanding accessor is
// invoked on a source that has no value. Path, when non-empty, names the
// upstream contributors that produced no value, outermost first.
type MissingValueError struct {
	DisplayName string
	Path        []string
}

func (e *MissingValueError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "cannot query the value of %s because it has no value available", e.DisplayName)
	for _, segment := range e.Path {
		b.WriteString("\n  - ")
		b.WriteString(segment)
	}
	return b.String()
}

// InvalidArgumentError is the panic value raised immediately at a call that
// violates a mutator's contract: a nil key, value, element or provider, or
// a type-incompatible assignment.
type InvalidArgumentError struct {
	Msg string
}

func (e *InvalidArgumentError) Error() string {
	return e.Msg
}

func invalidArgumentf(format string, args ...any) *InvalidArgumentError {
	return &InvalidArgumentError{Msg: fmt.Sprintf(format, args...)}
}

// UnsupportedOperationError is the panic value raised when mutating a
// finalized property.
type UnsupportedOperationError struct {
	Op          string
	DisplayName string
}

func (e *UnsupportedOperationError) Error() string {
	return fmt.Sprintf("cannot %s for %s: the value of this property is final", e.Op, e.DisplayName)
}

// IllegalStateError is the panic value raised when a caller extracts a
// payload from a value known to be missing, or otherwise observes a state
// the accessor does not tolerate.
type IllegalStateError struct {
	Msg string
}

func (e *IllegalStateError) Error() string {
	return e.Msg
}
