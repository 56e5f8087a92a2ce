package props

// owner is the identity of a property instance for re-entrancy detection.
// Identity is by pointer; the display name is for diagnostics only.
type owner struct {
	displayName string
}

// valueConsumer describes why a value is being calculated. It is threaded
// through every supplier operation so collectors can distinguish a full
// read from a presence check.
type valueConsumer int

const (
	forValue valueConsumer = iota
	forPresence
)

// EvalCtx is one synchronous evaluation chain: a stack of the owners whose
// evaluation scopes are currently open. A fresh chain is created at every
// public terminal accessor and threaded through every composed provider and
// supplier, so chains on different goroutines never observe each other.
//
// Factory functions passed to Provide receive the chain and must route any
// nested provider read through Eval so that re-entrant evaluation of an
// already open owner is caught instead of recursing unboundedly.
type EvalCtx struct {
	stack []*owner
}

func newEvalCtx() *EvalCtx {
	return &EvalCtx{}
}

// open pushes an owner's scope onto the chain. It fails with
// *CircularEvaluationError when the owner is already open anywhere in the
// chain. The returned release function must be called on every exit path.
func (e *EvalCtx) open(o *owner) (release func(), err error) {
	for _, open := range e.stack {
		if open == o {
			chain := make([]string, 0, len(e.stack)+1)
			for _, c := range e.stack {
				chain = append(chain, c.displayName)
			}
			chain = append(chain, o.displayName)
			notifyCycle(chain)
			return nil, &CircularEvaluationError{Chain: chain}
		}
	}
	e.stack = append(e.stack, o)
	notifyOpened(o.displayName, len(e.stack))
	return func() {
		notifyClosed(o.displayName, len(e.stack))
		e.stack = e.stack[:len(e.stack)-1]
	}, nil
}
