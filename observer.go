package props

import "sync"

// EvaluationObserver provides hooks into the evaluation lifecycle. Observers
// see every guard scope open and close, plus detected cycles, and are the
// intended seam for logging and tracing.
type EvaluationObserver interface {
	// Name returns the observer's name.
	Name() string

	// ScopeOpened is called after an owner's scope was pushed onto a chain.
	// Depth is the chain depth including the new scope.
	ScopeOpened(owner string, depth int)

	// ScopeClosed is called before an owner's scope is popped.
	ScopeClosed(owner string, depth int)

	// OnCycle is called when opening a scope detected a circular evaluation.
	OnCycle(chain []string)
}

// BaseObserver provides default no-op implementations for
// EvaluationObserver methods.
type BaseObserver struct {
	name string
}

// NewBaseObserver creates a new base observer with the given name.
func NewBaseObserver(name string) BaseObserver {
	return BaseObserver{name: name}
}

func (o *BaseObserver) Name() string {
	return o.name
}

func (o *BaseObserver) ScopeOpened(owner string, depth int) {
}

func (o *BaseObserver) ScopeClosed(owner string, depth int) {
}

func (o *BaseObserver) OnCycle(chain []string) {
}

var (
	observerMu sync.RWMutex
	observers  []EvaluationObserver
)

// RegisterObserver registers an evaluation observer and returns a function
// that removes it again.
func RegisterObserver(obs EvaluationObserver) (remove func()) {
	observerMu.Lock()
	observers = append(observers, obs)
	observerMu.Unlock()

	return func() {
		observerMu.Lock()
		defer observerMu.Unlock()
		for i, o := range observers {
			if o == obs {
				observers = append(observers[:i], observers[i+1:]...)
				return
			}
		}
	}
}

func notifyOpened(owner string, depth int) {
	observerMu.RLock()
	defer observerMu.RUnlock()
	for _, o := range observers {
		o.ScopeOpened(owner, depth)
	}
}

func notifyClosed(owner string, depth int) {
	observerMu.RLock()
	defer observerMu.RUnlock()
	for _, o := range observers {
		o.ScopeClosed(owner, depth)
	}
}

func notifyCycle(chain []string) {
	observerMu.RLock()
	defer observerMu.RUnlock()
	for _, o := range observers {
		o.OnCycle(chain)
	}
}
