// Package extensions provides optional evaluation observers for props.
package extensions

import (
	"strings"

	"github.com/rs/zerolog"

	props "github.com/pumped-fn/props-go"
)

// LoggingObserver logs every evaluation scope and detected cycle through a
// zerolog logger.
type LoggingObserver struct {
	props.BaseObserver
	log zerolog.Logger
}

// NewLoggingObserver creates a new logging observer.
func NewLoggingObserver(log zerolog.Logger) *LoggingObserver {
	return &LoggingObserver{
		BaseObserver: props.NewBaseObserver("logging"),
		log:          log,
	}
}

func (o *LoggingObserver) ScopeOpened(owner string, depth int) {
	o.log.Trace().
		Str("observer", o.Name()).
		Str("owner", owner).
		Int("depth", depth).
		Msg("evaluation scope opened")
}

func (o *LoggingObserver) ScopeClosed(owner string, depth int) {
	o.log.Trace().
		Str("observer", o.Name()).
		Str("owner", owner).
		Int("depth", depth).
		Msg("evaluation scope closed")
}

func (o *LoggingObserver) OnCycle(chain []string) {
	o.log.Error().
		Str("observer", o.Name()).
		Str("chain", strings.Join(chain, " -> ")).
		Msg("circular evaluation detected")
}
