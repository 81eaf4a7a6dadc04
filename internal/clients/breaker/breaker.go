// Package breaker builds the circuit breakers that guard market-data sources.
package breaker

import (
	"time"

	"github.com/sony/gobreaker"

	"github.com/bobmcallan/folio/internal/common"
)

// Settings tune when a source is considered down
type Settings struct {
	ConsecutiveFailures uint32        // trip after this many failures in a row
	OpenTimeout         time.Duration // how long to stay open before probing
	Interval            time.Duration // closed-state counter reset period

	// IsSuccessful reports errors that say nothing about source health,
	// such as an unknown symbol. Nil counts every error as a failure.
	IsSuccessful func(err error) bool
}

// DefaultSettings trips after five straight failures and probes again after a minute.
func DefaultSettings() Settings {
	return Settings{
		ConsecutiveFailures: 5,
		OpenTimeout:         60 * time.Second,
		Interval:            10 * time.Minute,
	}
}

// New creates a breaker named after its source. State changes are logged.
func New(name string, st Settings, logger *common.Logger) *gobreaker.CircuitBreaker {
	if st.ConsecutiveFailures == 0 {
		st.ConsecutiveFailures = DefaultSettings().ConsecutiveFailures
	}
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:         name,
		Interval:     st.Interval,
		Timeout:      st.OpenTimeout,
		IsSuccessful: st.IsSuccessful,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= st.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger == nil {
				return
			}
			logger.Warn().
				Str("source", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Circuit breaker state change")
		},
	})
}
