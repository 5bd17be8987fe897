package httpclient

import (
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	apperrors "github.com/pbengoa/Tourline-front-sub001/pkg/errors"
)

// CircuitBreakerConfig holds configuration for the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies this breaker (used in metrics and logs).
	Name string

	// MaxRequests is the maximum number of requests allowed in the half-open state.
	// 0 means 1 request is allowed.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state for clearing internal counts.
	// 0 means internal counts are never cleared during the closed state.
	Interval time.Duration

	// Timeout is how long the breaker stays open before moving to half-open.
	Timeout time.Duration

	// FailureRatio is the ratio of failures to total requests that trips the breaker.
	FailureRatio float64

	// MinRequests is the minimum number of requests needed before the failure ratio is evaluated.
	MinRequests uint32
}

// DefaultCircuitBreakerConfig returns sensible defaults for a circuit breaker.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.5,
		MinRequests:  5,
	}
}

// ErrCircuitOpen is returned (wrapped in a network AppError) when the breaker
// rejects a request.
var ErrCircuitOpen = gobreaker.ErrOpenState

// WithCircuitBreaker guards each logical request (after its retries) with a
// breaker. Only network and server failures count against it; 4xx answers
// prove the backend is reachable.
func WithCircuitBreaker(cbCfg CircuitBreakerConfig) Option {
	return func(c *Client) {
		settings := gobreaker.Settings{
			Name:        cbCfg.Name,
			MaxRequests: cbCfg.MaxRequests,
			Interval:    cbCfg.Interval,
			Timeout:     cbCfg.Timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				if counts.Requests < cbCfg.MinRequests {
					return false
				}
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return failureRatio >= cbCfg.FailureRatio
			},
			IsSuccessful: func(err error) bool {
				if err == nil {
					return true
				}
				kind := apperrors.KindOf(err)
				return kind != apperrors.KindNetwork && kind != apperrors.KindServer
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				c.logger.Warn("circuit breaker state change",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
				circuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			},
		}

		c.breaker = gobreaker.NewCircuitBreaker[*Response](settings)
		c.breakerName = cbCfg.Name
		circuitBreakerState.WithLabelValues(cbCfg.Name).Set(0)
	}
}

// BreakerState returns the breaker state, or StateClosed when no breaker is configured.
func (c *Client) BreakerState() gobreaker.State {
	if c.breaker == nil {
		return gobreaker.StateClosed
	}
	return c.breaker.State()
}

// stateToFloat maps gobreaker states to prometheus gauge values.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
