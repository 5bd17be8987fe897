package httpclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	attemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourline_http_client_attempts_total",
			Help: "Total number of dispatched request attempts by outcome (success, retry, terminal)",
		},
		[]string{"method", "outcome"},
	)

	retriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tourline_http_client_retries_total",
			Help: "Total number of retries scheduled after a transient failure",
		},
		[]string{"method"},
	)

	sessionInvalidations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tourline_http_client_session_invalidations_total",
			Help: "Total number of 401 responses from the session-check endpoint",
		},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tourline_http_client_request_duration_seconds",
			Help:    "Duration of a single request attempt in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "status"},
	)

	circuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tourline_circuit_breaker_state",
			Help: "Current state of the circuit breaker (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)
