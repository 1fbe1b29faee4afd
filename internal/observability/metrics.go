package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// TicketsObserved counts observe decisions per cycle.
	TicketsObserved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketsmith_tickets_observed_total",
			Help: "Total tickets evaluated by the tracker",
		},
		[]string{"decision"},
	)

	// TicketsCompleted counts dispatched attempts by outcome.
	TicketsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketsmith_tickets_completed_total",
			Help: "Total dispatched attempts by outcome",
		},
		[]string{"outcome"},
	)

	// CircuitState exposes the breaker state per service
	// (0 closed, 1 half-open, 2 open).
	CircuitState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ticketsmith_circuit_state",
			Help: "Circuit breaker state per external service (0 closed, 1 half-open, 2 open)",
		},
		[]string{"service"},
	)

	// CycleDuration tracks how long one poll cycle takes.
	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ticketsmith_cycle_duration_seconds",
			Help:    "Poll cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ExternalCallFailures counts failures reported to the breakers.
	ExternalCallFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ticketsmith_external_call_failures_total",
			Help: "External call failures per service",
		},
		[]string{"service"},
	)
)

// CircuitStateValue maps a breaker state string to its gauge value.
func CircuitStateValue(state string) float64 {
	switch state {
	case "open":
		return 2
	case "half-open":
		return 1
	default:
		return 0
	}
}
