package push

import "github.com/prometheus/client_golang/prometheus"

// Outcome label values for push_deliveries_total.
const (
	outcomeSent      = "sent"
	outcomeFailed    = "failed"
	outcomePruned    = "pruned"
	outcomeTimeout   = "timeout"
	outcomeShortCirc = "circuit_open"
	outcomeDisabled  = "disabled"
)

var (
	// deliveries counts per-endpoint outcomes by channel.
	deliveries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_deliveries_total",
			Help: "Push delivery outcomes per endpoint.",
		},
		[]string{"channel", "outcome"},
	)

	// pruned counts endpoints removed after a permanent failure.
	pruned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_endpoints_pruned_total",
			Help: "Endpoints removed after a permanent provider failure.",
		},
		[]string{"channel"},
	)

	// circuitOpen is 1 while the mobile breaker rejects calls.
	circuitOpen = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "push_circuit_open",
			Help: "1 when the mobile push circuit breaker is open.",
		},
	)

	// dispatchDur records the wall time of one channel call.
	dispatchDur = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "push_dispatch_duration_seconds",
			Help:    "Duration of a push channel call in seconds.",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
		[]string{"channel"},
	)
)

func init() {
	prometheus.MustRegister(deliveries, pruned, circuitOpen, dispatchDur)
}

func observeBreaker(cb *CircuitBreaker) {
	if cb.State() == CircuitOpen {
		circuitOpen.Set(1)
		return
	}
	circuitOpen.Set(0)
}
