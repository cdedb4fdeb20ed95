package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "quote_editor"

// Upstream collectors, labelled by target (the quote backend today).
var (
	BreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "upstream",
		Name:      "breaker_state",
		Help:      "Breaker state per upstream: 0 closed, 1 open, 2 half-open.",
	}, []string{"target"})
	BreakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "upstream",
		Name:      "breaker_transitions_total",
		Help:      "Breaker state changes per upstream.",
	}, []string{"target", "from", "to"})
	BreakerOpenedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "upstream",
		Name:      "breaker_opened_total",
		Help:      "Times the breaker tripped open.",
	}, []string{"target"})
	ShortCircuited = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "upstream",
		Name:      "short_circuited_total",
		Help:      "Calls refused without reaching the upstream because the breaker was open.",
	}, []string{"target"})
	RetryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "upstream",
		Name:      "retries_total",
		Help:      "Retries issued after a transient upstream failure, by cause.",
	}, []string{"target", "cause"})
)
