package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "quote_editor"

// Background job collectors, labelled by task kind.
var (
	QueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "queue",
		Name:      "depth",
		Help:      "Ready or delayed tasks waiting per kind.",
	}, []string{"kind"})
	QueueEnqueuedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "queue",
		Name:      "enqueued_total",
		Help:      "Enqueue calls per kind, by result (new, duplicate).",
	}, []string{"kind", "result"})
	QueueProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: "queue",
		Name:      "processed_total",
		Help:      "Handled tasks per kind, by outcome (ok, retry, dead).",
	}, []string{"kind", "status"})
	QueueDLQSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Subsystem: "queue",
		Name:      "dlq_size",
		Help:      "Dead-lettered tasks per kind.",
	}, []string{"kind"})
	QueueTaskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Subsystem: "queue",
		Name:      "task_duration_seconds",
		Help:      "Handler latency per kind. Reprice jobs wait on the quote backend.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"kind"})
)
