package obs

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	domainOnce sync.Once

	// QuoteEditsTotal counts applied draft edits by edited field.
	QuoteEditsTotal *prometheus.CounterVec
	// QuoteSavesTotal counts draft saves to the quote backend by outcome.
	QuoteSavesTotal *prometheus.CounterVec
	// QuoteRepriceJobsTotal counts reprice jobs by outcome (enqueued, duplicate, ok, failed).
	QuoteRepriceJobsTotal *prometheus.CounterVec
	// QuoteGrandTotalUSD records the headline total of saved quotes.
	QuoteGrandTotalUSD prometheus.Histogram
)

// MustRegisterDomainMetrics initialises and registers domain-specific Prometheus collectors.
func MustRegisterDomainMetrics(namespace string, reg prometheus.Registerer) {
	domainOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		QuoteEditsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_edits_total",
			Help:      "Count of applied quote draft edits by field.",
		}, []string{"field"})
		QuoteSavesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_saves_total",
			Help:      "Count of quote saves by outcome.",
		}, []string{"result"})
		QuoteRepriceJobsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_reprice_jobs_total",
			Help:      "Count of quote reprice jobs by outcome.",
		}, []string{"result"})
		QuoteGrandTotalUSD = prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "quote_grand_total_usd",
			Help:      "Distribution of saved quote grand totals in USD.",
			Buckets:   []float64{500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
		})

		QuoteEditsTotal = register(reg, QuoteEditsTotal)
		QuoteSavesTotal = register(reg, QuoteSavesTotal)
		QuoteRepriceJobsTotal = register(reg, QuoteRepriceJobsTotal)
		QuoteGrandTotalUSD = register(reg, QuoteGrandTotalUSD)
	})
}

// CountEdit increments the edit counter when domain metrics are registered.
func CountEdit(field string) {
	if QuoteEditsTotal != nil {
		QuoteEditsTotal.WithLabelValues(field).Inc()
	}
}

// CountSave increments the save counter when domain metrics are registered.
func CountSave(result string) {
	if QuoteSavesTotal != nil {
		QuoteSavesTotal.WithLabelValues(result).Inc()
	}
}

// CountReprice increments the reprice counter when domain metrics are registered.
func CountReprice(result string) {
	if QuoteRepriceJobsTotal != nil {
		QuoteRepriceJobsTotal.WithLabelValues(result).Inc()
	}
}

// ObserveGrandTotal records a saved quote total.
func ObserveGrandTotal(usd float64) {
	if QuoteGrandTotalUSD != nil {
		QuoteGrandTotalUSD.Observe(usd)
	}
}
