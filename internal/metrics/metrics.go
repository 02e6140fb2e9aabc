// Package metrics holds the Prometheus collectors exported by the pricing service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tm-acme-shop/acme-shop-pricing-service/internal/pricing"
)

const namespace = "pricing"

// Outcomes recorded on the calculations counter.
const (
	OutcomeSuccess = "success"
	OutcomeInvalid = "invalid"
	OutcomeError   = "error"
)

// Metrics groups the service collectors. A nil *Metrics records nothing.
type Metrics struct {
	calculations       *prometheus.CounterVec
	validationFailures *prometheus.CounterVec
	duration           prometheus.Histogram
	quotesCreated      prometheus.Counter
	cacheRequests      *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		calculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calculations_total",
			Help:      "Totals calculations by outcome.",
		}, []string{"outcome"}),
		validationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "validation_failures_total",
			Help:      "Rejected pricing inputs by error kind.",
		}, []string{"kind"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "calculation_duration_seconds",
			Help:      "Time spent computing order totals.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 8),
		}),
		quotesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quotes_created_total",
			Help:      "Quotes persisted.",
		}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "quote_cache_requests_total",
			Help:      "Quote cache lookups by result.",
		}, []string{"result"}),
	}

	for _, c := range []prometheus.Collector{
		m.calculations, m.validationFailures, m.duration, m.quotesCreated, m.cacheRequests,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveCalculation records one ComputeTotals call and its result.
func (m *Metrics) ObserveCalculation(started time.Time, err error) {
	if m == nil {
		return
	}
	m.duration.Observe(time.Since(started).Seconds())

	switch {
	case err == nil:
		m.calculations.WithLabelValues(OutcomeSuccess).Inc()
	case pricing.KindName(err) != "unknown":
		m.calculations.WithLabelValues(OutcomeInvalid).Inc()
		m.validationFailures.WithLabelValues(pricing.KindName(err)).Inc()
	default:
		m.calculations.WithLabelValues(OutcomeError).Inc()
	}
}

// QuoteCreated counts a persisted quote.
func (m *Metrics) QuoteCreated() {
	if m == nil {
		return
	}
	m.quotesCreated.Inc()
}

// CacheResult records a quote cache lookup as "hit", "miss" or "error".
func (m *Metrics) CacheResult(result string) {
	if m == nil {
		return
	}
	m.cacheRequests.WithLabelValues(result).Inc()
}
