package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	DuplicateChecks  *prometheus.CounterVec
	PriceChecks      *prometheus.CounterVec
	RateLimitChecks  *prometheus.CounterVec
	CheckDurationSec *prometheus.HistogramVec
}

// New registers the fraud detector metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DuplicateChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propnest_fraud_duplicate_checks_total",
			Help: "Duplicate listing checks by result (duplicate, unique, skipped)",
		}, []string{"result"}),
		PriceChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propnest_fraud_price_checks_total",
			Help: "Price anomaly checks by result (anomaly, normal, insufficient)",
		}, []string{"result"}),
		RateLimitChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propnest_fraud_rate_limit_checks_total",
			Help: "Listing rate limit checks by result (allowed, denied)",
		}, []string{"result"}),
		CheckDurationSec: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "propnest_fraud_check_duration_seconds",
			Help:    "Latency of integrity checks",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}, []string{"check"}),
	}
}

func (m *Metrics) IncrementDuplicate(result string) {
	m.DuplicateChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementPrice(result string) {
	m.PriceChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) IncrementRateLimit(result string) {
	m.RateLimitChecks.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveCheck(check string, start time.Time) {
	m.CheckDurationSec.WithLabelValues(check).Observe(time.Since(start).Seconds())
}
