package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	UpsertsTotal   *prometheus.CounterVec
	UpsertRetries  prometheus.Counter
	UpsertDuration prometheus.Histogram
	LegalRiskTotal *prometheus.CounterVec
}

// New registers the verification metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		UpsertsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propnest_verification_upserts_total",
			Help: "Verification record upserts by outcome (created, refreshed, failed)",
		}, []string{"outcome"}),
		UpsertRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "propnest_verification_upsert_retries_total",
			Help: "Upsert attempts retried after a transient write conflict",
		}),
		UpsertDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "propnest_verification_upsert_duration_seconds",
			Help:    "Latency of verification record upserts including retries",
			Buckets: prometheus.DefBuckets,
		}),
		LegalRiskTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propnest_verification_legal_risk_total",
			Help: "Computed legal risk levels",
		}, []string{"level"}),
	}
}

func (m *Metrics) IncrementUpsert(outcome string) {
	m.UpsertsTotal.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementRetry() {
	m.UpsertRetries.Inc()
}

func (m *Metrics) ObserveUpsert(start time.Time) {
	m.UpsertDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementLegalRisk(level string) {
	m.LegalRiskTotal.WithLabelValues(level).Inc()
}
