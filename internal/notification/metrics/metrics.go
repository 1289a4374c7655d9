package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EventsPublished *prometheus.CounterVec
	PublishFailures prometheus.Counter
	BatchSize       prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsPublished: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propnest_notification_events_published_total",
			Help: "Outbox events produced to Kafka by topic",
		}, []string{"topic"}),
		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "propnest_notification_publish_failures_total",
			Help: "Relay batches that failed to produce",
		}),
		BatchSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "propnest_notification_batch_size",
			Help: "Size of the last outbox batch picked up by the relay",
		}),
	}
}

func (m *Metrics) IncrementPublished(topic string) {
	m.EventsPublished.WithLabelValues(topic).Inc()
}

func (m *Metrics) IncrementFailure() {
	m.PublishFailures.Inc()
}

func (m *Metrics) SetBatch(n int) {
	m.BatchSize.Set(float64(n))
}
