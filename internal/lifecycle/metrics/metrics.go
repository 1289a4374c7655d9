package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	TransitionsTotal      *prometheus.CounterVec
	EventsEnqueued        *prometheus.CounterVec
	TransitionDurationSec prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		TransitionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propnest_lifecycle_transitions_total",
			Help: "Lifecycle transitions by action and outcome",
		}, []string{"action", "outcome"}),
		EventsEnqueued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "propnest_lifecycle_events_enqueued_total",
			Help: "Lifecycle events written to the notification outbox",
		}, []string{"event_type", "audience"}),
		TransitionDurationSec: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "propnest_lifecycle_transition_duration_seconds",
			Help:    "Latency of a persisted lifecycle transition",
			Buckets: []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
	}
}

func (m *Metrics) IncrementTransition(action, outcome string) {
	m.TransitionsTotal.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) IncrementEvent(eventType, audience string) {
	m.EventsEnqueued.WithLabelValues(eventType, audience).Inc()
}

func (m *Metrics) ObserveTransition(start time.Time) {
	m.TransitionDurationSec.Observe(time.Since(start).Seconds())
}
