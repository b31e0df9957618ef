package events

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes event-log volumes to prometheus.
type Metrics struct {
	recorded *prometheus.CounterVec
	anomalies prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		recorded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "security_events_total",
			Help:      "Security events recorded, by type and outcome.",
		}, []string{"event_type", "success"}),
		anomalies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "authcore",
			Name:      "anomalies_detected_total",
			Help:      "Anomalies flagged by the background detection sweep.",
		}),
	}
	reg.MustRegister(m.recorded, m.anomalies)
	return m
}

func (m *Metrics) ObserveEvent(eventType string, success bool) {
	outcome := "false"
	if success {
		outcome = "true"
	}
	m.recorded.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) ObserveAnomaly() {
	m.anomalies.Inc()
}
