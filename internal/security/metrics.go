package security

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Events        *prometheus.CounterVec
	AlertsSent    *prometheus.CounterVec
	AlertsDropped prometheus.Counter
	AlertQueue    prometheus.Gauge
	Restricted    prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		Events: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "communitybot_security_events_total",
			Help: "Security events emitted by type and severity",
		}, []string{"type", "severity"}),
		AlertsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "communitybot_security_alerts_sent_total",
			Help: "Alert deliveries by mode and outcome",
		}, []string{"mode", "outcome"}),
		AlertsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "communitybot_security_alerts_dropped_total",
			Help: "Low severity alerts dropped above the queue high-water mark",
		}),
		AlertQueue: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "communitybot_security_alert_queue_depth",
			Help: "Alerts waiting for the next batch flush",
		}),
		Restricted: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "communitybot_security_restricted_users",
			Help: "Users currently restricted by the monitor",
		}),
	}
}

func (m *Metrics) observeEvent(e Event) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(string(e.Type), e.Severity.String()).Inc()
}

func (m *Metrics) observeAlert(mode string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.AlertsSent.WithLabelValues(mode, outcome).Inc()
}

func (m *Metrics) observeDrop() {
	if m == nil {
		return
	}
	m.AlertsDropped.Inc()
}

func (m *Metrics) setQueueDepth(n int) {
	if m == nil {
		return
	}
	m.AlertQueue.Set(float64(n))
}

func (m *Metrics) setRestricted(n int) {
	if m == nil {
		return
	}
	m.Restricted.Set(float64(n))
}
