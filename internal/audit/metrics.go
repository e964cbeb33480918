package audit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Entries       *prometheus.CounterVec
	WriteFailures prometheus.Counter
	SinkFailures  prometheus.Counter
	QueueDepth    prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		Entries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "communitybot_audit_entries_total",
			Help: "Audit entries persisted by type",
		}, []string{"type"}),
		WriteFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "communitybot_audit_write_failures_total",
			Help: "Audit entries the store rejected",
		}),
		SinkFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "communitybot_audit_sink_failures_total",
			Help: "Audit entries a mirror sink failed to publish",
		}),
		QueueDepth: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "communitybot_audit_queue_depth",
			Help: "Entries waiting in the async audit buffer",
		}),
	}
}
