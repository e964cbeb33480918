package permission

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Decisions *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "communitybot_permission_decisions_total",
			Help: "Permission decisions by outcome and deciding rule",
		}, []string{"outcome", "step"}),
	}
}

func (m *Metrics) observe(d Decision) {
	if m == nil {
		return
	}
	outcome := "denied"
	if d.Allowed {
		outcome = "granted"
	}
	m.Decisions.WithLabelValues(outcome, string(d.Step)).Inc()
}
