package dispatcher

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"communitybot/internal/interaction"
)

type Metrics struct {
	Interactions     *prometheus.CounterVec
	DispatchDuration *prometheus.HistogramVec
	HandlerPanics    *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Interactions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "communitybot_dispatcher_interactions_total",
			Help: "Interactions dispatched by kind and pipeline outcome",
		}, []string{"kind", "outcome"}),
		DispatchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "communitybot_dispatcher_duration_seconds",
			Help:    "Time from arrival to reply",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"kind"}),
		HandlerPanics: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "communitybot_dispatcher_handler_panics_total",
			Help: "Recovered handler panics by command",
		}, []string{"command"}),
	}
}

func (m *Metrics) observeDispatch(kind interaction.Kind, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Interactions.WithLabelValues(string(kind), outcome).Inc()
	m.DispatchDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

func (m *Metrics) observePanic(command string) {
	if m == nil {
		return
	}
	m.HandlerPanics.WithLabelValues(command).Inc()
}
