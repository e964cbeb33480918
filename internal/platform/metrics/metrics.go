package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds process-level Prometheus metrics.
type Metrics struct {
	BuildInfo        *prometheus.GaugeVec
	ComponentHealthy *prometheus.GaugeVec
	SchedulerRuns    *prometheus.CounterVec
}

// New creates and registers process-level metrics.
func New() *Metrics {
	return &Metrics{
		BuildInfo: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "communitybot_build_info",
			Help: "Build information for the running bot",
		}, []string{"version"}),
		ComponentHealthy: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "communitybot_component_healthy",
			Help: "1 when the last health probe of a component succeeded",
		}, []string{"component"}),
		SchedulerRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "communitybot_scheduler_runs_total",
			Help: "Periodic task executions by task and outcome",
		}, []string{"task", "outcome"}),
	}
}

func (m *Metrics) SetBuildInfo(version string) {
	m.BuildInfo.WithLabelValues(version).Set(1)
}

func (m *Metrics) SetComponentHealthy(component string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1
	}
	m.ComponentHealthy.WithLabelValues(component).Set(v)
}

func (m *Metrics) IncSchedulerRun(task, outcome string) {
	m.SchedulerRuns.WithLabelValues(task, outcome).Inc()
}

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
