package backend

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Requests        *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	Retries         *prometheus.CounterVec
	BreakerOpen     prometheus.Gauge
	StaleServed     *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "communitybot_backend_requests_total",
			Help: "Backend API attempts by route, method and outcome",
		}, []string{"route", "method", "outcome"}),
		RequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "communitybot_backend_request_duration_seconds",
			Help:    "Backend API attempt latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method"}),
		Retries: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "communitybot_backend_retries_total",
			Help: "Backend API retries by route",
		}, []string{"route"}),
		BreakerOpen: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "communitybot_backend_circuit_open",
			Help: "1 while the backend circuit breaker is open",
		}),
		StaleServed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "communitybot_backend_stale_reads_total",
			Help: "Cached reads served from the last known good copy",
		}, []string{"route"}),
	}
}

func (m *Metrics) observeRequest(route, method, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(route, method, outcome).Inc()
	m.RequestDuration.WithLabelValues(route, method).Observe(d.Seconds())
}

func (m *Metrics) observeRetry(route string) {
	if m == nil {
		return
	}
	m.Retries.WithLabelValues(route).Inc()
}

func (m *Metrics) setBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}

func (m *Metrics) observeStale(route string) {
	if m == nil {
		return
	}
	m.StaleServed.WithLabelValues(route).Inc()
}
