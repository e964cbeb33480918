package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Requests   *prometheus.CounterVec
	Errors     *prometheus.CounterVec
	Connected  prometheus.Gauge
	Reconnects *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		Requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "communitybot_cache_requests_total",
			Help: "Cache reads by prefix and result (hit, miss, degraded)",
		}, []string{"prefix", "result"}),
		Errors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "communitybot_cache_errors_total",
			Help: "Cache transport errors by operation",
		}, []string{"op"}),
		Connected: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "communitybot_cache_connected",
			Help: "1 while the cache transport is connected",
		}),
		Reconnects: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "communitybot_cache_reconnect_attempts_total",
			Help: "Reconnection attempts by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) observeRead(prefix Prefix, result string) {
	if m == nil {
		return
	}
	m.Requests.WithLabelValues(string(prefix), result).Inc()
}

func (m *Metrics) observeError(op string) {
	if m == nil {
		return
	}
	m.Errors.WithLabelValues(op).Inc()
}

func (m *Metrics) setConnected(v bool) {
	if m == nil {
		return
	}
	if v {
		m.Connected.Set(1)
	} else {
		m.Connected.Set(0)
	}
}

func (m *Metrics) observeReconnect(outcome string) {
	if m == nil {
		return
	}
	m.Reconnects.WithLabelValues(outcome).Inc()
}
