package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ChecksTotal       *prometheus.CounterVec
	ViolationsTotal   *prometheus.CounterVec
	FailOpenTotal     prometheus.Counter
	TrackedEntries    prometheus.Gauge
	CompactionEvicted *prometheus.CounterVec
}

func New() *Metrics {
	return &Metrics{
		ChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "communitybot_ratelimit_checks_total",
			Help: "Total rate limit checks by action and outcome",
		}, []string{"action", "outcome"}),
		ViolationsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "communitybot_ratelimit_violations_total",
			Help: "Total rate limit violations by escalation level reached",
		}, []string{"escalation"}),
		FailOpenTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "communitybot_ratelimit_fail_open_total",
			Help: "Checks allowed because the limiter itself failed",
		}),
		TrackedEntries: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "communitybot_ratelimit_tracked_entries",
			Help: "Sliding windows held in memory after the last compaction",
		}),
		CompactionEvicted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "communitybot_ratelimit_compaction_evicted_total",
			Help: "Entries removed by compaction by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) RecordCheck(action string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "denied"
	}
	m.ChecksTotal.WithLabelValues(action, outcome).Inc()
}

func (m *Metrics) RecordViolation(escalation string) {
	m.ViolationsTotal.WithLabelValues(escalation).Inc()
}

func (m *Metrics) IncrementFailOpen() {
	m.FailOpenTotal.Inc()
}

func (m *Metrics) RecordCompaction(dropped, evicted, remaining int) {
	m.CompactionEvicted.WithLabelValues("idle").Add(float64(dropped))
	m.CompactionEvicted.WithLabelValues("lru").Add(float64(evicted))
	m.TrackedEntries.Set(float64(remaining))
}
