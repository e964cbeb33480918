// Package health probes the bot's dependencies and serves liveness and
// readiness endpoints.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"communitybot/internal/platform/metrics"
	"communitybot/pkg/requestcontext"
)

const defaultTimeout = 5 * time.Second

// Probe returns nil when the dependency is reachable.
type Probe func(ctx context.Context) error

// Component is one probed dependency. Only required components affect readiness.
type Component struct {
	Name     string
	Probe    Probe
	Required bool
}

type Status struct {
	Name      string        `json:"name"`
	Healthy   bool          `json:"healthy"`
	Required  bool          `json:"required"`
	Error     string        `json:"error,omitempty"`
	Latency   time.Duration `json:"latency_ns"`
	CheckedAt time.Time     `json:"checked_at"`
}

// Report is the outcome of one probe round.
type Report struct {
	Healthy    bool      `json:"healthy"`
	CheckedAt  time.Time `json:"checked_at"`
	Components []Status  `json:"components"`
}

type Monitor struct {
	components []Component
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *metrics.Metrics

	mu   sync.RWMutex
	last *Report
}

type Option func(*Monitor)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Monitor) {
		m.logger = logger
	}
}

func WithMetrics(metrics *metrics.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = metrics
	}
}

// WithTimeout bounds each probe.
func WithTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		m.timeout = d
	}
}

func New(components []Component, opts ...Option) (*Monitor, error) {
	for _, c := range components {
		if c.Name == "" || c.Probe == nil {
			return nil, errors.New("health component needs a name and a probe")
		}
	}
	m := &Monitor{components: components, timeout: defaultTimeout}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Check probes every component concurrently and keeps the report.
func (m *Monitor) Check(ctx context.Context) Report {
	now := requestcontext.Now(ctx)
	statuses := make([]Status, len(m.components))

	var g errgroup.Group
	for i, c := range m.components {
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, m.timeout)
			defer cancel()
			start := time.Now()
			err := c.Probe(pctx)
			st := Status{
				Name:      c.Name,
				Healthy:   err == nil,
				Required:  c.Required,
				Latency:   time.Since(start),
				CheckedAt: now,
			}
			if err != nil {
				st.Error = err.Error()
			}
			statuses[i] = st
			return nil
		})
	}
	_ = g.Wait()

	report := Report{Healthy: true, CheckedAt: now, Components: statuses}
	for _, st := range statuses {
		if st.Required && !st.Healthy {
			report.Healthy = false
		}
		if m.metrics != nil {
			m.metrics.SetComponentHealthy(st.Name, st.Healthy)
		}
		if !st.Healthy && m.logger != nil {
			m.logger.WarnContext(ctx, "health probe failed",
				"component", st.Name,
				"required", st.Required,
				"error", st.Error,
			)
		}
	}

	m.mu.Lock()
	m.last = &report
	m.mu.Unlock()
	return report
}

// Last returns the most recent report.
func (m *Monitor) Last() (Report, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return Report{}, false
	}
	return *m.last, true
}

// Register implements httpserver.Routes.
func (m *Monitor) Register(r chi.Router) {
	r.Get("/healthz", m.handleLive)
	r.Get("/readyz", m.handleReady)
}

func (m *Monitor) handleLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReady serves the last scheduled report, probing once if none exists yet.
func (m *Monitor) handleReady(w http.ResponseWriter, r *http.Request) {
	report, ok := m.Last()
	if !ok {
		report = m.Check(r.Context())
	}
	status := http.StatusOK
	if !report.Healthy {
		w.Header().Set("Retry-After", "30")
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
