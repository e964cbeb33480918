// Package scheduler owns every periodic background task of the process so that
// shutdown has one place to stop them all.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"communitybot/internal/platform/metrics"
)

// TaskFunc is one execution of a periodic task.
type TaskFunc func(ctx context.Context) error

type task struct {
	name     string
	interval time.Duration
	fn       TaskFunc
}

// Scheduler runs registered tasks on fixed intervals until stopped.
type Scheduler struct {
	mu      sync.Mutex
	tasks   []task
	logger  *slog.Logger
	metrics *metrics.Metrics

	cancel  context.CancelFunc
	group   *errgroup.Group
	running bool
}

type Option func(*Scheduler)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Scheduler) {
		s.metrics = m
	}
}

func New(opts ...Option) *Scheduler {
	s := &Scheduler{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Add registers a task. Tasks added after Start are rejected.
func (s *Scheduler) Add(name string, interval time.Duration, fn TaskFunc) error {
	if interval <= 0 {
		return fmt.Errorf("task %s: interval must be positive", name)
	}
	if fn == nil {
		return fmt.Errorf("task %s: func is required", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return errors.New("scheduler already started")
	}
	s.tasks = append(s.tasks, task{name: name, interval: interval, fn: fn})
	return nil
}

// Start launches one goroutine per task.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.group, ctx = errgroup.WithContext(ctx)
	s.running = true

	for _, t := range s.tasks {
		s.group.Go(func() error {
			s.loop(ctx, t)
			return nil
		})
	}
}

// Stop cancels every task and waits for in-flight executions to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel, group := s.cancel, s.group
	s.running = false
	s.mu.Unlock()

	cancel()
	_ = group.Wait()
}

// RunNow executes the named task once, synchronously.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	var found *task
	for i := range s.tasks {
		if s.tasks[i].name == name {
			found = &s.tasks[i]
			break
		}
	}
	s.mu.Unlock()
	if found == nil {
		return fmt.Errorf("unknown task %q", name)
	}
	return s.execute(ctx, *found)
}

func (s *Scheduler) loop(ctx context.Context, t task) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = s.execute(ctx, t)
		}
	}
}

func (s *Scheduler) execute(ctx context.Context, t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.name, r)
		}
		outcome := "ok"
		if err != nil {
			outcome = "error"
			if s.logger != nil {
				s.logger.WarnContext(ctx, "scheduled task failed", "task", t.name, "error", err)
			}
		}
		if s.metrics != nil {
			s.metrics.IncSchedulerRun(t.name, outcome)
		}
	}()
	return t.fn(ctx)
}
