package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_RunsTasksUntilStopped(t *testing.T) {
	s := New()
	var runs atomic.Int32
	require.NoError(t, s.Add("tick", 5*time.Millisecond, func(context.Context) error {
		runs.Add(1)
		return nil
	}))

	s.Start(context.Background())
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
	s.Stop()

	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no executions after Stop")
}

func TestScheduler_FailingTaskKeepsRunning(t *testing.T) {
	s := New()
	var runs atomic.Int32
	require.NoError(t, s.Add("flaky", 5*time.Millisecond, func(context.Context) error {
		if runs.Add(1) == 1 {
			panic("first run")
		}
		return errors.New("still failing")
	}))

	s.Start(context.Background())
	defer s.Stop()
	assert.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)
}

func TestScheduler_AddValidation(t *testing.T) {
	s := New()
	assert.Error(t, s.Add("zero", 0, func(context.Context) error { return nil }))
	assert.Error(t, s.Add("nil", time.Second, nil))

	require.NoError(t, s.Add("ok", time.Hour, func(context.Context) error { return nil }))
	s.Start(context.Background())
	defer s.Stop()
	assert.Error(t, s.Add("late", time.Hour, func(context.Context) error { return nil }))
}

func TestScheduler_RunNow(t *testing.T) {
	s := New()
	called := false
	require.NoError(t, s.Add("cleanup", time.Hour, func(context.Context) error {
		called = true
		return nil
	}))

	require.NoError(t, s.RunNow(context.Background(), "cleanup"))
	assert.True(t, called)
	assert.Error(t, s.RunNow(context.Background(), "missing"))
}

func TestScheduler_StopWithoutStart(t *testing.T) {
	assert.NotPanics(t, func() { New().Stop() })
}
