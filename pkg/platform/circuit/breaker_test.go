package circuit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	fail     bool
	fallback bool
	opened   bool
	closed   bool
}

func (s step) apply(t *testing.T, b *Breaker, i int) {
	t.Helper()
	if s.fail {
		fallback, change := b.RecordFailure()
		assert.Equal(t, s.fallback, fallback, "step %d fallback", i)
		assert.Equal(t, s.opened, change.Opened, "step %d opened", i)
		return
	}
	primary, change := b.RecordSuccess()
	assert.Equal(t, !s.fallback, primary, "step %d primary", i)
	assert.Equal(t, s.closed, change.Closed, "step %d closed", i)
}

var (
	failClosed = step{fail: true}
	failOpens  = step{fail: true, fallback: true, opened: true}
	failOpen   = step{fail: true, fallback: true}
	okClosed   = step{}
	okOpen     = step{fallback: true}
	okCloses   = step{closed: true}
)

func TestBreakerTransitions(t *testing.T) {
	tests := []struct {
		name      string
		opts      []Option
		steps     []step
		wantState State
	}{
		{
			name:      "default opens on the fifth consecutive failure",
			steps:     []step{failClosed, failClosed, failClosed, failClosed, failOpens},
			wantState: StateOpen,
		},
		{
			name:      "non-positive thresholds keep the defaults",
			opts:      []Option{WithFailureThreshold(0), WithSuccessThreshold(-1)},
			steps:     []step{failClosed, failClosed, failClosed, failClosed},
			wantState: StateClosed,
		},
		{
			name:      "success clears the failure streak",
			opts:      []Option{WithFailureThreshold(3)},
			steps:     []step{failClosed, failClosed, okClosed, failClosed, failClosed, failOpens},
			wantState: StateOpen,
		},
		{
			name:      "open breaker closes after the success streak",
			opts:      []Option{WithFailureThreshold(1), WithSuccessThreshold(2)},
			steps:     []step{failOpens, okOpen, okCloses},
			wantState: StateClosed,
		},
		{
			name:      "failure while open restarts the success streak",
			opts:      []Option{WithFailureThreshold(1), WithSuccessThreshold(3)},
			steps:     []step{failOpens, okOpen, okOpen, failOpen, okOpen, okOpen, okCloses},
			wantState: StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New("backend", tt.opts...)
			for i, s := range tt.steps {
				s.apply(t, b, i)
			}
			assert.Equal(t, tt.wantState, b.State())
		})
	}
}

func TestBreakerReset(t *testing.T) {
	b := New("cache", WithFailureThreshold(1))
	require.Equal(t, "cache", b.Name())
	require.Equal(t, "closed", b.State().String())

	b.RecordFailure()
	require.True(t, b.IsOpen())
	assert.Equal(t, "open", b.State().String())

	b.Reset()
	assert.False(t, b.IsOpen())
	_, change := b.RecordFailure()
	assert.True(t, change.Opened)
}
