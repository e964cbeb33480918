package backend

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// RetryPolicy is exponential backoff with symmetric jitter.
type RetryPolicy struct {
	MaxAttempts int
	Base        time.Duration
	Factor      float64
	// Jitter is the fraction of each delay randomised in both directions.
	Jitter float64
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 5,
		Base:        250 * time.Millisecond,
		Factor:      2,
		Jitter:      0.2,
	}
}

// Delay returns the wait before retry number attempt (1 for the first retry).
func (p RetryPolicy) Delay(attempt int) time.Duration {
	return p.delay(attempt, rand.Float64())
}

func (p RetryPolicy) delay(attempt int, r float64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(p.Base) * math.Pow(p.Factor, float64(attempt-1))
	if p.Jitter > 0 {
		d += d * p.Jitter * (2*r - 1)
	}
	return time.Duration(d)
}

func (p RetryPolicy) attempts() int {
	if p.MaxAttempts < 1 {
		return 1
	}
	return p.MaxAttempts
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
