package bucket

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"communitybot/pkg/requestcontext"
)

const (
	testLimit  = 5
	testWindow = time.Minute
)

type InMemoryBucketStoreSuite struct {
	suite.Suite
	store *InMemoryBucketStore
	now   time.Time
}

func TestInMemoryBucketStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryBucketStoreSuite))
}

func (s *InMemoryBucketStoreSuite) SetupTest() {
	s.store = New()
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
}

func (s *InMemoryBucketStoreSuite) at(offset time.Duration) context.Context {
	return requestcontext.WithTime(context.Background(), s.now.Add(offset))
}

func (s *InMemoryBucketStoreSuite) TestAllow() {
	s.Run("remaining counts down to zero then denies", func() {
		key := "u1:command"
		for i := range testLimit {
			result, err := s.store.Allow(s.at(time.Duration(i)*time.Second), key, testLimit, testWindow)
			s.Require().NoError(err)
			s.True(result.Allowed)
			s.Equal(testLimit, result.Limit)
			s.Equal(testLimit-1-i, result.Remaining)
		}

		result, err := s.store.Allow(s.at(10*time.Second), key, testLimit, testWindow)
		s.Require().NoError(err)
		s.False(result.Allowed)
		s.Equal(0, result.Remaining)
		s.Equal(s.now.Add(testWindow), result.ResetAt)
		s.Equal(50*time.Second, result.RetryAfter)
	})

	s.Run("oldest timestamp expires exactly one window later", func() {
		key := "u2:command"
		for range testLimit {
			_, err := s.store.Allow(s.at(0), key, testLimit, testWindow)
			s.Require().NoError(err)
		}

		result, err := s.store.Allow(s.at(testWindow-time.Millisecond), key, testLimit, testWindow)
		s.Require().NoError(err)
		s.False(result.Allowed)

		result, err = s.store.Allow(s.at(testWindow), key, testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(testLimit-1, result.Remaining)
	})

	s.Run("denied request is not recorded", func() {
		key := "u3:command"
		for range testLimit + 3 {
			_, err := s.store.Allow(s.at(0), key, testLimit, testWindow)
			s.Require().NoError(err)
		}
		count, err := s.store.GetCurrentCount(s.at(0), key)
		s.Require().NoError(err)
		s.Equal(testLimit, count)
	})

	s.Run("keys are independent", func() {
		for range testLimit {
			_, err := s.store.Allow(s.at(0), "u4:command", testLimit, testWindow)
			s.Require().NoError(err)
		}
		result, err := s.store.Allow(s.at(0), "u4:interaction", testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed)
	})
}

func (s *InMemoryBucketStoreSuite) TestAllowN() {
	s.Run("cost of 1 behaves like Allow", func() {
		result, err := s.store.AllowN(s.at(0), "n:one", 1, testLimit, testWindow)
		s.Require().NoError(err)
		s.True(result.Allowed)
		s.Equal(testLimit-1, result.Remaining)
	})

	s.Run("cost greater than remaining denied", func() {
		first, err := s.store.AllowN(s.at(0), "n:deny", 4, testLimit, testWindow)
		s.Require().NoError(err)
		s.Require().True(first.Allowed)

		result, err := s.store.AllowN(s.at(0), "n:deny", 2, testLimit, testWindow)
		s.Require().NoError(err)
		s.False(result.Allowed)
		s.Equal(0, result.Remaining)
	})
}

func (s *InMemoryBucketStoreSuite) TestOutOfOrderTimestamps() {
	key := "skew:command"
	_, err := s.store.Allow(s.at(30*time.Second), key, testLimit, testWindow)
	s.Require().NoError(err)
	_, err = s.store.Allow(s.at(10*time.Second), key, testLimit, testWindow)
	s.Require().NoError(err)

	s.store.mu.Lock()
	ts := append([]time.Time(nil), s.store.buckets[key].timestamps...)
	s.store.mu.Unlock()
	s.Require().Len(ts, 2)
	s.True(ts[0].Before(ts[1]))

	// the 10s entry expires first
	count, err := s.store.GetCurrentCount(s.at(70*time.Second), key)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *InMemoryBucketStoreSuite) TestReset() {
	_, err := s.store.AllowN(s.at(0), "reset", testLimit, testLimit, testWindow)
	s.Require().NoError(err)

	s.Require().NoError(s.store.Reset(s.at(0), "reset"))

	result, err := s.store.Allow(s.at(0), "reset", testLimit, testWindow)
	s.Require().NoError(err)
	s.True(result.Allowed)
}

func (s *InMemoryBucketStoreSuite) TestCompact() {
	s.Run("prunes and drops idle empty windows", func() {
		_, err := s.store.Allow(s.at(0), "idle", testLimit, testWindow)
		s.Require().NoError(err)
		_, err = s.store.Allow(s.at(5*time.Minute), "busy", testLimit, testWindow)
		s.Require().NoError(err)

		stats := s.store.Compact(s.now.Add(5*time.Minute+time.Second), 5*time.Minute, 0)
		s.Equal(1, stats.PrunedTimestamps)
		s.Equal(1, stats.DroppedIdle)
		s.Equal(1, stats.Remaining)
	})

	s.Run("recently touched empty window survives", func() {
		store := New()
		_, err := store.Allow(s.at(0), "recent", testLimit, testWindow)
		s.Require().NoError(err)

		stats := store.Compact(s.now.Add(2*time.Minute), 5*time.Minute, 0)
		s.Equal(0, stats.DroppedIdle)
		s.Equal(1, store.Len())
	})

	s.Run("evicts least recently used above the cap", func() {
		store := New()
		for i := range 5 {
			_, err := store.Allow(s.at(time.Duration(i)*time.Second), fmt.Sprintf("k%d", i), testLimit, testWindow)
			s.Require().NoError(err)
		}

		stats := store.Compact(s.now.Add(10*time.Second), 5*time.Minute, 3)
		s.Equal(2, stats.EvictedLRU)
		s.Equal(3, stats.Remaining)

		store.mu.Lock()
		defer store.mu.Unlock()
		s.NotContains(store.buckets, "k0")
		s.NotContains(store.buckets, "k1")
		s.Contains(store.buckets, "k4")
	})
}

func (s *InMemoryBucketStoreSuite) TestConcurrent() {
	limit := 100
	key := "concurrent"
	var wg sync.WaitGroup
	var mu sync.Mutex
	allowedCount := 0

	for range 200 {
		wg.Go(func() {
			result, err := s.store.Allow(s.at(0), key, limit, testWindow)
			s.Require().NoError(err)
			if result.Allowed {
				mu.Lock()
				allowedCount++
				mu.Unlock()
			}
		})
	}

	wg.Wait()
	s.Equal(limit, allowedCount)
}

