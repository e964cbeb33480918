package bucket

import (
	"context"
	"sort"
	"sync"
	"time"

	"communitybot/internal/ratelimit/models"
	"communitybot/pkg/requestcontext"
)

// InMemoryBucketStore implements BucketStore using an in-memory sliding window.
// State is process-local; a restart clears every window.
type InMemoryBucketStore struct {
	mu      sync.Mutex
	buckets map[string]*slidingWindow
}

// slidingWindow tracks accepted request timestamps, oldest first.
type slidingWindow struct {
	timestamps []time.Time
	window     time.Duration
	lastAccess time.Time
}

// New creates a new in-memory bucket store.
func New() *InMemoryBucketStore {
	return &InMemoryBucketStore{
		buckets: make(map[string]*slidingWindow),
	}
}

// Allow checks if a request is allowed and records it if so.
func (s *InMemoryBucketStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.Result, error) {
	return s.AllowN(ctx, key, 1, limit, window)
}

// AllowN checks if a request with custom cost is allowed.
// Similar to Allow but adds 'cost' number of timestamps instead of 1.
func (s *InMemoryBucketStore) AllowN(ctx context.Context, key string, cost int, limit int, window time.Duration) (*models.Result, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	cw := s.getOrCreateBucket(key, window)
	cw.lastAccess = now
	cw.cleanup(now)
	count := len(cw.timestamps)

	if count+cost <= limit {
		for range cost {
			cw.insert(now)
		}
		return &models.Result{
			Allowed:   true,
			Limit:     limit,
			Remaining: limit - len(cw.timestamps),
			ResetAt:   cw.timestamps[0].Add(window),
		}, nil
	}

	resetAt := now.Add(window)
	if count > 0 {
		resetAt = cw.timestamps[0].Add(window)
	}
	retryAfter := resetAt.Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &models.Result{
		Allowed:    false,
		Limit:      limit,
		Remaining:  0,
		ResetAt:    resetAt,
		RetryAfter: retryAfter,
	}, nil
}

// Reset clears the rate limit counter for a key.
func (s *InMemoryBucketStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

// GetCurrentCount returns the current request count for a key.
func (s *InMemoryBucketStore) GetCurrentCount(ctx context.Context, key string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cw := s.buckets[key]
	if cw == nil {
		return 0, nil
	}

	cw.cleanup(requestcontext.Now(ctx))
	return len(cw.timestamps), nil
}

// Len returns the number of tracked keys.
func (s *InMemoryBucketStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// Compact prunes expired timestamps, drops windows that are empty and idle
// for longer than idle, then evicts least recently used keys until at most
// maxEntries remain. A non-positive maxEntries disables the cap.
func (s *InMemoryBucketStore) Compact(now time.Time, idle time.Duration, maxEntries int) models.CompactionStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats models.CompactionStats
	for key, cw := range s.buckets {
		before := len(cw.timestamps)
		cw.cleanup(now)
		stats.PrunedTimestamps += before - len(cw.timestamps)
		if len(cw.timestamps) == 0 && now.Sub(cw.lastAccess) >= idle {
			delete(s.buckets, key)
			stats.DroppedIdle++
		}
	}

	if maxEntries > 0 && len(s.buckets) > maxEntries {
		type aged struct {
			key        string
			lastAccess time.Time
		}
		order := make([]aged, 0, len(s.buckets))
		for key, cw := range s.buckets {
			order = append(order, aged{key: key, lastAccess: cw.lastAccess})
		}
		sort.Slice(order, func(i, j int) bool {
			return order[i].lastAccess.Before(order[j].lastAccess)
		})
		excess := len(s.buckets) - maxEntries
		for _, e := range order[:excess] {
			delete(s.buckets, e.key)
		}
		stats.EvictedLRU = excess
	}

	stats.Remaining = len(s.buckets)
	return stats
}

// cleanup removes timestamps at or before now-window.
func (sw *slidingWindow) cleanup(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for ; i < len(sw.timestamps); i++ {
		if sw.timestamps[i].After(cutoff) {
			break
		}
	}
	sw.timestamps = sw.timestamps[i:]
}

// insert keeps timestamps ordered when callers arrive with skewed clocks.
func (sw *slidingWindow) insert(ts time.Time) {
	n := len(sw.timestamps)
	if n == 0 || !ts.Before(sw.timestamps[n-1]) {
		sw.timestamps = append(sw.timestamps, ts)
		return
	}
	i := sort.Search(n, func(i int) bool { return sw.timestamps[i].After(ts) })
	sw.timestamps = append(sw.timestamps, time.Time{})
	copy(sw.timestamps[i+1:], sw.timestamps[i:])
	sw.timestamps[i] = ts
}

// getOrCreateBucket returns an existing bucket or creates a new one.
// Must be called while holding s.mu lock.
func (s *InMemoryBucketStore) getOrCreateBucket(key string, window time.Duration) *slidingWindow {
	if cw := s.buckets[key]; cw != nil {
		cw.window = window
		return cw
	}
	cw := &slidingWindow{timestamps: []time.Time{}, window: window}
	s.buckets[key] = cw
	return cw
}
