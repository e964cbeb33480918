package violation

import (
	"context"
	"sync"
	"time"

	"communitybot/pkg/requestcontext"
)

// InMemoryViolationStore keeps a sliding ledger of rate limit violations
// per identifier. Entries older than the window no longer count.
type InMemoryViolationStore struct {
	mu      sync.Mutex
	entries map[string][]time.Time
}

func New() *InMemoryViolationStore {
	return &InMemoryViolationStore{entries: make(map[string][]time.Time)}
}

// Record appends a violation and returns the count within window, including it.
func (s *InMemoryViolationStore) Record(ctx context.Context, identifier string, window time.Duration) (int, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	at := prune(s.entries[identifier], now.Add(-window))
	at = append(at, now)
	s.entries[identifier] = at
	return len(at), nil
}

// Recent returns the number of violations within window and the latest one.
func (s *InMemoryViolationStore) Recent(ctx context.Context, identifier string, window time.Duration) (int, time.Time, error) {
	now := requestcontext.Now(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	at := prune(s.entries[identifier], now.Add(-window))
	if len(at) == 0 {
		delete(s.entries, identifier)
		return 0, time.Time{}, nil
	}
	s.entries[identifier] = at
	return len(at), at[len(at)-1], nil
}

// Clear forgets every violation for identifier.
func (s *InMemoryViolationStore) Clear(_ context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, identifier)
	return nil
}

// Sweep drops expired violations and returns how many identifiers were removed.
func (s *InMemoryViolationStore) Sweep(now time.Time, window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	cutoff := now.Add(-window)
	for id, at := range s.entries {
		at = prune(at, cutoff)
		if len(at) == 0 {
			delete(s.entries, id)
			removed++
			continue
		}
		s.entries[id] = at
	}
	return removed
}

// Len returns the number of identifiers with recorded violations.
func (s *InMemoryViolationStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func prune(at []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for ; i < len(at); i++ {
		if at[i].After(cutoff) {
			break
		}
	}
	return at[i:]
}
