package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"communitybot/internal/audit"
)

type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Query returns matching entries newest first.
func (s *InMemoryStore) Query(_ context.Context, filter audit.Filter) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if filter.Matches(s.entries[i]) {
			out = append(out, s.entries[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *InMemoryStore) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.entries[:0]
	var removed int64
	for _, e := range s.entries {
		if e.Timestamp.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return removed, nil
}

func (s *InMemoryStore) Summary(_ context.Context) (audit.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sum := audit.Summary{ByType: make(map[audit.EventType]int64)}
	for _, e := range s.entries {
		sum.Total++
		sum.ByType[e.Type]++
		if sum.Oldest.IsZero() || e.Timestamp.Before(sum.Oldest) {
			sum.Oldest = e.Timestamp
		}
		if e.Timestamp.After(sum.Newest) {
			sum.Newest = e.Timestamp
		}
	}
	return sum, nil
}

// All returns every entry in insertion order.
func (s *InMemoryStore) All() []audit.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.Entry(nil), s.entries...)
}
