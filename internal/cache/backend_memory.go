package cache

import (
	"context"
	"path"
	"sync"
	"time"
)

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryBackend is a process-local Backend used in tests and single-instance
// development runs.
type MemoryBackend struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

// WithClock replaces the time source used for expiry.
func (b *MemoryBackend) WithClock(now func() time.Time) *MemoryBackend {
	b.now = now
	return b
}

func (b *MemoryBackend) live(key string) (memoryEntry, bool) {
	e, ok := b.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !e.expiresAt.IsZero() && !b.now().Before(e.expiresAt) {
		return memoryEntry{}, false
	}
	return e, true
}

func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.live(key)
	if !ok {
		return nil, ErrMiss
	}
	return append([]byte(nil), e.value...), nil
}

func (b *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.set(key, value, ttl)
	return nil
}

func (b *MemoryBackend) set(key string, value []byte, ttl time.Duration) {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = b.now().Add(ttl)
	}
	b.entries[key] = e
}

func (b *MemoryBackend) Delete(_ context.Context, keys ...string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int64
	for _, k := range keys {
		if _, ok := b.live(k); ok {
			n++
		}
		delete(b.entries, k)
	}
	return n, nil
}

func (b *MemoryBackend) Exists(_ context.Context, keys ...string) (int64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	var n int64
	for _, k := range keys {
		if _, ok := b.live(k); ok {
			n++
		}
	}
	return n, nil
}

func (b *MemoryBackend) MGet(_ context.Context, keys ...string) ([][]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([][]byte, len(keys))
	for i, k := range keys {
		if e, ok := b.live(k); ok {
			out[i] = append([]byte(nil), e.value...)
		}
	}
	return out, nil
}

func (b *MemoryBackend) MSet(_ context.Context, values map[string][]byte, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for k, v := range values {
		b.set(k, v, ttl)
	}
	return nil
}

func (b *MemoryBackend) DeletePattern(_ context.Context, pattern string) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var n int64
	for k := range b.entries {
		ok, err := path.Match(pattern, k)
		if err != nil {
			return n, err
		}
		if ok {
			delete(b.entries, k)
			n++
		}
	}
	return n, nil
}

func (b *MemoryBackend) Ping(context.Context) error { return nil }

// Len returns the number of live entries.
func (b *MemoryBackend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for k := range b.entries {
		if _, ok := b.live(k); ok {
			n++
		}
	}
	return n
}
