package security

import (
	"sync"
)

// RingBuffer is a bounded, thread-safe buffer of recent security events.
// When full, the oldest events are dropped to make room for new ones.
type RingBuffer struct {
	mu       sync.Mutex
	events   []Event
	head     int // next write position
	tail     int // oldest event
	count    int
	capacity int

	dropped int64
}

// NewRingBuffer creates a ring buffer with the given capacity.
func NewRingBuffer(capacity int) *RingBuffer {
	if capacity <= 0 {
		capacity = 1000
	}
	return &RingBuffer{
		events:   make([]Event, capacity),
		capacity: capacity,
	}
}

// Enqueue adds an event, dropping the oldest if necessary.
func (b *RingBuffer) Enqueue(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.count >= b.capacity {
		b.tail = (b.tail + 1) % b.capacity
		b.count--
		b.dropped++
	}

	b.events[b.head] = event
	b.head = (b.head + 1) % b.capacity
	b.count++
}

// Recent returns up to n events newest first. An empty guildID matches all guilds.
func (b *RingBuffer) Recent(guildID string, n int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Event
	for i := 0; i < b.count && (n <= 0 || len(out) < n); i++ {
		idx := (b.head - 1 - i + b.capacity) % b.capacity
		ev := b.events[idx]
		if guildID != "" && ev.GuildID != guildID {
			continue
		}
		out = append(out, ev)
	}
	return out
}

// Len returns the current number of events in the buffer.
func (b *RingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Dropped returns the total number of events overwritten.
func (b *RingBuffer) Dropped() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.dropped
}
