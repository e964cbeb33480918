package security

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRingBuffer(t *testing.T) {
	t.Run("recent returns newest first", func(t *testing.T) {
		b := NewRingBuffer(5)
		for i := range 3 {
			b.Enqueue(Event{ID: fmt.Sprint(i), GuildID: "g1"})
		}
		got := b.Recent("", 0)
		require.Len(t, got, 3)
		assert.Equal(t, "2", got[0].ID)
		assert.Equal(t, "0", got[2].ID)
	})

	t.Run("overflow drops oldest", func(t *testing.T) {
		b := NewRingBuffer(3)
		for i := range 5 {
			b.Enqueue(Event{ID: fmt.Sprint(i)})
		}
		assert.Equal(t, 3, b.Len())
		assert.Equal(t, int64(2), b.Dropped())

		got := b.Recent("", 10)
		require.Len(t, got, 3)
		assert.Equal(t, []string{"4", "3", "2"}, []string{got[0].ID, got[1].ID, got[2].ID})
	})

	t.Run("filters by guild and limits", func(t *testing.T) {
		b := NewRingBuffer(10)
		for i := range 6 {
			guild := "g1"
			if i%2 == 1 {
				guild = "g2"
			}
			b.Enqueue(Event{ID: fmt.Sprint(i), GuildID: guild})
		}
		got := b.Recent("g2", 2)
		require.Len(t, got, 2)
		assert.Equal(t, "5", got[0].ID)
		assert.Equal(t, "3", got[1].ID)
	})

	t.Run("default capacity", func(t *testing.T) {
		b := NewRingBuffer(0)
		assert.Equal(t, 1000, b.capacity)
	})

	t.Run("concurrent enqueue", func(t *testing.T) {
		b := NewRingBuffer(100)
		var wg sync.WaitGroup
		for range 10 {
			wg.Go(func() {
				for range 50 {
					b.Enqueue(Event{})
				}
			})
		}
		wg.Wait()
		assert.Equal(t, 100, b.Len())
		assert.Equal(t, int64(400), b.Dropped())
	})
}
