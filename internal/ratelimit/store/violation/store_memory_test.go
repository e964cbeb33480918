package violation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"communitybot/pkg/requestcontext"
)

func TestInMemoryViolationStore(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	at := func(d time.Duration) context.Context {
		return requestcontext.WithTime(context.Background(), now.Add(d))
	}
	window := 15 * time.Minute

	t.Run("record counts within window", func(t *testing.T) {
		store := New()
		n, err := store.Record(at(0), "u1", window)
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = store.Record(at(time.Minute), "u1", window)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		count, last, err := store.Recent(at(2*time.Minute), "u1", window)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		assert.Equal(t, now.Add(time.Minute), last)
	})

	t.Run("old violations stop counting", func(t *testing.T) {
		store := New()
		_, err := store.Record(at(0), "u1", window)
		require.NoError(t, err)

		n, err := store.Record(at(window), "u1", window)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
	})

	t.Run("recent removes fully expired identifiers", func(t *testing.T) {
		store := New()
		_, err := store.Record(at(0), "u1", window)
		require.NoError(t, err)

		count, last, err := store.Recent(at(window+time.Second), "u1", window)
		require.NoError(t, err)
		assert.Zero(t, count)
		assert.True(t, last.IsZero())
		assert.Zero(t, store.Len())
	})

	t.Run("sweep and clear", func(t *testing.T) {
		store := New()
		_, _ = store.Record(at(0), "old", window)
		_, _ = store.Record(at(10*time.Minute), "new", window)
		_, _ = store.Record(at(10*time.Minute), "cleared", window)

		require.NoError(t, store.Clear(context.Background(), "cleared"))
		assert.Equal(t, 1, store.Sweep(now.Add(16*time.Minute), window))
		assert.Equal(t, 1, store.Len())
	})
}
