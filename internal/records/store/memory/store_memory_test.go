package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"communitybot/internal/records"
	"communitybot/pkg/platform/sentinel"
)

func TestInMemoryStore(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("account links", func(t *testing.T) {
		store := New()
		_, err := store.GetAccountLink(ctx, "u1")
		require.ErrorIs(t, err, sentinel.ErrNotFound)

		require.NoError(t, store.SaveAccountLink(ctx, records.AccountLink{UserID: "u1", BackendUserID: "b1", LinkedAt: now}))
		require.NoError(t, store.SaveAccountLink(ctx, records.AccountLink{UserID: "u1", BackendUserID: "b2", LinkedAt: now}))

		link, err := store.GetAccountLink(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "b2", link.BackendUserID)
	})

	t.Run("task posts newest first with limit", func(t *testing.T) {
		store := New()
		for i, id := range []string{"m1", "m2", "m3"} {
			require.NoError(t, store.SaveTaskPost(ctx, records.TaskPost{
				MessageID: id, GuildID: "g1", PostedAt: now.Add(time.Duration(i) * time.Minute),
			}))
		}
		require.NoError(t, store.SaveTaskPost(ctx, records.TaskPost{MessageID: "other", GuildID: "g2", PostedAt: now}))

		posts, err := store.ListTaskPosts(ctx, "g1", 2)
		require.NoError(t, err)
		require.Len(t, posts, 2)
		assert.Equal(t, "m3", posts[0].MessageID)
		assert.Equal(t, "m2", posts[1].MessageID)
	})

	t.Run("allowlist connections are idempotent", func(t *testing.T) {
		store := New()
		conn := records.AllowlistConnection{UserID: "u1", AllowlistID: "a1", GuildID: "g1", ConnectedAt: now}
		require.NoError(t, store.SaveAllowlistConnection(ctx, conn))
		conn.ConnectedAt = now.Add(time.Hour)
		require.NoError(t, store.SaveAllowlistConnection(ctx, conn))

		conns, err := store.ListAllowlistConnections(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, conns, 1)
		assert.Equal(t, now, conns[0].ConnectedAt)
	})
}
