package testutil

import (
	"context"
	"time"

	"communitybot/pkg/requestcontext"
)

// At returns a context whose request clock reads now.
func At(now time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), now)
}

// Actor scopes ctx to one user in one guild, the way an interaction does.
func Actor(ctx context.Context, userID, guildID string) context.Context {
	return requestcontext.WithGuildID(requestcontext.WithUserID(ctx, userID), guildID)
}
