package commands

import (
	"context"
	"fmt"

	"communitybot/internal/backend"
	"communitybot/internal/dispatcher"
	"communitybot/internal/records"
	"communitybot/pkg/requestcontext"
)

func (s *Set) linkAccount(ctx context.Context, req *dispatcher.Request) (dispatcher.Message, error) {
	userID := req.Interaction.User.ID
	link, err := s.backend.UserLink(ctx, userID)
	if err != nil && !backend.IsNotFound(err) {
		return dispatcher.Message{}, backendFailure(err, "")
	}
	if link != nil && link.Linked {
		s.rememberLink(ctx, userID, link)
		return dispatcher.Message{
			Content:   fmt.Sprintf("Your account is already linked to %s.", accountName(link)),
			Ephemeral: true,
		}, nil
	}

	start, err := s.backend.StartLink(ctx, userID)
	if err != nil {
		return dispatcher.Message{}, backendFailure(err, "")
	}
	return dispatcher.Message{
		Title:     "Link your account",
		Content:   fmt.Sprintf("Open this link to finish linking: %s\nIt expires <t:%d:R>.", start.URL, start.ExpiresAt.Unix()),
		Ephemeral: true,
	}, nil
}

func (s *Set) accountStatus(ctx context.Context, req *dispatcher.Request) (dispatcher.Message, error) {
	userID := req.Interaction.User.ID
	link, err := s.backend.UserLink(ctx, userID)
	if err != nil && !backend.IsNotFound(err) {
		return dispatcher.Message{}, backendFailure(err, "")
	}
	if link == nil || !link.Linked {
		return dispatcher.Message{Content: "Your account is not linked. Use /link-account to link it.", Ephemeral: true}, nil
	}
	s.rememberLink(ctx, userID, link)
	return dispatcher.Message{
		Content:   fmt.Sprintf("Your account is linked to %s.", accountName(link)),
		Ephemeral: true,
	}, nil
}

// rememberLink keeps a local copy of a confirmed link.
func (s *Set) rememberLink(ctx context.Context, userID string, link *backend.UserLink) {
	if err := s.records.SaveAccountLink(ctx, records.AccountLink{
		UserID:        userID,
		BackendUserID: link.AccountID,
		LinkedAt:      requestcontext.Now(ctx),
	}); err != nil {
		s.warn(ctx, "failed to record account link", "error", err)
	}
}

func accountName(link *backend.UserLink) string {
	if link.Username != "" {
		return link.Username
	}
	return link.AccountID
}
