package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"communitybot/internal/backend"
	"communitybot/internal/dispatcher"
	"communitybot/internal/records"
	"communitybot/pkg/requestcontext"
)

type allowlistConnectOptions struct {
	AllowlistID string `json:"allowlist_id" validate:"required,alphanum,max=64"`
	Wallet      string `json:"wallet" validate:"omitempty,alphanum,max=128"`
}

func (s *Set) allowlistConnect(ctx context.Context, req *dispatcher.Request) (dispatcher.Message, error) {
	opts := dispatcher.Options[allowlistConnectOptions](req)
	return s.connectAllowlist(ctx, req, opts.AllowlistID, opts.Wallet)
}

func (s *Set) allowlistConnectButton(ctx context.Context, req *dispatcher.Request) (dispatcher.Message, error) {
	if len(req.Args) != 1 {
		return dispatcher.Message{}, dispatcher.Userf("This button is invalid or has expired.")
	}
	return s.connectAllowlist(ctx, req, req.Args[0], "")
}

func (s *Set) connectAllowlist(ctx context.Context, req *dispatcher.Request, allowlistID, wallet string) (dispatcher.Message, error) {
	in := req.Interaction
	conn, err := s.backend.ConnectAllowlist(ctx, req.CommunityID, allowlistID, in.User.ID, wallet)
	if err != nil {
		return dispatcher.Message{}, backendFailure(err, fmt.Sprintf("Allowlist %s was not found.", allowlistID))
	}
	if err := s.records.SaveAllowlistConnection(ctx, records.AllowlistConnection{
		UserID:      in.User.ID,
		AllowlistID: allowlistID,
		GuildID:     in.GuildID,
		ConnectedAt: requestcontext.Now(ctx),
	}); err != nil {
		s.warn(ctx, "failed to record allowlist connection", "allowlist_id", allowlistID, "error", err)
	}
	return dispatcher.Message{
		Content:   fmt.Sprintf("Connected to allowlist %s. Status: %s.", allowlistID, conn.Status),
		Ephemeral: true,
	}, nil
}

func (s *Set) allowlistStatus(ctx context.Context, req *dispatcher.Request) (dispatcher.Message, error) {
	status, err := s.backend.AllowlistStatus(ctx, req.CommunityID, req.Interaction.User.ID)
	if err != nil {
		return dispatcher.Message{}, backendFailure(err, "You have no allowlist connections yet.")
	}
	if len(status.Connections) == 0 {
		return dispatcher.Message{Content: "You have no allowlist connections yet.", Ephemeral: true}, nil
	}
	return dispatcher.Message{
		Title: "Allowlist connections",
		Fields: lo.Map(status.Connections, func(c backend.AllowlistConnection, _ int) dispatcher.Field {
			value := c.Status
			if c.Wallet != "" {
				value = strings.Join([]string{c.Status, c.Wallet}, " · ")
			}
			return dispatcher.Field{Name: c.AllowlistID, Value: value}
		}),
		Ephemeral: true,
	}, nil
}
