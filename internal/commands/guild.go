package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/samber/lo"

	"communitybot/internal/dispatcher"
	guildservice "communitybot/internal/guild/service"
	"communitybot/internal/security"
)

const (
	defaultEvents = 10
	maxEvents     = 25
)

type linkCommunityOptions struct {
	CommunityID string `json:"community_id" validate:"required,alphanum,max=64"`
}

type alertChannelOptions struct {
	Channel string `json:"channel" validate:"required,numeric"`
}

type lockdownOptions struct {
	Minutes int    `json:"minutes" validate:"required,min=1,max=1440"`
	Reason  string `json:"reason" validate:"required,max=200"`
}

type securityEventsOptions struct {
	Limit int `json:"limit" validate:"omitempty,min=1,max=25"`
}

func (s *Set) linkCommunity(ctx context.Context, req *dispatcher.Request) (dispatcher.Message, error) {
	opts := dispatcher.Options[linkCommunityOptions](req)
	in := req.Interaction
	current := req.CommunityID
	if current == "" {
		state, err := s.guilds.State(ctx, in.GuildID)
		if err != nil {
			return dispatcher.Message{}, err
		}
		current = state.CommunityID()
	}
	if current != "" {
		return dispatcher.Message{}, dispatcher.Userf("This server is already linked to community %s. Unlink it first.", current)
	}

	community, err := s.backend.Community(ctx, opts.CommunityID)
	if err != nil {
		return dispatcher.Message{}, backendFailure(err, fmt.Sprintf("Community %s was not found.", opts.CommunityID))
	}
	if _, err := s.backend.LinkServer(ctx, in.GuildID, community.ID, in.User.ID); err != nil {
		return dispatcher.Message{}, backendFailure(err, "")
	}
	if _, err := s.guilds.Link(ctx, in.GuildID, community.ID, in.User.ID); err != nil {
		// The backend mapping must not outlive a failed local link.
		if uerr := s.backend.UnlinkServer(context.WithoutCancel(ctx), in.GuildID); uerr != nil {
			s.warn(ctx, "failed to roll back backend server link",
				"guild_id", in.GuildID,
				"community_id", community.ID,
				"error", uerr,
			)
		}
		if errors.Is(err, guildservice.ErrAlreadyLinked) {
			return dispatcher.Message{}, dispatcher.Userf("This server is already linked. Unlink it first.")
		}
		return dispatcher.Message{}, err
	}
	return dispatcher.Message{
		Content:   fmt.Sprintf("This server is now linked to %s.", lo.CoalesceOrEmpty(community.Name, community.ID)),
		Ephemeral: true,
	}, nil
}

func (s *Set) unlinkCommunity(ctx context.Context, req *dispatcher.Request) (dispatcher.Message, error) {
	in := req.Interaction
	if req.CommunityID == "" {
		return dispatcher.Message{}, dispatcher.Userf("This server is not linked to a community.")
	}
	if err := s.backend.UnlinkServer(ctx, in.GuildID); err != nil {
		return dispatcher.Message{}, backendFailure(err, "")
	}
	if err := s.guilds.Unlink(ctx, in.GuildID, in.User.ID); err != nil && !errors.Is(err, guildservice.ErrNotLinked) {
		return dispatcher.Message{}, err
	}
	return dispatcher.Message{Content: "This server is no longer linked to a community.", Ephemeral: true}, nil
}

func (s *Set) analytics(ctx context.Context, req *dispatcher.Request) (dispatcher.Message, error) {
	a, err := s.backend.Analytics(ctx, req.CommunityID)
	if err != nil {
		return dispatcher.Message{}, backendFailure(err, "No analytics are available for this community yet.")
	}
	return dispatcher.Message{
		Title: "Community analytics",
		Fields: []dispatcher.Field{
			{Name: "Members", Value: strconv.Itoa(a.Members), Inline: true},
			{Name: "Active members", Value: strconv.Itoa(a.ActiveMembers), Inline: true},
			{Name: "Tasks completed", Value: strconv.Itoa(a.TasksCompleted), Inline: true},
			{Name: "Points awarded", Value: strconv.Itoa(a.PointsAwarded), Inline: true},
		},
		Ephemeral: true,
	}, nil
}

func (s *Set) setAlertChannel(ctx context.Context, req *dispatcher.Request) (dispatcher.Message, error) {
	opts := dispatcher.Options[alertChannelOptions](req)
	in := req.Interaction
	if err := s.guilds.SetAlertChannel(ctx, in.GuildID, opts.Channel, in.User.ID); err != nil {
		return dispatcher.Message{}, err
	}
	return dispatcher.Message{Content: fmt.Sprintf("Security alerts will be posted in <#%s>.", opts.Channel), Ephemeral: true}, nil
}

func (s *Set) lockdown(ctx context.Context, req *dispatcher.Request) (dispatcher.Message, error) {
	opts := dispatcher.Options[lockdownOptions](req)
	duration := time.Duration(opts.Minutes) * time.Minute
	if err := s.security.TriggerEmergencyLockdown(ctx, req.Interaction.GuildID, opts.Reason, duration); err != nil {
		return dispatcher.Message{}, err
	}
	return dispatcher.Message{
		Content: fmt.Sprintf("This server is locked down for %d minutes. Every command is blocked until then.", opts.Minutes),
	}, nil
}

func (s *Set) securityEvents(ctx context.Context, req *dispatcher.Request) (dispatcher.Message, error) {
	opts := dispatcher.Options[securityEventsOptions](req)
	limit := lo.Ternary(opts.Limit > 0, opts.Limit, defaultEvents)
	events := s.security.Events(req.Interaction.GuildID, limit)
	if len(events) == 0 {
		return dispatcher.Message{Content: "No security events recorded for this server.", Ephemeral: true}, nil
	}
	return dispatcher.Message{
		Title:     fmt.Sprintf("Recent security events (%d)", len(events)),
		Fields:    lo.Map(events, func(e security.Event, _ int) dispatcher.Field { return eventField(e) }),
		Ephemeral: true,
	}, nil
}

func eventField(e security.Event) dispatcher.Field {
	value := fmt.Sprintf("<t:%d:R>", e.Timestamp.Unix())
	if e.UserID != "" {
		value += fmt.Sprintf(" by <@%s>", e.UserID)
	}
	return dispatcher.Field{
		Name:  fmt.Sprintf("[%s] %s", e.Severity, e.Type),
		Value: value,
	}
}
