// Package commands is the bot's catalogue of slash commands and button routes.
package commands

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"communitybot/internal/backend"
	"communitybot/internal/dispatcher"
	guildmodels "communitybot/internal/guild/models"
	"communitybot/internal/records"
	"communitybot/internal/security"
)

// Backend is the subset of the backend client the handlers call.
type Backend interface {
	Community(ctx context.Context, communityID string) (*backend.Community, error)
	LinkServer(ctx context.Context, guildID, communityID, linkedBy string) (*guildmodels.ServerMapping, error)
	UnlinkServer(ctx context.Context, guildID string) error
	ListTasks(ctx context.Context, communityID string, page int) (*backend.TaskPage, error)
	Task(ctx context.Context, communityID, taskID string) (*backend.Task, error)
	CreateTask(ctx context.Context, communityID string, req backend.CreateTaskRequest) (*backend.Task, error)
	CompleteTask(ctx context.Context, communityID, taskID, userID string) (*backend.Completion, error)
	ConnectAllowlist(ctx context.Context, communityID, allowlistID, userID, wallet string) (*backend.AllowlistConnection, error)
	AllowlistStatus(ctx context.Context, communityID, userID string) (*backend.AllowlistStatus, error)
	Analytics(ctx context.Context, communityID string) (*backend.Analytics, error)
	UserLink(ctx context.Context, userID string) (*backend.UserLink, error)
	StartLink(ctx context.Context, userID string) (*backend.LinkStart, error)
}

// Guilds is the local guild configuration.
type Guilds interface {
	State(ctx context.Context, guildID string) (guildmodels.State, error)
	Link(ctx context.Context, guildID, communityID, linkedBy string) (*guildmodels.ServerMapping, error)
	Unlink(ctx context.Context, guildID, actor string) error
	SetAlertChannel(ctx context.Context, guildID, channelID, actor string) error
}

// Security exposes the monitor's operator actions.
type Security interface {
	TriggerEmergencyLockdown(ctx context.Context, guildID, reason string, duration time.Duration) error
	Events(guildID string, limit int) []security.Event
}

// Set builds the command and button handlers over their collaborators.
type Set struct {
	backend  Backend
	guilds   Guilds
	security Security
	records  records.Store
	logger   *slog.Logger

	commands []dispatcher.Command
	buttons  []dispatcher.ButtonRoute
}

type Option func(*Set)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Set) {
		s.logger = logger
	}
}

func New(api Backend, guilds Guilds, monitor Security, store records.Store, opts ...Option) (*Set, error) {
	if api == nil {
		return nil, errors.New("backend is required")
	}
	if guilds == nil {
		return nil, errors.New("guild service is required")
	}
	if monitor == nil {
		return nil, errors.New("security monitor is required")
	}
	if store == nil {
		return nil, errors.New("records store is required")
	}
	s := &Set{
		backend:  api,
		guilds:   guilds,
		security: monitor,
		records:  store,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.commands = s.buildCommands()
	s.buttons = s.buildButtons()
	return s, nil
}

// Definitions returns the command catalogue with no collaborators behind it.
// Registration reads names and options only; the handlers must not run.
func Definitions() []dispatcher.Command {
	return (&Set{}).buildCommands()
}

func (s *Set) Commands() []dispatcher.Command {
	return s.commands
}

func (s *Set) Buttons() []dispatcher.ButtonRoute {
	return s.buttons
}

// Registry indexes the set for the dispatcher.
func (s *Set) Registry() (*dispatcher.Registry, error) {
	return dispatcher.NewRegistry(s.commands, s.buttons)
}

func (s *Set) warn(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.WarnContext(ctx, msg, args...)
	}
}
