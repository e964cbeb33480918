// Package ports defines the storage contract of the guild module.
package ports

import (
	"context"

	"communitybot/internal/guild/models"
)

// Repository persists guild state. Lookups of absent records return
// sentinel.ErrNotFound; creating an existing mapping returns sentinel.ErrConflict.
type Repository interface {
	Load(ctx context.Context, guildID string) (models.State, error)

	GetMapping(ctx context.Context, guildID string) (*models.ServerMapping, error)
	CreateMapping(ctx context.Context, mapping models.ServerMapping) error
	DeleteMapping(ctx context.Context, guildID string) error

	SaveLockdown(ctx context.Context, lockdown models.Lockdown) error
	DeleteLockdown(ctx context.Context, guildID string) error

	SetAlertChannel(ctx context.Context, guildID, channelID string) error
}
