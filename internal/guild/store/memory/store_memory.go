package memory

import (
	"context"
	"fmt"
	"sync"

	"communitybot/internal/guild/models"
	"communitybot/pkg/platform/sentinel"
)

// InMemoryRepository keeps guild state in process maps. Used by tests and by
// `serve --memory` for local runs without Postgres.
type InMemoryRepository struct {
	mu            sync.RWMutex
	mappings      map[string]models.ServerMapping
	lockdowns     map[string]models.Lockdown
	alertChannels map[string]string
}

func New() *InMemoryRepository {
	return &InMemoryRepository{
		mappings:      make(map[string]models.ServerMapping),
		lockdowns:     make(map[string]models.Lockdown),
		alertChannels: make(map[string]string),
	}
}

func (r *InMemoryRepository) Load(_ context.Context, guildID string) (models.State, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state := models.State{GuildID: guildID, AlertChannelID: r.alertChannels[guildID]}
	if m, ok := r.mappings[guildID]; ok {
		state.Mapping = &m
	}
	if l, ok := r.lockdowns[guildID]; ok {
		state.Lockdown = &l
	}
	return state, nil
}

func (r *InMemoryRepository) GetMapping(_ context.Context, guildID string) (*models.ServerMapping, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.mappings[guildID]
	if !ok {
		return nil, fmt.Errorf("server mapping %s: %w", guildID, sentinel.ErrNotFound)
	}
	return &m, nil
}

func (r *InMemoryRepository) CreateMapping(_ context.Context, mapping models.ServerMapping) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.mappings[mapping.GuildID]; ok {
		return fmt.Errorf("server mapping %s: %w", mapping.GuildID, sentinel.ErrConflict)
	}
	r.mappings[mapping.GuildID] = mapping
	return nil
}

func (r *InMemoryRepository) DeleteMapping(_ context.Context, guildID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.mappings[guildID]; !ok {
		return fmt.Errorf("server mapping %s: %w", guildID, sentinel.ErrNotFound)
	}
	delete(r.mappings, guildID)
	return nil
}

func (r *InMemoryRepository) SaveLockdown(_ context.Context, lockdown models.Lockdown) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lockdowns[lockdown.GuildID] = lockdown
	return nil
}

func (r *InMemoryRepository) DeleteLockdown(_ context.Context, guildID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.lockdowns[guildID]; !ok {
		return fmt.Errorf("lockdown %s: %w", guildID, sentinel.ErrNotFound)
	}
	delete(r.lockdowns, guildID)
	return nil
}

func (r *InMemoryRepository) SetAlertChannel(_ context.Context, guildID, channelID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if channelID == "" {
		delete(r.alertChannels, guildID)
		return nil
	}
	r.alertChannels[guildID] = channelID
	return nil
}
