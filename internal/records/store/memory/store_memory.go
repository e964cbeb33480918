package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"communitybot/internal/records"
	"communitybot/pkg/platform/sentinel"
)

type InMemoryStore struct {
	mu          sync.RWMutex
	links       map[string]records.AccountLink
	posts       []records.TaskPost
	connections map[string]records.AllowlistConnection
}

func New() *InMemoryStore {
	return &InMemoryStore{
		links:       make(map[string]records.AccountLink),
		connections: make(map[string]records.AllowlistConnection),
	}
}

func (s *InMemoryStore) SaveAccountLink(_ context.Context, link records.AccountLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.links[link.UserID] = link
	return nil
}

func (s *InMemoryStore) GetAccountLink(_ context.Context, userID string) (*records.AccountLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.links[userID]
	if !ok {
		return nil, fmt.Errorf("account link %s: %w", userID, sentinel.ErrNotFound)
	}
	return &link, nil
}

func (s *InMemoryStore) SaveTaskPost(_ context.Context, post records.TaskPost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts = append(s.posts, post)
	return nil
}

// ListTaskPosts returns the guild's posts newest first.
func (s *InMemoryStore) ListTaskPosts(_ context.Context, guildID string, limit int) ([]records.TaskPost, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []records.TaskPost
	for _, p := range s.posts {
		if p.GuildID == guildID {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].PostedAt.After(out[j].PostedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *InMemoryStore) SaveAllowlistConnection(_ context.Context, conn records.AllowlistConnection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := conn.UserID + "/" + conn.AllowlistID
	if _, ok := s.connections[key]; ok {
		return nil
	}
	s.connections[key] = conn
	return nil
}

func (s *InMemoryStore) ListAllowlistConnections(_ context.Context, userID string) ([]records.AllowlistConnection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []records.AllowlistConnection
	for _, c := range s.connections {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out, nil
}
