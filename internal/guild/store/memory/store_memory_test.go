package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"communitybot/internal/guild/models"
	"communitybot/pkg/platform/sentinel"
)

type InMemoryRepositorySuite struct {
	suite.Suite
	repo *InMemoryRepository
	ctx  context.Context
}

func TestInMemoryRepositorySuite(t *testing.T) {
	suite.Run(t, new(InMemoryRepositorySuite))
}

func (s *InMemoryRepositorySuite) SetupTest() {
	s.repo = New()
	s.ctx = context.Background()
}

func (s *InMemoryRepositorySuite) TestMappingLifecycle() {
	mapping := models.ServerMapping{GuildID: "g1", CommunityID: "c1", LinkedBy: "owner", LinkedAt: time.Now()}
	s.Require().NoError(s.repo.CreateMapping(s.ctx, mapping))

	s.Run("duplicate create conflicts", func() {
		err := s.repo.CreateMapping(s.ctx, mapping)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("get returns stored mapping", func() {
		got, err := s.repo.GetMapping(s.ctx, "g1")
		s.Require().NoError(err)
		s.Equal("c1", got.CommunityID)
	})

	s.Run("delete then get is not found", func() {
		s.Require().NoError(s.repo.DeleteMapping(s.ctx, "g1"))
		_, err := s.repo.GetMapping(s.ctx, "g1")
		s.ErrorIs(err, sentinel.ErrNotFound)
		s.ErrorIs(s.repo.DeleteMapping(s.ctx, "g1"), sentinel.ErrNotFound)
	})
}

func (s *InMemoryRepositorySuite) TestLoadAssemblesState() {
	until := time.Date(2026, 3, 1, 13, 0, 0, 0, time.UTC)
	s.Require().NoError(s.repo.CreateMapping(s.ctx, models.ServerMapping{GuildID: "g1", CommunityID: "c1"}))
	s.Require().NoError(s.repo.SaveLockdown(s.ctx, models.Lockdown{GuildID: "g1", Reason: "raid", Until: until}))
	s.Require().NoError(s.repo.SetAlertChannel(s.ctx, "g1", "alerts"))

	state, err := s.repo.Load(s.ctx, "g1")
	s.Require().NoError(err)
	s.Equal("g1", state.GuildID)
	s.True(state.Linked())
	s.Equal("raid", state.Lockdown.Reason)
	s.Equal("alerts", state.AlertChannelID)

	s.Require().NoError(s.repo.DeleteLockdown(s.ctx, "g1"))
	s.Require().NoError(s.repo.SetAlertChannel(s.ctx, "g1", ""))
	state, err = s.repo.Load(s.ctx, "g1")
	s.Require().NoError(err)
	s.Nil(state.Lockdown)
	s.Empty(state.AlertChannelID)
}

func (s *InMemoryRepositorySuite) TestLoadUnknownGuild() {
	state, err := s.repo.Load(s.ctx, "nope")
	s.Require().NoError(err)
	s.Equal("nope", state.GuildID)
	s.False(state.Linked())
	s.Nil(state.Lockdown)
}
