package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"communitybot/internal/audit"
	auditmemory "communitybot/internal/audit/store/memory"
	"communitybot/internal/cache"
	"communitybot/internal/guild/models"
	"communitybot/internal/guild/store/memory"
	"communitybot/pkg/requestcontext"
)

// countingRepo counts Load calls so tests can observe cache hits.
type countingRepo struct {
	*memory.InMemoryRepository
	loads atomic.Int32
	err   error
}

func (r *countingRepo) Load(ctx context.Context, guildID string) (models.State, error) {
	r.loads.Add(1)
	if r.err != nil {
		return models.State{}, r.err
	}
	return r.InMemoryRepository.Load(ctx, guildID)
}

type ServiceSuite struct {
	suite.Suite
	ctx        context.Context
	now        time.Time
	repo       *countingRepo
	cache      *cache.Cache
	auditStore *auditmemory.InMemoryStore
	service    *Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.repo = &countingRepo{InMemoryRepository: memory.New()}
	s.cache = cache.New(cache.NewMemoryBackend())
	s.Require().True(s.cache.Connect(s.ctx))
	s.auditStore = auditmemory.NewInMemoryStore()
	auditSvc, err := audit.New(s.auditStore)
	s.Require().NoError(err)

	s.service, err = New(s.repo, s.cache, WithAuditPublisher(auditSvc))
	s.Require().NoError(err)
}

func (s *ServiceSuite) TearDownTest() {
	s.cache.Close()
}

func (s *ServiceSuite) TestNew() {
	_, err := New(nil, s.cache)
	s.ErrorContains(err, "guild repository is required")
	_, err = New(s.repo, nil)
	s.ErrorContains(err, "cache is required")
}

func (s *ServiceSuite) TestStateIsReadThrough() {
	_, err := s.service.Link(s.ctx, "g1", "c1", "owner")
	s.Require().NoError(err)

	first, err := s.service.State(s.ctx, "g1")
	s.Require().NoError(err)
	second, err := s.service.State(s.ctx, "g1")
	s.Require().NoError(err)

	s.Equal(int32(1), s.repo.loads.Load())
	s.Equal(first, second)
	s.Equal("c1", second.CommunityID())

	cached := s.service.GetCachedServerMapping(s.ctx, "g1")
	s.Require().NotNil(cached)
	s.Equal("c1", cached.CommunityID)
}

func (s *ServiceSuite) TestWritesInvalidate() {
	_, err := s.service.State(s.ctx, "g1")
	s.Require().NoError(err)

	_, err = s.service.Link(s.ctx, "g1", "c1", "owner")
	s.Require().NoError(err)
	state, err := s.service.State(s.ctx, "g1")
	s.Require().NoError(err)
	s.True(state.Linked())

	_, err = s.service.SetLockdown(s.ctx, "g1", "raid", "admin", 10*time.Minute)
	s.Require().NoError(err)
	state, err = s.service.State(s.ctx, "g1")
	s.Require().NoError(err)
	s.True(state.Lockdown.ActiveAt(s.now))

	s.Require().NoError(s.service.LiftLockdown(s.ctx, "g1", "admin"))
	state, err = s.service.State(s.ctx, "g1")
	s.Require().NoError(err)
	s.Nil(state.Lockdown)

	s.Require().NoError(s.service.SetAlertChannel(s.ctx, "g1", "alerts", "admin"))
	s.Equal("alerts", s.service.AlertChannel(s.ctx, "g1"))

	s.Require().NoError(s.service.Unlink(s.ctx, "g1", "owner"))
	s.Nil(s.service.GetCachedServerMapping(s.ctx, "g1"))
	state, err = s.service.State(s.ctx, "g1")
	s.Require().NoError(err)
	s.False(state.Linked())
}

func (s *ServiceSuite) TestLinkErrors() {
	_, err := s.service.Link(s.ctx, "g1", "c1", "owner")
	s.Require().NoError(err)

	_, err = s.service.Link(s.ctx, "g1", "c2", "owner")
	s.ErrorIs(err, ErrAlreadyLinked)

	s.ErrorIs(s.service.Unlink(s.ctx, "g2", "owner"), ErrNotLinked)
}

func (s *ServiceSuite) TestWritesAreAudited() {
	_, err := s.service.Link(s.ctx, "g1", "c1", "owner")
	s.Require().NoError(err)

	entries := s.auditStore.All()
	s.Require().Len(entries, 1)
	s.Equal(audit.EventConfigChanged, entries[0].Type)
	s.Equal("g1", entries[0].GuildID)
	s.Equal("owner", entries[0].UserID)
	s.Equal("link_community", entries[0].Details["change"])
}

func (s *ServiceSuite) TestDegradedCache() {
	degraded := cache.New(nil)
	svc, err := New(s.repo, degraded)
	s.Require().NoError(err)

	_, err = svc.Link(s.ctx, "g1", "c1", "owner")
	s.Require().NoError(err)

	s.Nil(svc.GetCachedServerMapping(s.ctx, "g1"))

	s.Run("state falls back to storage", func() {
		state, err := svc.State(s.ctx, "g1")
		s.Require().NoError(err)
		s.True(state.Linked())
	})

	s.Run("storage failure surfaces as error", func() {
		s.repo.err = errors.New("connection reset")
		_, err := svc.State(s.ctx, "g1")
		s.ErrorContains(err, "connection reset")
	})
}
