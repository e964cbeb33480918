//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"communitybot/internal/records"
	"communitybot/pkg/platform/sentinel"
	"communitybot/pkg/testutil/containers"
)

type StoreSuite struct {
	suite.Suite
	pg    *containers.PostgresContainer
	store *Store
	ctx   context.Context
}

func TestStoreSuite(t *testing.T) {
	suite.Run(t, new(StoreSuite))
}

func (s *StoreSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.store = New(s.pg.DB)
	s.ctx = context.Background()
}

func (s *StoreSuite) SetupTest() {
	s.Require().NoError(s.pg.Truncate(s.ctx, "account_links", "task_posts", "allowlist_connections"))
}

func (s *StoreSuite) TestAccountLinkUpsert() {
	now := time.Now().UTC().Truncate(time.Millisecond)
	_, err := s.store.GetAccountLink(s.ctx, "u1")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Require().NoError(s.store.SaveAccountLink(s.ctx, records.AccountLink{UserID: "u1", BackendUserID: "b1", LinkedAt: now}))
	s.Require().NoError(s.store.SaveAccountLink(s.ctx, records.AccountLink{UserID: "u1", BackendUserID: "b2", LinkedAt: now}))

	link, err := s.store.GetAccountLink(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal("b2", link.BackendUserID)
}

func (s *StoreSuite) TestTaskPostsOrdering() {
	now := time.Now().UTC().Truncate(time.Millisecond)
	for i, id := range []string{"m1", "m2"} {
		s.Require().NoError(s.store.SaveTaskPost(s.ctx, records.TaskPost{
			MessageID: id, GuildID: "g1", ChannelID: "ch", CommunityID: "c1",
			TaskID: "t1", PostedBy: "admin", PostedAt: now.Add(time.Duration(i) * time.Second),
		}))
	}
	posts, err := s.store.ListTaskPosts(s.ctx, "g1", 10)
	s.Require().NoError(err)
	s.Require().Len(posts, 2)
	s.Equal("m2", posts[0].MessageID)
}

func (s *StoreSuite) TestAllowlistConnectionIdempotent() {
	conn := records.AllowlistConnection{UserID: "u1", AllowlistID: "a1", GuildID: "g1", ConnectedAt: time.Now().UTC()}
	s.Require().NoError(s.store.SaveAllowlistConnection(s.ctx, conn))
	s.Require().NoError(s.store.SaveAllowlistConnection(s.ctx, conn))

	conns, err := s.store.ListAllowlistConnections(s.ctx, "u1")
	s.Require().NoError(err)
	s.Len(conns, 1)
}
