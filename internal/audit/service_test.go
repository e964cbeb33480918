package audit_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"communitybot/internal/audit"
	"communitybot/internal/audit/store/memory"
	"communitybot/pkg/requestcontext"
)

type recordingSink struct {
	mu      sync.Mutex
	entries []audit.Entry
	err     error
	closed  bool
}

func (r *recordingSink) Publish(_ context.Context, e audit.Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *recordingSink) Close() error {
	r.closed = true
	return nil
}

type failingStore struct {
	*memory.InMemoryStore
}

func (failingStore) Append(context.Context, audit.Entry) error {
	return errors.New("disk full")
}

type ServiceSuite struct {
	suite.Suite
	ctx   context.Context
	now   time.Time
	store *memory.InMemoryStore
	svc   *audit.Service
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.ctx = requestcontext.WithRequestID(s.ctx, "interaction-1")
	s.store = memory.NewInMemoryStore()

	var err error
	s.svc, err = audit.New(s.store)
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestLogRedactsDetails() {
	err := s.svc.Log(s.ctx, audit.Entry{
		Type:    audit.EventCommandExecuted,
		UserID:  "123",
		Details: map[string]any{"password": "x", "userId": "123"},
	})
	s.Require().NoError(err)

	all := s.store.All()
	s.Require().Len(all, 1)
	s.Equal(map[string]any{"password": audit.Redacted, "userId": "123"}, all[0].Details)
}

func (s *ServiceSuite) TestLogFillsDefaults() {
	s.Require().NoError(s.svc.Log(s.ctx, audit.Entry{Type: audit.EventConfigChanged}))

	e := s.store.All()[0]
	s.NotEmpty(e.ID)
	s.Equal(s.now, e.Timestamp)
	s.Equal("interaction-1", e.RequestID)
}

func (s *ServiceSuite) TestLogRejectsUnknownType() {
	err := s.svc.Log(s.ctx, audit.Entry{Type: "made_up"})
	s.ErrorIs(err, audit.ErrInvalidEntry)
	s.Empty(s.store.All())
}

func (s *ServiceSuite) TestQuery() {
	for i, typ := range []audit.EventType{audit.EventPermissionDenied, audit.EventPermissionGranted, audit.EventPermissionDenied} {
		ctx := requestcontext.WithTime(s.ctx, s.now.Add(time.Duration(i)*time.Minute))
		s.Require().NoError(s.svc.Log(ctx, audit.Entry{Type: typ, GuildID: "g1", UserID: "u1"}))
	}
	s.Require().NoError(s.svc.Log(s.ctx, audit.Entry{Type: audit.EventPermissionDenied, GuildID: "g2"}))

	s.Run("by type and guild", func() {
		got, err := s.svc.Query(s.ctx, audit.Filter{Types: []audit.EventType{audit.EventPermissionDenied}, GuildID: "g1"})
		s.Require().NoError(err)
		s.Len(got, 2)
		s.True(got[0].Timestamp.After(got[1].Timestamp), "newest first")
	})

	s.Run("limit", func() {
		got, err := s.svc.Query(s.ctx, audit.Filter{Limit: 1})
		s.Require().NoError(err)
		s.Len(got, 1)
	})

	s.Run("time range", func() {
		got, err := s.svc.Query(s.ctx, audit.Filter{Since: s.now.Add(time.Minute), Until: s.now.Add(2 * time.Minute)})
		s.Require().NoError(err)
		s.Require().Len(got, 1)
		s.Equal(audit.EventPermissionGranted, got[0].Type)
	})
}

func (s *ServiceSuite) TestCleanup() {
	old := requestcontext.WithTime(s.ctx, s.now.Add(-91*24*time.Hour))
	s.Require().NoError(s.svc.Log(old, audit.Entry{Type: audit.EventCommandExecuted}))
	s.Require().NoError(s.svc.Log(s.ctx, audit.Entry{Type: audit.EventCommandExecuted}))

	n, err := s.svc.Cleanup(s.ctx, 90)
	s.Require().NoError(err)
	s.Equal(int64(1), n)
	s.Len(s.store.All(), 1)

	_, err = s.svc.Cleanup(s.ctx, 0)
	s.Error(err)
}

func (s *ServiceSuite) TestSummary() {
	s.Require().NoError(s.svc.Log(s.ctx, audit.Entry{Type: audit.EventCommandExecuted}))
	s.Require().NoError(s.svc.Log(s.ctx, audit.Entry{Type: audit.EventCommandFailed}))
	s.Require().NoError(s.svc.Log(s.ctx, audit.Entry{Type: audit.EventCommandFailed}))

	sum, err := s.svc.Summary(s.ctx)
	s.Require().NoError(err)
	s.Equal(int64(3), sum.Total)
	s.Equal(int64(2), sum.ByType[audit.EventCommandFailed])
}

func TestService_SinksReceiveSanitizedEntries(t *testing.T) {
	sink := &recordingSink{}
	failing := &recordingSink{err: errors.New("broker down")}
	store := memory.NewInMemoryStore()
	svc, err := audit.New(store, audit.WithSinks(sink, failing))
	require.NoError(t, err)

	require.NoError(t, svc.Log(context.Background(), audit.Entry{
		Type:    audit.EventSecurityEvent,
		Details: map[string]any{"ip": "10.0.0.1"},
	}), "sink failure does not fail the write")

	require.Len(t, sink.entries, 1)
	assert.Equal(t, audit.Redacted, sink.entries[0].Details["ip"])
	assert.Len(t, store.All(), 1)

	require.NoError(t, svc.Close())
	assert.True(t, sink.closed)
}

func TestService_StoreFailureIsReturned(t *testing.T) {
	svc, err := audit.New(failingStore{memory.NewInMemoryStore()})
	require.NoError(t, err)
	assert.Error(t, svc.Log(context.Background(), audit.Entry{Type: audit.EventCommandFailed}))
}

func TestService_AsyncPreservesOrderAndDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	svc, err := audit.New(store, audit.WithAsyncBuffer(4))
	require.NoError(t, err)

	types := []audit.EventType{
		audit.EventPermissionGranted,
		audit.EventCommandExecuted,
		audit.EventPermissionDenied,
		audit.EventRateLimitExceeded,
		audit.EventCommandFailed,
		audit.EventSecurityEvent,
	}
	for _, typ := range types {
		require.NoError(t, svc.Log(context.Background(), audit.Entry{Type: typ}))
	}
	require.NoError(t, svc.Close())

	all := store.All()
	require.Len(t, all, len(types))
	for i, e := range all {
		assert.Equal(t, types[i], e.Type)
	}

	require.NoError(t, svc.Log(context.Background(), audit.Entry{Type: audit.EventConfigChanged}), "writes after close are synchronous")
	assert.Len(t, store.All(), len(types)+1)
}

func TestNew_RequiresStore(t *testing.T) {
	_, err := audit.New(nil)
	assert.Error(t, err)
}

func TestLogAudit(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	store := memory.NewInMemoryStore()
	svc, err := audit.New(store)
	require.NoError(t, err)

	ctx := requestcontext.WithRequestID(context.Background(), "i-9")
	audit.LogAudit(ctx, logger, svc, audit.EventPermissionDenied,
		"user_id", "u1",
		"guild_id", "g1",
		"command", "tasks",
		"success", false,
		"reason", "Bots cannot use commands",
		"token", "leak",
	)

	all := store.All()
	require.Len(t, all, 1)
	e := all[0]
	assert.Equal(t, "u1", e.UserID)
	assert.Equal(t, "g1", e.GuildID)
	assert.Equal(t, "tasks", e.CommandName)
	require.NotNil(t, e.Success)
	assert.False(t, *e.Success)
	assert.Equal(t, "i-9", e.RequestID)
	assert.Equal(t, "Bots cannot use commands", e.Details["reason"])
	assert.Equal(t, audit.Redacted, e.Details["token"])
	assert.NotContains(t, e.Details, "user_id")

	assert.Contains(t, buf.String(), "log_type=audit")
	assert.Contains(t, buf.String(), "request_id=i-9")
}
