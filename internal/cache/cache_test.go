package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// flakyBackend fails every call while down is set.
type flakyBackend struct {
	*MemoryBackend
	down  atomic.Bool
	pings atomic.Int32
}

var errTransport = errors.New("connection refused")

func newFlakyBackend() *flakyBackend {
	return &flakyBackend{MemoryBackend: NewMemoryBackend()}
}

func (f *flakyBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if f.down.Load() {
		return nil, errTransport
	}
	return f.MemoryBackend.Get(ctx, key)
}

func (f *flakyBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if f.down.Load() {
		return errTransport
	}
	return f.MemoryBackend.Set(ctx, key, value, ttl)
}

func (f *flakyBackend) Ping(ctx context.Context) error {
	f.pings.Add(1)
	if f.down.Load() {
		return errTransport
	}
	return nil
}

type mapping struct {
	CommunityID string `json:"communityId"`
	LinkedBy    string `json:"linkedBy"`
}

type CacheSuite struct {
	suite.Suite
	ctx     context.Context
	backend *MemoryBackend
	cache   *Cache
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheSuite))
}

func (s *CacheSuite) SetupTest() {
	s.ctx = context.Background()
	s.backend = NewMemoryBackend()
	s.cache = New(s.backend)
	s.Require().True(s.cache.Connect(s.ctx))
}

func (s *CacheSuite) TearDownTest() {
	s.cache.Close()
}

func (s *CacheSuite) TestSetThenGetRoundTrip() {
	key := ServerMappingKey("g1")
	want := mapping{CommunityID: "c1", LinkedBy: "u1"}

	s.True(s.cache.Set(s.ctx, key, want, 0))

	var got mapping
	s.Require().True(s.cache.Get(s.ctx, key, &got))
	s.Equal(want, got)
	s.True(s.cache.Exists(s.ctx, key))
}

func (s *CacheSuite) TestGetMiss() {
	var got mapping
	s.False(s.cache.Get(s.ctx, ServerMappingKey("missing"), &got))
	s.Zero(got)
}

func (s *CacheSuite) TestDelete() {
	key := SessionKey("u1")
	s.Require().True(s.cache.Set(s.ctx, key, "session", 0))
	s.True(s.cache.Delete(s.ctx, key))
	s.False(s.cache.Exists(s.ctx, key))
}

func (s *CacheSuite) TestTTLExpiry() {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.backend.WithClock(func() time.Time { return now })

	key := TempKey("cursor", "u1")
	s.Require().True(s.cache.Set(s.ctx, key, 3, 0))

	now = now.Add(PrefixTempData.DefaultTTL() - time.Millisecond)
	s.True(s.cache.Exists(s.ctx, key))

	now = now.Add(time.Millisecond)
	s.False(s.cache.Exists(s.ctx, key))
}

func (s *CacheSuite) TestDeletePatternClearsPrefix() {
	s.Require().True(s.cache.Set(s.ctx, TaskKey("c1", "t1"), "a", 0))
	s.Require().True(s.cache.Set(s.ctx, TaskListKey("c1", 0), []string{"t1"}, 0))
	s.Require().True(s.cache.Set(s.ctx, TaskKey("c1", "t1").Stale(), "a", time.Hour))
	s.Require().True(s.cache.Set(s.ctx, TaskKey("c2", "t9"), "b", 0))

	n := s.cache.DeletePattern(s.ctx, TaskPattern("c1"))
	s.Equal(int64(3), n)

	var v string
	s.False(s.cache.Get(s.ctx, TaskKey("c1", "t1"), &v))
	s.False(s.cache.Get(s.ctx, TaskKey("c1", "t1").Stale(), &v))
	s.True(s.cache.Get(s.ctx, TaskKey("c2", "t9"), &v))
}

func (s *CacheSuite) TestPatternCannotBeWidenedByInput() {
	s.Require().True(s.cache.Set(s.ctx, TaskKey("c1", "t1"), "a", 0))
	s.Equal(int64(0), s.cache.DeletePattern(s.ctx, TaskPattern("*")))
	s.True(s.cache.Exists(s.ctx, TaskKey("c1", "t1")))
}

func (s *CacheSuite) TestMSetAndMGet() {
	values := map[Key]any{
		TaskKey("c1", "t1"): mapping{CommunityID: "c1"},
		TaskKey("c1", "t2"): mapping{CommunityID: "c1", LinkedBy: "x"},
	}
	s.Require().True(s.cache.MSet(s.ctx, values, 0))

	got := MGet[mapping](s.ctx, s.cache, TaskKey("c1", "t1"), TaskKey("c1", "t2"), TaskKey("c1", "nope"))
	s.Len(got, 2)
	s.Equal("x", got[TaskKey("c1", "t2")].LinkedBy)
}

func (s *CacheSuite) TestGetOrLoadCallsLoaderOnce() {
	var calls atomic.Int32
	release := make(chan struct{})
	load := func(context.Context) (mapping, error) {
		calls.Add(1)
		<-release
		return mapping{CommunityID: "c1"}, nil
	}

	var wg sync.WaitGroup
	results := make([]mapping, 8)
	for i := range results {
		wg.Go(func() {
			v, err := GetOrLoad(s.ctx, s.cache, ServerMappingKey("g1"), 0, load)
			s.NoError(err)
			results[i] = v
		})
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	s.Equal(int32(1), calls.Load())
	for _, r := range results {
		s.Equal("c1", r.CommunityID)
	}

	_, err := GetOrLoad(s.ctx, s.cache, ServerMappingKey("g1"), 0, load)
	s.NoError(err)
	s.Equal(int32(1), calls.Load(), "second lookup served from cache")
}

func (s *CacheSuite) TestGetOrLoadStaleServesLastKnownGood() {
	key := TaskKey("c1", "t1")
	v, stale, err := GetOrLoadStale(s.ctx, s.cache, key, time.Minute, time.Hour, func(context.Context) (string, error) {
		return "fresh", nil
	})
	s.Require().NoError(err)
	s.False(stale)
	s.Equal("fresh", v)

	s.Require().True(s.cache.Delete(s.ctx, key))
	v, stale, err = GetOrLoadStale(s.ctx, s.cache, key, time.Minute, time.Hour, func(context.Context) (string, error) {
		return "", errors.New("backend down")
	})
	s.Require().NoError(err)
	s.True(stale)
	s.Equal("fresh", v)

	s.Require().True(s.cache.Invalidate(s.ctx, key))
	_, _, err = GetOrLoadStale(s.ctx, s.cache, key, time.Minute, time.Hour, func(context.Context) (string, error) {
		return "", errors.New("backend down")
	})
	s.Error(err)
}

func TestCache_DegradedWithoutBackend(t *testing.T) {
	ctx := context.Background()
	c := New(nil)
	defer c.Close()

	assert.False(t, c.Connect(ctx))
	assert.False(t, c.Connected())
	assert.False(t, c.Set(ctx, SessionKey("u"), "v", 0))

	var v string
	assert.False(t, c.Get(ctx, SessionKey("u"), &v))
	assert.False(t, c.Exists(ctx, SessionKey("u")))
	assert.False(t, c.Delete(ctx, SessionKey("u")))
	assert.Zero(t, c.DeletePattern(ctx, PrefixSession.Pattern()))
	assert.Empty(t, MGet[string](ctx, c, SessionKey("u")))
	assert.ErrorIs(t, c.Ping(ctx), ErrNotConfigured)

	loaded, err := GetOrLoad(ctx, c, SessionKey("u"), 0, func(context.Context) (string, error) {
		return "from-source", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "from-source", loaded, "callers keep working without a cache")
}

func TestCache_TransportLossDegradesAndReconnects(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyBackend()
	c := New(backend, WithReconnect(5*time.Millisecond, 5))
	defer c.Close()
	require.True(t, c.Connect(ctx))

	backend.down.Store(true)
	assert.False(t, c.Set(ctx, SessionKey("u"), "v", 0), "write fails softly")
	assert.False(t, c.Connected())

	var v string
	assert.False(t, c.Get(ctx, SessionKey("u"), &v))

	backend.down.Store(false)
	require.Eventually(t, c.Connected, time.Second, 5*time.Millisecond)
	assert.True(t, c.Set(ctx, SessionKey("u"), "v", 0))
}

func TestCache_ReconnectGivesUpAfterMaxAttempts(t *testing.T) {
	ctx := context.Background()
	backend := newFlakyBackend()
	backend.down.Store(true)
	c := New(backend, WithReconnect(time.Millisecond, 3))
	defer c.Close()

	assert.False(t, c.Connect(ctx))
	require.Eventually(t, func() bool { return !c.reconnecting.Load() }, time.Second, time.Millisecond)
	assert.Equal(t, int32(4), backend.pings.Load(), "initial probe plus three retries")

	backend.down.Store(false)
	require.NoError(t, c.Ping(ctx), "health probe recovers the connection")
	assert.True(t, c.Connected())
}

func TestCache_OperationTimeout(t *testing.T) {
	ctx := context.Background()
	c := New(&slowBackend{MemoryBackend: NewMemoryBackend()}, WithOperationTimeout(10*time.Millisecond))
	defer c.Close()
	c.connected.Store(true)

	start := time.Now()
	var v string
	assert.False(t, c.Get(ctx, SessionKey("u"), &v))
	assert.Less(t, time.Since(start), time.Second)
}

type slowBackend struct {
	*MemoryBackend
}

func (b *slowBackend) Get(ctx context.Context, _ string) ([]byte, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *slowBackend) Ping(context.Context) error { return errTransport }
