package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"

	"communitybot/internal/cache"
	"communitybot/pkg/platform/circuit"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

var fastRetry = RetryPolicy{MaxAttempts: 5, Base: time.Millisecond, Factor: 2}

type ClientSuite struct {
	suite.Suite
	hits    atomic.Int32
	handler http.HandlerFunc
	server  *httptest.Server
	now     time.Time
	cache   *cache.Cache
	client  *Client
}

func TestClientSuite(t *testing.T) {
	suite.Run(t, new(ClientSuite))
}

func (s *ClientSuite) SetupTest() {
	s.hits.Store(0)
	s.handler = func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) }
	s.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		s.handler(w, r)
	}))
	s.T().Cleanup(s.server.Close)

	s.now = time.Now()
	backend := cache.NewMemoryBackend().WithClock(func() time.Time { return s.now })
	s.cache = cache.New(backend)
	s.Require().True(s.cache.Connect(context.Background()))
	s.T().Cleanup(s.cache.Close)

	s.client = s.newClient()
}

func (s *ClientSuite) newClient(opts ...Option) *Client {
	opts = append([]Option{WithRetryPolicy(fastRetry)}, opts...)
	c, err := New(s.server.URL, "secret", s.cache, opts...)
	s.Require().NoError(err)
	return c
}

func (s *ClientSuite) respond(status int, body any) {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if body != nil {
			_ = json.NewEncoder(w).Encode(body)
		}
	}
}

func (s *ClientSuite) TestNew() {
	_, err := New("", "k", nil)
	s.ErrorContains(err, "base url is required")
	_, err = New("::bad", "k", nil)
	s.ErrorContains(err, "invalid backend base url")
	_, err = New("https://api.example.com", "", nil)
	s.ErrorContains(err, "api key is required")
}

func (s *ClientSuite) TestSendsBearerAndDecodes() {
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		s.Equal("Bearer secret", r.Header.Get("Authorization"))
		s.Equal("/communities/c%2F1", r.URL.EscapedPath())
		_ = json.NewEncoder(w).Encode(Community{ID: "c/1", Name: "Guildies"})
	}
	got, err := s.client.Community(context.Background(), "c/1")
	s.Require().NoError(err)
	s.Equal("Guildies", got.Name)
}

func (s *ClientSuite) TestClassification() {
	cases := []struct {
		status    int
		kind      Kind
		retriable bool
		hits      int32
	}{
		{http.StatusBadRequest, KindValidation, false, 1},
		{http.StatusUnauthorized, KindAuth, false, 1},
		{http.StatusForbidden, KindAuth, false, 1},
		{http.StatusNotFound, KindNotFound, false, 1},
		{http.StatusTooManyRequests, KindRateLimited, true, 5},
		{http.StatusInternalServerError, KindServer, true, 5},
		{http.StatusBadGateway, KindServer, true, 5},
	}
	for _, tc := range cases {
		s.Run(http.StatusText(tc.status), func() {
			s.hits.Store(0)
			s.respond(tc.status, map[string]string{"error": "nope"})
			err := s.newClient().Get(context.Background(), "/thing", nil, nil)
			s.Require().Error(err)
			s.Equal(tc.kind, KindOf(err))
			s.Equal(tc.retriable, IsRetriable(err))
			s.Equal(tc.hits, s.hits.Load())

			var be *Error
			s.Require().ErrorAs(err, &be)
			s.Equal(tc.status, be.Status)
			s.Equal("nope", be.Message)
		})
	}
}

func (s *ClientSuite) TestGetRetriesUntilSuccess() {
	s.handler = func(w http.ResponseWriter, _ *http.Request) {
		if s.hits.Load() < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(Analytics{Members: 42})
	}
	got, err := s.client.Analytics(context.Background(), "c1")
	s.Require().NoError(err)
	s.Equal(42, got.Members)
	s.Equal(int32(3), s.hits.Load())
}

func (s *ClientSuite) TestPostDoesNotRetryOnceSent() {
	s.respond(http.StatusInternalServerError, nil)
	_, err := s.client.ConnectAllowlist(context.Background(), "c1", "a1", "u1", "")
	s.Equal(KindServer, KindOf(err))
	s.Equal(int32(1), s.hits.Load())
}

func (s *ClientSuite) TestPostRetriesFailureBeforeSending() {
	var calls atomic.Int32
	transport := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("dial tcp: connection refused")
		}
		return http.DefaultTransport.RoundTrip(r)
	})
	c := s.newClient(WithHTTPClient(&http.Client{Transport: transport}))

	s.respond(http.StatusOK, Completion{TaskID: "t1", Status: "completed"})
	got, err := c.CompleteTask(context.Background(), "c1", "t1", "u1")
	s.Require().NoError(err)
	s.Equal("completed", got.Status)
	s.Equal(int32(2), calls.Load())
	s.Equal(int32(1), s.hits.Load())
}

func (s *ClientSuite) TestTimeout() {
	release := make(chan struct{})
	s.T().Cleanup(func() { close(release) })
	s.handler = func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}
	c := s.newClient(WithRetryPolicy(RetryPolicy{MaxAttempts: 1}), WithTimeout(20*time.Millisecond, 0))
	err := c.Get(context.Background(), "/slow", nil, nil)
	s.Equal(KindTimeout, KindOf(err))
	s.True(IsRetriable(err))
}

func (s *ClientSuite) TestOpenBreakerSkipsRetries() {
	c := s.newClient(WithBreaker(circuit.New("backend-test", circuit.WithFailureThreshold(2))))
	s.respond(http.StatusInternalServerError, nil)

	s.Error(c.Get(context.Background(), "/x", nil, nil))
	s.Equal(int32(5), s.hits.Load())
	s.True(c.BreakerOpen())

	s.hits.Store(0)
	s.Error(c.Get(context.Background(), "/x", nil, nil))
	s.Equal(int32(1), s.hits.Load())
}

func (s *ClientSuite) TestReadThroughAndInvalidation() {
	s.respond(http.StatusOK, TaskPage{Tasks: []Task{{ID: "t1", Title: "Follow us"}}, Page: 1, TotalPages: 1})
	ctx := context.Background()

	first, err := s.client.ListTasks(ctx, "c1", 1)
	s.Require().NoError(err)
	second, err := s.client.ListTasks(ctx, "c1", 1)
	s.Require().NoError(err)
	s.Equal(first, second)
	s.Equal(int32(1), s.hits.Load())

	s.respond(http.StatusOK, Completion{TaskID: "t1", Status: "completed"})
	_, err = s.client.CompleteTask(ctx, "c1", "t1", "u1")
	s.Require().NoError(err)

	s.respond(http.StatusOK, TaskPage{Page: 1, TotalPages: 1})
	third, err := s.client.ListTasks(ctx, "c1", 1)
	s.Require().NoError(err)
	s.Empty(third.Tasks)
	s.Equal(int32(3), s.hits.Load())
}

func (s *ClientSuite) TestStaleIfError() {
	ctx := context.Background()
	s.respond(http.StatusOK, Task{ID: "t1", Title: "Quiz"})
	_, err := s.client.Task(ctx, "c1", "t1")
	s.Require().NoError(err)

	s.now = s.now.Add(time.Hour)
	s.respond(http.StatusServiceUnavailable, nil)
	got, err := s.client.Task(ctx, "c1", "t1")
	s.Require().NoError(err)
	s.Equal("Quiz", got.Title)

	s.respond(http.StatusNotFound, nil)
	_, err = s.client.Task(ctx, "c1", "t1")
	s.True(IsNotFound(err))
	_, err = s.client.Task(ctx, "c1", "t1")
	s.True(IsNotFound(err), "a definitive answer drops the stale copy")
}

func (s *ClientSuite) TestUnlinkInvalidatesMapping() {
	ctx := context.Background()
	s.respond(http.StatusOK, map[string]string{"guild_id": "G", "community_id": "c1"})
	m, err := s.client.ServerMapping(ctx, "G")
	s.Require().NoError(err)
	s.Equal("c1", m.CommunityID)
	s.True(s.cache.Exists(ctx, cache.ServerMappingKey("G")))

	s.respond(http.StatusNoContent, nil)
	s.Require().NoError(s.client.UnlinkServer(ctx, "G"))
	s.False(s.cache.Exists(ctx, cache.ServerMappingKey("G")))
}

func (s *ClientSuite) TestPing() {
	s.NoError(s.client.Ping(context.Background()))

	s.hits.Store(0)
	s.respond(http.StatusInternalServerError, nil)
	s.Error(s.client.Ping(context.Background()))
	s.Equal(int32(1), s.hits.Load(), "health probes are not retried")
}

func TestRetryPolicyDelay(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, 250*time.Millisecond, p.delay(1, 0.5))
	assert.Equal(t, 500*time.Millisecond, p.delay(2, 0.5))
	assert.Equal(t, 800*time.Millisecond, p.delay(3, 0))
	assert.Equal(t, 2400*time.Millisecond, p.delay(4, 1))

	for range 100 {
		d := p.Delay(1)
		assert.GreaterOrEqual(t, d, 200*time.Millisecond)
		assert.LessOrEqual(t, d, 300*time.Millisecond)
	}
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, 3*time.Second, parseRetryAfter("3"))
	assert.Zero(t, parseRetryAfter(""))
	assert.Zero(t, parseRetryAfter("soon"))
}
