// Package backend is the outbound client for the community backend API. Every
// call is throttled, bounded by a timeout, retried per RetryPolicy and returns
// a classified *Error on failure. Designated reads go through the cache.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptrace"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"communitybot/internal/cache"
	"communitybot/pkg/platform/circuit"
	"communitybot/pkg/requestcontext"
)

const (
	defaultTimeout       = 10 * time.Second
	defaultHealthTimeout = 5 * time.Second
	maxErrorBody         = 4 << 10
	healthPath           = "/health"
)

type Client struct {
	baseURL       string
	apiKey        string
	http          *http.Client
	cache         *cache.Cache
	limiter       *rate.Limiter
	breaker       *circuit.Breaker
	retry         RetryPolicy
	timeout       time.Duration
	healthTimeout time.Duration
	staleTTL      time.Duration
	logger        *slog.Logger
	metrics       *Metrics
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

func WithRetryPolicy(p RetryPolicy) Option {
	return func(c *Client) {
		c.retry = p
	}
}

// WithRateLimit throttles outbound requests. A non-positive rps disables it.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
	}
}

func WithBreaker(b *circuit.Breaker) Option {
	return func(c *Client) {
		c.breaker = b
	}
}

// WithTimeout bounds each attempt and the health probe.
func WithTimeout(call, health time.Duration) Option {
	return func(c *Client) {
		if call > 0 {
			c.timeout = call
		}
		if health > 0 {
			c.healthTimeout = health
		}
	}
}

// WithStaleTTL sets how long last-known-good copies of cached reads are kept
// for serving when the backend is failing.
func WithStaleTTL(ttl time.Duration) Option {
	return func(c *Client) {
		c.staleTTL = ttl
	}
}

func New(baseURL, apiKey string, c *cache.Cache, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("backend base url is required")
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid backend base url: %w", err)
	}
	if apiKey == "" {
		return nil, errors.New("backend api key is required")
	}
	if c == nil {
		c = cache.New(nil)
	}
	client := &Client{
		baseURL:       baseURL,
		apiKey:        apiKey,
		http:          &http.Client{},
		cache:         c,
		breaker:       circuit.New("backend"),
		retry:         DefaultRetryPolicy(),
		timeout:       defaultTimeout,
		healthTimeout: defaultHealthTimeout,
		staleTTL:      6 * time.Hour,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

type call struct {
	route  string
	method string
	path   string
	query  url.Values
	body   any
	out    any
}

func (r call) idempotent() bool {
	switch r.method {
	case http.MethodGet, http.MethodHead, http.MethodPut, http.MethodDelete:
		return true
	default:
		return false
	}
}

// Get issues a GET and decodes the JSON response into out.
func (c *Client) Get(ctx context.Context, path string, params url.Values, out any) error {
	return c.do(ctx, call{route: path, method: http.MethodGet, path: path, query: params, out: out})
}

// Post issues a POST with a JSON body and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any) error {
	return c.do(ctx, call{route: path, method: http.MethodPost, path: path, body: body, out: out})
}

// Delete issues a DELETE.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.do(ctx, call{route: path, method: http.MethodDelete, path: path})
}

func (c *Client) do(ctx context.Context, r call) error {
	var payload []byte
	if r.body != nil {
		var err error
		if payload, err = json.Marshal(r.body); err != nil {
			return newError(KindValidation, r.method, r.path, 0, "encode request", err)
		}
	}

	attempts := c.retry.attempts()
	if c.breaker.IsOpen() {
		attempts = 1
	}

	var lastErr *Error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			wait := c.retry.Delay(attempt - 1)
			if lastErr.retryAfter > wait {
				wait = lastErr.retryAfter
			}
			c.metrics.observeRetry(r.route)
			if err := sleep(ctx, wait); err != nil {
				return newError(classifyTransport(err), r.method, r.path, 0, "cancelled while waiting to retry", err)
			}
		}

		start := time.Now()
		sent, err := c.attempt(ctx, r, payload)
		c.metrics.observeRequest(r.route, r.method, outcome(err), time.Since(start))
		if err == nil {
			c.recordSuccess(ctx)
			return nil
		}
		lastErr = err
		if err.Kind == KindServer || err.Kind == KindNetwork || err.Kind == KindTimeout {
			c.recordFailure(ctx, err)
		}
		if ctx.Err() != nil || !c.shouldRetry(r, err, sent) {
			break
		}
		if c.logger != nil {
			c.logger.DebugContext(ctx, "retrying backend call",
				"method", r.method,
				"route", r.route,
				"attempt", attempt,
				"kind", err.Kind.String(),
			)
		}
	}
	return lastErr
}

// shouldRetry applies the retry policy. Non-idempotent calls only retry when
// the request never left the process.
func (c *Client) shouldRetry(r call, err *Error, sent bool) bool {
	if !err.Retriable {
		return false
	}
	if r.idempotent() {
		return true
	}
	return !sent && err.Status == 0 && (err.Kind == KindNetwork || err.Kind == KindTimeout)
}

// attempt performs one round trip. sent reports whether any request bytes
// were written to the connection.
func (c *Client) attempt(ctx context.Context, r call, payload []byte) (bool, *Error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return false, newError(classifyTransport(err), r.method, r.path, 0, "throttled", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var sent atomic.Bool
	ctx = httptrace.WithClientTrace(ctx, &httptrace.ClientTrace{
		WroteHeaderField: func(string, []string) { sent.Store(true) },
	})

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return false, newError(KindValidation, r.method, r.path, 0, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := requestcontext.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return sent.Load(), newError(classifyTransport(err), r.method, r.path, 0, "", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		e := newError(classifyStatus(resp.StatusCode), r.method, r.path, resp.StatusCode, errorMessage(msg), nil)
		if e.Kind == KindRateLimited {
			e.retryAfter = parseRetryAfter(resp.Header.Get("Retry-After"))
		}
		return true, e
	}

	if r.out == nil || resp.StatusCode == http.StatusNoContent {
		return true, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(r.out); err != nil {
		return true, newError(KindServer, r.method, r.path, resp.StatusCode, "decode response", err).notRetriable()
	}
	return true, nil
}

// Ping probes the backend health endpoint once with the health timeout.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.healthTimeout)
	defer cancel()
	probe := *c
	probe.timeout = c.healthTimeout
	probe.retry = RetryPolicy{MaxAttempts: 1}
	probe.limiter = nil
	return probe.do(ctx, call{route: healthPath, method: http.MethodGet, path: healthPath})
}

// BreakerOpen reports whether recent failures have tripped the breaker.
func (c *Client) BreakerOpen() bool {
	return c.breaker.IsOpen()
}

func (c *Client) recordSuccess(ctx context.Context) {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.metrics.setBreakerOpen(false)
		if c.logger != nil {
			c.logger.InfoContext(ctx, "backend circuit closed")
		}
	}
}

func (c *Client) recordFailure(ctx context.Context, err *Error) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.metrics.setBreakerOpen(true)
		if c.logger != nil {
			c.logger.WarnContext(ctx, "backend circuit opened", "kind", err.Kind.String(), "error", err)
		}
	}
}

func outcome(err *Error) string {
	if err == nil {
		return "ok"
	}
	return err.Kind.String()
}

// errorMessage extracts {"error": "..."} or {"message": "..."} from an error
// body, falling back to the trimmed raw text.
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != "" {
			return payload.Error
		}
	}
	s := string(bytes.TrimSpace(body))
	if len(s) > 200 {
		s = s[:200]
	}
	return s
}

func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(v); err == nil {
		return time.Until(at)
	}
	return 0
}
