// Package cache is the key-prefixed JSON cache fronting the backend API and
// guild state. Every operation degrades instead of failing: when the transport
// is down reads miss, writes report false and a background loop reconnects.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"
)

// ErrNotConfigured is returned by Ping when the cache runs without a transport.
var ErrNotConfigured = errors.New("cache not configured")

const (
	defaultOperationTimeout = 2 * time.Second
	defaultReconnectBackoff = time.Second
	defaultReconnectMax     = 5
)

// Cache wraps a Backend with degraded-mode semantics.
type Cache struct {
	backend Backend
	logger  *slog.Logger
	metrics *Metrics

	opTimeout   time.Duration
	backoff     time.Duration
	maxAttempts int

	connected    atomic.Bool
	reconnecting atomic.Bool
	group        singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Cache)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		c.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithOperationTimeout bounds every backend call.
func WithOperationTimeout(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.opTimeout = d
		}
	}
}

// WithReconnect sets the linear backoff step and the attempt cap.
func WithReconnect(backoff time.Duration, maxAttempts int) Option {
	return func(c *Cache) {
		if backoff > 0 {
			c.backoff = backoff
		}
		if maxAttempts > 0 {
			c.maxAttempts = maxAttempts
		}
	}
}

// New builds a cache over backend. A nil backend yields a permanently degraded
// cache, which is how the bot runs without CACHE_URL.
func New(backend Backend, opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		backend:     backend,
		opTimeout:   defaultOperationTimeout,
		backoff:     defaultReconnectBackoff,
		maxAttempts: defaultReconnectMax,
		ctx:         ctx,
		cancel:      cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect probes the backend once. On failure the cache stays degraded and a
// reconnect loop is scheduled.
func (c *Cache) Connect(ctx context.Context) bool {
	if c.backend == nil {
		c.log(ctx, slog.LevelWarn, "cache not configured, running in degraded mode")
		return false
	}
	opCtx, cancel := c.opContext(ctx)
	defer cancel()
	if err := c.backend.Ping(opCtx); err != nil {
		c.log(ctx, slog.LevelWarn, "cache connect failed", "error", err)
		c.scheduleReconnect()
		return false
	}
	c.markConnected(ctx)
	return true
}

// Connected reports the transport state. Health and the security monitor read it.
func (c *Cache) Connected() bool {
	return c.backend != nil && c.connected.Load()
}

// Ping probes the transport regardless of state and recovers the connection
// flag on success.
func (c *Cache) Ping(ctx context.Context) error {
	if c.backend == nil {
		return ErrNotConfigured
	}
	opCtx, cancel := c.opContext(ctx)
	defer cancel()
	if err := c.backend.Ping(opCtx); err != nil {
		c.fail(ctx, "ping", err)
		return err
	}
	if !c.connected.Load() {
		c.markConnected(ctx)
	}
	return nil
}

// Close stops the reconnect loop.
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
}

// Get decodes the value at key into dst. It returns false on miss, decode error
// or degraded mode.
func (c *Cache) Get(ctx context.Context, key Key, dst any) bool {
	if !c.Connected() {
		c.metrics.observeRead(key.Prefix(), "degraded")
		return false
	}
	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	raw, err := c.backend.Get(opCtx, key.String())
	if errors.Is(err, ErrMiss) {
		c.metrics.observeRead(key.Prefix(), "miss")
		return false
	}
	if err != nil {
		c.fail(ctx, "get", err)
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.log(ctx, slog.LevelWarn, "cache value undecodable", "key", key.String(), "error", err)
		c.metrics.observeRead(key.Prefix(), "miss")
		return false
	}
	c.metrics.observeRead(key.Prefix(), "hit")
	return true
}

// Set stores value as JSON. A zero ttl uses the prefix default.
func (c *Cache) Set(ctx context.Context, key Key, value any, ttl time.Duration) bool {
	if !c.Connected() {
		return false
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.log(ctx, slog.LevelWarn, "cache value unencodable", "key", key.String(), "error", err)
		return false
	}
	if ttl <= 0 {
		ttl = key.Prefix().DefaultTTL()
	}
	opCtx, cancel := c.opContext(ctx)
	defer cancel()
	if err := c.backend.Set(opCtx, key.String(), raw, ttl); err != nil {
		c.fail(ctx, "set", err)
		return false
	}
	return true
}

// Delete removes keys. It returns false only in degraded mode or on error.
func (c *Cache) Delete(ctx context.Context, keys ...Key) bool {
	if !c.Connected() {
		return false
	}
	opCtx, cancel := c.opContext(ctx)
	defer cancel()
	if _, err := c.backend.Delete(opCtx, keyStrings(keys)...); err != nil {
		c.fail(ctx, "delete", err)
		return false
	}
	return true
}

func (c *Cache) Exists(ctx context.Context, key Key) bool {
	if !c.Connected() {
		return false
	}
	opCtx, cancel := c.opContext(ctx)
	defer cancel()
	n, err := c.backend.Exists(opCtx, key.String())
	if err != nil {
		c.fail(ctx, "exists", err)
		return false
	}
	return n > 0
}

// MSet writes several values. With a zero ttl each key gets its prefix default.
func (c *Cache) MSet(ctx context.Context, values map[Key]any, ttl time.Duration) bool {
	if !c.Connected() {
		return false
	}
	groups := make(map[time.Duration]map[string][]byte)
	for k, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			c.log(ctx, slog.LevelWarn, "cache value unencodable", "key", k.String(), "error", err)
			return false
		}
		d := ttl
		if d <= 0 {
			d = k.Prefix().DefaultTTL()
		}
		if groups[d] == nil {
			groups[d] = make(map[string][]byte)
		}
		groups[d][k.String()] = raw
	}

	opCtx, cancel := c.opContext(ctx)
	defer cancel()
	for d, group := range groups {
		if err := c.backend.MSet(opCtx, group, d); err != nil {
			c.fail(ctx, "mset", err)
			return false
		}
	}
	return true
}

// DeletePattern removes every key matching p and returns how many were removed.
func (c *Cache) DeletePattern(ctx context.Context, p Pattern) int64 {
	if !c.Connected() {
		return 0
	}
	opCtx, cancel := c.opContext(ctx)
	defer cancel()
	n, err := c.backend.DeletePattern(opCtx, p.String())
	if err != nil {
		c.fail(ctx, "delete_pattern", err)
	}
	return n
}

func (c *Cache) mgetRaw(ctx context.Context, keys []Key) [][]byte {
	if !c.Connected() || len(keys) == 0 {
		return nil
	}
	opCtx, cancel := c.opContext(ctx)
	defer cancel()
	raw, err := c.backend.MGet(opCtx, keyStrings(keys)...)
	if err != nil {
		c.fail(ctx, "mget", err)
		return nil
	}
	return raw
}

// MGet decodes every present key. Missing and undecodable keys are absent from
// the result.
func MGet[T any](ctx context.Context, c *Cache, keys ...Key) map[Key]T {
	out := make(map[Key]T, len(keys))
	raw := c.mgetRaw(ctx, keys)
	for i, b := range raw {
		if b == nil {
			c.metrics.observeRead(keys[i].Prefix(), "miss")
			continue
		}
		var v T
		if err := json.Unmarshal(b, &v); err != nil {
			continue
		}
		c.metrics.observeRead(keys[i].Prefix(), "hit")
		out[keys[i]] = v
	}
	return out
}

// GetOrLoad returns the cached value for key or calls load once per key across
// concurrent callers and caches its result.
func GetOrLoad[T any](ctx context.Context, c *Cache, key Key, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var v T
	if c.Get(ctx, key, &v) {
		return v, nil
	}
	res, err, _ := c.group.Do(key.String(), func() (any, error) {
		var v T
		if c.Get(ctx, key, &v) {
			return v, nil
		}
		v, err := load(ctx)
		if err != nil {
			return v, err
		}
		c.Set(ctx, key, v, ttl)
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return res.(T), nil
}

// GetOrLoadStale behaves like GetOrLoad but also keeps a last-known-good copy
// for staleTTL. When load fails and a stale copy exists it is returned with
// stale=true and no error.
func GetOrLoadStale[T any](ctx context.Context, c *Cache, key Key, ttl, staleTTL time.Duration, load func(context.Context) (T, error)) (v T, stale bool, err error) {
	v, err = GetOrLoad(ctx, c, key, ttl, func(ctx context.Context) (T, error) {
		fresh, err := load(ctx)
		if err != nil {
			return fresh, err
		}
		c.Set(ctx, key.Stale(), fresh, staleTTL)
		return fresh, nil
	})
	if err == nil {
		return v, false, nil
	}
	var old T
	if c.Get(ctx, key.Stale(), &old) {
		c.log(ctx, slog.LevelWarn, "serving stale cache entry", "key", key.String(), "error", err)
		return old, true, nil
	}
	return v, false, err
}

// Invalidate removes key and its stale copy.
func (c *Cache) Invalidate(ctx context.Context, keys ...Key) bool {
	all := make([]Key, 0, len(keys)*2)
	for _, k := range keys {
		all = append(all, k, k.Stale())
	}
	return c.Delete(ctx, all...)
}

func (c *Cache) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, c.opTimeout)
}

// fail records a transport error. Caller cancellation is not a transport fault.
func (c *Cache) fail(ctx context.Context, op string, err error) {
	c.metrics.observeError(op)
	if ctx.Err() != nil {
		return
	}
	c.log(ctx, slog.LevelWarn, "cache operation failed", "op", op, "error", err)
	if c.connected.CompareAndSwap(true, false) {
		c.metrics.setConnected(false)
		c.log(ctx, slog.LevelError, "cache disconnected, running in degraded mode")
	}
	c.scheduleReconnect()
}

func (c *Cache) markConnected(ctx context.Context) {
	if c.connected.CompareAndSwap(false, true) {
		c.metrics.setConnected(true)
		c.log(ctx, slog.LevelInfo, "cache connected")
	}
}

// scheduleReconnect starts at most one reconnect loop. Attempt n waits n*backoff.
func (c *Cache) scheduleReconnect() {
	if c.backend == nil || c.ctx.Err() != nil {
		return
	}
	if !c.reconnecting.CompareAndSwap(false, true) {
		return
	}
	c.wg.Go(func() {
		defer c.reconnecting.Store(false)
		for attempt := 1; attempt <= c.maxAttempts; attempt++ {
			timer := time.NewTimer(c.backoff * time.Duration(attempt))
			select {
			case <-c.ctx.Done():
				timer.Stop()
				return
			case <-timer.C:
			}

			pingCtx, cancel := context.WithTimeout(c.ctx, c.opTimeout)
			err := c.backend.Ping(pingCtx)
			cancel()
			if err == nil {
				c.metrics.observeReconnect("success")
				c.markConnected(c.ctx)
				return
			}
			c.metrics.observeReconnect("failure")
			c.log(c.ctx, slog.LevelWarn, "cache reconnect attempt failed",
				"attempt", attempt,
				"max_attempts", c.maxAttempts,
				"error", err,
			)
		}
		c.log(c.ctx, slog.LevelError, "cache reconnect abandoned", "attempts", c.maxAttempts)
	})
}

func (c *Cache) log(ctx context.Context, level slog.Level, msg string, args ...any) {
	if c.logger != nil {
		c.logger.Log(ctx, level, msg, args...)
	}
}

func keyStrings(keys []Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = k.String()
	}
	return out
}
