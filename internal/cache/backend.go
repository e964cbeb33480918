package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by a Backend when a key does not exist.
var ErrMiss = errors.New("cache miss")

// Backend is the raw KV transport behind Cache. Implementations return errors;
// Cache turns them into degraded-mode results.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) (int64, error)
	Exists(ctx context.Context, keys ...string) (int64, error)
	// MGet returns one element per key, nil for misses.
	MGet(ctx context.Context, keys ...string) ([][]byte, error)
	MSet(ctx context.Context, values map[string][]byte, ttl time.Duration) error
	DeletePattern(ctx context.Context, pattern string) (int64, error)
	Ping(ctx context.Context) error
}
