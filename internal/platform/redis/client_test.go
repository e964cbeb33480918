package redis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"communitybot/internal/platform/config"
)

func TestNew_EmptyURLMeansNotConfigured(t *testing.T) {
	c, err := New(config.RedisConfig{})
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestNew_InvalidURL(t *testing.T) {
	_, err := New(config.RedisConfig{URL: "http://not-redis"})
	assert.Error(t, err)
}

func TestNew_AppliesOverrides(t *testing.T) {
	c, err := New(config.RedisConfig{
		URL:         "redis://localhost:6379/2",
		PoolSize:    7,
		DialTimeout: 250 * time.Millisecond,
	})
	require.NoError(t, err)
	defer c.Close()

	opts := c.Options()
	assert.Equal(t, 7, opts.PoolSize)
	assert.Equal(t, 2, opts.DB)
	assert.Equal(t, 250*time.Millisecond, opts.DialTimeout)
}
