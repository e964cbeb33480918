package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "cb:server_mapping:123", ServerMappingKey("123").String())
	assert.Equal(t, "cb:server_mapping:state:123", GuildStateKey("123").String())
	assert.Equal(t, "cb:task_cache:c1:task:t1", TaskKey("c1", "t1").String())
	assert.Equal(t, "cb:task_cache:c1:page:2", TaskListKey("c1", 2).String())
	assert.Equal(t, "cb:task_cache:c1:task:t1:~stale", TaskKey("c1", "t1").Stale().String())
	assert.Equal(t, PrefixSession, SessionKey("u").Prefix())
	assert.Equal(t, "cb:rate_limiting:u1:command", RateLimitKey("u1", "command").String())
	assert.Equal(t, "cb:temp_data:cursor:u1", TempKey("cursor", "u1").String())
}

func TestKeys_SanitizeUserInput(t *testing.T) {
	assert.Equal(t, "cb:session:user_admin", SessionKey("user:admin").String())
	assert.Equal(t, "cb:task_cache:_:task:__", TaskKey("*", "[?").String())
	assert.Equal(t, Pattern("cb:task_cache:_:*"), TaskPattern("*"))
}

func TestPrefix_DefaultTTL(t *testing.T) {
	assert.Equal(t, 24*time.Hour, PrefixSession.DefaultTTL())
	assert.Equal(t, time.Hour, PrefixServerMapping.DefaultTTL())
	assert.Equal(t, 30*time.Minute, PrefixTaskCache.DefaultTTL())
	assert.Equal(t, time.Minute, PrefixRateLimiting.DefaultTTL())
	assert.Equal(t, 5*time.Minute, PrefixTempData.DefaultTTL())
	assert.Equal(t, 5*time.Minute, Prefix("unknown").DefaultTTL())
}

func TestPrefix_Pattern(t *testing.T) {
	assert.Equal(t, Pattern("cb:session:*"), PrefixSession.Pattern())
}
