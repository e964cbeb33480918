package cache

import (
	"strconv"
	"strings"
	"time"
)

// namespace is prepended to every key so the bot can share a Redis database.
const namespace = "cb"

// Prefix is one of the fixed key namespaces. Call sites never build raw key
// strings; they go through the constructors below.
type Prefix string

const (
	PrefixSession       Prefix = "session"
	PrefixServerMapping Prefix = "server_mapping"
	PrefixTaskCache     Prefix = "task_cache"
	PrefixRateLimiting  Prefix = "rate_limiting"
	PrefixTempData      Prefix = "temp_data"
)

var defaultTTLs = map[Prefix]time.Duration{
	PrefixSession:       24 * time.Hour,
	PrefixServerMapping: time.Hour,
	PrefixTaskCache:     30 * time.Minute,
	PrefixRateLimiting:  time.Minute,
	PrefixTempData:      5 * time.Minute,
}

// DefaultTTL is used when Set is called with a zero ttl.
func (p Prefix) DefaultTTL() time.Duration {
	if ttl, ok := defaultTTLs[p]; ok {
		return ttl
	}
	return defaultTTLs[PrefixTempData]
}

// Pattern returns a glob matching every key under the prefix whose suffix starts
// with the given segments.
func (p Prefix) Pattern(segments ...string) Pattern {
	base := namespace + ":" + string(p) + ":"
	if len(segments) > 0 {
		base += joinSegments(segments) + ":"
	}
	return Pattern(base + "*")
}

// Pattern is a glob over keys. Only * is meaningful; segments are sanitized so
// user-controlled input can never inject wildcards.
type Pattern string

func (p Pattern) String() string { return string(p) }

// Key is a fully qualified cache key.
type Key struct {
	prefix Prefix
	suffix string
}

func newKey(p Prefix, segments ...string) Key {
	return Key{prefix: p, suffix: joinSegments(segments)}
}

func (k Key) Prefix() Prefix { return k.prefix }

func (k Key) String() string {
	return namespace + ":" + string(k.prefix) + ":" + k.suffix
}

// Stale returns the companion key holding the last known good copy of k. It
// lives under the same prefix so pattern invalidation clears both.
func (k Key) Stale() Key {
	return Key{prefix: k.prefix, suffix: k.suffix + ":~stale"}
}

func (k Key) IsZero() bool { return k.prefix == "" }

// SessionKey holds per-user session data.
func SessionKey(userID string) Key {
	return newKey(PrefixSession, userID)
}

// ServerMappingKey holds the guild to community mapping read from the backend.
func ServerMappingKey(guildID string) Key {
	return newKey(PrefixServerMapping, guildID)
}

// GuildStateKey holds the locally persisted guild state.
func GuildStateKey(guildID string) Key {
	return newKey(PrefixServerMapping, "state", guildID)
}

// TaskKey holds one task's metadata.
func TaskKey(communityID, taskID string) Key {
	return newKey(PrefixTaskCache, communityID, "task", taskID)
}

// TaskListKey holds one page of a community's task list.
func TaskListKey(communityID string, page int) Key {
	return newKey(PrefixTaskCache, communityID, "page", strconv.Itoa(page))
}

// TaskPattern matches every cached task entry of a community.
func TaskPattern(communityID string) Pattern {
	return PrefixTaskCache.Pattern(communityID)
}

// UserLinkKey holds a user's backend account link status.
func UserLinkKey(userID string) Key {
	return newKey(PrefixSession, "link", userID)
}

// RateLimitKey is used by distributed rate limit state.
func RateLimitKey(identifier, action string) Key {
	return newKey(PrefixRateLimiting, identifier, action)
}

// TempKey holds short lived values such as pagination cursors.
func TempKey(segments ...string) Key {
	return newKey(PrefixTempData, segments...)
}

// SanitizeSegment escapes the delimiter and glob metacharacters in a key
// segment so a user-controlled identifier cannot address adjacent keys.
func SanitizeSegment(s string) string {
	return segmentReplacer.Replace(s)
}

var segmentReplacer = strings.NewReplacer(
	":", "_",
	"*", "_",
	"?", "_",
	"[", "_",
	"]", "_",
	"\\", "_",
	"/", "_",
)

func joinSegments(segments []string) string {
	out := make([]string, len(segments))
	for i, s := range segments {
		out[i] = SanitizeSegment(s)
	}
	return strings.Join(out, ":")
}
