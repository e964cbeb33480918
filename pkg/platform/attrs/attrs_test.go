package attrs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractString(t *testing.T) {
	list := []any{"user_id", "123", "count", 4, 7, "ignored", "guild_id", "g1"}

	assert.Equal(t, "123", ExtractString(list, "user_id"))
	assert.Equal(t, "g1", ExtractString(list, "guild_id"))
	assert.Empty(t, ExtractString(list, "count"), "non-string values are skipped")
	assert.Empty(t, ExtractString(list, "missing"))
}

func TestToMap(t *testing.T) {
	m := ToMap([]any{"a", 1, 2, "skipped", "b", "two", "dangling"})

	assert.Equal(t, map[string]any{"a": 1, "b": "two"}, m)
}
