package interaction

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type createTaskOptions struct {
	Type        string `json:"type" validate:"required,oneof=social discord quiz custom"`
	Title       string `json:"title" validate:"required,min=1,max=100"`
	Description string `json:"description" validate:"required,min=1,max=2000"`
	Points      *int   `json:"points" validate:"required,gte=0"`
}

func validOptions() map[string]any {
	return map[string]any{
		"type":        "quiz",
		"title":       "Answer the quiz",
		"description": "Three questions",
		"points":      float64(10),
	}
}

func TestDecodeOptions(t *testing.T) {
	t.Run("valid options decode", func(t *testing.T) {
		opts, err := DecodeOptions[createTaskOptions](validOptions())
		require.NoError(t, err)
		assert.Equal(t, "quiz", opts.Type)
		require.NotNil(t, opts.Points)
		assert.Equal(t, 10, *opts.Points)
	})

	t.Run("zero points allowed", func(t *testing.T) {
		raw := validOptions()
		raw["points"] = float64(0)
		_, err := DecodeOptions[createTaskOptions](raw)
		assert.NoError(t, err)
	})

	cases := []struct {
		name    string
		mutate  func(map[string]any)
		wantErr string
	}{
		{"bad enum", func(m map[string]any) { m["type"] = "raffle" }, "Invalid type: must be one of: social, discord, quiz, custom"},
		{"empty title", func(m map[string]any) { m["title"] = "" }, "Invalid title: is required"},
		{"long title", func(m map[string]any) { m["title"] = strings.Repeat("a", 101) }, "Invalid title: must be at most 100 characters"},
		{"long description", func(m map[string]any) { m["description"] = strings.Repeat("d", 2001) }, "Invalid description: must be at most 2000 characters"},
		{"negative points", func(m map[string]any) { m["points"] = float64(-1) }, "Invalid points: must be at least 0"},
		{"fractional points", func(m map[string]any) { m["points"] = 1.5 }, "Invalid points: must be a whole number"},
		{"missing points", func(m map[string]any) { delete(m, "points") }, "Invalid points: is required"},
		{"unknown option", func(m map[string]any) { m["admin"] = true }, "Invalid admin: is not a recognized option"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := validOptions()
			tc.mutate(raw)
			_, err := DecodeOptions[createTaskOptions](raw)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.wantErr, verr.Error())
		})
	}

	t.Run("title length counts characters not bytes", func(t *testing.T) {
		raw := validOptions()
		raw["title"] = strings.Repeat("é", 100)
		_, err := DecodeOptions[createTaskOptions](raw)
		assert.NoError(t, err)
	})
}
