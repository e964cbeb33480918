package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"communitybot/internal/audit"
	"communitybot/internal/backend"
	"communitybot/internal/cache"
	"communitybot/internal/health"
	"communitybot/internal/platform/config"
)

func TestRootRegistersEveryCommand(t *testing.T) {
	var names []string
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{
		"serve", "register", "register-guild", "clear", "clear-guild", "list", "migrate",
		"cleanup", "data:summary", "health", "indexes:rebuild", "lift-lockdown",
	})
	assert.NotNil(t, serveCmd.Flags().Lookup("memory"))
	assert.NotNil(t, cleanupCmd.Flags().Lookup("days"))
}

func TestLoadConfigChecksOnlyRequested(t *testing.T) {
	t.Setenv(config.EnvStorageURI, "postgres://localhost/bot")
	t.Setenv(config.EnvBotToken, "")

	_, err := loadConfig(config.EnvStorageURI)
	require.NoError(t, err)

	_, err = loadConfig(config.EnvStorageURI, config.EnvBotToken)
	assert.ErrorIs(t, err, config.ErrMissingEnv)
	assert.ErrorContains(t, err, config.EnvBotToken)
}

func TestHealthComponents(t *testing.T) {
	api, err := backend.New("http://localhost:8080", "key", nil)
	require.NoError(t, err)
	c := cache.New(nil)
	defer c.Close()

	components := healthComponents(nil, api, c)
	require.Len(t, components, 2)
	assert.Equal(t, "backend", components[0].Name)
	assert.True(t, components[0].Required)
	assert.Equal(t, "cache", components[1].Name)
	assert.False(t, components[1].Required)
}

func TestErrUnhealthyNamesRequiredFailures(t *testing.T) {
	err := errUnhealthy(health.Report{Components: []health.Status{
		{Name: "storage", Required: true},
		{Name: "cache"},
		{Name: "backend", Required: true, Healthy: true},
	}})
	assert.EqualError(t, err, "unhealthy components: storage")
}

func TestPrintSummary(t *testing.T) {
	var out bytes.Buffer
	oldest := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	printSummary(&out, map[string]int64{"server_mappings": 4}, audit.Summary{
		Total:  3,
		ByType: map[audit.EventType]int64{audit.EventRateLimitExceeded: 2, audit.EventCommandExecuted: 1},
		Oldest: oldest,
		Newest: oldest.Add(time.Hour),
	})

	text := out.String()
	assert.Contains(t, text, "server_mappings")
	assert.Contains(t, text, "audit entries: 3")
	assert.Contains(t, text, "2026-01-01T00:00:00Z")
	assert.Less(t, bytes.Index(out.Bytes(), []byte(string(audit.EventCommandExecuted))), bytes.Index(out.Bytes(), []byte(string(audit.EventRateLimitExceeded))))
}
