package health

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"communitybot/pkg/testutil"
)

func ok(context.Context) error { return nil }

func failing(context.Context) error { return errors.New("connection refused") }

func TestNewValidatesComponents(t *testing.T) {
	_, err := New([]Component{{Name: "storage"}})
	assert.Error(t, err)
}

func TestCheck(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := testutil.At(now)

	t.Run("optional failure keeps the bot ready", func(t *testing.T) {
		m, err := New([]Component{
			{Name: "storage", Probe: ok, Required: true},
			{Name: "backend", Probe: ok, Required: true},
			{Name: "cache", Probe: failing},
		})
		require.NoError(t, err)

		report := m.Check(ctx)
		assert.True(t, report.Healthy)
		assert.Equal(t, now, report.CheckedAt)
		require.Len(t, report.Components, 3)
		assert.Equal(t, "cache", report.Components[2].Name)
		assert.False(t, report.Components[2].Healthy)
		assert.Equal(t, "connection refused", report.Components[2].Error)
	})

	t.Run("required failure", func(t *testing.T) {
		m, err := New([]Component{
			{Name: "storage", Probe: ok, Required: true},
			{Name: "backend", Probe: failing, Required: true},
		})
		require.NoError(t, err)
		assert.False(t, m.Check(ctx).Healthy)

		last, ok := m.Last()
		require.True(t, ok)
		assert.False(t, last.Healthy)
	})

	t.Run("probe timeout", func(t *testing.T) {
		slow := func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}
		m, err := New([]Component{{Name: "backend", Probe: slow, Required: true}}, WithTimeout(10*time.Millisecond))
		require.NoError(t, err)
		report := m.Check(ctx)
		assert.False(t, report.Healthy)
		assert.Contains(t, report.Components[0].Error, "deadline exceeded")
	})
}

func TestEndpoints(t *testing.T) {
	healthy := true
	m, err := New([]Component{{Name: "storage", Required: true, Probe: func(context.Context) error {
		if healthy {
			return nil
		}
		return errors.New("down")
	}}})
	require.NoError(t, err)

	r := chi.NewRouter()
	m.Register(r)

	assert.Equal(t, http.StatusOK, testutil.Get(r, "/healthz").Code)

	rec := testutil.Get(r, "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, testutil.DecodeJSON[Report](t, rec).Healthy)

	healthy = false
	m.Check(context.Background())
	rec = testutil.Get(r, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "30", rec.Header().Get("Retry-After"))
	assert.False(t, testutil.DecodeJSON[Report](t, rec).Healthy)
	assert.Equal(t, http.StatusOK, testutil.Get(r, "/healthz").Code)
}
