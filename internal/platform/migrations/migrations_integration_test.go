//go:build integration

package migrations_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"communitybot/internal/platform/migrations"
	"communitybot/pkg/testutil/containers"
)

func TestApplyIsIdempotent(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	ctx := context.Background()

	require.NoError(t, migrations.Apply(ctx, pg.DB))
	require.NoError(t, migrations.Apply(ctx, pg.DB))

	v, err := migrations.Version(ctx, pg.DB)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	counts, err := migrations.TableCounts(ctx, pg.DB)
	require.NoError(t, err)
	assert.Len(t, counts, len(migrations.Tables))

	require.NoError(t, migrations.RebuildIndexes(ctx, pg.DB))
}
