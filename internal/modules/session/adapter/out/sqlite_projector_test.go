package out_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sessionout "devtrack/internal/modules/session/adapter/out"
	"devtrack/internal/modules/session/domain"
)

func completed(id, project string, seconds float64) domain.Session {
	end := "2026-10-19T10:00:00.000Z"
	return domain.Session{ID: id, Project: project, StartTime: "2026-10-19T09:00:00.000Z", EndTime: &end, Duration: &seconds}
}

func TestSQLiteSessionProjectorProjectTotals(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	projector, err := sessionout.NewSQLiteSessionProjector(filepath.Join(t.TempDir(), "db", "devtrack.db"), time.UTC)
	require.NoError(t, err)
	t.Cleanup(func() { _ = projector.Close() })

	require.NoError(t, projector.UpsertSession(ctx, completed("a", "api", 1800)))
	require.NoError(t, projector.UpsertSession(ctx, completed("b", "api", 1800)))
	require.NoError(t, projector.UpsertSession(ctx, completed("c", "web", 7200)))
	require.NoError(t, projector.UpsertSession(ctx, completed("d", "", 600)))
	require.NoError(t, projector.UpsertSession(ctx, domain.Session{ID: "e", Project: "api", StartTime: "2026-10-19T11:00:00.000Z"}))

	totals, err := projector.ProjectTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.ProjectTotal{
		{Project: "web", Sessions: 1, TotalSeconds: 7200},
		{Project: "api", Sessions: 2, TotalSeconds: 3600},
		{Project: "Untitled", Sessions: 1, TotalSeconds: 600},
	}, totals)

	// upsert replaces, delete removes
	require.NoError(t, projector.UpsertSession(ctx, completed("c", "api", 60)))
	require.NoError(t, projector.DeleteSession(ctx, "d"))
	totals, err = projector.ProjectTotals(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.ProjectTotal{{Project: "api", Sessions: 3, TotalSeconds: 3660}}, totals)

	require.NoError(t, projector.Reset(ctx))
	totals, err = projector.ProjectTotals(ctx)
	require.NoError(t, err)
	assert.Empty(t, totals)
}
