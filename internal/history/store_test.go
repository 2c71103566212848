package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/derafu/github/internal/deploy"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "data", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpenBootstrapsTable(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	var name string
	err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name='deployments';").Scan(&name)
	require.NoError(t, err)
	assert.Equal(t, "deployments", name)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := Open(context.Background(), "")
	assert.Error(t, err)
}

func TestRecordAndRecent(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	var _ deploy.Recorder = s

	entries := []deploy.Entry{
		{DeliveryID: "d-1", Site: "www.example.com", Repository: "acme/site", Branch: "main", Workflow: "CI", Command: "dep", Mode: "sync", CreatedAt: base},
		{DeliveryID: "d-2", Site: "blog.example.com", Repository: "acme/blog", Branch: "main", Workflow: "CI", Actor: "octocat", Command: "dep", Mode: "background", CreatedAt: base.Add(time.Minute)},
		{DeliveryID: "d-3", Site: "www.example.com", Repository: "acme/site", Branch: "main", Workflow: "CI", Command: "dep", Mode: "sync", ExitCode: 2, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		require.NoError(t, s.Record(ctx, e))
	}

	all, err := s.Recent(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "d-3", all[0].DeliveryID)
	assert.Equal(t, 2, all[0].ExitCode)
	assert.Equal(t, "octocat", all[1].Actor)
	assert.True(t, all[2].CreatedAt.Equal(base))
	assert.NotEmpty(t, all[0].ID)
	assert.NotEqual(t, all[0].ID, all[1].ID)

	site, err := s.Recent(ctx, "www.example.com", 1)
	require.NoError(t, err)
	require.Len(t, site, 1)
	assert.Equal(t, "d-3", site[0].DeliveryID)
}

func TestRecordDefaultsTimestamp(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Record(ctx, deploy.Entry{Site: "a", Repository: "r", Branch: "b", Workflow: "w", Command: "c", Mode: "sync"}))
	got, err := s.Recent(ctx, "a", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.WithinDuration(t, time.Now(), got[0].CreatedAt, time.Minute)
}
