package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tonic/internal/domain"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "tonic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "tonic.db")
	first, err := Open(context.Background(), path)
	require.NoError(t, err)
	require.NoError(t, first.AddExclusion(context.Background(), "/data/cache"))
	require.NoError(t, first.Close())

	second, err := Open(context.Background(), path)
	require.NoError(t, err)
	defer second.Close() //nolint:errcheck
	exclusions, err := second.Exclusions(context.Background())
	require.NoError(t, err)
	require.Len(t, exclusions, 1)
	assert.Equal(t, "/data/cache", exclusions[0].Path)
}

func TestExclusions(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	require.NoError(t, store.AddExclusion(ctx, "/b"))
	require.NoError(t, store.AddExclusion(ctx, "/a"))
	require.NoError(t, store.AddExclusion(ctx, "/a"))

	exclusions, err := store.Exclusions(ctx)
	require.NoError(t, err)
	require.Len(t, exclusions, 2)
	assert.Equal(t, "/a", exclusions[0].Path)
	assert.False(t, exclusions[0].CreatedAt.IsZero())

	paths, err := store.ExcludedPaths(ctx)
	require.NoError(t, err)
	assert.Contains(t, paths, "/b")

	require.NoError(t, store.RemoveExclusion(ctx, "/a"))
	assert.ErrorIs(t, store.RemoveExclusion(ctx, "/a"), ErrNotFound)
}

func TestUndoJournal(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)

	_, err := store.UndoTokenForPlan(ctx, "p1")
	assert.ErrorIs(t, err, ErrNotFound)

	now := time.Now().UTC().Truncate(time.Microsecond)
	older := domain.UndoToken{ID: "t1", PlanID: "p1", CreatedAt: now.Add(-time.Minute), Records: []domain.TrashRecord{
		{OriginalPath: "/x/old", TrashPath: "/trash/old", Bytes: 1, TrashedAt: now.Add(-time.Minute)},
	}}
	newer := domain.UndoToken{ID: "t2", PlanID: "p2", CreatedAt: now, Records: []domain.TrashRecord{
		{OriginalPath: "/x/a", TrashPath: "/trash/a", IsDirectory: true, Bytes: 300, TrashedAt: now},
		{OriginalPath: "/x/b", TrashPath: "/trash/b", Bytes: 20, TrashedAt: now},
	}}
	require.NoError(t, store.SaveUndoToken(ctx, older))
	require.NoError(t, store.SaveUndoToken(ctx, newer))

	latest, err := store.UndoTokenForPlan(ctx, "p2")
	require.NoError(t, err)
	assert.Equal(t, "t2", latest.ID)
	assert.Equal(t, "p2", latest.PlanID)
	assert.True(t, latest.CreatedAt.Equal(now))
	require.Len(t, latest.Records, 2)
	assert.Equal(t, newer.Records[0].OriginalPath, latest.Records[0].OriginalPath)
	assert.True(t, latest.Records[0].IsDirectory)
	assert.Equal(t, int64(300), latest.Records[0].Bytes)

	require.NoError(t, store.DeleteUndoToken(ctx, "t2"))
	assert.ErrorIs(t, store.DeleteUndoToken(ctx, "t2"), ErrNotFound)

	_, err = store.UndoTokenForPlan(ctx, "p2")
	assert.ErrorIs(t, err, ErrNotFound)
	latest, err = store.UndoTokenForPlan(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "t1", latest.ID)
}

func TestLastExecution(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "tonic.db")
	store, err := Open(ctx, path)
	require.NoError(t, err)

	_, err = store.LastExecution(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	now := time.Now().UTC().Truncate(time.Microsecond)
	require.NoError(t, store.RecordExecution(ctx, domain.Execution{PlanID: "p1", ActionType: domain.ActionMoveToTrash, ExecutedAt: now.Add(-time.Minute)}))
	require.NoError(t, store.RecordExecution(ctx, domain.Execution{PlanID: "p2", ActionType: domain.ActionSecureDelete, ExecutedAt: now}))

	last, err := store.LastExecution(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p2", last.PlanID)
	assert.Equal(t, domain.ActionSecureDelete, last.ActionType)
	assert.True(t, last.ExecutedAt.Equal(now))

	require.NoError(t, store.Close())
	reopened, err := Open(ctx, path)
	require.NoError(t, err)
	defer reopened.Close() //nolint:errcheck
	last, err = reopened.LastExecution(ctx)
	require.NoError(t, err)
	assert.Equal(t, "p2", last.PlanID)
}

func TestScanHistory(t *testing.T) {
	ctx := context.Background()
	store := openTestStore(t)
	start := time.Now().UTC().Add(-time.Hour)

	for index, id := range []string{"s1", "s2"} {
		record := ScanRecord{
			ID: id, RootPath: "/root", Mode: "deep", Status: "completed",
			Files: 3, Bytes: int64(600 + index),
			StartedAt: start.Add(time.Duration(index) * time.Minute), FinishedAt: start.Add(time.Duration(index)*time.Minute + time.Second),
		}
		entries := []SnapshotEntry{{Path: "/root/a", LogicalBytes: 100}, {Path: "/root/b", LogicalBytes: 500, SizeIsEstimated: true}}
		require.NoError(t, store.RecordScan(ctx, record, entries))
	}
	require.NoError(t, store.RecordScan(ctx, ScanRecord{ID: "other", RootPath: "/elsewhere", Mode: "quick", Status: "cancelled",
		StartedAt: start, FinishedAt: start}, nil))

	scans, err := store.ListScans(ctx, "/root", 10)
	require.NoError(t, err)
	require.Len(t, scans, 2)
	assert.Equal(t, "s2", scans[0].ID)
	assert.Equal(t, int64(601), scans[0].Bytes)

	all, err := store.ListScans(ctx, "", 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	snapshot, err := store.Snapshot(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, snapshot, 2)
	assert.Equal(t, "/root/b", snapshot[0].Path)
	assert.True(t, snapshot[0].SizeIsEstimated)

	empty, err := store.Snapshot(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = store.Snapshot(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
