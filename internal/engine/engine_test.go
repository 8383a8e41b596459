package engine

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tonic/internal/classify"
	"tonic/internal/domain"
	"tonic/internal/event"
	"tonic/internal/services"
	"tonic/internal/store"
	"tonic/internal/trash"
	"tonic/internal/treemap"
)

type fixture struct {
	engine *Engine
	store  *store.Store
	root   string

	mu     sync.Mutex
	events []event.Type
}

func (f *fixture) record(e event.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e.Type)
}

func (f *fixture) seen() []event.Type {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]event.Type(nil), f.events...)
}

func writeSized(t *testing.T, path string, size int) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, make([]byte, size), 0o644))
}

// newFixture builds root/a (100), root/b/c (200), root/b/d.log (300) and an
// engine backed by a temp store and trash.
func newFixture(t *testing.T) *fixture {
	ctx := context.Background()
	root := filepath.Join(t.TempDir(), "root")
	writeSized(t, filepath.Join(root, "a"), 100)
	writeSized(t, filepath.Join(root, "b", "c"), 200)
	writeSized(t, filepath.Join(root, "b", "d.log"), 300)

	db, err := store.Open(ctx, filepath.Join(t.TempDir(), "tonic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	bus := event.NewBus(slog.New(slog.DiscardHandler), 64)
	go bus.Start()
	t.Cleanup(bus.Stop)

	f := &fixture{store: db, root: root}
	for _, eventType := range []event.Type{event.ScanCompleted, event.InsightReady, event.CleanupExecuted, event.CleanupUndone, event.ExclusionChanged} {
		bus.Subscribe(eventType, f.record)
	}

	f.engine, err = New(classify.New(classify.NewPolicy("/home/tester")), Config{
		Cleanup: services.CleanupOptions{Trash: trash.NewDir(filepath.Join(t.TempDir(), "trash"))},
		Store:   db,
		Bus:     bus,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) scan(t *testing.T) services.ScanSummary {
	t.Helper()
	summary := f.engine.Scan(context.Background(), services.ScanRequest{Mode: domain.ScanDeep, RootPath: f.root, ShowHidden: true})
	require.Equal(t, domain.PhaseCompleted, summary.Phase)
	return summary
}

func (f *fixture) size(t *testing.T, path string) int64 {
	t.Helper()
	node, ok := f.engine.Node(path)
	require.True(t, ok, path)
	return node.LogicalBytes
}

func TestQueriesOverScannedTree(t *testing.T) {
	f := newFixture(t)
	f.scan(t)

	children := f.engine.Children(f.root, domain.SortBySize)
	require.Len(t, children, 2)
	assert.Equal(t, "b", children[0].Name)
	assert.Equal(t, "a", children[1].Name)

	byName := f.engine.Children(f.root, domain.SortByName)
	assert.Equal(t, "a", byName[0].Name)

	logs := f.engine.Visible(f.root, Filter{Extension: "log"})
	require.Len(t, logs, 1)
	assert.Equal(t, filepath.Join(f.root, "b", "d.log"), logs[0].Path)

	big := f.engine.Visible(f.root, Filter{MinBytes: 250})
	assert.Len(t, big, 2)
	files := f.engine.Visible(f.root, Filter{FilesOnly: true, NameContains: "C"})
	require.Len(t, files, 1)
	assert.Equal(t, "c", files[0].Name)
	assert.Empty(t, f.engine.Visible(f.root, Filter{Domains: []domain.Domain{domain.DomainCloud}}))
	assert.Len(t, f.engine.Visible(f.root, Filter{Risks: []domain.RiskLevel{domain.RiskLow}}), 4)
}

func TestLayoutIsCachedPerGeneration(t *testing.T) {
	f := newFixture(t)
	f.scan(t)
	bounds := treemap.Rect{W: 60, H: 20}

	tiles := f.engine.Layout(f.root, treemap.AlgorithmSquarified, bounds)
	require.Len(t, tiles, 2)
	assert.Equal(t, filepath.Join(f.root, "b"), tiles[0].Key)
	assert.InDelta(t, 1200*5.0/6.0, tiles[0].Rect.Area(), 1e-6)
	assert.Equal(t, 1, f.engine.layouts.Len())

	again := f.engine.Layout(f.root, treemap.AlgorithmSquarified, bounds)
	assert.Equal(t, tiles, again)
	assert.Equal(t, 1, f.engine.layouts.Len())

	f.engine.Layout(f.root, treemap.AlgorithmSliceAndDice, bounds)
	assert.Equal(t, 2, f.engine.layouts.Len())
}

func TestCartTrashAndUndo(t *testing.T) {
	f := newFixture(t)
	f.scan(t)
	ctx := context.Background()
	b := filepath.Join(f.root, "b")

	f.engine.AddToCart(b, filepath.Join(b, "c"), b)
	assert.Equal(t, []string{b, filepath.Join(b, "c")}, f.engine.CartPaths())
	assert.Equal(t, int64(500), f.engine.CartBytes())
	assert.False(t, f.engine.ToggleCart(filepath.Join(b, "c")))
	assert.True(t, f.engine.InCart(b))

	plan, err := f.engine.PrepareCleanupPlan(domain.ActionMoveToTrash)
	require.NoError(t, err)
	assert.Equal(t, int64(500), plan.DryRun.CleanableBytes)

	result, err := f.engine.ExecuteCleanup(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.CleanedItems)
	require.NotNil(t, result.UndoToken)
	assert.NoDirExists(t, b)
	_, ok := f.engine.Node(b)
	assert.False(t, ok)
	assert.Equal(t, int64(100), f.size(t, f.root))
	assert.Empty(t, f.engine.CartPaths())

	restored, err := f.engine.UndoLastCleanupPlan(ctx)
	require.NoError(t, err)
	assert.True(t, restored)
	assert.FileExists(t, filepath.Join(b, "d.log"))
	assert.Equal(t, int64(500), f.size(t, b))
	assert.Equal(t, int64(600), f.size(t, f.root))
	rootNode, _ := f.engine.Node(f.root)
	assert.Equal(t, int64(3), rootNode.FileCount)

	_, err = f.engine.Undo(ctx)
	assert.ErrorIs(t, err, ErrNothingToUndo)
	restored, err = f.engine.UndoLastCleanupPlan(ctx)
	require.NoError(t, err)
	assert.False(t, restored)

	require.NoError(t, f.engine.Close(ctx))
	assert.Eventually(t, func() bool {
		seen := f.seen()
		return containsAll(seen, event.ScanCompleted, event.InsightReady, event.CleanupExecuted, event.CleanupUndone)
	}, 2*time.Second, 10*time.Millisecond)
}

// halfTrash removes the first file it finds under a directory and then
// gives up, leaving the rest in place.
type halfTrash struct{}

func (halfTrash) Ready() error { return nil }

func (halfTrash) Put(path string) (domain.TrashRecord, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return domain.TrashRecord{}, err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			if err := os.Remove(filepath.Join(path, entry.Name())); err != nil {
				return domain.TrashRecord{}, err
			}
			break
		}
	}
	return domain.TrashRecord{}, errors.New("device busy")
}

func (halfTrash) Restore(domain.TrashRecord) error { return errors.New("not supported") }

func TestFailedItemIsRescanned(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.engine.cleanup = services.NewCleanupService(f.engine.Classifier(), services.CleanupOptions{Trash: halfTrash{}})
	f.scan(t)
	b := filepath.Join(f.root, "b")
	require.Equal(t, int64(500), f.size(t, b))

	plan, err := f.engine.PreparePlanFor([]string{b}, domain.ActionMoveToTrash)
	require.NoError(t, err)
	result, err := f.engine.ExecuteCleanup(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.FailedItems)
	assert.Nil(t, result.UndoToken)

	_, cErr := os.Stat(filepath.Join(b, "c"))
	_, dErr := os.Stat(filepath.Join(b, "d.log"))
	left := int64(300)
	if os.IsNotExist(dErr) {
		left = 200
	}
	assert.True(t, os.IsNotExist(cErr) != os.IsNotExist(dErr), "exactly one file removed")
	assert.Equal(t, left, f.size(t, b))
	assert.Equal(t, 100+left, f.size(t, f.root))
	rootNode, _ := f.engine.Node(f.root)
	assert.Equal(t, int64(2), rootNode.FileCount)
}

func TestExcludeForeverSkipsLaterScans(t *testing.T) {
	f := newFixture(t)
	f.scan(t)
	ctx := context.Background()
	b := filepath.Join(f.root, "b")

	plan, err := f.engine.PreparePlanFor([]string{b}, domain.ActionExcludeForever)
	require.NoError(t, err)
	result, err := f.engine.ExecuteCleanup(ctx, plan.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ExcludedItems)
	assert.DirExists(t, b)

	excluded, err := f.engine.Exclusions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{b}, excluded)

	f.scan(t)
	_, ok := f.engine.Node(b)
	assert.False(t, ok)
	assert.Equal(t, int64(100), f.size(t, f.root))

	require.NoError(t, f.engine.RemoveExclusion(ctx, b))
	assert.ErrorIs(t, f.engine.RemoveExclusion(ctx, b), store.ErrNotFound)
	f.scan(t)
	assert.Equal(t, int64(600), f.size(t, f.root))
}

func TestScanHistoryIsRecorded(t *testing.T) {
	f := newFixture(t)
	summary := f.scan(t)
	ctx := context.Background()

	history, err := f.engine.History(ctx, f.root, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, summary.SessionID, history[0].ID)
	assert.Equal(t, "completed", history[0].Status)
	assert.Equal(t, int64(600), history[0].Bytes)

	snapshot, err := f.engine.Snapshot(ctx, summary.SessionID)
	require.NoError(t, err)
	require.Len(t, snapshot, 2)

	require.NoError(t, f.engine.Rescan(ctx, []string{filepath.Join(f.root, "a")}))
	history, err = f.engine.History(ctx, "", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1, "targeted rescans are not recorded")
}

func TestEngineWithoutStore(t *testing.T) {
	engine, err := New(classify.New(classify.NewPolicy("")), Config{})
	require.NoError(t, err)
	ctx := context.Background()

	_, err = engine.History(ctx, "", 1)
	assert.ErrorIs(t, err, ErrNoStore)
	assert.ErrorIs(t, engine.RemoveExclusion(ctx, "/x"), ErrNoStore)

	require.NoError(t, engine.AddExclusion(ctx, "/x"))
	excluded, err := engine.Exclusions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/x"}, excluded)

	_, err = engine.Undo(ctx)
	assert.ErrorIs(t, err, ErrNothingToUndo)
	require.NoError(t, engine.RescanIfIdle(ctx, nil))
}

func containsAll(seen []event.Type, want ...event.Type) bool {
	set := make(map[event.Type]bool, len(seen))
	for _, eventType := range seen {
		set[eventType] = true
	}
	for _, eventType := range want {
		if !set[eventType] {
			return false
		}
	}
	return true
}
