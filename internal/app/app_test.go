package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tonic/internal/config"
	"tonic/internal/domain"
)

func testConfig(t *testing.T, root string) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Scan.Root = root
	cfg.Store.Path = filepath.Join(t.TempDir(), "tonic.db")
	cfg.Cleanup.TrashDir = filepath.Join(t.TempDir(), "trash")
	cfg.Logging.Level = "error"
	return cfg
}

func TestScanIsRecordedInHistory(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "f"), make([]byte, 64), 0o644))

	ctx := context.Background()
	app, err := New(ctx, testConfig(t, root))
	require.NoError(t, err)
	defer app.Close()

	summary := app.Engine.Scan(ctx, app.ScanRequest("", ""))
	require.NoError(t, summary.Err)
	assert.Equal(t, domain.PhaseCompleted, summary.Phase)
	assert.Equal(t, domain.ScanDeep, summary.Request.Mode)

	history, err := app.Engine.History(ctx, root, 10)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.EqualValues(t, 64, history[0].Bytes)
}

func TestWatcherFollowsScannedTree(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))

	cfg := testConfig(t, root)
	cfg.Watch.Enabled = true
	cfg.Watch.Debounce = 50 * time.Millisecond
	ctx := context.Background()
	app, err := New(ctx, cfg)
	require.NoError(t, err)
	defer app.Close()

	app.Engine.Scan(ctx, app.ScanRequest(root, domain.ScanDeep))
	assert.Eventually(t, func() bool {
		return len(app.watcher.Watching()) == 2
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "late"), make([]byte, 10), 0o644))
	assert.Eventually(t, func() bool {
		node, ok := app.Engine.Node(filepath.Join(root, "sub", "late"))
		return ok && node.LogicalBytes == 10
	}, 5*time.Second, 50*time.Millisecond)
}

func TestInMemoryStore(t *testing.T) {
	cfg := testConfig(t, t.TempDir())
	cfg.Store.Disabled = true
	app, err := New(context.Background(), cfg)
	require.NoError(t, err)
	defer app.Close()
	assert.Nil(t, app.Store)
}
