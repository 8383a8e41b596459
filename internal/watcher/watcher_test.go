package watcher

import (
	"context"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rescanRecorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *rescanRecorder) rescan(_ context.Context, paths []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, slices.Clone(paths))
	return nil
}

func (r *rescanRecorder) snapshot() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.calls)
}

func startService(t *testing.T, dirs ...string) (*Service, *rescanRecorder) {
	t.Helper()
	recorder := &rescanRecorder{}
	svc := NewService(recorder.rescan, nil)
	svc.SetDebounce(50 * time.Millisecond)
	svc.Watch(dirs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	require.Eventually(t, func() bool { return len(svc.Watching()) == len(dirs) }, time.Second, 10*time.Millisecond)
	return svc, recorder
}

func TestChangesCoalesceIntoOneRescan(t *testing.T) {
	root := t.TempDir()
	_, recorder := startService(t, root)

	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644))
	}

	require.Eventually(t, func() bool { return len(recorder.snapshot()) == 1 }, 2*time.Second, 20*time.Millisecond)
	time.Sleep(150 * time.Millisecond)
	calls := recorder.snapshot()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{root}, calls[0])
}

func TestNewDirectoryIsWatched(t *testing.T) {
	root := t.TempDir()
	svc, recorder := startService(t, root)

	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.Eventually(t, func() bool { return slices.Contains(svc.Watching(), sub) }, 2*time.Second, 20*time.Millisecond)
	require.Eventually(t, func() bool { return len(recorder.snapshot()) == 1 }, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, os.WriteFile(filepath.Join(sub, "f"), []byte("x"), 0o644))
	require.Eventually(t, func() bool {
		calls := recorder.snapshot()
		return len(calls) == 2 && slices.Equal(calls[1], []string{sub})
	}, 2*time.Second, 20*time.Millisecond)
}

func TestWatchReplacesSet(t *testing.T) {
	first := t.TempDir()
	second := t.TempDir()
	svc, _ := startService(t, first)

	svc.Watch([]string{second})
	assert.Equal(t, []string{second}, svc.Watching())
}

func TestMaxDirsCapsWatches(t *testing.T) {
	dirs := []string{t.TempDir(), t.TempDir(), t.TempDir()}
	recorder := &rescanRecorder{}
	svc := NewService(recorder.rescan, nil)
	svc.SetMaxDirs(2)
	svc.Watch(dirs)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = svc.Start(ctx)
	}()
	defer func() {
		cancel()
		<-done
	}()

	require.Eventually(t, func() bool { return len(svc.Watching()) == 2 }, time.Second, 10*time.Millisecond)
}
