// Package watcher turns filesystem changes under scanned directories into
// debounced targeted rescans.
package watcher

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// RescanFunc refreshes the given directories.
type RescanFunc func(ctx context.Context, paths []string) error

type Service struct {
	rescan   RescanFunc
	logger   *slog.Logger
	debounce time.Duration
	maxDirs  int

	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	wanted   []string
	watching map[string]bool
	pending  map[string]struct{}
}

func NewService(rescan RescanFunc, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{
		rescan:   rescan,
		logger:   logger.With("component", "watcher"),
		debounce: time.Second,
		maxDirs:  4096,
		watching: make(map[string]bool),
		pending:  make(map[string]struct{}),
	}
}

// SetDebounce overrides the quiet period before a rescan fires.
func (s *Service) SetDebounce(d time.Duration) {
	if d > 0 {
		s.debounce = d
	}
}

// SetMaxDirs caps how many directories are watched at once.
func (s *Service) SetMaxDirs(n int) {
	if n > 0 {
		s.maxDirs = n
	}
}

// Watch replaces the watched directory set. It may be called before Start;
// the set is applied once the watcher exists.
func (s *Service) Watch(dirs []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wanted = slices.Clone(dirs)
	if s.watcher != nil {
		s.syncLocked()
	}
}

// Watching lists the directories currently watched.
func (s *Service) Watching() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.watching))
	for path := range s.watching {
		paths = append(paths, path)
	}
	slices.Sort(paths)
	return paths
}

// Start blocks until ctx is canceled.
func (s *Service) Start(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close() //nolint:errcheck

	s.mu.Lock()
	s.watcher = w
	s.syncLocked()
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.watcher = nil
		s.watching = make(map[string]bool)
		s.mu.Unlock()
	}()
	s.logger.Info("filesystem watcher starting")

	debounceTimer := time.NewTimer(0)
	if !debounceTimer.Stop() {
		<-debounceTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("filesystem watcher stopping")
			return nil

		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if s.handle(ev) {
				if !debounceTimer.Stop() {
					select {
					case <-debounceTimer.C:
					default:
					}
				}
				debounceTimer.Reset(s.debounce)
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			s.logger.Error("fsnotify error", "error", err)

		case <-debounceTimer.C:
			paths := s.takePending()
			if len(paths) == 0 {
				continue
			}
			s.logger.Info("debounce elapsed, rescanning", "paths", len(paths))
			if err := s.rescan(ctx, paths); err != nil {
				s.logger.Error("rescan triggered by watcher failed", "error", err)
			}
		}
	}
}

// handle records the parent of a changed entry as pending and reports
// whether a rescan should be scheduled.
func (s *Service) handle(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	parent := filepath.Dir(ev.Name)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.watching[parent] {
		return false
	}
	s.pending[parent] = struct{}{}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Lstat(ev.Name); err == nil && info.IsDir() {
			s.addLocked(ev.Name)
		}
	} else if s.watching[ev.Name] {
		delete(s.watching, ev.Name)
	}
	s.logger.Debug("change observed", "path", ev.Name, "op", ev.Op.String())
	return true
}

func (s *Service) takePending() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	paths := make([]string, 0, len(s.pending))
	for path := range s.pending {
		paths = append(paths, path)
	}
	clear(s.pending)
	slices.Sort(paths)
	return paths
}

func (s *Service) syncLocked() {
	wanted := make(map[string]bool, len(s.wanted))
	for _, path := range s.wanted {
		wanted[filepath.Clean(path)] = true
	}
	for path := range s.watching {
		if wanted[path] {
			continue
		}
		if err := s.watcher.Remove(path); err != nil {
			s.logger.Debug("failed to remove watch", "path", path, "error", err)
		}
		delete(s.watching, path)
	}
	for _, path := range s.wanted {
		s.addLocked(filepath.Clean(path))
	}
}

func (s *Service) addLocked(path string) {
	if s.watching[path] || len(s.watching) >= s.maxDirs {
		return
	}
	if err := s.watcher.Add(path); err != nil {
		s.logger.Warn("failed to watch directory", "path", path, "error", err)
		return
	}
	s.watching[path] = true
}
