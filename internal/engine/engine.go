// Package engine is the single instance the front ends talk to. It owns the
// Node Index, the scan orchestrator and the cleanup service and keeps them
// consistent with each other.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"tonic/internal/classify"
	"tonic/internal/domain"
	"tonic/internal/event"
	"tonic/internal/index"
	"tonic/internal/services"
	"tonic/internal/store"
	"tonic/internal/treemap"
)

var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNoStore       = errors.New("no persistent store configured")
)

const historySnapshotLimit = 50

type Config struct {
	Scan    services.OrchestratorOptions
	Cleanup services.CleanupOptions
	// Store, when set, backs the exclusion list, the undo journal and scan
	// history unless Cleanup names its own.
	Store           *store.Store
	Bus             *event.Bus
	Logger          *slog.Logger
	LayoutCacheSize int
}

type Engine struct {
	index      *index.Index
	classifier *classify.Classifier
	scanner    *services.Orchestrator
	cleanup    *services.CleanupService
	exclusions services.ExclusionList
	store      *store.Store
	bus        *event.Bus
	logger     *slog.Logger

	layouts *lru.Cache[layoutKey, []treemap.Tile]
	group   singleflight.Group

	cartMu sync.Mutex
	cart   []string
}

func New(classifier *classify.Classifier, cfg Config) (*Engine, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	if cfg.LayoutCacheSize <= 0 {
		cfg.LayoutCacheSize = 128
	}
	layouts, err := lru.New[layoutKey, []treemap.Tile](cfg.LayoutCacheSize)
	if err != nil {
		return nil, fmt.Errorf("layout cache: %w", err)
	}

	engine := &Engine{
		index:      index.New(),
		classifier: classifier,
		store:      cfg.Store,
		bus:        cfg.Bus,
		logger:     cfg.Logger.With("component", "engine"),
		layouts:    layouts,
	}

	if cfg.Store != nil {
		if cfg.Cleanup.Journal == nil {
			cfg.Cleanup.Journal = cfg.Store
		}
		if cfg.Cleanup.Exclusions == nil {
			cfg.Cleanup.Exclusions = cfg.Store
		}
	}
	if cfg.Cleanup.Exclusions == nil {
		cfg.Cleanup.Exclusions = services.NewMemoryExclusions()
	}
	if cfg.Cleanup.Logger == nil {
		cfg.Cleanup.Logger = cfg.Logger
	}
	engine.exclusions = cfg.Cleanup.Exclusions

	cfg.Scan.Exclusions = engine.exclusions
	if cfg.Scan.Logger == nil {
		cfg.Scan.Logger = cfg.Logger
	}
	cfg.Scan.OnFinish = engine.scanFinished

	engine.scanner = services.NewOrchestrator(engine.index, classifier, cfg.Scan)
	engine.cleanup = services.NewCleanupService(classifier, cfg.Cleanup)
	return engine, nil
}

func (engine *Engine) Index() *index.Index {
	return engine.index
}

func (engine *Engine) Classifier() *classify.Classifier {
	return engine.classifier
}

// StartScan replaces any running scan. The caller must drain the session's
// events.
func (engine *Engine) StartScan(ctx context.Context, request services.ScanRequest) *services.Session {
	return engine.scanner.StartScan(ctx, request)
}

func (engine *Engine) CancelActiveScan() {
	engine.scanner.CancelActiveScan()
}

// ActiveScan returns the most recent session, or nil before the first scan.
func (engine *Engine) ActiveScan() *services.Session {
	return engine.scanner.Active()
}

// Scan runs a scan to completion and returns its summary.
func (engine *Engine) Scan(ctx context.Context, request services.ScanRequest) services.ScanSummary {
	return engine.StartScan(ctx, request).Wait()
}

// Rescan refreshes paths with a targeted scan.
func (engine *Engine) Rescan(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	summary := engine.Scan(ctx, services.ScanRequest{Mode: domain.ScanTargeted, TargetedPaths: paths, ShowHidden: true})
	return summary.Err
}

// RescanIfIdle is Rescan for background callers: it leaves a running scan
// alone, since that scan will observe the same changes.
func (engine *Engine) RescanIfIdle(ctx context.Context, paths []string) error {
	if active := engine.scanner.Active(); active != nil {
		select {
		case <-active.Done():
		default:
			engine.logger.Debug("scan in progress, skipping rescan", "paths", len(paths))
			return nil
		}
	}
	return engine.Rescan(ctx, paths)
}

// AwaitIdle blocks until no scan is writing to the index.
func (engine *Engine) AwaitIdle(ctx context.Context) error {
	return engine.scanner.AwaitIdle(ctx)
}

// Close cancels a running scan and waits for it to stop writing.
func (engine *Engine) Close(ctx context.Context) error {
	return engine.scanner.Close(ctx)
}

func (engine *Engine) scanFinished(summary services.ScanSummary) {
	root := summary.Request.RootPath
	if summary.Request.Mode == domain.ScanTargeted && len(summary.Request.TargetedPaths) > 0 {
		root = summary.Request.TargetedPaths[0]
	}
	data := map[string]any{
		"session":  summary.SessionID,
		"root":     root,
		"mode":     string(summary.Request.Mode),
		"files":    summary.FilesScanned,
		"bytes":    summary.BytesScanned,
		"warnings": summary.Warnings,
		"duration": summary.Duration(),
	}
	if summary.Err != nil {
		data["error"] = summary.Err.Error()
	}

	if engine.store != nil && summary.Request.Mode != domain.ScanTargeted && summary.Request.Mode.Valid() {
		engine.recordScan(summary)
	}
	engine.layouts.Purge()

	if engine.bus == nil {
		return
	}
	if summary.Phase == domain.PhaseCompleted {
		engine.bus.Publish(event.Event{Type: event.ScanCompleted, Data: data})
	} else {
		engine.bus.Publish(event.Event{Type: event.ScanCancelled, Data: data})
	}
	if summary.Insight != nil {
		engine.bus.Publish(event.Event{Type: event.InsightReady, Data: map[string]any{
			"session": summary.SessionID,
			"insight": *summary.Insight,
		}})
	}
}

func (engine *Engine) recordScan(summary services.ScanSummary) {
	record := store.ScanRecord{
		ID:         summary.SessionID,
		RootPath:   summary.Request.RootPath,
		Mode:       string(summary.Request.Mode),
		Status:     string(summary.Phase),
		Files:      summary.FilesScanned,
		Bytes:      summary.BytesScanned,
		Warnings:   summary.Warnings,
		StartedAt:  summary.StartedAt,
		FinishedAt: summary.FinishedAt,
	}
	var entries []store.SnapshotEntry
	if summary.Phase == domain.PhaseCompleted {
		children := engine.Children(summary.Request.RootPath, domain.SortBySize)
		if len(children) > historySnapshotLimit {
			children = children[:historySnapshotLimit]
		}
		for _, child := range children {
			entries = append(entries, store.SnapshotEntry{
				Path:            child.Path,
				LogicalBytes:    child.LogicalBytes,
				SizeIsEstimated: child.SizeIsEstimated,
			})
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := engine.store.RecordScan(ctx, record, entries); err != nil {
		engine.logger.Error("record scan history", "session", summary.SessionID, "error", err)
	}
}

// History lists recorded scans, newest first.
func (engine *Engine) History(ctx context.Context, root string, limit int) ([]store.ScanRecord, error) {
	if engine.store == nil {
		return nil, ErrNoStore
	}
	return engine.store.ListScans(ctx, root, limit)
}

// Snapshot returns the root's children as recorded by scan id.
func (engine *Engine) Snapshot(ctx context.Context, scanID string) ([]store.SnapshotEntry, error) {
	if engine.store == nil {
		return nil, ErrNoStore
	}
	return engine.store.Snapshot(ctx, scanID)
}

// Exclusions lists excluded paths in order.
func (engine *Engine) Exclusions(ctx context.Context) ([]string, error) {
	excluded, err := engine.exclusions.ExcludedPaths(ctx)
	if err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(excluded))
	for path := range excluded {
		paths = append(paths, path)
	}
	slices.Sort(paths)
	return paths, nil
}

func (engine *Engine) AddExclusion(ctx context.Context, path string) error {
	path = domain.CanonicalPath(path)
	if err := engine.exclusions.AddExclusion(ctx, path); err != nil {
		return err
	}
	engine.scanner.Evict([]string{path})
	engine.layouts.Purge()
	engine.publish(event.ExclusionChanged, map[string]any{"path": path, "excluded": true})
	return nil
}

// RemoveExclusion needs the persistent store.
func (engine *Engine) RemoveExclusion(ctx context.Context, path string) error {
	if engine.store == nil {
		return ErrNoStore
	}
	path = domain.CanonicalPath(path)
	if err := engine.store.RemoveExclusion(ctx, path); err != nil {
		return err
	}
	engine.publish(event.ExclusionChanged, map[string]any{"path": path, "excluded": false})
	return nil
}

func (engine *Engine) publish(eventType event.Type, data map[string]any) {
	if engine.bus != nil {
		engine.bus.Publish(event.Event{Type: eventType, Data: data})
	}
}
