// Package app wires configuration, logging, persistence and the engine into
// one process, shared by the command line and the terminal UI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tonic/internal/classify"
	"tonic/internal/config"
	"tonic/internal/domain"
	"tonic/internal/engine"
	"tonic/internal/event"
	"tonic/internal/logging"
	"tonic/internal/services"
	"tonic/internal/state"
	"tonic/internal/store"
	"tonic/internal/trash"
	"tonic/internal/ui"
	"tonic/internal/watcher"
)

type App struct {
	Config *config.Config
	Logger *slog.Logger
	Engine *engine.Engine
	Bus    *event.Bus
	Store  *store.Store

	// ConfigPath is where UI preferences are saved on exit. Empty selects
	// the default location.
	ConfigPath string

	logs    *logging.Manager
	watcher *watcher.Service
	stop    context.CancelFunc
}

// New builds every long-lived component. The caller must Close the app.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	logs, logger := logging.NewManager(cfg.Logging)
	slog.SetDefault(logger)

	app := &App{Config: cfg, Logger: logger, logs: logs}

	if !cfg.Store.Disabled {
		path := cfg.Store.Path
		if path == "" {
			path = store.DefaultPath()
		}
		db, err := store.Open(ctx, path)
		if err != nil {
			_ = logs.Close()
			return nil, err
		}
		app.Store = db
		logger.Debug("state database ready", "path", path)
	}

	app.Bus = event.NewBus(logger, 256)
	app.Bus.Subscribe(event.ScanCompleted, app.logEvent)
	app.Bus.Subscribe(event.ScanCancelled, app.logEvent)
	app.Bus.Subscribe(event.CleanupExecuted, app.logEvent)
	app.Bus.Subscribe(event.CleanupUndone, app.logEvent)
	app.Bus.Subscribe(event.ExclusionChanged, app.logEvent)
	go app.Bus.Start()

	estimator, err := services.NewEstimator(cfg.Scan.Estimator, logger)
	if err != nil {
		app.closeResources()
		return nil, err
	}
	trashRoot := cfg.Cleanup.TrashDir
	if trashRoot == "" {
		trashRoot = trash.DefaultRoot()
	}

	engineConfig := engine.Config{
		Scan: services.OrchestratorOptions{
			Workers:          cfg.Scan.Workers,
			BatchSize:        cfg.Scan.BatchSize,
			EventBuffer:      cfg.Scan.EventBuffer,
			ProgressInterval: cfg.Scan.ProgressInterval,
			Estimator:        estimator,
		},
		Cleanup: services.CleanupOptions{Trash: trash.NewDir(trashRoot)},
		Bus:     app.Bus,
		Logger:  logger,
	}
	if app.Store != nil {
		engineConfig.Store = app.Store
	}
	app.Engine, err = engine.New(classify.New(classify.DefaultPolicy()), engineConfig)
	if err != nil {
		app.closeResources()
		return nil, err
	}

	if cfg.Watch.Enabled {
		app.startWatcher(ctx)
	}
	return app, nil
}

func (app *App) logEvent(e event.Event) {
	attrs := make([]any, 0, 2*len(e.Data)+2)
	attrs = append(attrs, "event", string(e.Type))
	for key, value := range e.Data {
		attrs = append(attrs, key, value)
	}
	app.Logger.Info("engine event", attrs...)
}

// startWatcher follows directory changes under the scanned root and feeds
// them back as targeted rescans. The watched set is refreshed after every
// completed full scan.
func (app *App) startWatcher(ctx context.Context) {
	ctx, app.stop = context.WithCancel(ctx)
	app.watcher = watcher.NewService(app.Engine.RescanIfIdle, app.Logger)
	app.watcher.SetDebounce(app.Config.Watch.Debounce)
	app.watcher.SetMaxDirs(app.Config.Watch.MaxDirs)

	app.Bus.Subscribe(event.ScanCompleted, func(e event.Event) {
		if mode, _ := e.Data["mode"].(string); mode == string(domain.ScanTargeted) {
			return
		}
		root, _ := e.Data["root"].(string)
		app.watcher.Watch(app.watchDirs(root))
	})

	go func() {
		if err := app.watcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			app.Logger.Error("watcher stopped", "error", err)
		}
	}()
}

func (app *App) watchDirs(root string) []string {
	if root == "" {
		return nil
	}
	dirs := []string{root}
	for _, node := range app.Engine.Visible(root, engine.Filter{}) {
		if node.IsDirectory {
			dirs = append(dirs, node.Path)
		}
	}
	return dirs
}

// ScanRequest builds a full-scan request for root from configuration.
func (app *App) ScanRequest(root string, mode domain.ScanMode) services.ScanRequest {
	if root == "" {
		root = app.Config.Scan.Root
	}
	if mode == "" {
		mode = domain.ScanMode(app.Config.Scan.Mode)
	}
	return services.ScanRequest{
		Mode:       mode,
		RootPath:   root,
		QuickDepth: app.Config.Scan.QuickDepth,
		ShowHidden: app.Config.Scan.ShowHidden,
	}
}

// RunTUI runs the full-screen browser until the user quits and then saves
// the UI preferences.
func (app *App) RunTUI(ctx context.Context) error {
	logCfg := app.logs.Config()
	logCfg.Detached = true
	app.logs.Reconfigure(logCfg)
	defer func() {
		logCfg.Detached = false
		app.logs.Reconfigure(logCfg)
	}()

	if abs, err := filepath.Abs(app.Config.Scan.Root); err == nil {
		app.Config.Scan.Root = abs
	}
	appState := state.NewState(app.Config, app.Engine)
	model := ui.NewModel(ctx, appState, app.Engine, app.Config, app.Logger)

	program := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	finalModel, err := program.Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("terminal ui: %w", err)
	}
	if provider, ok := finalModel.(ui.ConfigProvider); ok {
		if err := config.Save(app.ConfigPath, provider.ConfigSnapshot()); err != nil {
			app.Logger.Warn("saving preferences", "error", err)
		}
	}
	return nil
}

// Close stops background work and releases resources.
func (app *App) Close() error {
	if app.stop != nil {
		app.stop()
	}
	var errs []error
	if app.Engine != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		errs = append(errs, app.Engine.Close(ctx))
		cancel()
	}
	errs = append(errs, app.closeResources())
	return errors.Join(errs...)
}

func (app *App) closeResources() error {
	var errs []error
	if app.Bus != nil {
		app.Bus.Stop()
		app.Bus.Wait()
	}
	if app.Store != nil {
		errs = append(errs, app.Store.Close())
	}
	errs = append(errs, app.logs.Close())
	return errors.Join(errs...)
}
