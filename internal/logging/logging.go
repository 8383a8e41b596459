// Package logging owns the process logger. Output goes to stderr, a rotating
// file, or both; the terminal UI runs with the console writer detached.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level          string `yaml:"level"`
	Format         string `yaml:"format"`
	FilePath       string `yaml:"file,omitempty"`
	FileMaxSizeMB  int    `yaml:"file_max_size_mb,omitempty"`
	FileMaxFiles   int    `yaml:"file_max_files,omitempty"`
	FileMaxAgeDays int    `yaml:"file_max_age_days,omitempty"`
	// Detached drops the console writer. Set while a full-screen UI owns the terminal.
	Detached bool `yaml:"-"`
}

// SwappableHandler delegates to an inner handler that can be replaced at runtime.
type SwappableHandler struct {
	inner atomic.Pointer[slog.Handler]
}

func NewSwappableHandler(handler slog.Handler) *SwappableHandler {
	swappable := &SwappableHandler{}
	swappable.inner.Store(&handler)
	return swappable
}

func (swappable *SwappableHandler) Swap(handler slog.Handler) {
	swappable.inner.Store(&handler)
}

func (swappable *SwappableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return (*swappable.inner.Load()).Enabled(ctx, level)
}

func (swappable *SwappableHandler) Handle(ctx context.Context, record slog.Record) error {
	return (*swappable.inner.Load()).Handle(ctx, record)
}

func (swappable *SwappableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return NewSwappableHandler((*swappable.inner.Load()).WithAttrs(attrs))
}

func (swappable *SwappableHandler) WithGroup(name string) slog.Handler {
	return NewSwappableHandler((*swappable.inner.Load()).WithGroup(name))
}

// Manager owns the logger lifecycle and supports runtime reconfiguration.
type Manager struct {
	levelVar *slog.LevelVar
	handler  *SwappableHandler
	config   Config
	mu       sync.Mutex
	closer   io.Closer
}

func NewManager(cfg Config) (*Manager, *slog.Logger) {
	levelVar := &slog.LevelVar{}
	levelVar.Set(parseLevel(cfg.Level))

	writer, closer := buildWriter(cfg)
	handler := NewSwappableHandler(buildHandler(writer, levelVar, cfg.Format))

	manager := &Manager{
		levelVar: levelVar,
		handler:  handler,
		config:   cfg,
		closer:   closer,
	}
	return manager, slog.New(handler)
}

// Reconfigure applies cfg. Level changes are instant; output or format
// changes rebuild the inner handler.
func (manager *Manager) Reconfigure(cfg Config) {
	manager.mu.Lock()
	defer manager.mu.Unlock()

	manager.levelVar.Set(parseLevel(cfg.Level))

	needSwap := cfg.Format != manager.config.Format ||
		cfg.FilePath != manager.config.FilePath ||
		cfg.Detached != manager.config.Detached ||
		cfg.FileMaxSizeMB != manager.config.FileMaxSizeMB ||
		cfg.FileMaxFiles != manager.config.FileMaxFiles ||
		cfg.FileMaxAgeDays != manager.config.FileMaxAgeDays

	if needSwap {
		if manager.closer != nil {
			manager.closer.Close() //nolint:errcheck
			manager.closer = nil
		}
		writer, closer := buildWriter(cfg)
		manager.handler.Swap(buildHandler(writer, manager.levelVar, cfg.Format))
		manager.closer = closer
	}
	manager.config = cfg
}

func (manager *Manager) Config() Config {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	return manager.config
}

func (manager *Manager) Close() error {
	manager.mu.Lock()
	defer manager.mu.Unlock()
	if manager.closer == nil {
		return nil
	}
	err := manager.closer.Close()
	manager.closer = nil
	return err
}

func parseLevel(value string) slog.Level {
	switch value {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func buildWriter(cfg Config) (io.Writer, io.Closer) {
	if cfg.FilePath == "" {
		if cfg.Detached {
			return io.Discard, nil
		}
		return os.Stderr, nil
	}

	maxSize := cfg.FileMaxSizeMB
	if maxSize <= 0 {
		maxSize = 20
	}
	maxFiles := cfg.FileMaxFiles
	if maxFiles <= 0 {
		maxFiles = 3
	}
	maxAge := cfg.FileMaxAgeDays
	if maxAge <= 0 {
		maxAge = 30
	}
	file := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    maxSize,
		MaxBackups: maxFiles,
		MaxAge:     maxAge,
	}
	if cfg.Detached {
		return file, file
	}
	return io.MultiWriter(os.Stderr, file), file
}

func buildHandler(writer io.Writer, leveler slog.Leveler, format string) slog.Handler {
	options := &slog.HandlerOptions{Level: leveler}
	if format == "json" {
		return slog.NewJSONHandler(writer, options)
	}
	return slog.NewTextHandler(writer, options)
}

func ValidLevel(value string) bool {
	switch value {
	case "debug", "info", "warn", "error":
		return true
	}
	return false
}

func ValidFormat(value string) bool {
	return value == "text" || value == "json"
}

func DefaultConfig() Config {
	return Config{
		Level:          "info",
		Format:         "text",
		FileMaxSizeMB:  20,
		FileMaxFiles:   3,
		FileMaxAgeDays: 30,
	}
}

func (cfg Config) String() string {
	summary := fmt.Sprintf("level=%s format=%s", cfg.Level, cfg.Format)
	if cfg.FilePath != "" {
		summary += fmt.Sprintf(" file=%s", cfg.FilePath)
	}
	return summary
}

// Discard is a logger for callers that did not supply one.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
