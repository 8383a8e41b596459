// Package config loads tonic's settings: defaults, then the YAML file, then
// .env and TONIC_* environment variables, then command-line flags.
package config

import (
	"errors"
	"fmt"
	"runtime"
	"time"

	"tonic/internal/domain"
	"tonic/internal/logging"
	"tonic/internal/treemap"
)

type Config struct {
	Scan    ScanConfig     `yaml:"scan"`
	Cleanup CleanupConfig  `yaml:"cleanup"`
	Store   StoreConfig    `yaml:"store"`
	Logging logging.Config `yaml:"logging"`
	UI      UIConfig       `yaml:"ui"`
	Watch   WatchConfig    `yaml:"watch"`
}

type ScanConfig struct {
	Root             string        `yaml:"root"`
	Mode             string        `yaml:"mode"`
	QuickDepth       int           `yaml:"quick_depth"`
	Workers          int           `yaml:"workers"`
	BatchSize        int           `yaml:"batch_size"`
	EventBuffer      int           `yaml:"event_buffer"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
	ShowHidden       bool          `yaml:"show_hidden"`
	// Estimator is "sample" or "du".
	Estimator string `yaml:"estimator"`
}

type CleanupConfig struct {
	DefaultAction string `yaml:"default_action"`
	// TrashDir empty selects the XDG data directory.
	TrashDir string `yaml:"trash_dir,omitempty"`
}

type StoreConfig struct {
	// Path empty selects the XDG data directory.
	Path     string `yaml:"path,omitempty"`
	Disabled bool   `yaml:"disabled,omitempty"`
}

type UIConfig struct {
	Theme            string            `yaml:"theme"`
	SortMode         string            `yaml:"sort_mode"`
	TreemapAlgorithm string            `yaml:"treemap_algorithm"`
	KeyBindings      map[string]string `yaml:"key_bindings,omitempty"`
}

type WatchConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Debounce time.Duration `yaml:"debounce"`
	MaxDirs  int           `yaml:"max_dirs"`
}

func Default() *Config {
	return &Config{
		Scan: ScanConfig{
			Root:             ".",
			Mode:             string(domain.ScanDeep),
			QuickDepth:       3,
			Workers:          max(2, runtime.NumCPU()),
			BatchSize:        128,
			EventBuffer:      256,
			ProgressInterval: 100 * time.Millisecond,
			ShowHidden:       true,
			Estimator:        "sample",
		},
		Cleanup: CleanupConfig{
			DefaultAction: string(domain.ActionMoveToTrash),
		},
		Logging: logging.DefaultConfig(),
		UI: UIConfig{
			Theme:            "dark",
			SortMode:         string(domain.SortBySize),
			TreemapAlgorithm: string(treemap.AlgorithmSquarified),
		},
		Watch: WatchConfig{
			Debounce: time.Second,
			MaxDirs:  4096,
		},
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if mode := domain.ScanMode(c.Scan.Mode); mode != domain.ScanQuick && mode != domain.ScanDeep {
		errs = append(errs, fmt.Errorf("scan.mode %q: want quick or deep", c.Scan.Mode))
	}
	if c.Scan.QuickDepth < 1 {
		errs = append(errs, fmt.Errorf("scan.quick_depth %d: must be positive", c.Scan.QuickDepth))
	}
	if c.Scan.Workers < 1 {
		errs = append(errs, fmt.Errorf("scan.workers %d: must be positive", c.Scan.Workers))
	}
	if c.Scan.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("scan.batch_size %d: must be positive", c.Scan.BatchSize))
	}
	if c.Scan.EventBuffer < 1 {
		errs = append(errs, fmt.Errorf("scan.event_buffer %d: must be positive", c.Scan.EventBuffer))
	}
	if c.Scan.ProgressInterval <= 0 {
		errs = append(errs, fmt.Errorf("scan.progress_interval %s: must be positive", c.Scan.ProgressInterval))
	}
	if c.Scan.Estimator != "sample" && c.Scan.Estimator != "du" {
		errs = append(errs, fmt.Errorf("scan.estimator %q: want sample or du", c.Scan.Estimator))
	}
	if !domain.ActionType(c.Cleanup.DefaultAction).Valid() {
		errs = append(errs, fmt.Errorf("cleanup.default_action %q: unknown action", c.Cleanup.DefaultAction))
	}
	if !logging.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level %q: unknown level", c.Logging.Level))
	}
	if !logging.ValidFormat(c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format %q: want text or json", c.Logging.Format))
	}
	switch domain.SortMode(c.UI.SortMode) {
	case domain.SortBySize, domain.SortByName, domain.SortByMod:
	default:
		errs = append(errs, fmt.Errorf("ui.sort_mode %q: want size, name or mod", c.UI.SortMode))
	}
	if _, err := treemap.ParseAlgorithm(c.UI.TreemapAlgorithm); err != nil {
		errs = append(errs, fmt.Errorf("ui.treemap_algorithm: %w", err))
	}
	if c.Watch.Enabled && c.Watch.Debounce <= 0 {
		errs = append(errs, fmt.Errorf("watch.debounce %s: must be positive", c.Watch.Debounce))
	}
	return errors.Join(errs...)
}
