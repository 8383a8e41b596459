package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Flags holds command-line overrides. Only flags the user actually set are
// applied, so file and environment values survive unset flags.
type Flags struct {
	set    *pflag.FlagSet
	values Config
}

func BindFlags(set *pflag.FlagSet) *Flags {
	defaults := Default()
	flags := &Flags{set: set}
	values := &flags.values

	set.StringVar(&values.Scan.Mode, "mode", defaults.Scan.Mode, "scan mode (quick or deep)")
	set.IntVar(&values.Scan.QuickDepth, "quick-depth", defaults.Scan.QuickDepth, "depth at which quick scans estimate")
	set.IntVar(&values.Scan.Workers, "workers", defaults.Scan.Workers, "concurrent directory readers")
	set.BoolVar(&values.Scan.ShowHidden, "hidden", defaults.Scan.ShowHidden, "include dot files")
	set.StringVar(&values.Scan.Estimator, "estimator", defaults.Scan.Estimator, "quick-scan size estimator (sample or du)")
	set.StringVar(&values.Cleanup.TrashDir, "trash-dir", "", "trash directory")
	set.StringVar(&values.Store.Path, "db", "", "state database path")
	set.BoolVar(&values.Store.Disabled, "no-db", false, "keep state in memory only")
	set.StringVar(&values.Logging.Level, "log-level", defaults.Logging.Level, "log level (debug, info, warn, error)")
	set.StringVar(&values.Logging.Format, "log-format", defaults.Logging.Format, "log format (text or json)")
	set.StringVar(&values.Logging.FilePath, "log-file", "", "also log to this rotating file")
	set.StringVar(&values.UI.TreemapAlgorithm, "treemap", defaults.UI.TreemapAlgorithm, "treemap algorithm (squarified or sliceAndDice)")
	set.BoolVar(&values.Watch.Enabled, "watch", false, "rescan directories that change")
	set.DurationVar(&values.Watch.Debounce, "watch-debounce", time.Second, "quiet period before a watch rescan")
	return flags
}

// Apply copies every flag set on the command line into cfg.
func (flags *Flags) Apply(cfg *Config) {
	values := flags.values
	apply := map[string]func(){
		"mode":           func() { cfg.Scan.Mode = values.Scan.Mode },
		"quick-depth":    func() { cfg.Scan.QuickDepth = values.Scan.QuickDepth },
		"workers":        func() { cfg.Scan.Workers = values.Scan.Workers },
		"hidden":         func() { cfg.Scan.ShowHidden = values.Scan.ShowHidden },
		"estimator":      func() { cfg.Scan.Estimator = values.Scan.Estimator },
		"trash-dir":      func() { cfg.Cleanup.TrashDir = values.Cleanup.TrashDir },
		"db":             func() { cfg.Store.Path = values.Store.Path },
		"no-db":          func() { cfg.Store.Disabled = values.Store.Disabled },
		"log-level":      func() { cfg.Logging.Level = values.Logging.Level },
		"log-format":     func() { cfg.Logging.Format = values.Logging.Format },
		"log-file":       func() { cfg.Logging.FilePath = values.Logging.FilePath },
		"treemap":        func() { cfg.UI.TreemapAlgorithm = values.UI.TreemapAlgorithm },
		"watch":          func() { cfg.Watch.Enabled = values.Watch.Enabled },
		"watch-debounce": func() { cfg.Watch.Debounce = values.Watch.Debounce },
	}
	for name, fn := range apply {
		if flags.set.Changed(name) {
			fn()
		}
	}
}
