package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	configDirName  = "tonic"
	configFileName = "config.yaml"
	envPrefix      = "TONIC_"
)

func ConfigPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, configDirName, configFileName), nil
}

// Load reads path (ConfigPath when empty), then envFile when it exists, then
// TONIC_* variables. Variables already set in the environment win over
// envFile.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return nil, err
		}
	}
	if err := cfg.loadFromFile(path); err != nil {
		return nil, fmt.Errorf("loading config file: %w", err)
	}

	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("loading env file: %w", err)
		}
	}
	if err := cfg.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() error {
	strs := map[string]*string{
		"ROOT":           &c.Scan.Root,
		"SCAN_MODE":      &c.Scan.Mode,
		"ESTIMATOR":      &c.Scan.Estimator,
		"DEFAULT_ACTION": &c.Cleanup.DefaultAction,
		"TRASH_DIR":      &c.Cleanup.TrashDir,
		"DB_PATH":        &c.Store.Path,
		"LOG_LEVEL":      &c.Logging.Level,
		"LOG_FORMAT":     &c.Logging.Format,
		"LOG_FILE":       &c.Logging.FilePath,
		"THEME":          &c.UI.Theme,
		"SORT":           &c.UI.SortMode,
		"TREEMAP":        &c.UI.TreemapAlgorithm,
	}
	for name, target := range strs {
		if v, ok := lookup(name); ok {
			*target = v
		}
	}

	ints := map[string]*int{
		"QUICK_DEPTH": &c.Scan.QuickDepth,
		"WORKERS":     &c.Scan.Workers,
	}
	for name, target := range ints {
		if v, ok := lookup(name); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
			*target = n
		}
	}

	bools := map[string]*bool{
		"SHOW_HIDDEN":   &c.Scan.ShowHidden,
		"WATCH":         &c.Watch.Enabled,
		"STORE_DISABLE": &c.Store.Disabled,
	}
	for name, target := range bools {
		if v, ok := lookup(name); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", envPrefix, name, err)
			}
			*target = b
		}
	}

	if v, ok := lookup("WATCH_DEBOUNCE"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sWATCH_DEBOUNCE: %w", envPrefix, err)
		}
		c.Watch.Debounce = d
	}
	return nil
}

func lookup(name string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(envPrefix + name))
	return v, v != ""
}

// Save writes cfg as YAML to path (ConfigPath when empty).
func Save(path string, cfg *Config) error {
	if path == "" {
		var err error
		if path, err = ConfigPath(); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
