package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"), "")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
scan:
  mode: quick
  quick_depth: 5
  progress_interval: 250ms
logging:
  level: debug
ui:
  treemap_algorithm: sliceAndDice
watch:
  enabled: true
  debounce: 2s
`), 0o600))
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("TONIC_WORKERS=7\n"), 0o600))
	t.Setenv("TONIC_QUICK_DEPTH", "2")
	t.Setenv("TONIC_SHOW_HIDDEN", "false")
	t.Cleanup(func() { os.Unsetenv("TONIC_WORKERS") })

	cfg, err := Load(path, envFile)
	require.NoError(t, err)
	assert.Equal(t, "quick", cfg.Scan.Mode)
	assert.Equal(t, 2, cfg.Scan.QuickDepth)
	assert.Equal(t, 7, cfg.Scan.Workers)
	assert.False(t, cfg.Scan.ShowHidden)
	assert.Equal(t, 250*time.Millisecond, cfg.Scan.ProgressInterval)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, "sliceAndDice", cfg.UI.TreemapAlgorithm)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("scan:\n  mode: sideways\n  workers: 0\nui:\n  treemap_algorithm: spiral\n"), 0o600))

	_, err := Load(path, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan.mode")
	assert.Contains(t, err.Error(), "scan.workers")
	assert.Contains(t, err.Error(), "ui.treemap_algorithm")
}

func TestLoadRejectsMalformedEnv(t *testing.T) {
	t.Setenv("TONIC_WORKERS", "many")
	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"), "")
	assert.ErrorContains(t, err, "TONIC_WORKERS")
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.UI.SortMode = "name"
	cfg.UI.KeyBindings = map[string]string{"quit": "x"}
	cfg.Watch.Debounce = 3 * time.Second
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path, "")
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestFlagsOverrideOnlyWhenSet(t *testing.T) {
	set := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := BindFlags(set)
	require.NoError(t, set.Parse([]string{"--mode", "quick", "--watch", "--log-file", "/tmp/tonic.log"}))

	cfg := Default()
	cfg.Scan.Workers = 11
	flags.Apply(cfg)
	assert.Equal(t, "quick", cfg.Scan.Mode)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, "/tmp/tonic.log", cfg.Logging.FilePath)
	assert.Equal(t, 11, cfg.Scan.Workers)
}
