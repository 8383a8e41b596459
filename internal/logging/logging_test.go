package logging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewManagerDefaults(t *testing.T) {
	manager, logger := NewManager(DefaultConfig())
	defer manager.Close() //nolint:errcheck

	require.NotNil(t, logger)
	assert.Equal(t, "info", manager.Config().Level)
	assert.True(t, logger.Enabled(context.Background(), slog.LevelInfo))
	assert.False(t, logger.Enabled(context.Background(), slog.LevelDebug))
}

func TestReconfigureLevel(t *testing.T) {
	manager, logger := NewManager(Config{Level: "info", Format: "text", Detached: true})
	defer manager.Close() //nolint:errcheck

	manager.Reconfigure(Config{Level: "debug", Format: "text", Detached: true})
	assert.True(t, logger.Enabled(context.Background(), slog.LevelDebug))

	manager.Reconfigure(Config{Level: "error", Format: "text", Detached: true})
	assert.False(t, logger.Enabled(context.Background(), slog.LevelWarn))
	assert.True(t, logger.Enabled(context.Background(), slog.LevelError))
}

func TestDetachedFileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "tonic.log")
	manager, logger := NewManager(Config{Level: "info", Format: "json", FilePath: logFile, Detached: true})

	logger.Info("scan finished", "files", 3)
	require.NoError(t, manager.Close())

	data, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"scan finished"`)
	assert.Contains(t, string(data), `"files":3`)
}

func TestValidators(t *testing.T) {
	assert.True(t, ValidLevel("warn"))
	assert.False(t, ValidLevel("verbose"))
	assert.True(t, ValidFormat("json"))
	assert.False(t, ValidFormat("xml"))
}
