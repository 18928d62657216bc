package graphqllink

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "client.log")

	logger, err := NewLogger(LogConfig{Level: "debug", Format: "json", Outputs: []string{path}})
	require.NoError(t, err)

	logger.Debug("dispatching operation", zap.String("kind", "query"))
	require.NoError(t, logger.Sync())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), `"msg":"dispatching operation"`)
	assert.Contains(t, string(content), `"kind":"query"`)
}

func TestNewLoggerLevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.log")

	logger, err := NewLogger(LogConfig{Level: "warn", Format: "json", Outputs: []string{path}})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")
	require.NoError(t, logger.Sync())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(content), "hidden")
	assert.Contains(t, string(content), "shown")
}

func TestNewLoggerRotatingOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotated.log")

	logger, err := NewLogger(LogConfig{
		Level:    "info",
		Outputs:  []string{path},
		Rotation: RotationConfig{Enable: true, MaxSizeMB: 1},
	})
	require.NoError(t, err)

	logger.Info("rotating")
	_ = logger.Sync()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "rotating")
}
