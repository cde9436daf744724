package logging

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "suscam.log")
	logger, err := New(Options{File: path, Level: "warn"})
	require.NoError(t, err)

	logger.Infow("hidden", "k", 1)
	logger.Warnw("camera unreachable", "address", "10.0.0.2")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "camera unreachable")
	assert.Contains(t, string(data), "suscam")
	assert.NotContains(t, string(data), "hidden")
}

func TestDebugOverridesLevel(t *testing.T) {
	logger, err := New(Options{Level: "error", Debug: true})
	require.NoError(t, err)
	assert.True(t, logger.Desugar().Core().Enabled(-1))
}

func TestInvalidLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}
