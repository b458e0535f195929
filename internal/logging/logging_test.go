package logging

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelError, Level("error"))
	assert.Equal(t, slog.LevelWarn, Level("WARN"))
	assert.Equal(t, slog.LevelWarn, Level("warning"))
	assert.Equal(t, slog.LevelInfo, Level(" info "))
	// Unknown values resolve verbose.
	assert.Equal(t, slog.LevelDebug, Level("verbose"))
	assert.Equal(t, slog.LevelDebug, Level(""))
}

func TestComponentToleratesNilBase(t *testing.T) {
	t.Parallel()

	logger := Component(nil, "history")
	require.NotNil(t, logger)
	assert.True(t, logger.Enabled(nil, slog.LevelInfo))
}
