package log

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithWriter_TextFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelDebug})

	logger.Debug("debug message", "key", "value")

	out := buf.String()
	assert.Contains(t, out, "debug message")
	assert.Contains(t, out, "key=value")
}

func TestNewWithWriter_JSONFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{JSON: true})

	logger.Info("hello", "count", 3)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, float64(3), entry["count"])
}

func TestNewWithWriter_LevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, Config{Level: slog.LevelWarn})

	logger.Info("filtered out")
	logger.Warn("kept")

	out := buf.String()
	assert.NotContains(t, out, "filtered out")
	assert.Contains(t, out, "kept")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestNewNop_DiscardsOutput(t *testing.T) {
	t.Parallel()

	logger := NewNop()
	// Must not panic and must accept all levels.
	logger.Debug("a")
	logger.Info("b")
	logger.Error("c")
}
