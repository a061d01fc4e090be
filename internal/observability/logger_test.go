package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/astralstream/mediaexport/internal/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"trace", LevelTrace},
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, ParseLevel(tt.input), "level %q", tt.input)
	}
}

func TestNewLoggerWithWriterJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "debug", Format: "json"}, &buf)

	logger.Debug("hello", "key", "value")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "hello", entry["msg"])
	assert.Equal(t, "value", entry["key"])
}

func TestSecretRedaction(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	cfg := config.DatabaseConfig{
		Driver: "postgres",
		DSN:    "host=db user=app password=hunter2",
	}
	logger.Info("db configured", "database", cfg)

	out := buf.String()
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "postgres")
}

func TestTraceLevelLabel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "trace", Format: "json"}, &buf)

	logger.Log(context.Background(), LevelTrace, "sample copied")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "TRACE", entry["level"])
}

func TestWithHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger = WithApp(logger, "mediaexport")
	logger = WithComponent(logger, "exporter")
	logger = WithError(logger, errors.New("boom"))
	logger.Info("attached")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "mediaexport", entry["app"])
	assert.Equal(t, "exporter", entry["component"])
	assert.Equal(t, "boom", entry["error"])
}

func TestLoggerContext(t *testing.T) {
	logger := slog.Default().With("marker", "ctx")
	ctx := ContextWithLogger(context.Background(), logger)
	assert.Equal(t, logger, LoggerFromContext(ctx))

	// Missing logger falls back to default.
	assert.NotNil(t, LoggerFromContext(context.Background()))
}

func TestTimedOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithWriter(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	var err error
	done := TimedOperation(context.Background(), logger, "export", &err)
	err = errors.New("failed hard")
	done()

	assert.Contains(t, buf.String(), "operation started")
	assert.Contains(t, buf.String(), "operation failed")
	assert.Contains(t, buf.String(), "failed hard")
}
