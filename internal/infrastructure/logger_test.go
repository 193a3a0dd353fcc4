package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pitpipe/internal/config"
)

func TestInitializeLogger(t *testing.T) {
	ResetLoggerForTesting()
	defer ResetLoggerForTesting()

	logFile := filepath.Join(t.TempDir(), "logs", "test.log")
	cfg := config.LoggingConfig{
		Level:    "info",
		Output:   "file",
		FilePath: logFile,
	}

	logger, err := InitializeLogger(cfg)
	require.NoError(t, err)
	require.NotNil(t, logger)
	assert.Same(t, logger, slog.Default())

	// a second call keeps the first logger
	again, err := InitializeLogger(config.LoggingConfig{Level: "debug"})
	require.NoError(t, err)
	assert.Same(t, logger, again)

	logger.Info("test message", "key", "value")
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(content, &entry), "log output is not valid JSON")
	assert.Equal(t, "test message", entry["msg"])
	assert.Equal(t, "value", entry["key"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Contains(t, entry, "source")
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		level    string
		debugOut bool
		infoOut  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"warning", false, false},
		{"error", false, false},
		{"bogus", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := NewLogger(config.LoggingConfig{Level: tt.level, Output: "console"}, &buf)
			require.NoError(t, err)

			logger.Debug("debug line")
			assert.Equal(t, tt.debugOut, strings.Contains(buf.String(), "debug line"))
			logger.Info("info line")
			assert.Equal(t, tt.infoOut, strings.Contains(buf.String(), "info line"))
		})
	}
}

func TestLoggerBothOutputs(t *testing.T) {
	defer CloseLogFile()

	var buf bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "both.log")
	logger, err := NewLogger(config.LoggingConfig{Level: "info", Output: "both", FilePath: logFile}, &buf)
	require.NoError(t, err)

	logger.Warn("to both")
	require.NoError(t, CloseLogFile())

	content, err := os.ReadFile(logFile)
	require.NoError(t, err)
	assert.Contains(t, string(content), "to both")
	assert.Contains(t, buf.String(), "to both")
}

func TestTraceIDInjection(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(config.LoggingConfig{Level: "info"}, &buf)
	require.NoError(t, err)

	ctx := WithTraceID(context.Background(), "trace-123")
	logger.InfoContext(ctx, "with trace")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "trace-123", entry["trace_id"])

	buf.Reset()
	logger.With("component", "test").WithGroup("g").InfoContext(ctx, "grouped", "k", 1)
	assert.Contains(t, buf.String(), `"trace_id":"trace-123"`)
}

func TestEnsureTraceID(t *testing.T) {
	ctx := EnsureTraceID(context.Background())
	id := GetTraceID(ctx)
	assert.Len(t, id, 36)

	assert.Equal(t, id, GetTraceID(EnsureTraceID(ctx)), "existing IDs are kept")
	assert.Empty(t, GetTraceID(context.Background()))
	assert.NotEqual(t, GenerateTraceID(), GenerateTraceID())
}
