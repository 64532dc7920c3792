package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func jsonRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: LogLevelInfo, Format: LogFormatText, Output: &buf})

	logger.Info("plan generated", "days", 7)

	out := buf.String()
	assert.Contains(t, out, "plan generated")
	assert.Contains(t, out, "days=7")
}

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{
		Level:          LogLevelInfo,
		Format:         LogFormatJSON,
		Output:         &buf,
		ServiceName:    "nagi-api",
		ServiceVersion: "1.2.0",
	})

	logger.Info("plan generated", "days", float64(7))

	entry := jsonRecord(t, &buf)
	assert.Equal(t, "plan generated", entry["msg"])
	assert.Equal(t, float64(7), entry["days"])
	assert.Equal(t, "nagi-api", entry["service"])
	assert.Equal(t, "1.2.0", entry["version"])
}

func TestNewLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: LogLevelWarn, Format: LogFormatText, Output: &buf})

	logger.Debug("debug line")
	logger.Info("info line")
	logger.Warn("warn line")
	logger.Error("error line")

	out := buf.String()
	assert.NotContains(t, out, "debug line")
	assert.NotContains(t, out, "info line")
	assert.Contains(t, out, "warn line")
	assert.Contains(t, out, "error line")
}

func TestNewLogger_EmitsTracingIDsFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(LogConfig{Level: LogLevelInfo, Format: LogFormatJSON, Output: &buf})

	ctx := NewRequestContext(context.Background(), "corr-123")
	logger.InfoContext(ctx, "handled request")

	entry := jsonRecord(t, &buf)
	assert.Equal(t, "corr-123", entry[CorrelationIDKey])
	assert.NotEmpty(t, entry[RequestIDKey])
}

func TestDefaultLogConfig(t *testing.T) {
	cfg := DefaultLogConfig()
	assert.Equal(t, LogLevelInfo, cfg.Level)
	assert.Equal(t, LogFormatText, cfg.Format)
	assert.Equal(t, "nagi", cfg.ServiceName)
}

func TestContextHelpers(t *testing.T) {
	t.Run("correlation ID round-trips", func(t *testing.T) {
		ctx := WithCorrelationID(context.Background(), "abc")
		assert.Equal(t, "abc", CorrelationIDFromContext(ctx))
	})

	t.Run("empty correlation ID mints one", func(t *testing.T) {
		ctx := WithCorrelationID(context.Background(), "")
		assert.NotEmpty(t, CorrelationIDFromContext(ctx))
	})

	t.Run("absent values read as empty", func(t *testing.T) {
		assert.Empty(t, CorrelationIDFromContext(context.Background()))
		assert.Empty(t, RequestIDFromContext(context.Background()))
	})
}
