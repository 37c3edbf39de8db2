package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, ParseLevel(in))
		})
	}
}

func TestLoggerSuppressesDebugAtInfo(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithOptions(Options{Level: "info", Writer: &buf})

	logger.Debug("hidden")
	logger.Debugf("hidden %d", 1)
	assert.Empty(t, buf.String())
	assert.False(t, logger.IsDebug())

	logger.Warnf("visible %d", 2)
	assert.Contains(t, buf.String(), "visible 2")
}

func TestLoggerJSONWithAttributes(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithOptions(Options{Level: "debug", Format: FormatJSON, Writer: &buf}).
		With("context_id", "abc")

	logger.Error(errors.New("flush failed"), "handle", "0x80000001")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "flush failed", record["msg"])
	assert.Equal(t, "abc", record["context_id"])
	assert.Equal(t, "0x80000001", record["handle"])
	assert.Equal(t, "ERROR", record["level"])
}

func TestMaybeError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerWithOptions(Options{Writer: &buf})

	logger.MaybeError(nil)
	assert.Empty(t, buf.String())

	logger.MaybeError(errors.New("boom"))
	assert.Contains(t, buf.String(), "boom")
}
