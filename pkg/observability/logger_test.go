package observability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// logLine is the subset of slog's JSON output the tests inspect
type logLine struct {
	Level     string `json:"level"`
	Message   string `json:"msg"`
	RequestID string `json:"request_id"`
	UserID    string `json:"user_id"`
	Error     string `json:"error"`
}

func decodeLine(t *testing.T, buf *bytes.Buffer) (logLine, map[string]interface{}) {
	t.Helper()
	var line logLine
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &raw))
	return line, raw
}

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.Debug("debug message")
	assert.Zero(t, buf.Len(), "debug is below the configured level")

	logger.Info("info message")
	line, _ := decodeLine(t, &buf)
	assert.Equal(t, "INFO", line.Level)
	assert.Equal(t, "info message", line.Message)

	for _, log := range []func(string){logger.Warn, logger.Error} {
		buf.Reset()
		log("message")
		assert.NotZero(t, buf.Len())
	}
}

func TestLogger_Formatted(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(DebugLevel, &buf)

	logger.Debugf("loaded %d roles", 4)
	line, _ := decodeLine(t, &buf)
	assert.Equal(t, "DEBUG", line.Level)
	assert.Equal(t, "loaded 4 roles", line.Message)
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	logger.
		WithField("role", "admin").
		WithFields(map[string]interface{}{"role_level": 50, "system": true}).
		WithError(errors.New("boom")).
		Info("role loaded")

	line, raw := decodeLine(t, &buf)
	assert.Equal(t, "boom", line.Error)
	assert.Equal(t, "admin", raw["role"])
	assert.Equal(t, true, raw["system"])

	t.Run("nil error is ignored", func(t *testing.T) {
		assert.Same(t, logger, logger.WithError(nil))
	})

	t.Run("derived loggers do not mutate the parent", func(t *testing.T) {
		buf.Reset()
		logger.Info("plain")
		_, raw := decodeLine(t, &buf)
		_, ok := raw["role"]
		assert.False(t, ok)
	})
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", DebugLevel, false},
		{"INFO", InfoLevel, false},
		{"", InfoLevel, false},
		{" warning ", WarnLevel, false},
		{"error", ErrorLevel, false},
		{"verbose", InfoLevel, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLogLevel(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "WARN", WarnLevel.String())
	assert.True(t, strings.HasPrefix(LogLevel(9).String(), "LEVEL"))
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(InfoLevel, &buf)

	ctx := WithLogger(context.Background(), logger)
	ctx = WithRequestID(ctx, "req-123")
	ctx = WithUserID(ctx, "42")

	assert.Equal(t, "req-123", GetRequestID(ctx))
	assert.Equal(t, "42", GetUserID(ctx))

	FromContext(ctx).Info("handled")
	line, _ := decodeLine(t, &buf)
	assert.Equal(t, "req-123", line.RequestID)
	assert.Equal(t, "42", line.UserID)

	t.Run("empty context falls back to the default logger", func(t *testing.T) {
		assert.Same(t, DefaultLogger(), GetLogger(context.Background()))
		assert.Empty(t, GetRequestID(context.Background()))
	})
}

func TestSetDefaultLogger(t *testing.T) {
	previous := DefaultLogger()
	t.Cleanup(func() { SetDefaultLogger(previous) })

	var buf bytes.Buffer
	custom := NewLogger(WarnLevel, &buf)
	SetDefaultLogger(custom)
	SetDefaultLogger(nil)

	assert.Same(t, custom, DefaultLogger())
	assert.Equal(t, WarnLevel, DefaultLogger().Level())
}
