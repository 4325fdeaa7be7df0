package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  LogLevel
	}{
		{"DEBUG", DebugLevel},
		{"debug", DebugLevel},
		{"INFO", InfoLevel},
		{"WARN", WarnLevel},
		{"WARNING", WarnLevel},
		{"ERROR", ErrorLevel},
		{"nonsense", InfoLevel},
		{"", InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestZapLogger_StructuredOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: DebugLevel, Output: &buf})
	require.NoError(t, err)

	logger.Info("tier invoked", Field{"backend", "gpt4-primary"}, Field{"level", 0})

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "tier invoked", entry["msg"])
	assert.Equal(t, "gpt4-primary", entry["backend"])
	assert.Equal(t, "INFO", entry["level"])
}

func TestZapLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: WarnLevel, Output: &buf})
	require.NoError(t, err)

	logger.Debug("should not appear")
	logger.Info("should not appear either")
	assert.Zero(t, buf.Len())

	logger.Warn("slow attempt")
	assert.Contains(t, buf.String(), "slow attempt")
}

func TestZapLogger_WithContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewZapLogger(LogConfig{Level: InfoLevel, Output: &buf})
	require.NoError(t, err)

	ctx := context.WithValue(context.Background(), RequestIDKey, "req-123")
	ctx = context.WithValue(ctx, UseCaseKey, "clinical-summary")

	logger.WithContext(ctx).Info("handling request")

	out := buf.String()
	assert.Contains(t, out, "req-123")
	assert.Contains(t, out, "clinical-summary")
}

func TestGlobalLogger_Replace(t *testing.T) {
	original := GetGlobalLogger()
	defer SetGlobalLogger(original)

	nop := NewNopLogger()
	SetGlobalLogger(nop)
	assert.Equal(t, nop, GetGlobalLogger())
}
