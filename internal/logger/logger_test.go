package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func logEntry(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestNewLogger_NotNil(t *testing.T) {
	require.NotNil(t, NewLogger("test"))
}

func TestNewLoggerTo_RoleField(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "test-role")

	l.Info().Msg("hello")

	assert.Equal(t, "test-role", logEntry(t, &buf)["role"])
}

func TestNewLoggerTo_ContainsTimestamp(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "ts-role")

	l.Info().Msg("ts check")

	_, hasTime := logEntry(t, &buf)["time"]
	assert.True(t, hasTime, "expected 'time' field in log entry")
}

func TestNewLogger_CallerFieldName(t *testing.T) {
	NewLogger("caller-role") // sets zerolog.CallerFieldName as a side-effect
	assert.Equal(t, "func", zerolog.CallerFieldName)
}

func TestNewLogger_GlobalLevelIsDebug(t *testing.T) {
	NewLogger("level-role")
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestNop_NotNil(t *testing.T) {
	require.NotNil(t, Nop())
}

func TestNop_DiscardsOutput(t *testing.T) {
	var buf bytes.Buffer
	l := Nop()
	l.Logger = l.Output(&buf)

	l.Info().Msg("should be discarded")

	assert.Empty(t, buf.String())
}

func TestGetChildLogger_IsIndependent(t *testing.T) {
	parent := NewLogger("parent")
	child := parent.GetChildLogger()
	require.NotNil(t, child)
	assert.NotSame(t, parent, child)
}

func TestGetChildLogger_InheritsFields(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLoggerTo(&buf, "inherited-role")

	child := parent.GetChildLogger()
	child.Info().Msg("child message")

	assert.Equal(t, "inherited-role", logEntry(t, &buf)["role"])
}

func TestFromContext_NotNil(t *testing.T) {
	require.NotNil(t, FromContext(context.Background()))
}

func TestFromContext_RoundTripsThroughWithContext(t *testing.T) {
	var buf bytes.Buffer
	l := NewLoggerTo(&buf, "ctx-role")
	ctx := l.WithContext(context.Background())

	recovered := FromContext(ctx)
	require.NotNil(t, recovered)

	recovered.Info().Msg("from context")

	assert.Equal(t, "ctx-role", logEntry(t, &buf)["role"])
}
