package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
		ok   bool
	}{
		{"debug", slog.LevelDebug, true},
		{"INFO", slog.LevelInfo, true},
		{"", slog.LevelInfo, true},
		{"warning", slog.LevelWarn, true},
		{"error", slog.LevelError, true},
		{"verbose", slog.LevelInfo, false},
	}
	for _, tt := range tests {
		got, ok := ParseLevel(tt.in)
		assert.Equal(t, tt.want, got, tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
	}
}

func TestInitLoggerTo_WritesJSONWithRFC3339Time(t *testing.T) {
	prev := L
	t.Cleanup(func() {
		L = prev
		slog.SetDefault(prev)
	})

	var buf bytes.Buffer
	InitLoggerTo(&buf, "warn")
	L.Info("hidden")
	L.Warn("visible", "k", "v")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "visible", entry["msg"])
	assert.Equal(t, "v", entry["k"])
	ts, ok := entry["time"].(string)
	require.True(t, ok)
	assert.NotContains(t, ts, ".")
}

func TestFromContext(t *testing.T) {
	var buf bytes.Buffer
	scoped := slog.New(slog.NewJSONHandler(&buf, nil)).With("requestID", "abc")
	ctx := ToContext(context.Background(), scoped)

	assert.Same(t, scoped, FromContext(ctx))
	assert.Same(t, L, FromContext(context.Background()))

	WarnFromContext(ctx, "careful")
	assert.Contains(t, buf.String(), `"requestID":"abc"`)
}
