package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/veertuinc/glimpse/internal/config"
)

func TestAppendCtx_AddsAttrsToRecords(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")
	var buf bytes.Buffer
	logger := NewWithWriter(&buf)

	ctx := AppendCtx(context.Background(), slog.String("plugin", "core"))
	ctx = AppendCtx(ctx, slog.Int("cycle", 3))
	logger.InfoContext(ctx, "refreshed")

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	require.Equal(t, "refreshed", record["msg"])
	require.Equal(t, "core", record["plugin"])
	require.EqualValues(t, 3, record["cycle"])
}

func TestAppendCtx_SiblingsDoNotShareAttrs(t *testing.T) {
	parent := AppendCtx(context.Background(), slog.String("a", "1"))
	left := AppendCtx(parent, slog.String("left", "x"))
	right := AppendCtx(parent, slog.String("right", "y"))

	leftAttrs := left.Value(slogFields).([]slog.Attr)
	rightAttrs := right.Value(slogFields).([]slog.Attr)
	require.Len(t, leftAttrs, 2)
	require.Len(t, rightAttrs, 2)
	require.Equal(t, "left", leftAttrs[1].Key)
	require.Equal(t, "right", rightAttrs[1].Key)
}

func TestNewWithWriter_Levels(t *testing.T) {
	tests := []struct {
		name      string
		level     string
		wantDebug bool
		wantInfo  bool
	}{
		{name: "default is info", level: "", wantDebug: false, wantInfo: true},
		{name: "debug", level: "DEBUG", wantDebug: true, wantInfo: true},
		{name: "debug lower case", level: "debug", wantDebug: true, wantInfo: true},
		{name: "error", level: "ERROR", wantDebug: false, wantInfo: false},
		{name: "dev", level: "dev", wantDebug: true, wantInfo: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("LOG_LEVEL", tt.level)
			logger := NewWithWriter(&bytes.Buffer{})
			ctx := context.Background()
			require.Equal(t, tt.wantDebug, logger.Enabled(ctx, slog.LevelDebug))
			require.Equal(t, tt.wantInfo, logger.Enabled(ctx, slog.LevelInfo))
			require.Equal(t, tt.wantDebug, IsDebugEnabled())
		})
	}
}

func TestGetLoggerFromContext(t *testing.T) {
	logger := NewWithWriter(&bytes.Buffer{})
	ctx := context.WithValue(context.Background(), config.ContextKey("logger"), logger)
	got, err := GetLoggerFromContext(ctx)
	require.NoError(t, err)
	require.Same(t, logger, got)

	_, err = GetLoggerFromContext(context.Background())
	require.Error(t, err)
}
