package logging

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

func newTestLogger(t *testing.T) (*SlogLogger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	h := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewSlogLogger(slog.New(h)), &buf
}

func TestSlogLogger_Levels(t *testing.T) {
	log, buf := newTestLogger(t)
	ctx := context.Background()

	log.Debug(ctx, "dbg", "a", 1)
	log.Info(ctx, "inf", "b", 2)
	log.Warn(ctx, "wrn", "c", 3)
	log.Error(ctx, "err", "d", 4)

	out := buf.String()
	for _, want := range []string{
		"level=DEBUG", "msg=dbg", "a=1",
		"level=INFO", "msg=inf", "b=2",
		"level=WARN", "msg=wrn", "c=3",
		"level=ERROR", "msg=err", "d=4",
	} {
		assert.Contains(t, out, want)
	}
}

func TestSlogLogger_With(t *testing.T) {
	log, buf := newTestLogger(t)

	child := log.With("component", "pool")
	child.Info(context.Background(), "session acquired", "dialect", "sqlite")

	out := buf.String()
	assert.True(t, strings.Contains(out, "component=pool"), out)
	assert.True(t, strings.Contains(out, "dialect=sqlite"), out)
}

func TestNewJSONLogger_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := NewJSONLogger(&buf, slog.LevelInfo)

	log.Debug(context.Background(), "hidden")
	log.Info(context.Background(), "shown", "k", "v")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "shown", rec["msg"])
	assert.Equal(t, "v", rec["k"])
}

func TestNewNopLogger_DoesNotPanic(t *testing.T) {
	log := NewNopLogger()
	ctx := context.TODO()
	assert.NotPanics(t, func() {
		log.Info(ctx, "x")
		log.With("a", 1).Error(ctx, "y")
	})
}
