package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

type failingHandler struct {
	err   error
	calls int
}

func (h *failingHandler) Enabled(context.Context, slog.Level) bool { return true }
func (h *failingHandler) Handle(context.Context, slog.Record) error {
	h.calls++
	return h.err
}
func (h *failingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *failingHandler) WithGroup(string) slog.Handler      { return h }

func TestMultiHandler_FansOut(t *testing.T) {
	var info, warn bytes.Buffer
	multi := NewMultiHandler(
		slog.NewTextHandler(&info, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewTextHandler(&warn, &slog.HandlerOptions{Level: slog.LevelWarn}),
	)
	logger := slog.New(multi).With("component", "mirror")

	logger.Info("snapshot applied")
	logger.Warn("sync degraded")

	assert.Contains(t, info.String(), "snapshot applied")
	assert.Contains(t, info.String(), "sync degraded")
	assert.NotContains(t, warn.String(), "snapshot applied")
	assert.Contains(t, warn.String(), "component=mirror")
	assert.False(t, multi.Enabled(context.Background(), slog.LevelDebug))
}

func TestMultiHandler_KeepsGoingAfterFailure(t *testing.T) {
	var buf bytes.Buffer
	bad := &failingHandler{err: errors.New("disk full")}
	multi := NewMultiHandler(bad, slog.NewTextHandler(&buf, nil))

	r := slog.NewRecord(timeZero, slog.LevelInfo, "hello", 0)
	err := multi.Handle(context.Background(), r)

	assert.ErrorContains(t, err, "disk full")
	assert.Equal(t, 1, bad.calls)
	assert.Contains(t, buf.String(), "hello")
}

func TestMultiHandler_WithGroup(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewMultiHandler(slog.NewTextHandler(&buf, nil))).WithGroup("view")
	logger.Info("recomputed", "name", "gallery")
	assert.Contains(t, buf.String(), "view.name=gallery")
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	h := NewLevelFilter(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}), slog.LevelWarn)
	logger := slog.New(h).With("component", "gateway").WithGroup("req")

	logger.Info("ignored")
	logger.Error("kept", "path", "/api")

	assert.NotContains(t, buf.String(), "ignored")
	assert.Contains(t, buf.String(), "kept")
	assert.Contains(t, buf.String(), "component=gateway")
	assert.Contains(t, buf.String(), "req.path=/api")
	assert.False(t, h.Enabled(context.Background(), slog.LevelInfo))
	assert.NoError(t, h.Handle(context.Background(), slog.NewRecord(timeZero, slog.LevelDebug, "x", 0)))
}
