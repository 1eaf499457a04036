package infra

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFanoutHandlerWritesToEveryHandler(t *testing.T) {
	var text, json bytes.Buffer
	handler := fanoutHandler{
		slog.NewTextHandler(&text, &slog.HandlerOptions{Level: slog.LevelInfo}),
		slog.NewJSONHandler(&json, &slog.HandlerOptions{Level: slog.LevelWarn}),
	}
	logger := NewLoggerClient(slog.New(handler).With(slog.String("service", "document-gateway")))

	logger.InfoWithContextf(context.Background(), "[Document] Stored %s", "alice/a.pdf")
	logger.ErrorWithContextf(context.Background(), errors.New("boom"), "[Document] Failed %s", "alice/b.pdf")

	assert.Contains(t, text.String(), "Stored alice/a.pdf")
	assert.Contains(t, text.String(), "service=document-gateway")
	assert.NotContains(t, json.String(), "Stored alice/a.pdf")
	assert.Contains(t, json.String(), "Failed alice/b.pdf")
	assert.Contains(t, json.String(), "boom")
}

func TestFanoutHandlerEnabled(t *testing.T) {
	handler := fanoutHandler{
		slog.NewTextHandler(&bytes.Buffer{}, &slog.HandlerOptions{Level: slog.LevelError}),
	}
	assert.False(t, handler.Enabled(context.Background(), slog.LevelInfo))
	assert.True(t, handler.Enabled(context.Background(), slog.LevelError))
}

func TestErrorWithContextfAcceptsNilError(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLoggerClient(slog.New(slog.NewTextHandler(&buf, nil)))

	logger.ErrorWithContextf(context.Background(), nil, "[Auth] user_id not found in context")
	assert.Contains(t, buf.String(), "user_id not found")
}
