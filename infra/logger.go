package infra

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/tnqbao/gau-document-gateway/config"
	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// LoggerClient writes every record to stdout and to the OpenTelemetry log
// pipeline. Records carry the trace context found in ctx.
type LoggerClient struct {
	logger *slog.Logger
}

func InitLoggerClient(cfg *config.EnvConfig) *LoggerClient {
	var stdout slog.Handler
	if cfg.IsProduction() {
		stdout = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		stdout = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug})
	}

	otelHandler := otelslog.NewHandler(cfg.Grafana.ServiceName)

	logger := slog.New(fanoutHandler{stdout, otelHandler}).With(
		slog.String("service", cfg.Grafana.ServiceName),
		slog.String("env", cfg.Environment.Mode),
		slog.String("group", cfg.Environment.Group),
	)
	return &LoggerClient{logger: logger}
}

// NewLoggerClient wraps an existing slog logger.
func NewLoggerClient(logger *slog.Logger) *LoggerClient {
	return &LoggerClient{logger: logger}
}

func (l *LoggerClient) Slog() *slog.Logger {
	return l.logger
}

func (l *LoggerClient) DebugWithContextf(ctx context.Context, format string, args ...any) {
	l.logger.DebugContext(ctx, fmt.Sprintf(format, args...))
}

func (l *LoggerClient) InfoWithContextf(ctx context.Context, format string, args ...any) {
	l.logger.InfoContext(ctx, fmt.Sprintf(format, args...))
}

func (l *LoggerClient) WarningWithContextf(ctx context.Context, format string, args ...any) {
	l.logger.WarnContext(ctx, fmt.Sprintf(format, args...))
}

// ErrorWithContextf logs at error level. err may be nil.
func (l *LoggerClient) ErrorWithContextf(ctx context.Context, err error, format string, args ...any) {
	if err == nil {
		l.logger.ErrorContext(ctx, fmt.Sprintf(format, args...))
		return
	}
	l.logger.ErrorContext(ctx, fmt.Sprintf(format, args...), slog.String("error", err.Error()))
}

type fanoutHandler []slog.Handler

func (f fanoutHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanoutHandler) Handle(ctx context.Context, record slog.Record) error {
	var errs []error
	for _, h := range f {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f fanoutHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make(fanoutHandler, len(f))
	for i, h := range f {
		next[i] = h.WithAttrs(attrs)
	}
	return next
}

func (f fanoutHandler) WithGroup(name string) slog.Handler {
	next := make(fanoutHandler, len(f))
	for i, h := range f {
		next[i] = h.WithGroup(name)
	}
	return next
}
