// Package logging configures the process logger and carries request-scoped
// loggers through context. Handlers never log PANs or PIN material; callers
// pass the masked forms from the domain package.
package logging

import (
	"context"
	"log/slog"
	"os"
)

type ctxKey struct{}

// Init installs the process-wide logger. Development gets human-readable
// text; everything else emits JSON for log shipping. Unknown level strings
// fall back to info.
func Init(service, level, appEnv string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var h slog.Handler
	if appEnv == "development" {
		h = slog.NewTextHandler(os.Stdout, opts)
	} else {
		h = slog.NewJSONHandler(os.Stdout, opts)
	}

	logger := slog.New(h).With("service", service)
	slog.SetDefault(logger)
	return logger
}

// FromContext returns the request-scoped logger, or the process default when
// the request has none.
func FromContext(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(ctxKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.Default()
}

func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// WithAttrs derives the context logger with extra attributes in one step.
// Middleware uses it to pin request and session IDs onto every log line a
// handler emits.
func WithAttrs(ctx context.Context, args ...any) context.Context {
	return WithLogger(ctx, FromContext(ctx).With(args...))
}
