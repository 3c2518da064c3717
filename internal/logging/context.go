// Package logging carries a *slog.Logger through a context.
package logging

import (
	"context"
	"log/slog"
	"os"
)

type loggerContextKey struct{}

// FromContext returns the logger stored in ctx, or a JSON logger on stderr
// tagged as the fallback.
func FromContext(ctx context.Context) *slog.Logger {
	logger, ok := ctx.Value(loggerContextKey{}).(*slog.Logger)
	if !ok || logger == nil {
		return slog.New(slog.NewJSONHandler(os.Stderr, nil)).With(slog.String("logger", "fallback"))
	}
	return logger
}

// AddToContext returns a copy of ctx carrying logger.
func AddToContext(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, logger)
}

// AddMetaToContext attaches attrs to the context's logger.
func AddMetaToContext(ctx context.Context, attrs ...slog.Attr) context.Context {
	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}
	return AddToContext(ctx, FromContext(ctx).With(args...))
}
