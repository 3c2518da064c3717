package flight

import (
	"context"
	"log/slog"
	"time"

	"github.com/goforj/flight/internal/logging"
)

// NewSlogObserver logs each operation: failures at warn, the rest at debug.
// A nil logger uses the logger carried by each operation's context.
// @group Observability
func NewSlogObserver(logger *slog.Logger) Observer {
	return ObserverFunc(func(ctx context.Context, op string, key string, hit bool, err error, dur time.Duration) {
		l := logger
		if l == nil {
			l = logging.FromContext(ctx)
		}
		attrs := []slog.Attr{
			slog.String("op", op),
			slog.String("key", key),
			slog.Bool("hit", hit),
			slog.Duration("duration", dur),
		}
		if err != nil {
			l.LogAttrs(ctx, slog.LevelWarn, "flight op failed", append(attrs, slog.String("error", err.Error()))...)
			return
		}
		l.LogAttrs(ctx, slog.LevelDebug, "flight op", attrs...)
	})
}

// WithLogger returns a copy of ctx whose operations are logged by logger when
// observed by NewSlogObserver(nil).
// @group Observability
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return logging.AddToContext(ctx, logger)
}

// WithLogAttrs returns a copy of ctx whose logger carries attrs, so events
// observed by NewSlogObserver(nil) under ctx are tagged with them.
// @group Observability
func WithLogAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	return logging.AddMetaToContext(ctx, attrs...)
}
