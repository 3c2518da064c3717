package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestFromContextReturnsStoredLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	ctx := AddToContext(context.Background(), logger)

	if got := FromContext(ctx); got != logger {
		t.Fatalf("expected stored logger")
	}
}

func TestFromContextFallsBack(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatalf("expected fallback logger")
	}
}

func TestAddMetaToContext(t *testing.T) {
	var buf bytes.Buffer
	ctx := AddToContext(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))
	ctx = AddMetaToContext(ctx, slog.String("request_id", "r-1"))

	FromContext(ctx).Info("hello")
	if !strings.Contains(buf.String(), "request_id=r-1") {
		t.Fatalf("expected meta in log line, got %q", buf.String())
	}
}
