package flight

import (
	"context"
	"time"
)

// CoreAPI exposes basic loader metadata.
type CoreAPI interface {
	Driver() Driver
}

// ReadAPI exposes read-oriented operations.
type ReadAPI interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	GetString(ctx context.Context, key string) (string, bool, error)
}

// WriteAPI exposes write and invalidation operations.
type WriteAPI interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetString(ctx context.Context, key string, value string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Flush(ctx context.Context) error
}

// RememberAPI exposes the single-flight remember helpers.
type RememberAPI interface {
	Remember(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) ([]byte, error)) ([]byte, error)
	RememberString(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) (string, error)) (string, error)
	RememberMany(ctx context.Context, keys []string, ttl time.Duration, fn func(ctx context.Context, key string) ([]byte, error)) (map[string][]byte, error)
}

// LoaderAPI is the composed application-facing interface for Loader.
type LoaderAPI interface {
	CoreAPI
	ReadAPI
	WriteAPI
	RememberAPI
}

var _ LoaderAPI = (*Loader)(nil)
