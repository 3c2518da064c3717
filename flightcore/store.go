package flightcore

import (
	"context"
	"time"
)

// Store is the backing contract a Loader remembers values into.
type Store interface {
	Driver() Driver
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Flush(ctx context.Context) error
}
