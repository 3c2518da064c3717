package flight

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// rememberManyLimit bounds the concurrent producers started by RememberMany.
const rememberManyLimit = 16

var errNilRemember = errors.New("flight: remember requires a callback")

// Loader puts single-flight remember semantics in front of a Store.
//
// Concurrent misses for the same key inside one process collapse onto one
// cell: one caller runs the callback and writes the result, every other caller
// waits for it. Once written, the store (with its TTL) is the memo and the
// cell is dropped.
type Loader struct {
	store      Store
	defaultTTL time.Duration
	observer   Observer
	flights    *Group[string, []byte]
}

// NewLoader creates a loader bound to a concrete store.
// @group Loader
//
// Example: loader from store
//
//	ctx := context.Background()
//	l := flight.NewLoader(flight.NewMemoryStore(ctx))
//	fmt.Println(l.Driver()) // memory
func NewLoader(store Store) *Loader {
	return NewLoaderWithTTL(store, defaultStoreTTL)
}

// NewLoaderWithTTL lets callers override the default TTL applied when ttl <= 0.
// @group Loader
//
// Example: loader with custom default TTL
//
//	ctx := context.Background()
//	l := flight.NewLoaderWithTTL(flight.NewMemoryStore(ctx), 2*time.Minute)
//	fmt.Println(l.Driver(), l != nil) // memory true
func NewLoaderWithTTL(store Store, defaultTTL time.Duration) *Loader {
	if defaultTTL <= 0 {
		defaultTTL = defaultStoreTTL
	}
	return &Loader{
		store:      store,
		defaultTTL: defaultTTL,
		flights:    NewGroup[string, []byte](),
	}
}

// WithObserver attaches an observer to receive operation events.
// @group Loader
func (l *Loader) WithObserver(o Observer) *Loader {
	l.observer = o
	return l
}

// Store returns the underlying store implementation.
// @group Loader
func (l *Loader) Store() Store {
	return l.store
}

// Driver reports the underlying store driver.
// @group Loader
func (l *Loader) Driver() Driver {
	return l.store.Driver()
}

// Get returns raw bytes for key when present.
// @group Loader
//
// Example: get bytes
//
//	ctx := context.Background()
//	l := flight.NewLoader(flight.NewMemoryStore(ctx))
//	_ = l.Set(ctx, "user:42", []byte("Ada"), 0)
//	value, ok, _ := l.Get(ctx, "user:42")
//	fmt.Println(ok, string(value)) // true Ada
func (l *Loader) Get(ctx context.Context, key string) ([]byte, bool, error) {
	start := time.Now()
	body, ok, err := l.store.Get(ctx, key)
	l.observe(ctx, "get", key, ok, err, start)
	return body, ok, err
}

// GetString returns a UTF-8 string value for key when present.
// @group Loader
func (l *Loader) GetString(ctx context.Context, key string) (string, bool, error) {
	body, ok, err := l.Get(ctx, key)
	if err != nil || !ok {
		return "", ok, err
	}
	return string(body), true, nil
}

// Set writes raw bytes to key.
// @group Loader
func (l *Loader) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := l.store.Set(ctx, key, value, l.resolveTTL(ttl))
	l.observe(ctx, "set", key, false, err, start)
	return err
}

// SetString writes a string value to key.
// @group Loader
func (l *Loader) SetString(ctx context.Context, key string, value string, ttl time.Duration) error {
	return l.Set(ctx, key, []byte(value), ttl)
}

// Delete removes a single key.
// @group Loader
func (l *Loader) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := l.store.Delete(ctx, key)
	l.observe(ctx, "delete", key, err == nil, err, start)
	return err
}

// Flush clears all keys for this store scope.
// @group Loader
func (l *Loader) Flush(ctx context.Context) error {
	start := time.Now()
	err := l.store.Flush(ctx)
	l.observe(ctx, "flush", "", err == nil, err, start)
	return err
}

// Remember returns key's value, or computes it with fn and stores it when
// missing. Concurrent misses for key run fn once; a failure is returned to
// every caller that waited on it and the next call tries again.
// @group Loader
//
// Example: remember bytes
//
//	ctx := context.Background()
//	l := flight.NewLoader(flight.NewMemoryStore(ctx))
//	data, err := l.Remember(ctx, "dashboard:summary", time.Minute, func(context.Context) ([]byte, error) {
//		return []byte("payload"), nil
//	})
//	fmt.Println(err == nil, string(data)) // true payload
func (l *Loader) Remember(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) ([]byte, error)) ([]byte, error) {
	start := time.Now()
	if fn == nil {
		l.observe(ctx, "remember", key, false, errNilRemember, start)
		return nil, errNilRemember
	}
	body, ok, err := l.store.Get(ctx, key)
	if err != nil {
		l.observe(ctx, "remember", key, false, err, start)
		return nil, err
	}
	if ok {
		l.observe(ctx, "remember", key, true, nil, start)
		return body, nil
	}

	cell := l.flights.GetOrCreate(key, func() Producer[[]byte] {
		return func(ctx context.Context) ([]byte, error) {
			// Another process, or a flight that just ended, may have filled it.
			if body, ok, err := l.store.Get(ctx, key); err != nil || ok {
				return body, err
			}
			body, err := fn(ctx)
			if err != nil {
				return nil, err
			}
			if err := l.store.Set(ctx, key, body, l.resolveTTL(ttl)); err != nil {
				return nil, err
			}
			return body, nil
		}
	})
	body, ran, err := cell.get(ctx)
	// A failed cell is already Empty and stays installed for the retry.
	if ran && err == nil {
		l.flights.forgetCell(key, cell)
	}
	l.observe(ctx, "remember", key, !ran && err == nil, err, start)
	if err != nil {
		return nil, err
	}
	return cloneBytes(body), nil
}

// RememberString is Remember for string values.
// @group Loader
//
// Example: remember string
//
//	ctx := context.Background()
//	l := flight.NewLoader(flight.NewMemoryStore(ctx))
//	val, err := l.RememberString(ctx, "settings:mode", time.Minute, func(context.Context) (string, error) {
//		return "on", nil
//	})
//	fmt.Println(err == nil, val) // true on
func (l *Loader) RememberString(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) (string, error)) (string, error) {
	if fn == nil {
		return "", errNilRemember
	}
	body, err := l.Remember(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		s, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return []byte(s), nil
	})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// RememberMany remembers every key concurrently, calling fn for the keys that
// miss. The first error cancels the rest.
// @group Loader
func (l *Loader) RememberMany(ctx context.Context, keys []string, ttl time.Duration, fn func(ctx context.Context, key string) ([]byte, error)) (map[string][]byte, error) {
	if fn == nil {
		return nil, errNilRemember
	}
	var (
		mu  sync.Mutex
		out = make(map[string][]byte, len(keys))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(rememberManyLimit)
	for _, key := range keys {
		g.Go(func() error {
			body, err := l.Remember(gctx, key, ttl, func(ctx context.Context) ([]byte, error) {
				return fn(ctx, key)
			})
			if err != nil {
				return err
			}
			mu.Lock()
			out[key] = body
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// ValueCodec defines how RememberValueWithCodec encodes values.
type ValueCodec[T any] struct {
	Encode func(T) ([]byte, error)
	Decode func([]byte) (T, error)
}

// JSONCodec encodes values with encoding/json.
func JSONCodec[T any]() ValueCodec[T] {
	return ValueCodec[T]{
		Encode: func(v T) ([]byte, error) { return json.Marshal(v) },
		Decode: func(b []byte) (T, error) {
			var out T
			err := json.Unmarshal(b, &out)
			return out, err
		},
	}
}

// GetJSON decodes a JSON value into T when key exists.
// @group Loader JSON
func GetJSON[T any](ctx context.Context, l *Loader, key string) (T, bool, error) {
	var zero T
	body, ok, err := l.Get(ctx, key)
	if err != nil || !ok {
		return zero, ok, err
	}
	out, err := JSONCodec[T]().Decode(body)
	if err != nil {
		return zero, false, err
	}
	return out, true, nil
}

// SetJSON encodes value as JSON and writes it to key.
// @group Loader JSON
func SetJSON[T any](ctx context.Context, l *Loader, key string, value T, ttl time.Duration) error {
	body, err := JSONCodec[T]().Encode(value)
	if err != nil {
		return err
	}
	return l.Set(ctx, key, body, ttl)
}

// RememberJSON is Remember for JSON-encoded values.
// @group Loader JSON
//
// Example: remember JSON
//
//	type Settings struct { Enabled bool `json:"enabled"` }
//	ctx := context.Background()
//	l := flight.NewLoader(flight.NewMemoryStore(ctx))
//	settings, err := flight.RememberJSON(ctx, l, "settings:alerts", time.Minute, func(context.Context) (Settings, error) {
//		return Settings{Enabled: true}, nil
//	})
//	fmt.Println(err == nil, settings.Enabled) // true true
func RememberJSON[T any](ctx context.Context, l *Loader, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	return RememberValueWithCodec(ctx, l, key, ttl, fn, JSONCodec[T]())
}

// RememberValue is the typed remember helper; values are JSON encoded.
// @group Loader JSON
func RememberValue[T any](ctx context.Context, l *Loader, key string, ttl time.Duration, fn func(context.Context) (T, error)) (T, error) {
	return RememberValueWithCodec(ctx, l, key, ttl, fn, JSONCodec[T]())
}

// RememberValueWithCodec is RememberValue with custom encoding.
// @group Loader JSON
func RememberValueWithCodec[T any](ctx context.Context, l *Loader, key string, ttl time.Duration, fn func(context.Context) (T, error), codec ValueCodec[T]) (T, error) {
	var zero T
	if fn == nil {
		return zero, errNilRemember
	}
	body, err := l.Remember(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		return codec.Encode(v)
	})
	if err != nil {
		return zero, err
	}
	return codec.Decode(body)
}

func (l *Loader) resolveTTL(ttl time.Duration) time.Duration {
	if ttl > 0 {
		return ttl
	}
	return l.defaultTTL
}

func (l *Loader) observe(ctx context.Context, op, key string, hit bool, err error, start time.Time) {
	if l.observer == nil {
		return
	}
	l.observer.OnFlightOp(ctx, op, key, hit, err, time.Since(start))
}
