package flight

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"
)

// recordingStore wraps a store and records the TTLs it is asked to write.
type recordingStore struct {
	Store
	mu     sync.Mutex
	gets   int
	ttls   []time.Duration
	getErr error
}

func (s *recordingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	s.gets++
	err := s.getErr
	s.mu.Unlock()
	if err != nil {
		return nil, false, err
	}
	return s.Store.Get(ctx, key)
}

func (s *recordingStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	s.ttls = append(s.ttls, ttl)
	s.mu.Unlock()
	return s.Store.Set(ctx, key, value, ttl)
}

func newTestLoader(t *testing.T) *Loader {
	t.Helper()
	return NewLoader(NewMemoryStore(context.Background()))
}

func TestLoaderGetSetDeleteFlush(t *testing.T) {
	ctx := context.Background()
	l := newTestLoader(t)

	if l.Driver() != DriverMemory {
		t.Fatalf("unexpected driver %q", l.Driver())
	}
	if err := l.SetString(ctx, "a", "1", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if v, ok, err := l.GetString(ctx, "a"); err != nil || !ok || v != "1" {
		t.Fatalf("get failed: v=%q ok=%v err=%v", v, ok, err)
	}
	if err := l.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, _ := l.Get(ctx, "a"); ok {
		t.Fatalf("expected miss after delete")
	}

	_ = l.SetString(ctx, "b", "2", 0)
	if err := l.Flush(ctx); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if _, ok, _ := l.Get(ctx, "b"); ok {
		t.Fatalf("expected miss after flush")
	}
}

func TestLoaderRememberHitAndMiss(t *testing.T) {
	ctx := context.Background()
	l := newTestLoader(t)

	calls := 0
	fn := func(context.Context) ([]byte, error) {
		calls++
		return []byte("payload"), nil
	}
	for i := 0; i < 3; i++ {
		body, err := l.Remember(ctx, "k", time.Minute, fn)
		if err != nil {
			t.Fatalf("remember failed: %v", err)
		}
		if string(body) != "payload" {
			t.Fatalf("unexpected body %q", body)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one computation, got %d", calls)
	}
	if l.flights.Len() != 0 {
		t.Fatalf("expected flight cell forgotten after remember, got %d", l.flights.Len())
	}
}

func TestLoaderRememberCollapsesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	l := newTestLoader(t)

	var calls atomic.Int32
	release := make(chan struct{})
	fn := func(context.Context) ([]byte, error) {
		calls.Add(1)
		<-release
		return []byte("shared"), nil
	}

	const callers = 32
	results := make([][]byte, callers)
	var eg errgroup.Group
	for i := 0; i < callers; i++ {
		eg.Go(func() error {
			body, err := l.Remember(ctx, "k", time.Minute, fn)
			results[i] = body
			return err
		})
	}
	time.Sleep(30 * time.Millisecond)
	close(release)
	if err := eg.Wait(); err != nil {
		t.Fatalf("remember failed: %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected one computation, got %d", calls.Load())
	}
	for i, body := range results {
		if string(body) != "shared" {
			t.Fatalf("caller %d got %q", i, body)
		}
	}
	// Each caller owns its copy.
	results[0][0] = 'X'
	if string(results[1]) != "shared" {
		t.Fatalf("callers share a backing array")
	}
}

func TestLoaderRememberErrorReplaysAndRetries(t *testing.T) {
	ctx := context.Background()
	l := newTestLoader(t)

	var calls atomic.Int32
	failing := func(context.Context) ([]byte, error) {
		calls.Add(1)
		return nil, errBoom
	}
	_, err := l.Remember(ctx, "k", time.Minute, failing)
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected boom, got %v", err)
	}
	var perr *ProducerError
	if !errors.As(err, &perr) {
		t.Fatalf("expected producer error, got %T", err)
	}
	if _, ok, _ := l.Get(ctx, "k"); ok {
		t.Fatalf("failed remember must not write")
	}

	body, err := l.Remember(ctx, "k", time.Minute, func(context.Context) ([]byte, error) {
		calls.Add(1)
		return []byte("ok"), nil
	})
	if err != nil || string(body) != "ok" {
		t.Fatalf("expected retry to succeed: body=%q err=%v", body, err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected two attempts, got %d", calls.Load())
	}
}

func TestLoaderRememberFailureKeepsCellForRetry(t *testing.T) {
	ctx := context.Background()
	l := newTestLoader(t)

	if _, err := l.Remember(ctx, "k", time.Minute, func(context.Context) ([]byte, error) {
		return nil, errBoom
	}); !errors.Is(err, errBoom) {
		t.Fatalf("expected boom, got %v", err)
	}
	failed := l.flights.GetOrCreate("k", nil)
	if failed.State() != StateEmpty {
		t.Fatalf("expected failed cell reset to empty, got %s", failed.State())
	}
	if l.flights.Len() != 1 {
		t.Fatalf("expected failed cell to stay installed, got %d cells", l.flights.Len())
	}

	if _, err := l.Remember(ctx, "k", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("ok"), nil
	}); err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if l.flights.Len() != 0 {
		t.Fatalf("expected cell forgotten after success, got %d", l.flights.Len())
	}
}

func TestLoaderRememberRetriesNeverOverlap(t *testing.T) {
	ctx := context.Background()
	l := newTestLoader(t)

	var running, peak, attempts atomic.Int32
	fn := func(context.Context) ([]byte, error) {
		n := running.Add(1)
		defer running.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		if attempts.Add(1) <= 3 {
			return nil, errBoom
		}
		return []byte("ok"), nil
	}

	var eg errgroup.Group
	for i := 0; i < 32; i++ {
		eg.Go(func() error {
			for {
				body, err := l.Remember(ctx, "k", time.Minute, fn)
				if errors.Is(err, errBoom) {
					continue
				}
				if err == nil && string(body) != "ok" {
					return fmt.Errorf("unexpected body %q", body)
				}
				return err
			}
		})
	}
	if err := eg.Wait(); err != nil {
		t.Fatalf("remember failed: %v", err)
	}
	if peak.Load() != 1 {
		t.Fatalf("expected at most one callback running for a key, saw %d", peak.Load())
	}
	if attempts.Load() != 4 {
		t.Fatalf("expected three failures then one success, got %d attempts", attempts.Load())
	}
}

func TestLoaderRememberStoreErrorSkipsCallback(t *testing.T) {
	storeErr := errors.New("backend down")
	rs := &recordingStore{Store: NewMemoryStore(context.Background()), getErr: storeErr}
	l := NewLoader(rs)

	called := false
	_, err := l.Remember(context.Background(), "k", time.Minute, func(context.Context) ([]byte, error) {
		called = true
		return nil, nil
	})
	if !errors.Is(err, storeErr) {
		t.Fatalf("expected store error, got %v", err)
	}
	if called {
		t.Fatalf("callback must not run when the store read fails")
	}
}

func TestLoaderRememberNilCallback(t *testing.T) {
	ctx := context.Background()
	l := newTestLoader(t)
	if _, err := l.Remember(ctx, "k", 0, nil); !errors.Is(err, errNilRemember) {
		t.Fatalf("expected nil callback error, got %v", err)
	}
	if _, err := l.RememberString(ctx, "k", 0, nil); !errors.Is(err, errNilRemember) {
		t.Fatalf("expected nil callback error, got %v", err)
	}
	if _, err := RememberJSON[int](ctx, l, "k", 0, nil); !errors.Is(err, errNilRemember) {
		t.Fatalf("expected nil callback error, got %v", err)
	}
	if _, err := l.RememberMany(ctx, []string{"k"}, 0, nil); !errors.Is(err, errNilRemember) {
		t.Fatalf("expected nil callback error, got %v", err)
	}
}

func TestLoaderResolvesDefaultTTL(t *testing.T) {
	rs := &recordingStore{Store: NewMemoryStore(context.Background())}
	l := NewLoaderWithTTL(rs, 2*time.Minute)
	ctx := context.Background()

	_ = l.Set(ctx, "a", []byte("1"), 0)
	_ = l.Set(ctx, "b", []byte("1"), time.Second)
	_, _ = l.Remember(ctx, "c", -1, func(context.Context) ([]byte, error) { return []byte("1"), nil })

	want := []time.Duration{2 * time.Minute, time.Second, 2 * time.Minute}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if len(rs.ttls) != len(want) {
		t.Fatalf("unexpected ttl writes: %v", rs.ttls)
	}
	for i := range want {
		if rs.ttls[i] != want[i] {
			t.Fatalf("write %d: expected ttl %v, got %v", i, want[i], rs.ttls[i])
		}
	}

	if NewLoaderWithTTL(rs, 0).defaultTTL != defaultStoreTTL {
		t.Fatalf("expected zero default ttl to fall back")
	}
}

func TestLoaderRememberString(t *testing.T) {
	ctx := context.Background()
	l := newTestLoader(t)

	v, err := l.RememberString(ctx, "mode", time.Minute, func(context.Context) (string, error) {
		return "on", nil
	})
	if err != nil || v != "on" {
		t.Fatalf("remember string failed: v=%q err=%v", v, err)
	}
	v, err = l.RememberString(ctx, "mode", time.Minute, func(context.Context) (string, error) {
		return "off", nil
	})
	if err != nil || v != "on" {
		t.Fatalf("expected remembered value: v=%q err=%v", v, err)
	}
}

func TestLoaderRememberMany(t *testing.T) {
	ctx := context.Background()
	l := newTestLoader(t)
	_ = l.SetString(ctx, "k0", "cached", time.Minute)

	keys := make([]string, 40)
	for i := range keys {
		keys[i] = "k" + strconv.Itoa(i)
	}
	var calls atomic.Int32
	out, err := l.RememberMany(ctx, keys, time.Minute, func(_ context.Context, key string) ([]byte, error) {
		calls.Add(1)
		return []byte("v:" + key), nil
	})
	if err != nil {
		t.Fatalf("remember many failed: %v", err)
	}
	if len(out) != len(keys) {
		t.Fatalf("expected %d results, got %d", len(keys), len(out))
	}
	if string(out["k0"]) != "cached" {
		t.Fatalf("expected cached value for k0, got %q", out["k0"])
	}
	if string(out["k7"]) != "v:k7" {
		t.Fatalf("unexpected k7 value %q", out["k7"])
	}
	if calls.Load() != int32(len(keys)-1) {
		t.Fatalf("expected %d computations, got %d", len(keys)-1, calls.Load())
	}

	_, err = l.RememberMany(ctx, []string{"x", "y"}, time.Minute, func(_ context.Context, key string) ([]byte, error) {
		if key == "y" {
			return nil, errBoom
		}
		return []byte(key), nil
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected boom from remember many, got %v", err)
	}
}

type settings struct {
	Enabled bool   `json:"enabled"`
	Name    string `json:"name"`
}

func TestLoaderJSONHelpers(t *testing.T) {
	ctx := context.Background()
	l := newTestLoader(t)

	if err := SetJSON(ctx, l, "s", settings{Enabled: true, Name: "a"}, time.Minute); err != nil {
		t.Fatalf("set json failed: %v", err)
	}
	got, ok, err := GetJSON[settings](ctx, l, "s")
	if err != nil || !ok || !got.Enabled || got.Name != "a" {
		t.Fatalf("get json failed: v=%+v ok=%v err=%v", got, ok, err)
	}
	if _, ok, err := GetJSON[settings](ctx, l, "missing"); err != nil || ok {
		t.Fatalf("expected json miss: ok=%v err=%v", ok, err)
	}

	_ = l.SetString(ctx, "bad", "{", time.Minute)
	if _, ok, err := GetJSON[settings](ctx, l, "bad"); err == nil || ok {
		t.Fatalf("expected decode error: ok=%v err=%v", ok, err)
	}

	calls := 0
	for i := 0; i < 2; i++ {
		v, err := RememberJSON(ctx, l, "r", time.Minute, func(context.Context) (settings, error) {
			calls++
			return settings{Name: "remembered"}, nil
		})
		if err != nil || v.Name != "remembered" {
			t.Fatalf("remember json failed: v=%+v err=%v", v, err)
		}
	}
	if calls != 1 {
		t.Fatalf("expected one computation, got %d", calls)
	}

	n, err := RememberValue(ctx, l, "n", time.Minute, func(context.Context) (int, error) { return 42, nil })
	if err != nil || n != 42 {
		t.Fatalf("remember value failed: v=%d err=%v", n, err)
	}
}

func TestLoaderRememberValueWithCodec(t *testing.T) {
	ctx := context.Background()
	l := newTestLoader(t)

	codec := ValueCodec[int]{
		Encode: func(v int) ([]byte, error) { return []byte(strconv.Itoa(v)), nil },
		Decode: func(b []byte) (int, error) { return strconv.Atoi(string(b)) },
	}
	v, err := RememberValueWithCodec(ctx, l, "n", time.Minute, func(context.Context) (int, error) { return 7, nil }, codec)
	if err != nil || v != 7 {
		t.Fatalf("remember with codec failed: v=%d err=%v", v, err)
	}
	raw, ok, _ := l.Get(ctx, "n")
	if !ok || !bytes.Equal(raw, []byte("7")) {
		t.Fatalf("expected codec encoding in store, got %q", raw)
	}
}

func TestLoaderObserver(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	var events []string
	l := newTestLoader(t).WithObserver(ObserverFunc(func(_ context.Context, op, key string, hit bool, err error, _ time.Duration) {
		mu.Lock()
		events = append(events, fmt.Sprintf("%s:%s:%v:%v", op, key, hit, err != nil))
		mu.Unlock()
	}))

	fn := func(context.Context) ([]byte, error) { return []byte("v"), nil }
	_, _ = l.Remember(ctx, "k", time.Minute, fn)
	_, _ = l.Remember(ctx, "k", time.Minute, fn)
	_, _, _ = l.Get(ctx, "missing")
	_ = l.Delete(ctx, "k")
	_ = l.Flush(ctx)

	want := []string{
		"remember:k:false:false",
		"remember:k:true:false",
		"get:missing:false:false",
		"delete:k:true:false",
		"flush::true:false",
	}
	mu.Lock()
	defer mu.Unlock()
	if len(events) != len(want) {
		t.Fatalf("unexpected events: %v", events)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Fatalf("event %d: expected %q, got %q", i, want[i], events[i])
		}
	}
}
