// Package flightfake provides a Loader over a counting in-memory store so
// tests can assert how often code under test reached the backend.
package flightfake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/goforj/flight"
)

// Op identifies a store operation for assertions.
type Op string

const (
	OpGet    Op = "get"
	OpSet    Op = "set"
	OpDelete Op = "delete"
	OpFlush  Op = "flush"
)

// Fake exposes a Loader over a deterministic in-memory store plus assertion
// helpers. A miss that many goroutines remember at once should show up as a
// single OpSet.
type Fake struct {
	loader *flight.Loader
	store  *countingStore
	counts map[Op]map[string]int
	mu     sync.Mutex
}

// New creates a Fake using an in-memory store.
func New() *Fake {
	store := &countingStore{inner: flight.NewMemoryStore(context.Background())}
	f := &Fake{
		loader: flight.NewLoader(store),
		store:  store,
		counts: make(map[Op]map[string]int),
	}
	store.onCount = f.record
	return f
}

// Loader returns the loader to inject into code under test.
func (f *Fake) Loader() *flight.Loader { return f.loader }

// SetLatency delays every store call by d, widening the window in which
// concurrent callers overlap.
func (f *Fake) SetLatency(d time.Duration) {
	f.store.mu.Lock()
	f.store.latency = d
	f.store.mu.Unlock()
}

// Reset clears recorded counts.
func (f *Fake) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts = make(map[Op]map[string]int)
}

// AssertCalled verifies key was touched by op the expected number of times.
func (f *Fake) AssertCalled(t testing.TB, op Op, key string, times int) {
	t.Helper()
	if got := f.Count(op, key); got != times {
		t.Fatalf("expected %s %q called %d times, got %d", op, key, times, got)
	}
}

// AssertNotCalled ensures key was never touched by op.
func (f *Fake) AssertNotCalled(t testing.TB, op Op, key string) {
	t.Helper()
	if got := f.Count(op, key); got != 0 {
		t.Fatalf("expected %s %q not called, got %d", op, key, got)
	}
}

// AssertTotal ensures the total call count for an op matches times.
func (f *Fake) AssertTotal(t testing.TB, op Op, times int) {
	t.Helper()
	if got := f.Total(op); got != times {
		t.Fatalf("expected %s total=%d, got %d", op, times, got)
	}
}

// Count returns calls for op+key.
func (f *Fake) Count(op Op, key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[op][key]
}

// Total returns total calls for an op across keys.
func (f *Fake) Total(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	var sum int
	for _, v := range f.counts[op] {
		sum += v
	}
	return sum
}

func (f *Fake) record(op Op, key string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.counts[op] == nil {
		f.counts[op] = make(map[string]int)
	}
	f.counts[op][key]++
}

// countingStore wraps a Store to record calls.
type countingStore struct {
	inner   flight.Store
	onCount func(Op, string)

	mu      sync.Mutex
	latency time.Duration
}

func (s *countingStore) Driver() flight.Driver { return s.inner.Driver() }

func (s *countingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.bump(OpGet, key)
	return s.inner.Get(ctx, key)
}

func (s *countingStore) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	s.bump(OpSet, key)
	return s.inner.Set(ctx, key, val, ttl)
}

func (s *countingStore) Delete(ctx context.Context, key string) error {
	s.bump(OpDelete, key)
	return s.inner.Delete(ctx, key)
}

func (s *countingStore) Flush(ctx context.Context) error {
	s.bump(OpFlush, "")
	return s.inner.Flush(ctx)
}

func (s *countingStore) bump(op Op, key string) {
	if s.onCount != nil {
		s.onCount(op, key)
	}
	s.mu.Lock()
	d := s.latency
	s.mu.Unlock()
	if d > 0 {
		time.Sleep(d)
	}
}
