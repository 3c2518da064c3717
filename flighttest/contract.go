package flighttest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/goforj/flight/flightcore"
)

// Options configures shared store contract checks.
type Options struct {
	// CaseName is used to namespace keys. Defaults to t.Name().
	CaseName string
	// NullSemantics expects every read to miss.
	NullSemantics bool
	// SkipCloneCheck disables the "get returns a cloned value" assertion.
	SkipCloneCheck bool
	// TTL controls the expiry duration used in TTL tests.
	TTL time.Duration
	// TTLWait is how long the harness waits for expiry to occur.
	TTLWait time.Duration
	// SkipTTL disables the expiry assertion for backends that expire coarsely.
	SkipTTL bool
	// SkipFlush disables the flush assertion for drivers where it is expensive or unavailable.
	SkipFlush bool
}

// Store is the minimal contract required by RunStoreContract.
type Store = flightcore.Store

// RunStoreContract runs a backend-agnostic store contract suite.
func RunStoreContract(t *testing.T, store Store, opts Options) {
	t.Helper()

	caseName := opts.CaseName
	if caseName == "" {
		caseName = t.Name()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = 50 * time.Millisecond
	}
	wait := opts.TTLWait
	if wait <= 0 {
		wait = 120 * time.Millisecond
	}

	ctx := context.Background()
	key := func(s string) string {
		return sanitize(caseName) + ":" + s
	}

	// Set/Get round-trip.
	if err := store.Set(ctx, key("alpha"), []byte("value"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	body, ok, err := store.Get(ctx, key("alpha"))
	if err != nil {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}
	if opts.NullSemantics {
		if ok {
			t.Fatalf("expected miss for null semantics")
		}
		return
	}
	if !ok || string(body) != "value" {
		t.Fatalf("unexpected get result: ok=%v body=%q", ok, string(body))
	}
	if !opts.SkipCloneCheck {
		body[0] = 'X'
		body2, ok2, err2 := store.Get(ctx, key("alpha"))
		if err2 != nil || !ok2 || string(body2) != "value" {
			t.Fatalf("expected stored value unchanged, got ok=%v body=%q err=%v", ok2, string(body2), err2)
		}
	}

	// Overwrite.
	if err := store.Set(ctx, key("alpha"), []byte("value2"), time.Minute); err != nil {
		t.Fatalf("overwrite failed: %v", err)
	}
	if body, ok, err := store.Get(ctx, key("alpha")); err != nil || !ok || string(body) != "value2" {
		t.Fatalf("unexpected overwrite result: ok=%v body=%q err=%v", ok, string(body), err)
	}

	// Empty values are present, not missing.
	if err := store.Set(ctx, key("empty"), []byte{}, time.Minute); err != nil {
		t.Fatalf("set empty failed: %v", err)
	}
	if body, ok, err := store.Get(ctx, key("empty")); err != nil || !ok || len(body) != 0 {
		t.Fatalf("expected empty value present: ok=%v len=%d err=%v", ok, len(body), err)
	}

	// Missing key.
	if _, ok, err := store.Get(ctx, key("missing")); err != nil || ok {
		t.Fatalf("expected miss: ok=%v err=%v", ok, err)
	}

	// TTL expiry.
	if !opts.SkipTTL {
		if err := store.Set(ctx, key("ttl"), []byte("v"), ttl); err != nil {
			t.Fatalf("set ttl failed: %v", err)
		}
		if err := waitForMiss(ctx, store, key("ttl"), wait); err != nil {
			t.Fatalf("expected ttl expiry: %v", err)
		}
	}

	// Concurrent writers to distinct keys.
	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if err := store.Set(ctx, key(fmt.Sprintf("c%d", i)), []byte{byte('a' + i)}, time.Minute); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent set failed: %v", err)
	}
	for i := 0; i < 8; i++ {
		body, ok, err := store.Get(ctx, key(fmt.Sprintf("c%d", i)))
		if err != nil || !ok || len(body) != 1 || body[0] != byte('a'+i) {
			t.Fatalf("unexpected concurrent value %d: ok=%v body=%q err=%v", i, ok, string(body), err)
		}
	}

	// Delete.
	if err := store.Delete(ctx, key("alpha")); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, err := store.Get(ctx, key("alpha")); err != nil || ok {
		t.Fatalf("expected key deleted; ok=%v err=%v", ok, err)
	}
	if err := store.Delete(ctx, key("never-set")); err != nil {
		t.Fatalf("delete of missing key failed: %v", err)
	}

	// Flush.
	if !opts.SkipFlush {
		if err := store.Set(ctx, key("flush"), []byte("x"), time.Minute); err != nil {
			t.Fatalf("set flush failed: %v", err)
		}
		if err := store.Flush(ctx); err != nil {
			t.Fatalf("flush failed: %v", err)
		}
		if _, ok, err := store.Get(ctx, key("flush")); err != nil || ok {
			t.Fatalf("expected flush to clear key; ok=%v err=%v", ok, err)
		}
	}
}

func waitForMiss(ctx context.Context, store Store, key string, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for time.Now().Before(deadline) {
		_, ok, err := store.Get(ctx, key)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		time.Sleep(10 * time.Millisecond)
	}
	_, ok, err := store.Get(ctx, key)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("key %q still present after %s", key, wait)
	}
	return nil
}

func sanitize(s string) string {
	return strings.NewReplacer("/", "_", " ", "_").Replace(s)
}
