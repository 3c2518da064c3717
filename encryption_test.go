package flight

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

func TestEncryptingStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryStore(time.Minute, time.Minute)
	store, err := newEncryptingStore(backend, testKey)
	if err != nil {
		t.Fatalf("new encrypting store failed: %v", err)
	}

	if err := store.Set(ctx, "k", []byte("secret"), time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	raw, _, _ := backend.Get(ctx, "k")
	if !bytes.HasPrefix(raw, encryptionMagic) || bytes.Contains(raw, []byte("secret")) {
		t.Fatalf("expected sealed bytes at rest, got %q", raw)
	}
	got, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || string(got) != "secret" {
		t.Fatalf("get failed: got=%q ok=%v err=%v", got, ok, err)
	}
}

func TestEncryptingStoreBindsKey(t *testing.T) {
	ctx := context.Background()
	backend := newMemoryStore(time.Minute, time.Minute)
	store, _ := newEncryptingStore(backend, testKey)

	_ = store.Set(ctx, "a", []byte("secret"), time.Minute)
	raw, _, _ := backend.Get(ctx, "a")
	_ = backend.Set(ctx, "b", raw, time.Minute)
	if _, _, err := store.Get(ctx, "b"); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected decrypt failure for moved value, got %v", err)
	}

	_ = backend.Set(ctx, "plain", []byte("not sealed"), time.Minute)
	if _, _, err := store.Get(ctx, "plain"); !errors.Is(err, ErrDecryptFailed) {
		t.Fatalf("expected decrypt failure for plain value, got %v", err)
	}
}

func TestEncryptingStoreKeyValidation(t *testing.T) {
	backend := newNullStore()
	if s, err := newEncryptingStore(backend, nil); err != nil || s != backend {
		t.Fatalf("expected passthrough without key: err=%v", err)
	}
	if _, err := newEncryptingStore(backend, []byte("short")); !errors.Is(err, ErrEncryptionKey) {
		t.Fatalf("expected key error, got %v", err)
	}
}

func TestNewStoreCompressesThenEncrypts(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(ctx, WithCompression(CompressionGzip), WithEncryptionKey(testKey))

	value := bytes.Repeat([]byte("z"), 512)
	if err := store.Set(ctx, "k", value, time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, ok, err := store.Get(ctx, "k")
	if err != nil || !ok || !bytes.Equal(got, value) {
		t.Fatalf("get failed: ok=%v err=%v", ok, err)
	}

	shaped, isShaped := store.(*shapingStore)
	if !isShaped {
		t.Fatalf("expected shaping layer outermost, got %T", store)
	}
	if _, isSealed := shaped.inner.(*encryptingStore); !isSealed {
		t.Fatalf("expected encryption beneath shaping, got %T", shaped.inner)
	}
}
