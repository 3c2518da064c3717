package flight

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNewStoreDrivers(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name  string
		store Store
		want  Driver
	}{
		{"default", NewStore(ctx, StoreConfig{}), DriverMemory},
		{"memory", NewMemoryStore(ctx), DriverMemory},
		{"null", NewNullStore(ctx), DriverNull},
		{"file", NewFileStore(ctx, t.TempDir()), DriverFile},
		{"redis", NewRedisStore(ctx, newStubRedis()), DriverRedis},
		{"nats", NewNATSStore(ctx, newStubNATS()), DriverNATS},
		{"dynamo", NewDynamoStore(ctx, WithDynamoClient(newStubDynamo())), DriverDynamo},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.store.Driver(); got != tc.want {
				t.Fatalf("expected driver %q, got %q", tc.want, got)
			}
			if _, isErr := tc.store.(*errorStore); isErr {
				t.Fatalf("unexpected error store for %s", tc.name)
			}
		})
	}
}

func TestNewStoreUnknownDriver(t *testing.T) {
	store := NewStoreWith(context.Background(), Driver("carrier-pigeon"))
	if store.Driver() != "carrier-pigeon" {
		t.Fatalf("expected driver identity preserved, got %q", store.Driver())
	}
	if err := store.Set(context.Background(), "k", nil, 0); err == nil {
		t.Fatalf("expected unknown driver error")
	}
}

func TestNewStoreBadEncryptionKey(t *testing.T) {
	store := NewMemoryStore(context.Background(), WithEncryptionKey([]byte("short")))
	if _, _, err := store.Get(context.Background(), "k"); !errors.Is(err, ErrEncryptionKey) {
		t.Fatalf("expected encryption key error, got %v", err)
	}
}

func TestRedisStoreWithoutClient(t *testing.T) {
	ctx := context.Background()
	store := NewStore(ctx, StoreConfig{Driver: DriverRedis})
	if _, _, err := store.Get(ctx, "k"); !errors.Is(err, errRedisUnavailable) {
		t.Fatalf("expected redis unavailable, got %v", err)
	}
	if err := store.Set(ctx, "k", nil, 0); !errors.Is(err, errRedisUnavailable) {
		t.Fatalf("expected redis unavailable, got %v", err)
	}
}

func TestStoreConfigDefaults(t *testing.T) {
	cfg := StoreConfig{}.withDefaults()
	if cfg.Driver != DriverMemory {
		t.Fatalf("expected memory default, got %q", cfg.Driver)
	}
	if cfg.DefaultTTL != defaultStoreTTL || cfg.MemoryCleanupInterval != defaultMemoryCleanupInterval {
		t.Fatalf("unexpected ttl defaults: %+v", cfg)
	}
	if cfg.Prefix != defaultStorePrefix || cfg.Compression != CompressionNone {
		t.Fatalf("unexpected prefix or compression: %q %q", cfg.Prefix, cfg.Compression)
	}
	if cfg.FileDir != defaultFileDir() || cfg.SQLTable != defaultSQLTable {
		t.Fatalf("unexpected file or sql defaults: %q %q", cfg.FileDir, cfg.SQLTable)
	}
	if cfg.DynamoTable != defaultDynamoTable || cfg.DynamoRegion != defaultDynamoRegion {
		t.Fatalf("unexpected dynamo defaults: %q %q", cfg.DynamoTable, cfg.DynamoRegion)
	}

	kept := StoreConfig{Driver: DriverNull}
	kept.DefaultTTL = time.Second
	kept.Prefix = "p"
	kept = kept.withDefaults()
	if kept.Driver != DriverNull || kept.DefaultTTL != time.Second || kept.Prefix != "p" {
		t.Fatalf("expected explicit values kept: %+v", kept)
	}
}

func TestStoreOptions(t *testing.T) {
	key := []byte("0123456789abcdef")
	cfg := StoreConfig{}
	for _, opt := range []StoreOption{
		WithDefaultTTL(time.Second),
		WithMemoryCleanupInterval(2 * time.Second),
		WithPrefix("svc"),
		WithCompression(CompressionGzip),
		WithMaxValueBytes(10),
		WithEncryptionKey(key),
		WithFileDir("/tmp/x"),
		WithSQL("sqlite", "file::memory:", "entries"),
		WithNATSBucketTTL(true),
		WithDynamoEndpoint("http://localhost:8000"),
		WithDynamoRegion("eu-west-1"),
		WithDynamoTable("t"),
	} {
		cfg = opt(cfg)
	}
	key[0] = 'X'

	if cfg.DefaultTTL != time.Second || cfg.MemoryCleanupInterval != 2*time.Second {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if cfg.Prefix != "svc" || cfg.Compression != CompressionGzip || cfg.MaxValueBytes != 10 {
		t.Fatalf("unexpected shaping options: %+v", cfg.BaseConfig)
	}
	if string(cfg.EncryptionKey) != "0123456789abcdef" {
		t.Fatalf("expected encryption key cloned, got %q", cfg.EncryptionKey)
	}
	if cfg.FileDir != "/tmp/x" || cfg.SQLDriverName != "sqlite" || cfg.SQLDSN != "file::memory:" || cfg.SQLTable != "entries" {
		t.Fatalf("unexpected file or sql options: %+v", cfg)
	}
	if !cfg.NATSBucketTTL {
		t.Fatalf("expected nats bucket ttl enabled")
	}
	if cfg.DynamoEndpoint != "http://localhost:8000" || cfg.DynamoRegion != "eu-west-1" || cfg.DynamoTable != "t" {
		t.Fatalf("unexpected dynamo options: %+v", cfg)
	}
}

func TestGroupOptions(t *testing.T) {
	obs := ObserverFunc(func(context.Context, string, string, bool, error, time.Duration) {})
	cfg := GroupConfig{}
	for _, opt := range []GroupOption{WithGroupTTL(-time.Second), WithGroupCapacity(3), WithGroupObserver(obs)} {
		cfg = opt(cfg)
	}
	cfg = cfg.withDefaults()
	if cfg.TTL != 0 || cfg.Capacity != 3 || cfg.Observer == nil {
		t.Fatalf("unexpected group config: %+v", cfg)
	}
}
