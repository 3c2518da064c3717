package flight

import (
	"context"
	"fmt"
)

// NewStore returns a concrete store for the requested driver, wrapped with the
// configured compression, size limit, and encryption. A driver that cannot be
// built yields a store that returns the construction error from every call.
// @group Constructors
//
// Example: select driver explicitly
//
//	ctx := context.Background()
//	store := flight.NewStore(ctx, flight.StoreConfig{
//		Driver: flight.DriverMemory,
//	})
//	fmt.Println(store.Driver()) // memory
func NewStore(ctx context.Context, cfg StoreConfig) Store {
	cfg = cfg.withDefaults()
	backend, err := newBackend(ctx, cfg)
	if err != nil {
		return &errorStore{driver: cfg.Driver, err: err}
	}
	sealed, err := newEncryptingStore(backend, cfg.EncryptionKey)
	if err != nil {
		return &errorStore{driver: cfg.Driver, err: err}
	}
	return newShapingStore(sealed, cfg.Compression, cfg.MaxValueBytes)
}

func newBackend(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch cfg.Driver {
	case DriverNull:
		return newNullStore(), nil
	case DriverMemory:
		return newMemoryStore(cfg.DefaultTTL, cfg.MemoryCleanupInterval), nil
	case DriverFile:
		return newFileStore(cfg.FileDir, cfg.DefaultTTL)
	case DriverRedis:
		return newRedisStore(cfg.RedisClient, cfg.DefaultTTL, cfg.Prefix), nil
	case DriverSQL:
		return newSQLStore(ctx, cfg)
	case DriverNATS:
		return newNATSStore(cfg.NATSKeyValue, cfg.DefaultTTL, cfg.Prefix, cfg.NATSBucketTTL), nil
	case DriverDynamo:
		return newDynamoStore(ctx, cfg)
	default:
		return nil, fmt.Errorf("flight: unknown driver %q", cfg.Driver)
	}
}

// NewStoreWith builds a store using a driver and a set of functional options.
// Required data (e.g., Redis client) must be provided via options when needed.
// @group Constructors
//
// Example: redis store (options)
//
//	ctx := context.Background()
//	redisClient := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
//	store := flight.NewStoreWith(ctx, flight.DriverRedis,
//		flight.WithRedisClient(redisClient),
//		flight.WithPrefix("app"),
//		flight.WithDefaultTTL(5*time.Minute),
//	)
//	fmt.Println(store.Driver()) // redis
func NewStoreWith(ctx context.Context, driver Driver, opts ...StoreOption) Store {
	cfg := StoreConfig{Driver: driver}
	for _, opt := range opts {
		cfg = opt(cfg)
	}
	return NewStore(ctx, cfg)
}

// NewMemoryStore is a convenience for an in-process store.
// @group Constructors
func NewMemoryStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverMemory, opts...)
}

// NewNullStore is a convenience for a store that remembers nothing.
// @group Constructors
func NewNullStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverNull, opts...)
}

// NewFileStore is a convenience for a filesystem-backed store.
// @group Constructors
//
// Example: file helper
//
//	ctx := context.Background()
//	store := flight.NewFileStore(ctx, "/tmp/my-flight")
//	fmt.Println(store.Driver()) // file
func NewFileStore(ctx context.Context, dir string, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverFile, append([]StoreOption{WithFileDir(dir)}, opts...)...)
}

// NewRedisStore is a convenience for a redis-backed store. Redis client is required.
// @group Constructors
func NewRedisStore(ctx context.Context, client RedisClient, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverRedis, append([]StoreOption{WithRedisClient(client)}, opts...)...)
}

// NewSQLStore is a convenience for a SQL-backed store.
// @group Constructors
//
// Example: sqlite helper
//
//	ctx := context.Background()
//	store := flight.NewSQLStore(ctx, "sqlite", "file:flight.db", "flight_entries")
//	fmt.Println(store.Driver()) // sql
func NewSQLStore(ctx context.Context, driverName, dsn, table string, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverSQL, append([]StoreOption{WithSQL(driverName, dsn, table)}, opts...)...)
}

// NewNATSStore is a convenience for a JetStream key-value backed store.
// @group Constructors
func NewNATSStore(ctx context.Context, kv NATSKeyValue, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverNATS, append([]StoreOption{WithNATSKeyValue(kv)}, opts...)...)
}

// NewDynamoStore is a convenience for a DynamoDB-backed store.
// @group Constructors
func NewDynamoStore(ctx context.Context, opts ...StoreOption) Store {
	return NewStoreWith(ctx, DriverDynamo, opts...)
}
