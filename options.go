package flight

import "time"

// StoreOption mutates StoreConfig when constructing a store.
type StoreOption func(StoreConfig) StoreConfig

// WithDefaultTTL overrides the fallback TTL used when ttl <= 0.
// @group Options
func WithDefaultTTL(ttl time.Duration) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.DefaultTTL = ttl
		return cfg
	}
}

// WithMemoryCleanupInterval overrides the sweep interval for the memory driver.
// @group Options
func WithMemoryCleanupInterval(interval time.Duration) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.MemoryCleanupInterval = interval
		return cfg
	}
}

// WithPrefix sets the key prefix for shared backends (redis, sql, nats, dynamodb).
// @group Options
func WithPrefix(prefix string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.Prefix = prefix
		return cfg
	}
}

// WithCompression compresses values before they reach the backend.
// @group Options
func WithCompression(codec CompressionCodec) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.Compression = codec
		return cfg
	}
}

// WithMaxValueBytes rejects values larger than n bytes after encoding.
// @group Options
func WithMaxValueBytes(n int) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.MaxValueBytes = n
		return cfg
	}
}

// WithEncryptionKey seals values with AES-GCM. The key must be 16, 24, or 32 bytes.
// @group Options
func WithEncryptionKey(key []byte) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.EncryptionKey = cloneBytes(key)
		return cfg
	}
}

// WithRedisClient sets the redis client; required when using DriverRedis.
// @group Options
func WithRedisClient(client RedisClient) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.RedisClient = client
		return cfg
	}
}

// WithFileDir sets the directory used by the file driver.
// @group Options
func WithFileDir(dir string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.FileDir = dir
		return cfg
	}
}

// WithSQL configures the sql driver. driverName is "mysql", "pgx", "postgres" or "sqlite".
// @group Options
func WithSQL(driverName, dsn, table string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.SQLDriverName = driverName
		cfg.SQLDSN = dsn
		cfg.SQLTable = table
		return cfg
	}
}

// WithNATSKeyValue sets the JetStream key-value bucket; required when using DriverNATS.
// @group Options
func WithNATSKeyValue(kv NATSKeyValue) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.NATSKeyValue = kv
		return cfg
	}
}

// WithNATSBucketTTL leaves expiry to the bucket instead of per-entry envelopes.
// @group Options
func WithNATSBucketTTL(enabled bool) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.NATSBucketTTL = enabled
		return cfg
	}
}

// WithDynamoClient injects a DynamoDB client.
// @group Options
func WithDynamoClient(client DynamoAPI) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.DynamoClient = client
		return cfg
	}
}

// WithDynamoEndpoint points the built-in client at a custom endpoint (e.g. DynamoDB Local).
// @group Options
func WithDynamoEndpoint(endpoint string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.DynamoEndpoint = endpoint
		return cfg
	}
}

// WithDynamoRegion sets the region for the built-in client.
// @group Options
func WithDynamoRegion(region string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.DynamoRegion = region
		return cfg
	}
}

// WithDynamoTable sets the table name; it is created on first use when missing.
// @group Options
func WithDynamoTable(table string) StoreOption {
	return func(cfg StoreConfig) StoreConfig {
		cfg.DynamoTable = table
		return cfg
	}
}

// GroupOption mutates GroupConfig when constructing a Group.
type GroupOption func(GroupConfig) GroupConfig

// WithGroupTTL drops each key's cell ttl after it was installed.
// @group Options
func WithGroupTTL(ttl time.Duration) GroupOption {
	return func(cfg GroupConfig) GroupConfig {
		cfg.TTL = ttl
		return cfg
	}
}

// WithGroupCapacity bounds the number of keys a group holds.
// @group Options
func WithGroupCapacity(n uint64) GroupOption {
	return func(cfg GroupConfig) GroupConfig {
		cfg.Capacity = n
		return cfg
	}
}

// WithGroupObserver reports each Do and each TTL or capacity eviction.
// @group Options
func WithGroupObserver(o Observer) GroupOption {
	return func(cfg GroupConfig) GroupConfig {
		cfg.Observer = o
		return cfg
	}
}
