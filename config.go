package flight

import (
	"os"
	"path/filepath"
	"time"

	"github.com/goforj/flight/flightcore"
)

const (
	defaultStorePrefix           = "app"
	defaultStoreTTL              = 5 * time.Minute
	defaultMemoryCleanupInterval = 10 * time.Minute
	defaultSQLTable              = "flight_entries"
	defaultDynamoTable           = "flight_entries"
	defaultDynamoRegion          = "us-east-1"
)

func defaultFileDir() string {
	return filepath.Join(os.TempDir(), "flight-file")
}

// StoreConfig controls how a Store is constructed.
type StoreConfig struct {
	flightcore.BaseConfig

	Driver Driver

	// MemoryCleanupInterval controls in-process eviction sweeps.
	MemoryCleanupInterval time.Duration

	// RedisClient is required when DriverRedis is used.
	RedisClient RedisClient

	// FileDir controls where the file driver writes entries.
	FileDir string

	// SQLDriverName is one of "mysql", "pgx", "postgres" or "sqlite".
	SQLDriverName string
	SQLDSN        string
	SQLTable      string

	// NATSKeyValue is required when DriverNATS is used.
	NATSKeyValue NATSKeyValue
	// NATSBucketTTL stores raw values and leaves expiry to the bucket's MaxAge.
	NATSBucketTTL bool

	// DynamoClient is optional; one is built from region and endpoint when nil.
	DynamoClient   DynamoAPI
	DynamoEndpoint string
	DynamoRegion   string
	DynamoTable    string
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.Driver == "" {
		c.Driver = DriverMemory
	}
	if c.DefaultTTL <= 0 {
		c.DefaultTTL = defaultStoreTTL
	}
	if c.MemoryCleanupInterval <= 0 {
		c.MemoryCleanupInterval = defaultMemoryCleanupInterval
	}
	if c.Prefix == "" {
		c.Prefix = defaultStorePrefix
	}
	if c.Compression == "" {
		c.Compression = CompressionNone
	}
	if c.FileDir == "" {
		c.FileDir = defaultFileDir()
	}
	if c.SQLTable == "" {
		c.SQLTable = defaultSQLTable
	}
	if c.DynamoTable == "" {
		c.DynamoTable = defaultDynamoTable
	}
	if c.DynamoRegion == "" {
		c.DynamoRegion = defaultDynamoRegion
	}
	return c
}

// GroupConfig controls how a Group holds its cells.
type GroupConfig struct {
	// TTL drops a key's cell this long after it was installed. Zero keeps
	// cells until Forget or Flush.
	TTL time.Duration

	// Capacity bounds the number of keys; the least recently installed key is
	// evicted first. Zero is unbounded.
	Capacity uint64

	Observer Observer
}

func (c GroupConfig) withDefaults() GroupConfig {
	if c.TTL < 0 {
		c.TTL = 0
	}
	return c
}
