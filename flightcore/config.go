package flightcore

import "time"

// BaseConfig holds the backend-agnostic parts of store configuration.
type BaseConfig struct {
	DefaultTTL    time.Duration
	Prefix        string
	Compression   CompressionCodec
	MaxValueBytes int
	EncryptionKey []byte
}
