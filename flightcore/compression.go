package flightcore

// CompressionCodec names the algorithm applied to stored values.
type CompressionCodec string

const (
	CompressionNone CompressionCodec = "none"
	CompressionGzip CompressionCodec = "gzip"
)
