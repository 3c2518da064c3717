package flight

import (
	"bytes"
	"compress/gzip"
	"errors"
	"io"

	"github.com/goforj/flight/flightcore"
)

// CompressionCodec represents a value compression algorithm.
type CompressionCodec = flightcore.CompressionCodec

const (
	CompressionNone = flightcore.CompressionNone
	CompressionGzip = flightcore.CompressionGzip
)

var (
	ErrValueTooLarge      = errors.New("flight: value exceeds max size")
	ErrUnsupportedCodec   = errors.New("flight: unsupported compression codec")
	ErrCorruptCompression = errors.New("flight: corrupt compressed payload")
)

// compressMagic and a one-byte codec tag prefix every compressed payload.
// Values stored without the header read back unchanged.
var compressMagic = []byte("CMP1")

const codecTagGzip = 'g'

type compressor struct {
	tag      byte
	compress func(dst *bytes.Buffer, value []byte) error
	expand   func(payload []byte) ([]byte, error)
}

var compressors = map[CompressionCodec]compressor{
	CompressionGzip: {tag: codecTagGzip, compress: gzipCompress, expand: gzipExpand},
}

func compressorForTag(tag byte) (compressor, bool) {
	for _, c := range compressors {
		if c.tag == tag {
			return c, true
		}
	}
	return compressor{}, false
}

// encodeValue compresses value with codec and enforces max on the stored
// form. A value that compression would not shrink is stored as is, unless it
// already looks like a compressed payload.
func encodeValue(codec CompressionCodec, max int, value []byte) ([]byte, error) {
	out := value
	if codec != CompressionNone && codec != "" {
		c, ok := compressors[codec]
		if !ok {
			return nil, ErrUnsupportedCodec
		}
		var buf bytes.Buffer
		buf.Write(compressMagic)
		buf.WriteByte(c.tag)
		if err := c.compress(&buf, value); err != nil {
			return nil, err
		}
		if buf.Len() < len(value) || bytes.HasPrefix(value, compressMagic) {
			out = buf.Bytes()
		}
	}
	if max > 0 && len(out) > max {
		return nil, ErrValueTooLarge
	}
	return out, nil
}

func decodeValue(in []byte) ([]byte, error) {
	if len(in) < len(compressMagic)+1 || !bytes.HasPrefix(in, compressMagic) {
		return in, nil
	}
	c, ok := compressorForTag(in[len(compressMagic)])
	if !ok {
		return nil, ErrUnsupportedCodec
	}
	return c.expand(in[len(compressMagic)+1:])
}

func gzipCompress(dst *bytes.Buffer, value []byte) error {
	zw, err := gzip.NewWriterLevel(dst, gzip.BestSpeed)
	if err != nil {
		return err
	}
	if _, err := zw.Write(value); err != nil {
		return err
	}
	return zw.Close()
}

func gzipExpand(payload []byte) ([]byte, error) {
	zr, err := gzip.NewReader(bytes.NewReader(payload))
	if err != nil {
		return nil, ErrCorruptCompression
	}
	defer zr.Close()
	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, ErrCorruptCompression
	}
	return out, nil
}
