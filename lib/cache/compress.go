package cache

import (
	"errors"
	"fmt"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies how an entry body is compressed. The values are
// written into entries and must not change.
type Compression uint8

const (
	CompressionNone Compression = 0
	CompressionLZ4  Compression = 1
	CompressionZstd Compression = 2
)

func (c Compression) String() string {
	switch c {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("compression(%d)", uint8(c))
	}
}

// ParseCompression parses a compression name as used in configuration.
func ParseCompression(s string) (Compression, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("invalid compression %q. must be one of none, lz4, zstd", s)
	}
}

// lz4MaxRatio bounds how much an lz4 block expands. Every byte of a block
// yields at most 255 bytes of output.
const lz4MaxRatio = 255

// errIncompressible makes compress fall back to storing the stream as is.
var errIncompressible = errors.New("data is incompressible")

// zstdEncoder and zstdDecoder are safe for concurrent use and reused.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("cache: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(MaxStreamSize))
	if err != nil {
		panic("cache: zstd decoder initialization failed: " + err.Error())
	}
}

// compress returns the body for data and the compression actually applied.
// Data that does not shrink is stored uncompressed.
func compress(data []byte, c Compression) ([]byte, Compression, error) {
	var (
		body []byte
		err  error
	)
	switch c {
	case CompressionNone:
		return data, CompressionNone, nil
	case CompressionLZ4:
		body, err = compressLZ4(data)
	case CompressionZstd:
		body, err = compressZstd(data)
	default:
		return nil, 0, fmt.Errorf("unsupported compression: %d", c)
	}
	if errors.Is(err, errIncompressible) {
		return data, CompressionNone, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return body, c, nil
}

// decompress reverses compress. size must match the original length exactly.
// It comes from an unverified header, so it is checked against what the body
// can expand to before the output is allocated.
func decompress(body []byte, c Compression, size int) ([]byte, error) {
	switch c {
	case CompressionNone:
		if len(body) != size {
			return nil, fmt.Errorf("uncompressed body: size %d does not match expected %d", len(body), size)
		}
		return body, nil
	case CompressionLZ4:
		if size > len(body)*lz4MaxRatio {
			return nil, fmt.Errorf("lz4 decompress: %d bytes cannot expand to %d", len(body), size)
		}
		out := make([]byte, size)
		n, err := lz4.UncompressBlock(body, out)
		if err != nil {
			return nil, fmt.Errorf("lz4 decompress: %w", err)
		}
		if n != size {
			return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", n, size)
		}
		return out, nil
	case CompressionZstd:
		var fh zstd.Header
		if err := fh.Decode(body); err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if fh.HasFCS && fh.FrameContentSize != uint64(size) {
			return nil, fmt.Errorf("zstd decompress: frame holds %d bytes, expected %d", fh.FrameContentSize, size)
		}
		// the decoder sizes the output from the frame header
		out, err := zstdDecoder.DecodeAll(body, nil)
		if err != nil {
			return nil, fmt.Errorf("zstd decompress: %w", err)
		}
		if len(out) != size {
			return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(out), size)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported compression: %d", c)
	}
}

func compressLZ4(data []byte) ([]byte, error) {
	dst := make([]byte, lz4.CompressBlockBound(len(data)))
	n, err := lz4.CompressBlock(data, dst, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock returns 0 for incompressible input
	if n == 0 || n >= len(data) {
		return nil, errIncompressible
	}
	return dst[:n], nil
}

func compressZstd(data []byte) ([]byte, error) {
	out := zstdEncoder.EncodeAll(data, nil)
	if len(out) >= len(data) {
		return nil, errIncompressible
	}
	return out, nil
}
