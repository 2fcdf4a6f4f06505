// Package compression implements per-tensor block compression for the
// data section. The codec tag is stored in each index entry; the raw
// length recorded there bounds every decode.
package compression

import (
	"errors"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type identifies the compression codec of a stored tensor payload.
// Values are part of the on-disk format.
type Type uint8

const (
	// None stores the payload verbatim.
	None Type = 0
	// Zstd uses ZSTD block compression (better ratio).
	Zstd Type = 1
	// LZ4 uses LZ4 block compression (fast).
	LZ4 Type = 2
)

// ErrSizeMismatch is returned when a decoded payload does not match the
// raw length recorded in the index.
var ErrSizeMismatch = errors.New("decompressed size mismatch")

// Valid reports whether t is a known codec tag.
func (t Type) Valid() bool {
	return t <= LZ4
}

// String returns the codec name used by the CLI and logs.
func (t Type) String() string {
	switch t {
	case None:
		return "none"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return "unknown"
	}
}

// Parse maps a codec name to its tag.
func Parse(name string) (Type, error) {
	switch name {
	case "none", "":
		return None, nil
	case "zstd":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	default:
		return None, fmt.Errorf("unknown compression codec %q", name)
	}
}

// Encoder/decoder pools amortize zstd context setup across tensors.
var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Compress encodes data with the given codec. A nil result means the data
// is incompressible and should be stored raw with the None tag; callers
// also fall back to raw storage when the result is not smaller than the
// input.
func Compress(t Type, data []byte) ([]byte, error) {
	if t == None || len(data) == 0 {
		return nil, nil
	}
	switch t {
	case Zstd:
		enc := getZstdEncoder()
		defer zstdEncoderPool.Put(enc)
		return enc.EncodeAll(data, nil), nil
	case LZ4:
		bound := lz4.CompressBlockBound(len(data))
		compressed := make([]byte, bound)
		n, err := lz4.CompressBlock(data, compressed, nil)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, nil // incompressible
		}
		return compressed[:n], nil
	default:
		return nil, fmt.Errorf("unknown compression codec tag %d", t)
	}
}

// DecompressInto decodes a stored payload into dst, whose length must
// equal the raw length recorded in the index. Callers recycle dst
// across decodes to avoid per-tensor allocation.
func DecompressInto(t Type, stored, dst []byte) error {
	switch t {
	case None:
		if len(stored) != len(dst) {
			return fmt.Errorf("%w: stored %d bytes, expected %d", ErrSizeMismatch, len(stored), len(dst))
		}
		copy(dst, stored)
		return nil
	case Zstd:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		result, err := dec.DecodeAll(stored, dst[:0])
		if err != nil {
			return err
		}
		if len(result) != len(dst) {
			return fmt.Errorf("%w: decoded %d bytes, expected %d", ErrSizeMismatch, len(result), len(dst))
		}
		return nil
	case LZ4:
		n, err := lz4.UncompressBlock(stored, dst)
		if err != nil {
			return err
		}
		if n != len(dst) {
			return fmt.Errorf("%w: decoded %d bytes, expected %d", ErrSizeMismatch, n, len(dst))
		}
		return nil
	default:
		return fmt.Errorf("unknown compression codec tag %d", t)
	}
}

// Decompress decodes a stored payload to exactly rawLen bytes.
func Decompress(t Type, stored []byte, rawLen int) ([]byte, error) {
	switch t {
	case None:
		if len(stored) != rawLen {
			return nil, fmt.Errorf("%w: stored %d bytes, expected %d", ErrSizeMismatch, len(stored), rawLen)
		}
		return stored, nil
	case Zstd:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)
		result, err := dec.DecodeAll(stored, make([]byte, 0, rawLen))
		if err != nil {
			return nil, err
		}
		if len(result) != rawLen {
			return nil, fmt.Errorf("%w: decoded %d bytes, expected %d", ErrSizeMismatch, len(result), rawLen)
		}
		return result, nil
	case LZ4:
		result := make([]byte, rawLen)
		n, err := lz4.UncompressBlock(stored, result)
		if err != nil {
			return nil, err
		}
		if n != rawLen {
			return nil, fmt.Errorf("%w: decoded %d bytes, expected %d", ErrSizeMismatch, n, rawLen)
		}
		return result, nil
	default:
		return nil, fmt.Errorf("unknown compression codec tag %d", t)
	}
}
