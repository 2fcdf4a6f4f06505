package format

import (
	"encoding/binary"
	"fmt"

	gojson "github.com/goccy/go-json"

	"github.com/mifeet/tensorizer/internal/compression"
	"github.com/mifeet/tensorizer/internal/tensor"
)

// EncodeHeader serializes the fixed header.
func EncodeHeader(h Header) []byte {
	buf := make([]byte, HeaderSize)
	copy(buf[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(buf[4:8], h.Version)
	binary.LittleEndian.PutUint32(buf[8:12], h.Flags)
	binary.LittleEndian.PutUint32(buf[12:16], h.EntryCount)
	binary.LittleEndian.PutUint64(buf[16:24], h.IndexOffset)
	binary.LittleEndian.PutUint64(buf[24:32], h.IndexLength)
	copy(buf[ChecksumOffset:ChecksumOffset+ChecksumSize], h.IndexChecksum[:])
	return buf
}

// DecodeHeader parses and validates the fixed header.
func DecodeHeader(buf []byte) (Header, error) {
	var h Header
	if len(buf) < HeaderSize {
		return h, fmt.Errorf("%w: header is %d bytes, need %d", ErrTruncated, len(buf), HeaderSize)
	}
	if string(buf[0:4]) != MagicBytes {
		return h, ErrInvalidMagic
	}
	h.Version = binary.LittleEndian.Uint32(buf[4:8])
	if h.Version != FormatVersion {
		return h, fmt.Errorf("%w: got %d, expected %d", ErrUnsupportedVersion, h.Version, FormatVersion)
	}
	h.Flags = binary.LittleEndian.Uint32(buf[8:12])
	h.EntryCount = binary.LittleEndian.Uint32(buf[12:16])
	h.IndexOffset = binary.LittleEndian.Uint64(buf[16:24])
	h.IndexLength = binary.LittleEndian.Uint64(buf[24:32])
	copy(h.IndexChecksum[:], buf[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if h.EntryCount > MaxTensorCount {
		return h, fmt.Errorf("%w: got %d, max %d", ErrTooManyTensors, h.EntryCount, MaxTensorCount)
	}
	if h.IndexLength > MaxIndexSize {
		return h, fmt.Errorf("%w: %d bytes, max %d", ErrIndexTooLarge, h.IndexLength, MaxIndexSize)
	}
	if h.IndexOffset < HeaderSize {
		return h, fmt.Errorf("index offset %d overlaps header: %w", h.IndexOffset, ErrOutOfBounds)
	}
	return h, nil
}

// EncodeIndex serializes the trailing index section: the optional
// metadata block followed by all entries in write order.
func EncodeIndex(entries []Entry, metadata map[string]string) ([]byte, error) {
	var buf []byte

	if len(metadata) > 0 {
		metaJSON, err := gojson.Marshal(metadata)
		if err != nil {
			return nil, fmt.Errorf("marshal metadata: %w", err)
		}
		buf = binary.LittleEndian.AppendUint32(buf, uint32(len(metaJSON)))
		buf = append(buf, metaJSON...)
	}

	for i := range entries {
		e := &entries[i]
		if len(e.Name) > MaxTensorNameLen {
			return nil, fmt.Errorf("%w: %q is %d bytes, max %d", ErrTensorNameTooLong, e.Name, len(e.Name), MaxTensorNameLen)
		}
		if len(e.Shape) > MaxDims {
			return nil, fmt.Errorf("tensor %q has %d dimensions, max %d", e.Name, len(e.Shape), MaxDims)
		}
		buf = binary.LittleEndian.AppendUint16(buf, uint16(len(e.Name)))
		buf = append(buf, e.Name...)
		buf = append(buf, byte(e.DType), byte(e.Codec), byte(len(e.Shape)))
		for _, dim := range e.Shape {
			buf = binary.LittleEndian.AppendUint64(buf, uint64(dim))
		}
		buf = binary.LittleEndian.AppendUint64(buf, e.DataOffset)
		buf = binary.LittleEndian.AppendUint64(buf, e.StoredLength)
		buf = binary.LittleEndian.AppendUint64(buf, e.RawLength)
	}

	return buf, nil
}

// DecodeIndex parses the index section. The entry count and metadata
// flag come from the already-validated header. Every entry must parse
// completely; trailing garbage is rejected.
func DecodeIndex(buf []byte, h Header) ([]Entry, map[string]string, error) {
	var metadata map[string]string

	if h.HasMetadata() {
		if len(buf) < 4 {
			return nil, nil, fmt.Errorf("%w: index too short for metadata length", ErrTruncated)
		}
		metaLen := binary.LittleEndian.Uint32(buf[0:4])
		buf = buf[4:]
		if uint64(len(buf)) < uint64(metaLen) {
			return nil, nil, fmt.Errorf("%w: metadata block of %d bytes exceeds index", ErrTruncated, metaLen)
		}
		if err := gojson.Unmarshal(buf[:metaLen], &metadata); err != nil {
			return nil, nil, fmt.Errorf("parse metadata JSON: %w", err)
		}
		buf = buf[metaLen:]
	}

	entries := make([]Entry, 0, h.EntryCount)
	for i := uint32(0); i < h.EntryCount; i++ {
		e, rest, err := decodeEntry(buf)
		if err != nil {
			return nil, nil, fmt.Errorf("index entry %d: %w", i, err)
		}
		entries = append(entries, e)
		buf = rest
	}
	if len(buf) != 0 {
		return nil, nil, fmt.Errorf("%w: %d trailing bytes after last entry", ErrTruncated, len(buf))
	}
	return entries, metadata, nil
}

func decodeEntry(buf []byte) (Entry, []byte, error) {
	var e Entry

	if len(buf) < 2 {
		return e, nil, fmt.Errorf("%w: missing name length", ErrTruncated)
	}
	nameLen := int(binary.LittleEndian.Uint16(buf[0:2]))
	buf = buf[2:]
	if nameLen > MaxTensorNameLen {
		return e, nil, fmt.Errorf("%w: %d bytes, max %d", ErrTensorNameTooLong, nameLen, MaxTensorNameLen)
	}
	if len(buf) < nameLen+3 {
		return e, nil, fmt.Errorf("%w: entry shorter than name and tags", ErrTruncated)
	}
	e.Name = string(buf[:nameLen])
	e.DType = tensor.DataType(buf[nameLen])
	e.Codec = compression.Type(buf[nameLen+1])
	ndims := int(buf[nameLen+2])
	buf = buf[nameLen+3:]

	if ndims > MaxDims {
		return e, nil, fmt.Errorf("shape has %d dimensions, max %d", ndims, MaxDims)
	}
	need := 8*ndims + 24
	if len(buf) < need {
		return e, nil, fmt.Errorf("%w: entry body is %d bytes, need %d", ErrTruncated, len(buf), need)
	}
	e.Shape = make(tensor.Shape, ndims)
	for d := 0; d < ndims; d++ {
		dim := binary.LittleEndian.Uint64(buf[8*d:])
		if dim > uint64(int(^uint(0)>>1)) {
			return e, nil, fmt.Errorf("dimension %d overflows int: %d", d, dim)
		}
		e.Shape[d] = int(dim)
	}
	buf = buf[8*ndims:]
	e.DataOffset = binary.LittleEndian.Uint64(buf[0:8])
	e.StoredLength = binary.LittleEndian.Uint64(buf[8:16])
	e.RawLength = binary.LittleEndian.Uint64(buf[16:24])
	return e, buf[24:], nil
}
