// Package format defines and encodes the on-disk layout: a fixed header,
// a data section of aligned tensor payloads, and a trailing index written
// at finalize time. It carries no I/O policy; the writer and reader in
// internal/serialization decide when bytes move.
//
//	Layout:
//	  [0x00] Fixed header (64 bytes):
//	    [4 bytes: Magic "TZRI"]
//	    [4 bytes: Version (uint32 LE)]
//	    [4 bytes: Flags (uint32 LE)]
//	    [4 bytes: Entry count (uint32 LE)]
//	    [8 bytes: Index offset (uint64 LE)]
//	    [8 bytes: Index length (uint64 LE)]
//	    [32 bytes: SHA-256 of the index section]
//	  [0x40] Data section: raw tensor payloads, each 64-byte aligned,
//	         in write order
//	  Index section:
//	    [optional metadata block: uint32 LE length + JSON object]
//	    per entry: name (uint16 LE length prefix), dtype tag, codec tag,
//	    dim count, dims (uint64 LE each), data offset, stored length,
//	    raw length (uint64 LE each)
//
// The index trails the data so the writer can stream collections of
// unknown total size; the header (including the index location) is the
// only backward write, performed once at finalize.
package format

import (
	"github.com/mifeet/tensorizer/internal/compression"
	"github.com/mifeet/tensorizer/internal/tensor"
)

// Format constants.
const (
	MagicBytes     = "TZRI"
	FormatVersion  = 1
	HeaderSize     = 64 // fixed header size (0x40 bytes)
	Alignment      = 64 // tensor payloads are aligned to 64 bytes
	ChecksumOffset = 0x20
	ChecksumSize   = 32 // SHA-256
)

// Flags stored in the fixed header.
const (
	FlagHasMetadata uint32 = 1 << 0 // metadata block precedes the entries
)

// Validation limits for resource protection.
const (
	MaxIndexSize     = 100 * 1024 * 1024 // maximum index section size
	MaxTensorCount   = 100_000           // maximum number of tensors in a file
	MaxTensorNameLen = 4096              // maximum tensor name length
	MaxDims          = 32                // maximum shape rank
)

// Header is the decoded fixed header of a file.
type Header struct {
	Version       uint32
	Flags         uint32
	EntryCount    uint32
	IndexOffset   uint64
	IndexLength   uint64
	IndexChecksum [ChecksumSize]byte
}

// HasMetadata reports whether the index carries a metadata block.
func (h Header) HasMetadata() bool {
	return h.Flags&FlagHasMetadata != 0
}

// Entry describes one tensor in the index.
type Entry struct {
	Name         string
	DType        tensor.DataType
	Shape        tensor.Shape
	Codec        compression.Type
	DataOffset   uint64 // byte offset of the stored payload from file start
	StoredLength uint64 // bytes on disk (after compression)
	RawLength    uint64 // decoded payload size; dtype size × product(shape)
}

// AlignUp rounds offset up to the next payload alignment boundary.
func AlignUp(offset int64) int64 {
	return (offset + Alignment - 1) &^ (Alignment - 1)
}
