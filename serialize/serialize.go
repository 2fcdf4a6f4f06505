// Copyright 2026 Tensorizer Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package serialize reads and writes tensor files.
//
// A file is written by streaming tensors through a Writer and read back
// through a Reader in one of three loading modes: eager (everything
// materialized at open), on-demand (loaded and cached at first access)
// and low-memory (a small ring of buffers recycled across accesses).
//
// Writing:
//
//	f, _ := os.Create("model.tzr")
//	w, err := serialize.NewWriter(f, serialize.WithCompression(serialize.Zstd))
//	err = w.WriteTensor("layer.weight", tensor.Float32, tensor.Shape{768, 768}, data)
//	err = w.Close()
//
// Reading:
//
//	r, err := serialize.Open("model.tzr", serialize.WithFilter(serialize.MatchPrefix("layer.")))
//	defer r.Close()
//	t, err := r.Get("layer.weight")
package serialize

import (
	"io"

	"github.com/mifeet/tensorizer/internal/compression"
	"github.com/mifeet/tensorizer/internal/serialization"
	"github.com/mifeet/tensorizer/internal/source"
)

// Compression selects the per-tensor payload codec.
type Compression = compression.Type

// Compression codecs.
const (
	NoCompression = compression.None
	Zstd          = compression.Zstd
	LZ4           = compression.LZ4
)

// Writer streams named tensors into a seekable sink.
type Writer = serialization.Writer

// Reader provides name-keyed access to the tensors of a finalized file.
type Reader = serialization.Reader

// Stats is a snapshot of a reader's countable signals.
type Stats = serialization.Stats

// Filter decides whether a tensor name joins a reader's active key set.
type Filter = serialization.Filter

// WriterOption configures a Writer.
type WriterOption = serialization.WriterOption

// ReaderOption configures a Reader.
type ReaderOption = serialization.ReaderOption

// Common errors.
var (
	ErrClosed           = serialization.ErrClosed
	ErrDuplicateTensor  = serialization.ErrDuplicateTensor
	ErrUnsupportedDType = serialization.ErrUnsupportedDType
	ErrTensorNotFound   = serialization.ErrTensorNotFound
	ErrFilterCallback   = serialization.ErrFilterCallback
	ErrStaleTensor      = serialization.ErrStaleTensor
)

// Writer options.
var (
	WithCompression  = serialization.WithCompression
	WithMetadata     = serialization.WithMetadata
	WithWriterLogger = serialization.WithWriterLogger
)

// Reader options.
var (
	WithDevice         = serialization.WithDevice
	WithOnDemand       = serialization.WithOnDemand
	WithLowMemory      = serialization.WithLowMemory
	WithFilter         = serialization.WithFilter
	WithStagingBuffers = serialization.WithStagingBuffers
	WithReaderLogger   = serialization.WithReaderLogger
)

// Filter helpers.
var (
	MatchPrefix = serialization.MatchPrefix
	MatchRegexp = serialization.MatchRegexp
	MatchAny    = serialization.MatchAny
)

// NewWriter writes the header placeholder and returns a writer ready
// for WriteTensor calls. The writer owns the sink until Close.
func NewWriter(sink io.WriteSeeker, opts ...WriterOption) (*Writer, error) {
	return serialization.NewWriter(sink, opts...)
}

// NewReader parses and validates the file behind src. In the default
// eager mode every tensor is materialized before NewReader returns.
func NewReader(src source.Source, opts ...ReaderOption) (*Reader, error) {
	return serialization.NewReader(src, opts...)
}

// Open reads the tensor file at path. The reader owns the underlying
// source and closes it with Close.
func Open(path string, opts ...ReaderOption) (*Reader, error) {
	return serialization.Open(path, opts...)
}
