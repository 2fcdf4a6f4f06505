package serialization

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/mifeet/tensorizer/internal/compression"
	"github.com/mifeet/tensorizer/internal/format"
	"github.com/mifeet/tensorizer/internal/tensor"
)

// Writer streams named tensors into a seekable sink. The data section is
// append-only; the fixed header is written once over its zero
// placeholder at Close, after the trailing index. A sink write failure
// poisons the writer: the header stays zero and the file is not
// readable.
type Writer struct {
	sink     io.WriteSeeker
	logger   *slog.Logger
	codec    compression.Type
	metadata map[string]string

	entries []format.Entry
	names   map[string]struct{}
	offset  int64
	written int64
	closed  bool
}

// NewWriter writes the header placeholder and returns a writer ready for
// WriteTensor calls. The writer owns the sink until Close.
func NewWriter(sink io.WriteSeeker, opts ...WriterOption) (*Writer, error) {
	o := writerOptions{codec: compression.None}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.codec.Valid() {
		return nil, fmt.Errorf("unknown compression codec tag %d", o.codec)
	}
	if o.logger == nil {
		o.logger = noopLogger()
	}

	w := &Writer{
		sink:     sink,
		logger:   o.logger,
		codec:    o.codec,
		metadata: o.metadata,
		names:    make(map[string]struct{}),
	}
	if err := w.writeAll(make([]byte, format.HeaderSize)); err != nil {
		return nil, fmt.Errorf("write header placeholder: %w", err)
	}
	return w, nil
}

// WriteTensor appends one tensor payload with its index entry. The name
// must be unique within the file and data must be exactly the byte size
// implied by dtype and shape.
func (w *Writer) WriteTensor(name string, dtype tensor.DataType, shape tensor.Shape, data []byte) error {
	if w.closed {
		return ErrClosed
	}
	if err := format.ValidateName(name); err != nil {
		return err
	}
	if !dtype.Valid() {
		return fmt.Errorf("tensor %q: %w: dtype tag %d", name, ErrUnsupportedDType, dtype)
	}
	if err := shape.Validate(); err != nil {
		return fmt.Errorf("tensor %q: %w", name, err)
	}
	if len(shape) > format.MaxDims {
		return fmt.Errorf("tensor %q: shape has %d dimensions, max %d", name, len(shape), format.MaxDims)
	}
	if want := shape.ByteSize(dtype); len(data) != want {
		return fmt.Errorf("tensor %q: %w: got %d bytes, shape %v of %s requires %d",
			name, format.ErrLengthMismatch, len(data), shape, dtype, want)
	}
	if _, ok := w.names[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTensor, name)
	}
	if len(w.entries) >= format.MaxTensorCount {
		return fmt.Errorf("%w: max %d", format.ErrTooManyTensors, format.MaxTensorCount)
	}

	stored := data
	codec := compression.None
	if w.codec != compression.None {
		compressed, err := compression.Compress(w.codec, data)
		if err != nil {
			return fmt.Errorf("tensor %q: compress: %w", name, err)
		}
		if compressed != nil && len(compressed) < len(data) {
			stored = compressed
			codec = w.codec
		}
	}

	aligned := format.AlignUp(w.offset)
	if pad := aligned - w.offset; pad > 0 {
		if err := w.writeAll(make([]byte, pad)); err != nil {
			return fmt.Errorf("tensor %q: write padding: %w", name, err)
		}
	}
	if err := w.writeAll(stored); err != nil {
		return fmt.Errorf("tensor %q: write payload: %w", name, err)
	}

	w.entries = append(w.entries, format.Entry{
		Name:         name,
		DType:        dtype,
		Shape:        shape.Clone(),
		Codec:        codec,
		DataOffset:   uint64(aligned),
		StoredLength: uint64(len(stored)),
		RawLength:    uint64(len(data)),
	})
	w.names[name] = struct{}{}

	w.logger.Debug("tensor written",
		"name", name, "dtype", dtype.String(), "shape", shape,
		"raw_bytes", len(data), "stored_bytes", len(stored), "codec", codec.String())
	return nil
}

// WriteTensors appends tensors in slice order. It stops at the first
// failure; tensors written before the failure stay written.
func (w *Writer) WriteTensors(tensors []tensor.Named) error {
	if w.closed {
		return ErrClosed
	}
	for _, nt := range tensors {
		data, err := nt.Tensor.Data()
		if err != nil {
			return fmt.Errorf("tensor %q: %w", nt.Name, err)
		}
		if err := w.WriteTensor(nt.Name, nt.Tensor.DType(), nt.Tensor.Shape(), data); err != nil {
			return err
		}
	}
	return nil
}

// Close writes the index and the header, finalizing the file. The
// writer is unusable afterwards; a second Close returns ErrClosed.
func (w *Writer) Close() error {
	if w.closed {
		return ErrClosed
	}
	w.closed = true

	index, err := format.EncodeIndex(w.entries, w.metadata)
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}
	indexOffset := w.offset
	if err := w.writeAll(index); err != nil {
		return fmt.Errorf("write index: %w", err)
	}

	var flags uint32
	if len(w.metadata) > 0 {
		flags |= format.FlagHasMetadata
	}
	header := format.EncodeHeader(format.Header{
		Version:       format.FormatVersion,
		Flags:         flags,
		EntryCount:    uint32(len(w.entries)),
		IndexOffset:   uint64(indexOffset),
		IndexLength:   uint64(len(index)),
		IndexChecksum: format.ComputeChecksum(index),
	})
	if _, err := w.sink.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek to header: %w", err)
	}
	if _, err := w.sink.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	w.logger.Debug("file finalized",
		"tensors", len(w.entries), "index_bytes", len(index), "total_bytes", w.written)
	return nil
}

// BytesWritten returns the total bytes emitted so far, header
// placeholder and padding included.
func (w *Writer) BytesWritten() int64 {
	return w.written
}

// writeAll writes buf fully at the current position. Any failure
// poisons the writer so partial state cannot be finalized.
func (w *Writer) writeAll(buf []byte) error {
	n, err := w.sink.Write(buf)
	w.offset += int64(n)
	w.written += int64(n)
	if err != nil {
		w.closed = true
		return err
	}
	if n != len(buf) {
		w.closed = true
		return io.ErrShortWrite
	}
	return nil
}
