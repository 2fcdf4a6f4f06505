package serialization

import (
	"log/slog"

	"github.com/mifeet/tensorizer/internal/compression"
	"github.com/mifeet/tensorizer/internal/device"
)

const defaultStagingBuffers = 1

type writerOptions struct {
	codec    compression.Type
	metadata map[string]string
	logger   *slog.Logger
}

// WriterOption configures a Writer.
type WriterOption func(*writerOptions)

// WithCompression selects the payload compression codec. Tensors that do
// not shrink under the codec are stored raw; the default is no
// compression.
func WithCompression(codec compression.Type) WriterOption {
	return func(o *writerOptions) {
		o.codec = codec
	}
}

// WithMetadata attaches a string map to the file, stored as a JSON block
// in the index section.
func WithMetadata(metadata map[string]string) WriterOption {
	return func(o *writerOptions) {
		o.metadata = metadata
	}
}

// WithWriterLogger sets a structured logger for the writer.
// If nil (the default), logging is discarded.
func WithWriterLogger(logger *slog.Logger) WriterOption {
	return func(o *writerOptions) {
		o.logger = logger
	}
}

type readerOptions struct {
	dev            device.Device
	onDemand       bool
	lowMemory      bool
	filter         Filter
	stagingBuffers int
	logger         *slog.Logger
}

// ReaderOption configures a Reader.
type ReaderOption func(*readerOptions)

// WithDevice sets the target device for loaded tensors.
// The default is the host-memory CPU device.
func WithDevice(dev device.Device) ReaderOption {
	return func(o *readerOptions) {
		if dev != nil {
			o.dev = dev
		}
	}
}

// WithOnDemand defers each tensor's read and transfer to its first Get,
// cached thereafter. Construction cost drops to index parsing.
func WithOnDemand() ReaderOption {
	return func(o *readerOptions) {
		o.onDemand = true
	}
}

// WithLowMemory recycles a small fixed ring of buffers across
// distinct-name accesses instead of caching tensors. Values are
// invalidated by the next Get for a different name. Takes precedence
// over WithOnDemand when both are set.
func WithLowMemory() ReaderOption {
	return func(o *readerOptions) {
		o.lowMemory = true
	}
}

// WithFilter restricts the active key set to names the predicate
// accepts. The predicate runs exactly once per index entry during
// construction, before any data byte is read.
func WithFilter(filter Filter) ReaderOption {
	return func(o *readerOptions) {
		o.filter = filter
	}
}

// WithStagingBuffers sets the low-memory ring size. The invalidation
// contract is independent of ring size; extra slots only allow
// read/transfer overlap. Values below 1 are ignored.
func WithStagingBuffers(n int) ReaderOption {
	return func(o *readerOptions) {
		if n >= 1 {
			o.stagingBuffers = n
		}
	}
}

// WithReaderLogger sets a structured logger for the reader.
// If nil (the default), logging is discarded.
func WithReaderLogger(logger *slog.Logger) ReaderOption {
	return func(o *readerOptions) {
		o.logger = logger
	}
}

func noopLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
