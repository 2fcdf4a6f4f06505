// Package source abstracts the byte-level inputs and outputs of the
// serialization engine. A Source is any readable, seekable, sized blob:
// a local file (memory-mapped), an in-memory buffer, or an object in
// S3-compatible storage.
package source

import (
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations return an error satisfying
// `errors.Is(err, ErrNotFound)`; the default maps to os.ErrNotExist.
var ErrNotFound = os.ErrNotExist

// Source is a read-only handle to a tensor file.
type Source interface {
	io.ReaderAt
	io.Closer
	// Size returns the total size in bytes.
	Size() int64
}

// Mappable is an optional interface for Sources whose whole content is
// addressable as one byte slice (zero-copy when supported).
type Mappable interface {
	// Bytes returns the underlying byte slice.
	// The slice is valid until the Source is closed.
	Bytes() ([]byte, error)
}
