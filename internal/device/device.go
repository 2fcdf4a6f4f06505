// Package device abstracts tensor memory placement behind a narrow
// allocate/copy capability so the serialization engine never depends on a
// concrete accelerator API.
package device

import "errors"

// Common errors.
var (
	ErrBufferReleased = errors.New("buffer has been released")
	ErrSizeMismatch   = errors.New("buffer size mismatch")
	ErrForeignBuffer  = errors.New("buffer belongs to a different device")
)

// Buffer is a device-resident allocation of fixed size.
type Buffer interface {
	// Size returns the allocation size in bytes.
	Size() int
	// Release frees the allocation. Using the buffer afterwards fails.
	Release()
}

// HostBuffer is an optional interface for buffers whose memory is directly
// addressable by the CPU.
type HostBuffer interface {
	Buffer
	// Bytes returns the underlying byte slice.
	// The slice is valid until the buffer is released.
	Bytes() []byte
}

// Device is the capability interface consumed by the serialization engine.
//
// Implementations:
//   - CPU: host memory (this package)
//   - WebGPU: GPU storage buffers (internal/device/webgpu)
type Device interface {
	// Name returns a human-readable device name.
	Name() string
	// Allocate creates a zero-initialized buffer of n bytes.
	Allocate(n int) (Buffer, error)
	// Copy uploads src into the start of dst. len(src) must not exceed
	// dst.Size(); a smaller src leaves the tail of dst untouched, which
	// lets one large buffer stage payloads of varying size.
	Copy(dst Buffer, src []byte) error
	// Read returns the contents of src in host memory.
	// For host devices this may alias the buffer's memory; callers that
	// need an independent copy must make one.
	Read(src Buffer) ([]byte, error)
}
