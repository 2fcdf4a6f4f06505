package device

import "fmt"

// cpu is the host-memory device. It is stateless and safe to share.
type cpu struct{}

// CPU returns the host-memory device.
func CPU() Device {
	return cpu{}
}

// Name returns "CPU".
func (cpu) Name() string {
	return "CPU"
}

// Allocate creates a zero-initialized host buffer of n bytes.
func (cpu) Allocate(n int) (Buffer, error) {
	if n < 0 {
		return nil, fmt.Errorf("allocate: negative size %d", n)
	}
	return &cpuBuffer{data: make([]byte, n)}, nil
}

// Copy copies src into the host buffer dst.
func (cpu) Copy(dst Buffer, src []byte) error {
	b, ok := dst.(*cpuBuffer)
	if !ok {
		return ErrForeignBuffer
	}
	if b.data == nil {
		return ErrBufferReleased
	}
	if len(src) > len(b.data) {
		return fmt.Errorf("%w: src %d bytes, dst %d bytes", ErrSizeMismatch, len(src), len(b.data))
	}
	copy(b.data, src)
	return nil
}

// Read returns the buffer's live byte slice (zero-copy).
func (cpu) Read(src Buffer) ([]byte, error) {
	b, ok := src.(*cpuBuffer)
	if !ok {
		return nil, ErrForeignBuffer
	}
	if b.data == nil {
		return nil, ErrBufferReleased
	}
	return b.data, nil
}

// cpuBuffer is a plain byte slice with a released state.
type cpuBuffer struct {
	data []byte
}

func (b *cpuBuffer) Size() int {
	return len(b.data)
}

func (b *cpuBuffer) Bytes() []byte {
	return b.data
}

func (b *cpuBuffer) Release() {
	b.data = nil
}
