package tensor

import (
	"fmt"
	"sort"
	"unsafe"

	"github.com/mifeet/tensorizer/internal/device"
)

// Tensor is a typed, shaped, device-resident byte buffer.
//
// A tensor owns its buffer unless it was created with Wrap, in which case
// buffer lifetime is managed by the caller (the reader's low-memory mode
// uses this for staging views).
type Tensor struct {
	dtype DataType
	shape Shape
	dev   device.Device
	buf   device.Buffer
}

// New creates a zero-initialized tensor on the given device.
func New(dtype DataType, shape Shape, dev device.Device) (*Tensor, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("unsupported dtype tag %d", dtype)
	}
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	buf, err := dev.Allocate(shape.ByteSize(dtype))
	if err != nil {
		return nil, fmt.Errorf("allocate tensor buffer: %w", err)
	}
	return &Tensor{dtype: dtype, shape: shape.Clone(), dev: dev, buf: buf}, nil
}

// FromBytes creates a tensor on the given device and uploads data into it.
// len(data) must equal the byte size implied by dtype and shape.
func FromBytes(dtype DataType, shape Shape, data []byte, dev device.Device) (*Tensor, error) {
	if want := shape.ByteSize(dtype); len(data) != want {
		return nil, fmt.Errorf("data is %d bytes, dtype %s with shape %v requires %d",
			len(data), dtype, shape, want)
	}
	t, err := New(dtype, shape, dev)
	if err != nil {
		return nil, err
	}
	if err := dev.Copy(t.buf, data); err != nil {
		t.buf.Release()
		return nil, fmt.Errorf("upload tensor data: %w", err)
	}
	return t, nil
}

// Wrap creates a tensor view over an existing device buffer without
// copying. The buffer must be at least the tensor's byte size; its
// lifetime remains the caller's responsibility.
func Wrap(dtype DataType, shape Shape, dev device.Device, buf device.Buffer) (*Tensor, error) {
	if !dtype.Valid() {
		return nil, fmt.Errorf("unsupported dtype tag %d", dtype)
	}
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("invalid shape: %w", err)
	}
	if buf.Size() < shape.ByteSize(dtype) {
		return nil, fmt.Errorf("buffer is %d bytes, dtype %s with shape %v requires %d",
			buf.Size(), dtype, shape, shape.ByteSize(dtype))
	}
	return &Tensor{dtype: dtype, shape: shape.Clone(), dev: dev, buf: buf}, nil
}

// DType returns the tensor's data type.
func (t *Tensor) DType() DataType {
	return t.dtype
}

// Shape returns the tensor's shape.
func (t *Tensor) Shape() Shape {
	return t.shape
}

// NumElements returns the total number of elements.
func (t *Tensor) NumElements() int {
	return t.shape.NumElements()
}

// ByteSize returns the payload size in bytes.
func (t *Tensor) ByteSize() int {
	return t.shape.ByteSize(t.dtype)
}

// Device returns the device holding the tensor's buffer.
func (t *Tensor) Device() device.Device {
	return t.dev
}

// Buffer returns the underlying device buffer.
func (t *Tensor) Buffer() device.Buffer {
	return t.buf
}

// Data returns the tensor's bytes in host memory.
// For host devices the slice may alias the buffer; for accelerator
// devices it is a fresh readback copy. The result is truncated to the
// tensor's byte size when the backing buffer is larger (staging views).
func (t *Tensor) Data() ([]byte, error) {
	data, err := t.dev.Read(t.buf)
	if err != nil {
		return nil, err
	}
	if n := t.ByteSize(); len(data) > n {
		data = data[:n]
	}
	return data, nil
}

// AsFloat32 interprets the data as []float32.
func (t *Tensor) AsFloat32() ([]float32, error) {
	if t.dtype != Float32 {
		return nil, fmt.Errorf("tensor dtype is %s, not float32", t.dtype)
	}
	data, err := t.Data()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return unsafe.Slice((*float32)(unsafe.Pointer(&data[0])), t.NumElements()), nil
}

// AsFloat64 interprets the data as []float64.
func (t *Tensor) AsFloat64() ([]float64, error) {
	if t.dtype != Float64 {
		return nil, fmt.Errorf("tensor dtype is %s, not float64", t.dtype)
	}
	data, err := t.Data()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return unsafe.Slice((*float64)(unsafe.Pointer(&data[0])), t.NumElements()), nil
}

// AsInt32 interprets the data as []int32.
func (t *Tensor) AsInt32() ([]int32, error) {
	if t.dtype != Int32 {
		return nil, fmt.Errorf("tensor dtype is %s, not int32", t.dtype)
	}
	data, err := t.Data()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return unsafe.Slice((*int32)(unsafe.Pointer(&data[0])), t.NumElements()), nil
}

// AsInt64 interprets the data as []int64.
func (t *Tensor) AsInt64() ([]int64, error) {
	if t.dtype != Int64 {
		return nil, fmt.Errorf("tensor dtype is %s, not int64", t.dtype)
	}
	data, err := t.Data()
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, nil
	}
	return unsafe.Slice((*int64)(unsafe.Pointer(&data[0])), t.NumElements()), nil
}

// AsUint8 interprets the data as []uint8.
func (t *Tensor) AsUint8() ([]uint8, error) {
	if t.dtype != Uint8 {
		return nil, fmt.Errorf("tensor dtype is %s, not uint8", t.dtype)
	}
	return t.Data()
}

// Release frees the underlying buffer.
func (t *Tensor) Release() {
	if t.buf != nil {
		t.buf.Release()
	}
}

// Named pairs a tensor with its file key for ordered bulk writes.
type Named struct {
	Name   string
	Tensor *Tensor
}

// SortedNamed converts an unordered map into a deterministic write order,
// sorted by name. Callers that care about a specific order build the
// []Named slice themselves.
func SortedNamed(m map[string]*Tensor) []Named {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	out := make([]Named, len(names))
	for i, name := range names {
		out[i] = Named{Name: name, Tensor: m[name]}
	}
	return out
}
