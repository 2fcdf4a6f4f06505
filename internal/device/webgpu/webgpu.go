// Package webgpu implements the device capability interface on top of
// WebGPU storage buffers. Uses go-webgpu (github.com/go-webgpu/webgpu)
// for zero-CGO WebGPU bindings.
package webgpu

import (
	"fmt"
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"

	"github.com/mifeet/tensorizer/internal/device"
)

// Device places tensor data in GPU storage buffers.
type Device struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	dev      *wgpu.Device
	queue    *wgpu.Queue
}

// New creates a WebGPU device.
// Returns an error if WebGPU is not available or initialization fails.
func New() (d *Device, err error) {
	// Recover from panic if the wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			d = nil
			err = fmt.Errorf("webgpu: native library not available: %v", r)
		}
	}()

	instance, instErr := wgpu.CreateInstance(nil)
	if instErr != nil {
		return nil, fmt.Errorf("webgpu: failed to create instance: %w", instErr)
	}

	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request adapter: %w", adapterErr)
	}

	dev, devErr := adapter.RequestDevice(nil)
	if devErr != nil {
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to request device: %w", devErr)
	}

	queue := dev.GetQueue()
	if queue == nil {
		dev.Release()
		adapter.Release()
		instance.Release()
		return nil, fmt.Errorf("webgpu: failed to get queue")
	}

	return &Device{
		instance: instance,
		adapter:  adapter,
		dev:      dev,
		queue:    queue,
	}, nil
}

// Name returns "WebGPU".
func (d *Device) Name() string {
	return "WebGPU"
}

// Allocate creates a zero-initialized storage buffer of n bytes.
// The underlying wgpu allocation is padded to a 4-byte multiple as
// required for buffer-to-buffer copies.
func (d *Device) Allocate(n int) (device.Buffer, error) {
	if n < 0 {
		return nil, fmt.Errorf("webgpu: allocate: negative size %d", n)
	}
	buf := d.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  padded(n),
	})
	if buf == nil {
		return nil, fmt.Errorf("webgpu: create buffer of %d bytes failed", n)
	}
	return &gpuBuffer{buf: buf, size: n}, nil
}

// Copy uploads src into dst via a mapped-at-creation staging buffer.
func (d *Device) Copy(dst device.Buffer, src []byte) error {
	b, ok := dst.(*gpuBuffer)
	if !ok {
		return device.ErrForeignBuffer
	}
	if b.buf == nil {
		return device.ErrBufferReleased
	}
	if len(src) > b.size {
		return fmt.Errorf("%w: src %d bytes, dst %d bytes", device.ErrSizeMismatch, len(src), b.size)
	}
	if len(src) == 0 {
		return nil
	}

	size := padded(len(src))
	staging := d.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            wgpu.BufferUsageCopySrc,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	if staging == nil {
		return fmt.Errorf("webgpu: create staging buffer of %d bytes failed", size)
	}
	defer staging.Release()

	mappedPtr := staging.GetMappedRange(0, size)
	mapped := unsafe.Slice((*byte)(mappedPtr), size)
	copy(mapped, src)
	staging.Unmap()

	encoder := d.dev.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(staging, 0, b.buf, 0, size)
	cmd := encoder.Finish(nil)
	d.queue.Submit(cmd)

	return nil
}

// Read copies a GPU buffer back to host memory through a MapRead
// staging buffer.
func (d *Device) Read(src device.Buffer) ([]byte, error) {
	b, ok := src.(*gpuBuffer)
	if !ok {
		return nil, device.ErrForeignBuffer
	}
	if b.buf == nil {
		return nil, device.ErrBufferReleased
	}
	if b.size == 0 {
		return []byte{}, nil
	}

	size := padded(b.size)
	staging := d.dev.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		Size:  size,
	})
	if staging == nil {
		return nil, fmt.Errorf("webgpu: create staging buffer of %d bytes failed", size)
	}
	defer staging.Release()

	encoder := d.dev.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(b.buf, 0, staging, 0, size)
	cmd := encoder.Finish(nil)
	d.queue.Submit(cmd)

	if err := staging.MapAsync(d.dev, wgpu.MapModeRead, 0, size); err != nil {
		return nil, fmt.Errorf("webgpu: map staging buffer: %w", err)
	}

	mappedPtr := staging.GetMappedRange(0, size)
	mapped := unsafe.Slice((*byte)(mappedPtr), size)
	result := make([]byte, b.size)
	copy(result, mapped)
	staging.Unmap()

	return result, nil
}

// Release frees the underlying WebGPU resources.
func (d *Device) Release() {
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.dev != nil {
		d.dev.Release()
		d.dev = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

// gpuBuffer tracks the logical size separately from the padded wgpu
// allocation.
type gpuBuffer struct {
	buf  *wgpu.Buffer
	size int
}

func (b *gpuBuffer) Size() int {
	return b.size
}

func (b *gpuBuffer) Release() {
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
}

// padded rounds n up to the 4-byte multiple wgpu copies require.
func padded(n int) uint64 {
	return (uint64(n) + 3) &^ 3
}
