// Copyright 2026 Tensorizer Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package device exposes the memory placement capability the
// serialization engine loads tensors through.
//
// Implementations:
//   - CPU (this package): host memory
//   - device/webgpu: GPU storage buffers via WebGPU
package device

import "github.com/mifeet/tensorizer/internal/device"

// Buffer is a device-resident allocation of fixed size.
type Buffer = device.Buffer

// HostBuffer is an optional interface for buffers whose memory is
// directly addressable by the CPU.
type HostBuffer = device.HostBuffer

// Device is the allocate/copy/read capability consumed by the engine.
type Device = device.Device

// Common errors.
var (
	ErrBufferReleased = device.ErrBufferReleased
	ErrSizeMismatch   = device.ErrSizeMismatch
	ErrForeignBuffer  = device.ErrForeignBuffer
)

// CPU returns the host-memory device.
func CPU() Device {
	return device.CPU()
}
