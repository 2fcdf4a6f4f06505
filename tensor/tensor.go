// Copyright 2026 Tensorizer Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor provides the typed, shaped byte buffers the
// serialization engine reads and writes.
//
// A tensor pairs a data type tag and a shape with a device-resident
// buffer. The package carries no math; it exists so files can be
// written from and loaded into any device the engine supports.
//
// Example:
//
//	import (
//	    "github.com/mifeet/tensorizer/device"
//	    "github.com/mifeet/tensorizer/tensor"
//	)
//
//	t, err := tensor.FromBytes(tensor.Float32, tensor.Shape{2, 3}, data, device.CPU())
package tensor

import (
	"github.com/mifeet/tensorizer/internal/device"
	"github.com/mifeet/tensorizer/internal/tensor"
)

// Tensor is a typed, shaped, device-resident byte buffer.
type Tensor = tensor.Tensor

// Shape is an ordered sequence of non-negative dimension sizes.
// An empty shape denotes a scalar.
type Shape = tensor.Shape

// DataType tags a tensor's element type.
type DataType = tensor.DataType

// Named pairs a tensor with its file key for ordered bulk writes.
type Named = tensor.Named

// Supported data types.
const (
	Float32 = tensor.Float32
	Float64 = tensor.Float64
	Int32   = tensor.Int32
	Int64   = tensor.Int64
	Uint8   = tensor.Uint8
	Bool    = tensor.Bool
)

// New creates a zero-initialized tensor on the given device.
func New(dtype DataType, shape Shape, dev device.Device) (*Tensor, error) {
	return tensor.New(dtype, shape, dev)
}

// FromBytes creates a tensor on the given device and uploads data into
// it. len(data) must equal the byte size implied by dtype and shape.
func FromBytes(dtype DataType, shape Shape, data []byte, dev device.Device) (*Tensor, error) {
	return tensor.FromBytes(dtype, shape, data, dev)
}

// SortedNamed converts an unordered map into a deterministic write
// order, sorted by name.
func SortedNamed(m map[string]*Tensor) []Named {
	return tensor.SortedNamed(m)
}
