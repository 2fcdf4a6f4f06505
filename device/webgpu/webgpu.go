// Copyright 2026 Tensorizer Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides a GPU-backed device for loading tensors into
// WebGPU storage buffers.
//
// Example:
//
//	gpu, err := webgpu.New()
//	if err != nil {
//	    // no compatible adapter; fall back to device.CPU()
//	}
//	defer gpu.Release()
//
//	r, err := serialize.Open("model.tzr", serialize.WithDevice(gpu))
package webgpu

import "github.com/mifeet/tensorizer/internal/device/webgpu"

// Device is a WebGPU-backed device. Tensors loaded through it live in
// GPU storage buffers usable as compute shader bindings.
type Device = webgpu.Device

// New initializes a WebGPU instance, adapter and device.
// It fails when no compatible GPU adapter is available.
func New() (*Device, error) {
	return webgpu.New()
}
