// Copyright 2026 Tensorizer Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package source provides byte sources for reading tensor files: local
// files via read-only memory mappings, in-memory buffers, and
// S3-compatible object storage via ranged GETs.
package source

import (
	"context"

	"github.com/minio/minio-go/v7"

	"github.com/mifeet/tensorizer/internal/source"
)

// Source is a random-access byte source with a known size.
type Source = source.Source

// Mappable is implemented by sources whose whole region is addressable
// without copying.
type Mappable = source.Mappable

// ErrNotFound reports a missing file or object.
var ErrNotFound = source.ErrNotFound

// OpenFile opens a local tensor file as a memory-mapped Source.
func OpenFile(path string) (Source, error) {
	return source.OpenFile(path)
}

// Bytes wraps a byte slice as a Source. The slice is not copied.
func Bytes(data []byte) Source {
	return source.Bytes(data)
}

// OpenObject opens an object in S3-compatible storage as a Source.
// Each read issues one ranged GET; the context governs all of them.
func OpenObject(ctx context.Context, client *minio.Client, bucket, key string) (Source, error) {
	return source.OpenObject(ctx, client, bucket, key)
}

// Upload publishes a finalized local tensor file to object storage.
func Upload(ctx context.Context, client *minio.Client, bucket, key, path string) error {
	return source.Upload(ctx, client, bucket, key, path)
}
