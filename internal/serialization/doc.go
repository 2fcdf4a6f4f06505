// Package serialization implements the streaming writer and the
// mode-driven reader for tensor files.
//
// The writer appends raw tensor payloads to a seekable sink as they
// arrive, keeps only index entries in memory, and finalizes the file on
// Close by writing the trailing index and the fixed header. Memory is
// bounded by entry count, not by total byte volume.
//
// The reader parses and validates the whole index before touching any
// data byte, applies an optional name filter once per entry, and then
// serves tensors in one of three modes:
//
//   - Eager (default): all active tensors are read and placed on the
//     target device at construction; Get returns cached handles.
//   - On-demand: construction stops after the index; each first Get
//     reads, decompresses, and transfers one tensor, cached thereafter.
//   - Low-memory: a small fixed ring of buffers is recycled across
//     distinct-name accesses. A value stays valid only until the next
//     Get for a different name; re-reading an invalidated name returns
//     ErrStaleTensor.
//
// Example:
//
//	f, _ := os.Create("model.tzr")
//	w, _ := serialization.NewWriter(f, serialization.WithCompression(compression.Zstd))
//	_ = w.WriteTensor("weight", tensor.Float32, tensor.Shape{2, 3}, data)
//	_ = w.Close()
//
//	src, _ := source.OpenFile("model.tzr")
//	r, _ := serialization.NewReader(src, serialization.WithOnDemand())
//	defer r.Close()
//	t, _ := r.Get("weight")
//
// A Writer or Reader instance is not safe for concurrent use from
// multiple goroutines without external synchronization.
package serialization
