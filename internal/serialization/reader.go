package serialization

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/mifeet/tensorizer/internal/compression"
	"github.com/mifeet/tensorizer/internal/device"
	"github.com/mifeet/tensorizer/internal/format"
	"github.com/mifeet/tensorizer/internal/source"
	"github.com/mifeet/tensorizer/internal/tensor"
)

type loadMode int

const (
	modeEager loadMode = iota
	modeOnDemand
	modeLowMemory
)

func (m loadMode) String() string {
	switch m {
	case modeEager:
		return "eager"
	case modeOnDemand:
		return "on-demand"
	case modeLowMemory:
		return "low-memory"
	default:
		return "unknown"
	}
}

// Reader provides name-keyed access to the tensors of a finalized file.
// The index is parsed, checksummed and validated in full before any data
// byte is read; entries rejected by the filter are invisible to every
// operation. The reader owns the source and all buffers it allocates
// until Close.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	src    source.Source
	dev    device.Device
	logger *slog.Logger
	mode   loadMode

	header   format.Header
	metadata map[string]string
	entries  []format.Entry
	byName   map[string]int
	keys     []string

	cache map[string]*tensor.Tensor

	pool          *stagingPool
	scratchStored []byte
	scratchRaw    []byte
	lastKey       string
	lastVal       *tensor.Tensor
	spent         map[string]struct{}

	stats  counters
	closed bool
}

// NewReader parses and validates the file behind src and, in the default
// eager mode, materializes every active tensor. Any construction failure
// returns no reader; src is not closed (the caller opened it, the caller
// owns it on failure). Use Open for a path-based variant that owns the
// whole lifecycle.
func NewReader(src source.Source, opts ...ReaderOption) (*Reader, error) {
	o := readerOptions{
		dev:            device.CPU(),
		stagingBuffers: defaultStagingBuffers,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = noopLogger()
	}
	mode := modeEager
	if o.onDemand {
		mode = modeOnDemand
	}
	if o.lowMemory {
		mode = modeLowMemory
	}

	r := &Reader{
		src:    src,
		dev:    o.dev,
		logger: o.logger,
		mode:   mode,
		byName: make(map[string]int),
		cache:  make(map[string]*tensor.Tensor),
		spent:  make(map[string]struct{}),
	}
	if err := r.parseIndex(o.filter); err != nil {
		return nil, err
	}

	if mode == modeLowMemory {
		maxRaw, maxStored := 0, 0
		for i := range r.entries {
			if n := int(r.entries[i].RawLength); n > maxRaw {
				maxRaw = n
			}
			if n := int(r.entries[i].StoredLength); n > maxStored {
				maxStored = n
			}
		}
		r.pool = newStagingPool(r.dev, o.stagingBuffers, maxRaw, &r.stats)
		r.scratchStored = make([]byte, maxStored)
		r.scratchRaw = make([]byte, maxRaw)
	}

	if mode == modeEager {
		if err := r.loadAll(); err != nil {
			r.releaseAll()
			return nil, err
		}
	}

	r.logger.Debug("reader open",
		"mode", mode.String(), "device", r.dev.Name(),
		"tensors", len(r.entries), "file_bytes", src.Size())
	return r, nil
}

// Open is a convenience over OpenFile + NewReader that owns the source:
// it is closed on construction failure and by Reader.Close.
func Open(path string, opts ...ReaderOption) (*Reader, error) {
	src, err := source.OpenFile(path)
	if err != nil {
		return nil, err
	}
	r, err := NewReader(src, opts...)
	if err != nil {
		src.Close()
		return nil, err
	}
	return r, nil
}

// parseIndex reads and verifies the header and index and applies the
// filter, populating the active key set.
func (r *Reader) parseIndex(filter Filter) error {
	size := r.src.Size()
	if size < format.HeaderSize {
		return fmt.Errorf("%w: file is %d bytes, need at least %d", format.ErrTruncated, size, format.HeaderSize)
	}
	headerBuf := make([]byte, format.HeaderSize)
	if _, err := r.src.ReadAt(headerBuf, 0); err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	r.stats.bytesRead.Add(format.HeaderSize)

	h, err := format.DecodeHeader(headerBuf)
	if err != nil {
		return err
	}
	end := h.IndexOffset + h.IndexLength
	if end < h.IndexOffset || end > uint64(size) {
		return fmt.Errorf("%w: index section [%d, %d) exceeds file of %d bytes",
			format.ErrTruncated, h.IndexOffset, end, size)
	}

	indexBuf := make([]byte, h.IndexLength)
	if _, err := r.src.ReadAt(indexBuf, int64(h.IndexOffset)); err != nil {
		return fmt.Errorf("read index: %w", err)
	}
	r.stats.bytesRead.Add(int64(len(indexBuf)))
	if err := format.ValidateChecksum(format.ComputeChecksum(indexBuf), h.IndexChecksum); err != nil {
		return err
	}

	entries, metadata, err := format.DecodeIndex(indexBuf, h)
	if err != nil {
		return err
	}
	if err := format.ValidateEntries(entries, h.IndexOffset, uint64(size)); err != nil {
		return err
	}

	r.header = h
	r.metadata = metadata
	for i := range entries {
		name := entries[i].Name
		if filter != nil {
			keep, err := filter(name)
			if err != nil {
				return fmt.Errorf("%w: tensor %q: %w", ErrFilterCallback, name, err)
			}
			if !keep {
				continue
			}
		}
		r.byName[name] = len(r.entries)
		r.keys = append(r.keys, name)
		r.entries = append(r.entries, entries[i])
	}
	return nil
}

// loadAll materializes every active tensor, overlapping source reads
// with device transfers.
func (r *Reader) loadAll() error {
	type payload struct {
		idx  int
		data []byte
	}

	g, ctx := errgroup.WithContext(context.Background())
	ch := make(chan payload, 2)

	g.Go(func() error {
		defer close(ch)
		for i := range r.entries {
			data, err := r.readPayload(&r.entries[i])
			if err != nil {
				return err
			}
			select {
			case ch <- payload{idx: i, data: data}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})
	g.Go(func() error {
		for p := range ch {
			e := &r.entries[p.idx]
			t, err := r.transfer(e, p.data)
			if err != nil {
				return err
			}
			r.cache[e.Name] = t
		}
		return nil
	})
	return g.Wait()
}

// readPayload fetches one tensor's stored bytes and decodes them to the
// raw payload.
func (r *Reader) readPayload(e *format.Entry) ([]byte, error) {
	stored := make([]byte, e.StoredLength)
	if len(stored) > 0 {
		if _, err := r.src.ReadAt(stored, int64(e.DataOffset)); err != nil {
			return nil, fmt.Errorf("tensor %q: read payload: %w", e.Name, err)
		}
	}
	r.stats.bytesRead.Add(int64(len(stored)))

	raw, err := compression.Decompress(e.Codec, stored, int(e.RawLength))
	if err != nil {
		return nil, fmt.Errorf("tensor %q: decompress: %w", e.Name, err)
	}
	return raw, nil
}

// readStaged is the low-memory variant of readPayload: stored bytes
// land in a recycled host scratch buffer and compressed payloads are
// decoded into a second one, so repeated Gets overwrite instead of
// allocating.
func (r *Reader) readStaged(e *format.Entry) ([]byte, error) {
	stored := r.scratchStored[:e.StoredLength]
	if len(stored) > 0 {
		if _, err := r.src.ReadAt(stored, int64(e.DataOffset)); err != nil {
			return nil, fmt.Errorf("tensor %q: read payload: %w", e.Name, err)
		}
	}
	r.stats.bytesRead.Add(int64(len(stored)))

	if e.Codec == compression.None {
		return stored, nil
	}
	raw := r.scratchRaw[:e.RawLength]
	if err := compression.DecompressInto(e.Codec, stored, raw); err != nil {
		return nil, fmt.Errorf("tensor %q: decompress: %w", e.Name, err)
	}
	return raw, nil
}

// transfer places raw payload bytes on the target device in a fresh
// buffer and wraps them as a tensor.
func (r *Reader) transfer(e *format.Entry, raw []byte) (*tensor.Tensor, error) {
	buf, err := r.dev.Allocate(len(raw))
	if err != nil {
		return nil, fmt.Errorf("tensor %q: allocate: %w", e.Name, err)
	}
	if err := r.dev.Copy(buf, raw); err != nil {
		buf.Release()
		return nil, fmt.Errorf("tensor %q: transfer: %w", e.Name, err)
	}
	t, err := tensor.Wrap(e.DType, e.Shape.Clone(), r.dev, buf)
	if err != nil {
		buf.Release()
		return nil, fmt.Errorf("tensor %q: %w", e.Name, err)
	}
	r.stats.activeBuffers.Add(1)
	r.stats.bytesTransferred.Add(int64(len(raw)))
	r.stats.tensorsLoaded.Add(1)
	return t, nil
}

// Get returns the tensor stored under name.
//
// In eager and on-demand modes the returned value is cached and stays
// valid until Close. In low-memory mode the value is a view over a
// staging buffer: it is invalidated by the next Get for a different
// name, and re-requesting an invalidated name returns ErrStaleTensor.
func (r *Reader) Get(name string) (*tensor.Tensor, error) {
	if r.closed {
		return nil, ErrClosed
	}
	idx, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrTensorNotFound, name)
	}

	switch r.mode {
	case modeEager:
		return r.cache[name], nil

	case modeOnDemand:
		if t, ok := r.cache[name]; ok {
			return t, nil
		}
		e := &r.entries[idx]
		raw, err := r.readPayload(e)
		if err != nil {
			return nil, err
		}
		t, err := r.transfer(e, raw)
		if err != nil {
			return nil, err
		}
		r.cache[name] = t
		return t, nil

	default: // modeLowMemory
		return r.getStaged(name, idx)
	}
}

// getStaged loads a tensor into a recycled staging slot. Loading a new
// name invalidates the previous one; the guard is tracked per name, not
// per slot, so the contract holds for any ring size.
func (r *Reader) getStaged(name string, idx int) (*tensor.Tensor, error) {
	if name == r.lastKey && r.lastVal != nil {
		return r.lastVal, nil
	}
	if _, ok := r.spent[name]; ok {
		return nil, fmt.Errorf("%w: %q", ErrStaleTensor, name)
	}

	e := &r.entries[idx]
	raw, err := r.readStaged(e)
	if err != nil {
		return nil, err
	}
	buf, err := r.pool.acquire()
	if err != nil {
		return nil, fmt.Errorf("tensor %q: %w", name, err)
	}
	if err := r.dev.Copy(buf, raw); err != nil {
		return nil, fmt.Errorf("tensor %q: transfer: %w", name, err)
	}
	t, err := tensor.Wrap(e.DType, e.Shape.Clone(), r.dev, buf)
	if err != nil {
		return nil, fmt.Errorf("tensor %q: %w", name, err)
	}
	r.stats.bytesTransferred.Add(int64(len(raw)))
	r.stats.tensorsLoaded.Add(1)

	if r.lastKey != "" && r.lastKey != name {
		r.spent[r.lastKey] = struct{}{}
	}
	r.lastKey = name
	r.lastVal = t
	return t, nil
}

// Keys returns the active tensor names in file order. The slice is a
// fresh copy on every call.
func (r *Reader) Keys() ([]string, error) {
	if r.closed {
		return nil, ErrClosed
	}
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out, nil
}

// Len returns the number of active tensors.
func (r *Reader) Len() (int, error) {
	if r.closed {
		return 0, ErrClosed
	}
	return len(r.entries), nil
}

// Contains reports whether name is in the active key set.
func (r *Reader) Contains(name string) (bool, error) {
	if r.closed {
		return false, ErrClosed
	}
	_, ok := r.byName[name]
	return ok, nil
}

// Metadata returns the file's metadata block, or nil when absent.
func (r *Reader) Metadata() map[string]string {
	return r.metadata
}

// Entries returns copies of the active index entries in file order.
func (r *Reader) Entries() []format.Entry {
	out := make([]format.Entry, len(r.entries))
	copy(out, r.entries)
	for i := range out {
		out[i].Shape = out[i].Shape.Clone()
	}
	return out
}

// Stats returns a snapshot of the reader's counters.
func (r *Reader) Stats() Stats {
	return r.stats.snapshot()
}

// Close releases the source and every buffer the reader allocated.
// Tensors obtained in eager mode are caller-owned copies and stay
// valid; on-demand and low-memory values do not survive Close.
func (r *Reader) Close() error {
	if r.closed {
		return ErrClosed
	}
	r.closed = true

	if r.mode == modeEager {
		// Ownership of eager values passes to the caller here; the
		// reader no longer holds their buffers.
		r.stats.activeBuffers.Add(int64(-len(r.cache)))
		r.cache = nil
	} else {
		r.releaseAll()
	}
	if r.pool != nil {
		r.pool.release()
	}
	err := r.src.Close()
	if err != nil {
		return fmt.Errorf("close source: %w", err)
	}
	return nil
}

func (r *Reader) releaseAll() {
	for name, t := range r.cache {
		t.Release()
		r.stats.activeBuffers.Add(-1)
		delete(r.cache, name)
	}
	r.lastVal = nil
}
