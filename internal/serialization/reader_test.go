package serialization

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/mifeet/tensorizer/internal/compression"
	"github.com/mifeet/tensorizer/internal/format"
	"github.com/mifeet/tensorizer/internal/source"
	"github.com/mifeet/tensorizer/internal/tensor"
)

// TestRoundTrip writes the two-tensor fixture and reads it back with the
// default eager reader.
func TestRoundTrip(t *testing.T) {
	path := writeTestFile(t)

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	defer r.Close()

	keys, err := r.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 2 || keys[0] != "a" || keys[1] != "b" {
		t.Errorf("Expected keys [a b], got %v", keys)
	}
	n, err := r.Len()
	if err != nil {
		t.Fatalf("Len failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected length 2, got %d", n)
	}

	a, err := r.Get("a")
	if err != nil {
		t.Fatalf("Failed to get tensor a: %v", err)
	}
	if a.DType() != tensor.Float32 {
		t.Errorf("Expected float32, got %s", a.DType())
	}
	if !a.Shape().Equal(tensor.Shape{2, 3}) {
		t.Errorf("Expected shape [2 3], got %v", a.Shape())
	}
	vals, err := a.AsFloat32()
	if err != nil {
		t.Fatalf("Failed to read values: %v", err)
	}
	expected := []float32{1, 2, 3, 4, 5, 6}
	for i, v := range expected {
		if vals[i] != v {
			t.Errorf("Element %d: expected %f, got %f", i, v, vals[i])
		}
	}

	b, err := r.Get("b")
	if err != nil {
		t.Fatalf("Failed to get tensor b: %v", err)
	}
	ivals, err := b.AsInt64()
	if err != nil {
		t.Fatalf("Failed to read values: %v", err)
	}
	for i, v := range []int64{10, 20, 30, 40} {
		if ivals[i] != v {
			t.Errorf("Element %d: expected %d, got %d", i, v, ivals[i])
		}
	}
}

func TestReaderNotFound(t *testing.T) {
	r, err := Open(writeTestFile(t))
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	defer r.Close()

	_, err = r.Get("missing")
	if !errors.Is(err, ErrTensorNotFound) {
		t.Errorf("Expected ErrTensorNotFound, got: %v", err)
	}
}

func TestReaderFilter(t *testing.T) {
	path := writeTestFile(t)

	r, err := Open(path, WithFilter(func(name string) (bool, error) {
		return name == "a", nil
	}))
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	defer r.Close()

	keys, err := r.Keys()
	if err != nil {
		t.Fatalf("Keys failed: %v", err)
	}
	if len(keys) != 1 || keys[0] != "a" {
		t.Errorf("Expected keys [a], got %v", keys)
	}
	if n, _ := r.Len(); n != 1 {
		t.Errorf("Expected length 1, got %d", n)
	}
	if ok, _ := r.Contains("b"); ok {
		t.Error("Filtered-out tensor must not be contained")
	}

	// A filtered-out name behaves exactly like an absent one.
	_, err = r.Get("b")
	if !errors.Is(err, ErrTensorNotFound) {
		t.Errorf("Expected ErrTensorNotFound for filtered name, got: %v", err)
	}
}

func TestReaderFilterCallbackError(t *testing.T) {
	path := writeTestFile(t)

	boom := errors.New("predicate exploded")
	_, err := Open(path, WithFilter(func(name string) (bool, error) {
		return false, boom
	}))
	if !errors.Is(err, ErrFilterCallback) {
		t.Errorf("Expected ErrFilterCallback, got: %v", err)
	}
	if !errors.Is(err, boom) {
		t.Errorf("Expected the predicate's error to be wrapped, got: %v", err)
	}
}

func TestFilterHelpers(t *testing.T) {
	prefix := MatchPrefix("model.")
	if ok, _ := prefix("model.weight"); !ok {
		t.Error("MatchPrefix should accept model.weight")
	}
	if ok, _ := prefix("optim.state"); ok {
		t.Error("MatchPrefix should reject optim.state")
	}

	re := MatchRegexp(regexp.MustCompile(`\.bias$`))
	if ok, _ := re("layer1.bias"); !ok {
		t.Error("MatchRegexp should accept layer1.bias")
	}

	any := MatchAny(prefix, re)
	if ok, _ := any("layer1.bias"); !ok {
		t.Error("MatchAny should accept a name matching either filter")
	}
	if ok, _ := any("other"); ok {
		t.Error("MatchAny should reject a name matching neither filter")
	}
}

// TestModeEquivalence verifies that eager, on-demand and low-memory
// readers produce byte-identical tensor values.
func TestModeEquivalence(t *testing.T) {
	path := writeTestFile(t)

	modes := map[string][]ReaderOption{
		"eager":      nil,
		"on-demand":  {WithOnDemand()},
		"low-memory": {WithLowMemory()},
	}
	want := map[string][]byte{
		"a": f32Bytes(1, 2, 3, 4, 5, 6),
		"b": i64Bytes(10, 20, 30, 40),
	}

	for mode, opts := range modes {
		t.Run(mode, func(t *testing.T) {
			r, err := Open(path, opts...)
			if err != nil {
				t.Fatalf("Failed to open file: %v", err)
			}
			defer r.Close()

			for _, name := range []string{"a", "b"} {
				got, err := r.Get(name)
				if err != nil {
					t.Fatalf("Failed to get tensor %q: %v", name, err)
				}
				data, err := got.Data()
				if err != nil {
					t.Fatalf("Failed to read tensor %q: %v", name, err)
				}
				if !bytes.Equal(data, want[name]) {
					t.Errorf("Tensor %q: bytes differ from written data", name)
				}
			}
		})
	}
}

func TestOnDemandCaching(t *testing.T) {
	r, err := Open(writeTestFile(t), WithOnDemand())
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	defer r.Close()

	if loaded := r.Stats().TensorsLoaded; loaded != 0 {
		t.Errorf("Expected no tensors loaded at construction, got %d", loaded)
	}

	first, err := r.Get("a")
	if err != nil {
		t.Fatalf("First get failed: %v", err)
	}
	second, err := r.Get("a")
	if err != nil {
		t.Fatalf("Second get failed: %v", err)
	}
	if first != second {
		t.Error("Expected repeated gets to return the cached tensor")
	}
	if loaded := r.Stats().TensorsLoaded; loaded != 1 {
		t.Errorf("Expected exactly one load, got %d", loaded)
	}
}

// TestLowMemoryGuard exercises the invalidation contract: after loading
// a different name, re-requesting an earlier one fails.
func TestLowMemoryGuard(t *testing.T) {
	r, err := Open(writeTestFile(t), WithLowMemory())
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	defer r.Close()

	if _, err := r.Get("a"); err != nil {
		t.Fatalf("Failed to get tensor a: %v", err)
	}
	if _, err := r.Get("b"); err != nil {
		t.Fatalf("Failed to get tensor b: %v", err)
	}

	_, err = r.Get("a")
	if !errors.Is(err, ErrStaleTensor) {
		t.Errorf("Expected ErrStaleTensor on re-access, got: %v", err)
	}

	// The most recent name stays readable.
	if _, err := r.Get("b"); err != nil {
		t.Errorf("Most recent tensor should still be readable, got: %v", err)
	}
}

func TestLowMemoryRepeatSameKey(t *testing.T) {
	r, err := Open(writeTestFile(t), WithLowMemory())
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	defer r.Close()

	first, err := r.Get("a")
	if err != nil {
		t.Fatalf("First get failed: %v", err)
	}
	second, err := r.Get("a")
	if err != nil {
		t.Fatalf("Second get failed: %v", err)
	}
	if first != second {
		t.Error("Expected repeated gets of the same name to return the same view")
	}
	if loaded := r.Stats().TensorsLoaded; loaded != 1 {
		t.Errorf("Expected one load for repeated same-name gets, got %d", loaded)
	}
}

// TestLowMemoryGuardLargerRing verifies that extra staging slots do not
// weaken the invalidation contract.
func TestLowMemoryGuardLargerRing(t *testing.T) {
	r, err := Open(writeTestFile(t), WithLowMemory(), WithStagingBuffers(4))
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	defer r.Close()

	if _, err := r.Get("a"); err != nil {
		t.Fatalf("Failed to get tensor a: %v", err)
	}
	if _, err := r.Get("b"); err != nil {
		t.Fatalf("Failed to get tensor b: %v", err)
	}
	if _, err := r.Get("a"); !errors.Is(err, ErrStaleTensor) {
		t.Errorf("Expected ErrStaleTensor regardless of ring size, got: %v", err)
	}
}

func TestReaderClosedState(t *testing.T) {
	r, err := Open(writeTestFile(t))
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Failed to close reader: %v", err)
	}

	if _, err := r.Get("a"); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Get, got: %v", err)
	}
	if _, err := r.Keys(); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Keys, got: %v", err)
	}
	if _, err := r.Len(); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Len, got: %v", err)
	}
	if _, err := r.Contains("a"); !errors.Is(err, ErrClosed) {
		t.Errorf("Expected ErrClosed from Contains, got: %v", err)
	}
}

// TestEagerValuesSurviveClose: eager tensors are caller-owned copies.
func TestEagerValuesSurviveClose(t *testing.T) {
	r, err := Open(writeTestFile(t))
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	a, err := r.Get("a")
	if err != nil {
		t.Fatalf("Failed to get tensor a: %v", err)
	}
	if err := r.Close(); err != nil {
		t.Fatalf("Failed to close reader: %v", err)
	}

	vals, err := a.AsFloat32()
	if err != nil {
		t.Fatalf("Eager tensor unreadable after close: %v", err)
	}
	if vals[0] != 1 || vals[5] != 6 {
		t.Errorf("Eager tensor data corrupted after close: %v", vals)
	}

	// Ownership moved to the caller, so the reader holds no buffers.
	if n := r.Stats().ActiveBuffers; n != 0 {
		t.Errorf("Expected 0 active buffers after close, got %d", n)
	}
}

func TestReaderChecksumMismatch(t *testing.T) {
	path := writeTestFile(t)

	// The index trails the data, so the last byte is inside it.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Failed to stat file: %v", err)
	}
	f, err := os.OpenFile(path, os.O_RDWR, 0o644)
	if err != nil {
		t.Fatalf("Failed to open file for corruption: %v", err)
	}
	if _, err := f.WriteAt([]byte{0xFF}, info.Size()-1); err != nil {
		t.Fatalf("Failed to corrupt file: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Failed to close file: %v", err)
	}

	_, err = Open(path)
	if !errors.Is(err, format.ErrChecksumMismatch) {
		t.Errorf("Expected ErrChecksumMismatch, got: %v", err)
	}
}

func TestReaderBadMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.tzr")
	if err := os.WriteFile(path, bytes.Repeat([]byte{0xAB}, 256), 0o644); err != nil {
		t.Fatalf("Failed to write file: %v", err)
	}

	_, err := Open(path)
	if !errors.Is(err, format.ErrInvalidMagic) {
		t.Errorf("Expected ErrInvalidMagic, got: %v", err)
	}
	if !format.IsFormatError(err) {
		t.Errorf("Expected a format error, got: %v", err)
	}
}

func TestReaderTruncatedFile(t *testing.T) {
	_, err := NewReader(source.Bytes([]byte("TZRI")))
	if !errors.Is(err, format.ErrTruncated) {
		t.Errorf("Expected ErrTruncated, got: %v", err)
	}
}

func TestCompressionRoundTrip(t *testing.T) {
	for _, codec := range []compression.Type{compression.Zstd, compression.LZ4} {
		t.Run(codec.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "comp.tzr")
			f, err := os.Create(path)
			if err != nil {
				t.Fatalf("Failed to create file: %v", err)
			}
			defer f.Close()

			// Highly repetitive payload, guaranteed to shrink.
			payload := bytes.Repeat([]byte{1, 2, 3, 4}, 4096)

			w, err := NewWriter(f, WithCompression(codec))
			if err != nil {
				t.Fatalf("Failed to create writer: %v", err)
			}
			if err := w.WriteTensor("w", tensor.Uint8, tensor.Shape{len(payload)}, payload); err != nil {
				t.Fatalf("Failed to write tensor: %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Failed to close writer: %v", err)
			}

			r, err := Open(path)
			if err != nil {
				t.Fatalf("Failed to open file: %v", err)
			}
			defer r.Close()

			e := r.Entries()[0]
			if e.Codec != codec {
				t.Errorf("Expected codec %s, got %s", codec, e.Codec)
			}
			if e.StoredLength >= e.RawLength {
				t.Errorf("Expected compressed payload smaller than %d bytes, got %d", e.RawLength, e.StoredLength)
			}

			got, err := r.Get("w")
			if err != nil {
				t.Fatalf("Failed to get tensor: %v", err)
			}
			data, err := got.Data()
			if err != nil {
				t.Fatalf("Failed to read tensor: %v", err)
			}
			if !bytes.Equal(data, payload) {
				t.Error("Decompressed payload differs from written data")
			}
		})
	}
}

// TestLowMemoryCompressed drives compressed and raw payloads through
// the staged read path, which decodes into recycled host scratch
// buffers instead of fresh slices.
func TestLowMemoryCompressed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lowcomp.tzr")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	defer f.Close()

	payload := bytes.Repeat([]byte{9, 8, 7, 6}, 4096)
	w, err := NewWriter(f, WithCompression(compression.Zstd))
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	if err := w.WriteTensor("w", tensor.Uint8, tensor.Shape{len(payload)}, payload); err != nil {
		t.Fatalf("Failed to write tensor: %v", err)
	}
	// Too small to shrink, stored raw.
	if err := w.WriteTensor("tiny", tensor.Uint8, tensor.Shape{3}, []byte{1, 2, 3}); err != nil {
		t.Fatalf("Failed to write tensor: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	r, err := Open(path, WithLowMemory())
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	defer r.Close()

	got, err := r.Get("w")
	if err != nil {
		t.Fatalf("Failed to get tensor w: %v", err)
	}
	data, err := got.Data()
	if err != nil {
		t.Fatalf("Failed to read tensor w: %v", err)
	}
	if !bytes.Equal(data, payload) {
		t.Error("Staged decompressed payload differs from written data")
	}

	tiny, err := r.Get("tiny")
	if err != nil {
		t.Fatalf("Failed to get tensor tiny: %v", err)
	}
	data, err = tiny.Data()
	if err != nil {
		t.Fatalf("Failed to read tensor tiny: %v", err)
	}
	if !bytes.Equal(data, []byte{1, 2, 3}) {
		t.Errorf("Expected raw payload [1 2 3], got %v", data)
	}
}

func TestMetadataRoundTrip(t *testing.T) {
	meta := map[string]string{"framework": "test", "model": "mlp", "step": "1000"}
	path := writeTestFile(t, WithMetadata(meta))

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	defer r.Close()

	got := r.Metadata()
	if len(got) != len(meta) {
		t.Fatalf("Expected %d metadata entries, got %d", len(meta), len(got))
	}
	for k, v := range meta {
		if got[k] != v {
			t.Errorf("Metadata %q: expected %q, got %q", k, v, got[k])
		}
	}
}

func TestReaderNoMetadata(t *testing.T) {
	r, err := Open(writeTestFile(t))
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	defer r.Close()

	if got := r.Metadata(); got != nil {
		t.Errorf("Expected nil metadata, got %v", got)
	}
}

func TestReaderZeroSizeTensor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zero.tzr")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	defer f.Close()

	w, err := NewWriter(f)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	if err := w.WriteTensor("empty", tensor.Float32, tensor.Shape{0, 3}, nil); err != nil {
		t.Fatalf("Failed to write zero-size tensor: %v", err)
	}
	// A scalar has an empty shape and one element.
	if err := w.WriteTensor("scalar", tensor.Float32, tensor.Shape{}, f32Bytes(42)); err != nil {
		t.Fatalf("Failed to write scalar: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	defer r.Close()

	empty, err := r.Get("empty")
	if err != nil {
		t.Fatalf("Failed to get zero-size tensor: %v", err)
	}
	if empty.NumElements() != 0 {
		t.Errorf("Expected 0 elements, got %d", empty.NumElements())
	}

	scalar, err := r.Get("scalar")
	if err != nil {
		t.Fatalf("Failed to get scalar: %v", err)
	}
	vals, err := scalar.AsFloat32()
	if err != nil {
		t.Fatalf("Failed to read scalar: %v", err)
	}
	if len(vals) != 1 || vals[0] != 42 {
		t.Errorf("Expected scalar value 42, got %v", vals)
	}
}

func TestReaderStats(t *testing.T) {
	r, err := Open(writeTestFile(t))
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	defer r.Close()

	stats := r.Stats()
	if stats.TensorsLoaded != 2 {
		t.Errorf("Expected 2 tensors loaded, got %d", stats.TensorsLoaded)
	}
	if stats.ActiveBuffers != 2 {
		t.Errorf("Expected 2 active buffers, got %d", stats.ActiveBuffers)
	}
	// 24 bytes of float32 + 32 bytes of int64.
	if stats.BytesTransferred != 56 {
		t.Errorf("Expected 56 bytes transferred, got %d", stats.BytesTransferred)
	}
	if stats.BytesRead <= 56 {
		t.Errorf("Expected header and index reads counted, got %d", stats.BytesRead)
	}
}

func TestReaderFromBytesSource(t *testing.T) {
	path := writeTestFile(t)
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file: %v", err)
	}

	r, err := NewReader(source.Bytes(raw))
	if err != nil {
		t.Fatalf("Failed to open bytes source: %v", err)
	}
	defer r.Close()

	if n, _ := r.Len(); n != 2 {
		t.Errorf("Expected 2 tensors, got %d", n)
	}
}

// TestManyTensorsEager stresses the eager load pipeline with enough
// entries to keep both stages busy.
func TestManyTensorsEager(t *testing.T) {
	path := filepath.Join(t.TempDir(), "many.tzr")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("Failed to create file: %v", err)
	}
	defer f.Close()

	w, err := NewWriter(f)
	if err != nil {
		t.Fatalf("Failed to create writer: %v", err)
	}
	const count = 100
	for i := 0; i < count; i++ {
		name := fmt.Sprintf("layer.%03d", i)
		payload := bytes.Repeat([]byte{byte(i)}, 128)
		if err := w.WriteTensor(name, tensor.Uint8, tensor.Shape{len(payload)}, payload); err != nil {
			t.Fatalf("Failed to write tensor %q: %v", name, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Failed to close writer: %v", err)
	}

	r, err := Open(path)
	if err != nil {
		t.Fatalf("Failed to open file: %v", err)
	}
	defer r.Close()

	if n, _ := r.Len(); n != count {
		t.Fatalf("Expected %d tensors, got %d", count, n)
	}
	for i := 0; i < count; i++ {
		name := fmt.Sprintf("layer.%03d", i)
		got, err := r.Get(name)
		if err != nil {
			t.Fatalf("Failed to get tensor %q: %v", name, err)
		}
		data, err := got.Data()
		if err != nil {
			t.Fatalf("Failed to read tensor %q: %v", name, err)
		}
		if len(data) != 128 || data[0] != byte(i) {
			t.Errorf("Tensor %q: unexpected payload", name)
		}
	}
}

func BenchmarkEagerOpen(b *testing.B) {
	path := filepath.Join(b.TempDir(), "bench.tzr")
	f, err := os.Create(path)
	if err != nil {
		b.Fatalf("Failed to create file: %v", err)
	}
	w, err := NewWriter(f)
	if err != nil {
		b.Fatalf("Failed to create writer: %v", err)
	}
	payload := make([]byte, 1024*1024)
	for i := 0; i < 16; i++ {
		if err := w.WriteTensor(fmt.Sprintf("t%02d", i), tensor.Uint8, tensor.Shape{len(payload)}, payload); err != nil {
			b.Fatalf("Failed to write tensor: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		b.Fatalf("Failed to close writer: %v", err)
	}
	f.Close()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		r, err := Open(path)
		if err != nil {
			b.Fatalf("Failed to open file: %v", err)
		}
		r.Close()
	}
}
