package format

import (
	"fmt"
	"sort"
	"strings"
)

// ValidateName checks a tensor name for length and malicious patterns.
// Names are user-visible keys; path characters and control bytes are
// rejected so names can be echoed into logs and filesystem-adjacent
// tooling safely.
func ValidateName(name string) error {
	if name == "" {
		return &ValidationError{
			Type:    "invalid_name",
			Details: "empty tensor name",
			err:     ErrInvalidTensorName,
		}
	}
	if len(name) > MaxTensorNameLen {
		return &ValidationError{
			Type:    "name_too_long",
			Tensor:  name,
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
			err:     ErrTensorNameTooLong,
		}
	}
	if strings.Contains(name, "\x00") {
		return &ValidationError{
			Type:    "invalid_name",
			Tensor:  name,
			Details: "contains null byte",
			err:     ErrInvalidTensorName,
		}
	}
	return nil
}

// ValidateEntries performs full index validation against the file
// geometry: names, dtype/codec tags, length consistency, bounds, and
// byte-range overlap. fileSize is the total file size; dataEnd is the
// first byte past the data section (the index offset).
func ValidateEntries(entries []Entry, dataEnd, fileSize uint64) error {
	if len(entries) > MaxTensorCount {
		return &ValidationError{
			Type:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(entries), MaxTensorCount),
			err:     ErrTooManyTensors,
		}
	}

	seen := make(map[string]struct{}, len(entries))
	for i := range entries {
		e := &entries[i]
		if err := ValidateName(e.Name); err != nil {
			return err
		}
		if _, dup := seen[e.Name]; dup {
			return &ValidationError{
				Type:    "duplicate_name",
				Tensor:  e.Name,
				Details: "name appears more than once in index",
				err:     ErrDuplicateName,
			}
		}
		seen[e.Name] = struct{}{}

		if !e.DType.Valid() {
			return &ValidationError{
				Type:    "unknown_dtype",
				Tensor:  e.Name,
				Details: fmt.Sprintf("dtype tag %d", e.DType),
				err:     ErrUnknownDType,
			}
		}
		if !e.Codec.Valid() {
			return &ValidationError{
				Type:    "unknown_codec",
				Tensor:  e.Name,
				Details: fmt.Sprintf("codec tag %d", e.Codec),
				err:     ErrUnknownCodec,
			}
		}
		if err := e.Shape.Validate(); err != nil {
			return &ValidationError{
				Type:    "invalid_shape",
				Tensor:  e.Name,
				Details: err.Error(),
				err:     ErrLengthMismatch,
			}
		}
		if want := uint64(e.Shape.ByteSize(e.DType)); e.RawLength != want {
			return &ValidationError{
				Type:    "length_mismatch",
				Tensor:  e.Name,
				Details: fmt.Sprintf("raw length %d, dtype %s with shape %v requires %d", e.RawLength, e.DType, e.Shape, want),
				err:     ErrLengthMismatch,
			}
		}

		if e.DataOffset < HeaderSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  e.Name,
				Details: fmt.Sprintf("offset %d overlaps header", e.DataOffset),
				err:     ErrOutOfBounds,
			}
		}
		end := e.DataOffset + e.StoredLength
		if end < e.DataOffset || end > dataEnd || end > fileSize {
			return &ValidationError{
				Type:    "out_of_bounds",
				Tensor:  e.Name,
				Details: fmt.Sprintf("offset %d + stored length %d > data section end %d", e.DataOffset, e.StoredLength, dataEnd),
				err:     ErrOutOfBounds,
			}
		}
	}

	// Overlap detection on a copy sorted by offset.
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].DataOffset < sorted[j].DataOffset
	})
	for i := 0; i+1 < len(sorted); i++ {
		cur, next := &sorted[i], &sorted[i+1]
		if cur.DataOffset+cur.StoredLength > next.DataOffset {
			return &ValidationError{
				Type:    "offset_overlap",
				Tensor:  cur.Name,
				Tensor2: next.Name,
				Details: fmt.Sprintf("regions [%d-%d] and [%d-%d] overlap",
					cur.DataOffset, cur.DataOffset+cur.StoredLength,
					next.DataOffset, next.DataOffset+next.StoredLength),
				err: ErrOffsetOverlap,
			}
		}
	}

	return nil
}
