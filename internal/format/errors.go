package format

import (
	"errors"
	"fmt"
)

// Common errors. All of them indicate an unreadable or untrustworthy
// file; none are recoverable by retrying the same read.
var (
	ErrInvalidMagic       = errors.New("invalid magic bytes")
	ErrUnsupportedVersion = errors.New("unsupported format version")
	ErrChecksumMismatch   = errors.New("index checksum mismatch: file may be corrupted")
	ErrTruncated          = errors.New("file truncated")
	ErrIndexTooLarge      = errors.New("index exceeds maximum size")
	ErrTooManyTensors     = errors.New("too many tensors in file")
	ErrTensorNameTooLong  = errors.New("tensor name too long")
	ErrInvalidTensorName  = errors.New("invalid tensor name")
	ErrDuplicateName      = errors.New("duplicate tensor name")
	ErrOffsetOverlap      = errors.New("tensor byte ranges overlap")
	ErrOutOfBounds        = errors.New("tensor extends beyond data section")
	ErrLengthMismatch     = errors.New("tensor length does not match dtype and shape")
	ErrUnknownDType       = errors.New("unknown dtype tag")
	ErrUnknownCodec       = errors.New("unknown compression codec tag")
)

// ValidationError provides detailed information about index validation
// failures.
type ValidationError struct {
	Type    string // kind of failure (e.g. "offset_overlap", "out_of_bounds")
	Tensor  string // primary tensor name involved
	Tensor2 string // secondary tensor name (for overlap errors)
	Details string
	err     error // matching sentinel
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Tensor2 != "" {
		return fmt.Sprintf("%s: tensors %q and %q: %s", e.Type, e.Tensor, e.Tensor2, e.Details)
	}
	if e.Tensor != "" {
		return fmt.Sprintf("%s: tensor %q: %s", e.Type, e.Tensor, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Details)
}

// Unwrap exposes the sentinel matched by errors.Is.
func (e *ValidationError) Unwrap() error {
	return e.err
}

// IsFormatError reports whether err indicates a malformed or corrupted
// file (as opposed to I/O failure or caller misuse).
func IsFormatError(err error) bool {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return true
	}
	for _, sentinel := range []error{
		ErrInvalidMagic, ErrUnsupportedVersion, ErrChecksumMismatch,
		ErrTruncated, ErrIndexTooLarge, ErrTooManyTensors,
		ErrTensorNameTooLong, ErrInvalidTensorName, ErrDuplicateName,
		ErrOffsetOverlap, ErrOutOfBounds, ErrLengthMismatch,
		ErrUnknownDType, ErrUnknownCodec,
	} {
		if errors.Is(err, sentinel) {
			return true
		}
	}
	return false
}
