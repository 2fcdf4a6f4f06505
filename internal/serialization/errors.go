package serialization

import "errors"

// Common errors.
var (
	// ErrClosed is returned by any operation on a closed Writer or
	// Reader, including Close after Close on the Writer.
	ErrClosed = errors.New("closed")

	// ErrDuplicateTensor is returned when a tensor name is written twice.
	ErrDuplicateTensor = errors.New("tensor name already written")

	// ErrUnsupportedDType is returned when a write supplies a dtype tag
	// outside the supported set.
	ErrUnsupportedDType = errors.New("unsupported dtype")

	// ErrTensorNotFound is returned by Get for names absent from the
	// active key set, including names removed by the filter.
	ErrTensorNotFound = errors.New("tensor not found")

	// ErrFilterCallback wraps an error returned by a filter predicate
	// during reader construction.
	ErrFilterCallback = errors.New("filter callback failed")

	// ErrStaleTensor is returned in low-memory mode when a name is
	// re-read after its staging buffer was reused for a different name.
	ErrStaleTensor = errors.New("stale tensor: staging buffer reused by a later access")
)
