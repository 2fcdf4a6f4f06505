package tensor

import (
	"fmt"
	"math"
)

// Shape represents the dimensions of a tensor.
// An empty shape is a scalar (one element). Zero-size dimensions are
// allowed and yield an empty tensor.
type Shape []int

// NumElements returns the total number of elements in the tensor, or
// -1 when the product of the dimensions does not fit in an int.
func (s Shape) NumElements() int {
	n := 1
	for _, dim := range s {
		if dim != 0 && (dim < 0 || n > math.MaxInt/dim) {
			return -1
		}
		n *= dim
	}
	return n
}

// ByteSize returns the payload size for elements of the given type, or
// -1 on overflow.
func (s Shape) ByteSize(dt DataType) int {
	n := s.NumElements()
	sz := dt.Size()
	if n < 0 || (sz != 0 && n > math.MaxInt/sz) {
		return -1
	}
	return n * sz
}

// Validate checks that all dimensions are non-negative.
func (s Shape) Validate() error {
	for i, dim := range s {
		if dim < 0 {
			return fmt.Errorf("invalid dimension at index %d: %d (must be >= 0)", i, dim)
		}
	}
	return nil
}

// Equal checks if two shapes are equal.
func (s Shape) Equal(other Shape) bool {
	if len(s) != len(other) {
		return false
	}
	for i := range s {
		if s[i] != other[i] {
			return false
		}
	}
	return true
}

// Clone returns a copy of the shape.
func (s Shape) Clone() Shape {
	clone := make(Shape, len(s))
	copy(clone, s)
	return clone
}
