// Package tensor provides the value model of the serialization engine:
// dtype tags, shapes, and device-resident tensor values. The engine treats
// tensor bytes as opaque payload; numeric interpretation happens in
// adapters outside this module.
package tensor

// DataType is the tag for a tensor's element type.
// The set is closed; tags are part of the on-disk format and must not be
// reordered.
type DataType uint8

// Supported data types.
const (
	Float32 DataType = iota
	Float64
	Int32
	Int64
	Uint8
	Bool
)

// Size returns the byte size of one element.
func (dt DataType) Size() int {
	switch dt {
	case Float32, Int32:
		return 4
	case Float64, Int64:
		return 8
	case Uint8, Bool:
		return 1
	default:
		return 0
	}
}

// Valid reports whether dt is a member of the supported set.
func (dt DataType) Valid() bool {
	return dt <= Bool
}

// String returns a human-readable name for the data type.
func (dt DataType) String() string {
	switch dt {
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint8:
		return "uint8"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}
