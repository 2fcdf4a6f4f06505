package source

import "io"

// bytesSource serves an in-memory buffer. Used by tests and by adapters
// that already hold the whole file in memory.
type bytesSource struct {
	data []byte
}

// Bytes wraps a byte slice as a Source. The slice is not copied.
func Bytes(data []byte) Source {
	return &bytesSource{data: data}
}

func (s *bytesSource) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 || off >= int64(len(s.data)) {
		return 0, io.EOF
	}
	n := copy(p, s.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *bytesSource) Size() int64 {
	return int64(len(s.data))
}

func (s *bytesSource) Bytes() ([]byte, error) {
	return s.data, nil
}

func (s *bytesSource) Close() error {
	s.data = nil
	return nil
}
