package source

import (
	"io"

	"github.com/mifeet/tensorizer/internal/mmap"
)

// fileSource serves a local file through a read-only memory mapping.
// Random access hits the OS page cache directly, with no heap staging.
type fileSource struct {
	m *mmap.Mapping
}

// OpenFile opens a local tensor file as a Source.
func OpenFile(path string) (Source, error) {
	m, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	return &fileSource{m: m}, nil
}

func (s *fileSource) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	data := s.m.Bytes()
	if off < 0 || off >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (s *fileSource) Size() int64 {
	return s.m.Size()
}

func (s *fileSource) Bytes() ([]byte, error) {
	return s.m.Bytes(), nil
}

func (s *fileSource) Close() error {
	return s.m.Close()
}
