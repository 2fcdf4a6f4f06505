//go:build unix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

// mapFile memory-maps a file for reading (Unix implementation).
func mapFile(f *os.File, size int) ([]byte, error) {
	return unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
}

// unmapFile unmaps a memory-mapped file (Unix implementation).
func unmapFile(data []byte) error {
	return unix.Munmap(data)
}
