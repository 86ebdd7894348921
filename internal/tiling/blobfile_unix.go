//go:build unix

package tiling

import (
	"os"

	"golang.org/x/sys/unix"
)

// mapFile memory-maps f read-only.
func mapFile(f *os.File, size int64) ([]byte, bool, error) {
	data, err := unix.Mmap(
		int(f.Fd()), //nolint:gosec // G115: file descriptor fits in int
		0,
		int(size), //nolint:gosec // G115: blob sizes are a few hundred bytes
		unix.PROT_READ,
		unix.MAP_SHARED,
	)
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func unmapFile(data []byte) error {
	return unix.Munmap(data)
}
