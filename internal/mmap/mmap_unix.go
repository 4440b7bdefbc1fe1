//go:build unix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

// osMap maps f privately. Payloads are decoded front to back exactly once,
// so the kernel is told to read ahead and drop pages behind the reader.
func osMap(f *os.File, size int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}
	_ = unix.Madvise(data, unix.MADV_SEQUENTIAL)
	return data, unix.Munmap, nil
}
