//go:build darwin || linux

package platform

import (
	"fmt"
	"math"
	"os"

	"golang.org/x/sys/unix"
)

// MmapSupported reports whether MapFile can map files on this platform.
const MmapSupported = true

// MapFile maps the whole of f read-only. An empty file maps to nil.
// The mapping outlives f and must be released with Unmap.
func MapFile(f *os.File) ([]byte, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	size := info.Size()
	if size == 0 {
		return nil, nil
	}
	if size > math.MaxInt {
		return nil, fmt.Errorf("%s is %d bytes, too large to map", f.Name(), size)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("memory-mapping %s: %w", f.Name(), err)
	}
	return data, nil
}

// Unmap releases a mapping returned by MapFile.
func Unmap(data []byte) error {
	if len(data) == 0 {
		return nil
	}
	return unix.Munmap(data)
}
