//go:build !(darwin || linux)

package platform

import (
	"errors"
	"os"
)

// MmapSupported reports whether MapFile can map files on this platform.
const MmapSupported = false

// ErrMmapUnsupported is returned by MapFile on platforms without mapping support.
var ErrMmapUnsupported = errors.New("memory mapping not supported on this platform")

// MapFile always fails with ErrMmapUnsupported.
func MapFile(*os.File) ([]byte, error) {
	return nil, ErrMmapUnsupported
}

// Unmap is a no-op.
func Unmap([]byte) error {
	return nil
}
