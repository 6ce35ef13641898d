package casc

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/casclib/casc/core/internal/casctype"
	"github.com/casclib/casc/core/internal/platform"
	"github.com/casclib/casc/core/internal/sizing"
)

// dataFile is an open data.NNN file. Regions are served from a read-only
// mapping when one exists and read with ReadAt otherwise.
type dataFile struct {
	file   *os.File
	size   int64
	mapped []byte
}

func openDataFile(path string, mmap bool) (*dataFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat data file: %w", err)
	}

	d := &dataFile{file: f, size: info.Size()}
	if mmap {
		d.mapped, err = platform.MapFile(f)
		if err != nil {
			_ = f.Close()
			return nil, err
		}
	}
	return d, nil
}

// region returns n bytes at off. Mapped regions alias the mapping and stay
// valid until close.
func (d *dataFile) region(off, n uint64) ([]byte, error) {
	end, ok := sizing.AddUint64(off, n)
	if !ok || end > uint64(d.size) {
		return nil, fmt.Errorf("%w: region of %d bytes at %d beyond %d byte data file",
			casctype.ErrMalformed, n, off, d.size)
	}
	if d.mapped != nil {
		return d.mapped[off:end:end], nil
	}

	size, err := sizing.ToInt(n, casctype.ErrMalformed)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	// off fits in int64 because it is below d.size.
	read, err := d.file.ReadAt(buf, int64(off))
	if read == size {
		return buf, nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		err = io.ErrUnexpectedEOF
	}
	return nil, fmt.Errorf("read data file region: %w", err)
}

func (d *dataFile) close() error {
	var unmapErr error
	if d.mapped != nil {
		unmapErr = platform.Unmap(d.mapped)
		d.mapped = nil
	}
	return errors.Join(unmapErr, d.file.Close())
}
