package blte

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"

	"github.com/casclib/casc/core/internal/casctype"
)

// InflatePool manages reusable zlib readers to reduce allocation overhead.
// A nil *InflatePool is valid and allocates a reader per call.
type InflatePool struct {
	pool sync.Pool
}

// NewInflatePool creates an empty pool.
func NewInflatePool() *InflatePool {
	return &InflatePool{}
}

// get returns a zlib reader over r. The caller must call release when done.
func (p *InflatePool) get(r io.Reader) (io.ReadCloser, func(), error) {
	if p == nil {
		zr, err := zlib.NewReader(r)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { _ = zr.Close() }, nil
	}

	if v, ok := p.pool.Get().(io.ReadCloser); ok {
		if err := v.(zlib.Resetter).Reset(r, nil); err != nil {
			// A failed Reset leaves the reader reusable.
			p.pool.Put(v)
			return nil, nil, err
		}
		return v, func() { p.pool.Put(v) }, nil
	}

	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, nil, err
	}
	return zr, func() { p.pool.Put(zr) }, nil
}

// Inflate decompresses a complete zlib stream from src into dst. The stream
// must produce exactly len(dst) bytes and then end.
func (p *InflatePool) Inflate(dst, src []byte) error {
	zr, release, err := p.get(bytes.NewReader(src))
	if err != nil {
		return fmt.Errorf("%w: zlib header: %v", casctype.ErrMalformed, err)
	}
	defer release()

	if n, err := io.ReadFull(zr, dst); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: zlib produced %d of %d bytes", casctype.ErrMalformed, n, len(dst))
		}
		return fmt.Errorf("%w: zlib: %v", casctype.ErrMalformed, err)
	}

	var probe [1]byte
	n, err := zr.Read(probe[:])
	if n > 0 {
		return fmt.Errorf("%w: zlib produced more than %d bytes", casctype.ErrMalformed, len(dst))
	}
	if !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: unfinished zlib stream: %v", casctype.ErrMalformed, err)
	}
	return nil
}
