// Package wire provides a bounds-checked cursor over borrowed byte slices.
//
// Every CASC binary decoder reads through a Reader so that no multi-byte
// read can run past the end of its enclosing block. Slices returned by a
// Reader alias the underlying buffer and must be treated as read-only.
package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/casclib/casc/core/internal/casctype"
	"github.com/casclib/casc/core/internal/sizing"
)

// ErrOutOfBounds is returned when a read would cross the end of the buffer.
var ErrOutOfBounds = fmt.Errorf("%w: read out of bounds", casctype.ErrMalformed)

// Reader reads fixed and variable width fields from a byte slice.
type Reader struct {
	buf []byte
	off int
}

// NewReader returns a Reader positioned at the start of b.
func NewReader(b []byte) *Reader {
	return &Reader{buf: b}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return len(r.buf) - r.off
}

// Size returns the length of the underlying buffer.
func (r *Reader) Size() int {
	return len(r.buf)
}

// Offset returns the current position from the start of the buffer.
func (r *Reader) Offset() int {
	return r.off
}

// Seek moves the cursor to an absolute position within the buffer.
func (r *Reader) Seek(off int) error {
	if off < 0 || off > len(r.buf) {
		return ErrOutOfBounds
	}
	r.off = off
	return nil
}

// Skip advances the cursor by n bytes.
func (r *Reader) Skip(n int) error {
	if n < 0 || n > r.Len() {
		return ErrOutOfBounds
	}
	r.off += n
	return nil
}

// Bytes returns the next n bytes and advances past them.
func (r *Reader) Bytes(n int) ([]byte, error) {
	if n < 0 || n > r.Len() {
		return nil, ErrOutOfBounds
	}
	b := r.buf[r.off : r.off+n : r.off+n]
	r.off += n
	return b, nil
}

// Remaining returns the unread bytes without advancing.
func (r *Reader) Remaining() []byte {
	return r.buf[r.off:]
}

// Sub returns a Reader over the next n bytes and advances past them.
func (r *Reader) Sub(n int) (*Reader, error) {
	b, err := r.Bytes(n)
	if err != nil {
		return nil, err
	}
	return NewReader(b), nil
}

// Uint8 reads one byte.
func (r *Reader) Uint8() (uint8, error) {
	if r.Len() < 1 {
		return 0, ErrOutOfBounds
	}
	v := r.buf[r.off]
	r.off++
	return v, nil
}

// Uint16LE reads a little-endian uint16.
func (r *Reader) Uint16LE() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// Uint16BE reads a big-endian uint16.
func (r *Reader) Uint16BE() (uint16, error) {
	b, err := r.Bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// Uint32LE reads a little-endian uint32.
func (r *Reader) Uint32LE() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// Uint32BE reads a big-endian uint32.
func (r *Reader) Uint32BE() (uint32, error) {
	b, err := r.Bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Uint64LE reads a little-endian uint64.
func (r *Reader) Uint64LE() (uint64, error) {
	b, err := r.Bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

// UintBE reads an n byte big-endian field zero-extended to 64 bits.
func (r *Reader) UintBE(n int) (uint64, error) {
	if n > 8 {
		return 0, fmt.Errorf("%w: %d byte integer field", casctype.ErrMalformed, n)
	}
	b, err := r.Bytes(n)
	if err != nil {
		return 0, err
	}
	return sizing.UintBE(b), nil
}

// UintLE reads an n byte little-endian field zero-extended to 64 bits.
func (r *Reader) UintLE(n int) (uint64, error) {
	if n > 8 {
		return 0, fmt.Errorf("%w: %d byte integer field", casctype.ErrMalformed, n)
	}
	b, err := r.Bytes(n)
	if err != nil {
		return 0, err
	}
	return sizing.UintLE(b), nil
}
