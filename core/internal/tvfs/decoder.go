package tvfs

import (
	"bytes"
	"fmt"

	"github.com/casclib/casc/core/internal/casctype"
	"github.com/casclib/casc/core/internal/sizing"
	"github.com/casclib/casc/core/internal/wire"
)

var magic = []byte("TVFS")

const (
	supportedVersion = 1

	// valueMarker ends the fragment list of a node.
	valueMarker   = 0xFF
	containerFlag = 1 << 31

	// minNestingLimit bounds prefix nesting regardless of the declared
	// maximum path depth.
	minNestingLimit = 1024
	maxFragmentLen  = valueMarker - 1
)

// Decode parses a TVFS file. Fragments and keys alias b, which must not be
// modified afterwards.
func Decode(b []byte) (*File, error) {
	r := wire.NewReader(b)
	id, err := r.Bytes(len(magic))
	if err != nil || !bytes.Equal(id, magic) {
		return nil, fmt.Errorf("%w: missing TVFS identifier", casctype.ErrMalformed)
	}

	f := &File{}
	if f.Version, err = r.Uint8(); err != nil {
		return nil, fmt.Errorf("TVFS header: %w", err)
	}
	if f.Version != supportedVersion {
		return nil, fmt.Errorf("%w: unsupported TVFS version %d", casctype.ErrMalformed, f.Version)
	}
	headerSize, err := r.Uint8()
	if err != nil {
		return nil, fmt.Errorf("TVFS header: %w", err)
	}
	if int(headerSize) > len(b) {
		return nil, fmt.Errorf("%w: TVFS header of %d bytes extends past end of file", casctype.ErrMalformed, headerSize)
	}

	h := wire.NewReader(b[:headerSize])
	if err := h.Seek(r.Offset()); err != nil {
		return nil, fmt.Errorf("TVFS header: %w", err)
	}
	var spans [3]span
	if err := readHeader(h, f, &spans); err != nil {
		return nil, fmt.Errorf("TVFS header: %w", err)
	}
	for i, s := range spans {
		if uint64(s.off)+uint64(s.size) > uint64(len(b)) {
			return nil, fmt.Errorf("%w: TVFS %s table extends past end of file", casctype.ErrMalformed, spanNames[i])
		}
	}
	path, logical, storage := spans[0].slice(b), spans[1].slice(b), spans[2].slice(b)

	d := &decoder{
		keySize:          int(f.EncodingKeySize),
		contentsOffWidth: sizing.ByteWidth(spans[2].size),
		logical:          logical,
		storage:          storage,
		nestingLimit:     max(minNestingLimit, int(f.MaxPathDepth)*maxFragmentLen),
	}
	roots, err := d.container(wire.NewReader(path), 0)
	if err != nil {
		return nil, err
	}
	f.Roots = roots
	return f, nil
}

type span struct {
	off, size uint32
}

func (s span) slice(b []byte) []byte {
	return b[s.off : s.off+s.size]
}

var spanNames = [3]string{"path", "logical", "storage"}

func readHeader(h *wire.Reader, f *File, spans *[3]span) error {
	var err error
	if f.EncodingKeySize, err = h.Uint8(); err != nil {
		return err
	}
	if f.PatchKeySize, err = h.Uint8(); err != nil {
		return err
	}
	if f.Flags, err = h.Uint32BE(); err != nil {
		return err
	}
	for i := range spans {
		if spans[i].off, err = h.Uint32BE(); err != nil {
			return err
		}
		if spans[i].size, err = h.Uint32BE(); err != nil {
			return err
		}
	}
	f.MaxPathDepth, err = h.Uint16BE()
	return err
}

type decoder struct {
	keySize          int
	contentsOffWidth int
	logical          []byte
	storage          []byte
	nestingLimit     int
}

// container decodes sibling nodes until r is exhausted.
func (d *decoder) container(r *wire.Reader, depth int) ([]Node, error) {
	var nodes []Node
	for r.Len() > 0 {
		n, err := d.node(r, depth)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (d *decoder) node(r *wire.Reader, depth int) (Node, error) {
	var frags [][]byte
	for {
		n, err := r.Uint8()
		if err != nil {
			return nil, fmt.Errorf("path stream: %w", err)
		}
		if n == valueMarker {
			break
		}
		frag, err := r.Bytes(int(n))
		if err != nil {
			return nil, fmt.Errorf("path fragment: %w", err)
		}
		frags = append(frags, frag)
	}

	value, err := r.Uint32BE()
	if err != nil {
		return nil, fmt.Errorf("path node value: %w", err)
	}
	if value&containerFlag == 0 {
		refs, err := d.references(value)
		if err != nil {
			return nil, err
		}
		return &Leaf{Path: frags, References: refs}, nil
	}

	// The container size counts the value field itself.
	size := int(value &^ containerFlag)
	if size < 4 {
		return nil, fmt.Errorf("%w: prefix container of %d bytes", casctype.ErrMalformed, size)
	}
	if depth >= d.nestingLimit {
		return nil, fmt.Errorf("%w: prefix nesting exceeds %d", casctype.ErrMalformed, d.nestingLimit)
	}
	sub, err := r.Sub(size - 4)
	if err != nil {
		return nil, fmt.Errorf("%w: prefix container extends beyond its parent", casctype.ErrMalformed)
	}
	children, err := d.container(sub, depth+1)
	if err != nil {
		return nil, err
	}
	return &Prefix{Path: frags, Children: children}, nil
}

func (d *decoder) references(off uint32) ([]Reference, error) {
	if uint64(off) > uint64(len(d.logical)) {
		return nil, fmt.Errorf("%w: logical offset %d beyond file reference table", casctype.ErrMalformed, off)
	}
	r := wire.NewReader(d.logical[off:])
	count, err := r.Uint8()
	if err != nil {
		return nil, fmt.Errorf("logical reference: %w", err)
	}

	refs := make([]Reference, count)
	for i := range refs {
		ref := &refs[i]
		if ref.Offset, err = r.Uint32BE(); err != nil {
			return nil, fmt.Errorf("logical reference: %w", err)
		}
		if ref.Size, err = r.Uint32BE(); err != nil {
			return nil, fmt.Errorf("logical reference: %w", err)
		}
		co, err := r.UintBE(d.contentsOffWidth)
		if err != nil {
			return nil, fmt.Errorf("logical reference: %w", err)
		}
		if err := d.storageReference(co, ref); err != nil {
			return nil, err
		}
	}
	return refs, nil
}

func (d *decoder) storageReference(off uint64, ref *Reference) error {
	if off > uint64(len(d.storage)) {
		return fmt.Errorf("%w: storage offset %d beyond storage reference table", casctype.ErrMalformed, off)
	}
	s := wire.NewReader(d.storage[off:])
	key, err := s.Bytes(d.keySize)
	if err != nil {
		return fmt.Errorf("storage reference: %w", err)
	}
	ref.EncodingKey = casctype.NewKey(key)
	if ref.PhysicalSize, err = s.Uint32BE(); err != nil {
		return fmt.Errorf("storage reference: %w", err)
	}
	if ref.Flag, err = s.Uint8(); err != nil {
		return fmt.Errorf("storage reference: %w", err)
	}
	if ref.ActualSize, err = s.Uint32BE(); err != nil {
		return fmt.Errorf("storage reference: %w", err)
	}
	return nil
}
