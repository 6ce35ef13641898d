package blte

import (
	"bytes"
	"fmt"

	"github.com/casclib/casc/core/internal/casctype"
	"github.com/casclib/casc/core/internal/wire"
)

var magic = []byte("BLTE")

const (
	preambleSize  = 8
	chunkFlags    = 0x0F
	chunkInfoSize = 4 + 4 + 16
)

// Chunk describes one independently encoded chunk.
type Chunk struct {
	CompressedSize   uint32
	DecompressedSize uint32
	// Hash is the MD5 of the encoded chunk bytes, mode byte included.
	Hash [16]byte
}

// DecodeChunks decodes the chunk table at the start of b and returns it
// with the offset of the first chunk's encoded bytes.
//
// A header size of zero means the content is a single raw chunk: the table
// is empty and the data starts right after the 8 byte preamble.
func DecodeChunks(b []byte) ([]Chunk, int, error) {
	r := wire.NewReader(b)
	id, err := r.Bytes(len(magic))
	if err != nil || !bytes.Equal(id, magic) {
		return nil, 0, fmt.Errorf("%w: missing BLTE identifier", casctype.ErrMalformed)
	}
	headerSize, err := r.Uint32BE()
	if err != nil {
		return nil, 0, fmt.Errorf("BLTE preamble: %w", err)
	}
	if headerSize == 0 {
		return nil, preambleSize, nil
	}
	if uint64(headerSize) > uint64(len(b)) {
		return nil, 0, fmt.Errorf("%w: BLTE header of %d bytes extends past %d byte region",
			casctype.ErrMalformed, headerSize, len(b))
	}
	if headerSize < preambleSize {
		return nil, 0, fmt.Errorf("%w: BLTE header size %d overlaps preamble", casctype.ErrMalformed, headerSize)
	}

	h := wire.NewReader(b[preambleSize:headerSize])
	flags, err := h.Uint8()
	if err != nil {
		return nil, 0, fmt.Errorf("BLTE header: %w", err)
	}
	if flags != chunkFlags {
		return nil, 0, fmt.Errorf("%w: unknown BLTE flags %#x", casctype.ErrMalformed, flags)
	}
	count, err := h.UintBE(3)
	if err != nil {
		return nil, 0, fmt.Errorf("BLTE header: %w", err)
	}
	if count == 0 {
		return nil, 0, fmt.Errorf("%w: BLTE header declares zero chunks", casctype.ErrMalformed)
	}
	if count*chunkInfoSize > uint64(h.Len()) {
		return nil, 0, fmt.Errorf("%w: BLTE chunk table of %d entries exceeds header",
			casctype.ErrMalformed, count)
	}

	chunks := make([]Chunk, count)
	for i := range chunks {
		c := &chunks[i]
		c.CompressedSize, _ = h.Uint32BE()
		c.DecompressedSize, _ = h.Uint32BE()
		hash, _ := h.Bytes(len(c.Hash))
		copy(c.Hash[:], hash)
	}
	if h.Len() != 0 {
		return nil, 0, fmt.Errorf("%w: %d unprocessed BLTE header bytes", casctype.ErrMalformed, h.Len())
	}
	return chunks, int(headerSize), nil
}
