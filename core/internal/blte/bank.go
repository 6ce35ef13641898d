package blte

import (
	"bytes"
	"crypto/md5"
	"fmt"
	"io"

	"github.com/casclib/casc/core/internal/casctype"
	"github.com/casclib/casc/core/internal/sizing"
)

const (
	modeRaw  = 'N'
	modeZlib = 'Z'
)

// BankStream yields the decoded chunks ("banks") of one stored region in
// order. It borrows the region and is not safe for concurrent use.
type BankStream struct {
	container Container
	chunks    []Chunk
	data      []byte
	bank      int
	hasBanks  bool

	expectKey casctype.Key
	checkKey  bool
	verify    bool
	inflate   *InflatePool
}

// StreamOption configures a BankStream.
type StreamOption func(*BankStream)

// WithExpectedKey requires the container key to match key and the
// container size to equal the region length exactly.
func WithExpectedKey(key casctype.Key) StreamOption {
	return func(s *BankStream) {
		s.expectKey = key
		s.checkKey = true
	}
}

// WithVerify enables MD5 verification of each chunk against the chunk table.
func WithVerify(enabled bool) StreamOption {
	return func(s *BankStream) {
		s.verify = enabled
	}
}

// WithInflatePool sets the pool used for zlib chunks.
func WithInflatePool(p *InflatePool) StreamOption {
	return func(s *BankStream) {
		s.inflate = p
	}
}

// NewBankStream decodes the container header and chunk table of region.
//
// Without WithExpectedKey the region may be longer than the container
// declares and is truncated to the declared size.
func NewBankStream(region []byte, opts ...StreamOption) (*BankStream, error) {
	s := &BankStream{}
	for _, opt := range opts {
		opt(s)
	}

	c, err := DecodeContainer(region)
	if err != nil {
		return nil, err
	}
	if s.checkKey && !c.Key.Equal(s.expectKey) {
		return nil, fmt.Errorf("%w: container key %s does not match %s",
			casctype.ErrMalformed, c.Key, s.expectKey)
	}
	size := uint64(c.Size)
	switch {
	case size < ContainerHeaderSize:
		return nil, fmt.Errorf("%w: container size %d smaller than its header", casctype.ErrMalformed, size)
	case uint64(len(region)) < size:
		return nil, fmt.Errorf("%w: region of %d bytes smaller than container size %d",
			casctype.ErrMalformed, len(region), size)
	case s.checkKey && uint64(len(region)) != size:
		return nil, fmt.Errorf("%w: region of %d bytes does not match container size %d",
			casctype.ErrMalformed, len(region), size)
	}
	s.container = c

	stream := region[ContainerHeaderSize:size]
	if len(stream) == 0 {
		return s, nil
	}
	chunks, start, err := DecodeChunks(stream)
	if err != nil {
		return nil, err
	}
	s.chunks = chunks
	s.data = stream[start:]
	s.hasBanks = true
	return s, nil
}

// Container returns the decoded container header.
func (s *BankStream) Container() Container {
	return s.container
}

// Chunks returns the chunk table. It is empty for raw single-chunk content.
func (s *BankStream) Chunks() []Chunk {
	return s.chunks
}

// HasNextBank reports whether another bank can be read.
func (s *BankStream) HasNextBank() bool {
	return s.hasBanks
}

// NextBankLength returns the decoded size of the next bank.
func (s *BankStream) NextBankLength() (uint64, error) {
	if !s.hasBanks {
		return 0, casctype.ErrEndOfStream
	}
	if len(s.chunks) == 0 {
		return uint64(len(s.data)), nil
	}
	return uint64(s.chunks[s.bank].DecompressedSize), nil
}

// ReadBank decodes the next bank into the start of dst and returns its
// length. dst must hold at least NextBankLength bytes.
func (s *BankStream) ReadBank(dst []byte) (int, error) {
	if !s.hasBanks {
		return 0, casctype.ErrEndOfStream
	}

	if len(s.chunks) == 0 {
		if len(dst) < len(s.data) {
			return 0, fmt.Errorf("%w: bank of %d bytes into %d byte buffer", io.ErrShortBuffer, len(s.data), len(dst))
		}
		n := copy(dst, s.data)
		s.data = s.data[n:]
		s.hasBanks = false
		return n, nil
	}

	c := s.chunks[s.bank]
	if uint64(len(s.data)) < uint64(c.CompressedSize) {
		return 0, fmt.Errorf("%w: chunk %d of %d bytes extends past region",
			casctype.ErrMalformed, s.bank, c.CompressedSize)
	}
	if c.CompressedSize == 0 {
		return 0, fmt.Errorf("%w: chunk %d has no encoding mode", casctype.ErrMalformed, s.bank)
	}
	decoded, err := sizing.ToInt(uint64(c.DecompressedSize), casctype.ErrMalformed)
	if err != nil {
		return 0, err
	}
	if len(dst) < decoded {
		return 0, fmt.Errorf("%w: bank of %d bytes into %d byte buffer", io.ErrShortBuffer, decoded, len(dst))
	}

	encoded := s.data[:c.CompressedSize]
	if s.verify {
		if sum := md5.Sum(encoded); !bytes.Equal(sum[:], c.Hash[:]) {
			return 0, fmt.Errorf("%w: chunk %d hash %x, want %x", casctype.ErrIntegrity, s.bank, sum, c.Hash)
		}
	}

	out := dst[:decoded]
	switch mode, payload := encoded[0], encoded[1:]; mode {
	case modeRaw:
		if len(payload) != decoded {
			return 0, fmt.Errorf("%w: raw chunk %d holds %d bytes, want %d",
				casctype.ErrMalformed, s.bank, len(payload), decoded)
		}
		copy(out, payload)
	case modeZlib:
		if err := s.inflate.Inflate(out, payload); err != nil {
			return 0, fmt.Errorf("chunk %d: %w", s.bank, err)
		}
	default:
		return 0, fmt.Errorf("%w: mode %q in chunk %d", casctype.ErrUnsupportedEncoding, mode, s.bank)
	}

	s.data = s.data[c.CompressedSize:]
	s.bank++
	if s.bank == len(s.chunks) {
		s.hasBanks = false
	}
	return decoded, nil
}

// Bank decodes the next bank into a newly allocated buffer.
func (s *BankStream) Bank() ([]byte, error) {
	n, err := s.NextBankLength()
	if err != nil {
		return nil, err
	}
	size, err := sizing.ToInt(n, casctype.ErrMalformed)
	if err != nil {
		return nil, err
	}
	buf := make([]byte, size)
	if _, err := s.ReadBank(buf); err != nil {
		return nil, err
	}
	return buf, nil
}
