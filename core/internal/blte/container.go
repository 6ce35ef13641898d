package blte

import (
	"fmt"
	"slices"

	"github.com/casclib/casc/core/internal/casctype"
	"github.com/casclib/casc/core/internal/wire"
)

const (
	// ContainerHeaderSize is the size of the header preceding every region
	// stored in a data file.
	ContainerHeaderSize = 30

	containerKeySize = 16
)

// Container is the header of a stored region.
type Container struct {
	// Key is the encoding key of the region. It is stored byte-reversed.
	Key casctype.Key
	// Size is the length of the whole region, header included.
	Size  uint32
	Flags uint16
	// ChecksumA and ChecksumB are carried but not verified.
	ChecksumA uint32
	ChecksumB uint32
}

// DecodeContainer reads the container header at the start of region.
func DecodeContainer(region []byte) (Container, error) {
	r := wire.NewReader(region)
	raw, err := r.Bytes(containerKeySize)
	if err != nil {
		return Container{}, fmt.Errorf("%w: storage region of %d bytes has no container header",
			casctype.ErrMalformed, len(region))
	}
	key := slices.Clone(raw)
	slices.Reverse(key)

	var c Container
	c.Key = casctype.NewKey(key)
	if c.Size, err = r.Uint32LE(); err != nil {
		return Container{}, fmt.Errorf("container size: %w", err)
	}
	if c.Flags, err = r.Uint16LE(); err != nil {
		return Container{}, fmt.Errorf("container flags: %w", err)
	}
	if c.ChecksumA, err = r.Uint32LE(); err != nil {
		return Container{}, fmt.Errorf("container checksum: %w", err)
	}
	if c.ChecksumB, err = r.Uint32LE(); err != nil {
		return Container{}, fmt.Errorf("container checksum: %w", err)
	}
	return c, nil
}
