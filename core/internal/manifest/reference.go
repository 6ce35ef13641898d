package manifest

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/casclib/casc/core/internal/casctype"
)

const sizeSuffix = "-size"

// Reference locates a file named by a configuration entry.
type Reference struct {
	ContentKey  casctype.Key
	EncodingKey casctype.Key
	// Size is the decoded file size in bytes.
	Size uint64
	// StoredSize approximates the bytes used in storage.
	StoredSize uint64
}

// ReferenceFromConfig decodes the reference called name. The entry name
// holds "<content key> <encoding key>" and name-size holds
// "<size> <stored size>".
func ReferenceFromConfig(name string, c *Config) (Reference, error) {
	keys, ok := c.Get(name)
	if !ok {
		return Reference{}, fmt.Errorf("%w: configuration entry %q", casctype.ErrNotFound, name)
	}
	sizes, ok := c.Get(name + sizeSuffix)
	if !ok {
		return Reference{}, fmt.Errorf("%w: configuration entry %q", casctype.ErrNotFound, name+sizeSuffix)
	}

	keyFields := strings.Fields(keys)
	if len(keyFields) < 2 {
		return Reference{}, fmt.Errorf("%w: entry %q wants two keys, got %q", casctype.ErrMalformed, name, keys)
	}
	ckey, err := casctype.ParseKey(keyFields[0])
	if err != nil {
		return Reference{}, fmt.Errorf("entry %q content key: %w", name, err)
	}
	ekey, err := casctype.ParseKey(keyFields[1])
	if err != nil {
		return Reference{}, fmt.Errorf("entry %q encoding key: %w", name, err)
	}

	sizeFields := strings.Fields(sizes)
	if len(sizeFields) < 2 {
		return Reference{}, fmt.Errorf("%w: entry %q wants two sizes, got %q", casctype.ErrMalformed, name+sizeSuffix, sizes)
	}
	size, err := strconv.ParseUint(sizeFields[0], 10, 64)
	if err != nil {
		return Reference{}, fmt.Errorf("%w: entry %q size: %v", casctype.ErrFormat, name, err)
	}
	stored, err := strconv.ParseUint(sizeFields[1], 10, 64)
	if err != nil {
		return Reference{}, fmt.Errorf("%w: entry %q stored size: %v", casctype.ErrFormat, name, err)
	}

	return Reference{
		ContentKey:  ckey,
		EncodingKey: ekey,
		Size:        size,
		StoredSize:  stored,
	}, nil
}
