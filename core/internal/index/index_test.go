package index

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casclib/casc/core/internal/casctype"
	"github.com/casclib/casc/core/testutil"
)

func key(s string) []byte {
	return casctype.MustParseKey(s).Bytes()
}

func TestDecode(t *testing.T) {
	t.Parallel()

	layout := testutil.DefaultIndexLayout(4)
	data := testutil.Index(layout,
		testutil.IndexEntry{Key: key("300000000000000000"), DataOffset: 3<<30 | 0x100, FileSize: 30},
		testutil.IndexEntry{Key: key("100000000000000000"), DataOffset: 0x10, FileSize: 10},
		testutil.IndexEntry{Key: key("200000000000000000"), DataOffset: 1<<30 | 0x20, FileSize: 20},
	)

	f, err := Decode(data)
	require.NoError(t, err)

	assert.Equal(t, uint16(7), f.Version)
	assert.Equal(t, uint8(4), f.Bucket)
	assert.Equal(t, uint8(9), f.KeyLength)
	assert.Equal(t, uint8(5), f.OffsetLength)
	assert.Equal(t, uint8(4), f.SizeLength)
	assert.Equal(t, uint8(30), f.DataFileSizeBits)
	assert.Equal(t, uint64(1<<30), f.DataSizeMaximum)
	require.Equal(t, 3, f.Len())

	// File order is preserved.
	entries := slices.Collect(f.Entries())
	require.Len(t, entries, 3)
	assert.Equal(t, "300000000000000000", entries[0].Key.String())

	var sizes []uint64
	for _, e := range entries {
		sizes = append(sizes, e.FileSize)
	}
	assert.Equal(t, []uint64{30, 10, 20}, sizes)
}

func TestLookup(t *testing.T) {
	t.Parallel()

	f, err := Decode(testutil.Index(testutil.DefaultIndexLayout(0),
		testutil.IndexEntry{Key: key("a10000000000000000"), DataOffset: 1, FileSize: 1},
		testutil.IndexEntry{Key: key("b20000000000000000"), DataOffset: 2, FileSize: 2},
		testutil.IndexEntry{Key: key("c30000000000000000"), DataOffset: 3, FileSize: 3},
	))
	require.NoError(t, err)

	tests := []struct {
		name   string
		key    string
		want   uint64
		wantOK bool
	}{
		{"first", "a10000000000000000", 1, true},
		{"middle", "b20000000000000000", 2, true},
		{"last", "c30000000000000000", 3, true},
		{"longer key", "b20000000000000000ffffffffffffff", 2, true},
		{"short prefix", "b2", 2, true},
		{"absent between", "b30000000000000000", 0, false},
		{"absent before", "000000000000000000", 0, false},
		{"absent after", "ff0000000000000000", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e, ok := f.Lookup(casctype.MustParseKey(tt.key))
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.want, e.FileSize)
				assert.Equal(t, tt.want, e.DataOffset)
			}
		})
	}
}

func TestFieldEndianness(t *testing.T) {
	t.Parallel()

	// Offsets are big-endian and sizes little-endian on disk.
	f, err := Decode(testutil.Index(testutil.DefaultIndexLayout(0),
		testutil.IndexEntry{Key: key("010203040506070809"), DataOffset: 0x0102030405, FileSize: 0x0a0b0c0d},
	))
	require.NoError(t, err)
	e, ok := f.Lookup(casctype.MustParseKey("010203040506070809"))
	require.True(t, ok)
	assert.Equal(t, uint64(0x0102030405), e.DataOffset)
	assert.Equal(t, uint64(0x0a0b0c0d), e.FileSize)
}

func TestStoreIndexOffset(t *testing.T) {
	t.Parallel()

	f := &File{DataFileSizeBits: 30}
	off := uint64(5)<<30 | 0x1234
	assert.Equal(t, uint64(5), f.StoreIndex(off))
	assert.Equal(t, uint64(0x1234), f.StoreOffset(off))

	f = &File{DataFileSizeBits: 0}
	assert.Equal(t, uint64(7), f.StoreIndex(7))
	assert.Equal(t, uint64(0), f.StoreOffset(7))
}

func TestDecodeEmpty(t *testing.T) {
	t.Parallel()

	f, err := Decode(testutil.Index(testutil.DefaultIndexLayout(2)))
	require.NoError(t, err)
	assert.Zero(t, f.Len())
	_, ok := f.Lookup(casctype.MustParseKey("00"))
	assert.False(t, ok)
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	valid := testutil.Index(testutil.DefaultIndexLayout(0),
		testutil.IndexEntry{Key: key("a10000000000000000"), DataOffset: 1, FileSize: 1},
	)

	zeroWidth := testutil.DefaultIndexLayout(0)
	zeroWidth.KeyLength, zeroWidth.OffsetLength, zeroWidth.SizeLength = 0, 0, 0

	wide := testutil.DefaultIndexLayout(0)
	wide.OffsetLength = 9

	// An entries block one byte longer than a whole number of entries.
	trailing := append([]byte(nil), valid...)
	trailing = append(trailing, 0xAA)
	trailing[32]++

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated header length", valid[:3]},
		{"header block past end", valid[:12]},
		{"missing entries block", valid[:24]},
		{"entries block past end", valid[:len(valid)-1]},
		{"trailing entry bytes", trailing},
		{"zero entry length", testutil.Index(zeroWidth)},
		{"wide field", testutil.Index(wide)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(tt.data)
			require.ErrorIs(t, err, casctype.ErrMalformed)
		})
	}
}
