package index

import (
	"fmt"
	"iter"
	"sort"

	"github.com/casclib/casc/core/internal/casctype"
	"github.com/casclib/casc/core/internal/wire"
)

const (
	// entryBlockAlignment is the alignment of the entries block relative to
	// the start of the file.
	entryBlockAlignment = 16

	headerPayloadSize = 2 + 6 + 8
)

// Entry locates the stored bytes of one encoding key.
type Entry struct {
	Key casctype.Key
	// DataOffset packs the data file number and the byte offset within it.
	DataOffset uint64
	FileSize   uint64
}

// File is a decoded bucket index.
//
// Entries are kept in file order in an arena, with a separate slice of
// positions sorted by key for binary search. File is immutable after Decode
// and safe for concurrent use. Entry keys alias the decoded buffer.
type File struct {
	Version          uint16
	Bucket           uint8
	SizeLength       uint8
	OffsetLength     uint8
	KeyLength        uint8
	DataFileSizeBits uint8
	DataSizeMaximum  uint64

	entries []Entry
	sorted  []int32
}

// Decode parses an index file. The buffer is retained; callers must not
// modify it afterwards.
func Decode(data []byte) (*File, error) {
	r := wire.NewReader(data)

	header, err := readBlock(r)
	if err != nil {
		return nil, fmt.Errorf("index header block: %w", err)
	}
	if header.Size() < headerPayloadSize {
		return nil, fmt.Errorf("%w: index header block is %d bytes", casctype.ErrMalformed, header.Size())
	}

	f := &File{}
	// Header reads are within the size checked above.
	f.Version, _ = header.Uint16LE()
	f.Bucket, _ = header.Uint8()
	_, _ = header.Uint8()
	f.SizeLength, _ = header.Uint8()
	f.OffsetLength, _ = header.Uint8()
	f.KeyLength, _ = header.Uint8()
	f.DataFileSizeBits, _ = header.Uint8()
	f.DataSizeMaximum, _ = header.Uint64LE()

	if f.SizeLength > 8 || f.OffsetLength > 8 {
		return nil, fmt.Errorf("%w: index field widths %d/%d exceed 8 bytes",
			casctype.ErrMalformed, f.OffsetLength, f.SizeLength)
	}
	if f.DataFileSizeBits > 64 {
		return nil, fmt.Errorf("%w: index data file size bits %d", casctype.ErrMalformed, f.DataFileSizeBits)
	}
	entryLen := int(f.SizeLength) + int(f.OffsetLength) + int(f.KeyLength)
	if entryLen == 0 {
		return nil, fmt.Errorf("%w: index entries have zero length", casctype.ErrMalformed)
	}

	aligned := (r.Offset() + entryBlockAlignment - 1) &^ (entryBlockAlignment - 1)
	if err := r.Seek(aligned); err != nil {
		return nil, fmt.Errorf("index entries block: %w", err)
	}
	block, err := readBlock(r)
	if err != nil {
		return nil, fmt.Errorf("index entries block: %w", err)
	}
	if block.Size()%entryLen != 0 {
		return nil, fmt.Errorf("%w: index entries block of %d bytes leaves %d trailing bytes",
			casctype.ErrMalformed, block.Size(), block.Size()%entryLen)
	}

	count := block.Size() / entryLen
	f.entries = make([]Entry, count)
	for i := range f.entries {
		// Reads cannot fail: the block holds exactly count entries.
		key, _ := block.Bytes(int(f.KeyLength))
		off, _ := block.UintBE(int(f.OffsetLength))
		size, _ := block.UintLE(int(f.SizeLength))
		f.entries[i] = Entry{Key: casctype.NewKey(key), DataOffset: off, FileSize: size}
	}

	f.sorted = make([]int32, count)
	for i := range f.sorted {
		f.sorted[i] = int32(i)
	}
	sort.SliceStable(f.sorted, func(a, b int) bool {
		return f.entries[f.sorted[a]].Key.Compare(f.entries[f.sorted[b]].Key) < 0
	})
	return f, nil
}

// readBlock reads one little hash block: a u32 length, a u32 hash and the
// payload. The hash is not verified.
func readBlock(r *wire.Reader) (*wire.Reader, error) {
	length, err := r.Uint32LE()
	if err != nil {
		return nil, err
	}
	if _, err := r.Uint32LE(); err != nil {
		return nil, err
	}
	if uint64(length) > uint64(r.Len()) {
		return nil, fmt.Errorf("%w: block of %d bytes with %d remaining", casctype.ErrMalformed, length, r.Len())
	}
	return r.Sub(int(length))
}

// Len returns the number of entries.
func (f *File) Len() int {
	return len(f.entries)
}

// Entries iterates over entries in file order.
func (f *File) Entries() iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for _, e := range f.entries {
			if !yield(e) {
				return
			}
		}
	}
}

// Lookup finds the entry for key using prefix comparison.
func (f *File) Lookup(key casctype.Key) (Entry, bool) {
	i := sort.Search(len(f.sorted), func(i int) bool {
		return f.entries[f.sorted[i]].Key.Compare(key) >= 0
	})
	if i < len(f.sorted) {
		if e := f.entries[f.sorted[i]]; e.Key.Equal(key) {
			return e, true
		}
	}
	return Entry{}, false
}

// StoreIndex returns the data file number encoded in a data offset.
func (f *File) StoreIndex(dataOffset uint64) uint64 {
	if f.DataFileSizeBits >= 64 {
		return 0
	}
	return dataOffset >> f.DataFileSizeBits
}

// StoreOffset returns the byte offset within the data file encoded in a
// data offset.
func (f *File) StoreOffset(dataOffset uint64) uint64 {
	if f.DataFileSizeBits >= 64 {
		return dataOffset
	}
	return dataOffset & (1<<f.DataFileSizeBits - 1)
}
