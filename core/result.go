package casc

import (
	"fmt"
	"io"

	"github.com/casclib/casc/core/internal/casctype"
	"github.com/casclib/casc/core/internal/sizing"
	"github.com/casclib/casc/core/internal/tvfs"
)

// PathResult is a file found in a FileSystem.
type PathResult struct {
	fs        *FileSystem
	leaf      *tvfs.Leaf
	fragments [][]byte
}

// Fragments returns the path fragments of the file. The slice must not be
// modified.
func (r *PathResult) Fragments() [][]byte {
	return r.fragments
}

// Path returns the fragments joined with PathSeparator.
// It fails with ErrFormat if a fragment is not valid UTF-8.
func (r *PathResult) Path() (string, error) {
	return JoinPathFragments(r.fragments)
}

// References returns the stored spans making up the file.
func (r *PathResult) References() []Reference {
	return r.leaf.References
}

// EncodingKey returns the key of the file's only reference. It reports false
// for files made of zero or several references.
func (r *PathResult) EncodingKey() (Key, bool) {
	if len(r.leaf.References) != 1 {
		return Key{}, false
	}
	return r.leaf.References[0].EncodingKey, true
}

// ExistsInStorage reports whether every reference of the file has an index
// entry. The TVFS tree lists files that may be absent from a partial
// installation; only present files can be read.
func (r *PathResult) ExistsInStorage() bool {
	for _, ref := range r.leaf.References {
		if !r.fs.storage.HasBanks(ref.EncodingKey) {
			return false
		}
	}
	return true
}

// FileSize returns the size of the file in bytes.
func (r *PathResult) FileSize() uint64 {
	var size uint64
	for _, ref := range r.leaf.References {
		size = max(size, uint64(ref.Offset)+uint64(ref.Size))
	}
	return size
}

// IsNestedArchive reports whether the file is a nested TVFS file of the file
// system. Such files act as directories in paths but also have content.
func (r *PathResult) IsNestedArchive() bool {
	key, ok := r.EncodingKey()
	return ok && r.fs.isNested(key)
}

// ReadFile reads the whole file into dst and returns dst[:FileSize()]. A nil
// dst allocates a new buffer; otherwise dst must hold FileSize bytes or
// ReadFile fails with io.ErrShortBuffer.
func (r *PathResult) ReadFile(dst []byte) ([]byte, error) {
	size, err := sizing.ToInt(r.FileSize(), casctype.ErrMalformed)
	if err != nil {
		return nil, fmt.Errorf("file of %d bytes: %w", r.FileSize(), err)
	}
	if dst == nil {
		dst = make([]byte, size)
	}
	if len(dst) < size {
		return nil, fmt.Errorf("%w: file of %d bytes into %d byte buffer", io.ErrShortBuffer, size, len(dst))
	}
	out := dst[:size]

	for i, ref := range r.leaf.References {
		if err := r.readReference(out, ref); err != nil {
			return nil, fmt.Errorf("reference %d: %w", i, err)
		}
	}
	return out, nil
}

// readReference decodes the banks of ref into out[ref.Offset:ref.Offset+ref.Size].
func (r *PathResult) readReference(out []byte, ref Reference) error {
	if ref.Size != ref.ActualSize {
		return fmt.Errorf("%w: span of %d bytes backed by %d byte chunk",
			casctype.ErrMalformed, ref.Size, ref.ActualSize)
	}
	banks, err := r.fs.storage.openBanks(ref.EncodingKey, r.fs.verify)
	if err != nil {
		return err
	}

	span := out[ref.Offset : uint64(ref.Offset)+uint64(ref.Size)]
	n := 0
	for banks.HasNextBank() {
		l, err := banks.NextBankLength()
		if err != nil {
			return err
		}
		if l > uint64(len(span)-n) {
			return fmt.Errorf("%w: stored data for %s exceeds %d byte span",
				casctype.ErrMalformed, ref.EncodingKey, len(span))
		}
		read, err := banks.ReadBank(span[n:])
		if err != nil {
			return err
		}
		n += read
	}
	if n != len(span) {
		return fmt.Errorf("%w: stored data for %s has %d of %d bytes",
			casctype.ErrMalformed, ref.EncodingKey, n, len(span))
	}
	return nil
}
