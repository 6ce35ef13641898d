package casc

import (
	"bytes"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"sync"

	"github.com/casclib/casc/core/internal/casctype"
	"github.com/casclib/casc/core/internal/manifest"
	"github.com/casclib/casc/core/internal/sizing"
	"github.com/casclib/casc/core/internal/tvfs"
)

const (
	vfsEntryPrefix = "vfs-"
	vfsRootEntry   = vfsEntryPrefix + "root"
)

// FileSystem resolves paths through the TVFS tree named by a build
// configuration and reads file contents from a Storage.
//
// Files whose single reference is itself a TVFS file listed in the
// configuration act as directories: their trees are decoded on first use
// and searched transparently.
//
// FileSystem is safe for concurrent use.
type FileSystem struct {
	storage *Storage
	root    *tvfs.File
	// nested is read-only after construction.
	nested casctype.KeyMap[manifest.Reference]

	verify bool
	logger *slog.Logger

	mu      sync.Mutex
	decoded casctype.KeyMap[*tvfs.File]
}

// log returns the logger, falling back to a discard logger if nil.
func (fs *FileSystem) log() *slog.Logger {
	if fs.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return fs.logger
}

// NewFileSystem mounts the TVFS tree of config. The entries vfs-1, vfs-2, ...
// up to the first missing number name the nested TVFS files, and vfs-root
// names the root, which is decoded immediately.
func NewFileSystem(storage *Storage, config *Config, opts ...FileSystemOption) (*FileSystem, error) {
	fs := &FileSystem{storage: storage}
	for _, opt := range opts {
		opt(fs)
	}

	for i := 1; ; i++ {
		name := vfsEntryPrefix + strconv.Itoa(i)
		if _, ok := config.Get(name); !ok {
			break
		}
		ref, err := manifest.ReferenceFromConfig(name, config)
		if err != nil {
			return nil, err
		}
		fs.nested.Put(ref.EncodingKey, ref)
	}

	rootRef, err := manifest.ReferenceFromConfig(vfsRootEntry, config)
	if err != nil {
		return nil, err
	}
	root, err := fs.decodeStored(rootRef)
	if err != nil {
		return nil, fmt.Errorf("root TVFS: %w", err)
	}
	fs.root = root
	fs.decoded.Put(rootRef.EncodingKey, root)
	fs.log().Debug("mounted file system", "root", rootRef.EncodingKey, "nested", fs.nested.Len())
	return fs, nil
}

// Storage returns the storage the file system reads from.
func (fs *FileSystem) Storage() *Storage {
	return fs.storage
}

// Root returns the decoded root TVFS file.
func (fs *FileSystem) Root() *TVFSFile {
	return fs.root
}

// fetchStored reads the whole content of ref, which must decode to exactly
// ref.Size bytes.
func (fs *FileSystem) fetchStored(ref manifest.Reference) ([]byte, error) {
	size, err := sizing.ToInt(ref.Size, casctype.ErrMalformed)
	if err != nil {
		return nil, fmt.Errorf("stored file of %d bytes: %w", ref.Size, err)
	}
	banks, err := fs.storage.openBanks(ref.EncodingKey, fs.verify)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, size)
	n := 0
	for banks.HasNextBank() {
		l, err := banks.NextBankLength()
		if err != nil {
			return nil, err
		}
		if l > uint64(size-n) {
			return nil, fmt.Errorf("%w: stored file %s is bigger than %d bytes",
				casctype.ErrMalformed, ref.EncodingKey, size)
		}
		read, err := banks.ReadBank(buf[n:])
		if err != nil {
			return nil, err
		}
		n += read
	}
	if n != size {
		return nil, fmt.Errorf("%w: stored file %s has %d of %d bytes",
			casctype.ErrMalformed, ref.EncodingKey, n, size)
	}
	return buf, nil
}

func (fs *FileSystem) decodeStored(ref manifest.Reference) (*tvfs.File, error) {
	data, err := fs.fetchStored(ref)
	if err != nil {
		return nil, err
	}
	return tvfs.Decode(data)
}

// isNested reports whether key names a nested TVFS file.
func (fs *FileSystem) isNested(key Key) bool {
	return !key.IsZero() && fs.nested.Has(key)
}

// ResolveTVFS returns the decoded TVFS file stored under key. It reports
// false if key does not name a nested TVFS file of this file system.
// Decoded files are cached for the lifetime of the file system.
func (fs *FileSystem) ResolveTVFS(key Key) (*TVFSFile, bool, error) {
	if key.IsZero() {
		return nil, false, nil
	}
	ref, ok := fs.nested.Get(key)
	if !ok {
		return nil, false, nil
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	if f, ok := fs.decoded.Get(ref.EncodingKey); ok {
		return f, true, nil
	}
	f, err := fs.decodeStored(ref)
	if err != nil {
		return nil, false, fmt.Errorf("nested TVFS %s: %w", ref.EncodingKey, err)
	}
	fs.decoded.Put(ref.EncodingKey, f)
	fs.log().Debug("decoded nested TVFS", "key", ref.EncodingKey, "roots", len(f.Roots))
	return f, true, nil
}

// nestedFile returns the nested TVFS file referenced by leaf, or nil if leaf
// is not a nested archive.
func (fs *FileSystem) nestedFile(leaf *tvfs.Leaf) (*tvfs.File, error) {
	if len(leaf.References) != 1 {
		return nil, nil
	}
	f, ok, err := fs.ResolveTVFS(leaf.References[0].EncodingKey)
	if err != nil || !ok {
		return nil, err
	}
	return f, nil
}

// ResolvePath finds the file at the given path fragments, descending into
// nested TVFS files where a path crosses one. Use ConvertFilePath to build
// fragments from a path string.
func (fs *FileSystem) ResolvePath(frags [][]byte) (*PathResult, error) {
	if len(frags) == 0 {
		return nil, fmt.Errorf("%w: empty path", casctype.ErrNotFound)
	}
	root, err := singleRoot(fs.root)
	if err != nil {
		return nil, err
	}
	m := &matcher{fs: fs, in: frags}
	leaf, err := m.resolve(root, 0, 0)
	if err != nil {
		return nil, err
	}
	if leaf == nil {
		return nil, fmt.Errorf("%w: path %q", casctype.ErrNotFound, bytes.Join(frags, []byte(PathSeparator)))
	}
	return &PathResult{fs: fs, leaf: leaf, fragments: frags}, nil
}

func singleRoot(f *tvfs.File) (tvfs.Node, error) {
	if len(f.Roots) != 1 {
		return nil, fmt.Errorf("%w: TVFS file has %d root nodes, want 1", casctype.ErrMalformed, len(f.Roots))
	}
	return f.Roots[0], nil
}

// matcher walks the tree with a cursor of (fragment index, byte offset)
// into the input fragments.
type matcher struct {
	fs *FileSystem
	in [][]byte
}

// fragment returns input fragment idx, or nil and false past the end.
func (m *matcher) fragment(idx int) ([]byte, bool) {
	if idx >= len(m.in) {
		return nil, false
	}
	return m.in[idx], true
}

// window returns up to n bytes of fragment f starting at off.
func window(f []byte, off, n int) []byte {
	return f[off:min(off+n, len(f))]
}

// equal reports whether every fragment of a node occurs at the cursor.
// The first fragment is matched at the cursor offset, later ones from the
// start of the following input fragments. Every fragment but the last must
// end exactly where its input fragment ends.
func (m *matcher) equal(frags [][]byte, idx, off int) bool {
	switch {
	case len(frags) == 0:
		return true
	case len(frags) == 1 && len(frags[0]) == 0:
		// A terminator matches the end of an input fragment.
		f, ok := m.fragment(idx)
		return ok && off == len(f)
	case len(m.in) < idx+len(frags):
		return false
	}
	for i, nf := range frags {
		f := m.in[idx+i]
		if i > 0 {
			off = 0
		}
		if !bytes.Equal(window(f, off, len(nf)), nf) {
			return false
		}
		if i < len(frags)-1 && off+len(nf) != len(f) {
			return false
		}
	}
	return true
}

// compare orders the input at the cursor against the first fragment of a
// sibling. Zero means the sibling is the only candidate, not a match.
func (m *matcher) compare(frags [][]byte, idx, off int) int {
	if len(frags) == 0 {
		return 0
	}
	f, ok := m.fragment(idx)
	if !ok {
		return -1
	}
	nf := frags[0]
	if len(nf) == 0 && len(f) > off {
		// Terminators sort before every other sibling.
		return 1
	}
	return bytes.Compare(window(f, off, len(nf)), nf)
}

// advance moves the cursor past a node that matched.
func advance(frags [][]byte, idx, off int) (int, int) {
	switch n := len(frags); {
	case n == 1 && len(frags[0]) == 0:
		return idx + 1, 0
	case n == 1:
		return idx, off + len(frags[0])
	case n > 1:
		return idx + n - 1, len(frags[n-1])
	}
	return idx, off
}

// resolve returns the leaf matching the rest of the input from node, or nil.
func (m *matcher) resolve(node tvfs.Node, idx, off int) (*tvfs.Leaf, error) {
	frags := node.Fragments()
	if !m.equal(frags, idx, off) {
		return nil, nil
	}
	idx, off = advance(frags, idx, off)

	switch n := node.(type) {
	case *tvfs.Prefix:
		lo, hi := 0, len(n.Children)-1
		for lo <= hi {
			mid := int(uint(lo+hi) >> 1)
			child := n.Children[mid]
			switch c := m.compare(child.Fragments(), idx, off); {
			case c == 0:
				return m.resolve(child, idx, off)
			case c < 0:
				hi = mid - 1
			default:
				lo = mid + 1
			}
		}
		return nil, nil

	case *tvfs.Leaf:
		last := len(m.in) - 1
		if idx == last && off == len(m.in[last]) {
			return n, nil
		}
		f, ok := m.fragment(idx)
		if !ok || off != len(f) {
			return nil, nil
		}
		nested, err := m.fs.nestedFile(n)
		if err != nil || nested == nil {
			return nil, err
		}
		root, err := singleRoot(nested)
		if err != nil {
			return nil, err
		}
		return m.resolve(root, idx+1, 0)
	}
	return nil, fmt.Errorf("%w: unknown TVFS node %T", casctype.ErrMalformed, node)
}

// AllFiles lists every file with exactly one reference, expanding nested
// TVFS files as directories. A nested TVFS file is listed itself as well as
// its contents.
func (fs *FileSystem) AllFiles() ([]*PathResult, error) {
	w := &walker{fs: fs}
	for _, root := range fs.root.Roots {
		if err := w.walk(root, [][]byte{{}}); err != nil {
			return nil, err
		}
	}
	return w.results, nil
}

type walker struct {
	fs      *FileSystem
	results []*PathResult
	// chain holds the keys of the nested files being expanded.
	chain []Key
}

// mergeFragments appends the fragments of a node to the path of its parent.
// The first node fragment extends the last parent fragment unless the node
// is a lone terminator, which opens a new fragment.
func mergeFragments(parent, frags [][]byte) [][]byte {
	if len(frags) == 0 {
		return parent
	}
	first := frags[0]
	base := len(parent)
	if len(frags) > 1 || len(first) > 0 {
		base--
	}

	out := make([][]byte, base+len(frags))
	copy(out, parent)
	if base < len(parent) {
		if len(first) > 0 {
			out[base] = slices.Concat(parent[base], first)
		}
	} else {
		out[base] = first
	}
	copy(out[base+1:], frags[1:])
	return out
}

func (w *walker) walk(node tvfs.Node, parent [][]byte) error {
	cur := mergeFragments(parent, node.Fragments())

	switch n := node.(type) {
	case *tvfs.Prefix:
		for _, child := range n.Children {
			if err := w.walk(child, cur); err != nil {
				return err
			}
		}
		return nil

	case *tvfs.Leaf:
		if len(n.References) != 1 {
			return nil
		}
		nested, err := w.fs.nestedFile(n)
		if err != nil {
			return err
		}
		if nested != nil {
			if err := w.expand(n.References[0].EncodingKey, nested, cur); err != nil {
				return err
			}
		}
		w.results = append(w.results, &PathResult{fs: w.fs, leaf: n, fragments: cur})
		return nil
	}
	return fmt.Errorf("%w: unknown TVFS node %T", casctype.ErrMalformed, node)
}

func (w *walker) expand(key Key, nested *tvfs.File, cur [][]byte) error {
	for _, k := range w.chain {
		if k.Equal(key) {
			return fmt.Errorf("%w: nested TVFS %s contains itself", casctype.ErrMalformed, key)
		}
	}
	w.chain = append(w.chain, key)
	defer func() { w.chain = w.chain[:len(w.chain)-1] }()

	dir := append(slices.Clip(cur), []byte{})
	for _, root := range nested.Roots {
		if err := w.walk(root, dir); err != nil {
			return err
		}
	}
	return nil
}
