package casc

import (
	"bytes"
	"cmp"
	"io"
	"io/fs"
	"path"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	casccore "github.com/casclib/casc/core"
)

// Interface compliance.
var (
	_ fs.FS         = (*Archive)(nil)
	_ fs.StatFS     = (*Archive)(nil)
	_ fs.ReadFileFS = (*Archive)(nil)
	_ fs.ReadDirFS  = (*Archive)(nil)
)

// fsNode is a file or synthesized directory of the slash path view.
type fsNode struct {
	name     string
	result   *PathResult // nil for directories
	children []*fsNode   // sorted by name
}

func (n *fsNode) isDir() bool { return n.result == nil }

// fsTree maps folded paths (see casccore.FoldPath) to nodes. The root is ".".
type fsTree struct {
	nodes map[string]*fsNode
}

// slashName converts path fragments to a slash path. It reports false for
// fragments that cannot be represented as fs.FS path elements. Fragments
// holding a backslash are rejected too, so folded names stay unique.
func slashName(frags [][]byte) (string, bool) {
	elems := make([]string, 0, len(frags))
	for _, f := range frags {
		if len(f) == 0 || !utf8.Valid(f) || bytes.ContainsAny(f, `/\`) {
			return "", false
		}
		elems = append(elems, string(f))
	}
	name := strings.Join(elems, "/")
	return name, fs.ValidPath(name) && name != "."
}

// buildTree indexes Files by slash path. Directories are synthesized from
// file paths. A nested TVFS file is shown only as the directory of its
// contents.
func (a *Archive) buildTree() (*fsTree, error) {
	files, err := a.Files()
	if err != nil {
		return nil, err
	}
	t := &fsTree{nodes: map[string]*fsNode{".": {name: "."}}}
	for _, r := range files {
		name, ok := slashName(r.Fragments())
		if !ok {
			a.log().Debug("file not representable as slash path", "fragments", len(r.Fragments()))
			continue
		}
		if r.IsNestedArchive() {
			t.dir(name)
			continue
		}
		t.file(name, r)
	}
	for _, n := range t.nodes {
		slices.SortFunc(n.children, func(x, y *fsNode) int { return cmp.Compare(x.name, y.name) })
	}
	return t, nil
}

// dir returns the directory node for name, creating it and its parents.
// A file node in the way becomes a directory.
func (t *fsTree) dir(name string) *fsNode {
	key := casccore.FoldPath(name)
	if n, ok := t.nodes[key]; ok {
		n.result = nil
		return n
	}
	parent := t.dir(path.Dir(name))
	n := &fsNode{name: path.Base(name)}
	parent.children = append(parent.children, n)
	t.nodes[key] = n
	return n
}

func (t *fsTree) file(name string, r *PathResult) {
	key := casccore.FoldPath(name)
	if n, ok := t.nodes[key]; ok {
		if !n.isDir() {
			n.result = r
		}
		return
	}
	parent := t.dir(path.Dir(name))
	n := &fsNode{name: path.Base(name), result: r}
	parent.children = append(parent.children, n)
	t.nodes[key] = n
}

// lookup finds the node for a slash path.
func (a *Archive) lookup(op, name string) (*fsNode, error) {
	if !fs.ValidPath(name) {
		return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrInvalid}
	}
	t, err := a.tree()
	if err != nil {
		return nil, &fs.PathError{Op: op, Path: name, Err: err}
	}
	// Backslashes never occur in the view, and folding would turn them
	// into separators.
	if strings.Contains(name, casccore.PathSeparator) {
		return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
	}
	n, ok := t.nodes[casccore.FoldPath(name)]
	if !ok {
		return nil, &fs.PathError{Op: op, Path: name, Err: fs.ErrNotExist}
	}
	return n, nil
}

// Open implements fs.FS. Names are matched case-insensitively. File
// content is decoded on the first read.
func (a *Archive) Open(name string) (fs.File, error) {
	n, err := a.lookup("open", name)
	if err != nil {
		return nil, err
	}
	if n.isDir() {
		return &openDir{node: n, path: name}, nil
	}
	return &openFile{a: a, node: n, path: name}, nil
}

// Stat implements fs.StatFS.
func (a *Archive) Stat(name string) (fs.FileInfo, error) {
	n, err := a.lookup("stat", name)
	if err != nil {
		return nil, err
	}
	return nodeInfo{n}, nil
}

// ReadFile implements fs.ReadFileFS.
func (a *Archive) ReadFile(name string) ([]byte, error) {
	n, err := a.lookup("readfile", name)
	if err != nil {
		return nil, err
	}
	if n.isDir() {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: fs.ErrInvalid}
	}
	content, err := a.readResult(n.result)
	if err != nil {
		return nil, &fs.PathError{Op: "readfile", Path: name, Err: err}
	}
	return content, nil
}

// ReadDir implements fs.ReadDirFS. Entries are sorted by name.
func (a *Archive) ReadDir(name string) ([]fs.DirEntry, error) {
	n, err := a.lookup("readdir", name)
	if err != nil {
		return nil, err
	}
	if !n.isDir() {
		return nil, &fs.PathError{Op: "readdir", Path: name, Err: fs.ErrInvalid}
	}
	return dirEntries(n.children), nil
}

func dirEntries(nodes []*fsNode) []fs.DirEntry {
	entries := make([]fs.DirEntry, len(nodes))
	for i, c := range nodes {
		entries[i] = fs.FileInfoToDirEntry(nodeInfo{c})
	}
	return entries
}

// nodeInfo implements fs.FileInfo. Sys returns the *PathResult of files.
type nodeInfo struct {
	n *fsNode
}

func (i nodeInfo) Name() string { return i.n.name }

func (i nodeInfo) Size() int64 {
	if i.n.isDir() {
		return 0
	}
	return int64(min(i.n.result.FileSize(), 1<<63-1)) //nolint:gosec // clamped to int64 range
}

func (i nodeInfo) Mode() fs.FileMode {
	if i.n.isDir() {
		return fs.ModeDir | 0o555
	}
	return 0o444
}

func (i nodeInfo) ModTime() time.Time { return time.Time{} }
func (i nodeInfo) IsDir() bool        { return i.n.isDir() }

func (i nodeInfo) Sys() any {
	if i.n.isDir() {
		return nil
	}
	return i.n.result
}

// openFile is an fs.File whose content is decoded on first access.
type openFile struct {
	a      *Archive
	node   *fsNode
	path   string
	reader *bytes.Reader
	closed bool
}

// Interface compliance.
var (
	_ io.ReaderAt = (*openFile)(nil)
	_ io.Seeker   = (*openFile)(nil)
)

func (f *openFile) load(op string) error {
	if f.closed {
		return &fs.PathError{Op: op, Path: f.path, Err: fs.ErrClosed}
	}
	if f.reader != nil {
		return nil
	}
	content, err := f.a.readResult(f.node.result)
	if err != nil {
		return &fs.PathError{Op: op, Path: f.path, Err: err}
	}
	f.reader = bytes.NewReader(content)
	return nil
}

func (f *openFile) Read(p []byte) (int, error) {
	if err := f.load("read"); err != nil {
		return 0, err
	}
	return f.reader.Read(p)
}

func (f *openFile) ReadAt(p []byte, off int64) (int, error) {
	if err := f.load("read"); err != nil {
		return 0, err
	}
	return f.reader.ReadAt(p, off)
}

func (f *openFile) Seek(offset int64, whence int) (int64, error) {
	if err := f.load("seek"); err != nil {
		return 0, err
	}
	return f.reader.Seek(offset, whence)
}

func (f *openFile) Stat() (fs.FileInfo, error) {
	return nodeInfo{f.node}, nil
}

func (f *openFile) Close() error {
	if f.closed {
		return &fs.PathError{Op: "close", Path: f.path, Err: fs.ErrClosed}
	}
	f.closed = true
	f.reader = nil
	return nil
}

// openDir implements fs.ReadDirFile for synthesized directories.
type openDir struct {
	node   *fsNode
	path   string
	offset int
}

func (d *openDir) Read(_ []byte) (int, error) {
	return 0, &fs.PathError{Op: "read", Path: d.path, Err: fs.ErrInvalid}
}

func (d *openDir) Stat() (fs.FileInfo, error) {
	return nodeInfo{d.node}, nil
}

func (d *openDir) Close() error {
	return nil
}

func (d *openDir) ReadDir(n int) ([]fs.DirEntry, error) {
	rest := d.node.children[d.offset:]
	if n <= 0 {
		d.offset += len(rest)
		return dirEntries(rest), nil
	}
	if len(rest) == 0 {
		return nil, io.EOF
	}
	rest = rest[:min(n, len(rest))]
	d.offset += len(rest)
	return dirEntries(rest), nil
}
