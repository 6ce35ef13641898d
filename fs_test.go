package casc

import (
	"io"
	"io/fs"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSConformance(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, false)
	require.NoError(t, fstest.TestFS(a, "data/a.txt", "data/b.txt", "data/sub/deep.txt", "datax/y.txt"))
}

func TestFSWalk(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, false)
	var walked []string
	err := fs.WalkDir(a, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			walked = append(walked, p)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"data/a.txt", "data/b.txt", "data/sub/deep.txt", "datax/y.txt"}, walked)
}

func TestFSNestedArchiveIsDirectory(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, false)
	info, err := a.Stat("data/sub")
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Equal(t, "sub", info.Name())

	_, err = a.ReadFile("data/sub")
	require.ErrorIs(t, err, fs.ErrInvalid)

	entries, err := a.ReadDir("data/sub")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "deep.txt", entries[0].Name())

	// The nested file itself stays readable through its native path.
	content, err := a.ReadPath(`data\sub`)
	require.NoError(t, err)
	assert.NotEmpty(t, content)
}

func TestFSCaseInsensitive(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, false)
	got, err := a.ReadFile("DATA/A.TXT")
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(got))

	info, err := a.Stat("DataX/Y.txt")
	require.NoError(t, err)
	assert.Equal(t, "y.txt", info.Name())
	assert.Equal(t, int64(6), info.Size())
	assert.Equal(t, fs.FileMode(0o444), info.Mode())
	r, ok := info.Sys().(*PathResult)
	require.True(t, ok)
	assert.Equal(t, uint64(6), r.FileSize())
}

func TestFSErrors(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, false)
	tests := []struct {
		name    string
		op      func() error
		wantErr error
	}{
		{"open invalid", func() error { _, err := a.Open("../x"); return err }, fs.ErrInvalid},
		{"open missing", func() error { _, err := a.Open("data/nope"); return err }, fs.ErrNotExist},
		{"stat trailing slash", func() error { _, err := a.Stat("data/"); return err }, fs.ErrInvalid},
		{"readdir of file", func() error { _, err := a.ReadDir("data/a.txt"); return err }, fs.ErrInvalid},
		{"readfile missing", func() error { _, err := a.ReadFile("x.txt"); return err }, fs.ErrNotExist},
		{"backslash is not a separator", func() error { _, err := a.Stat(`data\a.txt`); return err }, fs.ErrNotExist},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.op()
			var pathErr *fs.PathError
			require.ErrorAs(t, err, &pathErr)
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestFSMissingFromStorage(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, true)
	info, err := a.Stat("data/ghost.txt")
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())

	f, err := a.Open("data/ghost.txt")
	require.NoError(t, err)
	defer f.Close()
	_, err = io.ReadAll(f)
	require.ErrorIs(t, err, ErrNotFound)

	_, err = a.ReadFile("data/ghost.txt")
	require.ErrorIs(t, err, fs.ErrNotExist)
}

func TestFSOpenFile(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, false)
	f, err := a.Open("data/b.txt")
	require.NoError(t, err)

	ra, ok := f.(io.ReaderAt)
	require.True(t, ok)
	buf := make([]byte, 3)
	n, err := ra.ReadAt(buf, 2)
	require.NoError(t, err)
	assert.Equal(t, "avo", string(buf[:n]))

	got, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, "bravo", string(got))

	require.NoError(t, f.Close())
	_, err = f.Read(buf)
	require.ErrorIs(t, err, fs.ErrClosed)
	require.ErrorIs(t, f.Close(), fs.ErrClosed)
}

func TestFSReadDirPaging(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, false)
	f, err := a.Open("data")
	require.NoError(t, err)
	defer f.Close()
	d, ok := f.(fs.ReadDirFile)
	require.True(t, ok)

	var names []string
	for {
		entries, err := d.ReadDir(2)
		for _, e := range entries {
			names = append(names, e.Name())
		}
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"a.txt", "b.txt", "sub"}, names)

	_, err = f.Read(make([]byte, 1))
	require.ErrorIs(t, err, fs.ErrInvalid)
}
