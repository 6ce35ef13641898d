package casc

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casclib/casc/cache/disk"
	"github.com/casclib/casc/cache/memory"
	casccore "github.com/casclib/casc/core"
	"github.com/casclib/casc/core/testutil"
)

// testFiles is the content of every file of the test installation by
// native path.
var testFiles = map[string]string{
	`data\a.txt`:        "alpha",
	`data\b.txt`:        "bravo",
	`data\sub\deep.txt`: "deep content",
	`datax\y.txt`:       "yankee",
}

func fileRef(b *testutil.ArchiveBuilder, name, data string) testutil.TVFSRef {
	return testutil.Ref(b.AddFile(name, []byte(data)), 0, uint32(len(data)))
}

// writeInstallation lays out testFiles, with data\sub a nested TVFS file.
// With ghost set, data\ghost.txt is listed but has no data in storage.
func writeInstallation(t *testing.T, ghost bool) testutil.Installation {
	t.Helper()
	b := testutil.NewArchiveBuilder()
	nested := testutil.TVFS(9, 1,
		testutil.DirFrags(nil, testutil.File("deep.txt", fileRef(b, "deep", "deep content"))),
	)
	nestedKey := b.AddTVFS("vfs-1", nested)

	files := []testutil.TVFSNode{
		testutil.File("a.txt", fileRef(b, "a", "alpha")),
		testutil.File("b.txt", fileRef(b, "b", "bravo")),
	}
	if ghost {
		files = append(files, testutil.File("ghost.txt", testutil.Ref(testutil.EncodingKey("ghost"), 0, 5)))
	}
	files = append(files, testutil.File("sub", testutil.Ref(nestedKey, 0, uint32(len(nested)))))

	b.AddTVFS("vfs-root", testutil.TVFS(9, 2,
		testutil.Dir("data",
			testutil.DirFrags(testutil.Frags(""), files...),
			testutil.FileFrags(testutil.Frags("x", "y.txt"), fileRef(b, "y", "yankee")),
		),
	))
	return b.Write(t)
}

func openTestArchive(t *testing.T, ghost bool, opts ...Option) *Archive {
	t.Helper()
	a, err := Open(writeInstallation(t, ghost).DataDir, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestOpen(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, false)
	assert.Equal(t, testutil.DefaultBuildKey, a.BuildKey())
	require.NotNil(t, a.BuildInfo())
	version, ok := a.BuildInfo().FieldByName(0, "Version")
	require.True(t, ok)
	assert.Equal(t, "1.0.0.1", version)
	_, ok = a.BuildConfig().Get("vfs-root")
	assert.True(t, ok)
	assert.NotNil(t, a.Storage())
	assert.NotNil(t, a.FileSystem())

	files, err := a.Files()
	require.NoError(t, err)
	var listed []string
	for _, r := range files {
		p, err := r.Path()
		require.NoError(t, err)
		listed = append(listed, p)
	}
	assert.Equal(t, []string{`data\a.txt`, `data\b.txt`, `data\sub\deep.txt`, `data\sub`, `datax\y.txt`}, listed)

	for path, want := range testFiles {
		got, err := a.ReadPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, string(got), path)
	}
	got, err := a.ReadPath(`DATA\A.TXT`)
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(got))

	_, err = a.Resolve(`data\missing.txt`)
	require.ErrorIs(t, err, ErrNotFound)
	require.ErrorIs(t, err, fs.ErrNotExist)
	_, err = a.Resolve(`dataxzz\y.txt`)
	require.ErrorIs(t, err, ErrNotFound, "a multi-fragment node must end on a separator")
}

func TestOpenWithBuildKey(t *testing.T) {
	t.Parallel()

	inst := writeInstallation(t, false)
	require.NoError(t, os.Remove(filepath.Join(inst.Root, casccore.BuildInfoFileName)))

	_, err := Open(inst.DataDir)
	require.ErrorIs(t, err, fs.ErrNotExist)

	a, err := Open(inst.DataDir, WithBuildKey(testutil.DefaultBuildKey))
	require.NoError(t, err)
	defer a.Close()
	assert.Nil(t, a.BuildInfo())
	got, err := a.ReadPath(`datax\y.txt`)
	require.NoError(t, err)
	assert.Equal(t, "yankee", string(got))
}

func TestOpenErrors(t *testing.T) {
	t.Parallel()

	t.Run("short build key", func(t *testing.T) {
		t.Parallel()
		_, err := Open(writeInstallation(t, false).DataDir, WithBuildKey("ab"))
		require.ErrorIs(t, err, ErrFormat)
	})

	t.Run("unknown build key", func(t *testing.T) {
		t.Parallel()
		_, err := Open(writeInstallation(t, false).DataDir, WithBuildKey("ffffffffffffffffffffffffffffffff"))
		require.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("no root TVFS", func(t *testing.T) {
		t.Parallel()
		b := testutil.NewArchiveBuilder()
		b.AddFile("orphan", []byte("orphan"))
		_, err := Open(b.Write(t).DataDir)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("missing data directory", func(t *testing.T) {
		t.Parallel()
		inst := writeInstallation(t, false)
		require.NoError(t, os.RemoveAll(filepath.Join(inst.DataDir, "data")))
		_, err := Open(inst.DataDir)
		require.ErrorIs(t, err, fs.ErrNotExist)
	})
}

func TestClose(t *testing.T) {
	t.Parallel()

	a, err := Open(writeInstallation(t, false).DataDir)
	require.NoError(t, err)
	_, err = a.ReadPath(`data\a.txt`)
	require.NoError(t, err)

	require.NoError(t, a.Close())
	require.NoError(t, a.Close())
	_, err = a.ReadPath(`data\a.txt`)
	require.ErrorIs(t, err, os.ErrClosed)
}

func TestPassThroughOptions(t *testing.T) {
	t.Parallel()

	a := openTestArchive(t, false,
		WithStorageOptions(casccore.WithMemoryMapping(true), casccore.WithOldIndexes(false)),
		WithFileSystemOptions(casccore.WithVerifyChunks(true)),
	)
	for path, want := range testFiles {
		got, err := a.ReadPath(path)
		require.NoError(t, err, path)
		assert.Equal(t, want, string(got), path)
	}
}

func TestReadWithMemoryCache(t *testing.T) {
	t.Parallel()

	c, err := memory.New()
	require.NoError(t, err)
	a := openTestArchive(t, false, WithCache(c))

	first, err := a.ReadPath(`data\a.txt`)
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(first))
	assert.Equal(t, 1, c.Len())

	first[0] = 'X'
	second, err := a.ReadPath(`data\a.txt`)
	require.NoError(t, err)
	assert.Equal(t, "alpha", string(second), "returned slices do not alias the cache")

	r, err := a.Resolve(`data\b.txt`)
	require.NoError(t, err)
	key, ok := r.EncodingKey()
	require.True(t, ok)
	require.NoError(t, c.Put(key.Bytes(), []byte("wrong size")))
	got, err := a.Read(r)
	require.NoError(t, err)
	assert.Equal(t, "bravo", string(got), "entries of the wrong size are ignored")
}

func TestReadWithDiskCache(t *testing.T) {
	t.Parallel()

	c, err := disk.New(t.TempDir())
	require.NoError(t, err)
	defer c.Close()
	a := openTestArchive(t, false, WithCache(c))

	for range 2 {
		got, err := a.ReadPath(`data\sub\deep.txt`)
		require.NoError(t, err)
		assert.Equal(t, "deep content", string(got))
	}
	assert.Positive(t, c.SizeBytes())

	// Cached content survives the archive.
	r, err := a.Resolve(`data\sub\deep.txt`)
	require.NoError(t, err)
	key, _ := r.EncodingKey()
	require.NoError(t, a.Close())
	cached, ok := c.Get(key.Bytes())
	require.True(t, ok)
	assert.Equal(t, "deep content", string(cached))
}

func TestReadConcurrentWithCache(t *testing.T) {
	t.Parallel()

	c, err := memory.New()
	require.NoError(t, err)
	a := openTestArchive(t, false, WithCache(c))

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := range 32 {
		wg.Go(func() {
			path := []string{`data\a.txt`, `data\b.txt`, `datax\y.txt`, `data\sub\deep.txt`}[i%4]
			got, err := a.ReadPath(path)
			if err != nil {
				errs <- err
				return
			}
			if string(got) != testFiles[path] {
				errs <- fmt.Errorf("%s: got %q", path, got)
			}
		})
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
	assert.Equal(t, 4, c.Len())
}
