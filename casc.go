package casc

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/casclib/casc/cache"
	casccore "github.com/casclib/casc/core"
)

// Archive is an opened CASC installation: its build configuration, the
// storage holding file contents and the TVFS file system naming them.
//
// Archive implements fs.FS, fs.StatFS, fs.ReadFileFS and fs.ReadDirFS over
// lower-cased, slash-separated paths. It is safe for concurrent use.
type Archive struct {
	dataDir     string
	buildKey    string
	buildInfo   *casccore.BuildInfo // nil when opened WithBuildKey
	buildConfig *casccore.Config
	storage     *casccore.Storage
	fs          *casccore.FileSystem

	storageOpts []casccore.StorageOption
	fsOpts      []casccore.FileSystemOption
	cache       cache.Cache        // nil = no caching
	readGroup   singleflight.Group // zero value is valid
	logger      *slog.Logger

	files func() ([]*PathResult, error)
	tree  func() (*fsTree, error)

	closeOnce sync.Once
	closeErr  error
}

// log returns the logger, falling back to a discard logger if nil.
func (a *Archive) log() *slog.Logger {
	if a.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return a.logger
}

// Open opens the installation whose CASC data directory is dataDir.
//
// The build key is taken from the first record of the .build.info file in
// the parent of dataDir unless WithBuildKey is given. The build
// configuration it names must list the root TVFS file as vfs-root.
func Open(dataDir string, opts ...Option) (*Archive, error) {
	a := &Archive{dataDir: dataDir}
	for _, opt := range opts {
		opt(a)
	}

	if a.buildKey == "" {
		path := filepath.Join(filepath.Dir(filepath.Clean(dataDir)), casccore.BuildInfoFileName)
		info, err := casccore.ReadBuildInfo(path)
		if err != nil {
			return nil, err
		}
		key, err := info.BuildKey()
		if err != nil {
			return nil, err
		}
		a.buildInfo = info
		a.buildKey = key
	}

	config, err := casccore.LookupConfig(dataDir, a.buildKey)
	if err != nil {
		return nil, fmt.Errorf("build configuration: %w", err)
	}
	a.buildConfig = config

	storageOpts := append([]casccore.StorageOption{casccore.WithStorageLogger(a.logger)}, a.storageOpts...)
	a.storage, err = casccore.OpenStorage(dataDir, storageOpts...)
	if err != nil {
		return nil, err
	}

	fsOpts := append([]casccore.FileSystemOption{casccore.WithFileSystemLogger(a.logger)}, a.fsOpts...)
	a.fs, err = casccore.NewFileSystem(a.storage, config, fsOpts...)
	if err != nil {
		return nil, errors.Join(err, a.storage.Close())
	}

	a.files = sync.OnceValues(a.fs.AllFiles)
	a.tree = sync.OnceValues(a.buildTree)
	a.log().Debug("opened archive", "data_dir", dataDir, "build_key", a.buildKey,
		"index_entries", a.storage.EntryCount())
	return a, nil
}

// Close releases the data files. Reads after Close fail with os.ErrClosed.
func (a *Archive) Close() error {
	a.closeOnce.Do(func() {
		a.closeErr = a.storage.Close()
	})
	return a.closeErr
}

// DataDir returns the CASC data directory.
func (a *Archive) DataDir() string {
	return a.dataDir
}

// BuildKey returns the key of the build configuration in use.
func (a *Archive) BuildKey() string {
	return a.buildKey
}

// BuildInfo returns the parsed .build.info file, or nil when the archive
// was opened with an explicit build key.
func (a *Archive) BuildInfo() *casccore.BuildInfo {
	return a.buildInfo
}

// BuildConfig returns the build configuration.
func (a *Archive) BuildConfig() *casccore.Config {
	return a.buildConfig
}

// Storage returns the underlying storage.
func (a *Archive) Storage() *casccore.Storage {
	return a.storage
}

// FileSystem returns the underlying TVFS file system.
func (a *Archive) FileSystem() *casccore.FileSystem {
	return a.fs
}

// Files lists every file of the archive, nested TVFS files included, in
// tree order. The listing is computed once.
func (a *Archive) Files() ([]*PathResult, error) {
	return a.files()
}

// Resolve looks up a native path: fragments separated by backslashes,
// matched case-insensitively. It fails with ErrNotFound if no file matches.
func (a *Archive) Resolve(path string) (*PathResult, error) {
	r, err := a.fs.ResolvePath(casccore.ConvertFilePath(path))
	if err != nil {
		return nil, fmt.Errorf("resolve %q: %w", path, err)
	}
	return r, nil
}

// ReadPath reads the file at a native path; see Resolve.
func (a *Archive) ReadPath(path string) ([]byte, error) {
	r, err := a.Resolve(path)
	if err != nil {
		return nil, err
	}
	return a.Read(r)
}

// Read returns the content of a resolved file. Files backed by a single
// stored span go through the configured cache. The caller owns the
// returned slice.
func (a *Archive) Read(r *PathResult) ([]byte, error) {
	return a.readResult(r)
}
