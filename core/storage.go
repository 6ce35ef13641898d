package casc

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/casclib/casc/core/internal/blte"
	"github.com/casclib/casc/core/internal/casctype"
	"github.com/casclib/casc/core/internal/index"
	"github.com/casclib/casc/core/internal/platform"
)

const (
	// BucketCount is the number of index buckets partitioning the key space.
	BucketCount = 16

	storageDirName = "data"
	indexSuffix    = ".idx"
	// Index file names are two hex digits of bucket and eight of version.
	indexNameLen = 10

	maxDataFileIndex = 999
)

// BucketIndex returns the index bucket, in [0, BucketCount), that holds key.
// All key bytes are XOR-folded and the two nibbles of the result combined.
func BucketIndex(key []byte) int {
	var acc byte
	for _, b := range key {
		acc ^= b
	}
	return int(acc&0xF ^ acc>>4&0xF)
}

// Storage locates stored regions by encoding key through the bucket indexes
// of a data directory and reads them from its data files.
//
// Storage is safe for concurrent use, except that Close must not run
// concurrently with reads.
type Storage struct {
	dataDir string
	indexes  [BucketCount]*index.File
	versions [BucketCount]uint64
	keyLen   int
	entries int

	useOld  bool
	mmap    bool
	logger  *slog.Logger
	inflate *blte.InflatePool

	mu     sync.Mutex
	files  map[uint64]*dataFile
	closed bool
}

// log returns the logger, falling back to a discard logger if nil.
func (s *Storage) log() *slog.Logger {
	if s.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return s.logger
}

type indexCandidate struct {
	name    string
	version uint64
}

// OpenStorage loads the bucket indexes below dataDir/data. Every bucket must
// have at least one index copy and all buckets must agree on key length.
// Data files are opened on first use.
func OpenStorage(dataDir string, opts ...StorageOption) (*Storage, error) {
	s := &Storage{
		dataDir: dataDir,
		inflate: blte.NewInflatePool(),
		files:   make(map[uint64]*dataFile),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.mmap && !platform.MmapSupported {
		s.log().Debug("memory mapping unsupported, reading data files directly")
		s.mmap = false
	}

	dir := filepath.Join(dataDir, storageDirName)
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read storage directory: %w", err)
	}

	var chosen [BucketCount]*indexCandidate
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || !strings.HasSuffix(name, indexSuffix) {
			continue
		}
		bucket, version, ok := parseIndexName(strings.TrimSuffix(name, indexSuffix))
		if !ok {
			s.log().Debug("skipping index file with unexpected name", "name", name)
			continue
		}
		cur := chosen[bucket]
		if cur == nil || s.prefer(version, cur.version) {
			chosen[bucket] = &indexCandidate{name: name, version: version}
		}
	}

	for bucket, c := range chosen {
		if c == nil {
			return nil, fmt.Errorf("%w: no index file for bucket %d", casctype.ErrMalformed, bucket)
		}
		data, err := os.ReadFile(filepath.Join(dir, c.name))
		if err != nil {
			return nil, fmt.Errorf("read index: %w", err)
		}
		f, err := index.Decode(data)
		if err != nil {
			return nil, fmt.Errorf("index %s: %w", c.name, err)
		}
		if bucket == 0 {
			s.keyLen = int(f.KeyLength)
		} else if int(f.KeyLength) != s.keyLen {
			return nil, fmt.Errorf("%w: index %s has key length %d, bucket 0 has %d",
				casctype.ErrMalformed, c.name, f.KeyLength, s.keyLen)
		}
		s.indexes[bucket] = f
		s.versions[bucket] = c.version
		s.entries += f.Len()
		s.log().Debug("loaded index", "bucket", bucket, "version", c.version, "entries", f.Len())
	}
	return s, nil
}

func (s *Storage) prefer(candidate, current uint64) bool {
	if s.useOld {
		return candidate < current
	}
	return candidate > current
}

func parseIndexName(stem string) (bucket int, version uint64, ok bool) {
	if len(stem) != indexNameLen {
		return 0, 0, false
	}
	b, err := strconv.ParseUint(stem[:2], 16, 8)
	if err != nil || b >= BucketCount {
		return 0, 0, false
	}
	v, err := strconv.ParseUint(stem[2:], 16, 32)
	if err != nil {
		return 0, 0, false
	}
	return int(b), v, true
}

// KeyLength returns the number of key bytes stored in the indexes.
func (s *Storage) KeyLength() int {
	return s.keyLen
}

// EntryCount returns the total number of index entries over all buckets.
func (s *Storage) EntryCount() int {
	return s.entries
}

// BucketSummary describes the index copy loaded for one bucket.
type BucketSummary struct {
	Bucket  int
	Version uint64 // from the index file name
	Entries int

	// StoredBytes sums the sizes of the indexed regions.
	StoredBytes uint64

	// DataFiles counts the distinct data files the entries point into.
	DataFiles int
}

// Buckets summarizes the loaded index of every bucket, in bucket order.
func (s *Storage) Buckets() []BucketSummary {
	out := make([]BucketSummary, 0, BucketCount)
	for i, f := range s.indexes {
		sum := BucketSummary{Bucket: i, Version: s.versions[i], Entries: f.Len()}
		files := make(map[uint64]struct{})
		for e := range f.Entries() {
			sum.StoredBytes += e.FileSize
			files[f.StoreIndex(e.DataOffset)] = struct{}{}
		}
		sum.DataFiles = len(files)
		out = append(out, sum)
	}
	return out
}

// lookup finds the index entry for key, truncating it to the index key length.
func (s *Storage) lookup(key Key) (index.Entry, *index.File, bool) {
	b := key.Bytes()
	if len(b) > s.keyLen {
		b = b[:s.keyLen]
	}
	f := s.indexes[BucketIndex(b)]
	e, ok := f.Lookup(casctype.NewKey(b))
	return e, f, ok
}

// HasBanks reports whether key has an index entry.
func (s *Storage) HasBanks(key Key) bool {
	_, _, ok := s.lookup(key)
	return ok
}

// GetBanks returns a bank stream over the region stored under key.
// It fails with ErrNotFound if no index entry exists.
func (s *Storage) GetBanks(key Key) (*BankStream, error) {
	return s.openBanks(key, false)
}

func (s *Storage) openBanks(key Key, verify bool) (*BankStream, error) {
	e, f, ok := s.lookup(key)
	if !ok {
		return nil, fmt.Errorf("%w: encoding key %s", casctype.ErrNotFound, key)
	}
	region, err := s.region(f, e)
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", key, err)
	}
	banks, err := blte.NewBankStream(region,
		blte.WithExpectedKey(e.Key),
		blte.WithVerify(verify),
		blte.WithInflatePool(s.inflate),
	)
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", key, err)
	}
	return banks, nil
}

func (s *Storage) region(f *index.File, e index.Entry) ([]byte, error) {
	n := f.StoreIndex(e.DataOffset)
	if n > maxDataFileIndex {
		return nil, fmt.Errorf("%w: data file index %d", casctype.ErrMalformed, n)
	}
	df, err := s.dataFile(n)
	if err != nil {
		return nil, err
	}
	return df.region(f.StoreOffset(e.DataOffset), e.FileSize)
}

// dataFile returns data file n, opening it on first use.
func (s *Storage) dataFile(n uint64) (*dataFile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, fmt.Errorf("data file %d: %w", n, os.ErrClosed)
	}
	if df, ok := s.files[n]; ok {
		return df, nil
	}
	path := filepath.Join(s.dataDir, storageDirName, fmt.Sprintf("data.%03d", n))
	df, err := openDataFile(path, s.mmap)
	if err != nil {
		return nil, fmt.Errorf("open data file: %w", err)
	}
	s.files[n] = df
	s.log().Debug("opened data file", "path", path, "size", df.size, "mapped", df.mapped != nil)
	return df, nil
}

// Close releases every open data file. Regions obtained before Close must
// not be used afterwards. Close is idempotent.
func (s *Storage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var errs []error
	for n, df := range s.files {
		if err := df.close(); err != nil {
			errs = append(errs, fmt.Errorf("close data file %d: %w", n, err))
		}
	}
	s.files = nil
	return errors.Join(errs...)
}
