package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// DefaultBuildKey is the build configuration key written by ArchiveBuilder.
const DefaultBuildKey = "0123456789abcdef0123456789abcdef"

// Installation describes an archive written to disk.
type Installation struct {
	// Root is the install directory holding .build.info.
	Root string
	// DataDir is the CASC data directory, Root/Data.
	DataDir string
}

type storedRegion struct {
	key    []byte
	region []byte
}

// ArchiveBuilder assembles an on-disk CASC installation: sixteen bucket
// indexes, one data file, a build configuration and a build info file.
type ArchiveBuilder struct {
	layout  IndexLayout
	regions []storedRegion
	config  []string
	extra   []extraFile
}

type extraFile struct {
	name string
	data []byte
}

// NewArchiveBuilder returns a builder using DefaultIndexLayout.
func NewArchiveBuilder() *ArchiveBuilder {
	return &ArchiveBuilder{layout: DefaultIndexLayout(0)}
}

// AddContent stores BLTE content under key.
func (b *ArchiveBuilder) AddContent(key, content []byte) {
	b.AddRegion(key, Container(key, content))
}

// AddRegion stores a raw region, container header included, under key.
func (b *ArchiveBuilder) AddRegion(key, region []byte) {
	b.regions = append(b.regions, storedRegion{key: key, region: region})
}

// AddFile stores data as a single zlib chunk under a key derived from name
// and returns the key.
func (b *ArchiveBuilder) AddFile(name string, data []byte) []byte {
	key := EncodingKey(name)
	b.AddContent(key, BLTE(ZlibChunk(data)))
	return key
}

// AddTVFS stores a TVFS file and registers it as configuration entry name,
// for example "vfs-root" or "vfs-1". It returns the encoding key.
func (b *ArchiveBuilder) AddTVFS(name string, tvfs []byte) []byte {
	key := EncodingKey("tvfs:" + name)
	b.AddContent(key, BLTE(ZlibChunk(tvfs)))
	ckey := EncodingKey("content:" + name)
	b.SetConfig(name, fmt.Sprintf("%x %x", ckey, key))
	b.SetConfig(name+"-size", fmt.Sprintf("%d %d", len(tvfs), len(tvfs)))
	return key
}

// SetConfig appends an entry to the build configuration.
func (b *ArchiveBuilder) SetConfig(key, value string) {
	b.config = append(b.config, key, value)
}

// AddDataFile writes an additional raw file into the data/ directory.
func (b *ArchiveBuilder) AddDataFile(name string, data []byte) {
	b.extra = append(b.extra, extraFile{name: name, data: data})
}

// Write lays the installation out below a fresh temporary directory.
func (b *ArchiveBuilder) Write(t testing.TB) Installation {
	t.Helper()
	root := t.TempDir()
	inst := Installation{Root: root, DataDir: filepath.Join(root, "Data")}
	dataDir := filepath.Join(inst.DataDir, "data")
	mustMkdir(t, dataDir)

	var data []byte
	buckets := make([][]IndexEntry, 16)
	for _, r := range b.regions {
		key := make([]byte, b.layout.KeyLength)
		copy(key, r.key)
		bucket := BucketIndex(key)
		buckets[bucket] = append(buckets[bucket], IndexEntry{
			Key:        key,
			DataOffset: uint64(len(data)),
			FileSize:   uint64(len(r.region)),
		})
		data = append(data, r.region...)
	}
	mustWrite(t, filepath.Join(dataDir, "data.000"), data)

	for i, entries := range buckets {
		l := b.layout
		l.Bucket = uint8(i)
		// An older, empty copy must be ignored in favour of version 2.
		mustWrite(t, filepath.Join(dataDir, fmt.Sprintf("%02x%08x.idx", i, 1)), Index(l))
		mustWrite(t, filepath.Join(dataDir, fmt.Sprintf("%02x%08x.idx", i, 2)), Index(l, entries...))
	}
	for _, f := range b.extra {
		mustWrite(t, filepath.Join(dataDir, f.name), f.data)
	}

	configPath := filepath.Join(inst.DataDir, "config", DefaultBuildKey[0:2], DefaultBuildKey[2:4], DefaultBuildKey)
	mustMkdir(t, filepath.Dir(configPath))
	mustWrite(t, configPath, ConfigText(b.config...))

	info := strings.Join([]string{
		"Branch!STRING:0|Active!DEC:1|Build Key!HEX:16|Version!STRING:0",
		"eu|1|" + DefaultBuildKey + "|1.0.0.1",
		"",
	}, "\n")
	mustWrite(t, filepath.Join(root, ".build.info"), []byte(info))
	return inst
}

func mustMkdir(t testing.TB, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
}

func mustWrite(t testing.TB, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
