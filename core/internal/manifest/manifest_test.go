package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casclib/casc/core/internal/casctype"
)

const sampleBuildInfo = "Branch!STRING:0|Active!DEC:1|Build Key!HEX:16|CDN Key!HEX:16|Tags!WEIRD:0\n" +
	"eu|1|0123456789abcdef0123456789abcdef|fedcba9876543210fedcba9876543210|Windows x86_64\n" +
	"us|0|00112233445566778899aabbccddeeff||\n"

func TestParseBuildInfo(t *testing.T) {
	t.Parallel()

	bi, err := ParseBuildInfo(strings.NewReader(sampleBuildInfo))
	require.NoError(t, err)

	assert.Equal(t, 5, bi.FieldCount())
	assert.Equal(t, 2, bi.RecordCount())

	fd, ok := bi.Descriptor(2)
	require.True(t, ok)
	assert.Equal(t, FieldDescriptor{Name: "Build Key", Type: FieldHex, Size: 16}, fd)

	fd, ok = bi.Descriptor(4)
	require.True(t, ok)
	assert.Equal(t, FieldUnsupported, fd.Type)
	assert.Equal(t, "UNSUPPORTED", fd.Type.String())

	_, ok = bi.Descriptor(5)
	assert.False(t, ok)

	v, ok := bi.Field(0, 0)
	require.True(t, ok)
	assert.Equal(t, "eu", v)

	v, ok = bi.FieldByName(1, "CDN Key")
	require.True(t, ok)
	assert.Empty(t, v)

	_, ok = bi.FieldByName(0, "Missing")
	assert.False(t, ok)
	_, ok = bi.Field(2, 0)
	assert.False(t, ok)

	key, err := bi.BuildKey()
	require.NoError(t, err)
	assert.Equal(t, "0123456789abcdef0123456789abcdef", key)
}

func TestParseBuildInfoErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"empty", "", casctype.ErrMalformed},
		{"missing name terminator", "Branch:STRING:0\n", casctype.ErrFormat},
		{"missing type terminator", "Branch!STRING\n", casctype.ErrFormat},
		{"bad size", "Branch!STRING:x\n", casctype.ErrFormat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseBuildInfo(strings.NewReader(tt.input))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBuildKeyMissing(t *testing.T) {
	t.Parallel()

	bi, err := ParseBuildInfo(strings.NewReader("Branch!STRING:0\neu\n"))
	require.NoError(t, err)
	_, err = bi.BuildKey()
	require.ErrorIs(t, err, casctype.ErrMalformed)

	bi, err = ParseBuildInfo(strings.NewReader("Build Key!HEX:16\n"))
	require.NoError(t, err)
	_, err = bi.BuildKey()
	require.ErrorIs(t, err, casctype.ErrMalformed)
}

func TestReadBuildInfo(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, BuildInfoFileName)
	require.NoError(t, os.WriteFile(path, []byte(sampleBuildInfo), 0o644))

	bi, err := ReadBuildInfo(path)
	require.NoError(t, err)
	assert.Equal(t, 2, bi.RecordCount())

	_, err = ReadBuildInfo(filepath.Join(dir, "missing"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseConfig(t *testing.T) {
	t.Parallel()

	cfg, err := ParseConfig([]byte(strings.Join([]string{
		"# Build Configuration",
		"",
		"root = 0011 2233",
		"  vfs-root = aabb ccdd   # trailing comment",
		"vfs-root-size=100 90",
		"empty =",
		"   # indented comment",
		"spaced key = a = b",
	}, "\n")))
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Len())
	v, ok := cfg.Get("root")
	require.True(t, ok)
	assert.Equal(t, "0011 2233", v)

	v, ok = cfg.Get("vfs-root")
	require.True(t, ok)
	assert.Equal(t, "aabb ccdd", v)

	v, ok = cfg.Get("empty")
	require.True(t, ok)
	assert.Empty(t, v)

	v, ok = cfg.Get("spaced key")
	require.True(t, ok)
	assert.Equal(t, "a = b", v)

	_, ok = cfg.Get("missing")
	assert.False(t, ok)

	assert.Equal(t, []string{"empty", "root", "spaced key", "vfs-root", "vfs-root-size"}, cfg.Keys())
}

func TestParseConfigErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"no assignment", "key value\n"},
		{"duplicate key", "a = 1\na = 2\n"},
		{"duplicate after trim", "a=1\n  a  = 2\n"},
		{"invalid utf8", "a = \xff\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseConfig([]byte(tt.input))
			require.ErrorIs(t, err, casctype.ErrMalformed)
		})
	}
}

func TestLookupConfig(t *testing.T) {
	t.Parallel()

	dataDir := t.TempDir()
	keyHex := "abcdef0123456789abcdef0123456789"

	path, err := ConfigPath(dataDir, keyHex)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dataDir, "config", "ab", "cd", keyHex), path)

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("a = b\n"), 0o644))

	cfg, err := LookupConfig(dataDir, keyHex)
	require.NoError(t, err)
	v, _ := cfg.Get("a")
	assert.Equal(t, "b", v)

	_, err = LookupConfig(dataDir, "00112233")
	require.ErrorIs(t, err, os.ErrNotExist)

	_, err = ConfigPath(dataDir, "abc")
	require.ErrorIs(t, err, casctype.ErrFormat)
}

func TestReferenceFromConfig(t *testing.T) {
	t.Parallel()

	cfg, err := ParseConfig([]byte(
		"vfs-1 = 00112233 aabbccdd\n" +
			"vfs-1-size = 1000 420\n" +
			"nosize = 00 11\n" +
			"onekey = 00\n" +
			"onekey-size = 1 2\n" +
			"badsize = 00 11\n" +
			"badsize-size = x 2\n"))
	require.NoError(t, err)

	ref, err := ReferenceFromConfig("vfs-1", cfg)
	require.NoError(t, err)
	assert.Equal(t, "00112233", ref.ContentKey.String())
	assert.Equal(t, "AABBCCDD", ref.EncodingKey.String())
	assert.Equal(t, uint64(1000), ref.Size)
	assert.Equal(t, uint64(420), ref.StoredSize)

	_, err = ReferenceFromConfig("vfs-2", cfg)
	require.ErrorIs(t, err, casctype.ErrNotFound)

	_, err = ReferenceFromConfig("nosize", cfg)
	require.ErrorIs(t, err, casctype.ErrNotFound)

	_, err = ReferenceFromConfig("onekey", cfg)
	require.ErrorIs(t, err, casctype.ErrMalformed)

	_, err = ReferenceFromConfig("badsize", cfg)
	require.ErrorIs(t, err, casctype.ErrFormat)
}
