package tvfs

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/casclib/casc/core/internal/casctype"
	"github.com/casclib/casc/core/testutil"
)

func frags(n Node) []string {
	var out []string
	for _, f := range n.Fragments() {
		out = append(out, string(f))
	}
	return out
}

func TestDecode(t *testing.T) {
	t.Parallel()

	k1, k2, k3 := testutil.EncodingKey("c"), testutil.EncodingKey("d1"), testutil.EncodingKey("d2")
	data := testutil.TVFS(9, 3,
		testutil.Dir("ab",
			testutil.File("c", testutil.Ref(k1, 0, 10)),
			testutil.File("d", testutil.Ref(k2, 0, 5), testutil.Ref(k3, 5, 7)),
		),
	)

	f, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), f.Version)
	assert.Equal(t, uint8(9), f.EncodingKeySize)
	assert.Equal(t, uint8(9), f.PatchKeySize)
	assert.Equal(t, uint16(3), f.MaxPathDepth)
	require.Len(t, f.Roots, 1)

	root, ok := f.Roots[0].(*Prefix)
	require.True(t, ok)
	assert.Equal(t, []string{"ab"}, frags(root))
	require.Len(t, root.Children, 2)

	c, ok := root.Children[0].(*Leaf)
	require.True(t, ok)
	assert.Equal(t, []string{"c"}, frags(c))
	require.Len(t, c.References, 1)
	assert.Equal(t, uint32(10), c.References[0].Size)
	assert.Equal(t, 9, c.References[0].EncodingKey.Len())
	assert.True(t, c.References[0].EncodingKey.Equal(casctype.NewKey(k1)))

	d, ok := root.Children[1].(*Leaf)
	require.True(t, ok)
	require.Len(t, d.References, 2)
	second := d.References[1]
	assert.Equal(t, uint32(5), second.Offset)
	assert.Equal(t, uint32(7), second.Size)
	assert.Equal(t, uint32(7), second.PhysicalSize)
	assert.Equal(t, uint32(7), second.ActualSize)
	assert.True(t, second.EncodingKey.Equal(casctype.NewKey(k3)))
}

func TestDecodeFragments(t *testing.T) {
	t.Parallel()

	key := testutil.EncodingKey("x")
	data := testutil.TVFS(9, 0,
		testutil.DirFrags(nil,
			testutil.FileFrags(testutil.Frags("x", ""), testutil.Ref(key, 0, 1)),
			testutil.File("empty"),
		),
	)

	f, err := Decode(data)
	require.NoError(t, err)
	require.Len(t, f.Roots, 1)
	root := f.Roots[0].(*Prefix)
	assert.Empty(t, root.Fragments())

	leaf := root.Children[0].(*Leaf)
	assert.Equal(t, []string{"x", ""}, frags(leaf))

	empty := root.Children[1].(*Leaf)
	assert.Empty(t, empty.References)
}

func TestDecodeWideStorageOffsets(t *testing.T) {
	t.Parallel()

	// Enough storage entries to need two byte storage offsets.
	var files []testutil.TVFSNode
	for i := range 20 {
		name := fmt.Sprintf("f%02d", i)
		files = append(files, testutil.File(name, testutil.Ref(testutil.EncodingKey(name), 0, uint32(i+1))))
	}
	f, err := Decode(testutil.TVFS(9, 0, testutil.Dir("", files...)))
	require.NoError(t, err)

	children := f.Roots[0].(*Prefix).Children
	require.Len(t, children, 20)
	last := children[19].(*Leaf).References[0]
	assert.Equal(t, uint32(20), last.Size)
	assert.True(t, last.EncodingKey.Equal(casctype.NewKey(testutil.EncodingKey("f19"))))
}

func TestDecodeNestingLimit(t *testing.T) {
	t.Parallel()

	deep := func(levels int, maxDepth uint16) []byte {
		n := testutil.File("f", testutil.Ref(testutil.EncodingKey("f"), 0, 1))
		for range levels {
			n = testutil.Dir("d", n)
		}
		return testutil.TVFS(9, maxDepth, n)
	}

	_, err := Decode(deep(minNestingLimit, 0))
	require.NoError(t, err)

	_, err = Decode(deep(minNestingLimit+1, 0))
	require.ErrorIs(t, err, casctype.ErrMalformed)

	// A larger declared depth raises the limit.
	_, err = Decode(deep(minNestingLimit+1, 5))
	require.NoError(t, err)
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	// Layout: 38 byte header, path stream "\x01a\xff" + value at 41,
	// logical table at 45 with its storage offset byte at 54.
	file := testutil.TVFS(9, 0, testutil.File("a", testutil.Ref(testutil.EncodingKey("a"), 0, 1)))
	dir := testutil.TVFS(9, 0, testutil.Dir("a", testutil.File("b")))

	mutate := func(base []byte, at int, b ...byte) []byte {
		out := bytes.Clone(base)
		copy(out[at:], b)
		return out
	}

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", mutate(file, 0, 'X')},
		{"unsupported version", mutate(file, 4, 2)},
		{"header past end", mutate(file, 5, 0xFF)},
		{"truncated header", mutate(file, 5, 20)},
		{"path table past end", mutate(file, 16, 0xFF)},
		{"fragment past end", mutate(file, 38, 0x10)},
		{"logical offset past table", mutate(file, 41, 0, 0, 0x0F, 0xFF)},
		{"storage offset past table", mutate(file, 54, 0xF0)},
		{"tiny prefix container", mutate(dir, 41, 0x80, 0, 0, 2)},
		{"prefix container past parent", mutate(dir, 41, 0x80, 0, 0, 0xFF)},
		{"truncated file", file[:len(file)-1]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Decode(tt.data)
			require.ErrorIs(t, err, casctype.ErrMalformed)
		})
	}
}
