package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachePutGet(t *testing.T) {
	t.Parallel()

	c, err := New()
	require.NoError(t, err)

	content := []byte("hello")
	require.NoError(t, c.Put([]byte("k"), content))
	content[0] = 'j'

	got, ok := c.Get([]byte("k"))
	require.True(t, ok)
	assert.Equal(t, "hello", string(got), "Put stores a copy")
	assert.Equal(t, int64(5), c.SizeBytes())
	assert.Zero(t, c.MaxBytes())

	_, ok = c.Get([]byte("missing"))
	assert.False(t, ok)
	require.Error(t, c.Put(nil, content))
}

func TestCacheAlreadyCached(t *testing.T) {
	t.Parallel()

	c, err := New()
	require.NoError(t, err)
	require.NoError(t, c.Put([]byte("k"), []byte("first")))
	require.NoError(t, c.Put([]byte("k"), []byte("second!")))

	got, _ := c.Get([]byte("k"))
	assert.Equal(t, "first", string(got))
	assert.Equal(t, int64(5), c.SizeBytes())
}

func TestCacheEntryLimit(t *testing.T) {
	t.Parallel()

	c, err := New(WithMaxEntries(2))
	require.NoError(t, err)
	require.NoError(t, c.Put([]byte("a"), []byte("aa")))
	require.NoError(t, c.Put([]byte("b"), []byte("bbb")))
	_, _ = c.Get([]byte("a"))
	require.NoError(t, c.Put([]byte("c"), []byte("c")))

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get([]byte("b"))
	assert.False(t, ok, "least recently used entry is evicted")
	assert.Equal(t, int64(3), c.SizeBytes())
}

func TestCacheByteLimit(t *testing.T) {
	t.Parallel()

	c, err := New(WithMaxBytes(10))
	require.NoError(t, err)
	require.NoError(t, c.Put([]byte("a"), make([]byte, 4)))
	require.NoError(t, c.Put([]byte("b"), make([]byte, 4)))
	require.NoError(t, c.Put([]byte("c"), make([]byte, 4)))

	assert.Equal(t, int64(8), c.SizeBytes())
	_, ok := c.Get([]byte("a"))
	assert.False(t, ok)

	require.NoError(t, c.Put([]byte("huge"), make([]byte, 11)))
	_, ok = c.Get([]byte("huge"))
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestCacheDeleteAndPrune(t *testing.T) {
	t.Parallel()

	c, err := New()
	require.NoError(t, err)
	for i := range 4 {
		require.NoError(t, c.Put(fmt.Appendf(nil, "k%d", i), make([]byte, 10)))
	}
	require.NoError(t, c.Delete([]byte("k0")))
	require.NoError(t, c.Delete([]byte("k0")))
	assert.Equal(t, int64(30), c.SizeBytes())

	freed, err := c.Prune(15)
	require.NoError(t, err)
	assert.Equal(t, int64(20), freed)
	_, ok := c.Get([]byte("k3"))
	assert.True(t, ok)

	freed, err = c.Prune(-1)
	require.NoError(t, err)
	assert.Equal(t, int64(10), freed)
	assert.Zero(t, c.Len())
}

func TestNewInvalidOptions(t *testing.T) {
	t.Parallel()

	_, err := New(WithMaxEntries(0))
	require.Error(t, err)
	_, err = New(WithMaxBytes(-1))
	require.Error(t, err)
}

func TestCacheConcurrent(t *testing.T) {
	t.Parallel()

	c, err := New(WithMaxEntries(8), WithMaxBytes(64))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Go(func() {
			for i := range 100 {
				key := fmt.Appendf(nil, "%d-%d", g, i%16)
				if _, ok := c.Get(key); !ok {
					_ = c.Put(key, make([]byte, 8))
				}
			}
		})
	}
	wg.Wait()
	assert.LessOrEqual(t, c.SizeBytes(), int64(64))
	assert.Equal(t, int64(c.Len()*8), c.SizeBytes())
}
