// Package memory provides an in-memory LRU cache implementation.
package memory

import (
	"errors"
	"sync"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/casclib/casc/cache"
)

// DefaultEntries is the entry limit used when none is configured.
const DefaultEntries = 1024

// Cache implements cache.Cache with a bounded least recently used set.
//
// The cache holds at most a fixed number of entries and, when WithMaxBytes
// is set, at most that many content bytes. It is safe for concurrent use.
type Cache struct {
	entries  int
	maxBytes int64
	bytes    atomic.Int64
	mu       sync.Mutex // serializes size enforcement
	lru      *lru.Cache[string, []byte]
}

var _ cache.Cache = (*Cache)(nil)

// Option configures a memory cache.
type Option func(*Cache)

// WithMaxEntries sets the maximum number of cached entries.
// Defaults to DefaultEntries.
func WithMaxEntries(n int) Option {
	return func(c *Cache) {
		c.entries = n
	}
}

// WithMaxBytes sets the maximum total size of cached content.
// Values < 0 are invalid. Use 0 to disable the limit.
func WithMaxBytes(n int64) Option {
	return func(c *Cache) {
		c.maxBytes = n
	}
}

// New creates an empty memory cache.
func New(opts ...Option) (*Cache, error) {
	c := &Cache{entries: DefaultEntries}
	for _, opt := range opts {
		opt(c)
	}
	if c.entries <= 0 {
		return nil, errors.New("max entries must be > 0")
	}
	if c.maxBytes < 0 {
		return nil, errors.New("max bytes must be >= 0")
	}
	l, err := lru.NewWithEvict(c.entries, func(_ string, v []byte) {
		c.bytes.Add(-int64(len(v)))
	})
	if err != nil {
		return nil, err
	}
	c.lru = l
	return c, nil
}

// Get returns the cached content for key and marks it recently used.
// The returned slice must not be modified.
func (c *Cache) Get(key []byte) ([]byte, bool) {
	return c.lru.Get(string(key))
}

// Put stores a copy of content under key. Content larger than the byte
// limit is not cached.
func (c *Cache) Put(key []byte, content []byte) error {
	if len(key) == 0 {
		return errors.New("cache key is empty")
	}
	size := int64(len(content))
	if c.maxBytes > 0 && size > c.maxBytes {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	k := string(key)
	if c.lru.Contains(k) {
		return nil
	}
	c.bytes.Add(size)
	c.lru.Add(k, append([]byte{}, content...))
	if c.maxBytes > 0 {
		c.shrink(c.maxBytes)
	}
	return nil
}

// Delete removes the cached content for key.
func (c *Cache) Delete(key []byte) error {
	c.lru.Remove(string(key))
	return nil
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	return c.lru.Len()
}

// MaxBytes returns the configured cache size limit (0 = unlimited).
func (c *Cache) MaxBytes() int64 {
	return c.maxBytes
}

// SizeBytes returns the total size of cached content.
func (c *Cache) SizeBytes() int64 {
	return c.bytes.Load()
}

// Prune evicts least recently used entries until the cache is at or below
// targetBytes.
func (c *Cache) Prune(targetBytes int64) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.shrink(max(targetBytes, 0)), nil
}

// shrink must be called with mu held.
func (c *Cache) shrink(target int64) int64 {
	before := c.bytes.Load()
	for c.bytes.Load() > target {
		if _, _, ok := c.lru.RemoveOldest(); !ok {
			break
		}
	}
	return before - c.bytes.Load()
}
