// Package cache provides caching of decoded file contents for CASC archives.
//
// Entries are keyed by the encoding key of the stored span that produced
// them. An encoding key names one exact encoded body, so the decoded bytes
// for a key never change and cached entries need no invalidation.
//
// Two implementations are provided: package disk keeps entries as zstd
// compressed files in a sharded directory, and package memory keeps a
// bounded LRU set in memory.
package cache

// Cache stores decoded file contents by encoding key.
//
// Implementations handle their own size limits and eviction policies and
// must be safe for concurrent use.
type Cache interface {
	// Get returns the cached content for key.
	// Returns nil, false if the content is not cached.
	Get(key []byte) ([]byte, bool)

	// Put stores content under key. Putting a key that is already cached
	// is a no-op. The cache does not retain content after Put returns.
	Put(key []byte, content []byte) error

	// Delete removes the cached content for key.
	// Missing entries are a no-op.
	Delete(key []byte) error

	// MaxBytes returns the configured cache size limit (0 = unlimited).
	MaxBytes() int64

	// SizeBytes returns the current cache size in bytes.
	SizeBytes() int64

	// Prune removes cached entries until the cache is at or below targetBytes.
	// Returns the number of bytes freed.
	Prune(targetBytes int64) (int64, error)
}
