package casc

import "slices"

// cacheKey returns the key under which the content of r is cached. Only
// files made of one span starting at offset zero are cacheable: their
// content is exactly the decoded data of that span.
func cacheKey(r *PathResult) (Key, bool) {
	refs := r.References()
	if len(refs) != 1 || refs[0].Offset != 0 {
		return Key{}, false
	}
	return refs[0].EncodingKey, true
}

// cached returns the cached content for key if it has the expected size.
// Entries of the wrong size are dropped.
func (a *Archive) cached(key []byte, size uint64) ([]byte, bool) {
	content, ok := a.cache.Get(key)
	if !ok {
		return nil, false
	}
	if uint64(len(content)) != size {
		_ = a.cache.Delete(key) //nolint:errcheck // best-effort cleanup of a stale entry
		return nil, false
	}
	return content, true
}

// readResult reads the content of r through the cache when possible.
// Concurrent misses for the same key are decoded once.
func (a *Archive) readResult(r *PathResult) ([]byte, error) {
	ekey, ok := cacheKey(r)
	if a.cache == nil || !ok {
		return r.ReadFile(nil)
	}
	key := ekey.Bytes()
	size := r.FileSize()

	if content, ok := a.cached(key, size); ok {
		a.log().Debug("cache hit", "key", ekey)
		return slices.Clone(content), nil
	}
	a.log().Debug("cache miss", "key", ekey)

	result, err, shared := a.readGroup.Do(string(key), func() (any, error) {
		if content, ok := a.cached(key, size); ok {
			return slices.Clone(content), nil
		}
		content, err := r.ReadFile(nil)
		if err != nil {
			return nil, err
		}
		if err := a.cache.Put(key, content); err != nil {
			a.log().Debug("cache put failed", "key", ekey, "error", err)
		}
		return content, nil
	})
	if err != nil {
		return nil, err
	}
	content := result.([]byte) //nolint:errcheck // type assertion always succeeds when err is nil
	if shared {
		return slices.Clone(content), nil
	}
	return content, nil
}
