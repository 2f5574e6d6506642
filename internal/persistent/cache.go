package persistent

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/google/uuid"
)

// defaultCacheSize is used when CacheSizeMB resolves to zero entries via
// the average-size heuristic, mirroring the teacher's DefaultEmbeddingCacheSize
// fallback.
const defaultCacheSize = 1000

// averageEntryBytes is a rough per-decoded-Entry size used only to turn a
// configured cache budget in MB into an LRU entry count.
const averageEntryBytes = 2048

// entryCache is a bounded cache of decoded Entry values in front of the
// SQLite-backed store, adapted from the teacher's CachedEmbedder LRU idiom.
type entryCache struct {
	cache *lru.Cache[uuid.UUID, Entry]
}

func newEntryCache(cacheSizeMB uint64) *entryCache {
	size := int(cacheSizeMB * 1024 * 1024 / averageEntryBytes)
	if size <= 0 {
		size = defaultCacheSize
	}
	c, _ := lru.New[uuid.UUID, Entry](size)
	return &entryCache{cache: c}
}

func (c *entryCache) get(id uuid.UUID) (Entry, bool) {
	return c.cache.Get(id)
}

func (c *entryCache) put(id uuid.UUID, e Entry) {
	c.cache.Add(id, e)
}

func (c *entryCache) invalidate(id uuid.UUID) {
	c.cache.Remove(id)
}
