package codec

import "sync"

// Cache is the process-wide codec cache, keyed by TypeID (spec.md §4.D,
// §5: "readable concurrently, mutated under a short critical section
// keyed per entry"). Codec trees are deeply immutable once created, so
// concurrent readers never race with a concurrent insert of a
// *different* id.
type Cache struct {
	mu     sync.RWMutex
	codecs map[TypeID]Codec
}

// NewCache returns an empty codec cache. Callers construct one per
// driver instance and pass it explicitly into each connection
// (spec.md §9: "expose as explicit handles ... not as global
// singletons").
func NewCache() *Cache {
	return &Cache{codecs: make(map[TypeID]Codec)}
}

// Get returns the cached codec for id, if present.
func (c *Cache) Get(id TypeID) (Codec, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cd, ok := c.codecs[id]
	return cd, ok
}

// GetOrStore returns the existing codec for id if one is already
// cached; otherwise it stores and returns newCodec. Two concurrent
// parses of descriptor blobs that materialise the same type_id
// therefore converge on a single identity, per the factory's
// idempotence requirement (spec.md §4.D).
func (c *Cache) GetOrStore(id TypeID, newCodec Codec) Codec {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.codecs[id]; ok {
		return existing
	}
	c.codecs[id] = newCodec
	return newCodec
}

// Has reports whether id is already cached.
func (c *Cache) Has(id TypeID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.codecs[id]
	return ok
}
