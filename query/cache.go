// Package query implements the prepared-query cache (spec.md §3, §4.F):
// an in-memory mapping from (statement, cardinality, output_format) to
// the codecs the server returned the last time that combination was
// prepared, letting the connection state machine skip a round trip via
// optimistic_execute.
package query

import (
	"sync"

	"github.com/ha1tch/veloq-go/codec"
	"github.com/ha1tch/veloq-go/wire"
)

// Key identifies one cacheable prepared statement. Two requests for the
// same statement text under a different cardinality or output format
// are distinct cache entries, since the server's returned codecs can
// differ.
type Key struct {
	Statement    string
	Cardinality  wire.Cardinality
	OutputFormat wire.IOFormat
}

// PreparedQuery is the cached record for one Key: the cardinality and
// type ids the server most recently reported, plus the materialised
// codecs for encoding arguments and decoding rows.
type PreparedQuery struct {
	Statement        string
	Cardinality      wire.Cardinality
	OutputFormat     wire.IOFormat
	InputTypedescID  codec.TypeID
	OutputTypedescID codec.TypeID
	InputCodec       codec.Codec
	OutputCodec      codec.Codec
}

// Cache is the process-wide prepared-query cache. Entries are immutable
// once inserted: Add always stores a fresh *PreparedQuery rather than
// mutating an existing one, so a reader that fetched an entry before a
// concurrent Add never observes a half-updated record (spec.md §4.F).
type Cache struct {
	mu      sync.RWMutex
	entries map[Key]*PreparedQuery
}

// NewCache returns an empty prepared-query cache. Like the codec cache,
// callers construct one per driver instance and pass it explicitly into
// each connection (spec.md §9).
func NewCache() *Cache {
	return &Cache{entries: make(map[Key]*PreparedQuery)}
}

// Get returns the cached entry for key, if present.
func (c *Cache) Get(key Key) (*PreparedQuery, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	pq, ok := c.entries[key]
	return pq, ok
}

// Add inserts or replaces the entry for key. Concurrent Add calls for
// the same key are last-writer-wins; since every PreparedQuery for a
// given key is value-identical modulo codec identity (codecs are
// canonicalised by type_id in the codec cache), the choice of writer
// never produces an observable inconsistency.
func (c *Cache) Add(key Key, pq *PreparedQuery) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = pq
}

// Clear removes the entry for key, e.g. after the server reports a
// cache miss during optimistic-execute or on handle_close.
func (c *Cache) Clear(key Key) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}
