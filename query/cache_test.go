package query

import (
	"sync"
	"testing"

	"github.com/ha1tch/veloq-go/wire"
)

func TestCacheGetAddClear(t *testing.T) {
	c := NewCache()
	key := Key{Statement: "SELECT 1", Cardinality: wire.CardinalityOne, OutputFormat: wire.IOFormatBinary}

	if _, ok := c.Get(key); ok {
		t.Fatal("expected miss on empty cache")
	}

	pq := &PreparedQuery{Statement: key.Statement, Cardinality: key.Cardinality, OutputFormat: key.OutputFormat}
	c.Add(key, pq)

	got, ok := c.Get(key)
	if !ok || got != pq {
		t.Fatalf("expected the same pointer back, got %+v, %v", got, ok)
	}

	c.Clear(key)
	if _, ok := c.Get(key); ok {
		t.Fatal("expected miss after Clear")
	}
}

func TestCacheDistinctKeysByCardinality(t *testing.T) {
	c := NewCache()
	k1 := Key{Statement: "SELECT 1", Cardinality: wire.CardinalityOne, OutputFormat: wire.IOFormatBinary}
	k2 := Key{Statement: "SELECT 1", Cardinality: wire.CardinalityMany, OutputFormat: wire.IOFormatBinary}

	c.Add(k1, &PreparedQuery{Statement: "SELECT 1", Cardinality: wire.CardinalityOne})
	if _, ok := c.Get(k2); ok {
		t.Fatal("expected distinct cardinality to miss")
	}
}

func TestCacheConcurrentAddLastWriterWins(t *testing.T) {
	c := NewCache()
	key := Key{Statement: "SELECT 1", Cardinality: wire.CardinalityOne, OutputFormat: wire.IOFormatBinary}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.Add(key, &PreparedQuery{Statement: key.Statement, Cardinality: key.Cardinality, OutputFormat: key.OutputFormat})
		}(i)
	}
	wg.Wait()

	if _, ok := c.Get(key); !ok {
		t.Fatal("expected an entry to survive concurrent inserts")
	}
}
