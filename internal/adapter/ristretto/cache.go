// Package ristretto is the in-process L1 result cache, backed by
// dgraph-io/ristretto.
package ristretto

import (
	"bytes"
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

const (
	minCost = 1 << 20
	// avgEntryBytes approximates one cached source page or summary
	// (tens of records of up to 2000 runes each). Ristretto wants about ten
	// counters per expected entry.
	avgEntryBytes = 16 << 10
)

// Cache holds encoded results in memory, bounded by their total size.
// Values are copied on the way in and out so callers may reuse buffers.
type Cache struct {
	c *ristretto.Cache[string, []byte]
}

// New creates a cache holding at most maxCostBytes of keys and values.
// Values below 1 MiB are raised to 1 MiB.
func New(maxCostBytes int64) (*Cache, error) {
	maxCostBytes = max(maxCostBytes, minCost)
	c, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
		NumCounters: 10 * max(maxCostBytes/avgEntryBytes, 64),
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Cache{c: c}, nil
}

// Get returns a copy of the cached value. Expired entries are misses.
func (c *Cache) Get(_ context.Context, key string) ([]byte, bool, error) {
	val, found := c.c.Get(key)
	if !found {
		return nil, false, nil
	}
	return bytes.Clone(val), true, nil
}

// Set stores value for ttl. The admission policy may refuse an entry, which
// is not an error: L1 is best effort and the next Get simply misses. Wait
// makes an admitted entry visible to the next Get.
func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		c.c.Del(key)
		return nil
	}
	if c.c.SetWithTTL(key, bytes.Clone(value), int64(len(key)+len(value)), ttl) {
		c.c.Wait()
	}
	return nil
}

// Delete removes key.
func (c *Cache) Delete(_ context.Context, key string) error {
	c.c.Del(key)
	return nil
}

// Close stops ristretto's background goroutines.
func (c *Cache) Close() {
	c.c.Close()
}
