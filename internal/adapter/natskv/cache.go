// Package natskv implements the cache port using NATS JetStream KV as a remote L2 cache.
package natskv

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go/jetstream"
)

// envelope carries a per-entry expiry; JetStream KV only supports a
// bucket-wide TTL.
type envelope struct {
	ExpiresAt int64  `json:"e"`
	Value     []byte `json:"v"`
}

// Cache wraps a NATS JetStream KeyValue store as an L2 cache.
type Cache struct {
	kv  jetstream.KeyValue
	now func() time.Time
}

// New creates a NATS KV-backed cache.
func New(kv jetstream.KeyValue) *Cache {
	return &Cache{kv: kv, now: time.Now}
}

// Open ensures the bucket exists and returns a cache on it. maxAge is the
// bucket-level upper bound on entry lifetime.
func Open(ctx context.Context, js jetstream.JetStream, bucket string, maxAge time.Duration) (*Cache, error) {
	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket: bucket,
		TTL:    maxAge,
	})
	if err != nil {
		return nil, fmt.Errorf("nats kv bucket %s: %w", bucket, err)
	}
	return New(kv), nil
}

// Get retrieves a value from the NATS KV store.
func (c *Cache) Get(ctx context.Context, key string) (data []byte, ok bool, err error) {
	entry, err := c.kv.Get(ctx, kvKey(key))
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, false, nil
		}
		return nil, false, err
	}

	var env envelope
	if err := json.Unmarshal(entry.Value(), &env); err != nil {
		return nil, false, fmt.Errorf("nats kv decode %s: %w", key, err)
	}
	if c.now().UnixMilli() >= env.ExpiresAt {
		return nil, false, nil
	}
	return env.Value, true, nil
}

// Set stores a value in the NATS KV store with a per-entry expiry.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	data, err := json.Marshal(envelope{ExpiresAt: c.now().Add(ttl).UnixMilli(), Value: value})
	if err != nil {
		return err
	}
	_, err = c.kv.Put(ctx, kvKey(key), data)
	return err
}

// Delete removes a value from the NATS KV store.
func (c *Cache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(ctx, kvKey(key))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return nil
	}
	return err
}

// kvKey maps cache keys onto the KV key alphabet, which does not allow ':'.
func kvKey(key string) string {
	return strings.ReplaceAll(key, ":", ".")
}
