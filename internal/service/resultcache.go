package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/Strob0t/painradar/internal/port/cache"
)

// ResultCache stores JSON-encoded values in a cache.Cache. It never fails
// the caller: backend errors and undecodable entries are logged and treated
// as a miss, and writes are best effort.
type ResultCache struct {
	backend cache.Cache
}

// NewResultCache wraps backend. A nil backend disables caching.
func NewResultCache(backend cache.Cache) *ResultCache {
	return &ResultCache{backend: backend}
}

// Load decodes the entry for key into dst and reports whether it was a hit.
func (r *ResultCache) Load(ctx context.Context, key string, dst any) bool {
	if r == nil || r.backend == nil {
		return false
	}
	data, ok, err := r.backend.Get(ctx, key)
	if err != nil {
		slog.WarnContext(ctx, "cache get failed, treating as miss", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(data, dst); err != nil {
		slog.WarnContext(ctx, "cache entry corrupt, discarding", "key", key, "error", err)
		r.Invalidate(ctx, key)
		return false
	}
	return true
}

// Store encodes v and writes it under key for ttl.
func (r *ResultCache) Store(ctx context.Context, key string, v any, ttl time.Duration) {
	if r == nil || r.backend == nil {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		slog.WarnContext(ctx, "cache encode failed", "key", key, "error", err)
		return
	}
	if err := r.backend.Set(ctx, key, data, ttl); err != nil {
		slog.WarnContext(ctx, "cache set failed", "key", key, "error", err)
	}
}

// Invalidate removes key.
func (r *ResultCache) Invalidate(ctx context.Context, key string) {
	if r == nil || r.backend == nil {
		return
	}
	if err := r.backend.Delete(ctx, key); err != nil {
		slog.WarnContext(ctx, "cache delete failed", "key", key, "error", err)
	}
}
