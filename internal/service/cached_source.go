package service

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/Strob0t/painradar/internal/domain/aggregate"
	"github.com/Strob0t/painradar/internal/port/cache"
	"github.com/Strob0t/painradar/internal/port/source"
	"github.com/Strob0t/painradar/internal/resilience"
)

// CachedSource decorates a source.Source with the per-fetch deadline, the
// result cache and an optional circuit breaker.
type CachedSource struct {
	src     source.Source
	spec    source.Spec
	cache   *ResultCache
	breaker *resilience.Breaker
}

var _ source.Source = (*CachedSource)(nil)

// NewCachedSource wraps src. spec.Timeout and spec.TTL must already carry
// their defaults. rc and breaker may be nil.
func NewCachedSource(src source.Source, spec source.Spec, rc *ResultCache, breaker *resilience.Breaker) *CachedSource {
	return &CachedSource{src: src, spec: spec, cache: rc, breaker: breaker}
}

// Name returns the configured source name.
func (c *CachedSource) Name() string { return c.spec.Name }

// Limit returns the configured per-source result limit, 0 if unset.
func (c *CachedSource) Limit() int { return c.spec.Limit }

// Fetch returns cached results when present, otherwise fetches under the
// source timeout. Only non-empty successful results are cached.
func (c *CachedSource) Fetch(ctx context.Context, keyword string, limit int) ([]aggregate.SourceResult, error) {
	key := c.cacheKey(keyword, limit)

	var cached []aggregate.SourceResult
	if c.cache.Load(ctx, key, &cached) {
		return cached, nil
	}

	var items []aggregate.SourceResult
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		fetchCtx := ctx
		if c.spec.Timeout > 0 {
			var cancel context.CancelFunc
			fetchCtx, cancel = context.WithTimeout(ctx, c.spec.Timeout)
			defer cancel()
		}
		var err error
		items, err = c.src.Fetch(fetchCtx, keyword, limit)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		return nil, aggregate.NewSourceError(c.spec.Name, aggregate.KindNetwork, "circuit open after repeated failures")
	}
	if err != nil {
		return nil, aggregate.AsSourceError(c.spec.Name, err)
	}

	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	if len(items) > 0 {
		c.cache.Store(ctx, key, items, c.ttl())
	}
	return items, nil
}

func (c *CachedSource) cacheKey(keyword string, limit int) string {
	params := c.spec.CacheParams()
	params["limit"] = strconv.Itoa(limit)
	return cache.Key("source:"+c.spec.Name, keyword, params)
}

func (c *CachedSource) ttl() time.Duration {
	if c.spec.TTL > 0 {
		return c.spec.TTL
	}
	return time.Hour
}
