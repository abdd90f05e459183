package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Strob0t/painradar/internal/domain/aggregate"
	"github.com/Strob0t/painradar/internal/port/source"
	"github.com/Strob0t/painradar/internal/resilience"
)

func newCached(src *fakeSource, mc *memCache, breaker *resilience.Breaker) *CachedSource {
	spec := source.Spec{Name: src.name, Kind: "api", Limit: 5, TTL: time.Hour, Timeout: time.Second}
	return NewCachedSource(src, spec, NewResultCache(mc), breaker)
}

func TestCachedSource_HitSkipsFetch(t *testing.T) {
	src := &fakeSource{name: "forum", items: items("a", "b")}
	cs := newCached(src, newMemCache(), nil)
	ctx := context.Background()

	for range 2 {
		got, err := cs.Fetch(ctx, "CRM  Tools", 5)
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if len(got) != 2 {
			t.Fatalf("got %d items", len(got))
		}
	}
	if _, err := cs.Fetch(ctx, "crm tools", 5); err != nil {
		t.Fatal(err)
	}
	if n := src.calls.Load(); n != 1 {
		t.Fatalf("underlying fetch called %d times, want 1", n)
	}
}

func TestCachedSource_LimitIsPartOfKey(t *testing.T) {
	src := &fakeSource{name: "forum", items: items("a", "b", "c")}
	cs := newCached(src, newMemCache(), nil)
	ctx := context.Background()

	got, _ := cs.Fetch(ctx, "crm", 2)
	if len(got) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(got))
	}
	if _, err := cs.Fetch(ctx, "crm", 3); err != nil {
		t.Fatal(err)
	}
	if n := src.calls.Load(); n != 2 {
		t.Fatalf("calls = %d, want 2", n)
	}
}

func TestCachedSource_EmptyNotCached(t *testing.T) {
	mc := newMemCache()
	src := &fakeSource{name: "forum", items: nil}
	cs := newCached(src, mc, nil)

	got, err := cs.Fetch(context.Background(), "crm", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("got %v", got)
	}
	if mc.len() != 0 {
		t.Fatal("empty result must not be cached")
	}
}

func TestCachedSource_ErrorBecomesSourceError(t *testing.T) {
	mc := newMemCache()
	src := &fakeSource{name: "forum", err: aggregate.NewSourceError("x", aggregate.KindParse, "bad json")}
	cs := newCached(src, mc, nil)

	_, err := cs.Fetch(context.Background(), "crm", 5)
	var se *aggregate.SourceError
	if !errors.As(err, &se) {
		t.Fatalf("expected SourceError, got %v", err)
	}
	if se.Source != "forum" || se.Kind != aggregate.KindParse {
		t.Fatalf("unexpected %+v", se)
	}
	if mc.len() != 0 {
		t.Fatal("failures must not be cached")
	}
}

func TestCachedSource_TimeoutApplied(t *testing.T) {
	src := &fakeSource{name: "slow", delay: time.Minute}
	spec := source.Spec{Name: "slow", Kind: "api", Timeout: 20 * time.Millisecond}
	cs := NewCachedSource(src, spec, nil, nil)

	start := time.Now()
	_, err := cs.Fetch(context.Background(), "crm", 5)
	if time.Since(start) > 2*time.Second {
		t.Fatal("per-fetch timeout not applied")
	}
	var se *aggregate.SourceError
	if !errors.As(err, &se) || se.Kind != aggregate.KindTimeout {
		t.Fatalf("expected timeout SourceError, got %v", err)
	}
}

func TestCachedSource_BreakerOpens(t *testing.T) {
	src := &fakeSource{name: "flaky", err: errBackend}
	cs := newCached(src, newMemCache(), resilience.NewBreaker(2, time.Minute))
	ctx := context.Background()

	_, _ = cs.Fetch(ctx, "crm", 5)
	_, _ = cs.Fetch(ctx, "crm", 5)
	_, err := cs.Fetch(ctx, "crm", 5)

	var se *aggregate.SourceError
	if !errors.As(err, &se) || se.Kind != aggregate.KindNetwork {
		t.Fatalf("expected network SourceError from open circuit, got %v", err)
	}
	if n := src.calls.Load(); n != 2 {
		t.Fatalf("calls = %d, want 2 (third short-circuited)", n)
	}
}
