package tiered_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Strob0t/painradar/internal/adapter/tiered"
	"github.com/Strob0t/painradar/internal/port/cache/cachetest"
)

type memEntry struct {
	val     []byte
	ttl     time.Duration
	expires time.Time
}

// memCache is a simple in-memory cache for testing.
type memCache struct {
	mu   sync.Mutex
	data map[string]memEntry
	err  error
}

func newMemCache() *memCache {
	return &memCache{data: make(map[string]memEntry)}
}

func (m *memCache) Get(_ context.Context, key string) (data []byte, ok bool, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	e, ok := m.data[key]
	if !ok || time.Now().After(e.expires) {
		return nil, false, nil
	}
	return e.val, true, nil
}

func (m *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.data[key] = memEntry{val: value, ttl: ttl, expires: time.Now().Add(ttl)}
	return nil
}

func (m *memCache) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.data, key)
	return nil
}

func (m *memCache) put(key, val string) {
	m.data[key] = memEntry{val: []byte(val), ttl: time.Hour, expires: time.Now().Add(time.Hour)}
}

func TestTiered_Compliance(t *testing.T) {
	cachetest.RunComplianceTests(t, tiered.New(newMemCache(), newMemCache(), time.Minute), cachetest.Options{})
}

func TestTiered_L1Hit(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)

	l1.put("key1", "val1")

	val, found, err := c.Get(context.Background(), "key1")
	if err != nil {
		t.Fatal(err)
	}
	if !found || string(val) != "val1" {
		t.Fatalf("expected L1 hit val1, got %q (found=%v)", val, found)
	}
}

func TestTiered_L2HitWithBackfill(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)

	l2.put("key2", "val2")

	val, found, err := c.Get(context.Background(), "key2")
	if err != nil {
		t.Fatal(err)
	}
	if !found || string(val) != "val2" {
		t.Fatalf("expected L2 hit val2, got %q (found=%v)", val, found)
	}

	e, ok := l1.data["key2"]
	if !ok {
		t.Fatal("expected L1 backfill")
	}
	if e.ttl != 5*time.Minute {
		t.Errorf("expected backfill ttl 5m, got %v", e.ttl)
	}
}

func TestTiered_L1ErrorFallsThrough(t *testing.T) {
	l1 := newMemCache()
	l1.err = errors.New("l1 down")
	l2 := newMemCache()
	c := tiered.New(l1, l2, time.Minute)
	ctx := context.Background()

	if err := c.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("L1 failure must not fail Set: %v", err)
	}
	val, found, err := c.Get(ctx, "k")
	if err != nil || !found || string(val) != "v" {
		t.Fatalf("expected L2 value, got %q found=%v err=%v", val, found, err)
	}
}

func TestTiered_L2ErrorSurfaces(t *testing.T) {
	l2 := newMemCache()
	l2.err = errors.New("disk full")
	c := tiered.New(newMemCache(), l2, time.Minute)

	if err := c.Set(context.Background(), "k", []byte("v"), time.Minute); err == nil {
		t.Fatal("expected L2 error from Set")
	}
}

func TestTiered_L1TTLCapped(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, time.Minute)

	if err := c.Set(context.Background(), "k", []byte("v"), time.Hour); err != nil {
		t.Fatal(err)
	}
	if l1.data["k"].ttl != time.Minute {
		t.Errorf("expected L1 ttl capped at 1m, got %v", l1.data["k"].ttl)
	}
	if l2.data["k"].ttl != time.Hour {
		t.Errorf("expected L2 ttl 1h, got %v", l2.data["k"].ttl)
	}
}

func TestTiered_DeleteBoth(t *testing.T) {
	l1 := newMemCache()
	l2 := newMemCache()
	c := tiered.New(l1, l2, 5*time.Minute)

	l1.put("key4", "val4")
	l2.put("key4", "val4")

	if err := c.Delete(context.Background(), "key4"); err != nil {
		t.Fatal(err)
	}
	if _, ok := l1.data["key4"]; ok {
		t.Fatal("expected key4 deleted from L1")
	}
	if _, ok := l2.data["key4"]; ok {
		t.Fatal("expected key4 deleted from L2")
	}
}
