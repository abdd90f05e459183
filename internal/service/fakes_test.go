package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Strob0t/painradar/internal/domain/aggregate"
)

// fakeSource implements source.Source for testing.
type fakeSource struct {
	name    string
	items   []aggregate.SourceResult
	err     error
	delay   time.Duration
	release chan struct{} // when set, Fetch ignores ctx and waits for close
	panics  bool
	calls   atomic.Int32
	limits  []int
	mu      sync.Mutex
}

func (f *fakeSource) Name() string { return f.name }

func (f *fakeSource) Fetch(ctx context.Context, _ string, limit int) ([]aggregate.SourceResult, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.limits = append(f.limits, limit)
	f.mu.Unlock()

	if f.panics {
		panic("adapter bug")
	}
	if f.release != nil {
		<-f.release
		return f.items, nil
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

func items(titles ...string) []aggregate.SourceResult {
	out := make([]aggregate.SourceResult, len(titles))
	for i, t := range titles {
		out[i] = aggregate.SourceResult{Title: t, URL: "https://example.test/" + t, Text: "text " + t}
	}
	return out
}

// stubSummarizer implements Summarizer for testing.
type stubSummarizer struct {
	text string
	err  error
	mu   sync.Mutex
	reqs []SummaryRequest
}

func (s *stubSummarizer) Summarize(_ context.Context, req SummaryRequest) (string, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	return s.text, s.err
}

// memCache implements cache.Cache with optional injected failures.
type memCache struct {
	mu      sync.Mutex
	data    map[string][]byte
	getErr  error
	setErr  error
	deletes []string
}

func newMemCache() *memCache { return &memCache{data: make(map[string][]byte)} }

func (c *memCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	v, ok := c.data[key]
	return v, ok, nil
}

func (c *memCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.data[key] = append([]byte(nil), value...)
	return nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes = append(c.deletes, key)
	delete(c.data, key)
	return nil
}

func (c *memCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

var errBackend = errors.New("backend down")
