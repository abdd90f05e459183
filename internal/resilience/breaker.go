// Package resilience holds the reliability machinery shared by outbound
// calls: the summarizer credential pool, the retrying caller and a per-source
// circuit breaker.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while a breaker is rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the externally visible breaker state.
type BreakerState string

const (
	BreakerClosed   BreakerState = "closed"
	BreakerOpen     BreakerState = "open"
	BreakerHalfOpen BreakerState = "half_open"
)

// Breaker stops calling a source after maxFailures consecutive failures and
// lets a single trial call through once the open period has elapsed.
type Breaker struct {
	mu          sync.Mutex
	state       BreakerState
	failures    int
	maxFailures int
	openFor     time.Duration
	openedAt    time.Time
	probing     bool
	now         func() time.Time
}

// NewBreaker creates a breaker. A maxFailures below one disables it.
func NewBreaker(maxFailures int, openFor time.Duration) *Breaker {
	return &Breaker{
		state:       BreakerClosed,
		maxFailures: maxFailures,
		openFor:     openFor,
		now:         time.Now,
	}
}

// Execute runs fn unless the breaker is open. Failures caused by the caller
// cancelling ctx are not held against the protected dependency.
func (b *Breaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	if b == nil || b.maxFailures < 1 {
		return fn(ctx)
	}
	if !b.allow() {
		return ErrCircuitOpen
	}

	err := fn(ctx)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
	switch {
	case err == nil:
		b.failures = 0
		b.state = BreakerClosed
	case ctx.Err() != nil:
		if b.state == BreakerHalfOpen {
			b.state = BreakerOpen
		}
	default:
		b.failures++
		if b.state == BreakerHalfOpen || b.failures >= b.maxFailures {
			b.state = BreakerOpen
			b.openedAt = b.now()
		}
	}
	return err
}

// State reports the current state, promoting open to half-open when due.
func (b *Breaker) State() BreakerState {
	if b == nil {
		return BreakerClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.promoteLocked()
	return b.state
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.promoteLocked()
	switch b.state {
	case BreakerClosed:
		return true
	case BreakerHalfOpen:
		if b.probing {
			return false
		}
		b.probing = true
		return true
	}
	return false
}

// promoteLocked must be called with b.mu held.
func (b *Breaker) promoteLocked() {
	if b.state == BreakerOpen && b.now().Sub(b.openedAt) >= b.openFor {
		b.state = BreakerHalfOpen
	}
}
