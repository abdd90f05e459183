package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/Strob0t/painradar/internal/domain"
	"github.com/Strob0t/painradar/internal/domain/credential"
)

// Defaults for the call layer.
const (
	DefaultMaxRetries     = 3
	DefaultAttemptTimeout = 60 * time.Second
)

// TerminalError is returned when every attempt of a logical call failed.
// Kind is the classification of the last failure.
type TerminalError struct {
	Attempts int
	Kind     credential.FailureKind
	Err      error
}

func (e *TerminalError) Error() string {
	return fmt.Sprintf("call failed after %d attempt(s), last failure %s: %v", e.Attempts, e.Kind, e.Err)
}

func (e *TerminalError) Unwrap() error { return e.Err }

// Attempt describes one finished attempt, reported to the observer.
type Attempt struct {
	Number       int
	CredentialID string
	Kind         credential.FailureKind // FailureNone on success
	Duration     time.Duration
}

// Caller runs logical calls against the summarization backend, rotating
// credentials from a Pool between attempts.
type Caller struct {
	pool           *Pool
	maxRetries     int
	attemptTimeout time.Duration
	backoffBase    time.Duration
	backoffMax     time.Duration
	classify       func(error) credential.FailureKind
	observe        func(Attempt)
	logger         *slog.Logger
}

// CallerOption customises a Caller.
type CallerOption func(*Caller)

// WithMaxRetries sets the total number of attempts per logical call.
func WithMaxRetries(n int) CallerOption {
	return func(c *Caller) {
		if n > 0 {
			c.maxRetries = n
		}
	}
}

// WithAttemptTimeout bounds each individual attempt.
func WithAttemptTimeout(d time.Duration) CallerOption {
	return func(c *Caller) {
		if d > 0 {
			c.attemptTimeout = d
		}
	}
}

// WithBackoff sleeps base*2^(n-1), capped at maxDelay and jittered by ±25%,
// between attempts. A zero base retries immediately.
func WithBackoff(base, maxDelay time.Duration) CallerOption {
	return func(c *Caller) {
		c.backoffBase = base
		c.backoffMax = maxDelay
	}
}

// WithClassifier replaces credential.Classify.
func WithClassifier(fn func(error) credential.FailureKind) CallerOption {
	return func(c *Caller) { c.classify = fn }
}

// WithObserver registers a callback invoked after every attempt.
func WithObserver(fn func(Attempt)) CallerOption { return func(c *Caller) { c.observe = fn } }

// WithCallerLogger sets the caller logger.
func WithCallerLogger(l *slog.Logger) CallerOption { return func(c *Caller) { c.logger = l } }

// NewCaller creates a Caller drawing credentials from pool.
func NewCaller(pool *Pool, opts ...CallerOption) *Caller {
	c := &Caller{
		pool:           pool,
		maxRetries:     DefaultMaxRetries,
		attemptTimeout: DefaultAttemptTimeout,
		classify:       credential.Classify,
		observe:        func(Attempt) {},
		logger:         slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Pool returns the credential pool used by the caller.
func (c *Caller) Pool() *Pool { return c.pool }

// Do runs fn with a freshly selected credential until it succeeds or the
// retry budget is spent. Every attempt reports its outcome to the pool
// exactly once.
func Do[T any](ctx context.Context, c *Caller, fn func(ctx context.Context, cred credential.Credential) (T, error)) (T, error) {
	var (
		zero T
		last *credential.Error
	)
	if c == nil || c.pool == nil {
		return zero, domain.ErrNoCredentials
	}

	for attempt := 1; attempt <= c.maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return zero, c.terminal(attempt-1, last, err)
		}

		cred := c.pool.Select()
		start := time.Now()
		v, err := runAttempt(ctx, c.attemptTimeout, cred, fn)
		elapsed := time.Since(start)

		if err == nil {
			c.pool.MarkSuccess(cred.ID)
			c.observe(Attempt{Number: attempt, CredentialID: cred.ID, Duration: elapsed})
			return v, nil
		}

		kind := c.classify(err)
		if ctx.Err() != nil {
			// The caller gave up; the credential is not to blame.
			kind = credential.FailureOther
		}
		c.pool.MarkFailure(cred.ID, kind)
		c.observe(Attempt{Number: attempt, CredentialID: cred.ID, Kind: kind, Duration: elapsed})
		last = &credential.Error{CredentialID: cred.ID, Kind: kind, Err: err}

		c.logger.Warn("summarizer attempt failed",
			"attempt", attempt,
			"max_attempts", c.maxRetries,
			"credential", cred.ID,
			"kind", kind,
			"error", err,
		)

		if attempt < c.maxRetries {
			if err := c.wait(ctx, attempt); err != nil {
				return zero, c.terminal(attempt, last, err)
			}
		}
	}

	return zero, c.terminal(c.maxRetries, last, nil)
}

func (c *Caller) terminal(attempts int, last *credential.Error, cause error) *TerminalError {
	te := &TerminalError{Attempts: attempts}
	if last != nil {
		te.Kind = last.Kind
		te.Err = last
	}
	if cause != nil {
		if last != nil {
			te.Err = errors.Join(cause, last)
		} else {
			te.Err = cause
			te.Kind = credential.FailureOther
		}
	}
	return te
}

func runAttempt[T any](ctx context.Context, timeout time.Duration, cred credential.Credential,
	fn func(ctx context.Context, cred credential.Credential) (T, error),
) (T, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return fn(attemptCtx, cred)
}

func (c *Caller) wait(ctx context.Context, attempt int) error {
	d := c.backoff(attempt)
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (c *Caller) backoff(attempt int) time.Duration {
	if c.backoffBase <= 0 {
		return 0
	}
	d := c.backoffBase << (attempt - 1)
	if c.backoffMax > 0 && (d > c.backoffMax || d <= 0) {
		d = c.backoffMax
	}
	jitter := float64(d) * 0.25
	return time.Duration(float64(d) - jitter + rand.Float64()*2*jitter)
}
