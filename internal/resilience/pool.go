package resilience

import (
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/Strob0t/painradar/internal/domain"
	"github.com/Strob0t/painradar/internal/domain/credential"
)

// DefaultCooldown is how long a rate-limited or failing credential is skipped.
const DefaultCooldown = 60 * time.Second

// PoolStats is a point-in-time view of the pool for health reporting.
// Secrets are stripped.
type PoolStats struct {
	Total       int                     `json:"total"`
	Available   int                     `json:"available"`
	CoolingDown int                     `json:"cooling_down"`
	Credentials []credential.Credential `json:"credentials"`
}

// Pool holds the summarizer credentials and rotates among them. Cooldowns
// expire lazily: a cooling credential is promoted back to available the
// next time a selection observes that its cooldown has passed.
type Pool struct {
	mu       sync.Mutex
	creds    []*credential.Credential
	byID     map[string]*credential.Credential
	cooldown time.Duration
	now      func() time.Time
	intn     func(n int) int
	logger   *slog.Logger
}

// PoolOption customises a Pool.
type PoolOption func(*Pool)

// WithCooldown sets the cooldown applied after rate-limited or transient failures.
func WithCooldown(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.cooldown = d
		}
	}
}

// WithClock overrides time.Now (for testing).
func WithClock(now func() time.Time) PoolOption { return func(p *Pool) { p.now = now } }

// WithRand overrides the random index source; intn(n) must return [0, n).
func WithRand(intn func(n int) int) PoolOption { return func(p *Pool) { p.intn = intn } }

// WithLogger sets the pool logger.
func WithLogger(l *slog.Logger) PoolOption { return func(p *Pool) { p.logger = l } }

// NewPool creates a pool from raw secrets. Blank and duplicate secrets are
// skipped. It returns domain.ErrNoCredentials when nothing usable remains.
func NewPool(secrets []string, opts ...PoolOption) (*Pool, error) {
	p := &Pool{
		byID:     make(map[string]*credential.Credential),
		cooldown: DefaultCooldown,
		now:      time.Now,
		intn:     rand.IntN,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(p)
	}

	seen := make(map[string]bool, len(secrets))
	for _, s := range secrets {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		c := &credential.Credential{
			ID:     credential.MakeID(len(p.creds)+1, s),
			Secret: s,
			State:  credential.StateAvailable,
		}
		p.creds = append(p.creds, c)
		p.byID[c.ID] = c
	}
	if len(p.creds) == 0 {
		return nil, domain.ErrNoCredentials
	}
	return p, nil
}

// Cooldown returns the configured cooldown duration.
func (p *Pool) Cooldown() time.Duration { return p.cooldown }

// Select picks a credential uniformly at random among the available ones.
// When none is available every credential is reset to available first, so
// a caller always gets a credential to try.
func (p *Pool) Select() credential.Credential {
	p.mu.Lock()
	defer p.mu.Unlock()

	candidates := p.availableLocked(p.now())
	if len(candidates) == 0 {
		p.logger.Warn("credential pool exhausted, resetting cooldowns", "total", len(p.creds))
		for _, c := range p.creds {
			c.State = credential.StateAvailable
			c.CooldownUntil = time.Time{}
		}
		candidates = p.creds
	}

	chosen := candidates[p.intn(len(candidates))]
	return *chosen
}

// availableLocked promotes expired cooldowns and returns the available
// credentials. Must be called with p.mu held.
func (p *Pool) availableLocked(now time.Time) []*credential.Credential {
	out := make([]*credential.Credential, 0, len(p.creds))
	for _, c := range p.creds {
		if c.State == credential.StateCoolingDown && !now.Before(c.CooldownUntil) {
			c.State = credential.StateAvailable
			c.CooldownUntil = time.Time{}
		}
		if c.State == credential.StateAvailable {
			out = append(out, c)
		}
	}
	return out
}

// MarkSuccess records a successful attempt with the credential.
func (p *Pool) MarkSuccess(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.byID[id]
	if !ok {
		return
	}
	c.Successes++
}

// MarkFailure records a failed attempt. Rate-limited and transient failures
// put the credential in cooldown; unauthenticated and other failures leave
// it selectable.
func (p *Pool) MarkFailure(id string, kind credential.FailureKind) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.byID[id]
	if !ok {
		return
	}
	c.Failures++
	c.LastFailure = kind

	switch {
	case kind.CoolsDown():
		c.State = credential.StateCoolingDown
		c.CooldownUntil = p.now().Add(p.cooldown)
		p.logger.Info("credential cooling down",
			"credential", c.ID, "reason", kind, "until", c.CooldownUntil)
	case kind == credential.FailureUnauthenticated:
		p.logger.Warn("credential rejected by backend", "credential", c.ID)
	default:
		p.logger.Info("credential call failed", "credential", c.ID, "reason", kind)
	}
}

// Stats returns availability counts and per-credential state. Expired
// cooldowns are reported as available without mutating the pool. A nil
// pool reports zero credentials.
func (p *Pool) Stats() PoolStats {
	if p == nil {
		return PoolStats{Credentials: []credential.Credential{}}
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	stats := PoolStats{Total: len(p.creds), Credentials: make([]credential.Credential, 0, len(p.creds))}
	for _, c := range p.creds {
		view := *c
		view.Secret = ""
		if view.Available(now) {
			view.State = credential.StateAvailable
			view.CooldownUntil = time.Time{}
			stats.Available++
		} else {
			stats.CoolingDown++
		}
		stats.Credentials = append(stats.Credentials, view)
	}
	return stats
}
