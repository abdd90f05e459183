// Package source defines the source adapter port.
package source

import (
	"context"
	"strings"
	"time"

	"github.com/Strob0t/painradar/internal/domain/aggregate"
)

// Source fetches raw text records about a keyword from one external site.
// Implementations must honour ctx cancellation and may return fewer than
// limit records.
type Source interface {
	Name() string
	Fetch(ctx context.Context, keyword string, limit int) ([]aggregate.SourceResult, error)
}

// Spec is the configuration of one source instance.
type Spec struct {
	Name    string
	Kind    string
	Limit   int
	TTL     time.Duration
	Timeout time.Duration
	Options map[string]string
}

// Option returns the option value for key, or def when unset or blank.
func (s Spec) Option(key, def string) string {
	if v := strings.TrimSpace(s.Options[key]); v != "" {
		return v
	}
	return def
}

// Prefixed returns the options under prefix (e.g. "headers.") with the
// prefix stripped.
func (s Spec) Prefixed(prefix string) map[string]string {
	out := make(map[string]string)
	for k, v := range s.Options {
		if name, ok := strings.CutPrefix(k, prefix); ok && name != "" {
			out[name] = v
		}
	}
	return out
}

// CacheParams returns the options that change what a fetch returns and so
// belong in its cache key. Headers are excluded; they carry credentials.
func (s Spec) CacheParams() map[string]string {
	out := make(map[string]string, len(s.Options)+1)
	out["kind"] = s.Kind
	for k, v := range s.Options {
		if strings.HasPrefix(k, "headers.") {
			continue
		}
		out[k] = v
	}
	return out
}
