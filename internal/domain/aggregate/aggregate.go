// Package aggregate defines the records produced by source adapters and the
// aggregated query handed to the ledger.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// SourceResult is one normalized item returned by a source.
type SourceResult struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Text  string `json:"text"`
}

// ErrorKind classifies why a source failed.
type ErrorKind string

const (
	KindNetwork ErrorKind = "network"
	KindParse   ErrorKind = "parse"
	KindTimeout ErrorKind = "timeout"
	KindEmpty   ErrorKind = "empty"
	KindPanic   ErrorKind = "panic"
	KindOther   ErrorKind = "other"
)

// SourceError describes the failure of a single source. It never fails the
// aggregation as a whole.
type SourceError struct {
	Source  string    `json:"source"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %s: %s", e.Source, e.Kind, e.Message)
}

// NewSourceError builds a SourceError of the given kind.
func NewSourceError(source string, kind ErrorKind, format string, args ...any) *SourceError {
	return &SourceError{Source: source, Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// AsSourceError converts any fetch error into a SourceError attributed to
// source. Typed SourceErrors keep their kind; other errors are classified.
func AsSourceError(source string, err error) *SourceError {
	if err == nil {
		return nil
	}
	var se *SourceError
	if errors.As(err, &se) {
		out := *se
		out.Source = source
		return &out
	}

	kind := KindOther
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.Is(err, context.Canceled):
		kind = KindTimeout
	case errors.As(err, &netErr):
		if netErr.Timeout() {
			kind = KindTimeout
		} else {
			kind = KindNetwork
		}
	}
	return &SourceError{Source: source, Kind: kind, Message: err.Error()}
}

// SourceOutcome is the result of invoking one source. Exactly one of Items
// (possibly empty) or Err is authoritative.
type SourceOutcome struct {
	Source string
	Items  []SourceResult
	Err    *SourceError
}

// Failed reports whether the source failed.
func (o SourceOutcome) Failed() bool { return o.Err != nil }

// Query is the externally visible result of one aggregation.
type Query struct {
	ID            string                    `json:"id,omitempty"`
	Keyword       string                    `json:"keyword"`
	Mode          string                    `json:"mode"`
	Sources       []string                  `json:"sources"`
	PerSource     map[string][]SourceResult `json:"per_source"`
	Errors        map[string]*SourceError   `json:"errors"`
	Summary       string                    `json:"summary"`
	SummaryFailed bool                      `json:"summary_failed"`
	CreatedAt     time.Time                 `json:"created_at"`
	DurationMS    int64                     `json:"duration_ms"`
}

// NewQuery returns a Query with every source mapped to an empty sequence.
func NewQuery(keyword, mode string, sources []string) *Query {
	q := &Query{
		Keyword:   keyword,
		Mode:      mode,
		Sources:   append([]string(nil), sources...),
		PerSource: make(map[string][]SourceResult, len(sources)),
		Errors:    make(map[string]*SourceError),
	}
	for _, name := range sources {
		q.PerSource[name] = []SourceResult{}
	}
	return q
}

// Apply stores a source outcome on the query.
func (q *Query) Apply(o SourceOutcome) {
	if o.Failed() {
		q.Errors[o.Source] = o.Err
		return
	}
	if o.Items == nil {
		o.Items = []SourceResult{}
	}
	q.PerSource[o.Source] = o.Items
}

// Corpus returns the merged results of the query in source order.
func (q *Query) Corpus() []SourceResult {
	return Merge(q.Sources, q.PerSource)
}

// Merge flattens per-source results following the order of sources, then
// the order within each source. Sources missing from perSource contribute
// nothing.
func Merge(sources []string, perSource map[string][]SourceResult) []SourceResult {
	n := 0
	for _, name := range sources {
		n += len(perSource[name])
	}
	out := make([]SourceResult, 0, n)
	for _, name := range sources {
		out = append(out, perSource[name]...)
	}
	return out
}
