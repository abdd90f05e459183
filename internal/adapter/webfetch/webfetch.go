// Package webfetch is the HTTP plumbing shared by the api and html source
// adapters.
package webfetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Strob0t/painradar/internal/domain/aggregate"
)

// MaxBody bounds how much of a response is read.
const MaxBody = 10 << 20

// DefaultUserAgent is sent unless a source overrides it.
const DefaultUserAgent = "painradar/1.0 (+https://github.com/Strob0t/painradar)"

// NewClient returns an instrumented HTTP client. Deadlines come from the
// request context.
func NewClient() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

// ExpandURL fills the {query} and {limit} placeholders of a URL template.
func ExpandURL(tmpl, keyword string, limit int) string {
	return strings.NewReplacer(
		"{query}", url.QueryEscape(keyword),
		"{limit}", strconv.Itoa(limit),
	).Replace(tmpl)
}

// ExpandEnv replaces ${ENV_VAR} patterns with their values.
func ExpandEnv(s string) string {
	return os.Expand(s, os.Getenv)
}

// Request describes a single fetch.
type Request struct {
	Source  string
	Method  string
	URL     string
	Headers map[string]string // values are ${ENV} expanded
	Accept  string
}

// Do performs the request and returns the body. Failures are returned as
// *aggregate.SourceError: transport and status failures are network
// errors, context expiry is a timeout.
func Do(ctx context.Context, client *http.Client, r Request) ([]byte, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, nil)
	if err != nil {
		return nil, aggregate.NewSourceError(r.Source, aggregate.KindOther, "new request: %v", err)
	}
	req.Header.Set("User-Agent", DefaultUserAgent)
	if r.Accept != "" {
		req.Header.Set("Accept", r.Accept)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, ExpandEnv(v))
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, aggregate.AsSourceError(r.Source, fmt.Errorf("http: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, aggregate.NewSourceError(r.Source, aggregate.KindNetwork, "http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBody))
	if err != nil {
		return nil, aggregate.AsSourceError(r.Source, fmt.Errorf("read body: %w", err))
	}
	return body, nil
}
