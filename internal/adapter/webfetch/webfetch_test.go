package webfetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Strob0t/painradar/internal/domain/aggregate"
)

func TestExpandURL(t *testing.T) {
	tests := []struct {
		name    string
		tmpl    string
		keyword string
		limit   int
		want    string
	}{
		{"plain", "https://x.test/s?q={query}&n={limit}", "crm", 10, "https://x.test/s?q=crm&n=10"},
		{"spaces", "https://x.test/s?q={query}", "slow invoicing", 5, "https://x.test/s?q=slow+invoicing"},
		{"reserved", "https://x.test/s?q={query}", "a&b=c/d?#", 5, "https://x.test/s?q=a%26b%3Dc%2Fd%3F%23"},
		{"unicode", "https://x.test/s?q={query}", "müller", 5, "https://x.test/s?q=m%C3%BCller"},
		{"repeated", "https://x.test/{query}/{query}?l={limit}", "x y", 3, "https://x.test/x+y/x+y?l=3"},
		{"no placeholders", "https://x.test/feed", "crm", 10, "https://x.test/feed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExpandURL(tt.tmpl, tt.keyword, tt.limit); got != tt.want {
				t.Errorf("ExpandURL = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDo(t *testing.T) {
	t.Setenv("WEBFETCH_TEST_TOKEN", "s3cret")

	big := bytes.Repeat([]byte("a"), MaxBody+4096)

	tests := []struct {
		name     string
		req      Request
		handler  http.HandlerFunc
		wantLen  int
		wantKind aggregate.ErrorKind
	}{
		{
			name: "headers expanded",
			req: Request{
				Accept:  "application/json",
				Headers: map[string]string{"Authorization": "Bearer ${WEBFETCH_TEST_TOKEN}", "X-Plain": "as-is"},
			},
			handler: func(w http.ResponseWriter, r *http.Request) {
				if got := r.Header.Get("Authorization"); got != "Bearer s3cret" {
					t.Errorf("Authorization = %q", got)
				}
				if got := r.Header.Get("X-Plain"); got != "as-is" {
					t.Errorf("X-Plain = %q", got)
				}
				if got := r.Header.Get("Accept"); got != "application/json" {
					t.Errorf("Accept = %q", got)
				}
				if got := r.Header.Get("User-Agent"); got != DefaultUserAgent {
					t.Errorf("User-Agent = %q", got)
				}
				if r.Method != http.MethodGet {
					t.Errorf("method = %s", r.Method)
				}
				_, _ = w.Write([]byte("ok"))
			},
			wantLen: 2,
		},
		{
			name: "custom method",
			req:  Request{Method: http.MethodPost},
			handler: func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("method = %s", r.Method)
				}
				_, _ = w.Write([]byte("{}"))
			},
			wantLen: 2,
		},
		{
			name: "not found",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "nope", http.StatusNotFound)
			},
			wantKind: aggregate.KindNetwork,
		},
		{
			name: "server error",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			},
			wantKind: aggregate.KindNetwork,
		},
		{
			name: "body capped",
			handler: func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write(big)
			},
			wantLen: MaxBody,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			r := tt.req
			r.Source = "forum"
			r.URL = srv.URL

			body, err := Do(context.Background(), srv.Client(), r)
			if tt.wantKind != "" {
				var se *aggregate.SourceError
				if !errors.As(err, &se) || se.Kind != tt.wantKind || se.Source != "forum" {
					t.Fatalf("expected %s source error, got %v", tt.wantKind, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Do: %v", err)
			}
			if len(body) != tt.wantLen {
				t.Fatalf("body length = %d, want %d", len(body), tt.wantLen)
			}
		})
	}
}

func TestDoTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := Do(ctx, srv.Client(), Request{Source: "slow", URL: srv.URL})
	var se *aggregate.SourceError
	if !errors.As(err, &se) || se.Kind != aggregate.KindTimeout {
		t.Fatalf("expected timeout source error, got %v", err)
	}
}
