package htmlsource

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/Strob0t/painradar/internal/domain/aggregate"
	"github.com/Strob0t/painradar/internal/port/source"
)

const listing = `<html><body>
<div class="product">
  <h2 class="name">Acme <em>CRM</em></h2>
  <a class="more" href="/p/acme">details</a>
  <p class="blurb">Great, but &amp; slow   sync</p>
</div>
<div class="product">
  <h2 class="name"></h2>
  <a class="more" href="/p/nameless">details</a>
</div>
<div class="product">
  <h2 class="name">Beta Desk</h2>
  <a class="more" href="https://beta.test/">details</a>
</div>
<div class="product">
  <h2 class="name">Gamma</h2>
</div>
</body></html>`

var sel = Selectors{Item: "div.product", Title: ".name", Link: "a.more", Snippet: ".blurb"}

func TestExtract(t *testing.T) {
	base, _ := url.Parse("https://shop.test/search?q=crm")
	results, err := Extract(strings.NewReader(listing), base, sel, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3: %+v", len(results), results)
	}
	want := aggregate.SourceResult{Title: "Acme CRM", URL: "https://shop.test/p/acme", Text: "Great, but & slow sync"}
	if results[0] != want {
		t.Errorf("first = %+v, want %+v", results[0], want)
	}
	if results[1].URL != "https://beta.test/" {
		t.Errorf("absolute link rewritten: %q", results[1].URL)
	}
	if results[2].URL != "" || results[2].Text != "" {
		t.Errorf("missing link/snippet should be empty: %+v", results[2])
	}
}

func TestExtractHonoursLimit(t *testing.T) {
	results, err := Extract(strings.NewReader(listing), nil, sel, 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 {
		t.Fatalf("got %d results, want 1", len(results))
	}
}

func TestExtractNoMatches(t *testing.T) {
	results, err := Extract(strings.NewReader("<html></html>"), nil, sel, 5)
	if err != nil {
		t.Fatal(err)
	}
	if results == nil || len(results) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", results)
	}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "help desk" {
			t.Errorf("q = %q", r.URL.Query().Get("q"))
		}
		_, _ = w.Write([]byte(listing))
	}))
	defer srv.Close()

	s, err := New(source.Spec{Name: "products", Kind: Kind, Options: map[string]string{
		"url":     srv.URL + "/search?q={query}",
		"item":    sel.Item,
		"title":   sel.Title,
		"link":    sel.Link,
		"snippet": sel.Snippet,
	}}, srv.Client())
	if err != nil {
		t.Fatal(err)
	}

	results, err := s.Fetch(context.Background(), "help desk", 5)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(results) != 3 || results[0].URL != srv.URL+"/p/acme" {
		t.Fatalf("unexpected results %+v", results)
	}
}

func TestFetchStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s, err := New(source.Spec{Name: "products", Kind: Kind, Options: map[string]string{"url": srv.URL, "item": "li"}}, srv.Client())
	if err != nil {
		t.Fatal(err)
	}
	_, err = s.Fetch(context.Background(), "x", 5)
	var se *aggregate.SourceError
	if !errors.As(err, &se) || se.Kind != aggregate.KindNetwork {
		t.Fatalf("expected network SourceError, got %v", err)
	}
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(source.Spec{Name: "p", Options: map[string]string{"item": "li"}}, nil); err == nil {
		t.Error("expected error without url")
	}
	if _, err := New(source.Spec{Name: "p", Options: map[string]string{"url": "https://x.test"}}, nil); err == nil {
		t.Error("expected error without item selector")
	}
}
