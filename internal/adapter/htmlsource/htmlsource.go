// Package htmlsource implements the "html" source kind: a server-rendered
// listing page scraped with CSS selectors.
package htmlsource

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/Strob0t/painradar/internal/adapter/sourcetext"
	"github.com/Strob0t/painradar/internal/adapter/webfetch"
	"github.com/Strob0t/painradar/internal/domain/aggregate"
	"github.com/Strob0t/painradar/internal/port/source"
)

// Kind is the registry name of this adapter.
const Kind = "html"

func init() {
	source.Register(Kind, func(spec source.Spec) (source.Source, error) {
		return New(spec, webfetch.NewClient())
	})
}

// Selectors locate records inside a page. Item is required; the others are
// evaluated relative to each item.
type Selectors struct {
	Item    string
	Title   string
	Link    string
	Snippet string
}

// SelectorsFromSpec reads the item/title/link/snippet options.
func SelectorsFromSpec(spec source.Spec) (Selectors, error) {
	sel := Selectors{
		Item:    spec.Option("item", ""),
		Title:   spec.Option("title", ""),
		Link:    spec.Option("link", "a"),
		Snippet: spec.Option("snippet", ""),
	}
	if sel.Item == "" {
		return sel, fmt.Errorf("source %q: option item is required", spec.Name)
	}
	return sel, nil
}

// Extract parses an HTML document and returns at most limit records. Links
// are resolved against base.
func Extract(r io.Reader, base *url.URL, sel Selectors, limit int) ([]aggregate.SourceResult, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	var results []aggregate.SourceResult
	doc.Find(sel.Item).EachWithBreak(func(_ int, item *goquery.Selection) bool {
		if len(results) >= limit {
			return false
		}

		titleSel := item
		if sel.Title != "" {
			titleSel = item.Find(sel.Title).First()
		}
		title, _ := titleSel.Html()

		var link string
		if sel.Link != "" {
			link, _ = item.Find(sel.Link).First().Attr("href")
		}
		if link == "" {
			link, _ = item.Attr("href")
		}

		var text string
		if sel.Snippet != "" {
			text, _ = item.Find(sel.Snippet).First().Html()
		}

		if res, ok := sourcetext.Result(title, sourcetext.Resolve(base, link), text); ok {
			results = append(results, res)
		}
		return true
	})
	if results == nil {
		results = []aggregate.SourceResult{}
	}
	return results, nil
}

// Source scrapes a listing page over plain HTTP.
type Source struct {
	name    string
	urlTmpl string
	headers map[string]string
	sel     Selectors
	client  *http.Client
}

// New builds an html source. Options: url (template with {query} and
// {limit}), item, title, link, snippet and headers.<Name>.
func New(spec source.Spec, client *http.Client) (*Source, error) {
	tmpl := spec.Option("url", "")
	if tmpl == "" {
		return nil, fmt.Errorf("source %q: html kind requires option url", spec.Name)
	}
	sel, err := SelectorsFromSpec(spec)
	if err != nil {
		return nil, err
	}
	return &Source{
		name:    spec.Name,
		urlTmpl: tmpl,
		headers: spec.Prefixed("headers."),
		sel:     sel,
		client:  client,
	}, nil
}

// Name returns the configured source name.
func (s *Source) Name() string { return s.name }

// Fetch downloads the listing page and extracts records from it.
func (s *Source) Fetch(ctx context.Context, keyword string, limit int) ([]aggregate.SourceResult, error) {
	pageURL := webfetch.ExpandURL(s.urlTmpl, keyword, limit)
	body, err := webfetch.Do(ctx, s.client, webfetch.Request{
		Source:  s.name,
		URL:     pageURL,
		Headers: s.headers,
		Accept:  "text/html,application/xhtml+xml",
	})
	if err != nil {
		return nil, err
	}

	base, _ := url.Parse(strings.TrimSpace(pageURL))
	results, err := Extract(bytes.NewReader(body), base, s.sel, limit)
	if err != nil {
		return nil, aggregate.NewSourceError(s.name, aggregate.KindParse, "parse html: %v", err)
	}
	return results, nil
}
