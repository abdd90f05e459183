// Package sourcetext normalizes text scraped from sources before it enters
// the corpus.
package sourcetext

import (
	"html"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/Strob0t/painradar/internal/domain/aggregate"
)

// MaxRunes caps the length of any single normalized field.
const MaxRunes = 2000

var strict = bluemonday.StrictPolicy()

// Clean strips markup, decodes entities, collapses whitespace and caps the
// result at MaxRunes.
func Clean(s string) string {
	if s == "" {
		return ""
	}
	s = html.UnescapeString(strict.Sanitize(s))
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) > MaxRunes {
		r := []rune(s)
		s = strings.TrimSpace(string(r[:MaxRunes]))
	}
	return s
}

// Result builds a normalized record. It reports false when the title is
// empty after cleaning; such records are dropped.
func Result(title, link, text string) (aggregate.SourceResult, bool) {
	r := aggregate.SourceResult{
		Title: Clean(title),
		URL:   cleanURL(link),
		Text:  Clean(text),
	}
	return r, r.Title != ""
}

// Resolve makes link absolute against base. Unparseable links are returned
// unchanged.
func Resolve(base *url.URL, link string) string {
	link = strings.TrimSpace(link)
	if base == nil || link == "" {
		return link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return base.ResolveReference(ref).String()
}

// cleanURL keeps only http(s) links.
func cleanURL(link string) string {
	link = strings.TrimSpace(link)
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return ""
	}
	return u.String()
}
