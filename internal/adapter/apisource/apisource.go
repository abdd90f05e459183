// Package apisource implements the "api" source kind: a JSON HTTP API whose
// result array is located by a dot path and mapped field by field.
package apisource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/Strob0t/painradar/internal/adapter/sourcetext"
	"github.com/Strob0t/painradar/internal/adapter/webfetch"
	"github.com/Strob0t/painradar/internal/domain/aggregate"
	"github.com/Strob0t/painradar/internal/port/source"
)

// Kind is the registry name of this adapter.
const Kind = "api"

func init() {
	source.Register(Kind, func(spec source.Spec) (source.Source, error) {
		return New(spec, webfetch.NewClient())
	})
}

// Source fetches records from a JSON API.
type Source struct {
	name       string
	urlTmpl    string
	method     string
	headers    map[string]string
	resultPath string
	fields     map[string]string
	client     *http.Client
}

// New builds an api source. Options:
//
//	url            URL template with {query} and {limit}
//	method         HTTP method, default GET
//	headers.<Name> request header, ${ENV} expanded at fetch time
//	result_path    dot path to the result array, empty for a root array
//	field.title    item key for the title (default "title"), same for url/text
func New(spec source.Spec, client *http.Client) (*Source, error) {
	tmpl := spec.Option("url", "")
	if tmpl == "" {
		return nil, fmt.Errorf("source %q: api kind requires option url", spec.Name)
	}
	return &Source{
		name:       spec.Name,
		urlTmpl:    tmpl,
		method:     strings.ToUpper(spec.Option("method", http.MethodGet)),
		headers:    spec.Prefixed("headers."),
		resultPath: spec.Option("result_path", ""),
		fields: map[string]string{
			"title": spec.Option("field.title", "title"),
			"url":   spec.Option("field.url", "url"),
			"text":  spec.Option("field.text", "text"),
		},
		client: client,
	}, nil
}

// Name returns the configured source name.
func (s *Source) Name() string { return s.name }

// Fetch calls the API and returns at most limit normalized records.
func (s *Source) Fetch(ctx context.Context, keyword string, limit int) ([]aggregate.SourceResult, error) {
	body, err := webfetch.Do(ctx, s.client, webfetch.Request{
		Source:  s.name,
		Method:  s.method,
		URL:     webfetch.ExpandURL(s.urlTmpl, keyword, limit),
		Headers: s.headers,
		Accept:  "application/json",
	})
	if err != nil {
		return nil, err
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, aggregate.NewSourceError(s.name, aggregate.KindParse, "json decode: %v", err)
	}

	items, err := walkPath(raw, s.resultPath)
	if err != nil {
		return nil, aggregate.NewSourceError(s.name, aggregate.KindParse, "walk path %q: %v", s.resultPath, err)
	}

	results := make([]aggregate.SourceResult, 0, min(len(items), max(limit, 0)))
	for _, item := range items {
		if len(results) >= limit {
			break
		}
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		r, ok := sourcetext.Result(
			asString(lookup(obj, s.fields["title"])),
			asString(lookup(obj, s.fields["url"])),
			asString(lookup(obj, s.fields["text"])),
		)
		if ok {
			results = append(results, r)
		}
	}
	return results, nil
}

// walkPath walks a dot-notation path into a JSON value, returning the array
// found there. An empty path requires the root to be an array.
func walkPath(v any, path string) ([]any, error) {
	current := v
	if path != "" {
		for _, part := range strings.Split(path, ".") {
			obj, ok := current.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("expected object at %q, got %T", part, current)
			}
			if current, ok = obj[part]; !ok {
				return nil, fmt.Errorf("key %q not found", part)
			}
		}
	}

	arr, ok := current.([]any)
	if !ok {
		return nil, fmt.Errorf("%T is not an array", current)
	}
	return arr, nil
}

// lookup resolves a possibly dotted field name inside an item.
func lookup(obj map[string]any, field string) any {
	var current any = obj
	for _, part := range strings.Split(field, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprintf("%v", v)
	}
}
