package service

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/Strob0t/painradar/internal/domain/aggregate"
	"github.com/Strob0t/painradar/internal/domain/mode"
)

//go:embed prompts/*.tmpl
var promptFS embed.FS

var promptTemplates = template.Must(template.ParseFS(promptFS, "prompts/*.tmpl"))

// DefaultCorpusBudget is the number of corpus characters rendered into a
// prompt when no budget is configured.
const DefaultCorpusBudget = 24000

type promptItem struct {
	N     int
	Title string
	URL   string
	Text  string
}

type promptData struct {
	Keyword string
	Items   []promptItem
	Omitted int
}

// RenderPrompt renders the user prompt for m. Items are added in corpus
// order until budget characters of title and text are used; the item that
// crosses the budget has its text cut.
func RenderPrompt(m mode.Mode, keyword string, corpus []aggregate.SourceResult, budget int) (string, error) {
	if budget <= 0 {
		budget = DefaultCorpusBudget
	}

	data := promptData{Keyword: keyword}
	used := 0
	for i, r := range corpus {
		if used >= budget {
			data.Omitted = len(corpus) - i
			break
		}
		text := r.Text
		if remaining := budget - used - len(r.Title); len(text) > remaining {
			text = truncateRunes(text, max(remaining, 0))
		}
		used += len(r.Title) + len(text)
		data.Items = append(data.Items, promptItem{N: i + 1, Title: r.Title, URL: r.URL, Text: text})
	}

	var buf bytes.Buffer
	if err := promptTemplates.ExecuteTemplate(&buf, string(m)+".tmpl", data); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", m, err)
	}
	return buf.String(), nil
}

// truncateRunes cuts s to at most n bytes without splitting a rune.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !isRuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func isRuneStart(b byte) bool { return b&0xC0 != 0x80 }
