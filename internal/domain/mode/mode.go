// Package mode defines the analysis modes that select a summary prompt.
package mode

import (
	"fmt"
	"strings"

	"github.com/Strob0t/painradar/internal/domain"
)

// Mode selects the prompt variant used to summarize a corpus.
type Mode string

const (
	PainPoints    Mode = "pain_points"
	Opportunities Mode = "opportunities"
	Competitors   Mode = "competitors"
)

// Default is used when a request does not name a mode.
const Default = PainPoints

// All returns every supported mode in display order.
func All() []Mode {
	return []Mode{PainPoints, Opportunities, Competitors}
}

// Parse validates s and returns the matching Mode. Empty input selects Default.
func Parse(s string) (Mode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return Default, nil
	}
	for _, m := range All() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("%w: unknown mode %q", domain.ErrValidation, s)
}

func (m Mode) String() string { return string(m) }
