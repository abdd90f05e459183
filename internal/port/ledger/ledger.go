// Package ledger defines the port for persisting aggregated queries.
package ledger

import (
	"context"
	"time"

	"github.com/Strob0t/painradar/internal/domain/aggregate"
)

// DefaultListLimit and MaxListLimit bound List page sizes.
const (
	DefaultListLimit = 20
	MaxListLimit     = 200
)

// Entry is the listing view of a recorded query.
type Entry struct {
	ID            string    `json:"id"`
	Keyword       string    `json:"keyword"`
	Mode          string    `json:"mode"`
	SummaryFailed bool      `json:"summary_failed"`
	CreatedAt     time.Time `json:"created_at"`
}

// Ledger is an append-only store of aggregated queries.
type Ledger interface {
	// Record persists q, assigns q.ID and returns it.
	Record(ctx context.Context, q *aggregate.Query) (string, error)
	// Get returns domain.ErrNotFound for unknown IDs.
	Get(ctx context.Context, id string) (*aggregate.Query, error)
	List(ctx context.Context, limit int) ([]Entry, error)
}

// ClampLimit applies the default and maximum page sizes.
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
