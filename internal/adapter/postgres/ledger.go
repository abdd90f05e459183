package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Strob0t/painradar/internal/domain"
	"github.com/Strob0t/painradar/internal/domain/aggregate"
	"github.com/Strob0t/painradar/internal/port/ledger"
)

// Ledger implements ledger.Ledger on the queries table.
type Ledger struct {
	pool *pgxpool.Pool
}

var _ ledger.Ledger = (*Ledger)(nil)

// NewLedger creates a Ledger backed by the given connection pool.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Record stores q under a fresh UUID, sets q.ID and returns it.
func (l *Ledger) Record(ctx context.Context, q *aggregate.Query) (string, error) {
	id := uuid.NewString()
	if q.CreatedAt.IsZero() {
		q.CreatedAt = time.Now().UTC()
	}
	q.ID = id

	payload, err := json.Marshal(q)
	if err != nil {
		q.ID = ""
		return "", fmt.Errorf("marshal query: %w", err)
	}

	_, err = l.pool.Exec(ctx,
		`INSERT INTO queries (id, keyword, mode, summary_failed, created_at, payload)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		id, q.Keyword, q.Mode, q.SummaryFailed, q.CreatedAt, payload)
	if err != nil {
		q.ID = ""
		return "", fmt.Errorf("record query: %w", err)
	}
	return id, nil
}

// Get loads a recorded query by ID. Malformed IDs are reported as not found.
func (l *Ledger) Get(ctx context.Context, id string) (*aggregate.Query, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("get query %s: %w", id, domain.ErrNotFound)
	}

	var payload []byte
	err := l.pool.QueryRow(ctx, `SELECT payload FROM queries WHERE id = $1`, id).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("get query %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get query %s: %w", id, err)
	}

	var q aggregate.Query
	if err := json.Unmarshal(payload, &q); err != nil {
		return nil, fmt.Errorf("decode query %s: %w", id, err)
	}
	return &q, nil
}

// List returns the most recent entries, newest first.
func (l *Ledger) List(ctx context.Context, limit int) ([]ledger.Entry, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT id::text, keyword, mode, summary_failed, created_at
		 FROM queries ORDER BY created_at DESC, id LIMIT $1`, ledger.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	defer rows.Close()

	entries := []ledger.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

func scanEntry(row scannable) (ledger.Entry, error) {
	var e ledger.Entry
	if err := row.Scan(&e.ID, &e.Keyword, &e.Mode, &e.SummaryFailed, &e.CreatedAt); err != nil {
		return ledger.Entry{}, fmt.Errorf("scan query: %w", err)
	}
	e.CreatedAt = e.CreatedAt.UTC()
	return e, nil
}
