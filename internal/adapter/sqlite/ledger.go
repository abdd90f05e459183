package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Strob0t/painradar/internal/domain"
	"github.com/Strob0t/painradar/internal/domain/aggregate"
	"github.com/Strob0t/painradar/internal/port/ledger"
)

// Ledger is the append-only query ledger on the queries table.
type Ledger struct {
	db *sql.DB
}

var _ ledger.Ledger = (*Ledger)(nil)

// NewLedger creates a Ledger on an opened database.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Record stores q under a fresh ID, sets q.ID and returns it.
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

	_, err = l.db.ExecContext(ctx,
		`INSERT INTO queries (id, keyword, mode, summary_failed, created_at, payload)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, q.Keyword, q.Mode, q.SummaryFailed, q.CreatedAt.UnixMilli(), string(payload))
	if err != nil {
		q.ID = ""
		return "", fmt.Errorf("record query: %w", err)
	}
	return id, nil
}

// Get loads a recorded query by ID.
func (l *Ledger) Get(ctx context.Context, id string) (*aggregate.Query, error) {
	var payload string
	err := l.db.QueryRowContext(ctx, `SELECT payload FROM queries WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get query %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get query %s: %w", id, err)
	}

	var q aggregate.Query
	if err := json.Unmarshal([]byte(payload), &q); err != nil {
		return nil, fmt.Errorf("decode query %s: %w", id, err)
	}
	return &q, nil
}

// List returns the most recent entries, newest first.
func (l *Ledger) List(ctx context.Context, limit int) ([]ledger.Entry, error) {
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, keyword, mode, summary_failed, created_at
		 FROM queries ORDER BY created_at DESC, id LIMIT ?`, ledger.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list queries: %w", err)
	}
	defer rows.Close()

	entries := []ledger.Entry{}
	for rows.Next() {
		var (
			e         ledger.Entry
			createdAt int64
		)
		if err := rows.Scan(&e.ID, &e.Keyword, &e.Mode, &e.SummaryFailed, &createdAt); err != nil {
			return nil, fmt.Errorf("scan query: %w", err)
		}
		e.CreatedAt = time.UnixMilli(createdAt).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
