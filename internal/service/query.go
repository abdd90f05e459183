package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/Strob0t/painradar/internal/domain"
	"github.com/Strob0t/painradar/internal/domain/aggregate"
	"github.com/Strob0t/painradar/internal/domain/mode"
	"github.com/Strob0t/painradar/internal/port/ledger"
	"github.com/Strob0t/painradar/internal/port/messagequeue"
)

// QueryService runs aggregations and keeps their history.
type QueryService struct {
	agg    *AggregateService
	ledger ledger.Ledger
	pub    messagequeue.Publisher
}

// NewQueryService creates a QueryService. l and pub may be nil, which
// disables recording and event publishing respectively.
func NewQueryService(agg *AggregateService, l ledger.Ledger, pub messagequeue.Publisher) *QueryService {
	return &QueryService{agg: agg, ledger: l, pub: pub}
}

// Sources returns the configured source names.
func (s *QueryService) Sources() []string { return s.agg.Sources() }

// Run aggregates keyword, records the query and announces it. Recording and
// publishing failures are logged; the query is returned regardless, with an
// empty ID when it could not be recorded.
func (s *QueryService) Run(ctx context.Context, keyword string, m mode.Mode) (*aggregate.Query, error) {
	q, err := s.agg.Aggregate(ctx, keyword, m)
	if err != nil {
		return nil, err
	}

	if s.ledger != nil {
		id, err := s.ledger.Record(ctx, q)
		if err != nil {
			slog.ErrorContext(ctx, "record query failed", "keyword", q.Keyword, "error", err)
		} else {
			q.ID = id
		}
	}

	s.publishRecorded(ctx, q)
	return q, nil
}

func (s *QueryService) publishRecorded(ctx context.Context, q *aggregate.Query) {
	if s.pub == nil || q.ID == "" {
		return
	}
	failed := make([]string, 0, len(q.Errors))
	for name := range q.Errors {
		failed = append(failed, name)
	}
	sort.Strings(failed)

	data, err := json.Marshal(messagequeue.QueryRecordedPayload{
		ID:            q.ID,
		Keyword:       q.Keyword,
		Mode:          q.Mode,
		SourcesFailed: failed,
		SummaryFailed: q.SummaryFailed,
	})
	if err != nil {
		slog.ErrorContext(ctx, "marshal queries.recorded", "error", err)
		return
	}
	if err := s.pub.Publish(ctx, messagequeue.SubjectQueryRecorded, data); err != nil {
		slog.WarnContext(ctx, "publish queries.recorded failed", "id", q.ID, "error", err)
	}
}

// Get returns a recorded query.
func (s *QueryService) Get(ctx context.Context, id string) (*aggregate.Query, error) {
	if s.ledger == nil {
		return nil, domain.ErrNotFound
	}
	return s.ledger.Get(ctx, id)
}

// List returns the most recent recorded queries, newest first.
func (s *QueryService) List(ctx context.Context, limit int) ([]ledger.Entry, error) {
	if s.ledger == nil {
		return []ledger.Entry{}, nil
	}
	return s.ledger.List(ctx, ledger.ClampLimit(limit))
}

// HandleRequested is the messagequeue.Handler for queries.requested. Bad
// requests are dropped; only infrastructure errors ask for redelivery.
func (s *QueryService) HandleRequested(ctx context.Context, _ string, data []byte) error {
	var p messagequeue.QueryRequestedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		slog.WarnContext(ctx, "dropping malformed queries.requested", "error", err)
		return nil
	}
	m, err := mode.Parse(p.Mode)
	if err != nil {
		slog.WarnContext(ctx, "dropping queries.requested", "keyword", p.Keyword, "error", err)
		return nil
	}

	q, err := s.Run(ctx, p.Keyword, m)
	switch {
	case errors.Is(err, domain.ErrValidation):
		slog.WarnContext(ctx, "dropping queries.requested", "keyword", p.Keyword, "error", err)
		return nil
	case err != nil:
		return fmt.Errorf("run requested query: %w", err)
	}
	slog.InfoContext(ctx, "requested query finished", "id", q.ID, "keyword", q.Keyword, "mode", q.Mode)
	return nil
}
