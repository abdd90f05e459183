package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	protel "github.com/Strob0t/painradar/internal/adapter/otel"
	"github.com/Strob0t/painradar/internal/config"
	"github.com/Strob0t/painradar/internal/domain"
	"github.com/Strob0t/painradar/internal/domain/aggregate"
	"github.com/Strob0t/painradar/internal/domain/mode"
	"github.com/Strob0t/painradar/internal/logger"
	"github.com/Strob0t/painradar/internal/port/source"
	"github.com/Strob0t/painradar/internal/resilience"
	"github.com/Strob0t/painradar/internal/workpool"
)

// summaryUnavailablePrefix starts the placeholder summary of a query whose
// summarization failed.
const summaryUnavailablePrefix = "Summary unavailable: "

// SummaryRequest is the input of one summarization.
type SummaryRequest struct {
	Keyword string
	Mode    mode.Mode
	Corpus  []aggregate.SourceResult
}

// Summarizer turns a merged corpus into summary text.
type Summarizer interface {
	Summarize(ctx context.Context, req SummaryRequest) (string, error)
}

// limiter is implemented by sources that carry their own result limit.
type limiter interface {
	Limit() int
}

// AggregateService fans a keyword out to every source, merges the results
// and summarizes them.
type AggregateService struct {
	sources    []source.Source
	summarizer Summarizer
	cfg        config.Aggregation
	metrics    *protel.Metrics
	now        func() time.Time
}

// AggregateOption customises an AggregateService.
type AggregateOption func(*AggregateService)

// WithMetrics records aggregation metrics on m.
func WithMetrics(m *protel.Metrics) AggregateOption {
	return func(s *AggregateService) { s.metrics = m }
}

// WithAggregateClock overrides the clock used for timestamps.
func WithAggregateClock(now func() time.Time) AggregateOption {
	return func(s *AggregateService) { s.now = now }
}

// NewAggregateService creates an AggregateService over sources in the given
// order. That order is the merge order of the corpus.
func NewAggregateService(sources []source.Source, summarizer Summarizer, cfg config.Aggregation, opts ...AggregateOption) *AggregateService {
	s := &AggregateService{
		sources:    sources,
		summarizer: summarizer,
		cfg:        cfg,
		now:        time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Sources returns the configured source names in merge order.
func (s *AggregateService) Sources() []string {
	names := make([]string, len(s.sources))
	for i, src := range s.sources {
		names[i] = src.Name()
	}
	return names
}

type indexedOutcome struct {
	index   int
	outcome aggregate.SourceOutcome
}

// Aggregate runs one aggregation. It fails only for a blank keyword or when
// no sources are configured; source and summarizer failures are reported
// inside the returned query.
func (s *AggregateService) Aggregate(ctx context.Context, keyword string, m mode.Mode) (*aggregate.Query, error) {
	keyword = strings.TrimSpace(keyword)
	if keyword == "" {
		return nil, fmt.Errorf("%w: keyword is required", domain.ErrValidation)
	}
	if len(s.sources) == 0 {
		return nil, domain.ErrNoSources
	}
	if m == "" {
		m = mode.Default
	}

	start := s.now()
	ctx = logger.WithAttrs(ctx, "keyword", keyword, "mode", string(m))
	ctx, span := protel.StartAggregateSpan(ctx, keyword, string(m), len(s.sources))
	defer span.End()

	q := aggregate.NewQuery(keyword, string(m), s.Sources())
	q.CreatedAt = start.UTC()

	for _, o := range s.collect(ctx, keyword) {
		if o.Failed() {
			s.metrics.RecordSourceFailure(ctx, o.Source, string(o.Err.Kind))
			slog.WarnContext(ctx, "source failed", "source", o.Source, "kind", o.Err.Kind, "error", o.Err.Message)
		}
		q.Apply(o)
	}

	summary, err := s.summarizer.Summarize(ctx, SummaryRequest{Keyword: keyword, Mode: m, Corpus: q.Corpus()})
	if err != nil {
		slog.WarnContext(ctx, "summarization failed", "error", err)
		q.Summary = summaryUnavailablePrefix + summaryFailureReason(err)
		q.SummaryFailed = true
	} else {
		q.Summary = summary
	}

	elapsed := s.now().Sub(start)
	q.DurationMS = elapsed.Milliseconds()
	s.metrics.RecordAggregation(ctx, string(m), elapsed, q.SummaryFailed)

	slog.InfoContext(ctx, "aggregation complete",
		"sources", len(s.sources),
		"failed", len(q.Errors),
		"items", len(q.Corpus()),
		"summary_failed", q.SummaryFailed,
		"duration_ms", q.DurationMS,
	)
	return q, nil
}

// collect runs every source concurrently under the aggregation deadline and
// returns one outcome per source, in source order. Sources that did not
// report before the deadline are marked as timed out; their goroutines are
// abandoned and finish into the buffered channel.
func (s *AggregateService) collect(ctx context.Context, keyword string) []aggregate.SourceOutcome {
	aggCtx := ctx
	if s.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		aggCtx, cancel = context.WithTimeout(ctx, s.cfg.Deadline)
		defer cancel()
	}

	pool := workpool.NewPool(s.cfg.Workers)
	results := make(chan indexedOutcome, len(s.sources))
	for i, src := range s.sources {
		go func() {
			results <- indexedOutcome{index: i, outcome: s.fetch(aggCtx, pool, src, keyword)}
		}()
	}

	return s.await(aggCtx, results)
}

// await receives one outcome per source until ctx ends. Outcomes already
// buffered when ctx ends are kept; only sources that have not reported are
// marked as timed out.
func (s *AggregateService) await(ctx context.Context, results <-chan indexedOutcome) []aggregate.SourceOutcome {
	outcomes := make([]aggregate.SourceOutcome, len(s.sources))
	done := make([]bool, len(s.sources))
	received := 0
	record := func(r indexedOutcome) {
		outcomes[r.index] = r.outcome
		done[r.index] = true
		received++
	}

	for received < len(s.sources) {
		select {
		case r := <-results:
			record(r)
		case <-ctx.Done():
		drain:
			for received < len(s.sources) {
				select {
				case r := <-results:
					record(r)
				default:
					break drain
				}
			}
			for i, src := range s.sources {
				if !done[i] {
					outcomes[i] = aggregate.SourceOutcome{
						Source: src.Name(),
						Err:    aggregate.NewSourceError(src.Name(), aggregate.KindTimeout, "no result before the aggregation deadline"),
					}
				}
			}
			return outcomes
		}
	}
	return outcomes
}

func (s *AggregateService) fetch(ctx context.Context, pool *workpool.Pool, src source.Source, keyword string) aggregate.SourceOutcome {
	name := src.Name()
	limit := s.cfg.DefaultLimit
	if l, ok := src.(limiter); ok && l.Limit() > 0 {
		limit = l.Limit()
	}

	var items []aggregate.SourceResult
	err := pool.Run(ctx, func(ctx context.Context) error {
		ctx, span := protel.StartSourceSpan(ctx, name, limit)
		var err error
		defer func() { protel.EndSpan(span, err) }()
		items, err = src.Fetch(ctx, keyword, limit)
		return err
	})
	if err == nil {
		return aggregate.SourceOutcome{Source: name, Items: items}
	}

	var pe *workpool.PanicError
	if errors.As(err, &pe) {
		slog.ErrorContext(ctx, "source panicked", "source", name, "panic", pe.Value, "stack", string(pe.Stack))
		return aggregate.SourceOutcome{Source: name, Err: aggregate.NewSourceError(name, aggregate.KindPanic, "%v", pe.Value)}
	}
	return aggregate.SourceOutcome{Source: name, Err: aggregate.AsSourceError(name, err)}
}

// summaryFailureReason renders err for the placeholder summary without
// leaking backend response bodies.
func summaryFailureReason(err error) string {
	var te *resilience.TerminalError
	switch {
	case errors.Is(err, ErrEmptyCorpus):
		return "no source returned results"
	case errors.Is(err, domain.ErrNoCredentials):
		return "no summarizer credentials configured"
	case errors.As(err, &te):
		return fmt.Sprintf("summarizer failed after %d attempt(s), last failure %s", te.Attempts, te.Kind)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return "request cancelled"
	default:
		return err.Error()
	}
}
