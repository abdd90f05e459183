package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "painradar"

// Metrics holds all painradar metric instruments. The zero value is not
// usable; a nil *Metrics is, and records nothing.
type Metrics struct {
	Aggregations        metric.Int64Counter
	SourceFailures      metric.Int64Counter
	LLMAttempts         metric.Int64Counter
	AggregationDuration metric.Float64Histogram
}

// NewMetrics creates all metric instruments on the global meter provider.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.Aggregations, err = meter.Int64Counter("painradar.aggregations",
		metric.WithDescription("Number of aggregations run"))
	if err != nil {
		return nil, err
	}

	m.SourceFailures, err = meter.Int64Counter("painradar.source.failures",
		metric.WithDescription("Number of failed source fetches by source and kind"))
	if err != nil {
		return nil, err
	}

	m.LLMAttempts, err = meter.Int64Counter("painradar.llm.attempts",
		metric.WithDescription("Number of summarizer attempts by outcome"))
	if err != nil {
		return nil, err
	}

	m.AggregationDuration, err = meter.Float64Histogram("painradar.aggregation.duration_seconds",
		metric.WithDescription("Aggregation wall time in seconds"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return m, nil
}

// RecordAggregation counts one aggregation and its duration.
func (m *Metrics) RecordAggregation(ctx context.Context, mode string, d time.Duration, summaryFailed bool) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("mode", mode),
		attribute.Bool("summary_failed", summaryFailed),
	)
	m.Aggregations.Add(ctx, 1, attrs)
	m.AggregationDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordSourceFailure counts a failed source fetch.
func (m *Metrics) RecordSourceFailure(ctx context.Context, source, kind string) {
	if m == nil {
		return
	}
	m.SourceFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("kind", kind),
	))
}

// RecordLLMAttempt counts a summarizer attempt; outcome is "success" or
// the failure kind.
func (m *Metrics) RecordLLMAttempt(outcome string) {
	if m == nil {
		return
	}
	m.LLMAttempts.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
