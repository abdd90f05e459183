package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "painradar"

// StartAggregateSpan starts the span covering one aggregation.
func StartAggregateSpan(ctx context.Context, keyword, mode string, sources int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "aggregate",
		trace.WithAttributes(
			attribute.String("query.keyword", keyword),
			attribute.String("query.mode", mode),
			attribute.Int("query.sources", sources),
		),
	)
}

// StartSourceSpan starts the span for a single source fetch.
func StartSourceSpan(ctx context.Context, source string, limit int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "source.fetch",
		trace.WithAttributes(
			attribute.String("source.name", source),
			attribute.Int("source.limit", limit),
		),
	)
}

// StartSummarizeSpan starts the span for the summarization step.
func StartSummarizeSpan(ctx context.Context, mode string, corpusItems int) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "summarize",
		trace.WithAttributes(
			attribute.String("query.mode", mode),
			attribute.Int("corpus.items", corpusItems),
		),
	)
}

// EndSpan records err on span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
