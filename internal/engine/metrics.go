package engine

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names recorded by the engine.
const (
	MetricParses         = "syntaxkit.parses"
	MetricParseDuration  = "syntaxkit.parse.duration"
	MetricQueries        = "syntaxkit.queries"
	MetricPartialResults = "syntaxkit.partial_results"
	MetricEdits          = "syntaxkit.edits"
	MetricEditConflicts  = "syntaxkit.edit_conflicts"

	attrLanguage = "language"
	attrPattern  = "pattern"
	attrSuccess  = "success"
)

type metrics struct {
	parses        metric.Int64Counter
	parseDuration metric.Float64Histogram
	queries       metric.Int64Counter
	partial       metric.Int64Counter
	edits         metric.Int64Counter
	conflicts     metric.Int64Counter
}

func newMetrics(provider metric.MeterProvider) (*metrics, error) {
	meter := provider.Meter("github.com/dusk-indust/syntaxkit/internal/engine")

	var (
		m   metrics
		err error
	)
	if m.parses, err = meter.Int64Counter(MetricParses,
		metric.WithDescription("Number of parse operations")); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricParses, err)
	}
	if m.parseDuration, err = meter.Float64Histogram(MetricParseDuration,
		metric.WithDescription("Parse duration in seconds"),
		metric.WithUnit("s")); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricParseDuration, err)
	}
	if m.queries, err = meter.Int64Counter(MetricQueries,
		metric.WithDescription("Number of query runs")); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricQueries, err)
	}
	if m.partial, err = meter.Int64Counter(MetricPartialResults,
		metric.WithDescription("Query runs stopped by a match limit or timeout")); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricPartialResults, err)
	}
	if m.edits, err = meter.Int64Counter(MetricEdits,
		metric.WithDescription("Number of applied edits")); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricEdits, err)
	}
	if m.conflicts, err = meter.Int64Counter(MetricEditConflicts,
		metric.WithDescription("Edits rejected for introducing syntax errors")); err != nil {
		return nil, fmt.Errorf("create %s: %w", MetricEditConflicts, err)
	}
	return &m, nil
}

func (m *metrics) recordParse(ctx context.Context, language string, d time.Duration, ok bool) {
	attrs := metric.WithAttributes(
		attribute.String(attrLanguage, language),
		attribute.Bool(attrSuccess, ok),
	)
	m.parses.Add(ctx, 1, attrs)
	m.parseDuration.Record(ctx, d.Seconds(), attrs)
}

func (m *metrics) recordQuery(ctx context.Context, language, key string, partial bool) {
	attrs := metric.WithAttributes(
		attribute.String(attrLanguage, language),
		attribute.String(attrPattern, key),
	)
	m.queries.Add(ctx, 1, attrs)
	if partial {
		m.partial.Add(ctx, 1, attrs)
	}
}

func (m *metrics) recordEdit(ctx context.Context, language string, conflict bool) {
	attrs := metric.WithAttributes(attribute.String(attrLanguage, language))
	if conflict {
		m.conflicts.Add(ctx, 1, attrs)
		return
	}
	m.edits.Add(ctx, 1, attrs)
}
