package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

// RecordReceived does nothing.
func (NoopMetrics) RecordReceived(_ context.Context, _ int, _ string) {}

// RecordRejected does nothing.
func (NoopMetrics) RecordRejected(_ context.Context, _ int) {}

// RecordDropped does nothing.
func (NoopMetrics) RecordDropped(_ context.Context, _ int, _ string) {}

// RecordMatched does nothing.
func (NoopMetrics) RecordMatched(_ context.Context, _, _ time.Duration) {}

// RecordConsumerError does nothing.
func (NoopMetrics) RecordConsumerError(_ context.Context, _ bool) {}

// NoopSpanManager is a SpanManager that does nothing.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

var noopSpan = noop.Span{}

// StartInsertSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartInsertSpan(ctx context.Context, _ string, _ int, _ uint64) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}

// AddSpanEvent does nothing.
func (NoopSpanManager) AddSpanEvent(_ context.Context, _ string, _ ...attribute.KeyValue) {}
