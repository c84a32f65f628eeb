package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// NoopMetrics is a MetricsRecorder that does nothing.
// Use when metrics are disabled to avoid overhead.
type NoopMetrics struct{}

// Compile-time interface check.
var _ MetricsRecorder = NoopMetrics{}

// RecordRegister does nothing.
func (NoopMetrics) RecordRegister(_ context.Context, _ string, _ bool) {}

// RecordUnregister does nothing.
func (NoopMetrics) RecordUnregister(_ context.Context, _ string, _ int) {}

// RecordCleanup does nothing.
func (NoopMetrics) RecordCleanup(_ context.Context, _ string, _ int) {}

// RecordDispatch does nothing.
func (NoopMetrics) RecordDispatch(_ context.Context, _ string, _ int, _ time.Duration) {}

// RecordLockWait does nothing.
func (NoopMetrics) RecordLockWait(_ context.Context, _ string, _ time.Duration) {}

// NoopSpanManager is a SpanManager that does nothing.
// Use when tracing is disabled to avoid overhead.
type NoopSpanManager struct{}

// Compile-time interface check.
var _ SpanManager = NoopSpanManager{}

// noopSpan is a span that does nothing.
// We use the OTel noop package for a proper no-op span implementation.
var noopSpan = noop.Span{}

// StartDispatchSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartDispatchSpan(ctx context.Context, _ string, _ any, _ bool) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// StartSelectSpan returns the context unchanged and a no-op span.
func (NoopSpanManager) StartSelectSpan(ctx context.Context, _ string, _ int) (context.Context, trace.Span) {
	return ctx, noopSpan
}

// EndSpanWithError does nothing.
func (NoopSpanManager) EndSpanWithError(_ trace.Span, _ error) {}
