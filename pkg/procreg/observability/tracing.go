package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer is the procreg tracer instance.
// Uses the global OTel tracer provider.
var tracer = otel.Tracer("procreg")

// SpanManager handles trace span lifecycle.
// Use NewSpanManager() for OTel tracing or NoopSpanManager{} when disabled.
type SpanManager interface {
	// StartDispatchSpan starts a span covering a dispatch barrier.
	StartDispatchSpan(ctx context.Context, registry string, key any, parallel bool) (context.Context, trace.Span)

	// StartSelectSpan starts a span covering a registry-wide selection.
	StartSelectSpan(ctx context.Context, registry string, rules int) (context.Context, trace.Span)

	// EndSpanWithError completes a span, optionally recording an error.
	EndSpanWithError(span trace.Span, err error)
}

// otelSpanManager implements SpanManager using OpenTelemetry.
type otelSpanManager struct{}

// NewSpanManager returns a SpanManager that uses OpenTelemetry.
//
// The span manager uses the global OTel tracer provider. Configure the
// provider before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetTracerProvider(yourProvider)
func NewSpanManager() SpanManager {
	return &otelSpanManager{}
}

// StartDispatchSpan starts a span covering a dispatch barrier.
func (m *otelSpanManager) StartDispatchSpan(ctx context.Context, registry string, key any, parallel bool) (context.Context, trace.Span) {
	return tracer.Start(ctx, "procreg.dispatch",
		trace.WithAttributes(
			attribute.String("registry", registry),
			attribute.String("key", fmt.Sprintf("%v", key)),
			attribute.Bool("parallel", parallel),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// StartSelectSpan starts a span covering a registry-wide selection.
func (m *otelSpanManager) StartSelectSpan(ctx context.Context, registry string, rules int) (context.Context, trace.Span) {
	return tracer.Start(ctx, "procreg.select",
		trace.WithAttributes(
			attribute.String("registry", registry),
			attribute.Int("rules", rules),
		),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
}

// EndSpanWithError completes a span, optionally recording an error.
func (m *otelSpanManager) EndSpanWithError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
