package observability

import (
	"context"

	"go.opentelemetry.io/otel/trace"
)

// Reparent returns base carrying the span context found in src, so work that
// outlives src (background batches) keeps base's cancellation but still
// traces as a child of the request that started it.
func Reparent(src, base context.Context) context.Context {
	if sc := trace.SpanContextFromContext(src); sc.IsValid() {
		return trace.ContextWithRemoteSpanContext(base, sc)
	}
	return base
}

// TraceID returns the hex trace ID active in ctx, or "" when untraced.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.HasTraceID() {
		return ""
	}
	return sc.TraceID().String()
}
