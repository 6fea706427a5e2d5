package observability

import (
	"context"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// RecordError marks the span carried by ctx as failed. An empty description uses err's text.
func RecordError(ctx context.Context, err error, description string) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() || err == nil {
		return
	}
	if description == "" {
		description = err.Error()
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, description)
}

// TraceID returns the trace id carried by ctx, or "" when there is none. Log lines carry it
// as trace_id so they can be joined with exported spans.
func TraceID(ctx context.Context) string {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}
