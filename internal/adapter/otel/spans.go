package otel

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "taskforge"

// StartOperationSpan starts a span for one engine operation on a task.
func StartOperationSpan(ctx context.Context, op, tenantID, taskID string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "engine."+op,
		trace.WithAttributes(
			attribute.String("tenant.id", tenantID),
			attribute.String("task.id", taskID),
		),
	)
}

// StartDispatchSpan starts a span for delivering one history event to a sink.
func StartDispatchSpan(ctx context.Context, sink, action string) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, "notify",
		trace.WithAttributes(
			attribute.String("notify.sink", sink),
			attribute.String("history.action", action),
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
