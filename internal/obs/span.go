package obs

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StartDraftSpan starts a span for one draft operation.
func StartDraftSpan(ctx context.Context, op, draftID string) (context.Context, trace.Span) {
	ctx, span := otel.Tracer("quote.editor").Start(ctx, "draft."+op)
	span.SetAttributes(
		attribute.String("draft.operation", op),
		attribute.String("draft.id", truncate(draftID, 64)),
	)
	return ctx, span
}

// EndSpan records err on the span, if any, and ends it.
func EndSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}
