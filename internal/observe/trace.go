package observe

import (
	"context"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// scopeName is the instrumentation scope for every pipeline span.
const scopeName = "github.com/medvoice-ai/teachback"

// StartSpan opens a span on the global tracer. The caller must call
// span.End() when done.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return otel.Tracer(scopeName).Start(ctx, name)
}

// Logger returns the default [slog.Logger], enriched with trace_id and
// span_id when ctx carries an active span.
func Logger(ctx context.Context) *slog.Logger {
	l := slog.Default()
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		l = l.With(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}
	return l
}
