// Package tracing holds the process-wide tracer and the helpers the ingest
// pipeline uses to stamp spans onto crawl and persistence work. When no
// tracer is installed every helper degrades to a no-op so tests and
// tracing-disabled deploys pay nothing.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

var tracer trace.Tracer

// SetTracer installs the tracer used by StartSpan. Called once at startup
// when tracing is enabled.
func SetTracer(t trace.Tracer) {
	tracer = t
}

// StartSpan opens a child span under whatever span the context carries. With
// no tracer installed it returns the context untouched and a no-op span, so
// callers can defer span.End unconditionally.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name)
}

// activeSpan returns the recording span from the context, or nil when the
// context carries none or tracing is off.
func activeSpan(ctx context.Context) trace.Span {
	if tracer == nil {
		return nil
	}
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	return span
}

// GetTraceID returns the current trace id for log and error correlation, or
// "" when the context has no recording span.
func GetTraceID(ctx context.Context) string {
	span := activeSpan(ctx)
	if span == nil {
		return ""
	}
	return span.SpanContext().TraceID().String()
}

// TraceParent renders the context's span as a W3C traceparent value. Event
// producers attach it to outgoing messages so consumers can join the run's
// trace. Empty when the context has no recording span.
func TraceParent(ctx context.Context) string {
	if activeSpan(ctx) == nil {
		return ""
	}
	carrier := propagation.MapCarrier{}
	propagation.TraceContext{}.Inject(ctx, carrier)
	return carrier.Get("traceparent")
}
