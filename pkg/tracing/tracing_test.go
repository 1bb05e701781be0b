package tracing

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestHelpersAreNoOpsWithoutTracer(t *testing.T) {
	SetTracer(nil)

	ctx, span := StartSpan(context.Background(), "ingest.run")
	span.End()

	assert.Empty(t, GetTraceID(ctx))
	assert.Empty(t, TraceParent(ctx))
}

func TestTraceParentCarriesTraceID(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	t.Cleanup(func() {
		SetTracer(nil)
		_ = tp.Shutdown(context.Background())
	})
	SetTracer(tp.Tracer("tracing-test"))

	ctx, span := StartSpan(context.Background(), "ingest.run")
	defer span.End()

	traceID := GetTraceID(ctx)
	require.NotEmpty(t, traceID)

	parent := TraceParent(ctx)
	require.True(t, strings.HasPrefix(parent, "00-"), "want W3C version prefix, got %q", parent)
	assert.Contains(t, parent, traceID)
}
