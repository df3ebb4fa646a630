package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zapcore"
)

func fieldMap(ctx context.Context) map[string]string {
	out := map[string]string{}
	for _, f := range ContextFields(ctx) {
		out[f.Key] = f.String
	}
	return out
}

func TestContextFields_Empty(t *testing.T) {
	assert.Empty(t, ContextFields(context.Background()))
}

func TestContextFields_Correlation(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-42")
	ctx = WithUploadID(ctx, "up-7")
	ctx = WithOperation(ctx, "get_analysis")

	fields := fieldMap(ctx)
	assert.Equal(t, "req-42", fields["request.id"])
	assert.Equal(t, "up-7", fields["upload.id"])
	assert.Equal(t, "get_analysis", fields["operation"])
	assert.NotContains(t, fields, "trace_id")
}

func TestContextFields_TraceSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	ctx, span := tp.Tracer("test").Start(context.Background(), "op")
	defer span.End()

	fields := fieldMap(ctx)
	require.Contains(t, fields, "trace_id")
	assert.Equal(t, span.SpanContext().TraceID().String(), fields["trace_id"])
	assert.Equal(t, span.SpanContext().SpanID().String(), fields["span_id"])
}

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	logger, rec := NewRecorder()
	ctx := WithLogger(context.Background(), logger)
	FromContext(ctx).Info(ctx, "hello")
	assert.True(t, rec.Has(zapcore.InfoLevel, "hello"))
}

func TestWithOperation_KeepsOtherIDs(t *testing.T) {
	ctx := WithUploadID(context.Background(), "up-1")
	inner := WithOperation(ctx, "share")

	assert.Equal(t, "up-1", UploadIDFromContext(inner))
	assert.Equal(t, "share", OperationFromContext(inner))
	assert.Empty(t, OperationFromContext(ctx))
}
