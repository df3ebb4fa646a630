package logging

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// correlation is the set of IDs that tie a log line to an API call. It is
// stored by value and copied on every With* call.
type correlation struct {
	requestID string
	uploadID  string
	operation string
}

type correlationKey struct{}
type loggerKey struct{}

func correlationFrom(ctx context.Context) correlation {
	c, _ := ctx.Value(correlationKey{}).(correlation)
	return c
}

func withCorrelation(ctx context.Context, set func(*correlation)) context.Context {
	c := correlationFrom(ctx)
	set(&c)
	return context.WithValue(ctx, correlationKey{}, c)
}

// WithRequestID tags ctx with the X-Request-ID sent to the API.
func WithRequestID(ctx context.Context, id string) context.Context {
	return withCorrelation(ctx, func(c *correlation) { c.requestID = id })
}

// WithUploadID tags ctx with the upload whose analysis is being worked on.
func WithUploadID(ctx context.Context, id string) context.Context {
	return withCorrelation(ctx, func(c *correlation) { c.uploadID = id })
}

// WithOperation tags ctx with an API operation name such as "get_analysis".
func WithOperation(ctx context.Context, op string) context.Context {
	return withCorrelation(ctx, func(c *correlation) { c.operation = op })
}

func RequestIDFromContext(ctx context.Context) string { return correlationFrom(ctx).requestID }

func UploadIDFromContext(ctx context.Context) string { return correlationFrom(ctx).uploadID }

func OperationFromContext(ctx context.Context) string { return correlationFrom(ctx).operation }

// ContextFields turns the active span and correlation IDs on ctx into fields.
// Unset values are omitted.
func ContextFields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()))
	}
	c := correlationFrom(ctx)
	for _, kv := range [...]struct{ key, val string }{
		{"request.id", c.requestID},
		{"upload.id", c.uploadID},
		{"operation", c.operation},
	} {
		if kv.val != "" {
			fields = append(fields, zap.String(kv.key, kv.val))
		}
	}
	return fields
}

func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger stored by WithLogger, or a no-op logger.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(loggerKey{}).(*Logger); ok {
		return l
	}
	return Nop()
}
