package context

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

// TraceContext identifies a request across logs, error bodies and spans.
type TraceContext struct {
	TraceID   string
	SpanID    string
	RequestID string
}

type traceContextKey struct{}

// WithTrace adds TraceContext to context.
func WithTrace(ctx context.Context, tc *TraceContext) context.Context {
	return context.WithValue(ctx, traceContextKey{}, tc)
}

// GetTrace returns TraceContext from context.
func GetTrace(ctx context.Context) *TraceContext {
	if v, ok := ctx.Value(traceContextKey{}).(*TraceContext); ok {
		return v
	}
	return nil
}

// GetTraceID returns trace ID from context or empty string.
func GetTraceID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.TraceID
	}
	return ""
}

// GetRequestID returns request ID from context or empty string.
func GetRequestID(ctx context.Context) string {
	if t := GetTrace(ctx); t != nil {
		return t.RequestID
	}
	return ""
}

// TraceFromSpan builds the ids of a request. A valid span context wins over the
// trace id sent by the client; missing ids are generated.
func TraceFromSpan(sc trace.SpanContext, clientTraceID, requestID string) *TraceContext {
	tc := &TraceContext{TraceID: clientTraceID, RequestID: requestID}
	if sc.IsValid() {
		tc.TraceID, tc.SpanID = sc.TraceID().String(), sc.SpanID().String()
	}
	if tc.TraceID == "" {
		tc.TraceID = uuid.New().String()
	}
	if tc.SpanID == "" {
		tc.SpanID = uuid.New().String()[:16]
	}
	if tc.RequestID == "" {
		tc.RequestID = uuid.New().String()
	}
	return tc
}
