package middleware

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	appctx "pharmadesk/internal/core/context"
	"pharmadesk/pkg/logger"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderTraceID   = "X-Trace-ID"
)

var tracer = otel.Tracer("pharmadesk/http")

// Trace opens a server span per request and stores trace ids and the request
// logger in the context. The otel trace id wins over X-Trace-ID when a real
// tracer provider is installed.
func Trace(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, span := tracer.Start(c.Request.Context(), c.Request.Method+" "+c.FullPath(),
			trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		tc := appctx.TraceFromSpan(span.SpanContext(), c.GetHeader(HeaderTraceID), c.GetHeader(HeaderRequestID))
		ctx = appctx.WithTrace(ctx, tc)
		if log != nil {
			ctx = logger.WithLogger(ctx, log)
		}
		c.Request = c.Request.WithContext(ctx)

		c.Header(HeaderRequestID, tc.RequestID)
		c.Header(HeaderTraceID, tc.TraceID)

		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(
			attribute.String("http.request.method", c.Request.Method),
			attribute.String("http.route", c.FullPath()),
			attribute.Int("http.response.status_code", status),
		)
		if status >= 500 {
			span.SetStatus(codes.Error, "server error")
		}
	}
}
