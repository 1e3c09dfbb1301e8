// Package middleware provides HTTP middleware components.
package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"pharmadesk/internal/core/apperror"
	appctx "pharmadesk/internal/core/context"
	"pharmadesk/pkg/logger"
)

// Recovery turns a panic into a 500 response. The stack goes to the log only.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			logger.Error(c.Request.Context(), "panic recovered",
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"panic", rec,
				"stack", string(debug.Stack()),
			)
			_ = c.Error(
				apperror.NewInternal(fmt.Errorf("panic: %v", rec)).
					WithDetail("request_id", appctx.GetRequestID(c.Request.Context())).
					WithDetail("trace_id", appctx.GetTraceID(c.Request.Context())),
			)
			c.Abort()
		}()
		c.Next()
	}
}
