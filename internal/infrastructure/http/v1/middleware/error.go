package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmadesk/internal/core/apperror"
	appctx "pharmadesk/internal/core/context"
	"pharmadesk/pkg/logger"
)

// ErrorHandler renders the last error of the request as JSON.
// It is the only place errors become responses; handlers just register them.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		// A failed request never completes its idempotency key.
		ReleaseIdempotency(c)

		if c.Writer.Written() {
			return
		}

		ctx := c.Request.Context()
		appErr, ok := apperror.AsAppError(err)
		if !ok {
			logger.Error(ctx, "unhandled error", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"code":    apperror.CodeInternal,
				"message": "Internal server error",
				"details": gin.H{
					"request_id": appctx.GetRequestID(ctx),
					"trace_id":   appctx.GetTraceID(ctx),
				},
			})
			return
		}

		switch {
		case appErr.HTTPStatus >= http.StatusInternalServerError:
			logger.Error(ctx, "request failed", "code", appErr.Code, "cause", appErr.Err)
		case appErr.Err != nil:
			logger.Debug(ctx, "request rejected", "code", appErr.Code, "cause", appErr.Err)
		}

		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusInternalServerError
		}
		c.JSON(status, gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
			"details": appErr.Details,
		})
	}
}
