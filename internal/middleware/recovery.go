package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/resp"
)

// Recovery captures panics and responds with a structured error.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if rec := recover(); rec != nil {
				reqID := c.GetString(KeyRequestID)
				logger.Error("panic recovered",
					zap.Any("panic", rec),
					zap.String("request_id", reqID),
					zap.ByteString("stack", debug.Stack()))
				if !c.Writer.Written() {
					resp.Error(c.Writer, http.StatusInternalServerError, resp.CodeInternalError, "internal server error", reqID, c.GetString(KeyTraceID))
				}
				c.Abort()
			}
		}()
		c.Next()
	}
}
