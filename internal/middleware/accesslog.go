package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AccessLog logs basic HTTP access information.
func AccessLog(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String("request_id", c.GetString(KeyRequestID)),
		}
		if uid := UserID(c); uid > 0 {
			fields = append(fields, zap.Int64("user_id", uid))
		}
		if c.Writer.Status() >= 500 {
			logger.Warn("http_access", fields...)
			return
		}
		logger.Info("http_access", fields...)
	}
}
