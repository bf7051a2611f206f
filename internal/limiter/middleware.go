package limiter

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/resp"
)

// MiddlewareConfig 中间件配置
type MiddlewareConfig struct {
	Limiter Limiter

	// Scope 区分不同路由组的配额，如 login、payment
	Scope string

	// Key生成函数，默认按客户端 IP
	KeyGenerator func(*gin.Context) string

	Logger *zap.Logger
}

// IPKeyGenerator 按客户端 IP 生成 Key
func IPKeyGenerator(c *gin.Context) string {
	return "ip:" + c.ClientIP()
}

// RateLimitMiddleware 创建限流中间件。限流服务故障时放行请求，只记录日志
func RateLimitMiddleware(config MiddlewareConfig) gin.HandlerFunc {
	if config.KeyGenerator == nil {
		config.KeyGenerator = IPKeyGenerator
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		key := config.KeyGenerator(c)
		if config.Scope != "" {
			key = fmt.Sprintf("%s:%s", config.Scope, key)
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		result, err := config.Limiter.Allow(ctx, key)
		if err != nil {
			config.Logger.Error("rate limiter unavailable",
				zap.String("key", key),
				zap.String("request_id", c.GetString("request_id")),
				zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		if !result.Allowed {
			if result.RetryAfter > 0 {
				c.Header("Retry-After", strconv.FormatInt(int64(math.Ceil(result.RetryAfter.Seconds())), 10))
			}
			resp.Error(c.Writer, http.StatusTooManyRequests, resp.CodeTooManyRequests,
				"too many requests, please retry later", c.GetString("request_id"), c.GetString("trace_id"))
			c.Abort()
			return
		}

		c.Next()
	}
}
