package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/cache"
	"github.com/MorseWayne/storefront/internal/resp"
)

// HeaderIdempotencyKey 客户端提供的幂等键
const HeaderIdempotencyKey = "Idempotency-Key"

// IdempotencyConfig 幂等性中间件配置
type IdempotencyConfig struct {
	Store  cache.Cache
	TTL    time.Duration
	Logger *zap.Logger
}

// Idempotency 同一用户在 TTL 内重复提交相同幂等键时返回 409，不再执行处理器。
// 请求未带幂等键时直接放行；处理失败（非 2xx）会释放该键以便客户端重试
func Idempotency(cfg IdempotencyConfig) gin.HandlerFunc {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
		if key == "" {
			c.Next()
			return
		}
		if len(key) > 128 {
			resp.Error(c.Writer, http.StatusBadRequest, resp.CodeInvalidParam, "idempotency key too long", c.GetString(KeyRequestID), c.GetString(KeyTraceID))
			c.Abort()
			return
		}

		storeKey := fmt.Sprintf("idem:%d:%s:%s", UserID(c), c.FullPath(), key)
		ok, err := cfg.Store.SetNX(c.Request.Context(), storeKey, c.GetString(KeyRequestID), cfg.TTL)
		if err != nil {
			// 幂等存储不可用时放行，由数据库约束兜底
			cfg.Logger.Error("idempotency store unavailable",
				zap.String("request_id", c.GetString(KeyRequestID)),
				zap.Error(err))
			c.Next()
			return
		}
		if !ok {
			resp.Error(c.Writer, http.StatusConflict, resp.CodeDuplicateRequest, "duplicate request", c.GetString(KeyRequestID), c.GetString(KeyTraceID))
			c.Abort()
			return
		}

		c.Next()

		if status := c.Writer.Status(); status < 200 || status >= 300 {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			if err := cfg.Store.Del(ctx, storeKey); err != nil {
				cfg.Logger.Warn("failed to release idempotency key", zap.String("key", storeKey), zap.Error(err))
			}
		}
	}
}
