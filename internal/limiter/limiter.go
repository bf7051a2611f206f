// Package limiter 提供基于令牌桶的限流器与 gin 中间件
package limiter

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/MorseWayne/storefront/internal/config"
)

// LimitResult 限流结果
type LimitResult struct {
	Allowed    bool          `json:"allowed"`     // 是否允许通过
	Remaining  int64         `json:"remaining"`   // 剩余令牌
	RetryAfter time.Duration `json:"retry_after"` // 建议重试时间
}

// Limiter 限流器接口
type Limiter interface {
	// Allow 检查是否允许请求通过
	Allow(ctx context.Context, key string) (*LimitResult, error)

	// AllowN 检查是否允许N个请求通过
	AllowN(ctx context.Context, key string, n int64) (*LimitResult, error)

	// Reset 重置限流状态
	Reset(ctx context.Context, key string) error
}

// Config 令牌桶配置：每个 Window 补充 Rate 个令牌，桶容量为 Burst
type Config struct {
	Rate      int64
	Window    time.Duration
	Burst     int64
	KeyPrefix string
}

// FromConfig 由应用配置生成限流配置
func FromConfig(cfg config.RateLimitConfig) *Config {
	c := &Config{Rate: cfg.Rate, Window: cfg.Window, Burst: cfg.Burst}
	if c.Rate <= 0 {
		c.Rate = 10
	}
	if c.Window <= 0 {
		c.Window = time.Minute
	}
	if c.Burst <= 0 {
		c.Burst = c.Rate
	}
	return c
}

// New 有 Redis 客户端时使用分布式令牌桶，否则退化为进程内令牌桶
func New(client *redis.Client, cfg *Config) Limiter {
	if client == nil {
		return NewMemoryLimiter(cfg)
	}
	return NewTokenBucketLimiter(client, cfg)
}
