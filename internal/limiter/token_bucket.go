package limiter

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// scripter 令牌桶所需的 Redis 命令，redis.Cmdable 满足该接口
type scripter interface {
	Eval(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// TokenBucketLimiter Redis 令牌桶限流器，多实例共享配额
type TokenBucketLimiter struct {
	client    scripter
	config    *Config
	keyPrefix string
	now       func() time.Time
}

// NewTokenBucketLimiter 创建令牌桶限流器
func NewTokenBucketLimiter(client scripter, config *Config) *TokenBucketLimiter {
	prefix := config.KeyPrefix
	if prefix == "" {
		prefix = "limiter:tb"
	}
	return &TokenBucketLimiter{
		client:    client,
		config:    config,
		keyPrefix: prefix,
		now:       time.Now,
	}
}

// Redis Lua脚本：令牌桶算法，时间单位为毫秒。
// last_refill 只按实际补充的令牌前移，避免高频请求吞掉不足一个令牌的时间
const tokenBucketScript = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local window = tonumber(ARGV[3])
local requested = tonumber(ARGV[4])
local now = tonumber(ARGV[5])

local bucket = redis.call('HMGET', key, 'tokens', 'last_refill')
local tokens = tonumber(bucket[1]) or capacity
local last_refill = tonumber(bucket[2]) or now

local added = math.floor(math.max(0, now - last_refill) * rate / window)
if added > 0 then
    tokens = math.min(capacity, tokens + added)
    last_refill = last_refill + math.floor(added * window / rate)
end
if tokens >= capacity then
    last_refill = now
end

local allowed = 0
local retry_after = 0
if tokens >= requested then
    tokens = tokens - requested
    allowed = 1
else
    retry_after = math.ceil((requested - tokens) * window / rate) - (now - last_refill)
    if retry_after < 0 then
        retry_after = 0
    end
end

redis.call('HSET', key, 'tokens', tokens, 'last_refill', last_refill)
redis.call('PEXPIRE', key, window * 2)

return {allowed, tokens, retry_after}
`

func (tb *TokenBucketLimiter) getKey(key string) string {
	return fmt.Sprintf("%s:%s", tb.keyPrefix, key)
}

// Allow 检查是否允许请求通过
func (tb *TokenBucketLimiter) Allow(ctx context.Context, key string) (*LimitResult, error) {
	return tb.AllowN(ctx, key, 1)
}

// AllowN 检查是否允许N个请求通过
func (tb *TokenBucketLimiter) AllowN(ctx context.Context, key string, n int64) (*LimitResult, error) {
	result := tb.client.Eval(ctx, tokenBucketScript,
		[]string{tb.getKey(key)},
		tb.config.Burst,
		tb.config.Rate,
		tb.config.Window.Milliseconds(),
		n,
		tb.now().UnixMilli(),
	)
	if result.Err() != nil {
		return nil, fmt.Errorf("failed to execute token bucket script: %w", result.Err())
	}

	values, err := result.Int64Slice()
	if err != nil || len(values) != 3 {
		return nil, fmt.Errorf("unexpected script result format: %v", result.Val())
	}

	return &LimitResult{
		Allowed:    values[0] == 1,
		Remaining:  values[1],
		RetryAfter: time.Duration(values[2]) * time.Millisecond,
	}, nil
}

// Reset 重置令牌桶
func (tb *TokenBucketLimiter) Reset(ctx context.Context, key string) error {
	if err := tb.client.Del(ctx, tb.getKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to reset token bucket: %w", err)
	}
	return nil
}
