package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// MemoryLimiter 进程内令牌桶，缓存未使用 Redis 时启用
type MemoryLimiter struct {
	config *Config
	limit  rate.Limit
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewMemoryLimiter 创建进程内限流器
func NewMemoryLimiter(config *Config) *MemoryLimiter {
	return &MemoryLimiter{
		config:  config,
		limit:   rate.Limit(float64(config.Rate) / config.Window.Seconds()),
		now:     time.Now,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (m *MemoryLimiter) bucket(key string) *rate.Limiter {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.buckets[key]
	if !ok {
		b = rate.NewLimiter(m.limit, int(m.config.Burst))
		m.buckets[key] = b
	}
	return b
}

func (m *MemoryLimiter) Allow(ctx context.Context, key string) (*LimitResult, error) {
	return m.AllowN(ctx, key, 1)
}

func (m *MemoryLimiter) AllowN(ctx context.Context, key string, n int64) (*LimitResult, error) {
	b := m.bucket(key)
	now := m.now()

	r := b.ReserveN(now, int(n))
	if !r.OK() {
		return &LimitResult{Allowed: false, RetryAfter: m.config.Window}, nil
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return &LimitResult{Allowed: false, RetryAfter: delay}, nil
	}
	return &LimitResult{Allowed: true, Remaining: int64(b.TokensAt(now))}, nil
}

func (m *MemoryLimiter) Reset(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buckets, key)
	return nil
}
