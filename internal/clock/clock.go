// Package clock 提供可注入的时钟，业务代码不直接调用 time.Now。
package clock

import (
	"sync"
	"time"
)

// Clock 时间来源
type Clock interface {
	Now() time.Time
}

// Real 系统时钟，返回指定时区的当前时间
type Real struct {
	Loc *time.Location
}

// New 创建系统时钟
func New(loc *time.Location) Real {
	if loc == nil {
		loc = time.Local
	}
	return Real{Loc: loc}
}

func (r Real) Now() time.Time {
	if r.Loc == nil {
		return time.Now()
	}
	return time.Now().In(r.Loc)
}

// Fixed 固定时钟，测试用
type Fixed struct {
	mu sync.Mutex
	t  time.Time
}

// NewFixed 创建固定时钟
func NewFixed(t time.Time) *Fixed {
	return &Fixed{t: t}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

// Set 调整时间
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.t = t
	f.mu.Unlock()
}

// Advance 前进 d
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

// StartOfDay 返回 t 所在自然日的零点（保持 t 的时区）
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
