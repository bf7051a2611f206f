// Package middleware 提供 gin 中间件：请求 ID、恢复、超时、CORS、访问日志、认证、幂等与指标。
package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/MorseWayne/storefront/internal/domain"
)

// contextKey 用于在上下文中存取特定键，避免与外部键冲突。
type contextKey string

// 约定的上下文键集合。
const (
	contextKeyRequestID contextKey = "request_id"
)

// gin 上下文键
const (
	KeyRequestID = "request_id"
	KeyTraceID   = "trace_id"
	KeyUserID    = "user_id"
	KeyUserRole  = "user_role"
)

// withRequestID 将请求 ID 写入上下文。
func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID, id)
}

// RequestIDFromContext 从上下文中读取请求 ID（可能为空）。
func RequestIDFromContext(ctx context.Context) string {
	if v := ctx.Value(contextKeyRequestID); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// UserID 当前认证用户 ID，未认证时为 0
func UserID(c *gin.Context) int64 {
	return c.GetInt64(KeyUserID)
}

// UserRole 当前认证用户角色
func UserRole(c *gin.Context) domain.UserRole {
	if v, ok := c.Get(KeyUserRole); ok {
		if role, ok := v.(domain.UserRole); ok {
			return role
		}
	}
	return ""
}
