package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/resp"
	"github.com/MorseWayne/storefront/internal/service"
)

// StatusChecker 查询用户当前是否可用，被封禁的用户持有未过期令牌也会被拒绝
type StatusChecker interface {
	IsActive(ctx context.Context, userID int64) (bool, error)
}

// Auth JWT认证中间件
// 验证 Authorization 头中的访问令牌，并将用户 ID 与角色写入 gin 上下文
func Auth(jwtService service.JWTService, checker StatusChecker, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetString(KeyRequestID)
		traceID := c.GetString(KeyTraceID)

		const bearerPrefix = "Bearer "
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, bearerPrefix) || strings.TrimSpace(authHeader[len(bearerPrefix):]) == "" {
			logger.Warn("missing or malformed authorization header", zap.String("request_id", reqID))
			resp.Error(c.Writer, http.StatusUnauthorized, resp.CodeUnauthorized, "authorization header required", reqID, traceID)
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateAccessToken(strings.TrimSpace(authHeader[len(bearerPrefix):]))
		if err != nil {
			logger.Warn("token validation failed", zap.String("request_id", reqID), zap.Error(err))
			msg := "invalid token"
			switch {
			case errors.Is(err, service.ErrTokenExpired):
				msg = "token expired"
			case errors.Is(err, service.ErrTokenNotReady):
				msg = "token not ready"
			}
			resp.Error(c.Writer, http.StatusUnauthorized, resp.CodeUnauthorized, msg, reqID, traceID)
			c.Abort()
			return
		}

		if checker != nil {
			active, err := checker.IsActive(c.Request.Context(), claims.UserID)
			if err != nil {
				logger.Error("failed to check user status",
					zap.String("request_id", reqID),
					zap.Int64("user_id", claims.UserID),
					zap.Error(err))
				resp.Error(c.Writer, http.StatusInternalServerError, resp.CodeInternalError, "internal server error", reqID, traceID)
				c.Abort()
				return
			}
			if !active {
				resp.Error(c.Writer, http.StatusForbidden, resp.CodeForbidden, "account is blocked", reqID, traceID)
				c.Abort()
				return
			}
		}

		c.Set(KeyUserID, claims.UserID)
		c.Set(KeyUserRole, claims.Role)
		c.Next()
	}
}

// RequireRole 角色授权中间件，需在 Auth 之后使用
func RequireRole(requiredRole domain.UserRole, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetString(KeyRequestID)
		if UserID(c) == 0 {
			resp.Error(c.Writer, http.StatusUnauthorized, resp.CodeUnauthorized, "authentication required", reqID, c.GetString(KeyTraceID))
			c.Abort()
			return
		}

		if role := UserRole(c); role != requiredRole {
			logger.Warn("insufficient permissions",
				zap.String("request_id", reqID),
				zap.Int64("user_id", UserID(c)),
				zap.String("user_role", string(role)),
				zap.String("required_role", string(requiredRole)),
			)
			resp.Error(c.Writer, http.StatusForbidden, resp.CodeForbidden, "insufficient permissions", reqID, c.GetString(KeyTraceID))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireAdmin 管理员权限中间件
func RequireAdmin(logger *zap.Logger) gin.HandlerFunc {
	return RequireRole(domain.UserRoleAdmin, logger)
}
