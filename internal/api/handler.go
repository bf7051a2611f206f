// Package api 提供 HTTP API 处理器实现。
// API 层负责绑定并校验请求、从令牌中取得当前用户、调用服务层并把领域错误映射为统一响应。
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/middleware"
	"github.com/MorseWayne/storefront/internal/resp"
)

var registerOnce sync.Once

// RegisterValidators 注册订单状态、支付状态、支付方式的自定义校验规则，重复调用无副作用
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			err = errors.New("unexpected binding validator engine")
			return
		}
		rules := map[string]func(string) error{
			"order_status": func(s string) error {
				_, err := domain.ParseOrderStatus(s)
				return err
			},
			"payment_status": func(s string) error {
				_, err := domain.ParsePaymentStatus(s)
				return err
			},
			"payment_method": func(s string) error {
				_, err := domain.ParsePaymentMethod(s)
				return err
			},
		}
		for tag, parse := range rules {
			if err = v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
				return parse(fl.Field().String()) == nil
			}); err != nil {
				return
			}
		}
	})
	return err
}

// pageQuery 分页参数
type pageQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

func ids(c *gin.Context) (string, string) {
	return c.GetString(middleware.KeyRequestID), c.GetString(middleware.KeyTraceID)
}

func ok[T any](c *gin.Context, data T) {
	reqID, traceID := ids(c)
	resp.OK(c.Writer, &data, reqID, traceID)
}

func badRequest(c *gin.Context, msg string) {
	reqID, traceID := ids(c)
	resp.Error(c.Writer, http.StatusBadRequest, resp.CodeInvalidParam, msg, reqID, traceID)
}

// bindJSON 解析并校验请求体，失败时已写出 400
func bindJSON(c *gin.Context, obj any) bool {
	if err := c.ShouldBindJSON(obj); err != nil {
		badRequest(c, bindingMessage(err))
		return false
	}
	return true
}

func bindQuery(c *gin.Context, obj any) bool {
	if err := c.ShouldBindQuery(obj); err != nil {
		badRequest(c, bindingMessage(err))
		return false
	}
	return true
}

// bindingMessage 将校验错误转为面向客户端的简短描述
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fmt.Sprintf("%s failed on '%s'", fe.Namespace(), fe.Tag()))
		}
		return strings.Join(msgs, "; ")
	}
	return "invalid request body"
}

// pathID 读取路径中的正整数 ID
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return id, true
}

// claimUser 请求体中的 user_id 必须与令牌一致，缺省时取令牌中的用户
func claimUser(c *gin.Context, logger *zap.Logger, userID *int64) bool {
	tokenUser := middleware.UserID(c)
	if *userID != 0 && *userID != tokenUser {
		fail(c, logger, domain.ErrUserMismatch)
		return false
	}
	*userID = tokenUser
	return true
}

// fail 按错误类别写出响应，未知错误记录日志并隐藏细节
func fail(c *gin.Context, logger *zap.Logger, err error) {
	reqID, traceID := ids(c)
	var code int
	switch domain.KindOf(err) {
	case domain.KindValidation:
		code = resp.CodeInvalidParam
	case domain.KindNotFound:
		code = resp.CodeNotFound
	case domain.KindBusiness:
		code = resp.CodeBusinessRule
	case domain.KindIntegrity:
		code = resp.CodeVerificationFailed
	case domain.KindAuth:
		code = resp.CodeUnauthorized
	case domain.KindForbidden:
		code = resp.CodeForbidden
	default:
		if errors.Is(err, context.DeadlineExceeded) {
			resp.Error(c.Writer, http.StatusGatewayTimeout, resp.CodeTimeout, "request timeout", reqID, traceID)
			return
		}
		logger.Error("request failed",
			zap.String("request_id", reqID),
			zap.String("path", c.FullPath()),
			zap.Error(err))
		resp.Error(c.Writer, http.StatusInternalServerError, resp.CodeInternalError, "internal server error", reqID, traceID)
		return
	}
	msg := err.Error()
	var de *domain.Error
	if errors.As(err, &de) {
		msg = de.Msg
	}
	resp.Error(c.Writer, resp.HTTPStatusFromCode(code), code, msg, reqID, traceID)
}
