// Package resp 定义统一的 JSON 响应信封与业务码。
package resp

import (
	"encoding/json"
	"net/http"
)

// 业务码
const (
	CodeOK                 = 0
	CodeInvalidParam       = 10001
	CodeUnauthorized       = 10002
	CodeForbidden          = 10003
	CodeNotFound           = 10004
	CodeBusinessRule       = 10005
	CodeVerificationFailed = 10006
	CodeTooManyRequests    = 10007
	CodeDuplicateRequest   = 10008
	CodeTimeout            = 10009
	CodeInternalError      = 50000
)

// Response 响应信封
type Response[T any] struct {
	Code      int    `json:"code"`
	Message   string `json:"message"`
	Data      *T     `json:"data,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	TraceID   string `json:"trace_id,omitempty"`
}

// WriteJSON 写出任意数据
func WriteJSON[T any](w http.ResponseWriter, status, code int, message string, data T, requestID, traceID string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response[T]{
		Code:      code,
		Message:   message,
		Data:      &data,
		RequestID: requestID,
		TraceID:   traceID,
	})
}

// OK 写出成功响应
func OK[T any](w http.ResponseWriter, data *T, requestID, traceID string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(Response[T]{
		Code:      CodeOK,
		Message:   "success",
		Data:      data,
		RequestID: requestID,
		TraceID:   traceID,
	})
}

// Error 写出错误响应
func Error(w http.ResponseWriter, status, code int, message, requestID, traceID string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(Response[any]{
		Code:      code,
		Message:   message,
		RequestID: requestID,
		TraceID:   traceID,
	})
}

// HTTPStatusFromCode 业务码映射 HTTP 状态码
func HTTPStatusFromCode(code int) int {
	switch code {
	case CodeOK:
		return http.StatusOK
	case CodeInvalidParam, CodeVerificationFailed:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeBusinessRule, CodeDuplicateRequest:
		return http.StatusConflict
	case CodeTooManyRequests:
		return http.StatusTooManyRequests
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
