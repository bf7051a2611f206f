package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/cache"
	"github.com/MorseWayne/storefront/internal/config"
	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type statusMap map[int64]bool

func (s statusMap) IsActive(ctx context.Context, userID int64) (bool, error) {
	active, ok := s[userID]
	if !ok {
		return false, errors.New("lookup failed")
	}
	return active, nil
}

func newJWT() service.JWTService {
	return service.NewJWTService(service.JWTOptions{
		Secret: "secret", Issuer: "test", Audience: service.AudienceUser,
		AccessTTL: time.Hour, RefreshTTL: time.Hour,
	}, zap.NewNop())
}

func token(t *testing.T, jwt service.JWTService, id int64, role domain.UserRole) string {
	t.Helper()
	pair, err := jwt.GenerateTokenPair(&domain.User{ID: id, Username: "u", Role: role})
	require.NoError(t, err)
	return pair.AccessToken
}

func do(r http.Handler, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	jwt := newJWT()
	checker := statusMap{1: true, 2: false}

	r := gin.New()
	r.Use(RequestID())
	r.GET("/me", Auth(jwt, checker, zap.NewNop()), func(c *gin.Context) {
		c.String(http.StatusOK, "%d", UserID(c))
	})
	r.GET("/admin", Auth(jwt, checker, zap.NewNop()), RequireAdmin(zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})

	tests := []struct {
		name   string
		path   string
		auth   string
		status int
		body   string
	}{
		{"missing header", "/me", "", http.StatusUnauthorized, `"code":10002`},
		{"malformed header", "/me", "Token abc", http.StatusUnauthorized, `"code":10002`},
		{"invalid token", "/me", "Bearer nope", http.StatusUnauthorized, "invalid token"},
		{"active user", "/me", "Bearer " + token(t, jwt, 1, domain.UserRoleUser), http.StatusOK, "1"},
		{"blocked user", "/me", "Bearer " + token(t, jwt, 2, domain.UserRoleUser), http.StatusForbidden, "blocked"},
		{"status lookup failure", "/me", "Bearer " + token(t, jwt, 3, domain.UserRoleUser), http.StatusInternalServerError, `"code":50000`},
		{"user on admin route", "/admin", "Bearer " + token(t, jwt, 1, domain.UserRoleUser), http.StatusForbidden, "insufficient permissions"},
		{"admin on admin route", "/admin", "Bearer " + token(t, jwt, 1, domain.UserRoleAdmin), http.StatusNoContent, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			headers := map[string]string{}
			if tc.auth != "" {
				headers["Authorization"] = tc.auth
			}
			w := do(r, http.MethodGet, tc.path, headers)
			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.body)
		})
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, RequestIDFromContext(c.Request.Context()))
	})

	w := do(r, http.MethodGet, "/", map[string]string{HeaderRequestID: "abc"})
	assert.Equal(t, "abc", w.Header().Get(HeaderRequestID))
	assert.Equal(t, "abc", w.Body.String())

	w = do(r, http.MethodGet, "/", nil)
	assert.Len(t, w.Header().Get(HeaderRequestID), 36)
	assert.Equal(t, w.Header().Get(HeaderRequestID), w.Body.String())
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(RequestID(), Recovery(zap.NewNop()))
	r.GET("/boom", func(c *gin.Context) { panic("boom") })

	w := do(r, http.MethodGet, "/boom", map[string]string{HeaderRequestID: "rid-1"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), `"request_id":"rid-1"`)
}

func TestIdempotency(t *testing.T) {
	store := cache.NewMemoryCache()
	calls := 0
	r := gin.New()
	r.POST("/order", func(c *gin.Context) {
		c.Set(KeyUserID, int64(7))
	}, Idempotency(IdempotencyConfig{Store: store}), func(c *gin.Context) {
		calls++
		if c.Query("fail") != "" {
			c.Status(http.StatusConflict)
			return
		}
		c.Status(http.StatusCreated)
	})

	key := map[string]string{HeaderIdempotencyKey: "k-1"}
	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/order", key).Code)

	w := do(r, http.MethodPost, "/order", key)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), `"code":10008`)
	assert.Equal(t, 1, calls)

	// 无幂等键不受限制
	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/order", nil).Code)
	assert.Equal(t, 2, calls)

	// 失败的请求释放幂等键
	retry := map[string]string{HeaderIdempotencyKey: "k-2"}
	assert.Equal(t, http.StatusConflict, do(r, http.MethodPost, "/order?fail=1", retry).Code)
	assert.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/order", retry).Code)
	assert.Equal(t, 4, calls)
}

func TestCORS(t *testing.T) {
	r := gin.New()
	r.Use(CORS(config.CORSConfig{AllowedOrigins: []string{"https://shop.example"}}))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := do(r, http.MethodOptions, "/", map[string]string{"Origin": "https://shop.example"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "https://shop.example", w.Header().Get("Access-Control-Allow-Origin"))

	w = do(r, http.MethodGet, "/", map[string]string{"Origin": "https://evil.example"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestTimeout(t *testing.T) {
	r := gin.New()
	r.GET("/", Timeout(time.Second), func(c *gin.Context) {
		_, ok := c.Request.Context().Deadline()
		assert.True(t, ok)
		c.Status(http.StatusOK)
	})
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/", nil).Code)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	r := gin.New()
	r.Use(m.Middleware())
	r.GET("/items/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(m.Handler()))

	do(r, http.MethodGet, "/items/1", nil)
	do(r, http.MethodGet, "/items/2", nil)
	m.OrderPlaced("COD", decimal.NewFromInt(540))
	m.RefundCredited("cancel", decimal.NewFromInt(500))

	body := do(r, http.MethodGet, "/metrics", nil).Body.String()
	assert.Contains(t, body, `test_http_requests_total{method="GET",path="/items/:id",status="200"} 2`)
	assert.Contains(t, body, `test_orders_placed_total{payment_method="COD"} 1`)
	assert.True(t, strings.Contains(body, `test_wallet_refund_amount_total{reason="cancel"} 500`))
}
