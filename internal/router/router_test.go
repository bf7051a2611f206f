package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/api"
	"github.com/MorseWayne/storefront/internal/config"
	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/middleware"
	"github.com/MorseWayne/storefront/internal/service"
)

type stubWallet struct{}

func (stubWallet) Get(ctx context.Context, userID int64) (*domain.Wallet, error) {
	return &domain.Wallet{UserID: userID, Balance: decimal.NewFromInt(100)}, nil
}

type stubUsers struct {
	service.UserService
}

func (stubUsers) ListUsers(ctx context.Context, req *domain.UserListRequest) (*domain.UserListResponse, error) {
	return &domain.UserListResponse{Users: []*domain.User{}}, nil
}

type allActive struct{}

func (allActive) IsActive(ctx context.Context, userID int64) (bool, error) { return true, nil }

type testServer struct {
	handler  http.Handler
	userJWT  service.JWTService
	adminJWT service.JWTService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.App.Version = "1.2.3"
	cfg.App.RequestTimeout = 5 * time.Second
	opts := service.JWTOptions{Issuer: "storefront", AccessTTL: time.Hour, RefreshTTL: time.Hour}

	ts := &testServer{}
	userOpts, adminOpts := opts, opts
	userOpts.Secret, userOpts.Audience = "user-secret", service.AudienceUser
	adminOpts.Secret, adminOpts.Audience = "admin-secret", service.AudienceAdmin
	ts.userJWT = service.NewJWTService(userOpts, logger)
	ts.adminJWT = service.NewJWTService(adminOpts, logger)

	deps := &Dependencies{
		UserHandler:    api.NewUserHandler(stubUsers{}, nil, stubWallet{}, logger),
		CatalogHandler: api.NewCatalogHandler(nil, nil, nil, logger),
		CartHandler:    api.NewCartHandler(nil, nil, nil, logger),
		OrderHandler:   api.NewOrderHandler(nil, nil, logger),
		UserJWT:        ts.userJWT,
		AdminJWT:       ts.adminJWT,
		StatusChecker:  allActive{},
		Metrics:        middleware.NewMetrics("storefront", prometheus.NewRegistry()),
	}
	ts.handler = New().Setup(cfg, deps, logger)
	return ts
}

func (ts *testServer) get(t *testing.T, path string, jwt service.JWTService, user *domain.User) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if jwt != nil {
		pair, err := jwt.GenerateTokenPair(user)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, req)
	return w
}

func TestRouter_PublicEndpoints(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get(t, "/healthz", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "1.2.3")
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w = ts.get(t, "/metrics", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_UserAuth(t *testing.T) {
	ts := newTestServer(t)
	shopper := &domain.User{ID: 7, Username: "bob", Role: domain.UserRoleUser}

	w := ts.get(t, "/user/wallet", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.get(t, "/user/wallet", ts.userJWT, shopper)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), `"user_id":7`)

	// 管理端令牌使用不同密钥，不能访问用户端
	admin := &domain.User{ID: 1, Username: "root", Role: domain.UserRoleAdmin}
	w = ts.get(t, "/user/wallet", ts.adminJWT, admin)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouter_AdminAuth(t *testing.T) {
	ts := newTestServer(t)
	shopper := &domain.User{ID: 7, Username: "bob", Role: domain.UserRoleUser}
	admin := &domain.User{ID: 1, Username: "root", Role: domain.UserRoleAdmin}

	w := ts.get(t, "/admin/users", ts.userJWT, shopper)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = ts.get(t, "/admin/users", ts.adminJWT, shopper)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.get(t, "/admin/users", ts.adminJWT, admin)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
