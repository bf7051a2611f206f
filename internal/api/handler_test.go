package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/middleware"
	"github.com/MorseWayne/storefront/internal/resp"
	"github.com/MorseWayne/storefront/internal/service"
)

const tokenUser int64 = 7

type stubOrders struct {
	service.OrderService
	placed   *domain.PlaceOrderRequest
	getErr   error
	updated  *domain.UpdateOrderStatusRequest
	lastUser int64
}

func (s *stubOrders) PlaceOrder(ctx context.Context, req *domain.PlaceOrderRequest) (*domain.PlaceOrderResponse, error) {
	s.placed = req
	return &domain.PlaceOrderResponse{Order: &domain.Order{ID: 1, UserID: req.UserID}}, nil
}

func (s *stubOrders) GetForUser(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	s.lastUser = userID
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &domain.Order{ID: orderID, UserID: userID}, nil
}

func (s *stubOrders) UpdateStatus(ctx context.Context, orderID int64, req *domain.UpdateOrderStatusRequest) (*domain.Order, error) {
	s.updated = req
	return &domain.Order{ID: orderID}, nil
}

type stubReports struct {
	service.ReportService
}

func (stubReports) Download(ctx context.Context, req *domain.SalesReportRequest) (*service.ReportFile, error) {
	return &service.ReportFile{Data: []byte("xlsx"), ContentType: "application/octet-stream", Filename: "sales.xlsx"}, nil
}

func newTestRouter(t *testing.T, orders *stubOrders) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	require.NoError(t, RegisterValidators())

	h := NewOrderHandler(orders, stubReports{}, zap.NewNop())
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.KeyRequestID, "req-test")
		c.Set(middleware.KeyUserID, tokenUser)
	})
	r.POST("/user/order/add", h.PlaceOrder)
	r.GET("/user/order/:orderId", h.GetMyOrder)
	r.PUT("/admin/order/:orderId", h.UpdateStatus)
	r.GET("/admin/downloadreport", h.DownloadReport)
	return r
}

func doJSON(r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) resp.Response[json.RawMessage] {
	t.Helper()
	var env resp.Response[json.RawMessage]
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return env
}

func placeBody(paymentMethod string) gin.H {
	return gin.H{
		"address_id":     3,
		"payment_method": paymentMethod,
		"items": []gin.H{
			{"product_id": 10, "variant": gin.H{"size": "M", "color": "Red"}, "quantity": 1},
		},
	}
}

func TestPlaceOrder_TakesUserFromToken(t *testing.T) {
	orders := &stubOrders{}
	r := newTestRouter(t, orders)

	w := doJSON(r, http.MethodPost, "/user/order/add", placeBody("cod"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	env := decodeEnvelope(t, w)
	assert.Equal(t, resp.CodeOK, env.Code)
	assert.Equal(t, "req-test", env.RequestID)
	require.NotNil(t, orders.placed)
	assert.Equal(t, tokenUser, orders.placed.UserID)
}

func TestPlaceOrder_RejectsForeignUser(t *testing.T) {
	orders := &stubOrders{}
	r := newTestRouter(t, orders)

	body := placeBody("COD")
	body["user_id"] = 99
	w := doJSON(r, http.MethodPost, "/user/order/add", body)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, resp.CodeForbidden, decodeEnvelope(t, w).Code)
	assert.Nil(t, orders.placed)
}

func TestPlaceOrder_ValidatesBody(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"unknown payment method", placeBody("Bitcoin")},
		{"no items", gin.H{"address_id": 3, "payment_method": "COD", "items": []gin.H{}}},
		{"zero quantity", gin.H{
			"address_id": 3, "payment_method": "COD",
			"items": []gin.H{{"product_id": 10, "variant": gin.H{"size": "M", "color": "Red"}, "quantity": 0}},
		}},
		{"malformed json", "not an object"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders := &stubOrders{}
			r := newTestRouter(t, orders)
			w := doJSON(r, http.MethodPost, "/user/order/add", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, resp.CodeInvalidParam, decodeEnvelope(t, w).Code)
			assert.Nil(t, orders.placed)
		})
	}
}

func TestFail_MapsErrorKinds(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   int
	}{
		{"not found", domain.ErrOrderNotFound, http.StatusNotFound, resp.CodeNotFound},
		{"business rule", domain.ErrInsufficientStock, http.StatusConflict, resp.CodeBusinessRule},
		{"integrity", domain.ErrPaymentVerificationFailed, http.StatusBadRequest, resp.CodeVerificationFailed},
		{"forbidden", domain.ErrUserMismatch, http.StatusForbidden, resp.CodeForbidden},
		{"validation", domain.Invalid("bad input"), http.StatusBadRequest, resp.CodeInvalidParam},
		{"timeout", context.DeadlineExceeded, http.StatusGatewayTimeout, resp.CodeTimeout},
		{"unexpected", errors.New("db down"), http.StatusInternalServerError, resp.CodeInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, &stubOrders{getErr: tt.err})
			w := doJSON(r, http.MethodGet, "/user/order/5", nil)
			assert.Equal(t, tt.status, w.Code)
			env := decodeEnvelope(t, w)
			assert.Equal(t, tt.code, env.Code)
			assert.NotContains(t, env.Message, "db down")
		})
	}
}

func TestGetMyOrder_PathID(t *testing.T) {
	orders := &stubOrders{}
	r := newTestRouter(t, orders)

	w := doJSON(r, http.MethodGet, "/user/order/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/user/order/5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, tokenUser, orders.lastUser)
}

func TestUpdateStatus_StatusCaseInsensitive(t *testing.T) {
	orders := &stubOrders{}
	r := newTestRouter(t, orders)

	w := doJSON(r, http.MethodPut, "/admin/order/5", gin.H{"order_status": "shipped"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, orders.updated)

	orders.updated = nil
	w = doJSON(r, http.MethodPut, "/admin/order/5", gin.H{"payment_status": "refunded-ish"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Nil(t, orders.updated)
}

func TestDownloadReport(t *testing.T) {
	r := newTestRouter(t, &stubOrders{})

	w := doJSON(r, http.MethodGet, "/admin/downloadreport?start_date=2024-03-01&end_date=2024-03-31&format=xlsx", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="sales.xlsx"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "xlsx", w.Body.String())

	w = doJSON(r, http.MethodGet, "/admin/downloadreport?start_date=2024-03-01&end_date=2024-03-31&format=csv", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(r, http.MethodGet, "/admin/downloadreport?start_date=03/01/2024&end_date=2024-03-31", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
