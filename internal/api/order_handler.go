package api

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/middleware"
	"github.com/MorseWayne/storefront/internal/service"
)

// OrderHandler 处理订单生命周期与销售报表请求
type OrderHandler struct {
	orders  service.OrderService
	reports service.ReportService
	logger  *zap.Logger
}

// NewOrderHandler 创建订单处理器实例
func NewOrderHandler(orders service.OrderService, reports service.ReportService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, reports: reports, logger: logger}
}

// PlaceOrder 下单。金额由服务端根据商品与优惠重新计算
// POST /user/order/add
func (h *OrderHandler) PlaceOrder(c *gin.Context) {
	var req domain.PlaceOrderRequest
	if !bindJSON(c, &req) {
		return
	}
	if !claimUser(c, h.logger, &req.UserID) {
		return
	}
	res, err := h.orders.PlaceOrder(c.Request.Context(), &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, res)
}

// ListMyOrders GET /user/orders
func (h *OrderHandler) ListMyOrders(c *gin.Context) {
	var q pageQuery
	if !bindQuery(c, &q) {
		return
	}
	res, err := h.orders.ListForUser(c.Request.Context(), middleware.UserID(c), q.Page, q.PageSize)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, res)
}

// GetMyOrder GET /user/order/:orderId
func (h *OrderHandler) GetMyOrder(c *gin.Context) {
	id, valid := pathID(c, "orderId")
	if !valid {
		return
	}
	order, err := h.orders.GetForUser(c.Request.Context(), middleware.UserID(c), id)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, order)
}

// CancelItem 取消单个订单行并退款到钱包
// PUT /user/order/:orderId/cancel
func (h *OrderHandler) CancelItem(c *gin.Context) {
	id, valid := pathID(c, "orderId")
	if !valid {
		return
	}
	var req domain.CancelItemRequest
	if !bindJSON(c, &req) {
		return
	}
	if !claimUser(c, h.logger, &req.UserID) {
		return
	}
	res, err := h.orders.CancelItem(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, res)
}

// RequestReturn POST /user/order/:orderId/return
func (h *OrderHandler) RequestReturn(c *gin.Context) {
	id, valid := pathID(c, "orderId")
	if !valid {
		return
	}
	var req domain.ReturnItemRequest
	if !bindJSON(c, &req) {
		return
	}
	if !claimUser(c, h.logger, &req.UserID) {
		return
	}
	order, err := h.orders.RequestReturn(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, order)
}

// VerifyPayment 校验网关回传的签名并标记订单已支付
// POST /user/order/verify-payment
func (h *OrderHandler) VerifyPayment(c *gin.Context) {
	var req domain.VerifyPaymentRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.orders.VerifyPayment(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, order)
}

type orderListQuery struct {
	pageQuery
	UserID int64  `form:"user_id" binding:"omitempty,gt=0"`
	Status string `form:"status" binding:"omitempty,order_status"`
}

// ListOrders GET /admin/orders
func (h *OrderHandler) ListOrders(c *gin.Context) {
	var q orderListQuery
	if !bindQuery(c, &q) {
		return
	}
	req := &domain.OrderListRequest{Page: q.Page, PageSize: q.PageSize}
	if q.UserID > 0 {
		req.UserID = &q.UserID
	}
	if q.Status != "" {
		st, err := domain.ParseOrderStatus(q.Status)
		if err != nil {
			fail(c, h.logger, err)
			return
		}
		req.Status = &st
	}
	res, err := h.orders.List(c.Request.Context(), req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, res)
}

// GetOrder GET /admin/order/:orderId
func (h *OrderHandler) GetOrder(c *gin.Context) {
	id, valid := pathID(c, "orderId")
	if !valid {
		return
	}
	order, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, order)
}

// UpdateStatus 修改订单状态与支付状态
// PUT /admin/order/:orderId
func (h *OrderHandler) UpdateStatus(c *gin.Context) {
	id, valid := pathID(c, "orderId")
	if !valid {
		return
	}
	var req domain.UpdateOrderStatusRequest
	if !bindJSON(c, &req) {
		return
	}
	order, err := h.orders.UpdateStatus(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, order)
}

// AcceptReturn PUT /admin/order/:orderId/accept-return
func (h *OrderHandler) AcceptReturn(c *gin.Context) {
	id, valid := pathID(c, "orderId")
	if !valid {
		return
	}
	res, err := h.orders.AcceptReturn(c.Request.Context(), id)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, res)
}

// RejectReturn PUT /admin/order/:orderId/reject-return
func (h *OrderHandler) RejectReturn(c *gin.Context) {
	id, valid := pathID(c, "orderId")
	if !valid {
		return
	}
	order, err := h.orders.RejectReturn(c.Request.Context(), id)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, order)
}

// History 订单审计记录
// GET /admin/order/:orderId/audit
func (h *OrderHandler) History(c *gin.Context) {
	id, valid := pathID(c, "orderId")
	if !valid {
		return
	}
	entries, err := h.orders.History(c.Request.Context(), id)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, entries)
}

// SalesReport GET /admin/salesreport
func (h *OrderHandler) SalesReport(c *gin.Context) {
	var req domain.SalesReportRequest
	if !bindQuery(c, &req) {
		return
	}
	report, err := h.reports.Sales(c.Request.Context(), &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, report)
}

// DownloadReport 以附件形式返回 pdf 或 xlsx 报表
// GET /admin/downloadreport
func (h *OrderHandler) DownloadReport(c *gin.Context) {
	var req domain.SalesReportRequest
	if !bindQuery(c, &req) {
		return
	}
	file, err := h.reports.Download(c.Request.Context(), &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, file.ContentType, file.Data)
}
