package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/audit"
	"github.com/MorseWayne/storefront/internal/clock"
	"github.com/MorseWayne/storefront/internal/config"
	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/mq"
	"github.com/MorseWayne/storefront/internal/payment"
	"github.com/MorseWayne/storefront/internal/promotion"
	"github.com/MorseWayne/storefront/internal/repo"
)

// auditHistoryLimit 审计查询返回的最大条数
const auditHistoryLimit = 100

// 退款原因，同时作为指标标签
const (
	refundReasonCancel = "cancel"
	refundReasonReturn = "return"
)

// OrderMetrics 订单业务指标
type OrderMetrics interface {
	OrderPlaced(paymentMethod string, total decimal.Decimal)
	RefundCredited(reason string, amount decimal.Decimal)
}

type nopMetrics struct{}

func (nopMetrics) OrderPlaced(string, decimal.Decimal)    {}
func (nopMetrics) RefundCredited(string, decimal.Decimal) {}

// CancelResult 取消订单行的结果。订单被取消空时 Order 为 nil
type CancelResult struct {
	Order       *domain.Order             `json:"order"`
	Deleted     bool                      `json:"deleted"`
	Refund      decimal.Decimal           `json:"refund"`
	Transaction *domain.WalletTransaction `json:"transaction,omitempty"`
}

// ReturnResult 退货处理结果
type ReturnResult struct {
	Order       *domain.Order             `json:"order"`
	Refund      decimal.Decimal           `json:"refund"`
	Transaction *domain.WalletTransaction `json:"transaction,omitempty"`
}

// OrderService 订单生命周期：下单、状态修改、按行取消、退货、支付校验
type OrderService interface {
	PlaceOrder(ctx context.Context, req *domain.PlaceOrderRequest) (*domain.PlaceOrderResponse, error)
	GetForUser(ctx context.Context, userID, orderID int64) (*domain.Order, error)
	ListForUser(ctx context.Context, userID int64, page, pageSize int) (*domain.OrderListResponse, error)
	CancelItem(ctx context.Context, orderID int64, req *domain.CancelItemRequest) (*CancelResult, error)
	RequestReturn(ctx context.Context, orderID int64, req *domain.ReturnItemRequest) (*domain.Order, error)
	VerifyPayment(ctx context.Context, userID int64, req *domain.VerifyPaymentRequest) (*domain.Order, error)

	Get(ctx context.Context, orderID int64) (*domain.Order, error)
	List(ctx context.Context, req *domain.OrderListRequest) (*domain.OrderListResponse, error)
	UpdateStatus(ctx context.Context, orderID int64, req *domain.UpdateOrderStatusRequest) (*domain.Order, error)
	AcceptReturn(ctx context.Context, orderID int64) (*ReturnResult, error)
	RejectReturn(ctx context.Context, orderID int64) (*domain.Order, error)
	History(ctx context.Context, orderID int64) ([]*audit.Entry, error)
}

// OrderServiceDeps 订单服务依赖。Publisher、Audit、Metrics 为空时使用空实现
type OrderServiceDeps struct {
	Orders    repo.OrderRepository
	Products  repo.ProductRepository
	Addresses repo.AddressRepository
	Coupons   CouponService
	Resolver  *promotion.Resolver
	Gateway   payment.Gateway
	Publisher mq.Publisher
	Audit     audit.Recorder
	Metrics   OrderMetrics
	Clock     clock.Clock
	Shop      config.ShopConfig
	// RequestID 从上下文提取请求 ID 写入审计记录
	RequestID func(ctx context.Context) string
	Logger    *zap.Logger
}

type orderService struct {
	orders    repo.OrderRepository
	products  repo.ProductRepository
	addresses repo.AddressRepository
	coupons   CouponService
	resolver  *promotion.Resolver
	gateway   payment.Gateway
	publisher mq.Publisher
	audit     audit.Recorder
	metrics   OrderMetrics
	clock     clock.Clock
	shipping  decimal.Decimal
	window    int
	requestID func(ctx context.Context) string
	logger    *zap.Logger
}

// NewOrderService 创建订单服务实例
func NewOrderService(d OrderServiceDeps) OrderService {
	s := &orderService{
		orders:    d.Orders,
		products:  d.Products,
		addresses: d.Addresses,
		coupons:   d.Coupons,
		resolver:  d.Resolver,
		gateway:   d.Gateway,
		publisher: d.Publisher,
		audit:     d.Audit,
		metrics:   d.Metrics,
		clock:     d.Clock,
		shipping:  d.Shop.Shipping(),
		window:    d.Shop.ReturnWindowDays,
		requestID: d.RequestID,
		logger:    d.Logger,
	}
	if s.publisher == nil {
		s.publisher = mq.NopPublisher{}
	}
	if s.audit == nil {
		s.audit = audit.NewMemoryRecorder()
	}
	if s.metrics == nil {
		s.metrics = nopMetrics{}
	}
	if s.requestID == nil {
		s.requestID = func(context.Context) string { return "" }
	}
	if s.window <= 0 {
		s.window = 7
	}
	return s
}

// PlaceOrder 下单
// 业务规则：
// 1. 每一行的商品、规格必须存在且库存充足，任一行不满足则整单拒绝
// 2. 成交单价按当前最优优惠由服务端计算，总价 = 行小计之和 + 运费 - 优惠券折扣
// 3. 在线支付先在网关创建支付单，状态为 Completed / Placed；货到付款为 Pending / Processing
// 4. 扣库存、写订单、记录优惠券使用、移除购物车对应行在同一事务中完成
func (s *orderService) PlaceOrder(ctx context.Context, req *domain.PlaceOrderRequest) (*domain.PlaceOrderResponse, error) {
	if len(req.Items) == 0 {
		return nil, domain.ErrEmptyOrder
	}
	method, err := domain.ParsePaymentMethod(req.PaymentMethod)
	if err != nil {
		return nil, err
	}

	addr, err := s.addresses.GetByID(ctx, req.UserID, req.AddressID)
	if err != nil {
		return nil, fmt.Errorf("get address: %w", err)
	}
	if addr == nil {
		return nil, domain.ErrAddressNotFound
	}

	items, productIDs, err := s.priceItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	order := &domain.Order{
		UserID:          req.UserID,
		AddressID:       addr.ID,
		ShippingAddress: addr.Snapshot(),
		Items:           items,
		ShippingCharge:  s.shipping,
		PaymentMethod:   method,
		OrderDate:       now,
	}
	order.Recalculate()

	var couponID *int64
	if code := strings.TrimSpace(req.CouponCode); code != "" {
		coupon, discount, err := s.coupons.Validate(ctx, req.UserID, code, order.ItemsTotal())
		if err != nil {
			return nil, err
		}
		couponID = &coupon.ID
		order.CouponCode = coupon.Code
		order.Discount = discount
		order.AllocateDiscount()
		order.Recalculate()
	}

	var gateway *domain.GatewayOrder
	if method.IsImmediate() {
		gateway, err = s.gateway.CreateOrder(ctx, order.TotalPrice, "rcpt_"+strings.ReplaceAll(uuid.NewString(), "-", "")[:20])
		if err != nil {
			s.logger.Error("failed to create gateway order", zap.Int64("user_id", req.UserID), zap.Error(err))
			return nil, fmt.Errorf("create gateway order: %w", err)
		}
		order.GatewayOrderID = gateway.ID
		order.PaymentStatus = domain.PaymentStatusCompleted
		order.OrderStatus = domain.OrderStatusPlaced
	} else {
		order.PaymentStatus = domain.PaymentStatusPending
		order.OrderStatus = domain.OrderStatusProcessing
		for _, item := range order.Items {
			item.ProductStatus = domain.ItemStatusProcessing
		}
	}

	if err := s.orders.PlaceOrder(ctx, order, couponID); err != nil {
		if domain.KindOf(err) != domain.KindUnknown {
			return nil, err
		}
		s.logger.Error("failed to place order", zap.Int64("user_id", req.UserID), zap.Error(err))
		return nil, fmt.Errorf("place order: %w", err)
	}
	s.invalidate(ctx, productIDs...)

	s.logger.Info("order placed",
		zap.Int64("order_id", order.ID),
		zap.Int64("user_id", order.UserID),
		zap.String("payment_method", string(order.PaymentMethod)),
		zap.String("total", order.TotalPrice.String()),
	)
	s.metrics.OrderPlaced(string(order.PaymentMethod), order.TotalPrice)
	s.track(ctx, order, userActor(order.UserID), audit.ActionPlaced, mq.EventOrderPlaced, "", order.TotalPrice, map[string]any{
		"total_price":    order.TotalPrice.String(),
		"total_items":    order.TotalItems,
		"payment_method": string(order.PaymentMethod),
		"coupon_code":    order.CouponCode,
	})

	return &domain.PlaceOrderResponse{Order: order, Gateway: gateway}, nil
}

// priceItems 校验每一行并按当前优惠定价。同一规格出现多行时按合计数量校验库存
func (s *orderService) priceItems(ctx context.Context, reqs []domain.OrderItemRequest) ([]*domain.OrderItem, []int64, error) {
	ids := make([]int64, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.ProductID)
	}
	products, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, nil, fmt.Errorf("get products: %w", err)
	}
	byID := make(map[int64]*domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	offers, err := s.resolver.ForProducts(ctx, products)
	if err != nil {
		return nil, nil, err
	}

	requested := make(map[int64]int, len(reqs))
	seen := make(map[int64]struct{}, len(byID))
	items := make([]*domain.OrderItem, 0, len(reqs))
	productIDs := make([]int64, 0, len(byID))
	for _, r := range reqs {
		if r.Quantity < 1 {
			return nil, nil, domain.ErrInvalidQuantity
		}
		p := byID[r.ProductID]
		if p == nil {
			return nil, nil, domain.ErrProductNotFound
		}
		if !p.IsAvailable() {
			return nil, nil, domain.ErrProductUnavailable
		}
		v := p.FindVariant(r.Variant.Size, r.Variant.Color)
		if v == nil {
			return nil, nil, domain.ErrVariantNotFound
		}
		requested[v.ID] += r.Quantity
		if requested[v.ID] > v.Quantity {
			return nil, nil, domain.ErrInsufficientStock
		}
		if _, ok := seen[p.ID]; !ok {
			seen[p.ID] = struct{}{}
			productIDs = append(productIDs, p.ID)
		}

		items = append(items, &domain.OrderItem{
			ID:            uuid.NewString(),
			ProductID:     p.ID,
			VariantID:     v.ID,
			ProductName:   p.Title,
			Size:          v.Size,
			Color:         v.Color,
			Quantity:      r.Quantity,
			Price:         v.Price,
			OfferPrice:    promotion.UnitPrice(offers[p.ID], v),
			ProductStatus: domain.ItemStatusPlaced,
		})
	}
	return items, productIDs, nil
}

// GetForUser 只能查看自己的订单，他人订单视为不存在
func (s *orderService) GetForUser(ctx context.Context, userID, orderID int64) (*domain.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) Get(ctx context.Context, orderID int64) (*domain.Order, error) {
	order, err := s.orders.GetByID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	if order == nil {
		return nil, domain.ErrOrderNotFound
	}
	return order, nil
}

func (s *orderService) ListForUser(ctx context.Context, userID int64, page, pageSize int) (*domain.OrderListResponse, error) {
	return s.List(ctx, &domain.OrderListRequest{Page: page, PageSize: pageSize, UserID: &userID})
}

func (s *orderService) List(ctx context.Context, req *domain.OrderListRequest) (*domain.OrderListResponse, error) {
	req.Page, req.PageSize = domain.NormalizePage(req.Page, req.PageSize)
	orders, total, err := s.orders.List(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	if orders == nil {
		orders = []*domain.Order{}
	}
	return &domain.OrderListResponse{
		Orders:   orders,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

// CancelItem 取消一行：按该行实付金额退款到钱包、归还库存、从订单移除该行，订单为空时删除订单。
// 钱包必须已存在，缺失时整个操作失败
func (s *orderService) CancelItem(ctx context.Context, orderID int64, req *domain.CancelItemRequest) (*CancelResult, error) {
	var cancelled *domain.OrderItem
	order, txn, err := s.orders.Mutate(ctx, orderID, func(o *domain.Order) (*repo.OrderChange, error) {
		if o.UserID != req.UserID {
			return nil, domain.ErrOrderNotFound
		}
		item, err := o.CancelItem(req.ItemID)
		if err != nil {
			return nil, err
		}
		cancelled = item

		id := o.ID
		change := &repo.OrderChange{
			Restock: []repo.Restock{{VariantID: item.VariantID, Quantity: item.Quantity}},
			Delete:  len(o.Items) == 0,
		}
		if refund := item.Refundable(); refund.IsPositive() {
			change.Credit = &domain.WalletCredit{
				UserID:      o.UserID,
				Amount:      refund,
				OrderID:     &id,
				Reference:   fmt.Sprintf("cancel:%d:%s", o.ID, item.ID),
				Description: fmt.Sprintf("Refund for cancelled item %s in order #%d", item.ProductName, o.ID),
			}
		}
		return change, nil
	})
	if err != nil {
		return nil, s.mutationError("cancel item", orderID, err)
	}
	s.invalidate(ctx, cancelled.ProductID)

	refund := cancelled.Refundable()
	result := &CancelResult{Order: order, Refund: refund, Transaction: txn}
	if len(order.Items) == 0 {
		result.Order = nil
		result.Deleted = true
	}

	s.logger.Info("order item cancelled",
		zap.Int64("order_id", orderID),
		zap.String("item_id", cancelled.ID),
		zap.String("refund", refund.String()),
		zap.Bool("order_deleted", result.Deleted),
	)
	if txn != nil {
		s.metrics.RefundCredited(refundReasonCancel, txn.Amount)
	}
	s.track(ctx, order, userActor(order.UserID), audit.ActionItemCancelled, mq.EventItemCancelled, cancelled.ID, refund, map[string]any{
		"item_id":       cancelled.ID,
		"refund":        refund.String(),
		"order_deleted": result.Deleted,
	})
	return result, nil
}

// RequestReturn 对已送达订单的一行发起退货，需在退货期内
func (s *orderService) RequestReturn(ctx context.Context, orderID int64, req *domain.ReturnItemRequest) (*domain.Order, error) {
	now := s.clock.Now()
	order, _, err := s.orders.Mutate(ctx, orderID, func(o *domain.Order) (*repo.OrderChange, error) {
		if o.UserID != req.UserID {
			return nil, domain.ErrOrderNotFound
		}
		if err := o.RequestReturn(req.ItemID, req.Reason, now, s.window); err != nil {
			return nil, err
		}
		return &repo.OrderChange{}, nil
	})
	if err != nil {
		return nil, s.mutationError("request return", orderID, err)
	}

	s.logger.Info("return requested", zap.Int64("order_id", orderID), zap.String("item_id", req.ItemID))
	s.track(ctx, order, userActor(order.UserID), audit.ActionReturnRequested, mq.EventReturnRequested, req.ItemID, decimal.Zero, map[string]any{
		"item_id": req.ItemID,
		"reason":  strings.TrimSpace(req.Reason),
	})
	return order, nil
}

// AcceptReturn 接受退货：申请退货的行置为 Returned，实付金额之和退到钱包（钱包不存在时创建）
func (s *orderService) AcceptReturn(ctx context.Context, orderID int64) (*ReturnResult, error) {
	now := s.clock.Now()
	var refund decimal.Decimal
	order, txn, err := s.orders.Mutate(ctx, orderID, func(o *domain.Order) (*repo.OrderChange, error) {
		amount, err := o.ResolveReturn(true, now)
		if err != nil {
			return nil, err
		}
		refund = amount
		if !amount.IsPositive() {
			return &repo.OrderChange{}, nil
		}
		id := o.ID
		return &repo.OrderChange{
			Credit: &domain.WalletCredit{
				UserID:          o.UserID,
				Amount:          amount,
				OrderID:         &id,
				Reference:       fmt.Sprintf("return:%d", o.ID),
				Description:     fmt.Sprintf("Refund for returned items in order #%d", o.ID),
				CreateIfMissing: true,
			},
		}, nil
	})
	if err != nil {
		return nil, s.mutationError("accept return", orderID, err)
	}

	s.logger.Info("return accepted", zap.Int64("order_id", orderID), zap.String("refund", refund.String()))
	if txn != nil {
		s.metrics.RefundCredited(refundReasonReturn, txn.Amount)
	}
	s.track(ctx, order, adminActor, audit.ActionReturnAccepted, mq.EventReturnAccepted, "", refund, map[string]any{
		"refund":       refund.String(),
		"order_status": string(order.OrderStatus),
	})
	return &ReturnResult{Order: order, Refund: refund, Transaction: txn}, nil
}

// RejectReturn 拒绝退货，申请中的行置为 Return Failed，不涉及钱包
func (s *orderService) RejectReturn(ctx context.Context, orderID int64) (*domain.Order, error) {
	now := s.clock.Now()
	order, _, err := s.orders.Mutate(ctx, orderID, func(o *domain.Order) (*repo.OrderChange, error) {
		if _, err := o.ResolveReturn(false, now); err != nil {
			return nil, err
		}
		return &repo.OrderChange{}, nil
	})
	if err != nil {
		return nil, s.mutationError("reject return", orderID, err)
	}

	s.logger.Info("return rejected", zap.Int64("order_id", orderID))
	s.track(ctx, order, adminActor, audit.ActionReturnRejected, mq.EventReturnRejected, "", decimal.Zero, nil)
	return order, nil
}

// UpdateStatus 运营修改订单状态和/或支付状态。整单取消时在同一事务内归还库存，已支付的订单退款到钱包
func (s *orderService) UpdateStatus(ctx context.Context, orderID int64, req *domain.UpdateOrderStatusRequest) (*domain.Order, error) {
	if strings.TrimSpace(req.OrderStatus) == "" && strings.TrimSpace(req.PaymentStatus) == "" {
		return nil, domain.Invalid("order_status or payment_status is required")
	}

	var (
		before   domain.OrderStatus
		restored []int64
	)
	order, txn, err := s.orders.Mutate(ctx, orderID, func(o *domain.Order) (*repo.OrderChange, error) {
		before = o.OrderStatus
		if err := o.ApplyStatusUpdate(req.OrderStatus, req.PaymentStatus); err != nil {
			return nil, err
		}
		if before == o.OrderStatus || o.OrderStatus != domain.OrderStatusCancelled {
			return &repo.OrderChange{}, nil
		}
		change, ids := cancelWholeOrder(o)
		restored = ids
		return change, nil
	})
	if err != nil {
		return nil, s.mutationError("update order status", orderID, err)
	}
	if len(restored) > 0 {
		s.invalidate(ctx, restored...)
	}
	refund := decimal.Zero
	if txn != nil {
		refund = txn.Amount
		s.metrics.RefundCredited(refundReasonCancel, txn.Amount)
	}

	s.logger.Info("order status updated",
		zap.Int64("order_id", orderID),
		zap.String("from", string(before)),
		zap.String("order_status", string(order.OrderStatus)),
		zap.String("payment_status", string(order.PaymentStatus)),
		zap.String("refund", refund.String()),
	)
	s.track(ctx, order, adminActor, audit.ActionStatusUpdated, mq.EventOrderStatus, "", refund, map[string]any{
		"from":           string(before),
		"order_status":   string(order.OrderStatus),
		"payment_status": string(order.PaymentStatus),
	})
	return order, nil
}

// cancelWholeOrder 运营整单取消：归还全部行库存，已支付的订单把实付总额退到钱包
func cancelWholeOrder(o *domain.Order) (*repo.OrderChange, []int64) {
	change := &repo.OrderChange{}
	seen := make(map[int64]struct{}, len(o.Items))
	ids := make([]int64, 0, len(o.Items))
	for _, item := range o.Items {
		if item.ProductStatus != domain.ItemStatusCancelled {
			continue
		}
		change.Restock = append(change.Restock, repo.Restock{VariantID: item.VariantID, Quantity: item.Quantity})
		if _, ok := seen[item.ProductID]; !ok {
			seen[item.ProductID] = struct{}{}
			ids = append(ids, item.ProductID)
		}
	}
	if o.PaymentStatus == domain.PaymentStatusCompleted && o.TotalPrice.IsPositive() {
		id := o.ID
		change.Credit = &domain.WalletCredit{
			UserID:          o.UserID,
			Amount:          o.TotalPrice,
			OrderID:         &id,
			Reference:       fmt.Sprintf("cancel:%d", o.ID),
			Description:     fmt.Sprintf("Refund for cancelled order #%d", o.ID),
			CreateIfMissing: true,
		}
	}
	return change, ids
}

// VerifyPayment 校验网关回调签名，通过后订单进入 Processing。签名不匹配时订单保持不变
func (s *orderService) VerifyPayment(ctx context.Context, userID int64, req *domain.VerifyPaymentRequest) (*domain.Order, error) {
	if !s.gateway.VerifySignature(req.RazorpayOrderID, req.RazorpayPaymentID, req.RazorpaySignature) {
		s.logger.Warn("payment signature mismatch",
			zap.Int64("user_id", userID),
			zap.String("gateway_order_id", req.RazorpayOrderID),
		)
		return nil, domain.ErrPaymentVerificationFailed
	}

	existing, err := s.orders.GetByGatewayOrderID(ctx, req.RazorpayOrderID)
	if err != nil {
		return nil, fmt.Errorf("get order by gateway id: %w", err)
	}
	if existing == nil || existing.UserID != userID {
		return nil, domain.ErrOrderNotFound
	}

	changed := false
	order, _, err := s.orders.Mutate(ctx, existing.ID, func(o *domain.Order) (*repo.OrderChange, error) {
		changed = o.MarkPaid(req.RazorpayPaymentID)
		return &repo.OrderChange{}, nil
	})
	if err != nil {
		return nil, s.mutationError("verify payment", existing.ID, err)
	}
	if !changed {
		return order, nil
	}

	s.logger.Info("payment verified",
		zap.Int64("order_id", order.ID),
		zap.String("gateway_order_id", req.RazorpayOrderID),
		zap.String("gateway_payment_id", req.RazorpayPaymentID),
	)
	s.track(ctx, order, userActor(userID), audit.ActionPaymentVerified, mq.EventOrderPaid, "", order.TotalPrice, map[string]any{
		"gateway_order_id":   req.RazorpayOrderID,
		"gateway_payment_id": req.RazorpayPaymentID,
	})
	return order, nil
}

func (s *orderService) History(ctx context.Context, orderID int64) ([]*audit.Entry, error) {
	entries, err := s.audit.History(ctx, orderID, auditHistoryLimit)
	if err != nil {
		return nil, fmt.Errorf("get audit history: %w", err)
	}
	return entries, nil
}

// mutationError 业务错误原样返回，其余错误记录日志后包装
func (s *orderService) mutationError(op string, orderID int64, err error) error {
	if domain.KindOf(err) != domain.KindUnknown || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.logger.Error("order mutation failed", zap.String("op", op), zap.Int64("order_id", orderID), zap.Error(err))
	return fmt.Errorf("%s: %w", op, err)
}

func (s *orderService) invalidate(ctx context.Context, productIDs ...int64) {
	if err := s.products.Invalidate(ctx, productIDs...); err != nil {
		s.logger.Warn("failed to invalidate product cache", zap.Int64s("product_ids", productIDs), zap.Error(err))
	}
}

const adminActor = "admin"

func userActor(userID int64) string {
	return fmt.Sprintf("user:%d", userID)
}

// track 写审计并发布事件，失败只记录日志
func (s *orderService) track(
	ctx context.Context,
	order *domain.Order,
	actor string,
	action audit.Action,
	event mq.EventType,
	itemID string,
	amount decimal.Decimal,
	data map[string]any,
) {
	now := s.clock.Now()
	entry := &audit.Entry{
		OrderID:   order.ID,
		UserID:    order.UserID,
		Actor:     actor,
		Action:    action,
		Data:      data,
		RequestID: s.requestID(ctx),
		CreatedAt: now,
	}
	if err := s.audit.Record(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit entry",
			zap.Int64("order_id", order.ID),
			zap.String("action", string(action)),
			zap.Error(err),
		)
	}

	evt := &mq.OrderEvent{
		Type:       event,
		OrderID:    order.ID,
		UserID:     order.UserID,
		Status:     string(order.OrderStatus),
		ItemID:     itemID,
		Amount:     amount,
		OccurredAt: now,
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn("failed to publish order event",
			zap.Int64("order_id", order.ID),
			zap.String("event", string(event)),
			zap.Error(err),
		)
	}
}
