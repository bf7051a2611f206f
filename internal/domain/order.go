package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus 订单状态
type OrderStatus string

const (
	OrderStatusPlaced     OrderStatus = "Placed"
	OrderStatusProcessing OrderStatus = "Processing"
	OrderStatusShipped    OrderStatus = "Shipped"
	OrderStatusDelivered  OrderStatus = "Delivered"
	OrderStatusCancelled  OrderStatus = "Cancelled"
	OrderStatusReturned   OrderStatus = "Returned"
)

var orderStatuses = []OrderStatus{
	OrderStatusPlaced, OrderStatusProcessing, OrderStatusShipped,
	OrderStatusDelivered, OrderStatusCancelled, OrderStatusReturned,
}

// ParseOrderStatus 不区分大小写地解析订单状态
func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, st := range orderStatuses {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", ErrInvalidOrderStatus
}

// PaymentStatus 支付状态
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "Pending"
	PaymentStatusCompleted PaymentStatus = "Completed"
	PaymentStatusFailed    PaymentStatus = "Failed"
)

var paymentStatuses = []PaymentStatus{
	PaymentStatusPending, PaymentStatusCompleted, PaymentStatusFailed,
}

// ParsePaymentStatus 不区分大小写地解析支付状态
func ParsePaymentStatus(s string) (PaymentStatus, error) {
	for _, st := range paymentStatuses {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", ErrInvalidPaymentStatus
}

// PaymentMethod 支付方式
type PaymentMethod string

const (
	PaymentMethodCOD      PaymentMethod = "COD"
	PaymentMethodRazorpay PaymentMethod = "Razorpay"
)

// ParsePaymentMethod 不区分大小写地解析支付方式
func ParsePaymentMethod(s string) (PaymentMethod, error) {
	for _, m := range []PaymentMethod{PaymentMethodCOD, PaymentMethodRazorpay} {
		if strings.EqualFold(string(m), strings.TrimSpace(s)) {
			return m, nil
		}
	}
	return "", ErrInvalidPaymentMethod
}

// IsImmediate 下单即在网关创建支付单的方式
func (m PaymentMethod) IsImmediate() bool {
	return m == PaymentMethodRazorpay
}

// ItemStatus 订单行状态
type ItemStatus string

const (
	ItemStatusPlaced          ItemStatus = "Placed"
	ItemStatusProcessing      ItemStatus = "Processing"
	ItemStatusShipped         ItemStatus = "Shipped"
	ItemStatusDelivered       ItemStatus = "Delivered"
	ItemStatusCancelled       ItemStatus = "Cancelled"
	ItemStatusReturnRequested ItemStatus = "Return Requested"
	ItemStatusReturned        ItemStatus = "Returned"
	ItemStatusReturnFailed    ItemStatus = "Return Failed"
)

// inFlight 尚未进入终态的行，随订单状态同步
func (s ItemStatus) inFlight() bool {
	return s == ItemStatusPlaced || s == ItemStatusProcessing || s == ItemStatusShipped
}

// ReturnStatus 退货申请状态
type ReturnStatus string

const (
	ReturnStatusPending  ReturnStatus = "Pending"
	ReturnStatusAccepted ReturnStatus = "Accepted"
	ReturnStatusRejected ReturnStatus = "Rejected"
)

// ReturnRequest 订单级退货申请，每个订单只处理一次
type ReturnRequest struct {
	IsRequested    bool         `json:"is_requested"`
	Reason         string       `json:"reason"`
	Status         ReturnStatus `json:"status"`
	RequestDate    time.Time    `json:"request_date"`
	ResolutionDate *time.Time   `json:"resolution_date,omitempty"`
}

// Order 订单聚合
type Order struct {
	ID               int64           `json:"id"`
	UserID           int64           `json:"user_id"`
	AddressID        int64           `json:"address_id"`
	ShippingAddress  ShippingAddress `json:"shipping_address"`
	Items            []*OrderItem    `json:"items"`
	TotalItems       int             `json:"total_items"`
	ShippingCharge   decimal.Decimal `json:"shipping_charge"`
	CouponCode       string          `json:"coupon_code,omitempty"`
	Discount         decimal.Decimal `json:"discount"`
	TotalPrice       decimal.Decimal `json:"total_price"`
	PaymentMethod    PaymentMethod   `json:"payment_method"`
	PaymentStatus    PaymentStatus   `json:"payment_status"`
	OrderStatus      OrderStatus     `json:"order_status"`
	GatewayOrderID   string          `json:"gateway_order_id,omitempty"`
	GatewayPaymentID string          `json:"gateway_payment_id,omitempty"`
	OrderDate        time.Time       `json:"order_date"`
	Return           *ReturnRequest  `json:"return_request,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// OrderItem 订单行。Price 为规格原价，OfferPrice 为实际成交单价，
// DiscountShare 为该行分摊的优惠券折扣
type OrderItem struct {
	ID            string          `json:"id"`
	ProductID     int64           `json:"product_id"`
	VariantID     int64           `json:"variant_id"`
	ProductName   string          `json:"product_name"`
	Size          string          `json:"size"`
	Color         string          `json:"color"`
	Quantity      int             `json:"quantity"`
	Price         decimal.Decimal `json:"price"`
	OfferPrice    decimal.Decimal `json:"offer_price"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	DiscountShare decimal.Decimal `json:"discount_share"`
	ProductStatus ItemStatus      `json:"product_status"`
}

// Refundable 该行实付金额：小计减去分摊的折扣
func (i *OrderItem) Refundable() decimal.Decimal {
	amount := i.Subtotal.Sub(i.DiscountShare)
	if amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// ItemsTotal 行小计之和
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.Subtotal)
	}
	return total
}

// Recalculate 重新汇总：总价 = 有效行小计之和 + 运费 - 优惠券折扣，已退货的行不计入
func (o *Order) Recalculate() {
	count := 0
	goods := decimal.Zero
	for _, item := range o.Items {
		item.Subtotal = item.OfferPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		if item.ProductStatus == ItemStatusReturned {
			continue
		}
		count += item.Quantity
		goods = goods.Add(item.Subtotal)
	}
	o.TotalItems = count
	total := goods.Add(o.ShippingCharge).Sub(o.Discount)
	if total.IsNegative() {
		total = decimal.Zero
	}
	o.TotalPrice = total
}

// AllocateDiscount 按行小计比例把优惠券折扣分摊到各行，保留两位小数，舍入差额计入最后一行
func (o *Order) AllocateDiscount() {
	goods := o.ItemsTotal()
	remaining := o.Discount
	last := len(o.Items) - 1
	for i, item := range o.Items {
		share := remaining
		if i < last {
			share = decimal.Zero
			if goods.IsPositive() {
				share = o.Discount.Mul(item.Subtotal).Div(goods).Round(2)
			}
		}
		item.DiscountShare = share
		remaining = remaining.Sub(share)
	}
}

// releaseDiscount 行不再计价时，其分摊的折扣随之从订单折扣中扣除
func (o *Order) releaseDiscount(item *OrderItem) {
	o.Discount = o.Discount.Sub(item.DiscountShare)
	if o.Discount.IsNegative() {
		o.Discount = decimal.Zero
	}
}

// FindItem 按行 ID 查找
func (o *Order) FindItem(id string) *OrderItem {
	for _, item := range o.Items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// ApplyStatusUpdate 运营修改订单/支付状态。
// 支付状态只能在（本次修改后的）订单状态为 Delivered 时置为 Completed，校验失败时订单不变。
// 整单取消只允许在发货前；Returned 只能由接受退货产生；已取消或已退货的订单不再变更订单状态
func (o *Order) ApplyStatusUpdate(orderStatus, paymentStatus string) error {
	nextOrder := o.OrderStatus
	if orderStatus != "" {
		st, err := ParseOrderStatus(orderStatus)
		if err != nil {
			return err
		}
		nextOrder = st
	}
	if nextOrder != o.OrderStatus {
		switch {
		case o.OrderStatus == OrderStatusCancelled || o.OrderStatus == OrderStatusReturned:
			return ErrOrderClosed
		case nextOrder == OrderStatusReturned:
			return ErrReturnedViaReturnFlow
		case nextOrder == OrderStatusCancelled && !o.Cancellable():
			return ErrOrderNotCancellable
		}
	}

	nextPayment := o.PaymentStatus
	if paymentStatus != "" {
		ps, err := ParsePaymentStatus(paymentStatus)
		if err != nil {
			return err
		}
		if ps == PaymentStatusCompleted && nextOrder != OrderStatusDelivered {
			return ErrPaymentRequiresDelivered
		}
		nextPayment = ps
	}

	if nextOrder != o.OrderStatus {
		o.OrderStatus = nextOrder
		o.syncItemStatus()
	}
	o.PaymentStatus = nextPayment
	return nil
}

// MarkPaid 网关支付校验通过。重复回调同一支付单时返回 false；
// 已进入后续状态的订单只记录支付状态，不回退订单状态
func (o *Order) MarkPaid(paymentID string) bool {
	if o.GatewayPaymentID == paymentID && o.PaymentStatus == PaymentStatusCompleted {
		return false
	}
	o.GatewayPaymentID = paymentID
	o.PaymentStatus = PaymentStatusCompleted
	if o.OrderStatus == OrderStatusPlaced {
		o.OrderStatus = OrderStatusProcessing
		o.syncItemStatus()
	}
	return true
}

func (o *Order) syncItemStatus() {
	var target ItemStatus
	switch o.OrderStatus {
	case OrderStatusProcessing:
		target = ItemStatusProcessing
	case OrderStatusShipped:
		target = ItemStatusShipped
	case OrderStatusDelivered:
		target = ItemStatusDelivered
	case OrderStatusCancelled:
		target = ItemStatusCancelled
	default:
		return
	}
	for _, item := range o.Items {
		if item.ProductStatus.inFlight() {
			item.ProductStatus = target
		}
	}
}

// Cancellable 发货前的订单可以取消
func (o *Order) Cancellable() bool {
	return o.OrderStatus == OrderStatusPlaced || o.OrderStatus == OrderStatusProcessing
}

// CancelItem 取消一行并重新汇总，返回被取消的行
func (o *Order) CancelItem(itemID string) (*OrderItem, error) {
	if !o.Cancellable() {
		return nil, ErrOrderNotCancellable
	}

	idx := -1
	for i, item := range o.Items {
		if item.ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrOrderItemNotFound
	}
	item := o.Items[idx]
	if item.ProductStatus != ItemStatusPlaced && item.ProductStatus != ItemStatusProcessing {
		return nil, ErrOrderNotCancellable
	}

	o.Items = append(o.Items[:idx], o.Items[idx+1:]...)
	o.releaseDiscount(item)
	o.Recalculate()
	return item, nil
}

// DaysSinceOrder 距下单的天数，不足一天按一天计
func (o *Order) DaysSinceOrder(now time.Time) int {
	d := now.Sub(o.OrderDate)
	if d < 0 {
		d = -d
	}
	const day = 24 * time.Hour
	return int((d + day - 1) / day)
}

// RequestReturn 为一行发起退货申请
func (o *Order) RequestReturn(itemID, reason string, now time.Time, windowDays int) error {
	if o.OrderStatus != OrderStatusDelivered {
		return ErrReturnNotDelivered
	}
	if o.DaysSinceOrder(now) > windowDays {
		return ErrReturnWindowExpired
	}
	if o.Return != nil && o.Return.IsRequested && o.Return.Status != ReturnStatusPending {
		return ErrReturnAlreadyResolved
	}
	item := o.FindItem(itemID)
	if item == nil {
		return ErrOrderItemNotFound
	}
	switch item.ProductStatus {
	case ItemStatusReturnRequested, ItemStatusReturned:
		return ErrReturnAlreadyRequested
	}

	item.ProductStatus = ItemStatusReturnRequested
	if o.Return == nil || !o.Return.IsRequested {
		o.Return = &ReturnRequest{
			IsRequested: true,
			Status:      ReturnStatusPending,
			RequestDate: now,
		}
	}
	o.Return.Reason = strings.TrimSpace(reason)
	return nil
}

// ResolveReturn 处理退货申请。接受时返回应退金额（申请退货的行实付金额之和）
func (o *Order) ResolveReturn(accept bool, now time.Time) (decimal.Decimal, error) {
	if o.Return == nil || !o.Return.IsRequested {
		return decimal.Zero, ErrNoReturnRequested
	}
	if o.Return.Status != ReturnStatusPending {
		return decimal.Zero, ErrReturnAlreadyResolved
	}

	refund := decimal.Zero
	for _, item := range o.Items {
		if item.ProductStatus != ItemStatusReturnRequested {
			continue
		}
		if accept {
			refund = refund.Add(item.Refundable())
			o.releaseDiscount(item)
			item.ProductStatus = ItemStatusReturned
		} else {
			item.ProductStatus = ItemStatusReturnFailed
		}
	}

	resolved := now
	o.Return.ResolutionDate = &resolved
	if !accept {
		o.Return.Status = ReturnStatusRejected
		return decimal.Zero, nil
	}

	o.Return.Status = ReturnStatusAccepted
	o.Recalculate()
	allReturned := len(o.Items) > 0
	for _, item := range o.Items {
		if item.ProductStatus != ItemStatusReturned {
			allReturned = false
			break
		}
	}
	if allReturned {
		o.OrderStatus = OrderStatusReturned
	}
	return refund, nil
}

// OrderItemRequest 下单行
type OrderItemRequest struct {
	ProductID int64           `json:"product_id" binding:"required,gt=0"`
	Variant   VariantSelector `json:"variant" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
}

// PlaceOrderRequest 下单请求。金额由服务端计算
type PlaceOrderRequest struct {
	UserID        int64              `json:"user_id"`
	AddressID     int64              `json:"address_id" binding:"required,gt=0"`
	PaymentMethod string             `json:"payment_method" binding:"required,payment_method"`
	CouponCode    string             `json:"coupon_code" binding:"omitempty,max=32"`
	Items         []OrderItemRequest `json:"items" binding:"required,min=1,dive"`
}

// GatewayOrder 支付网关订单信息，返回给前端拉起支付
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"` // 最小货币单位
	Currency string `json:"currency"`
	KeyID    string `json:"key_id"`
}

// PlaceOrderResponse 下单结果
type PlaceOrderResponse struct {
	Order   *Order        `json:"order"`
	Gateway *GatewayOrder `json:"gateway,omitempty"`
}

// UpdateOrderStatusRequest 运营修改状态，两者至少一个
type UpdateOrderStatusRequest struct {
	OrderStatus   string `json:"order_status" binding:"omitempty,order_status"`
	PaymentStatus string `json:"payment_status" binding:"omitempty,payment_status"`
}

// CancelItemRequest 取消订单行
type CancelItemRequest struct {
	UserID int64  `json:"user_id"`
	ItemID string `json:"item_id" binding:"required"`
}

// ReturnItemRequest 申请退货
type ReturnItemRequest struct {
	UserID int64  `json:"user_id"`
	ItemID string `json:"item_id" binding:"required"`
	Reason string `json:"reason" binding:"required,max=500"`
}

// VerifyPaymentRequest 支付回调校验，字段名沿用网关约定
type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required,hexadecimal"`
}

// OrderListRequest 订单列表查询
type OrderListRequest struct {
	Page     int
	PageSize int
	UserID   *int64
	Status   *OrderStatus
}

// OrderListResponse 订单列表
type OrderListResponse struct {
	Orders   []*Order `json:"orders"`
	Total    int64    `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"page_size"`
}
