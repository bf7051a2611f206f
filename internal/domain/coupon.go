package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// CouponStatus 优惠券状态
type CouponStatus string

const (
	CouponStatusActive   CouponStatus = "active"
	CouponStatusInactive CouponStatus = "inactive"
)

// Coupon 结算时使用的折扣码，每个用户限用一次
type Coupon struct {
	ID                 int64           `json:"id"`
	Code               string          `json:"code"`
	Description        string          `json:"description"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	MaxDiscount        decimal.Decimal `json:"max_discount"` // 0 表示不封顶
	MinPurchase        decimal.Decimal `json:"min_purchase"`
	ExpiryDate         time.Time       `json:"expiry_date"`
	Status             CouponStatus    `json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// NormalizeCouponCode 券码统一为大写
func NormalizeCouponCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// CheckUsable 校验在 now 时刻对金额 amount 是否可用（不含用户使用记录）
func (c *Coupon) CheckUsable(now time.Time, amount decimal.Decimal) error {
	if c.Status != CouponStatusActive {
		return ErrCouponInactive
	}
	if dayKey(now) > dayKey(c.ExpiryDate) {
		return ErrCouponExpired
	}
	if amount.LessThan(c.MinPurchase) {
		return ErrCouponMinPurchase
	}
	return nil
}

// Discount 计算折扣金额，不超过封顶额与订单金额
func (c *Coupon) Discount(amount decimal.Decimal) decimal.Decimal {
	d := amount.Mul(c.DiscountPercentage).Div(decimal.NewFromInt(100)).Round(2)
	if c.MaxDiscount.IsPositive() && d.GreaterThan(c.MaxDiscount) {
		d = c.MaxDiscount
	}
	if d.GreaterThan(amount) {
		d = amount
	}
	return d
}

// CouponRequest 新建或更新优惠券
type CouponRequest struct {
	Code               string          `json:"code" binding:"required,min=3,max=32,alphanum"`
	Description        string          `json:"description" binding:"max=255"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	MaxDiscount        decimal.Decimal `json:"max_discount"`
	MinPurchase        decimal.Decimal `json:"min_purchase"`
	ExpiryDate         string          `json:"expiry_date" binding:"required,datetime=2006-01-02"`
	Status             CouponStatus    `json:"status" binding:"omitempty,oneof=active inactive"`
}

// ToCoupon 校验请求并生成优惠券
func (r *CouponRequest) ToCoupon(loc *time.Location) (*Coupon, error) {
	if !r.DiscountPercentage.IsPositive() || r.DiscountPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return nil, Invalid("discount_percentage must be between 0 and 100")
	}
	if r.MaxDiscount.IsNegative() || r.MinPurchase.IsNegative() {
		return nil, Invalid("amounts must not be negative")
	}
	expiry, err := time.ParseInLocation(DateLayout, r.ExpiryDate, loc)
	if err != nil {
		return nil, Invalid("invalid expiry_date")
	}
	status := r.Status
	if status == "" {
		status = CouponStatusActive
	}
	return &Coupon{
		Code:               NormalizeCouponCode(r.Code),
		Description:        r.Description,
		DiscountPercentage: r.DiscountPercentage,
		MaxDiscount:        r.MaxDiscount,
		MinPurchase:        r.MinPurchase,
		ExpiryDate:         expiry,
		Status:             status,
	}, nil
}

// ApplyCouponRequest 预览优惠券效果
type ApplyCouponRequest struct {
	Code string `json:"code" binding:"required"`
}

// CouponPreview 预览结果，基于当前购物车金额
type CouponPreview struct {
	Code     string          `json:"code"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}
