package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// OfferStatus 优惠状态
type OfferStatus string

const (
	OfferStatusActive   OfferStatus = "active"
	OfferStatusInactive OfferStatus = "inactive"
)

// OfferType 优惠作用范围
type OfferType string

const (
	OfferTypeProduct  OfferType = "product"
	OfferTypeCategory OfferType = "category"
)

// DateLayout 日期参数格式
const DateLayout = "2006-01-02"

// Offer 百分比折扣，作用于商品列表或整个分类
type Offer struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"name"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	StartDate          time.Time       `json:"start_date"`
	EndDate            time.Time       `json:"end_date"`
	CategoryID         *int64          `json:"category_id,omitempty"`
	ProductIDs         []int64         `json:"product_ids"`
	Status             OfferStatus     `json:"status"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// Type 带分类引用的优惠视为分类优惠
func (o *Offer) Type() OfferType {
	if o.CategoryID != nil {
		return OfferTypeCategory
	}
	return OfferTypeProduct
}

// ActiveOn 优惠在 day 所在自然日是否有效，起止日期均包含在内
func (o *Offer) ActiveOn(day time.Time) bool {
	if o.Status != OfferStatusActive {
		return false
	}
	d := dayKey(day)
	return dayKey(o.StartDate) <= d && d <= dayKey(o.EndDate)
}

// Covers 优惠是否覆盖该商品（商品列表命中或分类命中）
func (o *Offer) Covers(p *Product) bool {
	if slices.Contains(o.ProductIDs, p.ID) {
		return true
	}
	return o.CategoryID != nil && *o.CategoryID == p.CategoryID
}

func dayKey(t time.Time) int {
	y, m, d := t.Date()
	return y*10000 + int(m)*100 + d
}

// ApplyDiscount 按百分比计算折后价，保留两位小数
func ApplyDiscount(price, percentage decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	return price.Mul(hundred.Sub(percentage)).Div(hundred).Round(2)
}

// ApplicableOffer 商品可用的一条优惠
type ApplicableOffer struct {
	OfferID            int64           `json:"offer_id"`
	Name               string          `json:"name"`
	Type               OfferType       `json:"type"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	EndDate            time.Time       `json:"end_date"`
}

// VariantPrice 规格的原价与折后价
type VariantPrice struct {
	VariantID       int64           `json:"variant_id"`
	Size            string          `json:"size"`
	Color           string          `json:"color"`
	OriginalPrice   decimal.Decimal `json:"original_price"`
	DiscountedPrice decimal.Decimal `json:"discounted_price"`
	Savings         decimal.Decimal `json:"savings"`
}

// ProductOffer 商品的最优优惠解析结果
type ProductOffer struct {
	BestOffer          ApplicableOffer   `json:"best_offer"`
	ApplicableOffers   []ApplicableOffer `json:"applicable_offers"`
	DiscountPercentage decimal.Decimal   `json:"discount_percentage"`
	OriginalPrice      decimal.Decimal   `json:"original_price"`
	DiscountedPrice    decimal.Decimal   `json:"discounted_price"`
	Savings            decimal.Decimal   `json:"savings"`
	Variants           []VariantPrice    `json:"variants"`
}

// VariantDiscountedPrice 返回规格折后价，规格不在结果中时返回 false
func (po *ProductOffer) VariantDiscountedPrice(variantID int64) (decimal.Decimal, bool) {
	if po == nil {
		return decimal.Zero, false
	}
	for _, v := range po.Variants {
		if v.VariantID == variantID {
			return v.DiscountedPrice, true
		}
	}
	return decimal.Zero, false
}

// OfferRequest 新建或更新优惠
type OfferRequest struct {
	Name               string          `json:"name" binding:"required,min=1,max=100"`
	DiscountPercentage decimal.Decimal `json:"discount_percentage"`
	StartDate          string          `json:"start_date" binding:"required,datetime=2006-01-02"`
	EndDate            string          `json:"end_date" binding:"required,datetime=2006-01-02"`
	CategoryID         *int64          `json:"category_id" binding:"omitempty,gt=0"`
	ProductIDs         []int64         `json:"product_ids" binding:"omitempty,dive,gt=0"`
	Status             OfferStatus     `json:"status" binding:"omitempty,oneof=active inactive"`
}

// ToOffer 校验请求并生成优惠，日期按 loc 解析
func (r *OfferRequest) ToOffer(loc *time.Location) (*Offer, error) {
	if r.DiscountPercentage.IsNegative() || r.DiscountPercentage.GreaterThan(decimal.NewFromInt(100)) {
		return nil, Invalid("discount_percentage must be between 0 and 100")
	}
	start, err := time.ParseInLocation(DateLayout, r.StartDate, loc)
	if err != nil {
		return nil, Invalid("invalid start_date")
	}
	end, err := time.ParseInLocation(DateLayout, r.EndDate, loc)
	if err != nil {
		return nil, Invalid("invalid end_date")
	}
	if end.Before(start) {
		return nil, Invalid("end_date must not be before start_date")
	}
	if r.CategoryID == nil && len(r.ProductIDs) == 0 {
		return nil, Invalid("offer must target a category or at least one product")
	}
	status := r.Status
	if status == "" {
		status = OfferStatusActive
	}
	return &Offer{
		Name:               r.Name,
		DiscountPercentage: r.DiscountPercentage,
		StartDate:          start,
		EndDate:            end,
		CategoryID:         r.CategoryID,
		ProductIDs:         r.ProductIDs,
		Status:             status,
	}, nil
}
