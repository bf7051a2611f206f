// Package domain 定义商品相关的业务领域模型和核心业务规则。
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ProductStatus 定义商品状态类型
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"   // 正常销售
	ProductStatusInactive ProductStatus = "inactive" // 暂停销售
)

// UnknownProductName 商品已被删除或不可解析时的展示名称
const UnknownProductName = "Unknown Product"

// Product 表示商品领域模型
type Product struct {
	ID          int64           `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	CategoryID  int64           `json:"category_id"`
	Images      []string        `json:"images"`
	Status      ProductStatus   `json:"status"`
	Variants    []*Variant      `json:"variants"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Variant 商品规格（尺码+颜色），库存以规格为单位
type Variant struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Size      string          `json:"size"`
	Color     string          `json:"color"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Images    []string        `json:"images"`
}

// IsAvailable 判断商品是否可售
func (p *Product) IsAvailable() bool {
	return p.Status == ProductStatusActive
}

// FindVariant 按尺码和颜色查找规格，均不区分大小写
func (p *Product) FindVariant(size, color string) *Variant {
	for _, v := range p.Variants {
		if strings.EqualFold(v.Size, strings.TrimSpace(size)) && strings.EqualFold(v.Color, strings.TrimSpace(color)) {
			return v
		}
	}
	return nil
}

// FindVariantByID 按 ID 查找规格
func (p *Product) FindVariantByID(id int64) *Variant {
	for _, v := range p.Variants {
		if v.ID == id {
			return v
		}
	}
	return nil
}

// TotalStock 所有规格库存之和
func (p *Product) TotalStock() int {
	total := 0
	for _, v := range p.Variants {
		total += v.Quantity
	}
	return total
}

// FirstImage 商品主图，没有图片时返回空串
func (p *Product) FirstImage() string {
	if len(p.Images) > 0 {
		return p.Images[0]
	}
	for _, v := range p.Variants {
		if len(v.Images) > 0 {
			return v.Images[0]
		}
	}
	return ""
}

// VariantRequest 规格请求。ID 为空时新建，否则更新已有规格
type VariantRequest struct {
	ID       int64           `json:"id"`
	Size     string          `json:"size" binding:"required,max=20"`
	Color    string          `json:"color" binding:"required,max=30"`
	Quantity int             `json:"quantity" binding:"min=0"`
	Price    decimal.Decimal `json:"price"`
	Images   []string        `json:"images"`
}

// CreateProductRequest 表示创建商品请求
type CreateProductRequest struct {
	Title       string           `json:"title" binding:"required,min=1,max=255"`
	Description string           `json:"description"`
	Price       decimal.Decimal  `json:"price"`
	CategoryID  int64            `json:"category_id" binding:"required,gt=0"`
	Images      []string         `json:"images"`
	Variants    []VariantRequest `json:"variants" binding:"required,min=1,dive"`
}

// Validate 校验金额字段
func (r *CreateProductRequest) Validate() error {
	if !r.Price.IsPositive() {
		return Invalid("price must be greater than 0")
	}
	return validateVariants(r.Variants)
}

// UpdateProductRequest 表示更新商品请求，nil 字段不修改。
// 规格按 ID 更新，未携带 ID 的规格新增，未出现的规格保持不变。
type UpdateProductRequest struct {
	Title       *string          `json:"title" binding:"omitempty,min=1,max=255"`
	Description *string          `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	CategoryID  *int64           `json:"category_id" binding:"omitempty,gt=0"`
	Images      []string         `json:"images"`
	Status      *ProductStatus   `json:"status" binding:"omitempty,oneof=active inactive"`
	Variants    []VariantRequest `json:"variants" binding:"omitempty,dive"`
}

// Validate 校验金额字段
func (r *UpdateProductRequest) Validate() error {
	if r.Price != nil && !r.Price.IsPositive() {
		return Invalid("price must be greater than 0")
	}
	return validateVariants(r.Variants)
}

func validateVariants(variants []VariantRequest) error {
	seen := make(map[string]struct{}, len(variants))
	for _, v := range variants {
		if v.Price.IsNegative() {
			return Invalid("variant price must not be negative")
		}
		key := strings.ToLower(strings.TrimSpace(v.Size)) + "|" + strings.ToLower(strings.TrimSpace(v.Color))
		if _, dup := seen[key]; dup {
			return Invalid("duplicate variant " + v.Size + "/" + v.Color)
		}
		seen[key] = struct{}{}
	}
	return nil
}

// ToVariant 构造规格，价格为零时沿用商品价格
func (r *VariantRequest) ToVariant(productPrice decimal.Decimal) *Variant {
	price := r.Price
	if price.IsZero() {
		price = productPrice
	}
	return &Variant{
		ID:       r.ID,
		Size:     strings.TrimSpace(r.Size),
		Color:    strings.TrimSpace(r.Color),
		Quantity: r.Quantity,
		Price:    price,
		Images:   r.Images,
	}
}

// ProductListRequest 表示商品列表查询请求
type ProductListRequest struct {
	Page       int
	PageSize   int
	Status     *ProductStatus
	CategoryID *int64
	Keyword    *string
	SortBy     *string // price | created_at | title
	SortOrder  *string // asc | desc
	// Listed 为 true 时只返回上架商品且所属分类也上架
	Listed bool
}

// ProductView 商品及其当前最优优惠
type ProductView struct {
	*Product
	Offer *ProductOffer `json:"offer,omitempty"`
}

// ProductListResponse 表示商品列表查询响应
type ProductListResponse struct {
	Products []*ProductView `json:"products"`
	Total    int64          `json:"total"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
}
