package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Cart 用户购物车，每个用户最多一个
type Cart struct {
	ID         int64           `json:"id"`
	UserID     int64           `json:"user_id"`
	Items      []*CartItem     `json:"items"`
	TotalItems int             `json:"total_items"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// CartItem 购物车行，单价在加入时确定
type CartItem struct {
	ID                string          `json:"id"`
	ProductID         int64           `json:"product_id"`
	ProductName       string          `json:"product_name"`
	Image             string          `json:"image,omitempty"`
	VariantID         int64           `json:"variant_id"`
	Size              string          `json:"size"`
	Color             string          `json:"color"`
	Quantity          int             `json:"quantity"`
	Price             decimal.Decimal `json:"price"`
	Subtotal          decimal.Decimal `json:"subtotal"`
	AvailableQuantity int             `json:"available_quantity"`
}

// SameVariant 商品一致，尺码与颜色不区分大小写相同
func (i *CartItem) SameVariant(productID int64, size, color string) bool {
	return i.ProductID == productID && strings.EqualFold(i.Size, size) && strings.EqualFold(i.Color, color)
}

// matches 删除时的匹配规则，空的尺码或颜色视为通配
func (i *CartItem) matches(productID int64, size, color string) bool {
	if i.ProductID != productID {
		return false
	}
	if size != "" && !strings.EqualFold(i.Size, size) {
		return false
	}
	if color != "" && !strings.EqualFold(i.Color, color) {
		return false
	}
	return true
}

// Recalculate 由行数据重新汇总，合计永远是完整归约的结果
func (c *Cart) Recalculate() {
	total := decimal.Zero
	count := 0
	for _, item := range c.Items {
		item.Subtotal = item.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		total = total.Add(item.Subtotal)
		count += item.Quantity
	}
	c.TotalItems = count
	c.TotalPrice = total
}

// FindItem 按行 ID 查找
func (c *Cart) FindItem(id string) *CartItem {
	for _, item := range c.Items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// FindVariant 查找同一规格的行
func (c *Cart) FindVariant(productID int64, size, color string) *CartItem {
	for _, item := range c.Items {
		if item.SameVariant(productID, size, color) {
			return item
		}
	}
	return nil
}

// AddItem 合并或追加一行并重新汇总，返回最终的行
func (c *Cart) AddItem(item *CartItem) *CartItem {
	if existing := c.FindVariant(item.ProductID, item.Size, item.Color); existing != nil {
		existing.Quantity += item.Quantity
		existing.Price = item.Price
		existing.AvailableQuantity = item.AvailableQuantity
		c.Recalculate()
		return existing
	}
	c.Items = append(c.Items, item)
	c.Recalculate()
	return item
}

// RemoveMatching 删除匹配的行，返回删除数量
func (c *Cart) RemoveMatching(productID int64, size, color string) int {
	kept := c.Items[:0]
	removed := 0
	for _, item := range c.Items {
		if item.matches(productID, size, color) {
			removed++
			continue
		}
		kept = append(kept, item)
	}
	c.Items = kept
	c.Recalculate()
	return removed
}

// VariantSelector 规格选择
type VariantSelector struct {
	Size  string `json:"size" binding:"required,max=20"`
	Color string `json:"color" binding:"required,max=30"`
}

// AddToCartRequest 加入购物车。单价由服务端根据当前优惠计算
type AddToCartRequest struct {
	UserID    int64           `json:"user_id"`
	ProductID int64           `json:"product_id" binding:"required,gt=0"`
	Variant   VariantSelector `json:"variant" binding:"required"`
	Quantity  int             `json:"quantity" binding:"required,min=1"`
}

// UpdateCartItemRequest 修改行数量
type UpdateCartItemRequest struct {
	Quantity int `json:"quantity" binding:"required,min=1"`
}

// RemoveFromCartRequest 删除行，size/color 为空时匹配全部
type RemoveFromCartRequest struct {
	ProductID int64  `json:"product_id" binding:"required,gt=0"`
	Size      string `json:"size" binding:"max=20"`
	Color     string `json:"color" binding:"max=30"`
}
