package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// WishlistItem 收藏的商品
type WishlistItem struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	CreatedAt time.Time `json:"created_at"`
}

// WishlistEntry 收藏展示项
type WishlistEntry struct {
	ProductID  int64           `json:"product_id"`
	Title      string          `json:"title"`
	Image      string          `json:"image,omitempty"`
	Price      decimal.Decimal `json:"price"`
	OfferPrice decimal.Decimal `json:"offer_price"`
	InStock    bool            `json:"in_stock"`
	AddedAt    time.Time       `json:"added_at"`
}

// AddWishlistRequest 加入收藏
type AddWishlistRequest struct {
	ProductID int64 `json:"product_id" binding:"required,gt=0"`
}
