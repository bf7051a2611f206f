package api

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/middleware"
	"github.com/MorseWayne/storefront/internal/service"
)

// CartHandler 处理购物车、收藏与优惠券请求
type CartHandler struct {
	cart     service.CartService
	wishlist service.WishlistService
	coupons  service.CouponService
	logger   *zap.Logger
}

// NewCartHandler 创建购物车处理器实例
func NewCartHandler(cart service.CartService, wishlist service.WishlistService, coupons service.CouponService, logger *zap.Logger) *CartHandler {
	return &CartHandler{cart: cart, wishlist: wishlist, coupons: coupons, logger: logger}
}

// GetCart GET /user/cart
func (h *CartHandler) GetCart(c *gin.Context) {
	cart, err := h.cart.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, cart)
}

// AddToCart 同商品同规格（大小写不敏感）的行会合并数量
// POST /user/cart/add
func (h *CartHandler) AddToCart(c *gin.Context) {
	var req domain.AddToCartRequest
	if !bindJSON(c, &req) {
		return
	}
	if !claimUser(c, h.logger, &req.UserID) {
		return
	}
	cart, err := h.cart.AddItem(c.Request.Context(), &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, cart)
}

// UpdateCartItem PUT /user/cart/item/:itemId
func (h *CartHandler) UpdateCartItem(c *gin.Context) {
	itemID := strings.TrimSpace(c.Param("itemId"))
	if itemID == "" {
		badRequest(c, "invalid itemId")
		return
	}
	var req domain.UpdateCartItemRequest
	if !bindJSON(c, &req) {
		return
	}
	cart, err := h.cart.UpdateQuantity(c.Request.Context(), middleware.UserID(c), itemID, req.Quantity)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, cart)
}

// RemoveFromCart POST /user/cart/remove
func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	var req domain.RemoveFromCartRequest
	if !bindJSON(c, &req) {
		return
	}
	cart, err := h.cart.RemoveItem(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, cart)
}

// ListWishlist GET /user/wishlist
func (h *CartHandler) ListWishlist(c *gin.Context) {
	list, err := h.wishlist.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, list)
}

// AddWishlist POST /user/wishlist
func (h *CartHandler) AddWishlist(c *gin.Context) {
	var req domain.AddWishlistRequest
	if !bindJSON(c, &req) {
		return
	}
	if err := h.wishlist.Add(c.Request.Context(), middleware.UserID(c), req.ProductID); err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, gin.H{"product_id": req.ProductID})
}

// RemoveWishlist DELETE /user/wishlist/:productId
func (h *CartHandler) RemoveWishlist(c *gin.Context) {
	id, valid := pathID(c, "productId")
	if !valid {
		return
	}
	if err := h.wishlist.Remove(c.Request.Context(), middleware.UserID(c), id); err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, gin.H{"deleted": true})
}

// ListCoupons 用户端只列出可用券
// GET /user/coupons
func (h *CartHandler) ListCoupons(c *gin.Context) {
	h.listCoupons(c, true)
}

// AdminListCoupons GET /admin/coupons
func (h *CartHandler) AdminListCoupons(c *gin.Context) {
	h.listCoupons(c, false)
}

func (h *CartHandler) listCoupons(c *gin.Context, activeOnly bool) {
	list, err := h.coupons.List(c.Request.Context(), activeOnly)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, list)
}

// ApplyCoupon 预览折扣，真正核销在下单时
// POST /user/coupon/apply
func (h *CartHandler) ApplyCoupon(c *gin.Context) {
	var req domain.ApplyCouponRequest
	if !bindJSON(c, &req) {
		return
	}
	preview, err := h.coupons.Preview(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, preview)
}

// CreateCoupon POST /admin/coupon
func (h *CartHandler) CreateCoupon(c *gin.Context) {
	var req domain.CouponRequest
	if !bindJSON(c, &req) {
		return
	}
	coupon, err := h.coupons.Create(c.Request.Context(), &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, coupon)
}

// UpdateCoupon PUT /admin/coupon/:couponId
func (h *CartHandler) UpdateCoupon(c *gin.Context) {
	id, valid := pathID(c, "couponId")
	if !valid {
		return
	}
	var req domain.CouponRequest
	if !bindJSON(c, &req) {
		return
	}
	coupon, err := h.coupons.Update(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, coupon)
}

// DeleteCoupon DELETE /admin/coupon/:couponId
func (h *CartHandler) DeleteCoupon(c *gin.Context) {
	id, valid := pathID(c, "couponId")
	if !valid {
		return
	}
	if err := h.coupons.Delete(c.Request.Context(), id); err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, gin.H{"deleted": true})
}
