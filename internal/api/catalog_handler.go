package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/service"
)

// CatalogHandler 处理商品、分类与优惠活动请求
type CatalogHandler struct {
	products   service.ProductService
	categories service.CategoryService
	offers     service.OfferService
	logger     *zap.Logger
}

// NewCatalogHandler 创建商品目录处理器实例
func NewCatalogHandler(products service.ProductService, categories service.CategoryService, offers service.OfferService, logger *zap.Logger) *CatalogHandler {
	return &CatalogHandler{products: products, categories: categories, offers: offers, logger: logger}
}

type productQuery struct {
	pageQuery
	CategoryID int64                `form:"category_id" binding:"omitempty,gt=0"`
	Keyword    string               `form:"keyword" binding:"max=100"`
	Status     domain.ProductStatus `form:"status" binding:"omitempty,oneof=active inactive"`
	SortBy     string               `form:"sort_by" binding:"omitempty,oneof=price created_at title"`
	SortOrder  string               `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

func (q *productQuery) toRequest() *domain.ProductListRequest {
	req := &domain.ProductListRequest{Page: q.Page, PageSize: q.PageSize}
	if q.CategoryID > 0 {
		req.CategoryID = &q.CategoryID
	}
	if q.Keyword != "" {
		req.Keyword = &q.Keyword
	}
	if q.Status != "" {
		req.Status = &q.Status
	}
	if q.SortBy != "" {
		req.SortBy = &q.SortBy
	}
	if q.SortOrder != "" {
		req.SortOrder = &q.SortOrder
	}
	return req
}

// ListProducts 商城商品列表，附带当前最优优惠价
// GET /user/products
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	var q productQuery
	if !bindQuery(c, &q) {
		return
	}
	req := q.toRequest()
	req.Status = nil
	res, err := h.products.ListStorefront(c.Request.Context(), req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, res)
}

// GetProduct GET /user/products/:productId
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	id, valid := pathID(c, "productId")
	if !valid {
		return
	}
	view, err := h.products.GetStorefront(c.Request.Context(), id)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, view)
}

// ListCategories 用户端只返回上架分类
// GET /user/categories
func (h *CatalogHandler) ListCategories(c *gin.Context) {
	h.listCategories(c, true)
}

// AdminListCategories GET /admin/categories
func (h *CatalogHandler) AdminListCategories(c *gin.Context) {
	h.listCategories(c, false)
}

func (h *CatalogHandler) listCategories(c *gin.Context, activeOnly bool) {
	list, err := h.categories.List(c.Request.Context(), activeOnly)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, list)
}

// CreateCategory POST /admin/category
func (h *CatalogHandler) CreateCategory(c *gin.Context) {
	var req domain.CreateCategoryRequest
	if !bindJSON(c, &req) {
		return
	}
	cat, err := h.categories.Create(c.Request.Context(), &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, cat)
}

// UpdateCategory PUT /admin/category/:categoryId
func (h *CatalogHandler) UpdateCategory(c *gin.Context) {
	id, valid := pathID(c, "categoryId")
	if !valid {
		return
	}
	var req domain.UpdateCategoryRequest
	if !bindJSON(c, &req) {
		return
	}
	cat, err := h.categories.Update(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, cat)
}

// AdminListProducts 管理端列表包含下架商品
// GET /admin/products
func (h *CatalogHandler) AdminListProducts(c *gin.Context) {
	var q productQuery
	if !bindQuery(c, &q) {
		return
	}
	res, err := h.products.ListProducts(c.Request.Context(), q.toRequest())
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, res)
}

// CreateProduct POST /admin/product
func (h *CatalogHandler) CreateProduct(c *gin.Context) {
	var req domain.CreateProductRequest
	if !bindJSON(c, &req) {
		return
	}
	product, err := h.products.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, product)
}

// UpdateProduct PUT /admin/product/:productId
func (h *CatalogHandler) UpdateProduct(c *gin.Context) {
	id, valid := pathID(c, "productId")
	if !valid {
		return
	}
	var req domain.UpdateProductRequest
	if !bindJSON(c, &req) {
		return
	}
	product, err := h.products.UpdateProduct(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, product)
}

// ListOffers GET /admin/offers
func (h *CatalogHandler) ListOffers(c *gin.Context) {
	list, err := h.offers.List(c.Request.Context())
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, list)
}

// CreateOffer POST /admin/offer
func (h *CatalogHandler) CreateOffer(c *gin.Context) {
	var req domain.OfferRequest
	if !bindJSON(c, &req) {
		return
	}
	offer, err := h.offers.Create(c.Request.Context(), &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, offer)
}

// UpdateOffer PUT /admin/offer/:offerId
func (h *CatalogHandler) UpdateOffer(c *gin.Context) {
	id, valid := pathID(c, "offerId")
	if !valid {
		return
	}
	var req domain.OfferRequest
	if !bindJSON(c, &req) {
		return
	}
	offer, err := h.offers.Update(c.Request.Context(), id, &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, offer)
}

// DeleteOffer DELETE /admin/offer/:offerId
func (h *CatalogHandler) DeleteOffer(c *gin.Context) {
	id, valid := pathID(c, "offerId")
	if !valid {
		return
	}
	if err := h.offers.Delete(c.Request.Context(), id); err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, gin.H{"deleted": true})
}
