package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/promotion"
	"github.com/MorseWayne/storefront/internal/repo"
)

// ProductService 定义商品业务逻辑接口
type ProductService interface {
	// 商品管理
	CreateProduct(ctx context.Context, req *domain.CreateProductRequest) (*domain.Product, error)
	UpdateProduct(ctx context.Context, id int64, req *domain.UpdateProductRequest) (*domain.Product, error)
	ListProducts(ctx context.Context, req *domain.ProductListRequest) (*domain.ProductListResponse, error)

	// 商城展示，附带当前最优优惠
	ListStorefront(ctx context.Context, req *domain.ProductListRequest) (*domain.ProductListResponse, error)
	GetStorefront(ctx context.Context, id int64) (*domain.ProductView, error)
}

// productService 实现ProductService接口
type productService struct {
	productRepo  repo.ProductRepository
	categoryRepo repo.CategoryRepository
	resolver     *promotion.Resolver
	logger       *zap.Logger
}

// NewProductService 创建商品服务实例
func NewProductService(
	productRepo repo.ProductRepository,
	categoryRepo repo.CategoryRepository,
	resolver *promotion.Resolver,
	logger *zap.Logger,
) ProductService {
	return &productService{
		productRepo:  productRepo,
		categoryRepo: categoryRepo,
		resolver:     resolver,
		logger:       logger,
	}
}

// CreateProduct 创建商品
// 业务规则：
// 1. 标题不区分大小写唯一
// 2. 分类必须存在
// 3. 规格价格为零时沿用商品价格
func (s *productService) CreateProduct(ctx context.Context, req *domain.CreateProductRequest) (*domain.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	title := strings.TrimSpace(req.Title)
	if err := s.ensureTitleFree(ctx, title, 0); err != nil {
		return nil, err
	}
	if err := s.ensureCategory(ctx, req.CategoryID); err != nil {
		return nil, err
	}

	product := &domain.Product{
		Title:       title,
		Description: req.Description,
		Price:       req.Price,
		CategoryID:  req.CategoryID,
		Images:      req.Images,
		Status:      domain.ProductStatusActive,
	}
	for i := range req.Variants {
		v := req.Variants[i].ToVariant(req.Price)
		v.ID = 0
		product.Variants = append(product.Variants, v)
	}

	if err := s.productRepo.Create(ctx, product); err != nil {
		if errors.Is(err, domain.ErrProductExists) || domain.KindOf(err) == domain.KindValidation {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("product created",
		zap.Int64("product_id", product.ID),
		zap.String("title", product.Title),
		zap.Int("variants", len(product.Variants)),
	)
	return product, nil
}

// UpdateProduct 更新商品，规格按 ID 合并
func (s *productService) UpdateProduct(ctx context.Context, id int64, req *domain.UpdateProductRequest) (*domain.Product, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}

	if req.Title != nil {
		title := strings.TrimSpace(*req.Title)
		if !strings.EqualFold(title, product.Title) {
			if err := s.ensureTitleFree(ctx, title, product.ID); err != nil {
				return nil, err
			}
		}
		product.Title = title
	}
	if req.Description != nil {
		product.Description = *req.Description
	}
	if req.Price != nil {
		product.Price = *req.Price
	}
	if req.CategoryID != nil && *req.CategoryID != product.CategoryID {
		if err := s.ensureCategory(ctx, *req.CategoryID); err != nil {
			return nil, err
		}
		product.CategoryID = *req.CategoryID
	}
	if req.Images != nil {
		product.Images = req.Images
	}
	if req.Status != nil {
		product.Status = *req.Status
	}

	for i := range req.Variants {
		v := req.Variants[i].ToVariant(product.Price)
		if v.ID == 0 {
			if product.FindVariant(v.Size, v.Color) != nil {
				return nil, domain.Invalid("duplicate variant " + v.Size + "/" + v.Color)
			}
			product.Variants = append(product.Variants, v)
			continue
		}
		existing := product.FindVariantByID(v.ID)
		if existing == nil {
			return nil, domain.ErrVariantNotFound
		}
		v.ProductID = existing.ProductID
		*existing = *v
	}

	if err := s.productRepo.Update(ctx, product); err != nil {
		switch {
		case errors.Is(err, domain.ErrProductExists), errors.Is(err, domain.ErrProductNotFound),
			errors.Is(err, domain.ErrVariantNotFound), domain.KindOf(err) == domain.KindValidation:
			return nil, err
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	s.logger.Info("product updated", zap.Int64("product_id", product.ID))
	return product, nil
}

func (s *productService) ensureTitleFree(ctx context.Context, title string, selfID int64) error {
	existing, err := s.productRepo.GetByTitle(ctx, title)
	if err != nil {
		return fmt.Errorf("failed to check title uniqueness: %w", err)
	}
	if existing != nil && existing.ID != selfID {
		return domain.ErrProductExists
	}
	return nil
}

func (s *productService) ensureCategory(ctx context.Context, categoryID int64) error {
	c, err := s.categoryRepo.GetByID(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("failed to get category: %w", err)
	}
	if c == nil {
		return domain.ErrCategoryNotFound
	}
	return nil
}

// ListProducts 管理端列表，包含下架商品
func (s *productService) ListProducts(ctx context.Context, req *domain.ProductListRequest) (*domain.ProductListResponse, error) {
	req.Listed = false
	return s.list(ctx, req)
}

// ListStorefront 商城列表，只包含上架商品及上架分类
func (s *productService) ListStorefront(ctx context.Context, req *domain.ProductListRequest) (*domain.ProductListResponse, error) {
	req.Listed = true
	return s.list(ctx, req)
}

func (s *productService) list(ctx context.Context, req *domain.ProductListRequest) (*domain.ProductListResponse, error) {
	req.Page, req.PageSize = domain.NormalizePage(req.Page, req.PageSize)

	products, total, err := s.productRepo.List(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	offers, err := s.resolver.ForProducts(ctx, products)
	if err != nil {
		return nil, err
	}

	views := make([]*domain.ProductView, 0, len(products))
	for _, p := range products {
		views = append(views, &domain.ProductView{Product: p, Offer: offers[p.ID]})
	}
	return &domain.ProductListResponse{
		Products: views,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

// GetStorefront 商品详情。下架商品或所属分类下架时视为不存在
func (s *productService) GetStorefront(ctx context.Context, id int64) (*domain.ProductView, error) {
	product, err := s.productRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if product == nil || !product.IsAvailable() {
		return nil, domain.ErrProductNotFound
	}
	category, err := s.categoryRepo.GetByID(ctx, product.CategoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	if category == nil || !category.IsActive() {
		return nil, domain.ErrProductNotFound
	}

	offer, err := s.resolver.ForProduct(ctx, product)
	if err != nil {
		return nil, err
	}
	return &domain.ProductView{Product: product, Offer: offer}, nil
}
