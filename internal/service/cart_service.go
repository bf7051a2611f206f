package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/promotion"
	"github.com/MorseWayne/storefront/internal/repo"
)

// CartService 购物车。单价按加入时的最优优惠由服务端计算
type CartService interface {
	Get(ctx context.Context, userID int64) (*domain.Cart, error)
	AddItem(ctx context.Context, req *domain.AddToCartRequest) (*domain.Cart, error)
	UpdateQuantity(ctx context.Context, userID int64, itemID string, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, userID int64, req *domain.RemoveFromCartRequest) (*domain.Cart, error)
}

type cartService struct {
	cartRepo    repo.CartRepository
	productRepo repo.ProductRepository
	resolver    *promotion.Resolver
	logger      *zap.Logger
}

// NewCartService 创建购物车服务实例
func NewCartService(cartRepo repo.CartRepository, productRepo repo.ProductRepository, resolver *promotion.Resolver, logger *zap.Logger) CartService {
	return &cartService{
		cartRepo:    cartRepo,
		productRepo: productRepo,
		resolver:    resolver,
		logger:      logger,
	}
}

// Get 购物车不存在时返回空车。商品名称与图片优先取实时数据，商品已删除时显示 Unknown Product
func (s *cartService) Get(ctx context.Context, userID int64) (*domain.Cart, error) {
	cart, err := s.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if cart == nil {
		return &domain.Cart{UserID: userID, Items: []*domain.CartItem{}}, nil
	}
	if len(cart.Items) == 0 {
		return cart, nil
	}

	ids := make([]int64, 0, len(cart.Items))
	for _, item := range cart.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get cart products: %w", err)
	}
	byID := make(map[int64]*domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	for _, item := range cart.Items {
		p := byID[item.ProductID]
		if p == nil {
			if item.ProductName == "" {
				item.ProductName = domain.UnknownProductName
			}
			item.AvailableQuantity = 0
			continue
		}
		item.ProductName = p.Title
		if img := p.FirstImage(); img != "" {
			item.Image = img
		}
		if v := p.FindVariantByID(item.VariantID); v != nil {
			item.AvailableQuantity = v.Quantity
		}
	}
	return cart, nil
}

// AddItem 加入购物车
// 业务规则：
// 1. 商品须可售且规格存在
// 2. 合并后的数量不能超过规格库存
// 3. 商品、尺码、颜色（不区分大小写）都相同才合并为一行
func (s *cartService) AddItem(ctx context.Context, req *domain.AddToCartRequest) (*domain.Cart, error) {
	product, err := s.productRepo.GetByID(ctx, req.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product == nil {
		return nil, domain.ErrProductNotFound
	}
	if !product.IsAvailable() {
		return nil, domain.ErrProductUnavailable
	}
	variant := product.FindVariant(req.Variant.Size, req.Variant.Color)
	if variant == nil {
		return nil, domain.ErrVariantNotFound
	}

	cart, err := s.cartRepo.GetByUserID(ctx, req.UserID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if cart == nil {
		cart = &domain.Cart{UserID: req.UserID, Items: []*domain.CartItem{}}
	}

	quantity := req.Quantity
	if existing := cart.FindVariant(product.ID, variant.Size, variant.Color); existing != nil {
		quantity += existing.Quantity
	}
	if quantity > variant.Quantity {
		return nil, domain.ErrInsufficientStock
	}

	offer, err := s.resolver.ForProduct(ctx, product)
	if err != nil {
		return nil, err
	}

	cart.AddItem(&domain.CartItem{
		ID:                uuid.NewString(),
		ProductID:         product.ID,
		ProductName:       product.Title,
		Image:             product.FirstImage(),
		VariantID:         variant.ID,
		Size:              variant.Size,
		Color:             variant.Color,
		Quantity:          req.Quantity,
		Price:             promotion.UnitPrice(offer, variant),
		AvailableQuantity: variant.Quantity,
	})
	if err := s.cartRepo.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}

	s.logger.Info("cart item added",
		zap.Int64("user_id", req.UserID),
		zap.Int64("product_id", product.ID),
		zap.Int64("variant_id", variant.ID),
		zap.Int("quantity", req.Quantity),
	)
	return cart, nil
}

func (s *cartService) load(ctx context.Context, userID int64) (*domain.Cart, error) {
	cart, err := s.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if cart == nil {
		return nil, domain.ErrCartNotFound
	}
	return cart, nil
}

// UpdateQuantity 修改行数量，仍需满足库存
func (s *cartService) UpdateQuantity(ctx context.Context, userID int64, itemID string, quantity int) (*domain.Cart, error) {
	if quantity < 1 {
		return nil, domain.ErrInvalidQuantity
	}
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	item := cart.FindItem(itemID)
	if item == nil {
		return nil, domain.ErrCartItemNotFound
	}

	product, err := s.productRepo.GetByID(ctx, item.ProductID)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	if product != nil {
		if v := product.FindVariantByID(item.VariantID); v != nil {
			if quantity > v.Quantity {
				return nil, domain.ErrInsufficientStock
			}
			item.AvailableQuantity = v.Quantity
		}
	}

	item.Quantity = quantity
	cart.Recalculate()
	if err := s.cartRepo.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	return cart, nil
}

// RemoveItem 空的尺码或颜色匹配该商品的全部规格
func (s *cartService) RemoveItem(ctx context.Context, userID int64, req *domain.RemoveFromCartRequest) (*domain.Cart, error) {
	cart, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart.RemoveMatching(req.ProductID, req.Size, req.Color) == 0 {
		return nil, domain.ErrCartItemNotFound
	}
	if err := s.cartRepo.Save(ctx, cart); err != nil {
		return nil, fmt.Errorf("save cart: %w", err)
	}
	s.logger.Info("cart item removed", zap.Int64("user_id", userID), zap.Int64("product_id", req.ProductID))
	return cart, nil
}
