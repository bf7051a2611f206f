package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/promotion"
	"github.com/MorseWayne/storefront/internal/repo"
)

// WishlistService 收藏夹
type WishlistService interface {
	List(ctx context.Context, userID int64) ([]*domain.WishlistEntry, error)
	Add(ctx context.Context, userID, productID int64) error
	Remove(ctx context.Context, userID, productID int64) error
}

type wishlistService struct {
	wishlistRepo repo.WishlistRepository
	productRepo  repo.ProductRepository
	resolver     *promotion.Resolver
	logger       *zap.Logger
}

// NewWishlistService 创建收藏服务实例
func NewWishlistService(wishlistRepo repo.WishlistRepository, productRepo repo.ProductRepository, resolver *promotion.Resolver, logger *zap.Logger) WishlistService {
	return &wishlistService{
		wishlistRepo: wishlistRepo,
		productRepo:  productRepo,
		resolver:     resolver,
		logger:       logger,
	}
}

// List 附带当前优惠价，已删除的商品显示为 Unknown Product
func (s *wishlistService) List(ctx context.Context, userID int64) ([]*domain.WishlistEntry, error) {
	items, err := s.wishlistRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list wishlist: %w", err)
	}
	entries := make([]*domain.WishlistEntry, 0, len(items))
	if len(items) == 0 {
		return entries, nil
	}

	ids := make([]int64, len(items))
	for i, item := range items {
		ids[i] = item.ProductID
	}
	products, err := s.productRepo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get wishlist products: %w", err)
	}
	offers, err := s.resolver.ForProducts(ctx, products)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	for _, item := range items {
		entry := &domain.WishlistEntry{ProductID: item.ProductID, AddedAt: item.CreatedAt}
		p := byID[item.ProductID]
		if p == nil {
			entry.Title = domain.UnknownProductName
			entries = append(entries, entry)
			continue
		}
		entry.Title = p.Title
		entry.Image = p.FirstImage()
		entry.Price = p.Price
		entry.OfferPrice = p.Price
		if po := offers[p.ID]; po != nil {
			entry.OfferPrice = po.DiscountedPrice
		}
		entry.InStock = p.IsAvailable() && p.TotalStock() > 0
		entries = append(entries, entry)
	}
	return entries, nil
}

func (s *wishlistService) Add(ctx context.Context, userID, productID int64) error {
	p, err := s.productRepo.GetByID(ctx, productID)
	if err != nil {
		return fmt.Errorf("get product: %w", err)
	}
	if p == nil {
		return domain.ErrProductNotFound
	}
	if err := s.wishlistRepo.Add(ctx, &domain.WishlistItem{UserID: userID, ProductID: productID}); err != nil {
		if errors.Is(err, domain.ErrWishlistDuplicate) {
			return err
		}
		return fmt.Errorf("add wishlist: %w", err)
	}
	return nil
}

func (s *wishlistService) Remove(ctx context.Context, userID, productID int64) error {
	return s.wishlistRepo.Remove(ctx, userID, productID)
}
