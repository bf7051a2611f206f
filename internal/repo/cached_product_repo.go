// Package repo 提供带缓存的商品仓储实现
package repo

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/cache"
	"github.com/MorseWayne/storefront/internal/domain"
)

// CachedProductRepository 带缓存的商品仓储。只缓存按 ID 读取的商品详情，
// 列表参数组合太多不缓存。缓存失败只记录日志，不影响读写
type CachedProductRepository struct {
	repo   ProductRepository
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// NewCachedProductRepository 创建带缓存的商品仓储
func NewCachedProductRepository(repo ProductRepository, c cache.Cache, ttl time.Duration, logger *zap.Logger) ProductRepository {
	return &CachedProductRepository{
		repo:   repo,
		cache:  c,
		ttl:    ttl,
		logger: logger,
	}
}

// Create 创建商品
func (r *CachedProductRepository) Create(ctx context.Context, product *domain.Product) error {
	if err := r.repo.Create(ctx, product); err != nil {
		return err
	}
	r.evict(ctx, product.ID)
	return nil
}

// GetByID 根据ID获取商品（带缓存）
func (r *CachedProductRepository) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	var product domain.Product
	if err := r.cache.Get(ctx, productCacheKey(id), &product); err == nil {
		return &product, nil
	}

	// 缓存未命中，从数据库获取
	result, err := r.repo.GetByID(ctx, id)
	if err != nil || result == nil {
		return result, err
	}

	r.store(ctx, result)
	return result, nil
}

// GetByTitle 只用于唯一性校验，不缓存
func (r *CachedProductRepository) GetByTitle(ctx context.Context, title string) (*domain.Product, error) {
	return r.repo.GetByTitle(ctx, title)
}

// Update 更新商品（清除相关缓存）
func (r *CachedProductRepository) Update(ctx context.Context, product *domain.Product) error {
	if err := r.repo.Update(ctx, product); err != nil {
		return err
	}
	r.evict(ctx, product.ID)
	return nil
}

// List 获取商品列表（不缓存）
func (r *CachedProductRepository) List(ctx context.Context, req *domain.ProductListRequest) ([]*domain.Product, int64, error) {
	return r.repo.List(ctx, req)
}

// GetByIDs 批量获取商品（部分缓存），结果按 ID 去重
func (r *CachedProductRepository) GetByIDs(ctx context.Context, ids []int64) ([]*domain.Product, error) {
	var products []*domain.Product
	var missingIDs []int64
	seen := make(map[int64]struct{}, len(ids))

	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}

		var product domain.Product
		if err := r.cache.Get(ctx, productCacheKey(id), &product); err == nil {
			products = append(products, &product)
		} else {
			missingIDs = append(missingIDs, id)
		}
	}

	if len(missingIDs) == 0 {
		return products, nil
	}

	dbProducts, err := r.repo.GetByIDs(ctx, missingIDs)
	if err != nil {
		return nil, err
	}
	for _, product := range dbProducts {
		r.store(ctx, product)
	}
	return append(products, dbProducts...), nil
}

// Invalidate 清理库存变化的商品缓存
func (r *CachedProductRepository) Invalidate(ctx context.Context, ids ...int64) error {
	r.evict(ctx, ids...)
	return r.repo.Invalidate(ctx, ids...)
}

func (r *CachedProductRepository) store(ctx context.Context, product *domain.Product) {
	if err := r.cache.Set(ctx, productCacheKey(product.ID), product, r.ttl); err != nil {
		r.logger.Warn("failed to cache product", zap.Int64("product_id", product.ID), zap.Error(err))
	}
}

func (r *CachedProductRepository) evict(ctx context.Context, ids ...int64) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = productCacheKey(id)
	}
	if err := r.cache.Del(ctx, keys...); err != nil {
		r.logger.Warn("failed to evict product cache", zap.Int64s("product_ids", ids), zap.Error(err))
	}
}

func productCacheKey(id int64) string {
	return fmt.Sprintf("product:id:%d", id)
}
