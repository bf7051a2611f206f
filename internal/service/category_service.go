package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/repo"
)

// CategoryService 商品分类管理
type CategoryService interface {
	Create(ctx context.Context, req *domain.CreateCategoryRequest) (*domain.Category, error)
	Update(ctx context.Context, id int64, req *domain.UpdateCategoryRequest) (*domain.Category, error)
	// List activeOnly 为 true 时只返回上架分类（用户端）
	List(ctx context.Context, activeOnly bool) ([]*domain.Category, error)
}

type categoryService struct {
	categoryRepo repo.CategoryRepository
	logger       *zap.Logger
}

// NewCategoryService 创建分类服务实例
func NewCategoryService(categoryRepo repo.CategoryRepository, logger *zap.Logger) CategoryService {
	return &categoryService{categoryRepo: categoryRepo, logger: logger}
}

// Create 名称不区分大小写唯一
func (s *categoryService) Create(ctx context.Context, req *domain.CreateCategoryRequest) (*domain.Category, error) {
	name := strings.TrimSpace(req.Name)
	if err := s.ensureNameFree(ctx, name, 0); err != nil {
		return nil, err
	}

	c := &domain.Category{
		Name:        name,
		Description: req.Description,
		Status:      domain.CategoryStatusActive,
	}
	if err := s.categoryRepo.Create(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("category created", zap.Int64("category_id", c.ID), zap.String("name", c.Name))
	return c, nil
}

func (s *categoryService) Update(ctx context.Context, id int64, req *domain.UpdateCategoryRequest) (*domain.Category, error) {
	c, err := s.categoryRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get category: %w", err)
	}
	if c == nil {
		return nil, domain.ErrCategoryNotFound
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if !strings.EqualFold(name, c.Name) {
			if err := s.ensureNameFree(ctx, name, c.ID); err != nil {
				return nil, err
			}
		}
		c.Name = name
	}
	if req.Description != nil {
		c.Description = *req.Description
	}
	if req.Status != nil {
		c.Status = *req.Status
	}

	if err := s.categoryRepo.Update(ctx, c); err != nil {
		return nil, err
	}
	s.logger.Info("category updated", zap.Int64("category_id", c.ID), zap.String("status", string(c.Status)))
	return c, nil
}

func (s *categoryService) ensureNameFree(ctx context.Context, name string, selfID int64) error {
	existing, err := s.categoryRepo.GetByName(ctx, name)
	if err != nil {
		return fmt.Errorf("check category name: %w", err)
	}
	if existing != nil && existing.ID != selfID {
		return domain.ErrCategoryExists
	}
	return nil
}

func (s *categoryService) List(ctx context.Context, activeOnly bool) ([]*domain.Category, error) {
	categories, err := s.categoryRepo.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	if categories == nil {
		categories = []*domain.Category{}
	}
	return categories, nil
}
