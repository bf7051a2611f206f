package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/repo"
)

// OfferService 优惠活动管理
type OfferService interface {
	List(ctx context.Context) ([]*domain.Offer, error)
	Create(ctx context.Context, req *domain.OfferRequest) (*domain.Offer, error)
	Update(ctx context.Context, id int64, req *domain.OfferRequest) (*domain.Offer, error)
	Delete(ctx context.Context, id int64) error
}

type offerService struct {
	offerRepo    repo.OfferRepository
	categoryRepo repo.CategoryRepository
	loc          *time.Location
	logger       *zap.Logger
}

// NewOfferService 创建优惠服务实例，日期按 loc 解析
func NewOfferService(offerRepo repo.OfferRepository, categoryRepo repo.CategoryRepository, loc *time.Location, logger *zap.Logger) OfferService {
	return &offerService{
		offerRepo:    offerRepo,
		categoryRepo: categoryRepo,
		loc:          loc,
		logger:       logger,
	}
}

func (s *offerService) List(ctx context.Context) ([]*domain.Offer, error) {
	offers, err := s.offerRepo.ListAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list offers: %w", err)
	}
	if offers == nil {
		offers = []*domain.Offer{}
	}
	return offers, nil
}

func (s *offerService) build(ctx context.Context, req *domain.OfferRequest) (*domain.Offer, error) {
	offer, err := req.ToOffer(s.loc)
	if err != nil {
		return nil, err
	}
	if offer.CategoryID != nil {
		c, err := s.categoryRepo.GetByID(ctx, *offer.CategoryID)
		if err != nil {
			return nil, fmt.Errorf("get category: %w", err)
		}
		if c == nil {
			return nil, domain.ErrCategoryNotFound
		}
	}
	return offer, nil
}

func (s *offerService) Create(ctx context.Context, req *domain.OfferRequest) (*domain.Offer, error) {
	offer, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}
	if err := s.offerRepo.Create(ctx, offer); err != nil {
		return nil, fmt.Errorf("create offer: %w", err)
	}
	s.logger.Info("offer created",
		zap.Int64("offer_id", offer.ID),
		zap.String("type", string(offer.Type())),
		zap.String("discount", offer.DiscountPercentage.String()),
	)
	return offer, nil
}

func (s *offerService) Update(ctx context.Context, id int64, req *domain.OfferRequest) (*domain.Offer, error) {
	existing, err := s.offerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get offer: %w", err)
	}
	if existing == nil {
		return nil, domain.ErrOfferNotFound
	}
	offer, err := s.build(ctx, req)
	if err != nil {
		return nil, err
	}
	offer.ID = existing.ID
	offer.CreatedAt = existing.CreatedAt
	if err := s.offerRepo.Update(ctx, offer); err != nil {
		return nil, err
	}
	s.logger.Info("offer updated", zap.Int64("offer_id", offer.ID))
	return offer, nil
}

func (s *offerService) Delete(ctx context.Context, id int64) error {
	if err := s.offerRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("offer deleted", zap.Int64("offer_id", id))
	return nil
}
