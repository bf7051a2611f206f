package service

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/clock"
	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/repo"
)

// CouponService 优惠券管理与校验
type CouponService interface {
	List(ctx context.Context, activeOnly bool) ([]*domain.Coupon, error)
	Create(ctx context.Context, req *domain.CouponRequest) (*domain.Coupon, error)
	Update(ctx context.Context, id int64, req *domain.CouponRequest) (*domain.Coupon, error)
	Delete(ctx context.Context, id int64) error

	// Preview 以当前购物车金额预览折扣，不记录使用
	Preview(ctx context.Context, userID int64, req *domain.ApplyCouponRequest) (*domain.CouponPreview, error)
	// Validate 下单时校验并返回券及折扣额
	Validate(ctx context.Context, userID int64, code string, amount decimal.Decimal) (*domain.Coupon, decimal.Decimal, error)
}

type couponService struct {
	couponRepo repo.CouponRepository
	cartRepo   repo.CartRepository
	clock      clock.Clock
	logger     *zap.Logger
}

// NewCouponService 创建优惠券服务实例
func NewCouponService(couponRepo repo.CouponRepository, cartRepo repo.CartRepository, clk clock.Clock, logger *zap.Logger) CouponService {
	return &couponService{
		couponRepo: couponRepo,
		cartRepo:   cartRepo,
		clock:      clk,
		logger:     logger,
	}
}

func (s *couponService) List(ctx context.Context, activeOnly bool) ([]*domain.Coupon, error) {
	coupons, err := s.couponRepo.List(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list coupons: %w", err)
	}
	if !activeOnly {
		if coupons == nil {
			coupons = []*domain.Coupon{}
		}
		return coupons, nil
	}

	// 用户端额外过滤已过期的券
	now := s.clock.Now()
	out := make([]*domain.Coupon, 0, len(coupons))
	for _, c := range coupons {
		if c.CheckUsable(now, c.MinPurchase) == nil {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *couponService) Create(ctx context.Context, req *domain.CouponRequest) (*domain.Coupon, error) {
	coupon, err := req.ToCoupon(s.clock.Now().Location())
	if err != nil {
		return nil, err
	}
	existing, err := s.couponRepo.GetByCode(ctx, coupon.Code)
	if err != nil {
		return nil, fmt.Errorf("check coupon code: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrCouponExists
	}
	if err := s.couponRepo.Create(ctx, coupon); err != nil {
		return nil, err
	}
	s.logger.Info("coupon created", zap.Int64("coupon_id", coupon.ID), zap.String("code", coupon.Code))
	return coupon, nil
}

func (s *couponService) Update(ctx context.Context, id int64, req *domain.CouponRequest) (*domain.Coupon, error) {
	existing, err := s.couponRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get coupon: %w", err)
	}
	if existing == nil {
		return nil, domain.ErrCouponNotFound
	}
	coupon, err := req.ToCoupon(s.clock.Now().Location())
	if err != nil {
		return nil, err
	}
	if coupon.Code != existing.Code {
		other, err := s.couponRepo.GetByCode(ctx, coupon.Code)
		if err != nil {
			return nil, fmt.Errorf("check coupon code: %w", err)
		}
		if other != nil {
			return nil, domain.ErrCouponExists
		}
	}
	coupon.ID = existing.ID
	coupon.CreatedAt = existing.CreatedAt
	if err := s.couponRepo.Update(ctx, coupon); err != nil {
		return nil, err
	}
	s.logger.Info("coupon updated", zap.Int64("coupon_id", coupon.ID))
	return coupon, nil
}

func (s *couponService) Delete(ctx context.Context, id int64) error {
	if err := s.couponRepo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("coupon deleted", zap.Int64("coupon_id", id))
	return nil
}

func (s *couponService) Validate(ctx context.Context, userID int64, code string, amount decimal.Decimal) (*domain.Coupon, decimal.Decimal, error) {
	coupon, err := s.couponRepo.GetByCode(ctx, domain.NormalizeCouponCode(code))
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("get coupon: %w", err)
	}
	if coupon == nil {
		return nil, decimal.Zero, domain.ErrCouponNotFound
	}
	if err := coupon.CheckUsable(s.clock.Now(), amount); err != nil {
		return nil, decimal.Zero, err
	}
	used, err := s.couponRepo.HasUsed(ctx, coupon.ID, userID)
	if err != nil {
		return nil, decimal.Zero, fmt.Errorf("check coupon usage: %w", err)
	}
	if used {
		return nil, decimal.Zero, domain.ErrCouponUsed
	}
	return coupon, coupon.Discount(amount), nil
}

func (s *couponService) Preview(ctx context.Context, userID int64, req *domain.ApplyCouponRequest) (*domain.CouponPreview, error) {
	cart, err := s.cartRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get cart: %w", err)
	}
	if cart == nil || len(cart.Items) == 0 {
		return nil, domain.ErrCartNotFound
	}

	coupon, discount, err := s.Validate(ctx, userID, req.Code, cart.TotalPrice)
	if err != nil {
		return nil, err
	}
	return &domain.CouponPreview{
		Code:     coupon.Code,
		Subtotal: cart.TotalPrice,
		Discount: discount,
		Total:    cart.TotalPrice.Sub(discount),
	}, nil
}
