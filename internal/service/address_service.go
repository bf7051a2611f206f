package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/repo"
)

// AddressService 收货地址管理，所有操作限定在当前用户范围内
type AddressService interface {
	List(ctx context.Context, userID int64) ([]*domain.Address, error)
	Create(ctx context.Context, userID int64, req *domain.AddressRequest) (*domain.Address, error)
	Update(ctx context.Context, userID, addressID int64, req *domain.AddressRequest) (*domain.Address, error)
	Delete(ctx context.Context, userID, addressID int64) error
}

type addressService struct {
	addressRepo repo.AddressRepository
	logger      *zap.Logger
}

// NewAddressService 创建地址服务实例
func NewAddressService(addressRepo repo.AddressRepository, logger *zap.Logger) AddressService {
	return &addressService{addressRepo: addressRepo, logger: logger}
}

func (s *addressService) List(ctx context.Context, userID int64) ([]*domain.Address, error) {
	addrs, err := s.addressRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}
	if addrs == nil {
		addrs = []*domain.Address{}
	}
	return addrs, nil
}

// Create 第一个地址自动成为默认地址
func (s *addressService) Create(ctx context.Context, userID int64, req *domain.AddressRequest) (*domain.Address, error) {
	existing, err := s.addressRepo.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list addresses: %w", err)
	}

	addr := &domain.Address{UserID: userID}
	req.Apply(addr)
	if len(existing) == 0 {
		addr.IsDefault = true
	}
	if err := s.addressRepo.Create(ctx, addr); err != nil {
		return nil, fmt.Errorf("create address: %w", err)
	}
	s.logger.Info("address created", zap.Int64("user_id", userID), zap.Int64("address_id", addr.ID))
	return addr, nil
}

func (s *addressService) Update(ctx context.Context, userID, addressID int64, req *domain.AddressRequest) (*domain.Address, error) {
	addr, err := s.addressRepo.GetByID(ctx, userID, addressID)
	if err != nil {
		return nil, fmt.Errorf("get address: %w", err)
	}
	if addr == nil {
		return nil, domain.ErrAddressNotFound
	}
	req.Apply(addr)
	if err := s.addressRepo.Update(ctx, addr); err != nil {
		if errors.Is(err, domain.ErrAddressNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update address: %w", err)
	}
	return addr, nil
}

// Delete 历史订单保存了地址快照，删除不影响已有订单
func (s *addressService) Delete(ctx context.Context, userID, addressID int64) error {
	if err := s.addressRepo.Delete(ctx, userID, addressID); err != nil {
		if errors.Is(err, domain.ErrAddressNotFound) {
			return err
		}
		return fmt.Errorf("delete address: %w", err)
	}
	s.logger.Info("address deleted", zap.Int64("user_id", userID), zap.Int64("address_id", addressID))
	return nil
}
