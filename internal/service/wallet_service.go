package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/repo"
)

// WalletService 钱包查询。入账只发生在订单取消与退货流程中
type WalletService interface {
	// Get 钱包不存在时返回 nil 而不是错误
	Get(ctx context.Context, userID int64) (*domain.Wallet, error)
}

type walletService struct {
	walletRepo repo.WalletRepository
	logger     *zap.Logger
}

// NewWalletService 创建钱包服务实例
func NewWalletService(walletRepo repo.WalletRepository, logger *zap.Logger) WalletService {
	return &walletService{walletRepo: walletRepo, logger: logger}
}

func (s *walletService) Get(ctx context.Context, userID int64) (*domain.Wallet, error) {
	w, err := s.walletRepo.GetByUserID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to get wallet", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	if w != nil && w.Transactions == nil {
		w.Transactions = []*domain.WalletTransaction{}
	}
	return w, nil
}
