package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/MorseWayne/storefront/internal/domain"
)

// Fake 本地网关，用于测试与未配置支付密钥的开发环境
type Fake struct {
	Secret string
	// Err 非空时 CreateOrder 返回该错误
	Err error

	mu     sync.Mutex
	seq    int
	Orders []*domain.GatewayOrder
}

// NewFake 创建本地网关
func NewFake(secret string) *Fake {
	return &Fake{Secret: secret}
}

func (f *Fake) CreateOrder(ctx context.Context, amount decimal.Decimal, receipt string) (*domain.GatewayOrder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.seq++
	o := &domain.GatewayOrder{
		ID:       fmt.Sprintf("order_fake%06d", f.seq),
		Amount:   MinorUnits(amount),
		Currency: "INR",
		KeyID:    "fake",
	}
	f.Orders = append(f.Orders, o)
	return o, nil
}

func (f *Fake) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	return verify(f.Secret, gatewayOrderID, paymentID, signature)
}
