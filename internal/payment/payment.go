// Package payment 对接支付网关：创建网关订单并校验支付回调签名。
package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/config"
	"github.com/MorseWayne/storefront/internal/domain"
)

// ErrGatewayUnavailable 网关调用失败
var ErrGatewayUnavailable = errors.New("payment gateway unavailable")

// Gateway 支付网关
type Gateway interface {
	// CreateOrder 以最小货币单位创建网关订单，receipt 为本地单据号
	CreateOrder(ctx context.Context, amount decimal.Decimal, receipt string) (*domain.GatewayOrder, error)
	// VerifySignature 校验 "orderId|paymentId" 的 HMAC-SHA256 签名
	VerifySignature(gatewayOrderID, paymentID, signature string) bool
}

// MinorUnits 金额转换为最小货币单位（分）
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// Sign 计算签名，十六进制小写
func Sign(secret, gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

func verify(secret, gatewayOrderID, paymentID, signature string) bool {
	expected, err := hex.DecodeString(Sign(secret, gatewayOrderID, paymentID))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}

// Razorpay 基于 razorpay-go 的网关实现
type Razorpay struct {
	client   *razorpay.Client
	keyID    string
	secret   string
	currency string
	logger   *zap.Logger
}

// NewRazorpay 创建 Razorpay 网关
func NewRazorpay(cfg config.PaymentConfig, logger *zap.Logger) *Razorpay {
	return &Razorpay{
		client:   razorpay.NewClient(cfg.KeyID, cfg.KeySecret),
		keyID:    cfg.KeyID,
		secret:   cfg.KeySecret,
		currency: cfg.Currency,
		logger:   logger,
	}
}

// CreateOrder SDK 不接收 context，超时依赖 SDK 自身的 HTTP 客户端
func (r *Razorpay) CreateOrder(ctx context.Context, amount decimal.Decimal, receipt string) (*domain.GatewayOrder, error) {
	minor := MinorUnits(amount)
	body, err := r.client.Order.Create(map[string]interface{}{
		"amount":   minor,
		"currency": r.currency,
		"receipt":  receipt,
	}, nil)
	if err != nil {
		r.logger.Error("failed to create gateway order",
			zap.String("receipt", receipt),
			zap.Int64("amount", minor),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	id, _ := body["id"].(string)
	if id == "" {
		return nil, fmt.Errorf("%w: response without order id", ErrGatewayUnavailable)
	}
	return &domain.GatewayOrder{
		ID:       id,
		Amount:   minor,
		Currency: r.currency,
		KeyID:    r.keyID,
	}, nil
}

// VerifySignature 校验回调签名
func (r *Razorpay) VerifySignature(gatewayOrderID, paymentID, signature string) bool {
	return verify(r.secret, gatewayOrderID, paymentID, signature)
}
