package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionType 钱包流水类型
type TransactionType string

const (
	TransactionCredit TransactionType = "Credit"
	TransactionDebit  TransactionType = "Debit"
)

// Wallet 用户钱包，余额等于流水的有符号和
type Wallet struct {
	ID           int64                `json:"id"`
	UserID       int64                `json:"user_id"`
	Balance      decimal.Decimal      `json:"balance"`
	Transactions []*WalletTransaction `json:"transactions,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

// WalletTransaction 钱包流水，只追加不修改
type WalletTransaction struct {
	ID          int64           `json:"id"`
	WalletID    int64           `json:"wallet_id"`
	Type        TransactionType `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	OrderID     *int64          `json:"order_id,omitempty"`
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Signed 带符号金额
func (t *WalletTransaction) Signed() decimal.Decimal {
	if t.Type == TransactionDebit {
		return t.Amount.Neg()
	}
	return t.Amount
}

// WalletCredit 一次入账请求
type WalletCredit struct {
	UserID      int64
	Amount      decimal.Decimal
	OrderID     *int64
	Reference   string
	Description string
	// CreateIfMissing 为 false 时钱包不存在直接失败
	CreateIfMissing bool
}

// Validate 入账金额必须为正
func (c *WalletCredit) Validate() error {
	if !c.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	return nil
}
