package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MorseWayne/storefront/internal/database"
	"github.com/MorseWayne/storefront/internal/domain"
)

// WalletRepository 钱包数据访问接口。余额与流水总在同一事务中写入
type WalletRepository interface {
	// GetByUserID 查询钱包及其流水，不存在返回 (nil, nil)
	GetByUserID(ctx context.Context, userID int64) (*domain.Wallet, error)
	Create(ctx context.Context, userID int64) (*domain.Wallet, error)
	Credit(ctx context.Context, credit *domain.WalletCredit) (*domain.WalletTransaction, error)
}

type walletRepo struct {
	db *sql.DB
}

// NewWalletRepository 创建钱包仓储实例
func NewWalletRepository(db *sql.DB) WalletRepository {
	return &walletRepo{db: db}
}

func (r *walletRepo) GetByUserID(ctx context.Context, userID int64) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, balance, created_at, updated_at
		FROM wallets WHERE user_id = ?
	`, userID).Scan(&w.ID, &w.UserID, &w.Balance, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, wallet_id, type, amount, order_id, reference, description, created_at
		FROM wallet_transactions WHERE wallet_id = ? ORDER BY id DESC
	`, w.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to query wallet transactions: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t := &domain.WalletTransaction{}
		var orderID sql.NullInt64
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Type, &t.Amount, &orderID, &t.Reference, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wallet transaction: %w", err)
		}
		if orderID.Valid {
			id := orderID.Int64
			t.OrderID = &id
		}
		w.Transactions = append(w.Transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate wallet transactions: %w", err)
	}
	return w, nil
}

func (r *walletRepo) Create(ctx context.Context, userID int64) (*domain.Wallet, error) {
	id, err := createWallet(ctx, r.db, userID)
	if err != nil {
		return nil, err
	}
	return &domain.Wallet{ID: id, UserID: userID}, nil
}

// Credit 单独执行一次入账
func (r *walletRepo) Credit(ctx context.Context, credit *domain.WalletCredit) (*domain.WalletTransaction, error) {
	var txn *domain.WalletTransaction
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		txn, err = creditWallet(ctx, tx, credit)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

func createWallet(ctx context.Context, q querier, userID int64) (int64, error) {
	result, err := q.ExecContext(ctx, `INSERT INTO wallets (user_id, balance) VALUES (?, 0)`, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to create wallet: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get wallet id: %w", err)
	}
	return id, nil
}

// creditWallet 在事务内锁定钱包行，先追加流水再更新余额
func creditWallet(ctx context.Context, tx *sql.Tx, credit *domain.WalletCredit) (*domain.WalletTransaction, error) {
	if err := credit.Validate(); err != nil {
		return nil, err
	}

	var walletID int64
	err := tx.QueryRowContext(ctx, `SELECT id FROM wallets WHERE user_id = ? FOR UPDATE`, credit.UserID).Scan(&walletID)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if !credit.CreateIfMissing {
			return nil, domain.ErrWalletNotFound
		}
		if walletID, err = createWallet(ctx, tx, credit.UserID); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("failed to lock wallet: %w", err)
	}

	var orderID any
	if credit.OrderID != nil {
		orderID = *credit.OrderID
	}
	result, err := tx.ExecContext(ctx, `
		INSERT INTO wallet_transactions (wallet_id, type, amount, order_id, reference, description)
		VALUES (?, ?, ?, ?, ?, ?)
	`, walletID, string(domain.TransactionCredit), credit.Amount, orderID, credit.Reference, credit.Description)
	if err != nil {
		return nil, fmt.Errorf("failed to insert wallet transaction: %w", err)
	}
	txnID, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet transaction id: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE wallets SET balance = balance + ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		credit.Amount, walletID); err != nil {
		return nil, fmt.Errorf("failed to update wallet balance: %w", err)
	}

	return &domain.WalletTransaction{
		ID:          txnID,
		WalletID:    walletID,
		Type:        domain.TransactionCredit,
		Amount:      credit.Amount,
		OrderID:     credit.OrderID,
		Reference:   credit.Reference,
		Description: credit.Description,
	}, nil
}
