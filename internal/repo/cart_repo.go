package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MorseWayne/storefront/internal/domain"
)

// CartRepository 购物车数据访问接口，每个用户一行，行项目以 JSON 存储
type CartRepository interface {
	// GetByUserID 不存在返回 (nil, nil)
	GetByUserID(ctx context.Context, userID int64) (*domain.Cart, error)
	// Save 不存在时创建，存在时整体覆盖
	Save(ctx context.Context, cart *domain.Cart) error
}

type cartRepo struct {
	db *sql.DB
}

// NewCartRepository 创建购物车仓储实例
func NewCartRepository(db *sql.DB) CartRepository {
	return &cartRepo{db: db}
}

func (r *cartRepo) GetByUserID(ctx context.Context, userID int64) (*domain.Cart, error) {
	return getCart(ctx, r.db, userID, false)
}

func (r *cartRepo) Save(ctx context.Context, cart *domain.Cart) error {
	return saveCart(ctx, r.db, cart)
}

func getCart(ctx context.Context, q querier, userID int64, forUpdate bool) (*domain.Cart, error) {
	query := `SELECT id, user_id, items, total_items, total_price, created_at, updated_at FROM carts WHERE user_id = ?`
	if forUpdate {
		query += ` FOR UPDATE`
	}

	cart := &domain.Cart{}
	var items []byte
	err := q.QueryRowContext(ctx, query, userID).Scan(
		&cart.ID, &cart.UserID, &items, &cart.TotalItems, &cart.TotalPrice, &cart.CreatedAt, &cart.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart: %w", err)
	}
	if err := unmarshalJSON(items, &cart.Items); err != nil {
		return nil, err
	}
	if cart.Items == nil {
		cart.Items = []*domain.CartItem{}
	}
	return cart, nil
}

func saveCart(ctx context.Context, q querier, cart *domain.Cart) error {
	if cart.Items == nil {
		cart.Items = []*domain.CartItem{}
	}
	items, err := marshalJSON(cart.Items)
	if err != nil {
		return err
	}

	result, err := q.ExecContext(ctx, `
		INSERT INTO carts (user_id, items, total_items, total_price)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE items = VALUES(items), total_items = VALUES(total_items), total_price = VALUES(total_price)
	`, cart.UserID, items, cart.TotalItems, cart.TotalPrice)
	if err != nil {
		return fmt.Errorf("failed to save cart: %w", err)
	}
	if cart.ID == 0 {
		if id, err := result.LastInsertId(); err == nil {
			cart.ID = id
		}
	}
	return nil
}
