package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/MorseWayne/storefront/internal/domain"
)

// WishlistRepository 收藏数据访问接口
type WishlistRepository interface {
	Add(ctx context.Context, item *domain.WishlistItem) error
	Remove(ctx context.Context, userID, productID int64) error
	ListByUser(ctx context.Context, userID int64) ([]*domain.WishlistItem, error)
}

type wishlistRepo struct {
	db *sql.DB
}

// NewWishlistRepository 创建收藏仓储实例
func NewWishlistRepository(db *sql.DB) WishlistRepository {
	return &wishlistRepo{db: db}
}

func (r *wishlistRepo) Add(ctx context.Context, item *domain.WishlistItem) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO wishlist_items (user_id, product_id) VALUES (?, ?)`, item.UserID, item.ProductID)
	if err != nil {
		if isDuplicateKey(err) {
			return domain.ErrWishlistDuplicate
		}
		return fmt.Errorf("failed to add wishlist item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	item.ID = id
	return nil
}

func (r *wishlistRepo) Remove(ctx context.Context, userID, productID int64) error {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM wishlist_items WHERE user_id = ? AND product_id = ?`, userID, productID)
	if err != nil {
		return fmt.Errorf("failed to remove wishlist item: %w", err)
	}
	return expectOneRow(result, domain.ErrWishlistNotFound)
}

func (r *wishlistRepo) ListByUser(ctx context.Context, userID int64) ([]*domain.WishlistItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, product_id, created_at
		FROM wishlist_items WHERE user_id = ? ORDER BY created_at DESC, id DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishlist: %w", err)
	}
	defer rows.Close()

	var out []*domain.WishlistItem
	for rows.Next() {
		item := &domain.WishlistItem{}
		if err := rows.Scan(&item.ID, &item.UserID, &item.ProductID, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan wishlist item: %w", err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
