package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MorseWayne/storefront/internal/database"
	"github.com/MorseWayne/storefront/internal/domain"
)

// AddressRepository 收货地址数据访问接口，所有操作都按用户隔离
type AddressRepository interface {
	Create(ctx context.Context, addr *domain.Address) error
	GetByID(ctx context.Context, userID, id int64) (*domain.Address, error)
	ListByUser(ctx context.Context, userID int64) ([]*domain.Address, error)
	Update(ctx context.Context, addr *domain.Address) error
	Delete(ctx context.Context, userID, id int64) error
}

type addressRepo struct {
	db *sql.DB
}

// NewAddressRepository 创建地址仓储实例
func NewAddressRepository(db *sql.DB) AddressRepository {
	return &addressRepo{db: db}
}

const addressColumns = `id, user_id, name, phone, line1, line2, city, state, postal_code, country, is_default, created_at, updated_at`

func scanAddress(row interface{ Scan(...any) error }) (*domain.Address, error) {
	a := &domain.Address{}
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Phone, &a.Line1, &a.Line2, &a.City, &a.State,
		&a.PostalCode, &a.Country, &a.IsDefault, &a.CreatedAt, &a.UpdatedAt)
	return a, err
}

// clearDefault 一个用户只有一个默认地址
func clearDefault(ctx context.Context, q querier, userID int64) error {
	if _, err := q.ExecContext(ctx, `UPDATE addresses SET is_default = FALSE WHERE user_id = ? AND is_default = TRUE`, userID); err != nil {
		return fmt.Errorf("failed to clear default address: %w", err)
	}
	return nil
}

func (r *addressRepo) Create(ctx context.Context, addr *domain.Address) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if addr.IsDefault {
			if err := clearDefault(ctx, tx, addr.UserID); err != nil {
				return err
			}
		}
		result, err := tx.ExecContext(ctx, `
			INSERT INTO addresses (user_id, name, phone, line1, line2, city, state, postal_code, country, is_default)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, addr.UserID, addr.Name, addr.Phone, addr.Line1, addr.Line2, addr.City, addr.State,
			addr.PostalCode, addr.Country, addr.IsDefault)
		if err != nil {
			return fmt.Errorf("failed to create address: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		addr.ID = id
		return nil
	})
}

func (r *addressRepo) GetByID(ctx context.Context, userID, id int64) (*domain.Address, error) {
	query := fmt.Sprintf(`SELECT %s FROM addresses WHERE id = ? AND user_id = ?`, addressColumns)
	a, err := scanAddress(r.db.QueryRowContext(ctx, query, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	return a, nil
}

func (r *addressRepo) ListByUser(ctx context.Context, userID int64) ([]*domain.Address, error) {
	query := fmt.Sprintf(`SELECT %s FROM addresses WHERE user_id = ? ORDER BY is_default DESC, id`, addressColumns)
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}
	defer rows.Close()

	var out []*domain.Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan address: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *addressRepo) Update(ctx context.Context, addr *domain.Address) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if addr.IsDefault {
			if err := clearDefault(ctx, tx, addr.UserID); err != nil {
				return err
			}
		}
		result, err := tx.ExecContext(ctx, `
			UPDATE addresses
			SET name = ?, phone = ?, line1 = ?, line2 = ?, city = ?, state = ?, postal_code = ?, country = ?, is_default = ?
			WHERE id = ? AND user_id = ?
		`, addr.Name, addr.Phone, addr.Line1, addr.Line2, addr.City, addr.State, addr.PostalCode,
			addr.Country, addr.IsDefault, addr.ID, addr.UserID)
		if err != nil {
			return fmt.Errorf("failed to update address: %w", err)
		}
		return expectOneRow(result, domain.ErrAddressNotFound)
	})
}

func (r *addressRepo) Delete(ctx context.Context, userID, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM addresses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}
	return expectOneRow(result, domain.ErrAddressNotFound)
}
