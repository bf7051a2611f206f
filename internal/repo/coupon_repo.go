package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MorseWayne/storefront/internal/domain"
)

// CouponRepository 优惠券数据访问接口。使用记录在下单事务内写入，见 OrderRepository.PlaceOrder
type CouponRepository interface {
	Create(ctx context.Context, c *domain.Coupon) error
	GetByID(ctx context.Context, id int64) (*domain.Coupon, error)
	GetByCode(ctx context.Context, code string) (*domain.Coupon, error)
	List(ctx context.Context, activeOnly bool) ([]*domain.Coupon, error)
	Update(ctx context.Context, c *domain.Coupon) error
	Delete(ctx context.Context, id int64) error
	HasUsed(ctx context.Context, couponID, userID int64) (bool, error)
}

type couponRepo struct {
	db *sql.DB
}

// NewCouponRepository 创建优惠券仓储实例
func NewCouponRepository(db *sql.DB) CouponRepository {
	return &couponRepo{db: db}
}

const couponColumns = `id, code, description, discount_percentage, max_discount, min_purchase, expiry_date, status, created_at, updated_at`

func scanCoupon(row interface{ Scan(...any) error }) (*domain.Coupon, error) {
	c := &domain.Coupon{}
	err := row.Scan(&c.ID, &c.Code, &c.Description, &c.DiscountPercentage, &c.MaxDiscount,
		&c.MinPurchase, &c.ExpiryDate, &c.Status, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *couponRepo) Create(ctx context.Context, c *domain.Coupon) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO coupons (code, description, discount_percentage, max_discount, min_purchase, expiry_date, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.Code, c.Description, c.DiscountPercentage, c.MaxDiscount, c.MinPurchase,
		c.ExpiryDate.Format(domain.DateLayout), string(c.Status))
	if err != nil {
		if isDuplicateKey(err) {
			return domain.ErrCouponExists
		}
		return fmt.Errorf("failed to create coupon: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	c.ID = id
	return nil
}

func (r *couponRepo) getOne(ctx context.Context, where string, arg any) (*domain.Coupon, error) {
	query := fmt.Sprintf(`SELECT %s FROM coupons WHERE %s`, couponColumns, where)
	c, err := scanCoupon(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get coupon: %w", err)
	}
	return c, nil
}

func (r *couponRepo) GetByID(ctx context.Context, id int64) (*domain.Coupon, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *couponRepo) GetByCode(ctx context.Context, code string) (*domain.Coupon, error) {
	return r.getOne(ctx, "code = ?", domain.NormalizeCouponCode(code))
}

func (r *couponRepo) List(ctx context.Context, activeOnly bool) ([]*domain.Coupon, error) {
	query := fmt.Sprintf(`SELECT %s FROM coupons`, couponColumns)
	var args []any
	if activeOnly {
		query += ` WHERE status = ? AND expiry_date >= CURRENT_DATE`
		args = append(args, string(domain.CouponStatusActive))
	}
	query += ` ORDER BY expiry_date, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list coupons: %w", err)
	}
	defer rows.Close()

	var out []*domain.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan coupon: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *couponRepo) Update(ctx context.Context, c *domain.Coupon) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE coupons
		SET code = ?, description = ?, discount_percentage = ?, max_discount = ?, min_purchase = ?, expiry_date = ?, status = ?
		WHERE id = ?
	`, c.Code, c.Description, c.DiscountPercentage, c.MaxDiscount, c.MinPurchase,
		c.ExpiryDate.Format(domain.DateLayout), string(c.Status), c.ID)
	if err != nil {
		if isDuplicateKey(err) {
			return domain.ErrCouponExists
		}
		return fmt.Errorf("failed to update coupon: %w", err)
	}
	return expectOneRow(result, domain.ErrCouponNotFound)
}

func (r *couponRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM coupons WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete coupon: %w", err)
	}
	return expectOneRow(result, domain.ErrCouponNotFound)
}

func (r *couponRepo) HasUsed(ctx context.Context, couponID, userID int64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = ? AND user_id = ?`, couponID, userID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check coupon usage: %w", err)
	}
	return n > 0, nil
}
