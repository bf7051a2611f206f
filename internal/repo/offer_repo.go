package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MorseWayne/storefront/internal/domain"
)

// OfferRepository 优惠数据访问接口
type OfferRepository interface {
	Create(ctx context.Context, o *domain.Offer) error
	GetByID(ctx context.Context, id int64) (*domain.Offer, error)
	// ListAll 返回全部优惠，是否生效由调用方按日期判断
	ListAll(ctx context.Context) ([]*domain.Offer, error)
	Update(ctx context.Context, o *domain.Offer) error
	Delete(ctx context.Context, id int64) error
}

type offerRepo struct {
	db *sql.DB
}

// NewOfferRepository 创建优惠仓储实例
func NewOfferRepository(db *sql.DB) OfferRepository {
	return &offerRepo{db: db}
}

const offerColumns = `id, name, discount_percentage, start_date, end_date, category_id, product_ids, status, created_at, updated_at`

func scanOffer(row interface{ Scan(...any) error }) (*domain.Offer, error) {
	o := &domain.Offer{}
	var categoryID sql.NullInt64
	var productIDs []byte
	err := row.Scan(&o.ID, &o.Name, &o.DiscountPercentage, &o.StartDate, &o.EndDate,
		&categoryID, &productIDs, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if categoryID.Valid {
		id := categoryID.Int64
		o.CategoryID = &id
	}
	if err := unmarshalJSON(productIDs, &o.ProductIDs); err != nil {
		return nil, err
	}
	return o, nil
}

func offerArgs(o *domain.Offer) ([]any, error) {
	ids := o.ProductIDs
	if ids == nil {
		ids = []int64{}
	}
	productIDs, err := marshalJSON(ids)
	if err != nil {
		return nil, err
	}
	var categoryID any
	if o.CategoryID != nil {
		categoryID = *o.CategoryID
	}
	return []any{
		o.Name,
		o.DiscountPercentage,
		o.StartDate.Format(domain.DateLayout),
		o.EndDate.Format(domain.DateLayout),
		categoryID,
		productIDs,
		string(o.Status),
	}, nil
}

func (r *offerRepo) Create(ctx context.Context, o *domain.Offer) error {
	args, err := offerArgs(o)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO offers (name, discount_percentage, start_date, end_date, category_id, product_ids, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to create offer: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	o.ID = id
	return nil
}

func (r *offerRepo) GetByID(ctx context.Context, id int64) (*domain.Offer, error) {
	query := fmt.Sprintf(`SELECT %s FROM offers WHERE id = ?`, offerColumns)
	o, err := scanOffer(r.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get offer: %w", err)
	}
	return o, nil
}

func (r *offerRepo) ListAll(ctx context.Context) ([]*domain.Offer, error) {
	query := fmt.Sprintf(`SELECT %s FROM offers ORDER BY id`, offerColumns)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list offers: %w", err)
	}
	defer rows.Close()

	var out []*domain.Offer
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan offer: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (r *offerRepo) Update(ctx context.Context, o *domain.Offer) error {
	args, err := offerArgs(o)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, `
		UPDATE offers
		SET name = ?, discount_percentage = ?, start_date = ?, end_date = ?, category_id = ?, product_ids = ?, status = ?
		WHERE id = ?
	`, append(args, o.ID)...)
	if err != nil {
		return fmt.Errorf("failed to update offer: %w", err)
	}
	return expectOneRow(result, domain.ErrOfferNotFound)
}

func (r *offerRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM offers WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete offer: %w", err)
	}
	return expectOneRow(result, domain.ErrOfferNotFound)
}
