package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MorseWayne/storefront/internal/domain"
)

// CategoryRepository 分类数据访问接口
type CategoryRepository interface {
	Create(ctx context.Context, c *domain.Category) error
	GetByID(ctx context.Context, id int64) (*domain.Category, error)
	// GetByName 名称不区分大小写
	GetByName(ctx context.Context, name string) (*domain.Category, error)
	List(ctx context.Context, activeOnly bool) ([]*domain.Category, error)
	Update(ctx context.Context, c *domain.Category) error
}

type categoryRepo struct {
	db *sql.DB
}

// NewCategoryRepository 创建分类仓储实例
func NewCategoryRepository(db *sql.DB) CategoryRepository {
	return &categoryRepo{db: db}
}

const categoryColumns = `id, name, description, status, sales_count, created_at, updated_at`

func scanCategory(row interface{ Scan(...any) error }) (*domain.Category, error) {
	c := &domain.Category{}
	err := row.Scan(&c.ID, &c.Name, &c.Description, &c.Status, &c.SalesCount, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func (r *categoryRepo) Create(ctx context.Context, c *domain.Category) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, description, status) VALUES (?, ?, ?)`,
		c.Name, c.Description, string(c.Status))
	if err != nil {
		if isDuplicateKey(err) {
			return domain.ErrCategoryExists
		}
		return fmt.Errorf("failed to create category: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get last insert id: %w", err)
	}
	c.ID = id
	return nil
}

func (r *categoryRepo) getOne(ctx context.Context, where string, arg any) (*domain.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM categories WHERE %s`, categoryColumns, where)
	c, err := scanCategory(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return c, nil
}

func (r *categoryRepo) GetByID(ctx context.Context, id int64) (*domain.Category, error) {
	return r.getOne(ctx, "id = ?", id)
}

func (r *categoryRepo) GetByName(ctx context.Context, name string) (*domain.Category, error) {
	return r.getOne(ctx, "LOWER(name) = LOWER(?)", name)
}

func (r *categoryRepo) List(ctx context.Context, activeOnly bool) ([]*domain.Category, error) {
	query := fmt.Sprintf(`SELECT %s FROM categories`, categoryColumns)
	var args []any
	if activeOnly {
		query += ` WHERE status = ?`
		args = append(args, string(domain.CategoryStatusActive))
	}
	query += ` ORDER BY name`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []*domain.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *categoryRepo) Update(ctx context.Context, c *domain.Category) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, description = ?, status = ? WHERE id = ?`,
		c.Name, c.Description, string(c.Status), c.ID)
	if err != nil {
		if isDuplicateKey(err) {
			return domain.ErrCategoryExists
		}
		return fmt.Errorf("failed to update category: %w", err)
	}
	return expectOneRow(result, domain.ErrCategoryNotFound)
}
