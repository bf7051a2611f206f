// Package repo 实现数据访问层，负责与数据库的交互。
package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/MorseWayne/storefront/internal/database"
	"github.com/MorseWayne/storefront/internal/domain"
)

// ProductRepository 定义商品数据访问接口，商品总是连同规格一起读写
type ProductRepository interface {
	// 基本CRUD操作
	Create(ctx context.Context, product *domain.Product) error
	GetByID(ctx context.Context, id int64) (*domain.Product, error)
	// GetByTitle 标题不区分大小写
	GetByTitle(ctx context.Context, title string) (*domain.Product, error)
	Update(ctx context.Context, product *domain.Product) error

	// 查询操作
	List(ctx context.Context, req *domain.ProductListRequest) ([]*domain.Product, int64, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*domain.Product, error)

	// Invalidate 库存在其他仓储中变更后通知清理缓存
	Invalidate(ctx context.Context, ids ...int64) error
}

// productRepo 实现ProductRepository接口
type productRepo struct {
	db *sql.DB
}

// NewProductRepository 创建商品仓储实例
func NewProductRepository(db *sql.DB) ProductRepository {
	return &productRepo{db: db}
}

const productColumns = `p.id, p.title, p.description, p.price, p.category_id, p.images, p.status, p.created_at, p.updated_at`

func scanProduct(row interface{ Scan(...any) error }) (*domain.Product, error) {
	product := &domain.Product{}
	var images []byte
	err := row.Scan(
		&product.ID,
		&product.Title,
		&product.Description,
		&product.Price,
		&product.CategoryID,
		&images,
		&product.Status,
		&product.CreatedAt,
		&product.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(images, &product.Images); err != nil {
		return nil, err
	}
	return product, nil
}

// Create 创建商品及其规格
func (r *productRepo) Create(ctx context.Context, product *domain.Product) error {
	images, err := marshalJSON(nonNilStrings(product.Images))
	if err != nil {
		return err
	}

	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			INSERT INTO products (title, description, price, category_id, images, status)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			product.Title,
			product.Description,
			product.Price,
			product.CategoryID,
			images,
			string(product.Status),
		)
		if err != nil {
			if isDuplicateKey(err) {
				return domain.ErrProductExists
			}
			return fmt.Errorf("failed to create product: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		product.ID = id

		for _, v := range product.Variants {
			v.ID = 0
			if err := saveVariant(ctx, tx, id, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// saveVariant 没有 ID 的规格插入，否则按 ID 更新
func saveVariant(ctx context.Context, q querier, productID int64, v *domain.Variant) error {
	images, err := marshalJSON(nonNilStrings(v.Images))
	if err != nil {
		return err
	}
	v.ProductID = productID

	if v.ID == 0 {
		result, err := q.ExecContext(ctx, `
			INSERT INTO product_variants (product_id, size, color, quantity, price, images)
			VALUES (?, ?, ?, ?, ?, ?)
		`, productID, v.Size, v.Color, v.Quantity, v.Price, images)
		if err != nil {
			if isDuplicateKey(err) {
				return domain.Invalid(fmt.Sprintf("duplicate variant %s/%s", v.Size, v.Color))
			}
			return fmt.Errorf("failed to create variant: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get variant id: %w", err)
		}
		v.ID = id
		return nil
	}

	result, err := q.ExecContext(ctx, `
		UPDATE product_variants SET size = ?, color = ?, quantity = ?, price = ?, images = ?
		WHERE id = ? AND product_id = ?
	`, v.Size, v.Color, v.Quantity, v.Price, images, v.ID, productID)
	if err != nil {
		if isDuplicateKey(err) {
			return domain.Invalid(fmt.Sprintf("duplicate variant %s/%s", v.Size, v.Color))
		}
		return fmt.Errorf("failed to update variant: %w", err)
	}
	return expectOneRow(result, domain.ErrVariantNotFound)
}

func (r *productRepo) getOne(ctx context.Context, where string, arg any) (*domain.Product, error) {
	query := fmt.Sprintf(`SELECT %s FROM products p WHERE %s`, productColumns, where)
	product, err := scanProduct(r.db.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	if err := r.attachVariants(ctx, []*domain.Product{product}); err != nil {
		return nil, err
	}
	return product, nil
}

// GetByID 根据ID获取商品
func (r *productRepo) GetByID(ctx context.Context, id int64) (*domain.Product, error) {
	return r.getOne(ctx, "p.id = ?", id)
}

// GetByTitle 根据标题获取商品
func (r *productRepo) GetByTitle(ctx context.Context, title string) (*domain.Product, error) {
	return r.getOne(ctx, "LOWER(p.title) = LOWER(?)", strings.TrimSpace(title))
}

// Update 更新商品，规格按 ID 更新或新增
func (r *productRepo) Update(ctx context.Context, product *domain.Product) error {
	images, err := marshalJSON(nonNilStrings(product.Images))
	if err != nil {
		return err
	}

	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE products
			SET title = ?, description = ?, price = ?, category_id = ?, images = ?, status = ?
			WHERE id = ?
		`,
			product.Title,
			product.Description,
			product.Price,
			product.CategoryID,
			images,
			string(product.Status),
			product.ID,
		)
		if err != nil {
			if isDuplicateKey(err) {
				return domain.ErrProductExists
			}
			return fmt.Errorf("failed to update product: %w", err)
		}
		if err := expectOneRow(result, domain.ErrProductNotFound); err != nil {
			return err
		}

		for _, v := range product.Variants {
			if err := saveVariant(ctx, tx, product.ID, v); err != nil {
				return err
			}
		}
		return nil
	})
}

// List 获取商品列表
func (r *productRepo) List(ctx context.Context, req *domain.ProductListRequest) ([]*domain.Product, int64, error) {
	// 构建查询条件
	where, args := r.buildListWhereClause(req)

	// 获取总数
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM products p %s", where)
	var total int64
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count products: %w", err)
	}

	// 构建排序和分页
	orderBy := r.buildOrderClause(req)
	query := fmt.Sprintf(`SELECT %s FROM products p %s %s LIMIT ? OFFSET ?`, productColumns, where, orderBy)
	args = append(args, req.PageSize, (req.Page-1)*req.PageSize)

	products, err := r.queryProducts(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return products, total, nil
}

// GetByIDs 根据ID列表批量获取商品，不存在的 ID 被忽略
func (r *productRepo) GetByIDs(ctx context.Context, ids []int64) ([]*domain.Product, error) {
	if len(ids) == 0 {
		return []*domain.Product{}, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM products p WHERE p.id IN (%s) ORDER BY p.id`, productColumns, placeholders(len(ids)))
	return r.queryProducts(ctx, query, int64Args(ids)...)
}

// Invalidate 无缓存实现无需处理
func (r *productRepo) Invalidate(ctx context.Context, ids ...int64) error {
	return nil
}

func (r *productRepo) queryProducts(ctx context.Context, query string, args ...any) ([]*domain.Product, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	var products []*domain.Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate products: %w", err)
	}

	if err := r.attachVariants(ctx, products); err != nil {
		return nil, err
	}
	return products, nil
}

// attachVariants 一次查询加载所有商品的规格
func (r *productRepo) attachVariants(ctx context.Context, products []*domain.Product) error {
	if len(products) == 0 {
		return nil
	}
	byID := make(map[int64]*domain.Product, len(products))
	ids := make([]int64, 0, len(products))
	for _, p := range products {
		byID[p.ID] = p
		p.Variants = []*domain.Variant{}
		ids = append(ids, p.ID)
	}

	query := fmt.Sprintf(`
		SELECT id, product_id, size, color, quantity, price, images
		FROM product_variants WHERE product_id IN (%s) ORDER BY id
	`, placeholders(len(ids)))
	rows, err := r.db.QueryContext(ctx, query, int64Args(ids)...)
	if err != nil {
		return fmt.Errorf("failed to query variants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		v := &domain.Variant{}
		var images []byte
		if err := rows.Scan(&v.ID, &v.ProductID, &v.Size, &v.Color, &v.Quantity, &v.Price, &images); err != nil {
			return fmt.Errorf("failed to scan variant: %w", err)
		}
		if err := unmarshalJSON(images, &v.Images); err != nil {
			return err
		}
		if p, ok := byID[v.ProductID]; ok {
			p.Variants = append(p.Variants, v)
		}
	}
	return rows.Err()
}

// buildListWhereClause 构建查询条件子句
func (r *productRepo) buildListWhereClause(req *domain.ProductListRequest) (string, []any) {
	var conditions []string
	var args []any

	// 上架商品：商品与所属分类均为 active
	if req.Listed {
		conditions = append(conditions,
			"p.status = ?",
			"EXISTS (SELECT 1 FROM categories c WHERE c.id = p.category_id AND c.status = ?)")
		args = append(args, string(domain.ProductStatusActive), string(domain.CategoryStatusActive))
	} else if req.Status != nil {
		conditions = append(conditions, "p.status = ?")
		args = append(args, string(*req.Status))
	}

	// 分类过滤
	if req.CategoryID != nil {
		conditions = append(conditions, "p.category_id = ?")
		args = append(args, *req.CategoryID)
	}

	// 关键词搜索
	if req.Keyword != nil && *req.Keyword != "" {
		conditions = append(conditions, "(p.title LIKE ? OR p.description LIKE ?)")
		keyword := "%" + *req.Keyword + "%"
		args = append(args, keyword, keyword)
	}

	if len(conditions) > 0 {
		return "WHERE " + strings.Join(conditions, " AND "), args
	}
	return "", args
}

// buildOrderClause 构建排序子句
func (r *productRepo) buildOrderClause(req *domain.ProductListRequest) string {
	sortBy := "created_at"
	sortOrder := "DESC"

	if req.SortBy != nil {
		switch *req.SortBy {
		case "price", "created_at", "title":
			sortBy = *req.SortBy
		}
	}
	if req.SortOrder != nil && strings.EqualFold(*req.SortOrder, "asc") {
		sortOrder = "ASC"
	}

	return fmt.Sprintf("ORDER BY p.%s %s, p.id", sortBy, sortOrder)
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
