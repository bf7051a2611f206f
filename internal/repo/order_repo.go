package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MorseWayne/storefront/internal/database"
	"github.com/MorseWayne/storefront/internal/domain"
)

// Restock 归还到规格的库存
type Restock struct {
	VariantID int64
	Quantity  int
}

// OrderChange 订单变更在同一事务内附带的副作用
type OrderChange struct {
	Credit  *domain.WalletCredit
	Restock []Restock
	// Delete 为 true 时删除订单而不是保存
	Delete bool
}

// OrderMutator 在事务内对已加锁的订单做修改，返回需要一并执行的副作用。
// 返回错误时事务回滚，订单保持不变
type OrderMutator func(o *domain.Order) (*OrderChange, error)

// OrderRepository 订单数据访问接口
type OrderRepository interface {
	// PlaceOrder 在一个事务中：按条件扣减每个规格库存、累加分类销量、
	// 记录优惠券使用、写入订单、从购物车移除已下单的行。任一步失败整体回滚
	PlaceOrder(ctx context.Context, order *domain.Order, couponID *int64) error
	GetByID(ctx context.Context, id int64) (*domain.Order, error)
	GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error)
	List(ctx context.Context, req *domain.OrderListRequest) ([]*domain.Order, int64, error)
	// ListBetween 下单时间在 [start, end) 内的订单，按下单时间升序
	ListBetween(ctx context.Context, start, end time.Time) ([]*domain.Order, error)
	// Mutate 锁定订单后执行 fn 并原子地持久化结果与副作用
	Mutate(ctx context.Context, id int64, fn OrderMutator) (*domain.Order, *domain.WalletTransaction, error)
}

type orderRepo struct {
	db *sql.DB
}

// NewOrderRepository 创建订单仓储实例
func NewOrderRepository(db *sql.DB) OrderRepository {
	return &orderRepo{db: db}
}

const orderColumns = `id, user_id, address_id, shipping_address, items, total_items, shipping_charge, coupon_code,
	discount, total_price, payment_method, payment_status, order_status, COALESCE(gateway_order_id, ''),
	COALESCE(gateway_payment_id, ''), order_date, return_request, created_at, updated_at`

func scanOrder(row interface{ Scan(...any) error }) (*domain.Order, error) {
	o := &domain.Order{}
	var address, items, ret []byte
	err := row.Scan(
		&o.ID,
		&o.UserID,
		&o.AddressID,
		&address,
		&items,
		&o.TotalItems,
		&o.ShippingCharge,
		&o.CouponCode,
		&o.Discount,
		&o.TotalPrice,
		&o.PaymentMethod,
		&o.PaymentStatus,
		&o.OrderStatus,
		&o.GatewayOrderID,
		&o.GatewayPaymentID,
		&o.OrderDate,
		&ret,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if err := unmarshalJSON(address, &o.ShippingAddress); err != nil {
		return nil, err
	}
	if err := unmarshalJSON(items, &o.Items); err != nil {
		return nil, err
	}
	if len(ret) > 0 && string(ret) != "null" {
		o.Return = &domain.ReturnRequest{}
		if err := unmarshalJSON(ret, o.Return); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// PlaceOrder 下单事务
func (r *orderRepo) PlaceOrder(ctx context.Context, order *domain.Order, couponID *int64) error {
	address, err := marshalJSON(order.ShippingAddress)
	if err != nil {
		return err
	}
	items, err := marshalJSON(order.Items)
	if err != nil {
		return err
	}

	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		for _, item := range order.Items {
			// 条件扣减：库存不足时不命中任何行，并发下单也不会超卖
			result, err := tx.ExecContext(ctx,
				`UPDATE product_variants SET quantity = quantity - ? WHERE id = ? AND product_id = ? AND quantity >= ?`,
				item.Quantity, item.VariantID, item.ProductID, item.Quantity)
			if err != nil {
				return fmt.Errorf("failed to decrement stock: %w", err)
			}
			if err := expectOneRow(result, domain.ErrInsufficientStock); err != nil {
				return err
			}

			if _, err := tx.ExecContext(ctx, `
				UPDATE categories c JOIN products p ON p.category_id = c.id
				SET c.sales_count = c.sales_count + ?
				WHERE p.id = ?
			`, item.Quantity, item.ProductID); err != nil {
				return fmt.Errorf("failed to update category sales: %w", err)
			}
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO orders (user_id, address_id, shipping_address, items, total_items, shipping_charge, coupon_code,
				discount, total_price, payment_method, payment_status, order_status, gateway_order_id, order_date)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			order.UserID,
			order.AddressID,
			address,
			items,
			order.TotalItems,
			order.ShippingCharge,
			order.CouponCode,
			order.Discount,
			order.TotalPrice,
			string(order.PaymentMethod),
			string(order.PaymentStatus),
			string(order.OrderStatus),
			nullableString(order.GatewayOrderID),
			order.OrderDate,
		)
		if err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get last insert id: %w", err)
		}
		order.ID = id

		if couponID != nil {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO coupon_usages (coupon_id, user_id, order_id) VALUES (?, ?, ?)`,
				*couponID, order.UserID, id); err != nil {
				if isDuplicateKey(err) {
					return domain.ErrCouponUsed
				}
				return fmt.Errorf("failed to record coupon usage: %w", err)
			}
		}

		return drainCart(ctx, tx, order)
	})
}

// drainCart 按商品+规格移除已下单的行，其余行保留
func drainCart(ctx context.Context, tx *sql.Tx, order *domain.Order) error {
	cart, err := getCart(ctx, tx, order.UserID, true)
	if err != nil || cart == nil {
		return err
	}
	removed := 0
	for _, item := range order.Items {
		removed += cart.RemoveMatching(item.ProductID, item.Size, item.Color)
	}
	if removed == 0 {
		return nil
	}
	return saveCart(ctx, tx, cart)
}

func (r *orderRepo) getOne(ctx context.Context, q querier, where string, arg any, forUpdate bool) (*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE %s`, orderColumns, where)
	if forUpdate {
		query += ` FOR UPDATE`
	}
	o, err := scanOrder(q.QueryRowContext(ctx, query, arg))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return o, nil
}

func (r *orderRepo) GetByID(ctx context.Context, id int64) (*domain.Order, error) {
	return r.getOne(ctx, r.db, "id = ?", id, false)
}

func (r *orderRepo) GetByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error) {
	return r.getOne(ctx, r.db, "gateway_order_id = ?", gatewayOrderID, false)
}

func (r *orderRepo) List(ctx context.Context, req *domain.OrderListRequest) ([]*domain.Order, int64, error) {
	var conditions []string
	var args []any
	if req.UserID != nil {
		conditions = append(conditions, "user_id = ?")
		args = append(args, *req.UserID)
	}
	if req.Status != nil {
		conditions = append(conditions, "order_status = ?")
		args = append(args, string(*req.Status))
	}
	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM orders "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count orders: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM orders %s ORDER BY order_date DESC, id DESC LIMIT ? OFFSET ?`, orderColumns, where)
	orders, err := r.queryOrders(ctx, query, append(args, req.PageSize, (req.Page-1)*req.PageSize)...)
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *orderRepo) ListBetween(ctx context.Context, start, end time.Time) ([]*domain.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE order_date >= ? AND order_date < ? ORDER BY order_date, id`, orderColumns)
	return r.queryOrders(ctx, query, start, end)
}

func (r *orderRepo) queryOrders(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query orders: %w", err)
	}
	defer rows.Close()

	var orders []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate orders: %w", err)
	}
	return orders, nil
}

// Mutate 订单变更事务：先入账再改订单，保证钱包与订单同时生效或同时回滚
func (r *orderRepo) Mutate(ctx context.Context, id int64, fn OrderMutator) (*domain.Order, *domain.WalletTransaction, error) {
	var (
		order *domain.Order
		txn   *domain.WalletTransaction
	)
	err := database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		order, err = r.getOne(ctx, tx, "id = ?", id, true)
		if err != nil {
			return err
		}
		if order == nil {
			return domain.ErrOrderNotFound
		}

		change, err := fn(order)
		if err != nil {
			return err
		}
		if change == nil {
			change = &OrderChange{}
		}

		if change.Credit != nil {
			if txn, err = creditWallet(ctx, tx, change.Credit); err != nil {
				return err
			}
		}

		for _, rs := range change.Restock {
			if _, err := tx.ExecContext(ctx,
				`UPDATE product_variants SET quantity = quantity + ? WHERE id = ?`, rs.Quantity, rs.VariantID); err != nil {
				return fmt.Errorf("failed to restock variant: %w", err)
			}
		}

		if change.Delete {
			if _, err := tx.ExecContext(ctx, `DELETE FROM orders WHERE id = ?`, order.ID); err != nil {
				return fmt.Errorf("failed to delete order: %w", err)
			}
			return nil
		}
		return updateOrder(ctx, tx, order)
	})
	if err != nil {
		return nil, nil, err
	}
	return order, txn, nil
}

func updateOrder(ctx context.Context, q querier, o *domain.Order) error {
	items, err := marshalJSON(o.Items)
	if err != nil {
		return err
	}
	var ret any
	if o.Return != nil {
		data, err := marshalJSON(o.Return)
		if err != nil {
			return err
		}
		ret = data
	}

	_, err = q.ExecContext(ctx, `
		UPDATE orders
		SET items = ?, total_items = ?, discount = ?, total_price = ?, payment_status = ?, order_status = ?,
			gateway_payment_id = ?, return_request = ?
		WHERE id = ?
	`,
		items,
		o.TotalItems,
		o.Discount,
		o.TotalPrice,
		string(o.PaymentStatus),
		string(o.OrderStatus),
		nullableString(o.GatewayPaymentID),
		ret,
		o.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update order: %w", err)
	}
	return nil
}
