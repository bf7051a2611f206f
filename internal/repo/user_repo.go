package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/MorseWayne/storefront/internal/database"
	"github.com/MorseWayne/storefront/internal/domain"
)

// UserRepository 定义用户数据访问接口
// 使用接口可以方便单元测试时进行模拟（mock）
type UserRepository interface {
	// Create 创建用户并同时开立零余额钱包
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id int64) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByGoogleSub(ctx context.Context, sub string) (*domain.User, error)
	Update(ctx context.Context, user *domain.User) error
	// 管理员专用方法
	List(ctx context.Context, req *domain.UserListRequest) ([]*domain.User, int64, error)
	UpdateStatus(ctx context.Context, userID int64, isActive bool) error
}

// userRepo 是 UserRepository 接口的数据库实现
type userRepo struct {
	db *sql.DB
}

// NewUserRepository 创建用户仓储实例
func NewUserRepository(db *sql.DB) UserRepository {
	return &userRepo{db: db}
}

const userColumns = `id, username, email, password_hash, COALESCE(google_sub, ''), role, is_active, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*domain.User, error) {
	user := &domain.User{}
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.GoogleSub,
		&user.Role,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create 创建新用户
// 注意：这里不处理密码哈希，密码哈希应该在服务层处理
func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var googleSub any
		if user.GoogleSub != "" {
			googleSub = user.GoogleSub
		}
		result, err := tx.ExecContext(ctx, `
			INSERT INTO users (username, email, password_hash, google_sub, role, is_active)
			VALUES (?, ?, ?, ?, ?, ?)
		`,
			user.Username,
			user.Email,
			user.PasswordHash,
			googleSub,
			string(user.Role),
			user.IsActive,
		)
		if err != nil {
			if isDuplicateKey(err) {
				return domain.ErrUserExists
			}
			return fmt.Errorf("create user: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("get last insert id: %w", err)
		}
		user.ID = id

		if _, err := createWallet(ctx, tx, id); err != nil {
			return err
		}
		return nil
	})
}

func (r *userRepo) getOne(ctx context.Context, where string, arg any) (*domain.User, error) {
	query := fmt.Sprintf(`SELECT %s FROM users WHERE %s = ?`, userColumns, where)
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // 用户不存在
		}
		return nil, fmt.Errorf("get user by %s: %w", where, err)
	}
	return user, nil
}

// GetByID 根据ID查询用户
func (r *userRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	return r.getOne(ctx, "id", id)
}

// GetByUsername 根据用户名查询用户
func (r *userRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, "username", username)
}

// GetByEmail 根据邮箱查询用户
func (r *userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, "email", email)
}

// GetByGoogleSub 根据 Google 账号标识查询用户
func (r *userRepo) GetByGoogleSub(ctx context.Context, sub string) (*domain.User, error) {
	return r.getOne(ctx, "google_sub", sub)
}

// Update 更新用户信息
func (r *userRepo) Update(ctx context.Context, user *domain.User) error {
	var googleSub any
	if user.GoogleSub != "" {
		googleSub = user.GoogleSub
	}
	_, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET username = ?, email = ?, password_hash = ?, google_sub = ?, role = ?, is_active = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`,
		user.Username,
		user.Email,
		user.PasswordHash,
		googleSub,
		string(user.Role),
		user.IsActive,
		user.ID,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return domain.ErrUserExists
		}
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

// List 分页获取用户列表（管理员专用），keyword 匹配用户名或邮箱
func (r *userRepo) List(ctx context.Context, req *domain.UserListRequest) ([]*domain.User, int64, error) {
	where := ""
	var args []any
	if req.Keyword != "" {
		where = "WHERE username LIKE ? OR email LIKE ?"
		kw := "%" + req.Keyword + "%"
		args = append(args, kw, kw)
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s FROM users %s ORDER BY created_at DESC LIMIT ? OFFSET ?`, userColumns, where)
	rows, err := r.db.QueryContext(ctx, query, append(args, req.PageSize, (req.Page-1)*req.PageSize)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []*domain.User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate users: %w", err)
	}
	return users, total, nil
}

// UpdateStatus 封禁或解封用户（管理员专用）
func (r *userRepo) UpdateStatus(ctx context.Context, userID int64, isActive bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE users SET is_active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, isActive, userID)
	if err != nil {
		return fmt.Errorf("update user status: %w", err)
	}
	return expectOneRow(result, domain.ErrUserNotFound)
}
