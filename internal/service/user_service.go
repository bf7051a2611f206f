// Package service 提供业务逻辑层实现。
// 服务层负责协调领域对象和仓储，实现具体的业务用例。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"google.golang.org/api/idtoken"

	"github.com/MorseWayne/storefront/internal/cache"
	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/repo"
)

// activeCacheTTL 封禁状态缓存时间，封禁/解封时主动清理
const activeCacheTTL = time.Minute

// GoogleIdentity Google 身份令牌中的用户信息
type GoogleIdentity struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// GoogleVerifier 校验 Google ID Token
type GoogleVerifier interface {
	Verify(ctx context.Context, token string) (*GoogleIdentity, error)
}

type googleVerifier struct {
	clientID string
}

// NewGoogleVerifier 基于 idtoken 的校验器，audience 为 OAuth client id
func NewGoogleVerifier(clientID string) GoogleVerifier {
	return &googleVerifier{clientID: clientID}
}

func (v *googleVerifier) Verify(ctx context.Context, token string) (*GoogleIdentity, error) {
	payload, err := idtoken.Validate(ctx, token, v.clientID)
	if err != nil {
		return nil, err
	}
	id := &GoogleIdentity{Subject: payload.Subject}
	if email, ok := payload.Claims["email"].(string); ok {
		id.Email = email
	}
	if verified, ok := payload.Claims["email_verified"].(bool); ok {
		id.EmailVerified = verified
	}
	if name, ok := payload.Claims["name"].(string); ok {
		id.Name = name
	}
	return id, nil
}

// UserService 定义用户服务接口
type UserService interface {
	Signup(ctx context.Context, req *domain.RegisterRequest) (*domain.LoginResponse, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
	GoogleLogin(ctx context.Context, req *domain.GoogleLoginRequest) (*domain.LoginResponse, error)
	Refresh(ctx context.Context, req *domain.RefreshTokenRequest) (*domain.LoginResponse, error)
	GetProfile(ctx context.Context, userID int64) (*domain.User, error)
	UpdateProfile(ctx context.Context, userID int64, req *domain.UpdateProfileRequest) (*domain.User, error)

	AdminLogin(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error)
	ListUsers(ctx context.Context, req *domain.UserListRequest) (*domain.UserListResponse, error)
	SetBlocked(ctx context.Context, userID int64, blocked bool) error

	// IsActive 供认证中间件判断账号是否被封禁
	IsActive(ctx context.Context, userID int64) (bool, error)
}

// userService 是 UserService 接口的实现
type userService struct {
	userRepo repo.UserRepository
	userJWT  JWTService
	adminJWT JWTService
	google   GoogleVerifier
	cache    cache.Cache
	logger   *zap.Logger
}

// NewUserService 创建用户服务实例
func NewUserService(
	userRepo repo.UserRepository,
	userJWT, adminJWT JWTService,
	google GoogleVerifier,
	c cache.Cache,
	logger *zap.Logger,
) UserService {
	return &userService{
		userRepo: userRepo,
		userJWT:  userJWT,
		adminJWT: adminJWT,
		google:   google,
		cache:    c,
		logger:   logger,
	}
}

// Signup 用户注册
// 业务规则：
// 1. 用户名和邮箱不能重复
// 2. 密码需要进行bcrypt哈希
// 3. 新用户默认为普通用户角色，同时开通零余额钱包
func (s *userService) Signup(ctx context.Context, req *domain.RegisterRequest) (*domain.LoginResponse, error) {
	username := strings.TrimSpace(req.Username)
	email := strings.ToLower(strings.TrimSpace(req.Email))

	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		s.logger.Error("failed to check username", zap.Error(err))
		return nil, fmt.Errorf("check username: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrUserExists
	}
	existing, err = s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		s.logger.Error("failed to check email", zap.Error(err))
		return nil, fmt.Errorf("check email: %w", err)
	}
	if existing != nil {
		return nil, domain.ErrUserExists
	}

	passwordHash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		s.logger.Error("failed to hash password", zap.Error(err))
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &domain.User{
		Username:     username,
		Email:        email,
		PasswordHash: string(passwordHash),
		Role:         domain.UserRoleUser,
		IsActive:     true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return nil, err
		}
		s.logger.Error("failed to create user", zap.Error(err))
		return nil, fmt.Errorf("create user: %w", err)
	}

	s.logger.Info("user registered successfully",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
	)
	return s.issue(user, s.userJWT)
}

// authenticate 用户名或邮箱 + 密码校验
func (s *userService) authenticate(ctx context.Context, req *domain.LoginRequest) (*domain.User, error) {
	login := strings.TrimSpace(req.Username)
	user, err := s.userRepo.GetByUsername(ctx, login)
	if err != nil {
		s.logger.Error("failed to get user by username", zap.Error(err))
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		user, err = s.userRepo.GetByEmail(ctx, strings.ToLower(login))
		if err != nil {
			s.logger.Error("failed to get user by email", zap.Error(err))
			return nil, fmt.Errorf("get user: %w", err)
		}
	}
	// 第三方登录账号没有密码
	if user == nil || user.PasswordHash == "" {
		return nil, domain.ErrInvalidCredentials
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return nil, domain.ErrInvalidCredentials
		}
		s.logger.Error("failed to compare password", zap.Error(err))
		return nil, fmt.Errorf("compare password: %w", err)
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}
	return user, nil
}

// Login 用户登录，支持用户名或邮箱
func (s *userService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	user, err := s.authenticate(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("user logged in successfully",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
	)
	return s.issue(user, s.userJWT)
}

// AdminLogin 管理员登录，令牌使用管理员密钥签发
func (s *userService) AdminLogin(ctx context.Context, req *domain.LoginRequest) (*domain.LoginResponse, error) {
	user, err := s.authenticate(ctx, req)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin() {
		s.logger.Warn("non-admin attempted admin login", zap.Int64("user_id", user.ID))
		return nil, domain.ErrNotAdmin
	}
	s.logger.Info("admin logged in", zap.Int64("user_id", user.ID))
	return s.issue(user, s.adminJWT)
}

// GoogleLogin 校验 Google ID Token。已绑定的账号直接登录，
// 否则按邮箱绑定已有账号，都不存在时新建账号
func (s *userService) GoogleLogin(ctx context.Context, req *domain.GoogleLoginRequest) (*domain.LoginResponse, error) {
	identity, err := s.google.Verify(ctx, req.IDToken)
	if err != nil {
		s.logger.Warn("google id token rejected", zap.Error(err))
		return nil, domain.ErrInvalidCredentials
	}
	if identity.Email == "" || !identity.EmailVerified {
		return nil, domain.ErrInvalidCredentials
	}

	user, err := s.userRepo.GetByGoogleSub(ctx, identity.Subject)
	if err != nil {
		return nil, fmt.Errorf("get user by google sub: %w", err)
	}
	if user == nil {
		user, err = s.linkGoogleAccount(ctx, identity)
		if err != nil {
			return nil, err
		}
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}

	s.logger.Info("user logged in with google", zap.Int64("user_id", user.ID))
	return s.issue(user, s.userJWT)
}

func (s *userService) linkGoogleAccount(ctx context.Context, identity *GoogleIdentity) (*domain.User, error) {
	email := strings.ToLower(identity.Email)
	user, err := s.userRepo.GetByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	if user != nil {
		user.GoogleSub = identity.Subject
		if err := s.userRepo.Update(ctx, user); err != nil {
			return nil, fmt.Errorf("link google account: %w", err)
		}
		return user, nil
	}

	user = &domain.User{
		Username:  googleUsername(identity),
		Email:     email,
		GoogleSub: identity.Subject,
		Role:      domain.UserRoleUser,
		IsActive:  true,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("create google user: %w", err)
	}
	s.logger.Info("user registered with google", zap.Int64("user_id", user.ID))
	return user, nil
}

// googleUsername 用户名取邮箱前缀并追加 sub 尾部，避免与已有用户名冲突
func googleUsername(identity *GoogleIdentity) string {
	local, _, _ := strings.Cut(identity.Email, "@")
	suffix := identity.Subject
	if len(suffix) > 6 {
		suffix = suffix[len(suffix)-6:]
	}
	name := local + "_" + suffix
	if len(name) > 32 {
		name = name[:32]
	}
	return name
}

// Refresh 刷新令牌对，账号被封禁后不再续期
func (s *userService) Refresh(ctx context.Context, req *domain.RefreshTokenRequest) (*domain.LoginResponse, error) {
	claims, err := s.userJWT.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		return nil, domain.ErrInvalidCredentials
	}
	user, err := s.GetProfile(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, domain.ErrUserInactive
	}
	return s.issue(user, s.userJWT)
}

func (s *userService) issue(user *domain.User, signer JWTService) (*domain.LoginResponse, error) {
	pair, err := signer.GenerateTokenPair(user)
	if err != nil {
		return nil, err
	}
	return &domain.LoginResponse{
		User:         user,
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	}, nil
}

// GetProfile 根据ID获取用户
func (s *userService) GetProfile(ctx context.Context, userID int64) (*domain.User, error) {
	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		s.logger.Error("failed to get user by id", zap.Int64("id", userID), zap.Error(err))
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		return nil, domain.ErrUserNotFound
	}
	return user, nil
}

// UpdateProfile 修改用户名
func (s *userService) UpdateProfile(ctx context.Context, userID int64, req *domain.UpdateProfileRequest) (*domain.User, error) {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	username := strings.TrimSpace(req.Username)
	if username == user.Username {
		return user, nil
	}
	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("check username: %w", err)
	}
	if existing != nil && existing.ID != user.ID {
		return nil, domain.ErrUserExists
	}

	user.Username = username
	if err := s.userRepo.Update(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return user, nil
}

// ListUsers 管理员分页查询用户
func (s *userService) ListUsers(ctx context.Context, req *domain.UserListRequest) (*domain.UserListResponse, error) {
	req.Page, req.PageSize = domain.NormalizePage(req.Page, req.PageSize)
	users, total, err := s.userRepo.List(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return &domain.UserListResponse{
		Users:    users,
		Total:    total,
		Page:     req.Page,
		PageSize: req.PageSize,
	}, nil
}

// SetBlocked 封禁或解封用户，管理员账号不能被封禁
func (s *userService) SetBlocked(ctx context.Context, userID int64, blocked bool) error {
	user, err := s.GetProfile(ctx, userID)
	if err != nil {
		return err
	}
	if blocked && user.IsAdmin() {
		return &domain.Error{Kind: domain.KindBusiness, Msg: "admin accounts cannot be blocked"}
	}
	if err := s.userRepo.UpdateStatus(ctx, userID, !blocked); err != nil {
		return err
	}
	if err := s.cache.Del(ctx, activeCacheKey(userID)); err != nil {
		s.logger.Warn("failed to evict user status", zap.Int64("user_id", userID), zap.Error(err))
	}
	s.logger.Info("user status changed", zap.Int64("user_id", userID), zap.Bool("blocked", blocked))
	return nil
}

func activeCacheKey(userID int64) string {
	return fmt.Sprintf("user:active:%d", userID)
}

// IsActive 读穿缓存。用户不存在视为不可用
func (s *userService) IsActive(ctx context.Context, userID int64) (bool, error) {
	key := activeCacheKey(userID)
	var active bool
	if err := s.cache.Get(ctx, key, &active); err == nil {
		return active, nil
	}

	user, err := s.userRepo.GetByID(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("get user: %w", err)
	}
	active = user != nil && user.IsActive
	if err := s.cache.Set(ctx, key, active, activeCacheTTL); err != nil {
		s.logger.Warn("failed to cache user status", zap.Int64("user_id", userID), zap.Error(err))
	}
	return active, nil
}
