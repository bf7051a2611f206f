package api

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/domain"
	"github.com/MorseWayne/storefront/internal/middleware"
	"github.com/MorseWayne/storefront/internal/service"
)

// UserHandler 处理账号、地址与钱包相关请求
type UserHandler struct {
	users     service.UserService
	addresses service.AddressService
	wallet    service.WalletService
	logger    *zap.Logger
}

// NewUserHandler 创建用户处理器实例
func NewUserHandler(users service.UserService, addresses service.AddressService, wallet service.WalletService, logger *zap.Logger) *UserHandler {
	return &UserHandler{users: users, addresses: addresses, wallet: wallet, logger: logger}
}

// Signup 注册
// POST /user/signup
func (h *UserHandler) Signup(c *gin.Context) {
	var req domain.RegisterRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.users.Signup(c.Request.Context(), &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, res)
}

// Login 用户名或邮箱登录
// POST /user/login
func (h *UserHandler) Login(c *gin.Context) {
	var req domain.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.users.Login(c.Request.Context(), &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, res)
}

// GoogleLogin 使用 Google ID Token 登录
// POST /user/google-login
func (h *UserHandler) GoogleLogin(c *gin.Context) {
	var req domain.GoogleLoginRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.users.GoogleLogin(c.Request.Context(), &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, res)
}

// Refresh 刷新令牌
// POST /user/refresh
func (h *UserHandler) Refresh(c *gin.Context) {
	var req domain.RefreshTokenRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.users.Refresh(c.Request.Context(), &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, res)
}

// GetProfile GET /user/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	user, err := h.users.GetProfile(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, user)
}

// UpdateProfile PUT /user/profile
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	var req domain.UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	user, err := h.users.UpdateProfile(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, user)
}

// ListAddresses GET /user/address
func (h *UserHandler) ListAddresses(c *gin.Context) {
	list, err := h.addresses.List(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, list)
}

// CreateAddress POST /user/address
func (h *UserHandler) CreateAddress(c *gin.Context) {
	var req domain.AddressRequest
	if !bindJSON(c, &req) {
		return
	}
	addr, err := h.addresses.Create(c.Request.Context(), middleware.UserID(c), &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, addr)
}

// UpdateAddress PUT /user/address/:addressId
func (h *UserHandler) UpdateAddress(c *gin.Context) {
	id, valid := pathID(c, "addressId")
	if !valid {
		return
	}
	var req domain.AddressRequest
	if !bindJSON(c, &req) {
		return
	}
	addr, err := h.addresses.Update(c.Request.Context(), middleware.UserID(c), id, &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, addr)
}

// DeleteAddress DELETE /user/address/:addressId
func (h *UserHandler) DeleteAddress(c *gin.Context) {
	id, valid := pathID(c, "addressId")
	if !valid {
		return
	}
	if err := h.addresses.Delete(c.Request.Context(), middleware.UserID(c), id); err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, gin.H{"deleted": true})
}

// GetWallet 钱包余额与流水，无钱包时 data 为 null
// GET /user/wallet
func (h *UserHandler) GetWallet(c *gin.Context) {
	w, err := h.wallet.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, w)
}

// AdminLogin POST /admin/login
func (h *UserHandler) AdminLogin(c *gin.Context) {
	var req domain.LoginRequest
	if !bindJSON(c, &req) {
		return
	}
	res, err := h.users.AdminLogin(c.Request.Context(), &req)
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, res)
}

type userListQuery struct {
	pageQuery
	Keyword string `form:"keyword" binding:"max=100"`
}

// ListUsers GET /admin/users
func (h *UserHandler) ListUsers(c *gin.Context) {
	var q userListQuery
	if !bindQuery(c, &q) {
		return
	}
	res, err := h.users.ListUsers(c.Request.Context(), &domain.UserListRequest{
		Page:     q.Page,
		PageSize: q.PageSize,
		Keyword:  q.Keyword,
	})
	if err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, res)
}

// Block PUT /admin/users/:userId/block
func (h *UserHandler) Block(c *gin.Context) {
	h.setBlocked(c, true)
}

// Unblock PUT /admin/users/:userId/unblock
func (h *UserHandler) Unblock(c *gin.Context) {
	h.setBlocked(c, false)
}

func (h *UserHandler) setBlocked(c *gin.Context, blocked bool) {
	id, valid := pathID(c, "userId")
	if !valid {
		return
	}
	if err := h.users.SetBlocked(c.Request.Context(), id, blocked); err != nil {
		fail(c, h.logger, err)
		return
	}
	ok(c, gin.H{"user_id": id, "blocked": blocked})
}
