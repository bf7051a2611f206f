// Package router 提供 HTTP 路由设置和中间件配置功能
package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/api"
	"github.com/MorseWayne/storefront/internal/cache"
	"github.com/MorseWayne/storefront/internal/config"
	"github.com/MorseWayne/storefront/internal/limiter"
	"github.com/MorseWayne/storefront/internal/middleware"
	"github.com/MorseWayne/storefront/internal/service"
)

// Dependencies 包含路由设置所需的所有依赖
type Dependencies struct {
	UserHandler    *api.UserHandler
	CatalogHandler *api.CatalogHandler
	CartHandler    *api.CartHandler
	OrderHandler   *api.OrderHandler

	UserJWT       service.JWTService
	AdminJWT      service.JWTService
	StatusChecker middleware.StatusChecker

	Metrics *middleware.Metrics
	// Limiter 为 nil 或配置关闭时不限流
	Limiter limiter.Limiter
	// IdempotencyStore 下单幂等键存储
	IdempotencyStore cache.Cache
}

// Router 路由器接口
type Router interface {
	Setup(cfg *config.Config, deps *Dependencies, lg *zap.Logger) http.Handler
}

// GinRouter Gin路由器实现
type GinRouter struct {
	engine *gin.Engine
	cfg    *config.Config
	deps   *Dependencies
	logger *zap.Logger
}

// New 创建新的路由器实例
func New() Router {
	return &GinRouter{}
}

// Setup 设置路由和中间件
func (r *GinRouter) Setup(cfg *config.Config, deps *Dependencies, lg *zap.Logger) http.Handler {
	// 根据环境设置 Gin 模式
	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	r.engine = gin.New()
	r.cfg = cfg
	r.deps = deps
	r.logger = lg

	r.setupMiddleware()
	r.setupRoutes()

	return r.engine
}

// setupMiddleware 设置全局中间件，请求 ID 必须最先执行
func (r *GinRouter) setupMiddleware() {
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.Recovery(r.logger))
	r.engine.Use(middleware.AccessLog(r.logger))
	r.engine.Use(middleware.CORS(r.cfg.CORS))
	if r.deps.Metrics != nil {
		r.engine.Use(r.deps.Metrics.Middleware())
	}
	if r.cfg.App.RequestTimeout > 0 {
		r.engine.Use(middleware.Timeout(r.cfg.App.RequestTimeout))
	}
}

// setupRoutes 设置所有路由
func (r *GinRouter) setupRoutes() {
	d := r.deps

	r.engine.GET("/healthz", r.healthCheck)
	if d.Metrics != nil {
		r.engine.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}

	// 用户端
	user := r.engine.Group("/user")
	{
		user.POST("/signup", r.rateLimit("signup"), d.UserHandler.Signup)
		user.POST("/login", r.rateLimit("login"), d.UserHandler.Login)
		user.POST("/google-login", r.rateLimit("login"), d.UserHandler.GoogleLogin)
		user.POST("/refresh", d.UserHandler.Refresh)

		user.GET("/products", d.CatalogHandler.ListProducts)
		user.GET("/products/:productId", d.CatalogHandler.GetProduct)
		user.GET("/categories", d.CatalogHandler.ListCategories)

		authed := user.Group("")
		authed.Use(middleware.Auth(d.UserJWT, d.StatusChecker, r.logger))
		{
			authed.GET("/profile", d.UserHandler.GetProfile)
			authed.PUT("/profile", d.UserHandler.UpdateProfile)

			authed.GET("/address", d.UserHandler.ListAddresses)
			authed.POST("/address", d.UserHandler.CreateAddress)
			authed.PUT("/address/:addressId", d.UserHandler.UpdateAddress)
			authed.DELETE("/address/:addressId", d.UserHandler.DeleteAddress)

			authed.GET("/cart", d.CartHandler.GetCart)
			authed.POST("/cart/add", d.CartHandler.AddToCart)
			authed.PUT("/cart/item/:itemId", d.CartHandler.UpdateCartItem)
			authed.POST("/cart/remove", d.CartHandler.RemoveFromCart)

			authed.GET("/wishlist", d.CartHandler.ListWishlist)
			authed.POST("/wishlist", d.CartHandler.AddWishlist)
			authed.DELETE("/wishlist/:productId", d.CartHandler.RemoveWishlist)

			authed.GET("/coupons", d.CartHandler.ListCoupons)
			authed.POST("/coupon/apply", d.CartHandler.ApplyCoupon)

			authed.POST("/order/add", r.idempotency(), d.OrderHandler.PlaceOrder)
			authed.POST("/order/verify-payment", r.rateLimit("payment"), d.OrderHandler.VerifyPayment)
			authed.GET("/orders", d.OrderHandler.ListMyOrders)
			authed.GET("/order/:orderId", d.OrderHandler.GetMyOrder)
			authed.PUT("/order/:orderId/cancel", d.OrderHandler.CancelItem)
			authed.POST("/order/:orderId/return", d.OrderHandler.RequestReturn)

			authed.GET("/wallet", d.UserHandler.GetWallet)
		}
	}

	// 管理端，令牌使用独立密钥签发
	admin := r.engine.Group("/admin")
	{
		admin.POST("/login", r.rateLimit("admin_login"), d.UserHandler.AdminLogin)

		authed := admin.Group("")
		authed.Use(middleware.Auth(d.AdminJWT, d.StatusChecker, r.logger), middleware.RequireAdmin(r.logger))
		{
			authed.GET("/users", d.UserHandler.ListUsers)
			authed.PUT("/users/:userId/block", d.UserHandler.Block)
			authed.PUT("/users/:userId/unblock", d.UserHandler.Unblock)

			authed.GET("/categories", d.CatalogHandler.AdminListCategories)
			authed.POST("/category", d.CatalogHandler.CreateCategory)
			authed.PUT("/category/:categoryId", d.CatalogHandler.UpdateCategory)

			authed.GET("/products", d.CatalogHandler.AdminListProducts)
			authed.POST("/product", d.CatalogHandler.CreateProduct)
			authed.PUT("/product/:productId", d.CatalogHandler.UpdateProduct)

			authed.GET("/offers", d.CatalogHandler.ListOffers)
			authed.POST("/offer", d.CatalogHandler.CreateOffer)
			authed.PUT("/offer/:offerId", d.CatalogHandler.UpdateOffer)
			authed.DELETE("/offer/:offerId", d.CatalogHandler.DeleteOffer)

			authed.GET("/coupons", d.CartHandler.AdminListCoupons)
			authed.POST("/coupon", d.CartHandler.CreateCoupon)
			authed.PUT("/coupon/:couponId", d.CartHandler.UpdateCoupon)
			authed.DELETE("/coupon/:couponId", d.CartHandler.DeleteCoupon)

			authed.GET("/orders", d.OrderHandler.ListOrders)
			authed.GET("/order/:orderId", d.OrderHandler.GetOrder)
			authed.PUT("/order/:orderId", d.OrderHandler.UpdateStatus)
			authed.PUT("/order/:orderId/accept-return", d.OrderHandler.AcceptReturn)
			authed.PUT("/order/:orderId/reject-return", d.OrderHandler.RejectReturn)
			authed.GET("/order/:orderId/audit", d.OrderHandler.History)

			authed.GET("/salesreport", d.OrderHandler.SalesReport)
			authed.GET("/downloadreport", d.OrderHandler.DownloadReport)
		}
	}
}

// healthCheck 健康检查处理器
func (r *GinRouter) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": r.cfg.App.Version,
	})
}

// rateLimit 按 scope 区分配额，未启用时为空操作
func (r *GinRouter) rateLimit(scope string) gin.HandlerFunc {
	if r.deps.Limiter == nil || !r.cfg.RateLimit.Enabled {
		return func(c *gin.Context) { c.Next() }
	}
	return limiter.RateLimitMiddleware(limiter.MiddlewareConfig{
		Limiter: r.deps.Limiter,
		Scope:   scope,
		Logger:  r.logger,
	})
}

// idempotency 下单防重，幂等键 24 小时内有效
func (r *GinRouter) idempotency() gin.HandlerFunc {
	if r.deps.IdempotencyStore == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.Idempotency(middleware.IdempotencyConfig{
		Store:  r.deps.IdempotencyStore,
		TTL:    24 * time.Hour,
		Logger: r.logger,
	})
}
