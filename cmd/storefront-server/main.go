package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/api"
	"github.com/MorseWayne/storefront/internal/audit"
	"github.com/MorseWayne/storefront/internal/cache"
	"github.com/MorseWayne/storefront/internal/clock"
	"github.com/MorseWayne/storefront/internal/config"
	"github.com/MorseWayne/storefront/internal/database"
	"github.com/MorseWayne/storefront/internal/limiter"
	"github.com/MorseWayne/storefront/internal/logger"
	mw "github.com/MorseWayne/storefront/internal/middleware"
	"github.com/MorseWayne/storefront/internal/mq"
	"github.com/MorseWayne/storefront/internal/payment"
	"github.com/MorseWayne/storefront/internal/promotion"
	"github.com/MorseWayne/storefront/internal/repo"
	"github.com/MorseWayne/storefront/internal/router"
	"github.com/MorseWayne/storefront/internal/service"
)

// infra 外部连接，退出时按相反顺序关闭
type infra struct {
	db        *database.DB
	cache     cache.Cache
	redis     *redis.Client
	publisher mq.Publisher
	mqConn    *mq.ConnectionManager
	audit     audit.Recorder
	mongo     *audit.MongoRecorder
}

func (in *infra) close(lg *zap.Logger) {
	if in.mongo != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := in.mongo.Close(ctx); err != nil {
			lg.Sugar().Errorw("failed to close audit store", "err", err)
		}
	}
	if in.publisher != nil {
		if err := in.publisher.Close(); err != nil {
			lg.Sugar().Errorw("failed to close publisher", "err", err)
		}
	}
	if in.mqConn != nil {
		if err := in.mqConn.Close(); err != nil {
			lg.Sugar().Errorw("failed to close mq connection", "err", err)
		}
	}
	if in.cache != nil {
		if err := in.cache.Close(); err != nil {
			lg.Sugar().Errorw("failed to close cache", "err", err)
		}
	}
	if in.db != nil {
		if err := in.db.Close(); err != nil {
			lg.Sugar().Errorw("failed to close database connection", "err", err)
		}
	}
}

// initConfigAndLogger 初始化配置和日志器
func initConfigAndLogger() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, cfg.App.Name, cfg.App.Version)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, lg, nil
}

// initDatabase 初始化数据库连接并执行迁移，迁移在 HTTP 服务启动前完成
func initDatabase(cfg *config.Config, lg *zap.Logger) (*database.DB, error) {
	db, err := database.New(cfg, lg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	lg.Sugar().Infow("using migrations directory", "path", cfg.Migrations.Dir)
	if err := db.RunMigrations(cfg.Migrations.Dir); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run database migrations: %w", err)
	}
	return db, nil
}

// initCache Redis 不可用时降级为内存缓存
func initCache(cfg *config.Config, lg *zap.Logger) (cache.Cache, *redis.Client) {
	c, err := cache.New(cfg)
	if err != nil {
		lg.Sugar().Warnw("failed to initialize cache, falling back to memory cache", "type", cfg.Cache.Type, "error", err)
		return cache.NewMemoryCache(), nil
	}
	if rc, ok := c.(*cache.RedisCache); ok {
		lg.Sugar().Infow("cache enabled", "type", "redis", "addr", cfg.Redis.Addr(), "ttl", cfg.Cache.TTL)
		return c, rc.Client()
	}
	lg.Sugar().Infow("cache initialized", "enabled", cfg.Cache.Enabled, "type", cfg.Cache.Type)
	return c, nil
}

// initPublisher 消息队列未启用或连接失败时事件只记录不投递
func initPublisher(cfg *config.Config, lg *zap.Logger) (mq.Publisher, *mq.ConnectionManager) {
	if !cfg.MQ.Enabled {
		return mq.NopPublisher{}, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cm := mq.NewConnectionManager(cfg.MQ, lg)
	if err := cm.Connect(ctx); err != nil {
		lg.Sugar().Warnw("failed to connect to RabbitMQ, order events disabled", "error", err)
		return mq.NopPublisher{}, nil
	}
	pub, err := mq.NewRabbitPublisher(cm, cfg.MQ.Exchange, lg)
	if err != nil {
		lg.Sugar().Warnw("failed to declare order exchange, order events disabled", "error", err)
		_ = cm.Close()
		return mq.NopPublisher{}, nil
	}
	return pub, cm
}

// initAudit MongoDB 不可用时使用内存审计
func initAudit(cfg *config.Config, lg *zap.Logger) (audit.Recorder, *audit.MongoRecorder) {
	if !cfg.Audit.Enabled {
		return audit.NewMemoryRecorder(), nil
	}
	rec, err := audit.NewMongoRecorder(cfg.Audit, lg)
	if err != nil {
		lg.Sugar().Warnw("failed to connect to audit store, using memory recorder", "error", err)
		return audit.NewMemoryRecorder(), nil
	}
	return rec, rec
}

// newGateway 未配置 Razorpay 密钥时使用本地网关，仅限非生产环境
func newGateway(cfg *config.Config, lg *zap.Logger) (payment.Gateway, error) {
	if cfg.Payment.KeyID != "" && cfg.Payment.KeySecret != "" {
		return payment.NewRazorpay(cfg.Payment, lg), nil
	}
	if cfg.App.Env == "prod" {
		return nil, errors.New("payment key_id and key_secret are required in prod")
	}
	lg.Sugar().Warnw("payment keys not configured, using local gateway")
	return payment.NewFake(cfg.Payment.KeySecret), nil
}

// loadLocation 业务时区，未配置时为 UTC
func loadLocation(name string) (*time.Location, error) {
	if name == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return loc, nil
}

// initDependencies 初始化依赖注入链：仓储 -> 服务 -> API处理器
func initDependencies(cfg *config.Config, in *infra, lg *zap.Logger) (*router.Dependencies, error) {
	loc, err := loadLocation(cfg.App.Timezone)
	if err != nil {
		return nil, err
	}
	clk := clock.New(loc)

	gateway, err := newGateway(cfg, lg)
	if err != nil {
		return nil, err
	}

	db := in.db.DB
	userRepo := repo.NewUserRepository(db)
	walletRepo := repo.NewWalletRepository(db)
	addressRepo := repo.NewAddressRepository(db)
	categoryRepo := repo.NewCategoryRepository(db)
	offerRepo := repo.NewOfferRepository(db)
	couponRepo := repo.NewCouponRepository(db)
	cartRepo := repo.NewCartRepository(db)
	wishlistRepo := repo.NewWishlistRepository(db)
	orderRepo := repo.NewOrderRepository(db)

	// 商品读多写少，可选缓存装饰器
	var productRepo repo.ProductRepository = repo.NewProductRepository(db)
	if cfg.Cache.Enabled {
		productRepo = repo.NewCachedProductRepository(productRepo, in.cache, cfg.Cache.TTL, lg)
	}

	resolver := promotion.NewResolver(offerRepo, clk)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := mw.NewMetrics("storefront", registry)

	userJWT := service.NewUserJWTService(cfg, lg)
	adminJWT := service.NewAdminJWTService(cfg, lg)
	userService := service.NewUserService(userRepo, userJWT, adminJWT, service.NewGoogleVerifier(cfg.Google.ClientID), in.cache, lg)
	addressService := service.NewAddressService(addressRepo, lg)
	walletService := service.NewWalletService(walletRepo, lg)
	categoryService := service.NewCategoryService(categoryRepo, lg)
	productService := service.NewProductService(productRepo, categoryRepo, resolver, lg)
	offerService := service.NewOfferService(offerRepo, categoryRepo, loc, lg)
	couponService := service.NewCouponService(couponRepo, cartRepo, clk, lg)
	cartService := service.NewCartService(cartRepo, productRepo, resolver, lg)
	wishlistService := service.NewWishlistService(wishlistRepo, productRepo, resolver, lg)
	reportService := service.NewReportService(orderRepo, offerRepo, productRepo, clk, lg)
	orderService := service.NewOrderService(service.OrderServiceDeps{
		Orders:    orderRepo,
		Products:  productRepo,
		Addresses: addressRepo,
		Coupons:   couponService,
		Resolver:  resolver,
		Gateway:   gateway,
		Publisher: in.publisher,
		Audit:     in.audit,
		Metrics:   metrics,
		Clock:     clk,
		Shop:      cfg.Shop,
		RequestID: mw.RequestIDFromContext,
		Logger:    lg,
	})

	// 缓存关闭时幂等键仍需去重，退回进程内存储
	idempotencyStore := in.cache
	if !cfg.Cache.Enabled {
		idempotencyStore = cache.NewMemoryCache()
	}

	if err := api.RegisterValidators(); err != nil {
		return nil, fmt.Errorf("register validators: %w", err)
	}

	return &router.Dependencies{
		UserHandler:      api.NewUserHandler(userService, addressService, walletService, lg),
		CatalogHandler:   api.NewCatalogHandler(productService, categoryService, offerService, lg),
		CartHandler:      api.NewCartHandler(cartService, wishlistService, couponService, lg),
		OrderHandler:     api.NewOrderHandler(orderService, reportService, lg),
		UserJWT:          userJWT,
		AdminJWT:         adminJWT,
		StatusChecker:    userService,
		Metrics:          metrics,
		Limiter:          limiter.New(in.redis, limiter.FromConfig(cfg.RateLimit)),
		IdempotencyStore: idempotencyStore,
	}, nil
}

// startServer 启动服务器并处理优雅关闭
func startServer(cfg *config.Config, handler http.Handler, lg *zap.Logger) {
	addr := fmt.Sprintf(":%d", cfg.App.Port)
	lg.Sugar().Infow("server starting", "addr", addr)
	srv := &http.Server{Addr: addr, Handler: handler, ReadHeaderTimeout: 5 * time.Second}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Sugar().Errorw("server error", "err", err)
			return
		}
	case <-quit:
		lg.Sugar().Infow("shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		lg.Sugar().Errorw("server shutdown error", "err", err)
	}
	lg.Sugar().Infow("server exited")
}

func main() {
	cfg, lg, err := initConfigAndLogger()
	if err != nil {
		log.Fatalf("failed to initialize config and logger: %v", err)
	}
	defer func() { _ = lg.Sync() }()

	in := &infra{}
	defer in.close(lg)

	if in.db, err = initDatabase(cfg, lg); err != nil {
		lg.Sugar().Fatalw("failed to initialize database", "err", err)
	}
	in.cache, in.redis = initCache(cfg, lg)
	in.publisher, in.mqConn = initPublisher(cfg, lg)
	in.audit, in.mongo = initAudit(cfg, lg)

	deps, err := initDependencies(cfg, in, lg)
	if err != nil {
		lg.Sugar().Errorw("failed to initialize dependencies", "err", err)
		return
	}

	handler := router.New().Setup(cfg, deps, lg)
	startServer(cfg, handler, lg)
}
