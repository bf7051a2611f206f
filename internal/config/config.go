// Package config 负责加载应用配置：.env 文件、环境变量以及可选的 YAML 配置文件。
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config 应用全部配置
type Config struct {
	App        AppConfig        `mapstructure:"app"`
	Log        LogConfig        `mapstructure:"log"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Migrations MigrationsConfig `mapstructure:"migrations"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Cache      CacheConfig      `mapstructure:"cache"`
	JWT        JWTConfig        `mapstructure:"jwt"`
	CORS       CORSConfig       `mapstructure:"cors"`
	Payment    PaymentConfig    `mapstructure:"payment"`
	Google     GoogleConfig     `mapstructure:"google"`
	MQ         MQConfig         `mapstructure:"mq"`
	Audit      AuditConfig      `mapstructure:"audit"`
	Shop       ShopConfig       `mapstructure:"shop"`
	RateLimit  RateLimitConfig  `mapstructure:"rate_limit"`
}

type AppConfig struct {
	Name            string        `mapstructure:"name"`
	Env             string        `mapstructure:"env"`
	Version         string        `mapstructure:"version"`
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// 业务日期按该时区切分（报表、优惠有效期）
	Timezone string `mapstructure:"timezone"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"name"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
}

// DSN 返回 MySQL 连接串。clientFoundRows 使 RowsAffected 返回匹配行数而非变更行数
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=true&loc=Local&clientFoundRows=true",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}

type MigrationsConfig struct {
	Dir string `mapstructure:"dir"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr 返回 host:port
func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Type    string        `mapstructure:"type"` // redis | memory
	TTL     time.Duration `mapstructure:"ttl"`
}

type JWTConfig struct {
	Secret          string        `mapstructure:"secret"`
	AdminSecret     string        `mapstructure:"admin_secret"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	AllowedMethods []string `mapstructure:"allowed_methods"`
	AllowedHeaders []string `mapstructure:"allowed_headers"`
}

type PaymentConfig struct {
	KeyID     string `mapstructure:"key_id"`
	KeySecret string `mapstructure:"key_secret"`
	Currency  string `mapstructure:"currency"`
}

type GoogleConfig struct {
	ClientID string `mapstructure:"client_id"`
}

type MQConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	VHost    string `mapstructure:"vhost"`
	Exchange string `mapstructure:"exchange"`
}

type AuditConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type ShopConfig struct {
	// 固定运费，字符串形式避免浮点误差
	ShippingCharge   string `mapstructure:"shipping_charge"`
	ReturnWindowDays int    `mapstructure:"return_window_days"`
}

// Shipping 解析运费
func (c *ShopConfig) Shipping() decimal.Decimal {
	d, err := decimal.NewFromString(c.ShippingCharge)
	if err != nil {
		return decimal.Zero
	}
	return d
}

type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Rate    int64         `mapstructure:"rate"`
	Burst   int64         `mapstructure:"burst"`
	Window  time.Duration `mapstructure:"window"`
}

// Load 加载配置。优先级：环境变量 > CONFIG_FILE 指定的 YAML > 默认值。
// 环境变量名为 section_key 的大写形式，例如 DATABASE_HOST、JWT_ADMIN_SECRET。
func Load() (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file := v.GetString("config_file"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 逗号分隔的环境变量展开为切片
	cfg.CORS.AllowedOrigins = splitList(cfg.CORS.AllowedOrigins)
	cfg.CORS.AllowedMethods = splitList(cfg.CORS.AllowedMethods)
	cfg.CORS.AllowedHeaders = splitList(cfg.CORS.AllowedHeaders)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "storefront")
	v.SetDefault("app.env", "dev")
	v.SetDefault("app.version", "0.1.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.request_timeout", 10*time.Second)
	v.SetDefault("app.shutdown_timeout", 15*time.Second)
	v.SetDefault("app.timezone", "Local")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")

	v.SetDefault("database.host", "127.0.0.1")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "root")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "storefront")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 10)

	v.SetDefault("migrations.dir", "migrations")

	v.SetDefault("redis.host", "127.0.0.1")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.type", "redis")
	v.SetDefault("cache.ttl", 5*time.Minute)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.admin_secret", "")
	v.SetDefault("jwt.access_token_ttl", 15*time.Minute)
	v.SetDefault("jwt.refresh_token_ttl", 7*24*time.Hour)

	v.SetDefault("cors.allowed_origins", []string{"*"})
	v.SetDefault("cors.allowed_methods", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"})
	v.SetDefault("cors.allowed_headers", []string{"Content-Type", "Authorization", "Idempotency-Key", "X-Request-ID"})

	v.SetDefault("payment.key_id", "")
	v.SetDefault("payment.key_secret", "")
	v.SetDefault("payment.currency", "INR")

	v.SetDefault("google.client_id", "")

	v.SetDefault("mq.enabled", false)
	v.SetDefault("mq.host", "127.0.0.1")
	v.SetDefault("mq.port", 5672)
	v.SetDefault("mq.username", "guest")
	v.SetDefault("mq.password", "guest")
	v.SetDefault("mq.vhost", "/")
	v.SetDefault("mq.exchange", "storefront.orders")

	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.uri", "mongodb://127.0.0.1:27017")
	v.SetDefault("audit.database", "storefront")
	v.SetDefault("audit.collection", "order_audit")

	v.SetDefault("shop.shipping_charge", "0")
	v.SetDefault("shop.return_window_days", 7)

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.rate", 10)
	v.SetDefault("rate_limit.burst", 20)
	v.SetDefault("rate_limit.window", time.Minute)

	v.SetDefault("config_file", "")
}

// Validate 校验关键配置
func (c *Config) Validate() error {
	var errs []error
	if c.App.Port <= 0 || c.App.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid app.port: %d", c.App.Port))
	}
	if c.JWT.Secret == "" {
		errs = append(errs, errors.New("jwt.secret is required"))
	}
	if c.JWT.AdminSecret == "" {
		errs = append(errs, errors.New("jwt.admin_secret is required"))
	}
	if c.JWT.Secret != "" && c.JWT.Secret == c.JWT.AdminSecret {
		errs = append(errs, errors.New("jwt.admin_secret must differ from jwt.secret"))
	}
	if c.Shop.ReturnWindowDays <= 0 {
		errs = append(errs, fmt.Errorf("invalid shop.return_window_days: %d", c.Shop.ReturnWindowDays))
	}
	if _, err := decimal.NewFromString(c.Shop.ShippingCharge); err != nil {
		errs = append(errs, fmt.Errorf("invalid shop.shipping_charge: %w", err))
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("invalid app.timezone: %w", err))
	}
	return errors.Join(errs...)
}

// Location 返回业务时区
func (c *AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
