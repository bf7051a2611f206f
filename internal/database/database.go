// Package database 提供数据库连接、事务与迁移功能。
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	// 注册 mysql 驱动
	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/MorseWayne/storefront/internal/config"
)

// DB 封装数据库连接
type DB struct {
	*sql.DB
	logger *zap.Logger
	dsn    string
}

// New 创建数据库连接
func New(cfg *config.Config, logger *zap.Logger) (*DB, error) {
	dsn := cfg.Database.DSN()

	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.Info("database connected",
		zap.String("host", cfg.Database.Host),
		zap.Int("port", cfg.Database.Port),
		zap.String("database", cfg.Database.DBName),
	)

	return &DB{DB: sqlDB, logger: logger, dsn: dsn}, nil
}

// WithTx 在事务中执行 fn，fn 返回错误或 panic 时回滚
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// migrator 使用独立连接创建 migrate 实例，调用方负责 close
func (db *DB) migrator(migrationsDir string) (*migrate.Migrate, func(), error) {
	migrateSQLDB, err := sql.Open("mysql", db.dsn+"&multiStatements=true")
	if err != nil {
		return nil, nil, fmt.Errorf("open database for migration: %w", err)
	}

	driver, err := mysql.WithInstance(migrateSQLDB, &mysql.Config{})
	if err != nil {
		_ = migrateSQLDB.Close()
		return nil, nil, fmt.Errorf("create mysql driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(fmt.Sprintf("file://%s", migrationsDir), "mysql", driver)
	if err != nil {
		_ = migrateSQLDB.Close()
		return nil, nil, fmt.Errorf("create migrate instance: %w", err)
	}

	closeFn := func() {
		_, _ = m.Close()
		_ = migrateSQLDB.Close()
	}
	return m, closeFn, nil
}

// currentVersion 读取当前版本，脏状态返回错误
func currentVersion(m *migrate.Migrate) (uint, error) {
	v, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return 0, fmt.Errorf("get current version: %w", err)
	}
	if dirty {
		return v, fmt.Errorf("database is in dirty state at version %d, please check and fix manually", v)
	}
	return v, nil
}

// RunMigrations 执行所有待执行的迁移，应在 HTTP 服务启动前调用
func (db *DB) RunMigrations(migrationsDir string) error {
	m, closeFn, err := db.migrator(migrationsDir)
	if err != nil {
		return err
	}
	defer closeFn()

	from, err := currentVersion(m)
	if err != nil {
		return err
	}
	db.logger.Info("current migration version", zap.Uint("version", from))

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			db.logger.Info("no new migrations to apply")
			return nil
		}
		return fmt.Errorf("run migrations: %w", err)
	}

	to, _, err := m.Version()
	if err != nil {
		return fmt.Errorf("get new version: %w", err)
	}
	db.logger.Info("migrations completed successfully",
		zap.Uint("from_version", from),
		zap.Uint("to_version", to),
	)
	return nil
}

// MigrateDown 回滚 steps 个版本，生产环境慎用
func (db *DB) MigrateDown(migrationsDir string, steps int) error {
	m, closeFn, err := db.migrator(migrationsDir)
	if err != nil {
		return err
	}
	defer closeFn()

	from, err := currentVersion(m)
	if err != nil {
		return err
	}
	db.logger.Info("starting migration rollback", zap.Uint("current_version", from), zap.Int("steps", steps))

	if err := m.Steps(-steps); err != nil {
		return fmt.Errorf("migrate down: %w", err)
	}

	to, _, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("get new version: %w", err)
	}
	db.logger.Info("migration rollback completed", zap.Uint("from_version", from), zap.Uint("to_version", to))
	return nil
}

// MigrateToVersion 迁移到指定版本
func (db *DB) MigrateToVersion(migrationsDir string, version uint) error {
	m, closeFn, err := db.migrator(migrationsDir)
	if err != nil {
		return err
	}
	defer closeFn()

	from, err := currentVersion(m)
	if err != nil {
		return err
	}
	db.logger.Info("migrating to specific version", zap.Uint("current_version", from), zap.Uint("target_version", version))

	if err := m.Migrate(version); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			db.logger.Info("already at target version", zap.Uint("version", version))
			return nil
		}
		return fmt.Errorf("migrate to version %d: %w", version, err)
	}
	return nil
}

// ForceMigrationVersion 强制设置版本以清除脏状态，只用于人工修复
func (db *DB) ForceMigrationVersion(migrationsDir string, version uint) error {
	m, closeFn, err := db.migrator(migrationsDir)
	if err != nil {
		return err
	}
	defer closeFn()

	db.logger.Info("forcing migration version", zap.Uint("version", version))
	if err := m.Force(int(version)); err != nil {
		return fmt.Errorf("force migration version: %w", err)
	}
	return nil
}

// Version 返回当前版本与脏状态
func (db *DB) Version(migrationsDir string) (uint, bool, error) {
	m, closeFn, err := db.migrator(migrationsDir)
	if err != nil {
		return 0, false, err
	}
	defer closeFn()

	v, dirty, err := m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}
