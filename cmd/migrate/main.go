// Package main 提供数据库迁移管理的命令行工具
// 基于 golang-migrate，支持向上迁移、回滚、迁移到指定版本、强制版本与状态查询
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"go.uber.org/zap"

	"github.com/MorseWayne/storefront/internal/config"
	"github.com/MorseWayne/storefront/internal/database"
	"github.com/MorseWayne/storefront/internal/logger"
)

const usage = `Usage: %s -action=[up|down|version|force|status] [options]

Examples:
  ./migrate -action=up                  # run all pending migrations
  ./migrate -action=down -steps=1       # rollback one migration
  ./migrate -action=version -target=1   # migrate to a specific version
  ./migrate -action=force -target=0     # clear dirty state
  ./migrate -action=status              # print current version
`

func main() {
	var (
		action = flag.String("action", "up", "Migration action: up, down, version, force, status")
		steps  = flag.Int("steps", 1, "Number of steps for down migration")
		target = flag.Uint("target", 0, "Target version for version or force migration")
		dir    = flag.String("dir", "", "Migrations directory, overrides MIGRATIONS_DIR")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), usage, os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	lg, err := logger.New(cfg.App.Env, cfg.Log.Level, cfg.Log.Encoding, "storefront-migrate", cfg.App.Version)
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}

	migrationsDir := cfg.Migrations.Dir
	if *dir != "" {
		migrationsDir = *dir
	}

	db, err := database.New(cfg, lg)
	if err != nil {
		lg.Sugar().Fatalw("failed to connect to database", "error", err)
	}

	err = run(db, *action, migrationsDir, *steps, *target, lg)
	if cerr := db.Close(); cerr != nil {
		lg.Sugar().Errorw("failed to close database", "error", cerr)
	}
	if err != nil {
		lg.Sugar().Errorw("migration failed", "action", *action, "error", err)
		os.Exit(1)
	}
}

func run(db *database.DB, action, dir string, steps int, target uint, lg *zap.Logger) error {
	switch action {
	case "up":
		return db.RunMigrations(dir)
	case "down":
		lg.Sugar().Infow("running down migrations", "steps", steps)
		return db.MigrateDown(dir, steps)
	case "version":
		if target == 0 {
			return fmt.Errorf("target version must be specified for version migration")
		}
		lg.Sugar().Infow("migrating to version", "target", target)
		return db.MigrateToVersion(dir, target)
	case "force":
		// 版本 0 表示重置到无迁移状态
		lg.Sugar().Warnw("forcing migration version, dirty state will be cleared", "target", target)
		return db.ForceMigrationVersion(dir, target)
	case "status":
		v, dirty, err := db.Version(dir)
		if err != nil {
			return err
		}
		lg.Sugar().Infow("migration status", "version", v, "dirty", dirty)
		return nil
	default:
		flag.Usage()
		return fmt.Errorf("unknown action %q", action)
	}
}
