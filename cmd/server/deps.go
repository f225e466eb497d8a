package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/course-checkout/internal/adapter/storage"
	"github.com/rl1809/course-checkout/internal/config"
	"github.com/rl1809/course-checkout/internal/logging"
)

func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	return cfg, logger, nil
}

func openLedger(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, *storage.SQLAdapter, error) {
	db, err := storage.Open(ctx, cfg.Driver, cfg.DSN, storage.PoolOptions{
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
	})
	if err != nil {
		return nil, nil, err
	}
	adapter, err := storage.NewSQLAdapter(db, cfg.Driver)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, adapter, nil
}

func openRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("connect redis %s: %w", cfg.Addr, err)
	}
	return rdb, nil
}
