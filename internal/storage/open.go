package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/terra-clan/training-engine/internal/config"
)

// Open builds the store selected by cfg.Driver
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	var (
		s   Store
		err error
	)

	switch cfg.Driver {
	case config.DriverMemory:
		s = NewMemoryStore()
	case config.DriverSQLite:
		s, err = NewSQLiteStore(ctx, cfg.Path)
	case config.DriverPostgres:
		s, err = NewPostgresStore(ctx, PostgresConfig{
			DSN:          cfg.DSN,
			Table:        cfg.Table,
			MaxOpenConns: cfg.MaxOpenConns,
			MaxIdleConns: cfg.MaxIdleConns,
			MaxLifetime:  cfg.MaxLifetime,
		})
	case config.DriverRedis:
		s, err = NewRedisStore(ctx, RedisConfig{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.KeyPrefix,
		})
	default:
		return nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Driver, err)
	}

	slog.Info("state store opened", "driver", cfg.Driver)
	return s, nil
}
