package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-export/config"
)

// Infra holds the optional stores. Either field is nil when disabled.
type Infra struct {
	DB    *sql.DB
	Redis redis.UniversalClient
}

// ConnectInfra opens the stores enabled in cfg and applies migrations when configured.
func ConnectInfra(ctx context.Context, cfg *config.AppConfig, logger *slog.Logger) (*Infra, error) {
	infra := &Infra{}

	if cfg.Postgres.Enabled {
		db, err := ConnectDB(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("connect db: %w", err)
		}
		infra.DB = db
		if cfg.Postgres.RunMigrationsOnStart {
			if err := RunMigrations(ctx, db, logger); err != nil {
				return nil, errors.Join(err, infra.Close())
			}
		}
	}

	if cfg.Redis.Enabled {
		client, err := ConnectRedis(ctx, cfg.Redis, logger)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("connect redis: %w", err), infra.Close())
		}
		infra.Redis = client
	}

	return infra, nil
}

// Close releases every open store.
func (i *Infra) Close() error {
	if i == nil {
		return nil
	}
	var errs []error
	if i.DB != nil {
		if err := i.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}
	if i.Redis != nil {
		if err := i.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
