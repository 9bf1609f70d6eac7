package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/randalmurphal/hrdesk/internal/config"
	"github.com/randalmurphal/hrdesk/internal/db"
	"github.com/randalmurphal/hrdesk/internal/db/driver"
	deskerrors "github.com/randalmurphal/hrdesk/internal/errors"
)

// NewBackend opens the backend selected by cfg.Driver.
func NewBackend(ctx context.Context, cfg config.StorageConfig) (Backend, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return NewMemoryBackend(), nil

	case config.DriverFile:
		return NewFileBackend(cfg.Path), nil

	case config.DriverSQLite, config.DriverPostgres:
		dialect, err := driver.ParseDialect(cfg.Driver)
		if err != nil {
			return nil, deskerrors.ErrConfigInvalid("storage.driver", err.Error())
		}
		dsn := cfg.Path
		if dialect == driver.DialectPostgres {
			dsn = cfg.DSN
		}
		d, err := db.OpenWithDialect(dsn, dialect)
		if err != nil {
			return nil, deskerrors.ErrPersistenceFailure("open", err)
		}
		b, err := NewDatabaseBackend(ctx, d)
		if err != nil {
			_ = d.Close()
			return nil, err
		}
		return b, nil

	case config.DriverRedis:
		return DialRedis(ctx, &redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, cfg.Redis.Key)

	default:
		return nil, deskerrors.ErrConfigInvalid("storage.driver", fmt.Sprintf("unknown driver %q", cfg.Driver))
	}
}
