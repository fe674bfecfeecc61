package credstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/me/cognilearn/internal/config"
	"github.com/me/cognilearn/internal/logging"
)

// Open builds the store selected by cfg, wrapped in a SealedStore for the
// token when cfg.EncryptToken is set.
func Open(ctx context.Context, cfg config.StoreConfig, logger *slog.Logger) (Store, error) {
	logger = logging.Component(logger, "credstore")

	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case config.DriverFile:
		st, err = NewFileStore(cfg.Path)
	case config.DriverSQLite:
		st, err = NewSQLiteStore(ctx, cfg.Path, logger)
	case config.DriverBolt:
		st, err = NewBoltStore(cfg.Path)
	case config.DriverRedis:
		st, err = NewRedisStore(ctx, cfg.RedisURL, cfg.RedisPrefix)
	case config.DriverMemory:
		st = NewMemoryStore()
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	logger.Debug("credential store opened", "driver", cfg.Driver, "path", cfg.Path, "encrypt_token", cfg.EncryptToken)

	if !cfg.EncryptToken {
		return st, nil
	}
	key, err := ParseKey(cfg.Key)
	if err != nil {
		st.Close()
		return nil, err
	}
	return NewSealedStore(st, key, KeyToken), nil
}
