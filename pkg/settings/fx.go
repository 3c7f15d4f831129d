package settings

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	"botframe/pkg/config"
	"botframe/pkg/logger"
)

// Module is the fx module for settings storage.
var Module = fx.Module("settings",
	fx.Provide(NewStoreFx),
	fx.Provide(NewGuilds),
)

// NewStore creates the backend selected by cfg.Settings.Backend. Redis uses
// the shared connection settings.
func NewStore(ctx context.Context, log *logger.Logger, cfg *config.Config) (Store, error) {
	switch BackendType(cfg.Settings.Backend) {
	case BackendMemory:
		return NewMemoryStore(), nil

	case BackendFile, "":
		return NewFileStore(log, &FileStoreConfig{FilePath: config.ExpandPath(cfg.Settings.FilePath)})

	case BackendRedis:
		if cfg.Redis.Addr == "" {
			return nil, fmt.Errorf("redis address is required")
		}
		return NewRedisStore(ctx, log, &RedisStoreConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			Prefix:   cfg.Settings.KeyPrefix,
		})

	default:
		return nil, fmt.Errorf("unknown settings backend: %s", cfg.Settings.Backend)
	}
}

// NewStoreFx creates the store and closes it on shutdown.
func NewStoreFx(lc fx.Lifecycle, log *logger.Logger, cfg *config.Config) (Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	store, err := NewStore(ctx, log.Named("settings"), cfg)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}
