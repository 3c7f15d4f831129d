package config

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"botframe/pkg/logger"
)

// Module provides configuration for fx dependency injection.
var Module = fx.Module("config",
	fx.Provide(ProvideLoader),
	fx.Provide(ProvideConfig),
	fx.Provide(ProvideLoggerConfig),
	fx.Provide(ProvideWatcher),
)

// Path is the optional explicit config file location supplied by the CLI.
type Path string

type loaderParams struct {
	fx.In

	Path Path `optional:"true"`
}

// ProvideLoader provides a configuration loader.
func ProvideLoader() *Loader {
	return NewLoader()
}

// ProvideConfig provides loaded and validated configuration.
func ProvideConfig(loader *Loader, p loaderParams) (*Config, error) {
	cfg, err := loader.Load(string(p.Path))
	if err != nil {
		return nil, err
	}

	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// ProvideLoggerConfig exposes the logger section to logger.Module.
func ProvideLoggerConfig(cfg *Config) *logger.Config {
	return cfg.Logger.ToLoggerConfig()
}

// ProvideWatcher provides a configuration watcher with hot-reload.
func ProvideWatcher(loader *Loader, cfg *Config, lc fx.Lifecycle, log *logger.Logger) (*Watcher, error) {
	watcher := NewWatcher(loader, cfg, log)

	watcher.AddHandler(func(newCfg *Config) error {
		handler, _ := newCfg.Snapshot()
		log.Info("Configuration reloaded",
			zap.Strings("prefixes", handler.Prefixes),
			zap.Int("owners", len(handler.Owners)),
		)
		return nil
	})

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Debug("Starting configuration watcher")
			return watcher.Start()
		},
		OnStop: func(ctx context.Context) error {
			watcher.Stop()
			return nil
		},
	})

	return watcher, nil
}
