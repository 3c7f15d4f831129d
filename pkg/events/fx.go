package events

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"botframe/pkg/config"
	"botframe/pkg/logger"
)

// Module is the fx module for lifecycle events.
var Module = fx.Module("events",
	fx.Provide(NewEmitterFx),
)

// NewEmitterFx creates the emitter and, when configured, attaches the Redis
// publisher sink using the shared Redis settings.
func NewEmitterFx(lc fx.Lifecycle, log *logger.Logger, cfg *config.Config) (*Emitter, error) {
	emitter := NewEmitter(log)
	if !cfg.Events.RedisPublish {
		return emitter, nil
	}

	publisher, err := NewRedisPublisher(log, &RedisPublisherConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		Prefix:     cfg.Events.Prefix,
		BufferSize: cfg.Events.BufferSize,
	})
	if err != nil {
		return nil, err
	}
	emitter.AddSink(publisher)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return publisher.Start()
		},
		OnStop: func(ctx context.Context) error {
			log.Debug("Stopping event publisher", zap.Any("metrics", publisher.GetMetrics()))
			return publisher.Stop()
		},
	})

	return emitter, nil
}
