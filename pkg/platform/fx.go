package platform

import (
	"context"

	"go.uber.org/fx"

	"botframe/pkg/logger"
)

// Module provides the adapter manager. Adapters are registered by the
// application (see cmd/botframe).
var Module = fx.Module("platform",
	fx.Provide(NewManagerFx),
)

// NewManagerFx creates a manager bound to the fx lifecycle.
func NewManagerFx(lc fx.Lifecycle, log *logger.Logger) *Manager {
	manager := NewManager(log)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return manager.Start()
		},
		OnStop: func(ctx context.Context) error {
			return manager.Stop()
		},
	})

	return manager
}
