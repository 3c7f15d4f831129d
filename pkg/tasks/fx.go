package tasks

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	"botframe/pkg/config"
	"botframe/pkg/logger"
)

// Module is the fx module for scheduled tasks.
var Module = fx.Module("tasks",
	fx.Provide(NewSchedulerFx),
)

// NewSchedulerFx creates the scheduler in the configured timezone. It is
// started with the app unless tasks are disabled.
func NewSchedulerFx(lc fx.Lifecycle, log *logger.Logger, cfg *config.Config) (*Scheduler, error) {
	loc := time.Local
	if cfg.Tasks.Timezone != "" {
		var err error
		if loc, err = time.LoadLocation(cfg.Tasks.Timezone); err != nil {
			return nil, fmt.Errorf("tasks timezone: %w", err)
		}
	}

	s := New(log, Options{Location: loc})
	if !cfg.Tasks.Enabled {
		return s, nil
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return s.Start()
		},
		OnStop: func(ctx context.Context) error {
			return s.Stop()
		},
	})
	return s, nil
}
