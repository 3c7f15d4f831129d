package main

import (
	"context"
	"strings"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"botframe/pkg/commands"
	"botframe/pkg/config"
	"botframe/pkg/events"
	"botframe/pkg/inhibitors"
	"botframe/pkg/logger"
	"botframe/pkg/platform"
	"botframe/pkg/platform/discord"
	"botframe/pkg/platform/telegram"
	"botframe/pkg/settings"
	"botframe/pkg/tasks"
	"botframe/pkg/version"
)

// appModules returns the modules shared by every command that runs the bot.
func appModules() fx.Option {
	return fx.Options(
		fx.Supply(config.Path(configPath)),
		config.Module,
		logger.Module,
		events.Module,
		settings.Module,
		fx.Provide(func(g *settings.Guilds) commands.PrefixStore { return g }),
		inhibitors.Module,
		commands.Module,
		platform.Module,
		tasks.Module,
		fx.Invoke(registerTasks),
		fx.Invoke(logDispatchEvents),
	)
}

type gatewayParams struct {
	fx.In

	Log     *logger.Logger
	Config  *config.Config
	Manager *platform.Manager
	Handler *commands.Handler
}

// registerGateways adds the network adapters enabled in config.
func registerGateways(p gatewayParams) error {
	if p.Config.Discord.Enabled {
		a, err := discord.New(p.Log, p.Config.Discord, p.Handler)
		if err != nil {
			return err
		}
		if err := p.Manager.Register(a); err != nil {
			return err
		}
	}
	if p.Config.Telegram.Enabled {
		a, err := telegram.New(p.Log, p.Config.Telegram, p.Handler)
		if err != nil {
			return err
		}
		if err := p.Manager.Register(a); err != nil {
			return err
		}
	}
	return nil
}

// registerTasks adds the built-in maintenance tasks.
func registerTasks(log *logger.Logger, s *tasks.Scheduler, h *commands.Handler) error {
	return s.Add(&tasks.Task{
		ID:          "status-report",
		Category:    "maintenance",
		Description: "Log registry and cooldown statistics",
		Schedule:    "@hourly",
		Run: func(ctx context.Context) error {
			registry := h.Registry()
			log.Info("Status report",
				zap.String("version", version.GetVersion()),
				zap.Int("commands", len(registry.List())),
				zap.String("categories", strings.Join(registry.CategoryNames(), ",")))
			return nil
		},
	})
}

// logDispatchEvents logs dispatch failures and blocks at info level.
func logDispatchEvents(log *logger.Logger, emitter *events.Emitter) {
	log = log.Named("dispatch")
	emitter.On(events.Error, func(ctx context.Context, ev *events.Event) error {
		log.Error("Command error",
			zap.String("command", ev.Command),
			zap.String("invocation_id", ev.InvocationID),
			zap.Error(ev.Err))
		return nil
	})
	for _, name := range []events.Name{events.CommandBlocked, events.MessageBlocked, events.CommandLocked} {
		emitter.On(name, func(ctx context.Context, ev *events.Event) error {
			log.Info("Dispatch blocked",
				zap.String("event", string(ev.Name)),
				zap.String("command", ev.Command),
				zap.String("reason", ev.Reason))
			return nil
		})
	}
}
