package commands

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"botframe/pkg/arguments"
	"botframe/pkg/config"
	"botframe/pkg/events"
	"botframe/pkg/logger"
	"botframe/pkg/prompt"
	"botframe/pkg/types"
)

// Module provides the command system.
var Module = fx.Module("commands",
	fx.Provide(types.NewRegistry),
	fx.Provide(NewHubFx),
	fx.Provide(NewRegistryFx),
	fx.Provide(NewRunnerFx),
	fx.Provide(NewResolverFx),
	fx.Provide(NewHandlerFx),
	fx.Invoke(registerBuiltins),
)

// NewHubFx provides the prompt hub and closes it on shutdown.
func NewHubFx(lc fx.Lifecycle) *prompt.Hub {
	hub := prompt.NewHub()
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			hub.Close()
			return nil
		},
	})
	return hub
}

// NewRegistryFx provides the command registry.
func NewRegistryFx(log *logger.Logger, reg *types.Registry, emitter *events.Emitter, cfg *config.Config) (*Registry, error) {
	registry := NewRegistry(log, reg, emitter)
	handler, _ := cfg.Snapshot()
	if err := registry.SetAliasReplacement(handler.AliasReplacement); err != nil {
		return nil, err
	}
	return registry, nil
}

// NewRunnerFx provides the argument runner with the configured prompt
// defaults.
func NewRunnerFx(log *logger.Logger, hub *prompt.Hub, cfg *config.Config) *arguments.Runner {
	_, p := cfg.Snapshot()
	return arguments.NewRunner(log, hub, PromptDefaults(p))
}

type resolverParams struct {
	fx.In

	Registry *Registry
	Config   *config.Config
	Store    PrefixStore `optional:"true"`
}

// NewResolverFx provides the resolver with configured and guild prefixes.
func NewResolverFx(p resolverParams) *Resolver {
	handler, _ := p.Config.Snapshot()
	return NewResolver(p.Registry, HandlerPrefixes(handler, p.Store), handler.AllowMention)
}

type handlerParams struct {
	fx.In

	Log       *logger.Logger
	Config    *config.Config
	Registry  *Registry
	Resolver  *Resolver
	Runner    *arguments.Runner
	Hub       *prompt.Hub
	Emitter   *events.Emitter
	Inhibitor Inhibitor       `optional:"true"`
	Store     PrefixStore     `optional:"true"`
	Watcher   *config.Watcher `optional:"true"`
}

// NewHandlerFx provides the dispatch handler and hot-reloads its options
// from the config watcher.
func NewHandlerFx(p handlerParams) *Handler {
	handler, _ := p.Config.Snapshot()
	h := NewHandler(HandlerDeps{
		Log:       p.Log,
		Registry:  p.Registry,
		Resolver:  p.Resolver,
		Runner:    p.Runner,
		Hub:       p.Hub,
		Emitter:   p.Emitter,
		Inhibitor: p.Inhibitor,
	}, HandlerOptions(handler))

	if p.Watcher != nil {
		p.Watcher.AddHandler(func(cfg *config.Config) error {
			hc, pc := cfg.Snapshot()
			h.SetOptions(HandlerOptions(hc))
			p.Resolver.SetPrefixes(HandlerPrefixes(hc, p.Store), hc.AllowMention)
			p.Runner.SetDefaults(PromptDefaults(pc))
			return p.Registry.SetAliasReplacement(hc.AliasReplacement)
		})
	}
	return h
}

type builtinParams struct {
	fx.In

	Handler *Handler
	Log     *logger.Logger
	Store   PrefixStore `optional:"true"`
}

func registerBuiltins(p builtinParams) error {
	h, log := p.Handler, p.Log
	if err := RegisterBuiltinCommands(h, p.Store); err != nil {
		log.Error("Failed to register builtin commands", zap.Error(err))
		return err
	}

	log.Info("Registered builtin commands", zap.Int("count", len(h.Registry().List())))
	return nil
}

// HandlerOptions converts the handler config section.
func HandlerOptions(c config.HandlerConfig) Options {
	return Options{
		BlockBots:       c.BlockBots,
		BlockClient:     c.BlockClient,
		Owners:          c.Owners,
		SuperUsers:      c.SuperUsers,
		DefaultCooldown: c.DefaultCooldownDuration(),
		IgnoreCooldown:  c.IgnoreCooldown,
		HandleEdits:     c.HandleEdits,
	}
}

// HandlerPrefixes returns the configured prefixes plus the guild prefix
// when store is set.
func HandlerPrefixes(c config.HandlerConfig, store PrefixStore) []Prefix {
	prefixes := Static(c.Prefixes...)
	if store != nil {
		prefixes = append(prefixes, GuildPrefix(store))
	}
	return prefixes
}

// PromptDefaults converts the prompt config section.
func PromptDefaults(c config.PromptConfig) arguments.PromptOptions {
	opts := arguments.PromptOptions{
		Retries:    arguments.Int(c.Retries),
		Time:       c.TimeoutDuration(),
		CancelWord: c.CancelWord,
		StopWord:   c.StopWord,
		Limit:      c.Limit,
		Breakout:   arguments.Bool(c.Breakout),
	}
	if c.StartText != "" {
		opts.Start = arguments.Say(c.StartText)
	}
	if c.RetryText != "" {
		opts.Retry = arguments.Say(c.RetryText)
	}
	if c.TimeoutText != "" {
		opts.Timeout = arguments.Say(c.TimeoutText)
	}
	if c.EndedText != "" {
		opts.Ended = arguments.Say(c.EndedText)
	}
	if c.CancelText != "" {
		opts.Cancel = arguments.Say(c.CancelText)
	}
	return opts
}
