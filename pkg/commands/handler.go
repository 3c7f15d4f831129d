package commands

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"botframe/pkg/arguments"
	"botframe/pkg/events"
	"botframe/pkg/flow"
	"botframe/pkg/logger"
	"botframe/pkg/platform"
	"botframe/pkg/prompt"
)

// Built-in block reasons.
const (
	ReasonClient    = "client"
	ReasonBot       = "bot"
	ReasonOwner     = "owner"
	ReasonSuperUser = "superUser"
	ReasonGuild     = "guild"
	ReasonDM        = "dm"
	ReasonInPrompt  = "inPrompt"
)

const maxContinueDepth = 8

// Options are the handler-level settings. They can be replaced at runtime.
type Options struct {
	BlockBots       bool
	BlockClient     bool
	Owners          []string
	SuperUsers      []string
	DefaultCooldown time.Duration
	IgnoreCooldown  []string
	HandleEdits     bool
}

// Handler runs the dispatch pipeline for inbound messages.
type Handler struct {
	log       *logger.Logger
	registry  *Registry
	resolver  *Resolver
	runner    *arguments.Runner
	hub       *prompt.Hub
	emitter   *events.Emitter
	inhibitor Inhibitor
	cooldowns *Cooldowns
	locks     *Locks
	optionsMu sync.RWMutex
	options   Options
	newID     func() string
}

// HandlerDeps groups the collaborators of a Handler. Inhibitor is optional.
type HandlerDeps struct {
	Log       *logger.Logger
	Registry  *Registry
	Resolver  *Resolver
	Runner    *arguments.Runner
	Hub       *prompt.Hub
	Emitter   *events.Emitter
	Inhibitor Inhibitor
}

// NewHandler creates a dispatch handler. Prompt breakout is wired to the
// resolver.
func NewHandler(deps HandlerDeps, opts Options) *Handler {
	h := &Handler{
		log:       deps.Log.Named("handler"),
		registry:  deps.Registry,
		resolver:  deps.Resolver,
		runner:    deps.Runner,
		hub:       deps.Hub,
		emitter:   deps.Emitter,
		inhibitor: deps.Inhibitor,
		cooldowns: NewCooldowns(),
		locks:     NewLocks(),
		options:   opts,
		newID:     func() string { return uuid.NewString() },
	}
	h.runner.SetBreakout(h.resolver.IsCommand)
	return h
}

// SetOptions replaces the handler options.
func (h *Handler) SetOptions(opts Options) {
	h.optionsMu.Lock()
	defer h.optionsMu.Unlock()
	h.options = opts
}

func (h *Handler) opts() Options {
	h.optionsMu.RLock()
	defer h.optionsMu.RUnlock()
	return h.options
}

// Registry returns the command registry.
func (h *Handler) Registry() *Registry { return h.registry }

// Resolver returns the prefix resolver.
func (h *Handler) Resolver() *Resolver { return h.resolver }

// Emitter returns the event emitter.
func (h *Handler) Emitter() *events.Emitter { return h.emitter }

// Cooldowns returns the cooldown table.
func (h *Handler) Cooldowns() *Cooldowns { return h.cooldowns }

// IsOwner reports whether userID is a configured owner.
func (h *Handler) IsOwner(userID string) bool {
	return slices.Contains(h.opts().Owners, userID)
}

// IsSuperUser reports whether userID is a super user. Owners are super users.
func (h *Handler) IsSuperUser(userID string) bool {
	o := h.opts()
	return slices.Contains(o.Owners, userID) || slices.Contains(o.SuperUsers, userID)
}

// invocation carries per-message dispatch state.
type invocation struct {
	id  string
	msg platform.Message
}

// Handle dispatches msg. It returns an error only when an unexpected error
// has no "error" listener.
func (h *Handler) Handle(ctx context.Context, msg platform.Message) error {
	inv := &invocation{id: h.newID(), msg: msg}
	opts := h.opts()

	if msg.Edited() && !opts.HandleEdits {
		return nil
	}
	if h.hub.Deliver(msg) {
		return nil
	}

	if blocked, err := h.runAllTypeInhibitors(ctx, inv, opts); blocked || err != nil {
		return err
	}
	if blocked, err := h.runPhaseInhibitor(ctx, inv, PhasePre); blocked || err != nil {
		return err
	}

	res, err := h.resolver.Resolve(ctx, msg)
	if err != nil {
		return h.emitError(ctx, inv, err, nil)
	}
	if res != nil && res.Command != nil {
		if msg.Edited() && !res.Command.Editable {
			return nil
		}
		return h.handleDirect(ctx, inv, res.Command, res.Content, res, false, 0)
	}

	ran, err := h.handleRegexAndConditional(ctx, inv)
	if err != nil || ran {
		return err
	}

	if res != nil {
		h.emit(ctx, inv, &events.Event{
			Name:   events.MessageInvalid,
			Prefix: res.Prefix,
			Alias:  res.Alias,
		})
	}
	return nil
}

// HandleDirect runs cmd on content, skipping resolution. With ignore set the
// post checks and cooldown are skipped.
func (h *Handler) HandleDirect(ctx context.Context, msg platform.Message, cmd *Command, content string, ignore bool) error {
	inv := &invocation{id: h.newID(), msg: msg}
	return h.handleDirect(ctx, inv, cmd, content, nil, ignore, 0)
}

func (h *Handler) runAllTypeInhibitors(ctx context.Context, inv *invocation, opts Options) (bool, error) {
	if blocked, err := h.runPhaseInhibitor(ctx, inv, PhaseAll); blocked || err != nil {
		return blocked, err
	}

	msg := inv.msg
	reason := ""
	switch {
	case opts.BlockClient && msg.Client() != nil && msg.Author().ID == msg.Client().Self().ID:
		reason = ReasonClient
	case opts.BlockBots && msg.Author().Bot:
		reason = ReasonBot
	case h.hub.Active(prompt.KeyOf(msg)):
		reason = ReasonInPrompt
	}
	if reason == "" {
		return false, nil
	}
	h.emit(ctx, inv, &events.Event{Name: events.MessageBlocked, Reason: reason})
	return true, nil
}

// runPhaseInhibitor runs the message-level inhibitors of phase.
func (h *Handler) runPhaseInhibitor(ctx context.Context, inv *invocation, phase Phase) (bool, error) {
	if h.inhibitor == nil {
		return false, nil
	}
	reason, err := h.inhibitor.Test(ctx, phase, inv.msg, nil)
	if err != nil {
		return true, h.emitError(ctx, inv, fmt.Errorf("%s inhibitors: %w", phase, err), nil)
	}
	if reason == "" {
		return false, nil
	}
	h.emit(ctx, inv, &events.Event{Name: events.MessageBlocked, Reason: reason})
	return true, nil
}

// runPostChecks applies the command-level checks. It reports whether the
// invocation was blocked.
func (h *Handler) runPostChecks(ctx context.Context, inv *invocation, cmd *Command) (bool, error) {
	msg := inv.msg
	userID := msg.Author().ID

	reason := ""
	switch {
	case cmd.OwnerOnly && !h.IsOwner(userID):
		reason = ReasonOwner
	case cmd.SuperUserOnly && !h.IsSuperUser(userID):
		reason = ReasonSuperUser
	case cmd.Channel == ChannelGuild && msg.GuildID() == "":
		reason = ReasonGuild
	case cmd.Channel == ChannelDM && msg.GuildID() != "":
		reason = ReasonDM
	}

	if reason == "" && h.inhibitor != nil {
		r, err := h.inhibitor.Test(ctx, PhasePost, msg, cmd)
		if err != nil {
			return true, h.emitError(ctx, inv, fmt.Errorf("post inhibitors: %w", err), cmd)
		}
		reason = r
	}

	if reason != "" {
		h.emit(ctx, inv, &events.Event{Name: events.CommandBlocked, Command: cmd.ID, Reason: reason})
		return true, nil
	}

	if remaining, hit := h.runCooldowns(userID, cmd); hit {
		h.emit(ctx, inv, &events.Event{
			Name:      events.Cooldown,
			Command:   cmd.ID,
			Remaining: remaining,
		})
		return true, nil
	}
	return false, nil
}

func (h *Handler) runCooldowns(userID string, cmd *Command) (time.Duration, bool) {
	o := h.opts()
	if slices.Contains(o.Owners, userID) ||
		slices.Contains(o.IgnoreCooldown, userID) ||
		slices.Contains(cmd.IgnoreCooldown, userID) {
		return 0, false
	}

	d := cmd.Cooldown
	if d == 0 {
		d = o.DefaultCooldown
	}
	return h.cooldowns.Hit(userID, cmd.ID, d, cmd.rateLimit())
}

func (h *Handler) handleDirect(ctx context.Context, inv *invocation, cmd *Command, content string, res *Resolution, ignore bool, depth int) error {
	if !ignore {
		if blocked, err := h.runPostChecks(ctx, inv, cmd); blocked || err != nil {
			return err
		}
	}

	unlock, locked := h.lock(cmd, inv.msg)
	if locked {
		h.emit(ctx, inv, &events.Event{Name: events.CommandLocked, Command: cmd.ID})
		return nil
	}
	defer unlock()

	if cmd.Before != nil {
		if err := cmd.Before(ctx, inv.msg); err != nil {
			return h.emitError(ctx, inv, fmt.Errorf("before %s: %w", cmd.ID, err), cmd)
		}
	}

	schema := cmd.Schema()
	if schema == nil || cmd.Removed() {
		return h.cancelRemoved(ctx, inv, cmd)
	}

	result, err := h.runner.Run(ctx, inv.msg, content, schema)
	if err != nil {
		return h.emitError(ctx, inv, fmt.Errorf("parsing %s: %w", cmd.ID, err), cmd)
	}
	if cmd.Removed() {
		return h.cancelRemoved(ctx, inv, cmd)
	}

	if result.Flag != nil {
		// Retry and continue re-dispatch, possibly to this command.
		unlock()
		return h.handleFlag(ctx, inv, cmd, result.Flag, depth)
	}

	ev := &events.Event{Command: cmd.ID, Args: result.Args}
	if res != nil {
		ev.Prefix = res.Prefix
		ev.Alias = res.Alias
	}
	return h.runCommand(ctx, inv, cmd, result.Args, ev)
}

func (h *Handler) cancelRemoved(ctx context.Context, inv *invocation, cmd *Command) error {
	h.emit(ctx, inv, &events.Event{
		Name:    events.CommandCancelled,
		Command: cmd.ID,
		Reason:  flow.ReasonRemoved,
		Err:     ErrCommandRemoved,
	})
	return nil
}

func (h *Handler) handleFlag(ctx context.Context, inv *invocation, cmd *Command, f *flow.Flag, depth int) error {
	switch f.Type {
	case flow.TypeCancel:
		h.emit(ctx, inv, &events.Event{Name: events.CommandCancelled, Command: cmd.ID, Reason: f.Reason})
		return nil

	case flow.TypeFail:
		name := events.CommandCancelled
		if f.Reason == flow.ReasonTimeout {
			name = events.CommandTimeout
		}
		h.emit(ctx, inv, &events.Event{Name: name, Command: cmd.ID, Reason: f.Reason})
		return nil

	case flow.TypeRetry:
		h.emit(ctx, inv, &events.Event{Name: events.CommandBreakout, Command: cmd.ID, Retry: f.Message})
		if f.Message == nil {
			return nil
		}
		return h.Handle(ctx, f.Message)

	case flow.TypeContinue:
		if depth >= maxContinueDepth {
			return h.emitError(ctx, inv, fmt.Errorf("continue chain from %s is too deep", cmd.ID), cmd)
		}
		next, ok := h.registry.Get(f.Command)
		if !ok {
			next, ok = h.registry.FindAlias(f.Command)
		}
		if !ok {
			return h.emitError(ctx, inv, fmt.Errorf("continue to %q: %w", f.Command, ErrNotFound), cmd)
		}
		h.log.Debug("Continuing as another command",
			zap.String("command", cmd.ID),
			zap.String("next", next.ID))
		return h.handleDirect(ctx, inv, next, f.Rest, nil, f.Ignore, depth+1)
	}

	return h.emitError(ctx, inv, fmt.Errorf("unknown flag %s", f), cmd)
}

func (h *Handler) runCommand(ctx context.Context, inv *invocation, cmd *Command, args arguments.Args, ev *events.Event) error {
	started := *ev
	started.Name = events.CommandStarted
	h.emit(ctx, inv, &started)

	if cmd.Typing {
		if typer, ok := inv.msg.(platform.Typer); ok {
			if err := typer.Typing(ctx); err != nil {
				h.log.Debug("Typing indicator failed", zap.String("command", cmd.ID), zap.Error(err))
			}
		}
	}

	result, err := cmd.Exec(ctx, inv.msg, args)
	if err != nil {
		return h.emitError(ctx, inv, fmt.Errorf("command %s: %w", cmd.ID, err), cmd)
	}

	finished := *ev
	finished.Name = events.CommandFinished
	finished.Result = result
	h.emit(ctx, inv, &finished)
	return nil
}

func (h *Handler) handleRegexAndConditional(ctx context.Context, inv *invocation) (bool, error) {
	ran := false
	var errs []error

	for _, m := range h.resolver.MatchRegex(inv.msg) {
		if inv.msg.Edited() && !m.Command.Editable {
			continue
		}
		ran = true
		if err := h.runMatched(ctx, inv, m.Command, arguments.Args{"match": m.Match, "matches": m.Matches}); err != nil {
			errs = append(errs, err)
		}
	}

	conds, err := h.resolver.MatchConditions(ctx, inv.msg)
	if err != nil {
		errs = append(errs, h.emitError(ctx, inv, err, nil))
	}
	for _, cmd := range conds {
		if inv.msg.Edited() && !cmd.Editable {
			continue
		}
		ran = true
		if err := h.runMatched(ctx, inv, cmd, arguments.Args{}); err != nil {
			errs = append(errs, err)
		}
	}

	return ran, errors.Join(errs...)
}

// runMatched runs a regex or conditional command without argument parsing.
func (h *Handler) runMatched(ctx context.Context, inv *invocation, cmd *Command, args arguments.Args) error {
	if blocked, err := h.runPostChecks(ctx, inv, cmd); blocked || err != nil {
		return err
	}

	unlock, locked := h.lock(cmd, inv.msg)
	if locked {
		h.emit(ctx, inv, &events.Event{Name: events.CommandLocked, Command: cmd.ID})
		return nil
	}
	defer unlock()

	if cmd.Before != nil {
		if err := cmd.Before(ctx, inv.msg); err != nil {
			return h.emitError(ctx, inv, fmt.Errorf("before %s: %w", cmd.ID, err), cmd)
		}
	}
	return h.runCommand(ctx, inv, cmd, args, &events.Event{Command: cmd.ID, Args: args})
}

// lock takes the command lock for msg. It returns the release func, which
// is safe to call more than once, and whether the key was already held.
func (h *Handler) lock(cmd *Command, msg platform.Message) (func(), bool) {
	if cmd.Lock == nil {
		return func() {}, false
	}
	key := cmd.Lock(msg)
	if key == "" {
		return func() {}, false
	}
	if !h.locks.Acquire(cmd.ID, key) {
		return nil, true
	}
	var once sync.Once
	return func() { once.Do(func() { h.locks.Release(cmd.ID, key) }) }, false
}

func (h *Handler) emit(ctx context.Context, inv *invocation, ev *events.Event) {
	ev.InvocationID = inv.id
	ev.Message = inv.msg
	h.log.Debug("Dispatch event",
		zap.String("event", string(ev.Name)),
		zap.String("command", ev.Command),
		zap.String("reason", ev.Reason),
		zap.String("user_id", inv.msg.Author().ID),
		zap.String("channel_id", inv.msg.ChannelID()))
	if h.emitter != nil {
		h.emitter.Emit(ctx, ev)
	}
}

// emitError reports err on the "error" event. Without a listener the error
// is returned to the caller.
func (h *Handler) emitError(ctx context.Context, inv *invocation, err error, cmd *Command) error {
	if h.emitter == nil || h.emitter.ListenerCount(events.Error) == 0 {
		return err
	}
	ev := &events.Event{Name: events.Error, Err: err}
	if cmd != nil {
		ev.Command = cmd.ID
	}
	h.emit(ctx, inv, ev)
	return nil
}
