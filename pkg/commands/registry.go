package commands

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"botframe/pkg/arguments"
	"botframe/pkg/events"
	"botframe/pkg/logger"
	"botframe/pkg/types"
)

// Loader builds a command definition. Reload calls it again.
type Loader func() (*Command, error)

// Registry manages command registration and lookup.
type Registry struct {
	log     *logger.Logger
	types   *types.Registry
	emitter *events.Emitter

	commands  map[string]*Command
	aliases   map[string]*Command
	loaders   map[string]Loader
	order     []string
	aliasRepl *regexp.Regexp
	mu        sync.RWMutex
}

// NewRegistry creates a new command registry. Casters of kind "command" and
// "commandAlias" in reg resolve through it. emitter may be nil.
func NewRegistry(log *logger.Logger, reg *types.Registry, emitter *events.Emitter) *Registry {
	r := &Registry{
		log:      log.Named("commands"),
		types:    reg,
		emitter:  emitter,
		commands: make(map[string]*Command),
		aliases:  make(map[string]*Command),
		loaders:  make(map[string]Loader),
	}
	reg.SetCommands(lookup{r})
	return r
}

// Types returns the caster registry schemas compile against.
func (r *Registry) Types() *types.Registry {
	return r.types
}

// SetAliasReplacement sets the pattern stripped from aliases to produce
// extra normalized aliases ("ping-pong" also answers to "pingpong").
// It applies to commands registered afterwards.
func (r *Registry) SetAliasReplacement(pattern string) error {
	var re *regexp.Regexp
	if pattern != "" {
		var err error
		if re, err = regexp.Compile(pattern); err != nil {
			return fmt.Errorf("alias replacement: %w", err)
		}
	}
	r.mu.Lock()
	r.aliasRepl = re
	r.mu.Unlock()
	return nil
}

// Register compiles the command's schema and adds it to the id and alias
// maps.
func (r *Registry) Register(cmd *Command) error {
	if cmd == nil {
		return fmt.Errorf("command cannot be nil")
	}
	if cmd.ID == "" {
		return fmt.Errorf("command id cannot be empty")
	}
	if cmd.Exec == nil {
		return fmt.Errorf("command %s: exec cannot be nil", cmd.ID)
	}

	schema, err := r.compile(cmd)
	if err != nil {
		return fmt.Errorf("command %s: %w", cmd.ID, err)
	}

	r.mu.Lock()
	if _, exists := r.commands[cmd.ID]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, cmd.ID)
	}

	aliases := r.normalizeAliases(cmd.Aliases)
	for _, alias := range aliases {
		if other, taken := r.aliases[alias]; taken {
			r.mu.Unlock()
			return fmt.Errorf("%w: %q (command %s)", ErrAliasConflict, alias, other.ID)
		}
	}

	cmd.Aliases = aliases
	cmd.schema = schema
	cmd.removed.Store(false)
	r.commands[cmd.ID] = cmd
	r.order = append(r.order, cmd.ID)
	for _, alias := range aliases {
		r.aliases[alias] = cmd
	}
	r.mu.Unlock()

	r.log.Debug("Registered command",
		zap.String("command", cmd.ID),
		zap.Strings("aliases", aliases))
	r.emit(events.CommandRegistered, cmd)
	return nil
}

// Load calls loader, registers the result and remembers loader for Reload.
func (r *Registry) Load(loader Loader) (*Command, error) {
	cmd, err := loader()
	if err != nil {
		return nil, fmt.Errorf("loading command: %w", err)
	}
	if err := r.Register(cmd); err != nil {
		return nil, err
	}
	r.mu.Lock()
	r.loaders[cmd.ID] = loader
	r.mu.Unlock()
	return cmd, nil
}

// Deregister removes a command from every map. Parses already running for
// it finish with ErrCommandRemoved.
func (r *Registry) Deregister(id string) error {
	r.mu.Lock()
	cmd, ok := r.commands[id]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(r.commands, id)
	for alias, c := range r.aliases {
		if c == cmd {
			delete(r.aliases, alias)
		}
	}
	for i, oid := range r.order {
		if oid == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	cmd.removed.Store(true)
	r.mu.Unlock()

	r.log.Debug("Removed command", zap.String("command", id))
	r.emit(events.CommandRemoved, cmd)
	return nil
}

// Reload replaces command id with a fresh definition from loader, or from
// the loader it was loaded with when loader is nil. The old definition is
// restored if the new one fails to register.
func (r *Registry) Reload(id string, loader Loader) (*Command, error) {
	r.mu.RLock()
	old, ok := r.commands[id]
	if loader == nil {
		loader = r.loaders[id]
	}
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if loader == nil {
		return nil, fmt.Errorf("command %s has no loader", id)
	}

	fresh, err := loader()
	if err != nil {
		return nil, fmt.Errorf("reloading %s: %w", id, err)
	}
	if fresh.ID != id {
		return nil, fmt.Errorf("reloading %s: loader returned command %q", id, fresh.ID)
	}

	if err := r.Deregister(id); err != nil {
		return nil, err
	}
	if err := r.Register(fresh); err != nil {
		if restoreErr := r.Register(old); restoreErr != nil {
			r.log.Error("Failed to restore command after reload error",
				zap.String("command", id),
				zap.Error(restoreErr))
		}
		return nil, fmt.Errorf("reloading %s: %w", id, err)
	}

	r.mu.Lock()
	r.loaders[id] = loader
	r.mu.Unlock()
	return fresh, nil
}

// Get retrieves a command by id.
func (r *Registry) Get(id string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[id]
	return cmd, ok
}

// FindAlias retrieves a command by alias, case-insensitively.
func (r *Registry) FindAlias(alias string) (*Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.aliases[strings.ToLower(alias)]
	return cmd, ok
}

// List returns all registered commands in registration order.
func (r *Registry) List() []*Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmds := make([]*Command, 0, len(r.order))
	for _, id := range r.order {
		cmds = append(cmds, r.commands[id])
	}
	return cmds
}

// Categories groups commands by category, sorted by category name.
func (r *Registry) Categories() map[string][]*Command {
	out := make(map[string][]*Command)
	for _, cmd := range r.List() {
		cat := cmd.Category
		if cat == "" {
			cat = "default"
		}
		out[cat] = append(out[cat], cmd)
	}
	return out
}

// CategoryNames returns the sorted category names.
func (r *Registry) CategoryNames() []string {
	cats := r.Categories()
	names := make([]string, 0, len(cats))
	for name := range cats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) compile(cmd *Command) (*arguments.Schema, error) {
	opts := arguments.SchemaOptions{
		Quoted:          cmd.quoted(),
		Separator:       cmd.Separator,
		FlagWords:       cmd.Flags,
		OptionFlagWords: cmd.OptionFlags,
		Defaults:        cmd.ArgumentDefaults,
	}
	if cmd.Generator != nil {
		if len(cmd.Args) > 0 {
			return nil, &arguments.SchemaError{Reason: "args and generator are exclusive"}
		}
		return arguments.CompileGenerator(r.types, cmd.Generator, opts), nil
	}
	return arguments.Compile(r.types, cmd.Args, opts)
}

// normalizeAliases lower-cases aliases, adds replacement variants and drops
// duplicates, keeping first-seen order. Caller holds r.mu.
func (r *Registry) normalizeAliases(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	add := func(a string) {
		if a == "" || seen[a] {
			return
		}
		seen[a] = true
		out = append(out, a)
	}
	for _, alias := range in {
		alias = strings.ToLower(strings.TrimSpace(alias))
		add(alias)
		if r.aliasRepl != nil {
			add(r.aliasRepl.ReplaceAllString(alias, ""))
		}
	}
	return out
}

func (r *Registry) emit(name events.Name, cmd *Command) {
	if r.emitter == nil {
		return
	}
	r.emitter.Emit(context.Background(), &events.Event{Name: name, Command: cmd.ID})
}

// lookup adapts Registry to types.CommandLookup.
type lookup struct {
	r *Registry
}

func (l lookup) FindCommand(alias string) (any, bool) {
	cmd, ok := l.r.FindAlias(alias)
	if !ok {
		return nil, false
	}
	return cmd, true
}

func (l lookup) CommandByID(id string) (any, bool) {
	cmd, ok := l.r.Get(id)
	if !ok {
		return nil, false
	}
	return cmd, true
}
