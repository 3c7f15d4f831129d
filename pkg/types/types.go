// Package types maps type expressions to casters.
//
// A caster turns a phrase into a value. It returns nil when the phrase does
// not match, a *flow.Flag of type fail to reject it with diagnostic data, or
// a non-nil error for unexpected failures, which abort the whole parse.
package types

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"botframe/pkg/flow"
	"botframe/pkg/platform"
)

// Func is a resolved caster.
type Func func(ctx context.Context, msg platform.Message, phrase string) (any, error)

// Type is anything that can be resolved to a Func against a Registry:
// Name, Choices, Synonyms, Func and every combinator in this package.
type Type interface {
	Resolve(r *Registry) (Func, error)
}

// Resolve returns f itself.
func (f Func) Resolve(*Registry) (Func, error) {
	return f, nil
}

// Name references a registered caster.
type Name string

// Resolve looks the name up.
func (n Name) Resolve(r *Registry) (Func, error) {
	fn, ok := r.Get(string(n))
	if !ok {
		return nil, &UnknownTypeError{Name: string(n)}
	}
	return fn, nil
}

// UnknownTypeError is returned when a Name has no registered caster.
type UnknownTypeError struct {
	Name string
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("unknown argument type %q", e.Name)
}

// CommandLookup lets the command and commandAlias casters see the command
// registry without importing it.
type CommandLookup interface {
	FindCommand(alias string) (any, bool)
	CommandByID(id string) (any, bool)
}

// Registry holds named casters.
type Registry struct {
	mu       sync.RWMutex
	funcs    map[string]Func
	commands CommandLookup
}

// NewRegistry returns a registry preloaded with the built-in types.
func NewRegistry() *Registry {
	r := &Registry{funcs: make(map[string]Func)}
	r.addBuiltins()
	return r
}

// Add registers (or replaces) a named caster.
func (r *Registry) Add(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Remove drops a named caster.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.funcs, name)
}

// Get returns the caster registered under name.
func (r *Registry) Get(name string) (Func, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.funcs[name]
	return fn, ok
}

// Names returns every registered type name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetCommands wires the command registry used by command casters.
func (r *Registry) SetCommands(lookup CommandLookup) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = lookup
}

func (r *Registry) commandLookup() CommandLookup {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.commands
}

// Resolve resolves t, treating a nil type as "string".
func (r *Registry) Resolve(t Type) (Func, error) {
	if t == nil {
		t = Name("string")
	}
	return t.Resolve(r)
}

// Cast resolves t and applies it to phrase.
func (r *Registry) Cast(ctx context.Context, t Type, msg platform.Message, phrase string) (any, error) {
	fn, err := r.Resolve(t)
	if err != nil {
		return nil, err
	}
	return fn(ctx, msg, phrase)
}

// IsFailure reports whether a cast result means "no match".
func IsFailure(v any) bool {
	return v == nil || flow.Is(v, flow.TypeFail)
}
