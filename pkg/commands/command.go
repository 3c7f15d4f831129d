// Package commands resolves chat messages to commands and dispatches them.
package commands

import (
	"context"
	"errors"
	"regexp"
	"sync/atomic"
	"time"

	"botframe/pkg/arguments"
	"botframe/pkg/platform"
)

var (
	// ErrAlreadyRegistered is returned when a command id is taken.
	ErrAlreadyRegistered = errors.New("command already registered")
	// ErrAliasConflict is returned when an alias belongs to another command.
	ErrAliasConflict = errors.New("alias already in use")
	// ErrCommandRemoved marks a parse that finished after its command was
	// deregistered.
	ErrCommandRemoved = errors.New("command was removed")
	// ErrNotFound is returned for unknown command ids.
	ErrNotFound = errors.New("command not found")
)

// Phase selects when an inhibitor runs.
type Phase string

const (
	// PhaseAll runs on every message before anything else.
	PhaseAll Phase = "all"
	// PhasePre runs before command resolution.
	PhasePre Phase = "pre"
	// PhasePost runs once the command is known.
	PhasePost Phase = "post"
)

// Inhibitor blocks handling. A non-empty reason blocks; cmd is nil for
// PhaseAll and PhasePre.
type Inhibitor interface {
	Test(ctx context.Context, phase Phase, msg platform.Message, cmd *Command) (string, error)
}

// Channel restrictions.
const (
	ChannelAny   = ""
	ChannelGuild = "guild"
	ChannelDM    = "dm"
)

// ExecFunc runs a command with its resolved arguments.
type ExecFunc func(ctx context.Context, msg platform.Message, args arguments.Args) (any, error)

// PrefixFunc produces prefixes at message time.
type PrefixFunc func(ctx context.Context, msg platform.Message) ([]string, error)

// Prefix is a static prefix string or a prefix function.
type Prefix struct {
	Value string
	Func  PrefixFunc
}

// Static returns one static prefix per value.
func Static(values ...string) []Prefix {
	out := make([]Prefix, 0, len(values))
	for _, v := range values {
		out = append(out, Prefix{Value: v})
	}
	return out
}

// Dynamic wraps fn as a prefix.
func Dynamic(fn PrefixFunc) Prefix {
	return Prefix{Func: fn}
}

// Locker computes the lock key of an invocation. An empty key means the
// invocation is not locked.
type Locker func(msg platform.Message) string

var (
	// LockNone disables locking.
	LockNone Locker
	// LockUser allows one running invocation per user.
	LockUser Locker = func(msg platform.Message) string { return "user:" + msg.Author().ID }
	// LockGuild allows one running invocation per guild (per channel in DMs).
	LockGuild Locker = func(msg platform.Message) string {
		if msg.GuildID() == "" {
			return "dm:" + msg.ChannelID()
		}
		return "guild:" + msg.GuildID()
	}
	// LockChannel allows one running invocation per channel.
	LockChannel Locker = func(msg platform.Message) string { return "channel:" + msg.ChannelID() }
)

// Command is a registered text command.
type Command struct {
	ID          string
	Aliases     []string
	Category    string
	Description string
	Usage       string

	// Args and Generator are exclusive.
	Args      []arguments.Spec
	Generator arguments.Generator

	// Prefix overrides the handler prefixes. Commands with an override are
	// only reachable through their own prefixes.
	Prefix []Prefix

	Cooldown time.Duration
	// RateLimit is the number of uses allowed per cooldown window.
	RateLimit      int
	IgnoreCooldown []string
	Lock           Locker

	// Regex commands match the whole content without a prefix.
	Regex     *regexp.Regexp
	RegexFunc func(msg platform.Message) *regexp.Regexp
	// Condition commands run when the predicate holds.
	Condition func(ctx context.Context, msg platform.Message) (bool, error)

	OwnerOnly     bool
	SuperUserOnly bool
	Editable      bool
	Typing        bool
	// Quoted defaults to true.
	Quoted      *bool
	Separator   string
	Flags       []string
	OptionFlags []string
	Channel     string

	ArgumentDefaults *arguments.PromptOptions

	Before func(ctx context.Context, msg platform.Message) error
	Exec   ExecFunc

	schema  *arguments.Schema
	removed atomic.Bool
}

// Schema returns the compiled argument schema.
func (c *Command) Schema() *arguments.Schema {
	return c.schema
}

// Removed reports whether the command was deregistered.
func (c *Command) Removed() bool {
	return c.removed.Load()
}

func (c *Command) quoted() bool {
	return c.Quoted == nil || *c.Quoted
}

func (c *Command) rateLimit() int {
	if c.RateLimit <= 0 {
		return 1
	}
	return c.RateLimit
}

func (c *Command) regex(msg platform.Message) *regexp.Regexp {
	if c.RegexFunc != nil {
		return c.RegexFunc(msg)
	}
	return c.Regex
}

// Resolution is the outcome of prefix resolution.
type Resolution struct {
	// Command is nil when a prefix matched but no alias did.
	Command *Command
	Prefix  string
	Alias   string
	// Content is the text after the alias, trimmed.
	Content string
	// AfterPrefix is the text after the prefix, trimmed.
	AfterPrefix string
}
