// Package settings persists per-scope string settings such as guild
// prefixes, with memory, file and Redis backends.
package settings

import (
	"context"
	"fmt"
	"strings"
)

// Store is the interface for settings backends. A scope groups the keys of
// one guild, channel or user.
type Store interface {
	// Get retrieves a value. The bool reports whether it exists.
	Get(ctx context.Context, scope, key string) (string, bool, error)

	// Set stores a value.
	Set(ctx context.Context, scope, key, value string) error

	// Delete removes a value. Missing keys are not an error.
	Delete(ctx context.Context, scope, key string) error

	// All returns a copy of every value in scope.
	All(ctx context.Context, scope string) (map[string]string, error)

	// Clear removes every value in scope.
	Clear(ctx context.Context, scope string) error

	// Close releases the backend.
	Close() error
}

// BackendType represents the storage backend type.
type BackendType string

const (
	BackendMemory BackendType = "memory"
	BackendFile   BackendType = "file"
	BackendRedis  BackendType = "redis"
)

// KeyPrefix is the setting key holding a guild prefix.
const KeyPrefix = "prefix"

// Guilds exposes typed guild settings over a Store.
type Guilds struct {
	store Store
}

// NewGuilds wraps store.
func NewGuilds(store Store) *Guilds {
	return &Guilds{store: store}
}

// GuildPrefix returns the prefix of guildID, or "" when it has none.
func (g *Guilds) GuildPrefix(ctx context.Context, guildID string) (string, error) {
	p, _, err := g.store.Get(ctx, guildScope(guildID), KeyPrefix)
	if err != nil {
		return "", fmt.Errorf("reading prefix of guild %s: %w", guildID, err)
	}
	return p, nil
}

// SetGuildPrefix stores the prefix of guildID. An empty prefix resets it.
func (g *Guilds) SetGuildPrefix(ctx context.Context, guildID, prefix string) error {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		return g.store.Delete(ctx, guildScope(guildID), KeyPrefix)
	}
	if strings.ContainsFunc(prefix, func(r rune) bool { return r == ' ' || r == '\n' || r == '\t' }) {
		return fmt.Errorf("prefix %q contains whitespace", prefix)
	}
	return g.store.Set(ctx, guildScope(guildID), KeyPrefix, prefix)
}

func guildScope(guildID string) string {
	return "guild:" + guildID
}
