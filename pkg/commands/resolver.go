package commands

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"

	"botframe/pkg/platform"
)

// PrefixEntry maps a prefix to the commands reachable through it. A nil
// Commands set means every command without a prefix override.
type PrefixEntry struct {
	Prefix   Prefix
	Commands map[string]bool
}

// SortPrefixes orders entries for matching: function prefixes first in
// insertion order, then string prefixes longest first with ties broken by
// strings.Compare, and the empty prefix last. The sort is stable.
func SortPrefixes(entries []PrefixEntry) {
	rank := func(e PrefixEntry) int {
		switch {
		case e.Prefix.Func != nil:
			return 0
		case e.Prefix.Value == "":
			return 2
		default:
			return 1
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		ri, rj := rank(entries[i]), rank(entries[j])
		if ri != rj {
			return ri < rj
		}
		if ri != 1 {
			return false
		}
		a, b := entries[i].Prefix.Value, entries[j].Prefix.Value
		if len(a) != len(b) {
			return len(a) > len(b)
		}
		return strings.Compare(a, b) < 0
	})
}

// RegexMatch is a regex command that matched a message.
type RegexMatch struct {
	Command *Command
	Match   string
	Matches [][]string
}

// Resolver finds the command a message invokes.
type Resolver struct {
	registry *Registry

	mu           sync.RWMutex
	prefixes     []Prefix
	allowMention bool
}

// NewResolver creates a resolver over registry with handler-level prefixes.
func NewResolver(registry *Registry, prefixes []Prefix, allowMention bool) *Resolver {
	return &Resolver{
		registry:     registry,
		prefixes:     append([]Prefix(nil), prefixes...),
		allowMention: allowMention,
	}
}

// SetPrefixes replaces the handler-level prefixes.
func (r *Resolver) SetPrefixes(prefixes []Prefix, allowMention bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.prefixes = append([]Prefix(nil), prefixes...)
	r.allowMention = allowMention
}

// Entries computes the sorted prefix entries for msg.
func (r *Resolver) Entries(msg platform.Message) []PrefixEntry {
	r.mu.RLock()
	global := append([]Prefix(nil), r.prefixes...)
	allowMention := r.allowMention
	r.mu.RUnlock()

	var entries []PrefixEntry
	for _, p := range global {
		entries = append(entries, PrefixEntry{Prefix: p})
	}
	if allowMention && msg.Client() != nil {
		for _, m := range msg.Client().MentionPrefixes() {
			entries = append(entries, PrefixEntry{Prefix: Prefix{Value: m}})
		}
	}
	for _, cmd := range r.registry.List() {
		for _, p := range cmd.Prefix {
			entries = append(entries, PrefixEntry{Prefix: p, Commands: map[string]bool{cmd.ID: true}})
		}
	}

	SortPrefixes(entries)
	return entries
}

// Resolve tries every prefix entry in order. The first entry that yields a
// command wins. Without a command, the first entry whose prefix matched is
// reported so the caller can flag the message as invalid. A nil resolution
// means no prefix matched at all.
func (r *Resolver) Resolve(ctx context.Context, msg platform.Message) (*Resolution, error) {
	content := msg.Content()
	var first *Resolution

	for _, entry := range r.Entries(msg) {
		candidates := []string{entry.Prefix.Value}
		if entry.Prefix.Func != nil {
			values, err := entry.Prefix.Func(ctx, msg)
			if err != nil {
				return nil, fmt.Errorf("prefix function: %w", err)
			}
			candidates = sortStrings(values)
		}

		for _, prefix := range candidates {
			res, ok := r.parseWithPrefix(content, prefix, entry.Commands)
			if !ok {
				continue
			}
			if res.Command != nil {
				return res, nil
			}
			if first == nil {
				first = res
			}
		}
	}

	return first, nil
}

// parseWithPrefix strips prefix and looks up the alias that follows.
func (r *Resolver) parseWithPrefix(content, prefix string, allowed map[string]bool) (*Resolution, bool) {
	if len(content) < len(prefix) || !strings.EqualFold(content[:len(prefix)], prefix) {
		return nil, false
	}

	after := strings.TrimLeftFunc(content[len(prefix):], unicode.IsSpace)
	alias := after
	rest := ""
	if i := strings.IndexFunc(after, unicode.IsSpace); i >= 0 {
		alias = after[:i]
		rest = after[i:]
	}

	res := &Resolution{
		Prefix:      prefix,
		Alias:       alias,
		Content:     strings.TrimSpace(rest),
		AfterPrefix: strings.TrimSpace(after),
	}
	if alias == "" {
		return res, true
	}

	cmd, ok := r.registry.FindAlias(alias)
	if !ok {
		return res, true
	}
	if allowed == nil && len(cmd.Prefix) > 0 {
		return res, true
	}
	if allowed != nil && !allowed[cmd.ID] {
		return res, true
	}
	res.Command = cmd
	return res, true
}

// MatchRegex returns every regex command matching the full content, in
// registration order.
func (r *Resolver) MatchRegex(msg platform.Message) []RegexMatch {
	var out []RegexMatch
	for _, cmd := range r.registry.List() {
		re := cmd.regex(msg)
		if re == nil {
			continue
		}
		all := re.FindAllStringSubmatch(msg.Content(), -1)
		if len(all) == 0 {
			continue
		}
		out = append(out, RegexMatch{Command: cmd, Match: all[0][0], Matches: all})
	}
	return out
}

// MatchConditions returns every conditional command whose predicate holds.
func (r *Resolver) MatchConditions(ctx context.Context, msg platform.Message) ([]*Command, error) {
	var out []*Command
	for _, cmd := range r.registry.List() {
		if cmd.Condition == nil {
			continue
		}
		ok, err := cmd.Condition(ctx, msg)
		if err != nil {
			return out, fmt.Errorf("condition of %s: %w", cmd.ID, err)
		}
		if ok {
			out = append(out, cmd)
		}
	}
	return out, nil
}

// IsCommand reports whether msg resolves to a prefix command. Prompt
// breakout uses it.
func (r *Resolver) IsCommand(ctx context.Context, msg platform.Message) bool {
	res, err := r.Resolve(ctx, msg)
	return err == nil && res != nil && res.Command != nil
}

func sortStrings(values []string) []string {
	entries := make([]PrefixEntry, 0, len(values))
	for _, v := range values {
		entries = append(entries, PrefixEntry{Prefix: Prefix{Value: v}})
	}
	SortPrefixes(entries)
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Prefix.Value)
	}
	return out
}
