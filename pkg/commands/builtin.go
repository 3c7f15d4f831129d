package commands

import (
	"context"
	"fmt"
	"runtime"
	"strings"
	"time"

	"botframe/pkg/arguments"
	"botframe/pkg/platform"
	"botframe/pkg/types"
	"botframe/pkg/version"
)

var processStartTime = time.Now()

// PrefixStore persists per-guild prefixes.
type PrefixStore interface {
	// GuildPrefix returns "" when the guild has no prefix of its own.
	GuildPrefix(ctx context.Context, guildID string) (string, error)
	SetGuildPrefix(ctx context.Context, guildID, prefix string) error
}

// GuildPrefix returns a prefix function reading the guild prefix of each
// message from store. Direct messages have none.
func GuildPrefix(store PrefixStore) Prefix {
	return Dynamic(func(ctx context.Context, msg platform.Message) ([]string, error) {
		if msg.GuildID() == "" {
			return nil, nil
		}
		p, err := store.GuildPrefix(ctx, msg.GuildID())
		if err != nil || p == "" {
			return nil, err
		}
		return []string{p}, nil
	})
}

// RegisterBuiltinCommands registers help, ping, prefix, reload and status.
// store may be nil, which disables prefix changes.
func RegisterBuiltinCommands(h *Handler, store PrefixStore) error {
	builtins := []*Command{
		{
			ID:          "help",
			Aliases:     []string{"help", "commands", "h"},
			Category:    "general",
			Description: "Show available commands",
			Usage:       "help [command]",
			Args: []arguments.Spec{
				{ID: "command", Type: types.Name("commandAlias")},
			},
			Exec: helpExec(h.Registry()),
		},
		{
			ID:          "ping",
			Aliases:     []string{"ping"},
			Category:    "general",
			Description: "Check that the bot is responding",
			Usage:       "ping",
			Cooldown:    3 * time.Second,
			Exec:        pingExec,
		},
		{
			ID:          "prefix",
			Aliases:     []string{"prefix"},
			Category:    "settings",
			Description: "Show or change the prefix of this guild",
			Usage:       "prefix [new prefix]",
			Channel:     ChannelGuild,
			Args: []arguments.Spec{
				{ID: "prefix", Match: arguments.MatchPhrase},
			},
			Exec: prefixExec(h, store),
		},
		{
			ID:          "reload",
			Aliases:     []string{"reload"},
			Category:    "owner",
			Description: "Reload a command from its loader",
			Usage:       "reload <command>",
			OwnerOnly:   true,
			Args: []arguments.Spec{
				{
					ID:   "command",
					Type: types.Name("commandAlias"),
					Prompt: &arguments.PromptOptions{
						Start: arguments.Say("Which command should be reloaded?"),
						Retry: arguments.Say("That is not a command, try again."),
					},
				},
			},
			Exec: reloadExec(h.Registry()),
		},
		{
			ID:          "status",
			Aliases:     []string{"status", "stats"},
			Category:    "general",
			Description: "Show bot status",
			Usage:       "status",
			Exec:        statusExec(h),
		},
	}

	for _, cmd := range builtins {
		if err := h.Registry().Register(cmd); err != nil {
			return fmt.Errorf("failed to register %s: %w", cmd.ID, err)
		}
	}

	return nil
}

func helpExec(registry *Registry) ExecFunc {
	return func(ctx context.Context, msg platform.Message, args arguments.Args) (any, error) {
		if cmd, ok := args["command"].(*Command); ok {
			var sb strings.Builder
			sb.WriteString(fmt.Sprintf("**%s**\n\n%s\n", cmd.ID, cmd.Description))
			if cmd.Usage != "" {
				sb.WriteString(fmt.Sprintf("\n**Usage:** %s\n", cmd.Usage))
			}
			if len(cmd.Aliases) > 1 {
				sb.WriteString(fmt.Sprintf("**Aliases:** %s\n", strings.Join(cmd.Aliases, ", ")))
			}
			content := strings.TrimRight(sb.String(), "\n")
			return content, msg.Reply(ctx, content)
		}

		cats := registry.Categories()
		if len(cats) == 0 {
			content := "No commands available."
			return content, msg.Reply(ctx, content)
		}

		var sb strings.Builder
		sb.WriteString("**Available Commands**\n")
		for _, name := range registry.CategoryNames() {
			sb.WriteString(fmt.Sprintf("\n__%s__\n", name))
			for _, cmd := range cats[name] {
				sb.WriteString(fmt.Sprintf("**%s** - %s\n", cmd.ID, compactDescription(cmd.Description, 72)))
			}
		}
		sb.WriteString("\nUse `help [command]` for detailed information.")

		content := sb.String()
		return content, msg.Reply(ctx, content)
	}
}

func compactDescription(desc string, limit int) string {
	desc = strings.Join(strings.Fields(strings.TrimSpace(desc)), " ")
	if limit <= 0 {
		limit = 72
	}
	runes := []rune(desc)
	if len(runes) <= limit {
		return desc
	}
	if limit <= 1 {
		return "…"
	}
	return string(runes[:limit-1]) + "…"
}

func pingExec(ctx context.Context, msg platform.Message, _ arguments.Args) (any, error) {
	content := "Pong!"
	if at := msg.CreatedAt(); !at.IsZero() {
		content = fmt.Sprintf("Pong! %s", time.Since(at).Round(time.Millisecond))
	}
	return content, msg.Reply(ctx, content)
}

func prefixExec(h *Handler, store PrefixStore) ExecFunc {
	return func(ctx context.Context, msg platform.Message, args arguments.Args) (any, error) {
		if store == nil {
			content := "Guild prefixes are not enabled."
			return content, msg.Reply(ctx, content)
		}

		next := args.String("prefix")
		if next == "" {
			current, err := store.GuildPrefix(ctx, msg.GuildID())
			if err != nil {
				return nil, fmt.Errorf("reading guild prefix: %w", err)
			}
			content := "This guild uses the default prefixes."
			if current != "" {
				content = fmt.Sprintf("The prefix of this guild is `%s`.", current)
			}
			return content, msg.Reply(ctx, content)
		}

		if !h.IsSuperUser(msg.Author().ID) {
			content := "Only super users can change the prefix."
			return content, msg.Reply(ctx, content)
		}
		if err := store.SetGuildPrefix(ctx, msg.GuildID(), next); err != nil {
			return nil, fmt.Errorf("saving guild prefix: %w", err)
		}
		content := fmt.Sprintf("Prefix changed to `%s`.", next)
		return content, msg.Reply(ctx, content)
	}
}

func reloadExec(registry *Registry) ExecFunc {
	return func(ctx context.Context, msg platform.Message, args arguments.Args) (any, error) {
		cmd, ok := args["command"].(*Command)
		if !ok {
			return nil, fmt.Errorf("reload: missing command argument")
		}
		fresh, err := registry.Reload(cmd.ID, nil)
		if err != nil {
			content := fmt.Sprintf("Could not reload `%s`: %v", cmd.ID, err)
			return content, msg.Reply(ctx, content)
		}
		content := fmt.Sprintf("Reloaded `%s`.", fresh.ID)
		return content, msg.Reply(ctx, content)
	}
}

func statusExec(h *Handler) ExecFunc {
	return func(ctx context.Context, msg platform.Message, _ arguments.Args) (any, error) {
		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		content := fmt.Sprintf(`**botframe status**

Platform: %s
Version: %s
OS: %s/%s
Go: %s
Uptime: %s
Memory: %.2f MB
Commands: %d`,
			msg.Platform(),
			version.GetVersion(),
			runtime.GOOS,
			runtime.GOARCH,
			runtime.Version(),
			time.Since(processStartTime).Round(time.Second),
			float64(mem.Alloc)/1024.0/1024.0,
			len(h.Registry().List()),
		)
		return content, msg.Reply(ctx, content)
	}
}
