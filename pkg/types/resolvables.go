package types

import (
	"context"
	"regexp"
	"strings"

	"botframe/pkg/platform"
)

var (
	userMentionRe    = regexp.MustCompile(`^<@!?(\d+)>$`)
	channelMentionRe = regexp.MustCompile(`^<#(\d+)>$`)
	roleMentionRe    = regexp.MustCompile(`^<@&(\d+)>$`)
	emojiMentionRe   = regexp.MustCompile(`^<(a?):(\w+):(\d+)>$`)
)

// mentionID extracts the snowflake from a mention, or "".
func mentionID(re *regexp.Regexp, phrase string) string {
	m := re.FindStringSubmatch(strings.TrimSpace(phrase))
	if m == nil {
		return ""
	}
	return m[1]
}

func (r *Registry) addResolvables() {
	r.funcs["userMention"] = withClient(func(ctx context.Context, c platform.Client, msg platform.Message, phrase string) (any, error) {
		id := mentionID(userMentionRe, phrase)
		if id == "" {
			return nil, nil
		}
		users, err := c.Users(ctx, msg)
		if err != nil {
			return nil, err
		}
		for _, u := range users {
			if u.ID == id {
				return u, nil
			}
		}
		return nil, nil
	})

	r.funcs["memberMention"] = withClient(func(ctx context.Context, c platform.Client, msg platform.Message, phrase string) (any, error) {
		id := mentionID(userMentionRe, phrase)
		if id == "" || msg.GuildID() == "" {
			return nil, nil
		}
		members, err := c.Members(ctx, msg.GuildID())
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			if m.User.ID == id {
				return m, nil
			}
		}
		return nil, nil
	})

	r.funcs["channelMention"] = withClient(func(ctx context.Context, c platform.Client, msg platform.Message, phrase string) (any, error) {
		id := mentionID(channelMentionRe, phrase)
		if id == "" || msg.GuildID() == "" {
			return nil, nil
		}
		channels, err := c.Channels(ctx, msg.GuildID())
		if err != nil {
			return nil, err
		}
		for _, ch := range channels {
			if ch.ID == id {
				return ch, nil
			}
		}
		return nil, nil
	})

	r.funcs["roleMention"] = withClient(func(ctx context.Context, c platform.Client, msg platform.Message, phrase string) (any, error) {
		id := mentionID(roleMentionRe, phrase)
		if id == "" || msg.GuildID() == "" {
			return nil, nil
		}
		roles, err := c.Roles(ctx, msg.GuildID())
		if err != nil {
			return nil, err
		}
		for _, role := range roles {
			if role.ID == id {
				return role, nil
			}
		}
		return nil, nil
	})

	r.funcs["emojiMention"] = func(_ context.Context, _ platform.Message, phrase string) (any, error) {
		m := emojiMentionRe.FindStringSubmatch(strings.TrimSpace(phrase))
		if m == nil {
			return nil, nil
		}
		return platform.Emoji{ID: m[3], Name: m[2], Animated: m[1] == "a"}, nil
	}

	r.funcs["user"] = withClient(func(ctx context.Context, c platform.Client, msg platform.Message, phrase string) (any, error) {
		users, err := c.Users(ctx, msg)
		if err != nil {
			return nil, err
		}
		return first(matchUsers(users, phrase)), nil
	})

	r.funcs["users"] = withClient(func(ctx context.Context, c platform.Client, msg platform.Message, phrase string) (any, error) {
		users, err := c.Users(ctx, msg)
		if err != nil {
			return nil, err
		}
		return many(matchUsers(users, phrase)), nil
	})

	r.funcs["member"] = withClient(func(ctx context.Context, c platform.Client, msg platform.Message, phrase string) (any, error) {
		members, err := guildMembers(ctx, c, msg)
		if err != nil {
			return nil, err
		}
		return first(matchMembers(members, phrase)), nil
	})

	r.funcs["members"] = withClient(func(ctx context.Context, c platform.Client, msg platform.Message, phrase string) (any, error) {
		members, err := guildMembers(ctx, c, msg)
		if err != nil {
			return nil, err
		}
		return many(matchMembers(members, phrase)), nil
	})

	// relevant resolves against guild members in a guild and users elsewhere,
	// always returning a User.
	r.funcs["relevant"] = withClient(func(ctx context.Context, c platform.Client, msg platform.Message, phrase string) (any, error) {
		if msg.GuildID() == "" {
			users, err := c.Users(ctx, msg)
			if err != nil {
				return nil, err
			}
			return first(matchUsers(users, phrase)), nil
		}
		members, err := c.Members(ctx, msg.GuildID())
		if err != nil {
			return nil, err
		}
		if m := matchMembers(members, phrase); len(m) > 0 {
			return m[0].User, nil
		}
		return nil, nil
	})

	r.funcs["channel"] = channelCaster(true, "")
	r.funcs["channels"] = channelCaster(false, "")
	r.funcs["textChannel"] = channelCaster(true, platform.ChannelText)
	r.funcs["voiceChannel"] = channelCaster(true, platform.ChannelVoice)

	r.funcs["role"] = roleCaster(true)
	r.funcs["roles"] = roleCaster(false)

	r.funcs["guild"] = guildCaster(true)
	r.funcs["guilds"] = guildCaster(false)

	r.funcs["commandAlias"] = func(_ context.Context, _ platform.Message, phrase string) (any, error) {
		lookup := r.commandLookup()
		if lookup == nil || phrase == "" {
			return nil, nil
		}
		if cmd, ok := lookup.FindCommand(phrase); ok {
			return cmd, nil
		}
		return nil, nil
	}

	r.funcs["command"] = func(_ context.Context, _ platform.Message, phrase string) (any, error) {
		lookup := r.commandLookup()
		if lookup == nil || phrase == "" {
			return nil, nil
		}
		if cmd, ok := lookup.CommandByID(phrase); ok {
			return cmd, nil
		}
		return nil, nil
	}
}

type clientFunc func(ctx context.Context, c platform.Client, msg platform.Message, phrase string) (any, error)

// withClient skips the lookup when there is no phrase or no client.
func withClient(fn clientFunc) Func {
	return func(ctx context.Context, msg platform.Message, phrase string) (any, error) {
		if phrase == "" || msg == nil {
			return nil, nil
		}
		c := msg.Client()
		if c == nil {
			return nil, nil
		}
		return fn(ctx, c, msg, phrase)
	}
}

func guildMembers(ctx context.Context, c platform.Client, msg platform.Message) ([]platform.Member, error) {
	if msg.GuildID() == "" {
		return nil, nil
	}
	return c.Members(ctx, msg.GuildID())
}

func first[T any](items []T) any {
	if len(items) == 0 {
		return nil
	}
	return items[0]
}

func many[T any](items []T) any {
	if len(items) == 0 {
		return nil
	}
	return items
}

// rank orders candidates: exact id, then exact name, then partial name.
// Matches keep their original order within each rank.
func rank[T any](items []T, phrase string, id func(T) string, names func(T) []string) []T {
	text := strings.ToLower(strings.TrimSpace(phrase))
	if text == "" {
		return nil
	}

	var exactID, exactName, partial []T
	for _, item := range items {
		if strings.EqualFold(id(item), text) {
			exactID = append(exactID, item)
			continue
		}
		matched := false
		for _, n := range names(item) {
			if n != "" && strings.ToLower(n) == text {
				exactName = append(exactName, item)
				matched = true
				break
			}
		}
		if matched {
			continue
		}
		for _, n := range names(item) {
			if n != "" && strings.Contains(strings.ToLower(n), text) {
				partial = append(partial, item)
				break
			}
		}
	}

	out := append(exactID, exactName...)
	return append(out, partial...)
}

func matchUsers(users []platform.User, phrase string) []platform.User {
	if id := mentionID(userMentionRe, phrase); id != "" {
		phrase = id
	}
	return rank(users, phrase,
		func(u platform.User) string { return u.ID },
		func(u platform.User) []string { return []string{u.Username, u.Tag()} })
}

func matchMembers(members []platform.Member, phrase string) []platform.Member {
	if id := mentionID(userMentionRe, phrase); id != "" {
		phrase = id
	}
	return rank(members, phrase,
		func(m platform.Member) string { return m.User.ID },
		func(m platform.Member) []string { return []string{m.Nick, m.User.Username, m.User.Tag()} })
}

func channelCaster(single bool, kind platform.ChannelKind) Func {
	return withClient(func(ctx context.Context, c platform.Client, msg platform.Message, phrase string) (any, error) {
		if msg.GuildID() == "" {
			return nil, nil
		}
		channels, err := c.Channels(ctx, msg.GuildID())
		if err != nil {
			return nil, err
		}
		if kind != "" {
			filtered := channels[:0:0]
			for _, ch := range channels {
				if ch.Kind == kind {
					filtered = append(filtered, ch)
				}
			}
			channels = filtered
		}
		if id := mentionID(channelMentionRe, phrase); id != "" {
			phrase = id
		}
		matched := rank(channels, strings.TrimPrefix(phrase, "#"),
			func(ch platform.Channel) string { return ch.ID },
			func(ch platform.Channel) []string { return []string{ch.Name} })
		if single {
			return first(matched), nil
		}
		return many(matched), nil
	})
}

func roleCaster(single bool) Func {
	return withClient(func(ctx context.Context, c platform.Client, msg platform.Message, phrase string) (any, error) {
		if msg.GuildID() == "" {
			return nil, nil
		}
		roles, err := c.Roles(ctx, msg.GuildID())
		if err != nil {
			return nil, err
		}
		if id := mentionID(roleMentionRe, phrase); id != "" {
			phrase = id
		}
		matched := rank(roles, phrase,
			func(r platform.Role) string { return r.ID },
			func(r platform.Role) []string { return []string{r.Name} })
		if single {
			return first(matched), nil
		}
		return many(matched), nil
	})
}

func guildCaster(single bool) Func {
	return withClient(func(ctx context.Context, c platform.Client, msg platform.Message, phrase string) (any, error) {
		guilds, err := c.Guilds(ctx)
		if err != nil {
			return nil, err
		}
		matched := rank(guilds, phrase,
			func(g platform.Guild) string { return g.ID },
			func(g platform.Guild) []string { return []string{g.Name} })
		if single {
			return first(matched), nil
		}
		return many(matched), nil
	})
}
