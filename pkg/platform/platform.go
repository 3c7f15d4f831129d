// Package platform defines the chat-platform surface consumed by the dispatcher.
//
// Adapters (discord, telegram, console) wrap their native message types in
// Message and expose lookups through Client so that type casters can resolve
// users, channels and roles without knowing which platform they run on.
package platform

import (
	"context"
	"time"
)

// ChannelKind classifies a channel.
type ChannelKind string

const (
	ChannelText     ChannelKind = "text"
	ChannelVoice    ChannelKind = "voice"
	ChannelDM       ChannelKind = "dm"
	ChannelCategory ChannelKind = "category"
	ChannelOther    ChannelKind = "other"
)

// User is a platform account.
type User struct {
	ID            string
	Username      string
	Discriminator string
	Bot           bool
}

// Tag returns username#discriminator, or just the username when the
// platform has no discriminators.
func (u User) Tag() string {
	if u.Discriminator == "" || u.Discriminator == "0" {
		return u.Username
	}
	return u.Username + "#" + u.Discriminator
}

// Member is a user inside a guild.
type Member struct {
	User    User
	GuildID string
	Nick    string
	Roles   []string
}

// DisplayName returns the nickname when set.
func (m Member) DisplayName() string {
	if m.Nick != "" {
		return m.Nick
	}
	return m.User.Username
}

// Channel is a text, voice or direct-message channel.
type Channel struct {
	ID      string
	Name    string
	GuildID string
	Kind    ChannelKind
}

// Role is a guild role.
type Role struct {
	ID      string
	Name    string
	GuildID string
}

// Guild is a server, group chat or workspace.
type Guild struct {
	ID   string
	Name string
}

// Emoji is a custom emoji reference.
type Emoji struct {
	ID       string
	Name     string
	Animated bool
}

// Message is an inbound chat message.
type Message interface {
	// ID returns the platform message id.
	ID() string
	// Platform returns the adapter id (discord, telegram, console).
	Platform() string
	Author() User
	ChannelID() string
	// GuildID is empty for direct messages.
	GuildID() string
	Content() string
	CreatedAt() time.Time
	// Edited reports whether this message is an edit of an earlier one.
	Edited() bool
	// Send posts text to the message's channel.
	Send(ctx context.Context, text string) error
	// Reply posts text as a reply to this message.
	Reply(ctx context.Context, text string) error
	// Client returns the adapter's lookup surface. May be nil.
	Client() Client
}

// Typer is implemented by messages whose platform supports a typing indicator.
type Typer interface {
	Typing(ctx context.Context) error
}

// Directory resolves platform entities. Implementations return what they can
// see from cache or REST; an empty result means nothing matched.
type Directory interface {
	// Users returns the users visible from msg (guild members, or the DM pair).
	Users(ctx context.Context, msg Message) ([]User, error)
	Members(ctx context.Context, guildID string) ([]Member, error)
	Channels(ctx context.Context, guildID string) ([]Channel, error)
	Roles(ctx context.Context, guildID string) ([]Role, error)
	Guilds(ctx context.Context) ([]Guild, error)
}

// Client is the per-adapter capability set handed out with each message.
type Client interface {
	Directory

	// Self returns the bot's own account.
	Self() User
	// MentionPrefixes returns the strings that address the bot directly,
	// e.g. "<@123>" on Discord or "@botname" on Telegram.
	MentionPrefixes() []string
}

// Handler consumes inbound messages. commands.Handler implements it.
type Handler interface {
	Handle(ctx context.Context, msg Message) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg Message) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}
