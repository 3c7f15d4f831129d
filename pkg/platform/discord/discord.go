// Package discord connects a Discord bot session to the dispatcher.
package discord

import (
	"context"
	"fmt"
	"sync"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"botframe/pkg/config"
	"botframe/pkg/logger"
	"botframe/pkg/platform"
)

// DefaultIntents are used when the config leaves intents at zero.
const DefaultIntents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsDirectMessages |
	discordgo.IntentsMessageContent

// Adapter implements platform.Adapter for Discord.
type Adapter struct {
	log     *logger.Logger
	config  config.DiscordConfig
	handler platform.Handler
	session *discordgo.Session

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	removes []func()
	wg      sync.WaitGroup
}

// New creates a Discord adapter delivering messages to handler.
func New(log *logger.Logger, cfg config.DiscordConfig, handler platform.Handler) (*Adapter, error) {
	session, err := discordgo.New("Bot " + cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("creating discord session: %w", err)
	}
	return newAdapter(log, cfg, handler, session), nil
}

func newAdapter(log *logger.Logger, cfg config.DiscordConfig, handler platform.Handler, session *discordgo.Session) *Adapter {
	ctx, cancel := context.WithCancel(context.Background())
	return &Adapter{
		log:     log.Named("discord"),
		config:  cfg,
		handler: handler,
		session: session,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// ID returns the adapter identifier.
func (a *Adapter) ID() string {
	return "discord"
}

// Name returns the platform name.
func (a *Adapter) Name() string {
	return "Discord"
}

// IsEnabled returns whether the adapter is enabled.
func (a *Adapter) IsEnabled() bool {
	return a.config.Enabled
}

// Start opens the gateway connection.
func (a *Adapter) Start(ctx context.Context) error {
	a.log.Info("Starting Discord adapter")

	a.mu.Lock()
	a.removes = append(a.removes,
		a.session.AddHandler(a.onMessageCreate),
		a.session.AddHandler(a.onMessageUpdate),
	)
	a.mu.Unlock()

	a.session.Identify.Intents = DefaultIntents
	if a.config.Intents != 0 {
		a.session.Identify.Intents = discordgo.Intent(a.config.Intents)
	}

	if err := a.session.Open(); err != nil {
		return fmt.Errorf("opening discord connection: %w", err)
	}

	self := a.Self()
	a.log.Info("Discord bot connected",
		zap.String("username", self.Username),
		zap.String("user_id", self.ID))
	return nil
}

// Stop closes the gateway connection and waits for running handlers.
func (a *Adapter) Stop(ctx context.Context) error {
	a.log.Info("Stopping Discord adapter")
	a.cancel()

	a.mu.Lock()
	for _, remove := range a.removes {
		remove()
	}
	a.removes = nil
	a.mu.Unlock()

	if err := a.session.Close(); err != nil {
		return fmt.Errorf("closing discord session: %w", err)
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("Timeout waiting for Discord handlers")
	}
	return nil
}

func (a *Adapter) onMessageCreate(_ *discordgo.Session, m *discordgo.MessageCreate) {
	a.dispatch(m.Message, false)
}

func (a *Adapter) onMessageUpdate(_ *discordgo.Session, m *discordgo.MessageUpdate) {
	// Embed-only updates carry no author or content.
	if m.Message == nil || m.Author == nil || m.Content == "" {
		return
	}
	a.dispatch(m.Message, true)
}

// dispatch hands msg to the handler on its own goroutine.
func (a *Adapter) dispatch(m *discordgo.Message, edited bool) {
	if m == nil || m.Author == nil {
		return
	}
	if a.ctx.Err() != nil {
		return
	}

	msg := &Message{msg: m, adapter: a, edited: edited}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.handler.Handle(a.ctx, msg); err != nil {
			a.log.Error("Failed to handle message",
				zap.String("message_id", m.ID),
				zap.String("channel_id", m.ChannelID),
				zap.String("user_id", m.Author.ID),
				zap.Error(err))
		}
	}()
}

// Self returns the bot account.
func (a *Adapter) Self() platform.User {
	if a.session.State == nil || a.session.State.User == nil {
		return platform.User{}
	}
	return toUser(a.session.State.User)
}

// MentionPrefixes returns both mention forms of the bot.
func (a *Adapter) MentionPrefixes() []string {
	self := a.Self()
	if self.ID == "" {
		return nil
	}
	return []string{"<@" + self.ID + ">", "<@!" + self.ID + ">"}
}

// Users returns the members of the message's guild, or the DM recipients
// plus the bot.
func (a *Adapter) Users(ctx context.Context, msg platform.Message) ([]platform.User, error) {
	if msg.GuildID() != "" {
		members, err := a.Members(ctx, msg.GuildID())
		if err != nil {
			return nil, err
		}
		users := make([]platform.User, 0, len(members))
		for _, m := range members {
			users = append(users, m.User)
		}
		return users, nil
	}

	users := []platform.User{msg.Author()}
	if ch, err := a.session.State.Channel(msg.ChannelID()); err == nil {
		for _, u := range ch.Recipients {
			if u.ID != msg.Author().ID {
				users = append(users, toUser(u))
			}
		}
	}
	if self := a.Self(); self.ID != "" && self.ID != msg.Author().ID {
		users = append(users, self)
	}
	return users, nil
}

// Members returns guild members from state, falling back to REST.
func (a *Adapter) Members(ctx context.Context, guildID string) ([]platform.Member, error) {
	var raw []*discordgo.Member
	if g, err := a.session.State.Guild(guildID); err == nil && len(g.Members) > 0 {
		a.session.State.RLock()
		raw = append(raw, g.Members...)
		a.session.State.RUnlock()
	} else {
		raw, err = a.session.GuildMembers(guildID, "", 1000, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("listing discord members: %w", err)
		}
	}

	out := make([]platform.Member, 0, len(raw))
	for _, m := range raw {
		if m.User == nil {
			continue
		}
		out = append(out, platform.Member{
			User:    toUser(m.User),
			GuildID: guildID,
			Nick:    m.Nick,
			Roles:   append([]string(nil), m.Roles...),
		})
	}
	return out, nil
}

// Channels returns guild channels from state, falling back to REST.
func (a *Adapter) Channels(ctx context.Context, guildID string) ([]platform.Channel, error) {
	var raw []*discordgo.Channel
	if g, err := a.session.State.Guild(guildID); err == nil && len(g.Channels) > 0 {
		a.session.State.RLock()
		raw = append(raw, g.Channels...)
		a.session.State.RUnlock()
	} else {
		raw, err = a.session.GuildChannels(guildID, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("listing discord channels: %w", err)
		}
	}

	out := make([]platform.Channel, 0, len(raw))
	for _, c := range raw {
		out = append(out, platform.Channel{
			ID:      c.ID,
			Name:    c.Name,
			GuildID: guildID,
			Kind:    channelKind(c.Type),
		})
	}
	return out, nil
}

// Roles returns guild roles from state, falling back to REST.
func (a *Adapter) Roles(ctx context.Context, guildID string) ([]platform.Role, error) {
	var raw []*discordgo.Role
	if g, err := a.session.State.Guild(guildID); err == nil && len(g.Roles) > 0 {
		a.session.State.RLock()
		raw = append(raw, g.Roles...)
		a.session.State.RUnlock()
	} else {
		raw, err = a.session.GuildRoles(guildID, discordgo.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("listing discord roles: %w", err)
		}
	}

	out := make([]platform.Role, 0, len(raw))
	for _, r := range raw {
		out = append(out, platform.Role{ID: r.ID, Name: r.Name, GuildID: guildID})
	}
	return out, nil
}

// Guilds returns the guilds the bot is in.
func (a *Adapter) Guilds(_ context.Context) ([]platform.Guild, error) {
	a.session.State.RLock()
	defer a.session.State.RUnlock()

	out := make([]platform.Guild, 0, len(a.session.State.Guilds))
	for _, g := range a.session.State.Guilds {
		out = append(out, platform.Guild{ID: g.ID, Name: g.Name})
	}
	return out, nil
}

func toUser(u *discordgo.User) platform.User {
	return platform.User{
		ID:            u.ID,
		Username:      u.Username,
		Discriminator: u.Discriminator,
		Bot:           u.Bot,
	}
}

func channelKind(t discordgo.ChannelType) platform.ChannelKind {
	switch t {
	case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews:
		return platform.ChannelText
	case discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice:
		return platform.ChannelVoice
	case discordgo.ChannelTypeDM, discordgo.ChannelTypeGroupDM:
		return platform.ChannelDM
	case discordgo.ChannelTypeGuildCategory:
		return platform.ChannelCategory
	default:
		return platform.ChannelOther
	}
}
