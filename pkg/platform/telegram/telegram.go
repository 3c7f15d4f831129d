// Package telegram connects a Telegram bot to the dispatcher over long
// polling.
package telegram

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"botframe/pkg/config"
	"botframe/pkg/logger"
	"botframe/pkg/platform"
)

// botAPI is the part of tgbotapi.BotAPI the adapter uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetChatAdministrators(cfg tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error)
}

// Adapter implements platform.Adapter for Telegram.
type Adapter struct {
	log     *logger.Logger
	config  config.TelegramConfig
	handler platform.Handler

	bot      botAPI
	api      *tgbotapi.BotAPI
	self     platform.User
	stopOnce sync.Once
	wg       sync.WaitGroup

	chatsMu sync.RWMutex
	chats   map[int64]platform.Guild

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a Telegram adapter delivering messages to handler.
func New(log *logger.Logger, cfg config.TelegramConfig, handler platform.Handler) (*Adapter, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Adapter{
		log:     log.Named("telegram"),
		config:  cfg,
		handler: handler,
		chats:   make(map[int64]platform.Guild),
		ctx:     ctx,
		cancel:  cancel,
	}, nil
}

// ID returns the adapter identifier.
func (a *Adapter) ID() string {
	return "telegram"
}

// Name returns the platform name.
func (a *Adapter) Name() string {
	return "Telegram"
}

// IsEnabled returns whether the adapter is enabled.
func (a *Adapter) IsEnabled() bool {
	return a.config.Enabled
}

func (a *Adapter) pollTimeout() int {
	if a.config.Timeout > 0 {
		return a.config.Timeout
	}
	return 50
}

// Start connects and processes updates until ctx or Stop ends it.
func (a *Adapter) Start(ctx context.Context) error {
	a.log.Info("Starting Telegram adapter")

	// The HTTP timeout outlives the long poll so polls are not cut off.
	httpClient := &http.Client{Timeout: time.Duration(a.pollTimeout()+25) * time.Second}
	bot, err := tgbotapi.NewBotAPIWithClient(a.config.Token, tgbotapi.APIEndpoint, httpClient)
	if err != nil {
		return fmt.Errorf("creating telegram bot: %w", err)
	}
	bot.Debug = a.config.Debug
	a.api = bot
	a.bot = bot
	a.self = toUser(&bot.Self)

	a.log.Info("Telegram bot connected", zap.String("username", bot.Self.UserName))

	u := tgbotapi.NewUpdate(0)
	u.Timeout = a.pollTimeout()
	updates := bot.GetUpdatesChan(u)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			a.handleUpdate(update)
		case <-ctx.Done():
			a.stopReceiving()
			return nil
		case <-a.ctx.Done():
			a.stopReceiving()
			return nil
		}
	}
}

// Stop ends polling and waits for running handlers.
func (a *Adapter) Stop(ctx context.Context) error {
	a.log.Info("Stopping Telegram adapter")
	a.cancel()
	a.stopReceiving()

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("Timeout waiting for Telegram handlers")
	}
	return nil
}

func (a *Adapter) stopReceiving() {
	if a.api == nil {
		return
	}
	a.stopOnce.Do(a.api.StopReceivingUpdates)
}

func (a *Adapter) handleUpdate(update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		a.dispatch(update.Message, false)
	case update.EditedMessage != nil:
		a.dispatch(update.EditedMessage, true)
	}
}

func (a *Adapter) dispatch(m *tgbotapi.Message, edited bool) {
	if m.From == nil || m.Chat == nil || m.Text == "" {
		return
	}
	if a.ctx.Err() != nil {
		return
	}
	a.remember(m.Chat)

	msg := &Message{msg: m, adapter: a, edited: edited, text: a.normalize(m.Text)}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.handler.Handle(a.ctx, msg); err != nil {
			a.log.Error("Failed to handle message",
				zap.Int("message_id", m.MessageID),
				zap.Int64("chat_id", m.Chat.ID),
				zap.Int64("user_id", m.From.ID),
				zap.Error(err))
		}
	}()
}

// normalize drops the "@botname" suffix Telegram appends to commands in
// groups, so "/help@framebot" resolves like "/help".
func (a *Adapter) normalize(text string) string {
	if a.self.Username == "" || !strings.HasPrefix(text, "/") {
		return text
	}
	first, rest, _ := strings.Cut(text, " ")
	suffix := "@" + a.self.Username
	if len(first) > len(suffix) && strings.EqualFold(first[len(first)-len(suffix):], suffix) {
		first = first[:len(first)-len(suffix)]
		if rest != "" {
			return first + " " + rest
		}
		return first
	}
	return text
}

func (a *Adapter) remember(chat *tgbotapi.Chat) {
	if chat.IsPrivate() {
		return
	}
	a.chatsMu.Lock()
	a.chats[chat.ID] = platform.Guild{ID: formatID(chat.ID), Name: chat.Title}
	a.chatsMu.Unlock()
}

// Self returns the bot account.
func (a *Adapter) Self() platform.User {
	return a.self
}

// MentionPrefixes returns "@botname".
func (a *Adapter) MentionPrefixes() []string {
	if a.self.Username == "" {
		return nil
	}
	return []string{"@" + a.self.Username}
}

// Users returns the author, the bot and, in groups, the chat
// administrators. Telegram does not expose full member lists to bots.
func (a *Adapter) Users(ctx context.Context, msg platform.Message) ([]platform.User, error) {
	seen := map[string]bool{}
	var users []platform.User
	add := func(u platform.User) {
		if u.ID == "" || seen[u.ID] {
			return
		}
		seen[u.ID] = true
		users = append(users, u)
	}

	add(msg.Author())
	if msg.GuildID() != "" {
		members, err := a.Members(ctx, msg.GuildID())
		if err != nil {
			return nil, err
		}
		for _, m := range members {
			add(m.User)
		}
	}
	add(a.self)
	return users, nil
}

// Members returns the administrators of a group chat.
func (a *Adapter) Members(_ context.Context, guildID string) ([]platform.Member, error) {
	chatID, err := parseID(guildID)
	if err != nil {
		return nil, err
	}
	if a.bot == nil {
		return nil, fmt.Errorf("telegram bot not initialized")
	}
	admins, err := a.bot.GetChatAdministrators(tgbotapi.ChatAdministratorsConfig{
		ChatConfig: tgbotapi.ChatConfig{ChatID: chatID},
	})
	if err != nil {
		return nil, fmt.Errorf("listing telegram administrators: %w", err)
	}

	out := make([]platform.Member, 0, len(admins))
	for _, m := range admins {
		if m.User == nil {
			continue
		}
		out = append(out, platform.Member{
			User:    toUser(m.User),
			GuildID: guildID,
			Nick:    m.CustomTitle,
		})
	}
	return out, nil
}

// Channels returns the group chat itself, the only channel of a Telegram
// group.
func (a *Adapter) Channels(_ context.Context, guildID string) ([]platform.Channel, error) {
	chatID, err := parseID(guildID)
	if err != nil {
		return nil, err
	}
	a.chatsMu.RLock()
	g, ok := a.chats[chatID]
	a.chatsMu.RUnlock()
	if !ok {
		return nil, nil
	}
	return []platform.Channel{{ID: g.ID, Name: g.Name, GuildID: g.ID, Kind: platform.ChannelText}}, nil
}

// Roles returns nothing; Telegram chats have no roles.
func (a *Adapter) Roles(context.Context, string) ([]platform.Role, error) {
	return nil, nil
}

// Guilds returns the group chats seen since start, sorted by id.
func (a *Adapter) Guilds(context.Context) ([]platform.Guild, error) {
	a.chatsMu.RLock()
	defer a.chatsMu.RUnlock()

	out := make([]platform.Guild, 0, len(a.chats))
	for _, g := range a.chats {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func toUser(u *tgbotapi.User) platform.User {
	name := u.UserName
	if name == "" {
		name = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	return platform.User{ID: formatID(u.ID), Username: name, Bot: u.IsBot}
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func parseID(id string) (int64, error) {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid telegram chat id %q: %w", id, err)
	}
	return n, nil
}
