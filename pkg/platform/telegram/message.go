package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"botframe/pkg/platform"
)

// Message wraps a Telegram message. Group chats act as guilds; private
// chats are direct messages.
type Message struct {
	msg     *tgbotapi.Message
	adapter *Adapter
	edited  bool
	text    string
}

var (
	_ platform.Message = (*Message)(nil)
	_ platform.Typer   = (*Message)(nil)
	_ platform.Client  = (*Adapter)(nil)
)

func (m *Message) ID() string              { return formatID(int64(m.msg.MessageID)) }
func (m *Message) Platform() string        { return "telegram" }
func (m *Message) Author() platform.User   { return toUser(m.msg.From) }
func (m *Message) ChannelID() string       { return formatID(m.msg.Chat.ID) }
func (m *Message) Content() string         { return m.text }
func (m *Message) Edited() bool            { return m.edited }
func (m *Message) Client() platform.Client { return m.adapter }

// GuildID returns the chat id for group chats.
func (m *Message) GuildID() string {
	if m.msg.Chat.IsPrivate() {
		return ""
	}
	return formatID(m.msg.Chat.ID)
}

// CreatedAt returns the edit time for edited messages.
func (m *Message) CreatedAt() time.Time {
	if m.edited && m.msg.EditDate != 0 {
		return time.Unix(int64(m.msg.EditDate), 0)
	}
	return m.msg.Time()
}

// Send posts text to the chat.
func (m *Message) Send(ctx context.Context, text string) error {
	return m.send(ctx, tgbotapi.NewMessage(m.msg.Chat.ID, text))
}

// Reply posts text as a reply to this message.
func (m *Message) Reply(ctx context.Context, text string) error {
	reply := tgbotapi.NewMessage(m.msg.Chat.ID, text)
	reply.ReplyToMessageID = m.msg.MessageID
	return m.send(ctx, reply)
}

func (m *Message) send(ctx context.Context, c tgbotapi.MessageConfig) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.adapter.bot == nil {
		return fmt.Errorf("telegram bot not initialized")
	}
	if _, err := m.adapter.bot.Send(c); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}

// Typing sends the typing chat action.
func (m *Message) Typing(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.adapter.bot == nil {
		return fmt.Errorf("telegram bot not initialized")
	}
	_, err := m.adapter.bot.Request(tgbotapi.NewChatAction(m.msg.Chat.ID, tgbotapi.ChatTyping))
	return err
}
