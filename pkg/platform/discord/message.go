package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"botframe/pkg/platform"
)

// maxMessageLength is Discord's limit for message content.
const maxMessageLength = 2000

// Message wraps a discordgo message.
type Message struct {
	msg     *discordgo.Message
	adapter *Adapter
	edited  bool
}

var (
	_ platform.Message = (*Message)(nil)
	_ platform.Typer   = (*Message)(nil)
	_ platform.Client  = (*Adapter)(nil)
)

func (m *Message) ID() string              { return m.msg.ID }
func (m *Message) Platform() string        { return "discord" }
func (m *Message) Author() platform.User   { return toUser(m.msg.Author) }
func (m *Message) ChannelID() string       { return m.msg.ChannelID }
func (m *Message) GuildID() string         { return m.msg.GuildID }
func (m *Message) Content() string         { return m.msg.Content }
func (m *Message) Edited() bool            { return m.edited }
func (m *Message) Client() platform.Client { return m.adapter }

// CreatedAt returns the edit time for edited messages.
func (m *Message) CreatedAt() time.Time {
	if m.edited && m.msg.EditedTimestamp != nil {
		return *m.msg.EditedTimestamp
	}
	return m.msg.Timestamp
}

// Send posts text to the channel, split to fit Discord's length limit.
func (m *Message) Send(ctx context.Context, text string) error {
	for _, chunk := range splitMessage(text, maxMessageLength) {
		if _, err := m.adapter.session.ChannelMessageSend(m.msg.ChannelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("sending discord message: %w", err)
		}
	}
	m.adapter.log.Debug("Sent Discord message",
		zap.String("channel_id", m.msg.ChannelID),
		zap.Int("length", len(text)))
	return nil
}

// Reply answers with a message reference. Only the first chunk is a reply.
func (m *Message) Reply(ctx context.Context, text string) error {
	chunks := splitMessage(text, maxMessageLength)
	if _, err := m.adapter.session.ChannelMessageSendReply(m.msg.ChannelID, chunks[0], m.msg.Reference(), discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("sending discord reply: %w", err)
	}
	for _, chunk := range chunks[1:] {
		if _, err := m.adapter.session.ChannelMessageSend(m.msg.ChannelID, chunk, discordgo.WithContext(ctx)); err != nil {
			return fmt.Errorf("sending discord message: %w", err)
		}
	}
	return nil
}

// Typing triggers the typing indicator.
func (m *Message) Typing(ctx context.Context) error {
	return m.adapter.session.ChannelTyping(m.msg.ChannelID, discordgo.WithContext(ctx))
}

// splitMessage cuts text into chunks of at most limit runes, preferring
// line breaks.
func splitMessage(text string, limit int) []string {
	runes := []rune(text)
	if len(runes) <= limit {
		return []string{text}
	}

	var chunks []string
	for len(runes) > limit {
		cut := limit
		for i := limit - 1; i > limit/2; i-- {
			if runes[i] == '\n' {
				cut = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	if len(runes) > 0 {
		chunks = append(chunks, string(runes))
	}
	return chunks
}
