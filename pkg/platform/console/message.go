package console

import (
	"context"
	"time"

	"botframe/pkg/platform"
)

// Message is a line typed into the console. It behaves like a direct
// message.
type Message struct {
	id      string
	text    string
	at      time.Time
	adapter *Adapter
}

var (
	_ platform.Message = (*Message)(nil)
	_ platform.Client  = (*Adapter)(nil)
)

func (m *Message) ID() string              { return m.id }
func (m *Message) Platform() string        { return "console" }
func (m *Message) Author() platform.User   { return m.adapter.user() }
func (m *Message) ChannelID() string       { return channelID }
func (m *Message) GuildID() string         { return "" }
func (m *Message) Content() string         { return m.text }
func (m *Message) CreatedAt() time.Time    { return m.at }
func (m *Message) Edited() bool            { return false }
func (m *Message) Client() platform.Client { return m.adapter }

// Send prints text.
func (m *Message) Send(_ context.Context, text string) error {
	m.adapter.println(text)
	return nil
}

// Reply prints text.
func (m *Message) Reply(ctx context.Context, text string) error {
	return m.Send(ctx, text)
}
