// Package platformtest provides in-memory platform fakes for tests.
package platformtest

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"botframe/pkg/platform"
)

var seq atomic.Int64

// Outbox records every text sent through messages that share it.
type Outbox struct {
	mu   sync.Mutex
	sent []string
	c    chan string
}

// NewOutbox returns an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{c: make(chan string, 256)}
}

func (o *Outbox) push(text string) {
	o.mu.Lock()
	o.sent = append(o.sent, text)
	o.mu.Unlock()
	select {
	case o.c <- text:
	default:
	}
}

// Sent returns a copy of every recorded text.
func (o *Outbox) Sent() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.sent...)
}

// Next waits for the next sent text.
func (o *Outbox) Next(timeout time.Duration) (string, bool) {
	select {
	case text := <-o.c:
		return text, true
	case <-time.After(timeout):
		return "", false
	}
}

// Message is a mutable fake platform.Message.
type Message struct {
	MsgID      string
	PlatformID string
	User       platform.User
	Channel    string
	Guild      string
	Text       string
	At         time.Time
	IsEdit     bool
	Dir        platform.Client
	Outbox     *Outbox
}

// NewMessage returns a guild message from user u1 in channel c1 of guild g1.
func NewMessage(content string) *Message {
	return &Message{
		MsgID:      strconv.FormatInt(seq.Add(1), 10),
		PlatformID: "test",
		User:       platform.User{ID: "u1", Username: "alice"},
		Channel:    "c1",
		Guild:      "g1",
		Text:       content,
		At:         time.Now(),
		Outbox:     NewOutbox(),
	}
}

// Follow returns a new message from the same author and channel that shares
// this message's outbox and client.
func (m *Message) Follow(content string) *Message {
	next := *m
	next.MsgID = strconv.FormatInt(seq.Add(1), 10)
	next.Text = content
	next.At = time.Now()
	next.IsEdit = false
	return &next
}

func (m *Message) ID() string              { return m.MsgID }
func (m *Message) Platform() string        { return m.PlatformID }
func (m *Message) Author() platform.User   { return m.User }
func (m *Message) ChannelID() string       { return m.Channel }
func (m *Message) GuildID() string         { return m.Guild }
func (m *Message) Content() string         { return m.Text }
func (m *Message) CreatedAt() time.Time    { return m.At }
func (m *Message) Edited() bool            { return m.IsEdit }
func (m *Message) Client() platform.Client { return m.Dir }

func (m *Message) Send(ctx context.Context, text string) error {
	m.Outbox.push(text)
	return nil
}

func (m *Message) Reply(ctx context.Context, text string) error {
	m.Outbox.push(text)
	return nil
}

// Client is a static platform.Client.
type Client struct {
	SelfUser    platform.User
	Mentions    []string
	UserList    []platform.User
	MemberList  map[string][]platform.Member
	ChannelList map[string][]platform.Channel
	RoleList    map[string][]platform.Role
	GuildList   []platform.Guild
}

func (c *Client) Self() platform.User        { return c.SelfUser }
func (c *Client) MentionPrefixes() []string { return c.Mentions }

func (c *Client) Users(ctx context.Context, msg platform.Message) ([]platform.User, error) {
	return c.UserList, nil
}

func (c *Client) Members(ctx context.Context, guildID string) ([]platform.Member, error) {
	return c.MemberList[guildID], nil
}

func (c *Client) Channels(ctx context.Context, guildID string) ([]platform.Channel, error) {
	return c.ChannelList[guildID], nil
}

func (c *Client) Roles(ctx context.Context, guildID string) ([]platform.Role, error) {
	return c.RoleList[guildID], nil
}

func (c *Client) Guilds(ctx context.Context) ([]platform.Guild, error) {
	return c.GuildList, nil
}
