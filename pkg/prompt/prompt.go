// Package prompt routes replies to open argument prompts.
//
// At most one session is open per (platform, channel, user). While it is
// open, the command handler delivers that user's messages in that channel to
// the session instead of dispatching them.
package prompt

import (
	"context"
	"errors"
	"sync"
	"time"

	"botframe/pkg/platform"
)

var (
	// ErrBusy is returned by Open when the key already has a session.
	ErrBusy = errors.New("prompt already open for this channel and user")
	// ErrTimeout is returned by Await when no reply arrived in time.
	ErrTimeout = errors.New("prompt timed out")
	// ErrClosed is returned by Await after the session or hub was closed.
	ErrClosed = errors.New("prompt closed")
)

// Key identifies a conversation.
type Key struct {
	Platform  string
	ChannelID string
	UserID    string
}

// KeyOf returns the key of msg's author in msg's channel.
func KeyOf(msg platform.Message) Key {
	return Key{
		Platform:  msg.Platform(),
		ChannelID: msg.ChannelID(),
		UserID:    msg.Author().ID,
	}
}

// Hub tracks open sessions.
type Hub struct {
	mu       sync.Mutex
	sessions map[Key]*Session
	closed   bool
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{sessions: make(map[Key]*Session)}
}

// Session is one open prompt.
type Session struct {
	key     Key
	hub     *Hub
	replies chan platform.Message
	done    chan struct{}
	once    sync.Once
}

// Open starts a session for key.
func (h *Hub) Open(key Key) (*Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}
	if _, busy := h.sessions[key]; busy {
		return nil, ErrBusy
	}

	s := &Session{
		key:     key,
		hub:     h,
		replies: make(chan platform.Message, 16),
		done:    make(chan struct{}),
	}
	h.sessions[key] = s
	return s, nil
}

// Active reports whether key has an open session.
func (h *Hub) Active(key Key) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.sessions[key]
	return ok
}

// Len returns the number of open sessions.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.sessions)
}

// Deliver hands msg to the session open for its key. It reports whether the
// message was consumed.
func (h *Hub) Deliver(msg platform.Message) bool {
	h.mu.Lock()
	s, ok := h.sessions[KeyOf(msg)]
	h.mu.Unlock()
	if !ok {
		return false
	}

	select {
	case s.replies <- msg:
		return true
	case <-s.done:
		return false
	default:
		// Buffer full; the reply is dropped but still consumed.
		return true
	}
}

// Close ends every open session and rejects new ones.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	sessions := make([]*Session, 0, len(h.sessions))
	for _, s := range h.sessions {
		sessions = append(sessions, s)
	}
	h.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}

// Key returns the session key.
func (s *Session) Key() Key {
	return s.key
}

// Await waits for the next reply.
func (s *Session) Await(ctx context.Context, timeout time.Duration) (platform.Message, error) {
	// Replies that arrived while the prompt text was being sent come first.
	select {
	case msg := <-s.replies:
		return msg, nil
	default:
	}

	var expired <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case msg := <-s.replies:
		return msg, nil
	case <-expired:
		return nil, ErrTimeout
	case <-s.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close releases the key. Safe to call more than once.
func (s *Session) Close() {
	s.once.Do(func() {
		s.hub.mu.Lock()
		if s.hub.sessions[s.key] == s {
			delete(s.hub.sessions, s.key)
		}
		s.hub.mu.Unlock()
		close(s.done)
	})
}
