package console

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"botframe/pkg/config"
	"botframe/pkg/logger"
	"botframe/pkg/platform"
)

// scriptReader returns lines one by one, then EOF.
type scriptReader struct {
	lines []string
}

func (r *scriptReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func (r *scriptReader) Close() error { return nil }

type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestConsoleDispatchesLines(t *testing.T) {
	var mu sync.Mutex
	var got []string
	handler := platform.HandlerFunc(func(ctx context.Context, msg platform.Message) error {
		mu.Lock()
		got = append(got, msg.Content())
		mu.Unlock()
		return msg.Reply(ctx, "echo: "+msg.Content())
	})

	a := New(logger.NewNop(), config.ConsoleConfig{Enabled: true, Username: "dev"}, handler)
	out := &lockedBuffer{}
	a.reader = &scriptReader{lines: []string{"!ping", "   ", "!help", "exit", "!never"}}
	a.out = out

	if err := a.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	select {
	case <-a.Done():
	case <-time.After(time.Second):
		t.Fatalf("done should close when the loop ends")
	}
	if err := a.Stop(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 2 {
		t.Fatalf("expected two dispatched lines, got %v", got)
	}
	text := out.String()
	if !strings.Contains(text, "echo: !ping") || !strings.Contains(text, "echo: !help") || strings.Contains(text, "!never") {
		t.Fatalf("unexpected output:\n%s", text)
	}
}

func TestConsoleMessageIsDirect(t *testing.T) {
	a := New(logger.NewNop(), config.ConsoleConfig{UserID: "me", Username: "dev"}, nil)
	msg := &Message{id: "1", text: "hi", adapter: a}

	if msg.GuildID() != "" || msg.Platform() != "console" || msg.Author().ID != "me" {
		t.Fatalf("unexpected message fields")
	}
	users, _ := a.Users(context.Background(), msg)
	if len(users) != 2 || users[1].ID != "botframe" || !users[1].Bot {
		t.Fatalf("unexpected users: %+v", users)
	}
	if a.IsEnabled() {
		t.Fatalf("adapter should follow the enabled flag")
	}
}

func TestConsoleReportsHandlerErrors(t *testing.T) {
	handler := platform.HandlerFunc(func(context.Context, platform.Message) error {
		return io.ErrUnexpectedEOF
	})
	a := New(logger.NewNop(), config.ConsoleConfig{}, handler)
	out := &lockedBuffer{}
	a.reader = &scriptReader{lines: []string{"!boom"}}
	a.out = out

	_ = a.Start(context.Background())
	_ = a.Stop(context.Background())

	if !strings.Contains(out.String(), "error: unexpected EOF") {
		t.Fatalf("expected error line, got:\n%s", out.String())
	}
}
