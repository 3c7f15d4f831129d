package prompt

import (
	"context"
	"errors"
	"testing"
	"time"

	"botframe/pkg/platform/platformtest"
)

func TestOpenIsExclusivePerKey(t *testing.T) {
	hub := NewHub()
	msg := platformtest.NewMessage("hi")

	s, err := hub.Open(KeyOf(msg))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if _, err := hub.Open(KeyOf(msg)); !errors.Is(err, ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	other := platformtest.NewMessage("hi")
	other.Channel = "c2"
	if _, err := hub.Open(KeyOf(other)); err != nil {
		t.Fatalf("different channel must not conflict: %v", err)
	}

	s.Close()
	s.Close()
	if hub.Active(KeyOf(msg)) {
		t.Fatalf("close must release the key")
	}
	if _, err := hub.Open(KeyOf(msg)); err != nil {
		t.Fatalf("reopen after close: %v", err)
	}
}

func TestDeliverRoutesByKey(t *testing.T) {
	hub := NewHub()
	msg := platformtest.NewMessage("start")
	s, _ := hub.Open(KeyOf(msg))
	defer s.Close()

	stranger := platformtest.NewMessage("not for you")
	stranger.User.ID = "u2"
	if hub.Deliver(stranger) {
		t.Fatalf("message from another user must not be consumed")
	}

	if !hub.Deliver(msg.Follow("one")) || !hub.Deliver(msg.Follow("two")) {
		t.Fatalf("expected replies to be consumed")
	}

	for _, want := range []string{"one", "two"} {
		got, err := s.Await(context.Background(), time.Second)
		if err != nil {
			t.Fatalf("await: %v", err)
		}
		if got.Content() != want {
			t.Fatalf("got %q, want %q", got.Content(), want)
		}
	}
}

func TestAwaitTimeout(t *testing.T) {
	hub := NewHub()
	s, _ := hub.Open(KeyOf(platformtest.NewMessage("x")))
	defer s.Close()

	if _, err := s.Await(context.Background(), 10*time.Millisecond); !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
}

func TestHubCloseEndsSessions(t *testing.T) {
	hub := NewHub()
	msg := platformtest.NewMessage("x")
	s, _ := hub.Open(KeyOf(msg))

	errc := make(chan error, 1)
	go func() {
		_, err := s.Await(context.Background(), time.Minute)
		errc <- err
	}()

	hub.Close()

	select {
	case err := <-errc:
		if !errors.Is(err, ErrClosed) {
			t.Fatalf("expected ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("await did not return after hub close")
	}
	if hub.Len() != 0 {
		t.Fatalf("expected no open sessions")
	}
	if _, err := hub.Open(KeyOf(msg)); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after hub close, got %v", err)
	}
}
