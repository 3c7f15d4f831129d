package events

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"botframe/pkg/logger"
	"botframe/pkg/platform/platformtest"
)

type recordingSink struct {
	events []*Event
}

func (s *recordingSink) Publish(_ context.Context, ev *Event) error {
	s.events = append(s.events, ev)
	return nil
}

func TestEmitterListenersRunInOrderThenSinks(t *testing.T) {
	emitter := NewEmitter(logger.NewNop())
	sink := &recordingSink{}
	emitter.AddSink(sink)

	var order []string
	emitter.On(CommandFinished, func(ctx context.Context, ev *Event) error {
		order = append(order, "first")
		return nil
	})
	emitter.On(CommandFinished, func(ctx context.Context, ev *Event) error {
		order = append(order, "second")
		return errors.New("listener failed")
	})
	emitter.On(CommandStarted, func(ctx context.Context, ev *Event) error {
		order = append(order, "other")
		return nil
	})

	emitter.Emit(context.Background(), &Event{Name: CommandFinished, Command: "ping"})

	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("unexpected listener order: %v", order)
	}
	if len(sink.events) != 1 || sink.events[0].Time.IsZero() {
		t.Fatalf("expected sink to receive a timestamped event, got %+v", sink.events)
	}

	metrics := emitter.GetMetrics()
	if metrics[string(CommandFinished)] != 1 || metrics["errors"] != 1 {
		t.Fatalf("unexpected metrics: %v", metrics)
	}
}

func TestEmitterOffAndListenerCount(t *testing.T) {
	emitter := NewEmitter(logger.NewNop())
	emitter.On(Error, func(ctx context.Context, ev *Event) error { return nil })
	if emitter.ListenerCount(Error) != 1 {
		t.Fatalf("expected one listener")
	}
	emitter.Off(Error)
	if emitter.ListenerCount(Error) != 0 {
		t.Fatalf("expected listeners removed")
	}
}

func TestRecordCarriesMessageFields(t *testing.T) {
	msg := platformtest.NewMessage("!ping")
	rec := newRecord(&Event{
		Name:      Cooldown,
		Message:   msg,
		Command:   "ping",
		Remaining: 1500 * time.Millisecond,
		Err:       errors.New("boom"),
	})

	data, err := json.Marshal(rec)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["user_id"] != msg.Author().ID || decoded["channel_id"] != msg.ChannelID() {
		t.Fatalf("message fields missing: %s", data)
	}
	if decoded["remaining_ms"] != float64(1500) || decoded["error"] != "boom" {
		t.Fatalf("unexpected payload: %s", data)
	}
}

func TestRedisPublisherDropsWhenBufferFull(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	p := newRedisPublisher(logger.NewNop(), client, &RedisPublisherConfig{BufferSize: 1})
	defer p.Stop()

	if got := p.Channel(CommandStarted); got != "botframe:events:command-started" {
		t.Fatalf("unexpected channel %q", got)
	}

	ctx := context.Background()
	if err := p.Publish(ctx, &Event{Name: CommandStarted}); err != nil {
		t.Fatalf("first publish should enqueue: %v", err)
	}
	if err := p.Publish(ctx, &Event{Name: CommandStarted}); err == nil {
		t.Fatalf("second publish should report a full buffer")
	}
	if p.GetMetrics()["dropped"] != 1 {
		t.Fatalf("expected one dropped event, got %v", p.GetMetrics())
	}
}
