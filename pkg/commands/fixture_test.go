package commands

import (
	"context"
	"sync"
	"testing"
	"time"

	"botframe/pkg/arguments"
	"botframe/pkg/events"
	"botframe/pkg/logger"
	"botframe/pkg/platform"
	"botframe/pkg/prompt"
	"botframe/pkg/types"
)

type recorder struct {
	mu     sync.Mutex
	events []*events.Event
}

func (r *recorder) Publish(_ context.Context, ev *events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) count(name events.Name) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if ev.Name == name {
			n++
		}
	}
	return n
}

func (r *recorder) last(name events.Name) *events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Name == name {
			return r.events[i]
		}
	}
	return nil
}

type fixture struct {
	registry *Registry
	resolver *Resolver
	handler  *Handler
	hub      *prompt.Hub
	emitter  *events.Emitter
	rec      *recorder
}

func newFixture(t *testing.T, opts Options, inhibitor Inhibitor) *fixture {
	t.Helper()

	log := logger.NewNop()
	emitter := events.NewEmitter(log)
	rec := &recorder{}
	emitter.AddSink(rec)

	registry := NewRegistry(log, types.NewRegistry(), emitter)
	hub := prompt.NewHub()
	t.Cleanup(hub.Close)

	runner := arguments.NewRunner(log, hub, arguments.PromptOptions{Time: time.Second})
	resolver := NewResolver(registry, Static("!"), false)
	handler := NewHandler(HandlerDeps{
		Log:       log,
		Registry:  registry,
		Resolver:  resolver,
		Runner:    runner,
		Hub:       hub,
		Emitter:   emitter,
		Inhibitor: inhibitor,
	}, opts)

	return &fixture{
		registry: registry,
		resolver: resolver,
		handler:  handler,
		hub:      hub,
		emitter:  emitter,
		rec:      rec,
	}
}

func (f *fixture) register(t *testing.T, cmd *Command) *Command {
	t.Helper()
	if err := f.registry.Register(cmd); err != nil {
		t.Fatalf("register %s: %v", cmd.ID, err)
	}
	return cmd
}

func (f *fixture) handle(t *testing.T, msg platform.Message) {
	t.Helper()
	if err := f.handler.Handle(context.Background(), msg); err != nil {
		t.Fatalf("handle %q: %v", msg.Content(), err)
	}
}

// recordExec returns an exec func that stores the args of every run.
func recordExec(calls *[]arguments.Args, mu *sync.Mutex) ExecFunc {
	return func(ctx context.Context, msg platform.Message, args arguments.Args) (any, error) {
		mu.Lock()
		defer mu.Unlock()
		*calls = append(*calls, args)
		return "ok", nil
	}
}

func noop(ctx context.Context, msg platform.Message, args arguments.Args) (any, error) {
	return nil, nil
}
