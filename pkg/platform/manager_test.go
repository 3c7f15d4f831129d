package platform

import (
	"context"
	"sync/atomic"
	"testing"

	"botframe/pkg/logger"
)

type stubAdapter struct {
	id      string
	enabled bool
	started atomic.Int32
	stopped atomic.Int32
}

func (s *stubAdapter) ID() string      { return s.id }
func (s *stubAdapter) Name() string    { return s.id }
func (s *stubAdapter) IsEnabled() bool { return s.enabled }

func (s *stubAdapter) Start(ctx context.Context) error {
	s.started.Add(1)
	<-ctx.Done()
	return nil
}

func (s *stubAdapter) Stop(ctx context.Context) error {
	s.stopped.Add(1)
	return nil
}

func TestManagerLifecycle(t *testing.T) {
	m := NewManager(logger.NewNop())

	on := &stubAdapter{id: "discord", enabled: true}
	off := &stubAdapter{id: "telegram"}
	if err := m.Register(on); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(off); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := m.Register(on); err == nil {
		t.Fatalf("expected duplicate registration error")
	}

	var hooked atomic.Bool
	m.OnStop(func() { hooked.Store(true) })

	if err := m.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := m.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}

	if on.started.Load() != 1 || on.stopped.Load() != 1 {
		t.Fatalf("enabled adapter: started=%d stopped=%d", on.started.Load(), on.stopped.Load())
	}
	if off.started.Load() != 0 || off.stopped.Load() != 0 {
		t.Fatalf("disabled adapter should not run")
	}
	if !hooked.Load() {
		t.Fatalf("expected stop hook to run")
	}
	if got := m.IDs(); len(got) != 2 || got[0] != "discord" {
		t.Fatalf("unexpected ids %v", got)
	}
}
