// Package events carries dispatch lifecycle events to listeners.
package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"botframe/pkg/logger"
	"botframe/pkg/platform"
)

// Name identifies an event.
type Name string

const (
	CommandStarted    Name = "command-started"
	CommandFinished   Name = "command-finished"
	CommandCancelled  Name = "command-cancelled"
	CommandTimeout    Name = "command-timeout"
	CommandLocked     Name = "command-locked"
	CommandBlocked    Name = "command-blocked"
	CommandBreakout   Name = "command-breakout"
	Cooldown          Name = "cooldown"
	MessageBlocked    Name = "message-blocked"
	MessageInvalid    Name = "message-invalid"
	Error             Name = "error"
	CommandRegistered Name = "command-registered"
	CommandRemoved    Name = "command-removed"
)

// Event is one lifecycle occurrence. Fields not relevant to Name are zero.
type Event struct {
	Name Name
	// InvocationID groups every event of one Handle call.
	InvocationID string
	Time         time.Time

	Message platform.Message
	Command string

	Args      map[string]any
	Result    any
	Reason    string
	Remaining time.Duration
	Err       error
	// Retry is the message re-dispatched by a breakout.
	Retry platform.Message

	Prefix string
	Alias  string
}

// Listener handles an event. Errors are logged and counted.
type Listener func(ctx context.Context, ev *Event) error

// Sink receives every emitted event after the listeners ran.
type Sink interface {
	Publish(ctx context.Context, ev *Event) error
}

// Emitter dispatches events synchronously to listeners.
type Emitter struct {
	log       *logger.Logger
	listeners map[Name][]Listener
	sinks     []Sink
	mu        sync.RWMutex

	emitted     map[Name]uint64
	errors      uint64
	metricsLock sync.Mutex
}

// NewEmitter creates an emitter with no listeners.
func NewEmitter(log *logger.Logger) *Emitter {
	return &Emitter{
		log:       log.Named("events"),
		listeners: make(map[Name][]Listener),
		emitted:   make(map[Name]uint64),
	}
}

// On adds a listener for name.
func (e *Emitter) On(name Name, l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[name] = append(e.listeners[name], l)
}

// Off removes every listener for name.
func (e *Emitter) Off(name Name) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.listeners, name)
}

// AddSink attaches a sink.
func (e *Emitter) AddSink(s Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, s)
}

// ListenerCount returns the number of listeners for name.
func (e *Emitter) ListenerCount(name Name) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[name])
}

// Emit runs the listeners for ev.Name in registration order, then the sinks.
func (e *Emitter) Emit(ctx context.Context, ev *Event) {
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}

	e.mu.RLock()
	listeners := append([]Listener(nil), e.listeners[ev.Name]...)
	sinks := append([]Sink(nil), e.sinks...)
	e.mu.RUnlock()

	e.metricsLock.Lock()
	e.emitted[ev.Name]++
	e.metricsLock.Unlock()

	for _, l := range listeners {
		if err := l(ctx, ev); err != nil {
			e.incrementErrors()
			e.log.Error("Listener error",
				zap.String("event", string(ev.Name)),
				zap.String("command", ev.Command),
				zap.Error(err))
		}
	}

	for _, s := range sinks {
		if err := s.Publish(ctx, ev); err != nil {
			e.incrementErrors()
			e.log.Warn("Sink error",
				zap.String("event", string(ev.Name)),
				zap.Error(err))
		}
	}
}

func (e *Emitter) incrementErrors() {
	e.metricsLock.Lock()
	e.errors++
	e.metricsLock.Unlock()
}

// GetMetrics returns per-event emit counts plus listener errors.
func (e *Emitter) GetMetrics() map[string]uint64 {
	e.metricsLock.Lock()
	defer e.metricsLock.Unlock()

	out := make(map[string]uint64, len(e.emitted)+1)
	for name, n := range e.emitted {
		out[string(name)] = n
	}
	out["errors"] = e.errors
	return out
}
