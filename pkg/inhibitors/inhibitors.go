// Package inhibitors runs blocking checks against messages and commands.
package inhibitors

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"botframe/pkg/commands"
	"botframe/pkg/logger"
	"botframe/pkg/platform"
)

var (
	// ErrAlreadyRegistered is returned when an inhibitor id is taken.
	ErrAlreadyRegistered = errors.New("inhibitor already registered")
	// ErrNotFound is returned when removing an unknown inhibitor.
	ErrNotFound = errors.New("inhibitor not found")
)

// TestFunc reports whether msg should be blocked. cmd is nil outside the
// post phase.
type TestFunc func(ctx context.Context, msg platform.Message, cmd *commands.Command) (bool, error)

// Inhibitor is a named check run at one phase of dispatch.
type Inhibitor struct {
	ID       string
	Phase    commands.Phase // empty means post
	Priority int
	Category string
	// Reason is reported in blocked events. Defaults to ID.
	Reason string
	Test   TestFunc
}

func (i *Inhibitor) phase() commands.Phase {
	if i.Phase == "" {
		return commands.PhasePost
	}
	return i.Phase
}

func (i *Inhibitor) reason() string {
	if i.Reason == "" {
		return i.ID
	}
	return i.Reason
}

// Set is an ordered collection of inhibitors. It implements
// commands.Inhibitor.
type Set struct {
	log *logger.Logger

	mu    sync.RWMutex
	items map[string]*Inhibitor
	order []string
}

var _ commands.Inhibitor = (*Set)(nil)

// NewSet creates an empty inhibitor set.
func NewSet(log *logger.Logger) *Set {
	return &Set{
		log:   log.Named("inhibitors"),
		items: make(map[string]*Inhibitor),
	}
}

// Add registers inh.
func (s *Set) Add(inh *Inhibitor) error {
	if inh == nil || inh.ID == "" {
		return fmt.Errorf("inhibitor id cannot be empty")
	}
	if inh.Test == nil {
		return fmt.Errorf("inhibitor %s: test cannot be nil", inh.ID)
	}
	switch inh.phase() {
	case commands.PhaseAll, commands.PhasePre, commands.PhasePost:
	default:
		return fmt.Errorf("inhibitor %s: unknown phase %q", inh.ID, inh.Phase)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.items[inh.ID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, inh.ID)
	}
	s.items[inh.ID] = inh
	s.order = append(s.order, inh.ID)

	s.log.Debug("Registered inhibitor",
		zap.String("inhibitor", inh.ID),
		zap.String("phase", string(inh.phase())),
		zap.Int("priority", inh.Priority))
	return nil
}

// Remove deletes the inhibitor with id.
func (s *Set) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.items[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// Get returns the inhibitor with id.
func (s *Set) Get(id string) (*Inhibitor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inh, ok := s.items[id]
	return inh, ok
}

// List returns the inhibitors in registration order.
func (s *Set) List() []*Inhibitor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Inhibitor, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

// Test runs every inhibitor of phase concurrently. Of the ones that block,
// the reason of the highest priority wins, earlier registration breaking
// ties. The first error cancels the remaining checks.
func (s *Set) Test(ctx context.Context, phase commands.Phase, msg platform.Message, cmd *commands.Command) (string, error) {
	var matching []*Inhibitor
	for _, inh := range s.List() {
		if inh.phase() == phase {
			matching = append(matching, inh)
		}
	}
	if len(matching) == 0 {
		return "", nil
	}

	blocked := make([]bool, len(matching))
	eg, egCtx := errgroup.WithContext(ctx)
	for i, inh := range matching {
		eg.Go(func() error {
			ok, err := inh.Test(egCtx, msg, cmd)
			if err != nil {
				return fmt.Errorf("inhibitor %s: %w", inh.ID, err)
			}
			blocked[i] = ok
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return "", err
	}

	var winner *Inhibitor
	for i, inh := range matching {
		if blocked[i] && (winner == nil || inh.Priority > winner.Priority) {
			winner = inh
		}
	}
	if winner == nil {
		return "", nil
	}

	fields := []zap.Field{
		zap.String("inhibitor", winner.ID),
		zap.String("phase", string(phase)),
		zap.String("user_id", msg.Author().ID),
	}
	if cmd != nil {
		fields = append(fields, zap.String("command", cmd.ID))
	}
	s.log.Debug("Message inhibited", fields...)
	return winner.reason(), nil
}

// Blacklist blocks every message from the given user ids at the all phase.
func Blacklist(ids ...string) *Inhibitor {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return &Inhibitor{
		ID:       "blacklist",
		Phase:    commands.PhaseAll,
		Priority: 100,
		Reason:   "blacklist",
		Test: func(_ context.Context, msg platform.Message, _ *commands.Command) (bool, error) {
			_, ok := set[msg.Author().ID]
			return ok, nil
		},
	}
}
