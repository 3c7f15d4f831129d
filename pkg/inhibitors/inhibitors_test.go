package inhibitors

import (
	"context"
	"errors"
	"testing"

	"botframe/pkg/commands"
	"botframe/pkg/logger"
	"botframe/pkg/platform"
	"botframe/pkg/platform/platformtest"
)

func always(v bool) TestFunc {
	return func(context.Context, platform.Message, *commands.Command) (bool, error) {
		return v, nil
	}
}

func TestSetPicksHighestPriority(t *testing.T) {
	set := NewSet(logger.NewNop())
	for _, inh := range []*Inhibitor{
		{ID: "low", Priority: 1, Test: always(true)},
		{ID: "high", Priority: 5, Reason: "too loud", Test: always(true)},
		{ID: "tie", Priority: 5, Test: always(true)},
		{ID: "pass", Priority: 10, Test: always(false)},
		{ID: "pre", Phase: commands.PhasePre, Priority: 50, Test: always(true)},
	} {
		if err := set.Add(inh); err != nil {
			t.Fatalf("add %s: %v", inh.ID, err)
		}
	}

	msg := platformtest.NewMessage("!ping")
	reason, err := set.Test(context.Background(), commands.PhasePost, msg, &commands.Command{ID: "ping"})
	if err != nil {
		t.Fatalf("test: %v", err)
	}
	if reason != "too loud" {
		t.Fatalf("expected highest priority reason, got %q", reason)
	}

	reason, err = set.Test(context.Background(), commands.PhasePre, msg, nil)
	if err != nil || reason != "pre" {
		t.Fatalf("expected reason to default to id, got %q %v", reason, err)
	}

	reason, err = set.Test(context.Background(), commands.PhaseAll, msg, nil)
	if err != nil || reason != "" {
		t.Fatalf("expected no block for empty phase, got %q %v", reason, err)
	}
}

func TestSetPropagatesErrors(t *testing.T) {
	set := NewSet(logger.NewNop())
	boom := errors.New("boom")
	_ = set.Add(&Inhibitor{ID: "ok", Test: always(true)})
	_ = set.Add(&Inhibitor{ID: "broken", Test: func(context.Context, platform.Message, *commands.Command) (bool, error) {
		return false, boom
	}})

	_, err := set.Test(context.Background(), commands.PhasePost, platformtest.NewMessage("x"), nil)
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

func TestSetAddRemove(t *testing.T) {
	set := NewSet(logger.NewNop())
	if err := set.Add(&Inhibitor{ID: "a", Test: always(true)}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := set.Add(&Inhibitor{ID: "a", Test: always(true)}); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if err := set.Add(&Inhibitor{ID: "b", Phase: "sometimes", Test: always(true)}); err == nil {
		t.Fatalf("expected unknown phase error")
	}
	if err := set.Add(&Inhibitor{ID: "c"}); err == nil {
		t.Fatalf("expected missing test error")
	}

	if err := set.Remove("a"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := set.Remove("a"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if len(set.List()) != 0 {
		t.Fatalf("expected empty set")
	}
}

func TestBlacklist(t *testing.T) {
	set := NewSet(logger.NewNop())
	if err := set.Add(Blacklist("u1")); err != nil {
		t.Fatalf("add: %v", err)
	}

	msg := platformtest.NewMessage("!ping")
	reason, _ := set.Test(context.Background(), commands.PhaseAll, msg, nil)
	if reason != "blacklist" {
		t.Fatalf("expected blacklisted user to be blocked, got %q", reason)
	}

	msg.User.ID = "u2"
	reason, _ = set.Test(context.Background(), commands.PhaseAll, msg, nil)
	if reason != "" {
		t.Fatalf("expected other users to pass, got %q", reason)
	}
}
