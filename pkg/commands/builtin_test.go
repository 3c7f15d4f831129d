package commands

import (
	"context"
	"strings"
	"sync"
	"testing"

	"botframe/pkg/events"
	"botframe/pkg/platform"
	"botframe/pkg/platform/platformtest"
)

type memoryPrefixes struct {
	mu sync.Mutex
	m  map[string]string
}

func (s *memoryPrefixes) GuildPrefix(_ context.Context, guildID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[guildID], nil
}

func (s *memoryPrefixes) SetGuildPrefix(_ context.Context, guildID, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[guildID] = prefix
	return nil
}

func newBuiltinFixture(t *testing.T, store PrefixStore) *fixture {
	t.Helper()
	f := newFixture(t, Options{Owners: []string{"owner"}}, nil)
	if err := RegisterBuiltinCommands(f.handler, store); err != nil {
		t.Fatalf("register builtins: %v", err)
	}
	return f
}

func TestStatusIncludesRuntimeAndVersionInfo(t *testing.T) {
	f := newBuiltinFixture(t, nil)
	msg := platformtest.NewMessage("!status")
	f.handle(t, msg)

	sent := msg.Outbox.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected one reply, got %v", sent)
	}
	for _, want := range []string{"Platform: test", "Version:", "OS:", "Go:", "Uptime:", "Memory:", "Commands: 5"} {
		if !strings.Contains(sent[0], want) {
			t.Fatalf("expected status output to contain %q, got:\n%s", want, sent[0])
		}
	}
}

func TestHelpListsAndDescribes(t *testing.T) {
	f := newBuiltinFixture(t, nil)

	list := platformtest.NewMessage("!help")
	f.handle(t, list)
	if sent := list.Outbox.Sent(); len(sent) != 1 || !strings.Contains(sent[0], "__general__") || !strings.Contains(sent[0], "**ping**") {
		t.Fatalf("unexpected help list: %v", sent)
	}

	one := platformtest.NewMessage("!help stats")
	f.handle(t, one)
	if sent := one.Outbox.Sent(); len(sent) != 1 || !strings.HasPrefix(sent[0], "**status**") {
		t.Fatalf("unexpected command help: %v", sent)
	}
}

func TestPrefixCommandChangesGuildPrefix(t *testing.T) {
	store := &memoryPrefixes{m: map[string]string{}}
	f := newBuiltinFixture(t, store)
	f.resolver.SetPrefixes(append(Static("!"), GuildPrefix(store)), false)

	denied := platformtest.NewMessage("!prefix ?")
	f.handle(t, denied)
	if store.m["g1"] != "" {
		t.Fatalf("regular users must not change the prefix")
	}

	set := platformtest.NewMessage("!prefix ?")
	set.User.ID = "owner"
	f.handle(t, set)
	if store.m["g1"] != "?" {
		t.Fatalf("expected guild prefix to be saved, got %q", store.m["g1"])
	}

	ping := platformtest.NewMessage("?ping")
	f.handle(t, ping)
	if ev := f.rec.last(events.CommandFinished); ev == nil || ev.Command != "ping" || ev.Message != platform.Message(ping) {
		t.Fatalf("guild prefix should resolve ping, got %+v", ev)
	}

	dm := platformtest.NewMessage("?ping")
	dm.Guild = ""
	f.handle(t, dm)
	if f.rec.count(events.CommandFinished) != 3 {
		t.Fatalf("guild prefixes do not apply in direct messages")
	}
}

func TestReloadIsOwnerOnly(t *testing.T) {
	f := newBuiltinFixture(t, nil)
	if _, err := f.registry.Load(func() (*Command, error) {
		return &Command{ID: "dice", Aliases: []string{"dice"}, Exec: noop}, nil
	}); err != nil {
		t.Fatalf("load: %v", err)
	}
	before, _ := f.registry.Get("dice")

	f.handle(t, platformtest.NewMessage("!reload dice"))
	if ev := f.rec.last(events.CommandBlocked); ev == nil || ev.Reason != ReasonOwner {
		t.Fatalf("expected owner block, got %+v", ev)
	}

	msg := platformtest.NewMessage("!reload dice")
	msg.User.ID = "owner"
	f.handle(t, msg)

	after, _ := f.registry.Get("dice")
	if after == before {
		t.Fatalf("command should be reloaded")
	}
	if sent := msg.Outbox.Sent(); len(sent) != 1 || sent[0] != "Reloaded `dice`." {
		t.Fatalf("unexpected reply: %v", sent)
	}
}
