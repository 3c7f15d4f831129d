package commands

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"botframe/pkg/arguments"
	"botframe/pkg/events"
	"botframe/pkg/types"
)

func TestAliasReplacementAddsNormalizedAlias(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	if err := f.registry.SetAliasReplacement("-"); err != nil {
		t.Fatalf("set alias replacement: %v", err)
	}
	f.register(t, &Command{ID: "test", Aliases: []string{"Test-A"}, Exec: noop})

	for _, alias := range []string{"test-a", "testa", "TESTA"} {
		cmd, ok := f.registry.FindAlias(alias)
		if !ok || cmd.ID != "test" {
			t.Fatalf("alias %q did not resolve to test", alias)
		}
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.register(t, &Command{ID: "a", Aliases: []string{"a", "shared"}, Exec: noop})

	err := f.registry.Register(&Command{ID: "a", Aliases: []string{"other"}, Exec: noop})
	if !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("expected ErrAlreadyRegistered, got %v", err)
	}

	err = f.registry.Register(&Command{ID: "b", Aliases: []string{"SHARED"}, Exec: noop})
	if !errors.Is(err, ErrAliasConflict) {
		t.Fatalf("expected ErrAliasConflict, got %v", err)
	}
	if _, ok := f.registry.Get("b"); ok {
		t.Fatalf("conflicting command must not be registered")
	}
}

func TestRegisterRejectsInvalidSchema(t *testing.T) {
	f := newFixture(t, Options{}, nil)

	err := f.registry.Register(&Command{
		ID:   "bad",
		Args: []arguments.Spec{{ID: "x", Type: types.Name("nope")}},
		Exec: noop,
	})
	var schemaErr *arguments.SchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected SchemaError, got %v", err)
	}
	var typeErr *types.UnknownTypeError
	if !errors.As(err, &typeErr) {
		t.Fatalf("expected UnknownTypeError in chain, got %v", err)
	}
}

func TestDeregisterRemovesAliasesAndEmits(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	cmd := f.register(t, &Command{ID: "gone", Aliases: []string{"gone", "g"}, Exec: noop})

	if err := f.registry.Deregister("gone"); err != nil {
		t.Fatalf("deregister: %v", err)
	}
	if _, ok := f.registry.FindAlias("g"); ok {
		t.Fatalf("alias should be removed")
	}
	if !cmd.Removed() {
		t.Fatalf("command should be marked removed")
	}
	if f.rec.count(events.CommandRegistered) != 1 || f.rec.count(events.CommandRemoved) != 1 {
		t.Fatalf("expected register and remove events")
	}
	if err := f.registry.Deregister("gone"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestReloadUsesRememberedLoader(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	version := 0
	loader := func() (*Command, error) {
		version++
		return &Command{ID: "v", Aliases: []string{"v"}, Description: strconv.Itoa(version), Exec: noop}, nil
	}

	if _, err := f.registry.Load(loader); err != nil {
		t.Fatalf("load: %v", err)
	}
	fresh, err := f.registry.Reload("v", nil)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if fresh.Description != "2" {
		t.Fatalf("expected second definition, got %q", fresh.Description)
	}
	if cmd, _ := f.registry.FindAlias("v"); cmd != fresh {
		t.Fatalf("alias should point at the reloaded command")
	}
}

func TestReloadRestoresOldOnFailure(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	old := f.register(t, &Command{ID: "r", Aliases: []string{"r"}, Exec: noop})

	_, err := f.registry.Reload("r", func() (*Command, error) {
		return &Command{ID: "r", Args: []arguments.Spec{{ID: "x", Match: "bogus"}}, Exec: noop}, nil
	})
	if err == nil {
		t.Fatalf("expected reload error")
	}
	cmd, ok := f.registry.FindAlias("r")
	if !ok || cmd != old || cmd.Removed() {
		t.Fatalf("old command should be restored")
	}
}

func TestCategories(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	f.register(t, &Command{ID: "a", Category: "fun", Exec: noop})
	f.register(t, &Command{ID: "b", Category: "fun", Exec: noop})
	f.register(t, &Command{ID: "c", Exec: noop})

	cats := f.registry.Categories()
	if len(cats["fun"]) != 2 || len(cats["default"]) != 1 {
		t.Fatalf("unexpected categories: %v", cats)
	}
	names := f.registry.CategoryNames()
	if len(names) != 2 || names[0] != "default" || names[1] != "fun" {
		t.Fatalf("unexpected category names: %v", names)
	}
}

func TestCommandCastersResolveThroughRegistry(t *testing.T) {
	f := newFixture(t, Options{}, nil)
	cmd := f.register(t, &Command{ID: "ping", Aliases: []string{"p"}, Exec: noop})

	got, err := f.registry.Types().Cast(context.Background(), types.Name("commandAlias"), nil, "P")
	if err != nil || got != cmd {
		t.Fatalf("commandAlias cast = %v, %v", got, err)
	}
	got, err = f.registry.Types().Cast(context.Background(), types.Name("command"), nil, "ping")
	if err != nil || got != cmd {
		t.Fatalf("command cast = %v, %v", got, err)
	}
}
