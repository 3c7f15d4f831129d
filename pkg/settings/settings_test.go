package settings

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"botframe/pkg/config"
	"botframe/pkg/logger"
)

func exerciseStore(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	if _, ok, err := store.Get(ctx, "guild:1", "prefix"); err != nil || ok {
		t.Fatalf("expected missing key, got %v %v", ok, err)
	}
	if err := store.Set(ctx, "guild:1", "prefix", "?"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "guild:1", "lang", "en"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := store.Set(ctx, "guild:2", "prefix", "$"); err != nil {
		t.Fatalf("set: %v", err)
	}

	v, ok, err := store.Get(ctx, "guild:1", "prefix")
	if err != nil || !ok || v != "?" {
		t.Fatalf("expected ?, got %q %v %v", v, ok, err)
	}

	all, err := store.All(ctx, "guild:1")
	if err != nil || len(all) != 2 || all["lang"] != "en" {
		t.Fatalf("unexpected scope contents: %v %v", all, err)
	}
	all["lang"] = "fr"
	if v, _, _ := store.Get(ctx, "guild:1", "lang"); v != "en" {
		t.Fatalf("All must return a copy")
	}

	if err := store.Delete(ctx, "guild:1", "lang"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := store.Delete(ctx, "guild:1", "missing"); err != nil {
		t.Fatalf("deleting a missing key should not fail: %v", err)
	}
	if err := store.Clear(ctx, "guild:2"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "guild:2", "prefix"); ok {
		t.Fatalf("cleared scope should be empty")
	}
	if v, _, _ := store.Get(ctx, "guild:1", "prefix"); v != "?" {
		t.Fatalf("other scopes must survive a clear")
	}
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")
	store, err := NewFileStore(logger.NewNop(), &FileStoreConfig{FilePath: path})
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	exerciseStore(t, store)
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := NewFileStore(logger.NewNop(), &FileStoreConfig{FilePath: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	v, ok, _ := reopened.Get(context.Background(), "guild:1", "prefix")
	if !ok || v != "?" {
		t.Fatalf("expected persisted prefix, got %q %v", v, ok)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file should be renamed away")
	}
}

func TestFileStoreAutoSaveFlushesOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	store, err := NewFileStore(logger.NewNop(), &FileStoreConfig{
		FilePath:     path,
		AutoSave:     true,
		SaveInterval: time.Hour,
	})
	if err != nil {
		t.Fatalf("new file store: %v", err)
	}
	if err := store.Set(context.Background(), "guild:1", "prefix", "%"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("auto-save should defer the write")
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil || !strings.Contains(string(raw), `"%"`) {
		t.Fatalf("expected flushed settings, got %s %v", raw, err)
	}
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := NewFileStore(logger.NewNop(), &FileStoreConfig{FilePath: path}); err == nil {
		t.Fatalf("expected corrupt file error")
	}
}

func TestGuilds(t *testing.T) {
	ctx := context.Background()
	guilds := NewGuilds(NewMemoryStore())

	if p, err := guilds.GuildPrefix(ctx, "1"); err != nil || p != "" {
		t.Fatalf("expected no prefix, got %q %v", p, err)
	}
	if err := guilds.SetGuildPrefix(ctx, "1", " ?? "); err != nil {
		t.Fatalf("set: %v", err)
	}
	if p, _ := guilds.GuildPrefix(ctx, "1"); p != "??" {
		t.Fatalf("expected trimmed prefix, got %q", p)
	}
	if err := guilds.SetGuildPrefix(ctx, "1", "a b"); err == nil {
		t.Fatalf("expected whitespace to be rejected")
	}
	if err := guilds.SetGuildPrefix(ctx, "1", ""); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if p, _ := guilds.GuildPrefix(ctx, "1"); p != "" {
		t.Fatalf("expected reset prefix, got %q", p)
	}
}

func TestNewStoreSelectsBackend(t *testing.T) {
	ctx := context.Background()
	cfg := config.DefaultConfig()

	cfg.Settings.Backend = "memory"
	store, err := NewStore(ctx, logger.NewNop(), cfg)
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := store.(*MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}

	cfg.Settings.Backend = "file"
	cfg.Settings.FilePath = filepath.Join(t.TempDir(), "s.json")
	store, err = NewStore(ctx, logger.NewNop(), cfg)
	if err != nil {
		t.Fatalf("file: %v", err)
	}
	if _, ok := store.(*FileStore); !ok {
		t.Fatalf("expected file store, got %T", store)
	}
	store.Close()

	cfg.Settings.Backend = "sqlite"
	if _, err := NewStore(ctx, logger.NewNop(), cfg); err == nil {
		t.Fatalf("expected unknown backend error")
	}

	cfg.Settings.Backend = "redis"
	cfg.Redis.Addr = "127.0.0.1:0"
	if _, err := NewStore(ctx, logger.NewNop(), cfg); err == nil {
		t.Fatalf("expected redis connection error")
	}
}
