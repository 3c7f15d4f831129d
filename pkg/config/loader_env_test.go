package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_UsesConfigPathEnvWhenPathEmpty(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "from-env.json")

	seed := DefaultConfig()
	seed.Handler.Prefixes = []string{"?", "bot "}

	loader := NewLoader()
	if err := loader.Save(cfgPath, seed); err != nil {
		t.Fatalf("save config: %v", err)
	}

	t.Setenv(ConfigPathEnv, cfgPath)

	got, err := NewLoader().Load("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(got.Handler.Prefixes) != 2 || got.Handler.Prefixes[0] != "?" {
		t.Fatalf("expected prefixes from file, got %v", got.Handler.Prefixes)
	}
}

func TestLoad_AutoCreatesConfigForExplicitPath(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "custom", "config.json")

	got, err := NewLoader().Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if _, err := os.Stat(cfgPath); err != nil {
		t.Fatalf("expected config file to be created: %v", err)
	}
	if got.Prompt.CancelWord != "cancel" {
		t.Fatalf("expected default cancel word, got %q", got.Prompt.CancelWord)
	}
}

func TestLoad_ReadsHandlerSection(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.json")

	content := `{
  "handler": {
    "prefixes": ["!!", "!"],
    "owners": ["42"],
    "default_cooldown": 5,
    "handle_edits": true
  },
  "prompt": {
    "retries": 3,
    "timeout": 10,
    "cancel_word": "abort"
  }
}`
	if err := os.WriteFile(cfgPath, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	got, err := NewLoader().Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if got.Handler.DefaultCooldownDuration().Seconds() != 5 {
		t.Fatalf("expected 5s cooldown, got %v", got.Handler.DefaultCooldownDuration())
	}
	if !got.Handler.HandleEdits || len(got.Handler.Owners) != 1 {
		t.Fatalf("unexpected handler section: %+v", got.Handler)
	}
	if got.Prompt.Retries != 3 || got.Prompt.CancelWord != "abort" {
		t.Fatalf("unexpected prompt section: %+v", got.Prompt)
	}
	if got.Prompt.StopWord != "stop" {
		t.Fatalf("expected default stop word to survive, got %q", got.Prompt.StopWord)
	}
}

func TestInitDefaultConfig_UsesConfigEnv(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "tenant", "config.json")
	t.Setenv(ConfigPathEnv, cfgPath)

	path, created, err := InitDefaultConfig("")
	if err != nil {
		t.Fatalf("InitDefaultConfig failed: %v", err)
	}
	if !created {
		t.Fatalf("expected config to be created")
	}
	absCfg, _ := filepath.Abs(cfgPath)
	if path != absCfg {
		t.Fatalf("expected config path %q, got %q", absCfg, path)
	}

	if _, created, err := InitDefaultConfig(""); err != nil {
		t.Fatalf("InitDefaultConfig second failed: %v", err)
	} else if created {
		t.Fatalf("expected second InitDefaultConfig call to not create file")
	}
}

func TestInitDefaultConfig_ExplicitPathWinsOverEnv(t *testing.T) {
	tmpDir := t.TempDir()
	envPath := filepath.Join(tmpDir, "env", "config.json")
	explicit := filepath.Join(tmpDir, "explicit", "config.yaml")
	t.Setenv(ConfigPathEnv, envPath)

	path, created, err := InitDefaultConfig(explicit)
	if err != nil {
		t.Fatalf("InitDefaultConfig failed: %v", err)
	}
	if !created || path != explicit {
		t.Fatalf("expected %q to be created, got %q (created=%v)", explicit, path, created)
	}
	if _, err := os.Stat(envPath); !os.IsNotExist(err) {
		t.Fatalf("env path should be untouched, stat err = %v", err)
	}
}

func TestWatcherReloadAppliesHandlerSection(t *testing.T) {
	tmpDir := t.TempDir()
	cfgPath := filepath.Join(tmpDir, "config.json")

	loader := NewLoader()
	cfg, err := loader.Load(cfgPath)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	w := NewWatcher(loader, cfg, nil)
	w.watching = true

	var notified int
	w.AddHandler(func(*Config) error {
		notified++
		return nil
	})

	updated := DefaultConfig()
	updated.Handler.Prefixes = []string{"$"}
	if err := SaveToFile(updated, cfgPath); err != nil {
		t.Fatalf("save config: %v", err)
	}

	w.Reload(cfgPath)

	handler, _ := cfg.Snapshot()
	if len(handler.Prefixes) != 1 || handler.Prefixes[0] != "$" {
		t.Fatalf("expected reloaded prefixes, got %v", handler.Prefixes)
	}
	if notified != 1 {
		t.Fatalf("expected one notification, got %d", notified)
	}
}
