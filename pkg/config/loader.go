package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Loader handles configuration loading with Viper.
type Loader struct {
	viper *viper.Viper
}

const ConfigPathEnv = "BOTFRAME_CONFIG_FILE"

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("json")

	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".botframe"))
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("BOTFRAME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{viper: v}
}

// Load loads the configuration from file and environment variables.
// If configPath is empty, it will search default paths.
// If the file doesn't exist, it auto-creates one.
func (l *Loader) Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if strings.TrimSpace(configPath) == "" {
		configPath = strings.TrimSpace(os.Getenv(ConfigPathEnv))
	}
	explicitPath := strings.TrimSpace(configPath) != ""
	resolvedPath, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}

	if explicitPath {
		l.viper.SetConfigFile(resolvedPath)
	}

	if err := l.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
			if err := SaveToFile(cfg, resolvedPath); err != nil {
				return nil, fmt.Errorf("creating config file: %w", err)
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := l.viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Env overrides for list keys arrive as one space separated string.
	if raw := strings.TrimSpace(os.Getenv("BOTFRAME_HANDLER_PREFIXES")); raw != "" {
		cfg.Handler.Prefixes = strings.Fields(raw)
	}
	if raw := strings.TrimSpace(os.Getenv("BOTFRAME_HANDLER_OWNERS")); raw != "" {
		cfg.Handler.Owners = strings.Fields(raw)
	}

	return cfg, nil
}

// Save saves the configuration to a file.
func (l *Loader) Save(path string, cfg *Config) error {
	cfg.mu.RLock()
	defer cfg.mu.RUnlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	ext := filepath.Ext(path)
	format := "json"
	switch ext {
	case ".yaml", ".yml":
		format = "yaml"
	case ".toml":
		format = "toml"
	case ".json":
		format = "json"
	}

	v := viper.New()
	v.SetConfigType(format)

	v.Set("logger", cfg.Logger)
	v.Set("handler", cfg.Handler)
	v.Set("prompt", cfg.Prompt)
	v.Set("discord", cfg.Discord)
	v.Set("telegram", cfg.Telegram)
	v.Set("console", cfg.Console)
	v.Set("settings", cfg.Settings)
	v.Set("redis", cfg.Redis)
	v.Set("events", cfg.Events)
	v.Set("tasks", cfg.Tasks)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// SaveToFile is a convenience function to save config without creating a Loader.
func SaveToFile(cfg *Config, path string) error {
	loader := NewLoader()
	return loader.Save(path, cfg)
}

// GetConfigHome returns the default config directory.
func GetConfigHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, ".botframe"), nil
}

// InitDefaultConfig creates a default config file at path if it doesn't
// exist. An empty path falls back to ConfigPathEnv, then the default
// location. Returns the resolved path and whether it was newly created.
func InitDefaultConfig(path string) (configPath string, created bool, err error) {
	if strings.TrimSpace(path) == "" {
		path = os.Getenv(ConfigPathEnv)
	}
	configPath, err = resolveConfigPath(strings.TrimSpace(path))
	if err != nil {
		return "", false, err
	}

	if _, err := os.Stat(configPath); err == nil {
		return configPath, false, nil
	}

	if err := SaveToFile(DefaultConfig(), configPath); err != nil {
		return "", false, fmt.Errorf("writing default config: %w", err)
	}
	return configPath, true, nil
}

func resolveConfigPath(configPath string) (string, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		home, err := GetConfigHome()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, "config.json")
	}
	abs, err := filepath.Abs(ExpandPath(path))
	if err != nil {
		return "", fmt.Errorf("resolve config path: %w", err)
	}
	return abs, nil
}
