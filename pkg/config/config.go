// Package config provides configuration management for botframe.
// It uses viper for loading from files and environment variables.
package config

import (
	"os"
	"sync"
	"time"
)

// Config is the root configuration structure.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" json:"logger"`
	Handler  HandlerConfig  `mapstructure:"handler" json:"handler"`
	Prompt   PromptConfig   `mapstructure:"prompt" json:"prompt"`
	Discord  DiscordConfig  `mapstructure:"discord" json:"discord"`
	Telegram TelegramConfig `mapstructure:"telegram" json:"telegram"`
	Console  ConsoleConfig  `mapstructure:"console" json:"console"`
	Settings SettingsConfig `mapstructure:"settings" json:"settings"`
	Redis    RedisConfig    `mapstructure:"redis" json:"redis"`
	Events   EventsConfig   `mapstructure:"events" json:"events"`
	Tasks    TasksConfig    `mapstructure:"tasks" json:"tasks"`

	mu sync.RWMutex
}

// LoggerConfig configures the zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" json:"level"`
	OutputPath  string `mapstructure:"output_path" json:"output_path"`
	MaxSize     int    `mapstructure:"max_size" json:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" json:"max_age"`
	Compress    bool   `mapstructure:"compress" json:"compress"`
	Development bool   `mapstructure:"development" json:"development"`
}

// HandlerConfig configures command resolution and dispatch.
type HandlerConfig struct {
	Prefixes         []string `mapstructure:"prefixes" json:"prefixes"`
	AllowMention     bool     `mapstructure:"allow_mention" json:"allow_mention"`
	AliasReplacement string   `mapstructure:"alias_replacement" json:"alias_replacement"`
	BlockBots        bool     `mapstructure:"block_bots" json:"block_bots"`
	BlockClient      bool     `mapstructure:"block_client" json:"block_client"`
	Owners           []string `mapstructure:"owners" json:"owners"`
	SuperUsers       []string `mapstructure:"super_users" json:"super_users"`
	DefaultCooldown  int      `mapstructure:"default_cooldown" json:"default_cooldown"` // seconds
	IgnoreCooldown   []string `mapstructure:"ignore_cooldown" json:"ignore_cooldown"`
	HandleEdits      bool     `mapstructure:"handle_edits" json:"handle_edits"`
	Blacklist        []string `mapstructure:"blacklist" json:"blacklist"`
}

// DefaultCooldownDuration returns DefaultCooldown as a duration.
func (c HandlerConfig) DefaultCooldownDuration() time.Duration {
	return time.Duration(c.DefaultCooldown) * time.Second
}

// PromptConfig holds handler-wide argument prompt defaults.
type PromptConfig struct {
	Retries    int    `mapstructure:"retries" json:"retries"`
	Timeout    int    `mapstructure:"timeout" json:"timeout"` // seconds
	CancelWord string `mapstructure:"cancel_word" json:"cancel_word"`
	StopWord   string `mapstructure:"stop_word" json:"stop_word"`
	Breakout   bool   `mapstructure:"breakout" json:"breakout"`
	Limit      int    `mapstructure:"limit" json:"limit"`

	StartText   string `mapstructure:"start_text" json:"start_text"`
	RetryText   string `mapstructure:"retry_text" json:"retry_text"`
	TimeoutText string `mapstructure:"timeout_text" json:"timeout_text"`
	EndedText   string `mapstructure:"ended_text" json:"ended_text"`
	CancelText  string `mapstructure:"cancel_text" json:"cancel_text"`
}

// TimeoutDuration returns Timeout as a duration.
func (c PromptConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// DiscordConfig configures the Discord gateway adapter.
type DiscordConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Token   string `mapstructure:"token" json:"token"`
	Intents int    `mapstructure:"intents" json:"intents"`
}

// TelegramConfig configures the Telegram long-poll adapter.
type TelegramConfig struct {
	Enabled bool   `mapstructure:"enabled" json:"enabled"`
	Token   string `mapstructure:"token" json:"token"`
	Timeout int    `mapstructure:"timeout" json:"timeout"` // long-poll seconds
	Debug   bool   `mapstructure:"debug" json:"debug"`
}

// ConsoleConfig configures the local readline platform.
type ConsoleConfig struct {
	Enabled     bool   `mapstructure:"enabled" json:"enabled"`
	UserID      string `mapstructure:"user_id" json:"user_id"`
	Username    string `mapstructure:"username" json:"username"`
	Prompt      string `mapstructure:"prompt" json:"prompt"`
	HistoryFile string `mapstructure:"history_file" json:"history_file"`
}

// SettingsConfig selects the per-guild settings backend.
type SettingsConfig struct {
	Backend   string `mapstructure:"backend" json:"backend"` // "file", "redis" or "memory"
	FilePath  string `mapstructure:"file_path" json:"file_path"`
	KeyPrefix string `mapstructure:"key_prefix" json:"key_prefix"`
}

// RedisConfig holds the shared Redis connection settings.
type RedisConfig struct {
	Addr     string `mapstructure:"addr" json:"addr"`
	Password string `mapstructure:"password" json:"password"`
	DB       int    `mapstructure:"db" json:"db"`
}

// EventsConfig configures event publication.
type EventsConfig struct {
	RedisPublish bool   `mapstructure:"redis_publish" json:"redis_publish"`
	Prefix       string `mapstructure:"prefix" json:"prefix"`
	BufferSize   int    `mapstructure:"buffer_size" json:"buffer_size"`
}

// TasksConfig configures scheduled tasks.
type TasksConfig struct {
	Enabled  bool   `mapstructure:"enabled" json:"enabled"`
	Timezone string `mapstructure:"timezone" json:"timezone"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Logger: LoggerConfig{
			Level:      "info",
			OutputPath: "~/.botframe/logs/botframe.log",
			MaxSize:    100,
			MaxBackups: 3,
			MaxAge:     7,
			Compress:   true,
		},
		Handler: HandlerConfig{
			Prefixes:         []string{"!"},
			AllowMention:     true,
			AliasReplacement: "-",
			BlockBots:        true,
			BlockClient:      true,
			Owners:           []string{},
			Blacklist:        []string{},
			SuperUsers:       []string{},
			IgnoreCooldown:   []string{},
		},
		Prompt: PromptConfig{
			Retries:    1,
			Timeout:    30,
			CancelWord: "cancel",
			StopWord:   "stop",
			Breakout:   true,
		},
		Telegram: TelegramConfig{
			Timeout: 60,
		},
		Console: ConsoleConfig{
			Enabled:     true,
			UserID:      "console",
			Username:    "console",
			Prompt:      "> ",
			HistoryFile: "~/.botframe/console_history",
		},
		Settings: SettingsConfig{
			Backend:   "file",
			FilePath:  "~/.botframe/settings.json",
			KeyPrefix: "botframe:settings:",
		},
		Redis: RedisConfig{
			Addr: "localhost:6379",
		},
		Events: EventsConfig{
			Prefix:     "botframe:events:",
			BufferSize: 256,
		},
		Tasks: TasksConfig{
			Enabled: true,
		},
	}
}

// Snapshot returns a copy of the handler and prompt sections under the read lock.
func (c *Config) Snapshot() (HandlerConfig, PromptConfig) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.Handler, c.Prompt
}

// ExpandPath expands a leading ~ to the home directory.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	if path[0] == '~' {
		home, _ := os.UserHomeDir()
		if len(path) > 1 && path[1] == '/' {
			return home + path[1:]
		}
		return home
	}
	return path
}
