package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validator validates configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// Validate validates the entire configuration.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	v.validateLogger(&cfg.Logger)
	v.validateHandler(&cfg.Handler)
	v.validatePrompt(&cfg.Prompt)
	v.validatePlatforms(cfg)
	v.validateSettings(&cfg.Settings)
	v.validateEvents(&cfg.Events)
	v.validateTasks(&cfg.Tasks)

	if len(v.errors) > 0 {
		return v.errors
	}

	return nil
}

func (v *Validator) validateLogger(cfg *LoggerConfig) {
	switch strings.ToLower(strings.TrimSpace(cfg.Level)) {
	case "", "debug", "info", "warn", "error", "fatal":
	default:
		v.addError("logger.level", "level must be one of: debug, info, warn, error, fatal")
	}
	if cfg.MaxSize < 0 {
		v.addError("logger.max_size", "max_size must be non-negative")
	}
}

func (v *Validator) validateHandler(cfg *HandlerConfig) {
	if cfg.AliasReplacement != "" {
		if _, err := regexp.Compile(cfg.AliasReplacement); err != nil {
			v.addError("handler.alias_replacement", fmt.Sprintf("invalid pattern: %v", err))
		}
	}

	if cfg.DefaultCooldown < 0 {
		v.addError("handler.default_cooldown", "default_cooldown must be non-negative")
	}

	for i, p := range cfg.Prefixes {
		if strings.TrimSpace(p) != p {
			v.addError(fmt.Sprintf("handler.prefixes[%d]", i), "prefix must not have surrounding whitespace")
		}
	}
}

func (v *Validator) validatePrompt(cfg *PromptConfig) {
	if cfg.Retries < 0 {
		v.addError("prompt.retries", "retries must be non-negative")
	}
	if cfg.Timeout <= 0 {
		v.addError("prompt.timeout", "timeout must be greater than 0")
	}
	if strings.TrimSpace(cfg.CancelWord) == "" {
		v.addError("prompt.cancel_word", "cancel_word is required")
	}
	if cfg.StopWord != "" && strings.EqualFold(cfg.StopWord, cfg.CancelWord) {
		v.addError("prompt.stop_word", "stop_word must differ from cancel_word")
	}
	if cfg.Limit < 0 {
		v.addError("prompt.limit", "limit must be non-negative")
	}
}

func (v *Validator) validatePlatforms(cfg *Config) {
	if cfg.Discord.Enabled && strings.TrimSpace(cfg.Discord.Token) == "" {
		v.addError("discord.token", "token is required when discord is enabled")
	}
	if cfg.Telegram.Enabled && strings.TrimSpace(cfg.Telegram.Token) == "" {
		v.addError("telegram.token", "token is required when telegram is enabled")
	}
	if cfg.Telegram.Timeout < 0 {
		v.addError("telegram.timeout", "timeout must be non-negative")
	}
}

func (v *Validator) validateSettings(cfg *SettingsConfig) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "", "memory":
	case "file":
		if strings.TrimSpace(cfg.FilePath) == "" {
			v.addError("settings.file_path", "file_path is required for the file backend")
		}
	case "redis":
	default:
		v.addError("settings.backend", "backend must be one of: memory, file, redis")
	}
}

func (v *Validator) validateEvents(cfg *EventsConfig) {
	if cfg.BufferSize < 0 {
		v.addError("events.buffer_size", "buffer_size must be non-negative")
	}
}

func (v *Validator) validateTasks(cfg *TasksConfig) {
	if cfg.Timezone == "" {
		return
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		v.addError("tasks.timezone", fmt.Sprintf("unknown timezone %q", cfg.Timezone))
	}
}

// addError adds a validation error.
func (v *Validator) addError(field, message string) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Message: message,
	})
}

// ValidateConfig is a convenience function to validate configuration.
func ValidateConfig(cfg *Config) error {
	validator := NewValidator()
	return validator.Validate(cfg)
}
