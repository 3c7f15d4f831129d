package config

import (
	"fmt"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"botframe/pkg/logger"
)

// ChangeHandler is a callback function called when configuration changes.
type ChangeHandler func(*Config) error

// Watcher monitors configuration file for changes and triggers reload.
type Watcher struct {
	loader   *Loader
	config   *Config
	log      *logger.Logger
	handlers []ChangeHandler
	mu       sync.RWMutex
	watching bool
}

// NewWatcher creates a new configuration watcher.
func NewWatcher(loader *Loader, config *Config, log *logger.Logger) *Watcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &Watcher{
		loader:   loader,
		config:   config,
		log:      log.Named("config"),
		handlers: make([]ChangeHandler, 0),
	}
}

// AddHandler registers a handler to be called when configuration changes.
func (w *Watcher) AddHandler(handler ChangeHandler) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers = append(w.handlers, handler)
}

// Start begins watching the configuration file for changes.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return fmt.Errorf("watcher already started")
	}
	w.watching = true
	w.mu.Unlock()

	w.loader.viper.OnConfigChange(func(e fsnotify.Event) {
		w.Reload(e.Name)
	})
	w.loader.viper.WatchConfig()

	return nil
}

// Reload re-reads the configuration, applies the hot-reloadable sections to
// the live config and notifies handlers.
func (w *Watcher) Reload(source string) {
	w.mu.RLock()
	watching := w.watching
	w.mu.RUnlock()
	if !watching {
		return
	}

	newConfig, err := w.loader.Load("")
	if err != nil {
		w.log.Warn("Error reloading config", zap.String("file", source), zap.Error(err))
		return
	}
	if err := ValidateConfig(newConfig); err != nil {
		w.log.Warn("Reloaded config is invalid, keeping current", zap.Error(err))
		return
	}

	w.config.Apply(newConfig)
	w.notifyHandlers(w.config)
}

// Stop stops watching the configuration file.
// Viper cannot unregister its fsnotify watch, so later events are ignored.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.watching = false
}

// GetConfig returns the current configuration.
func (w *Watcher) GetConfig() *Config {
	return w.config
}

func (w *Watcher) notifyHandlers(config *Config) {
	w.mu.RLock()
	handlers := make([]ChangeHandler, len(w.handlers))
	copy(handlers, w.handlers)
	w.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(config); err != nil {
			w.log.Warn("Error in config change handler", zap.Error(err))
		}
	}
}

// Apply copies the hot-reloadable sections of src into c.
func (c *Config) Apply(src *Config) {
	handler, prompt := src.Snapshot()

	c.mu.Lock()
	defer c.mu.Unlock()
	c.Handler = handler
	c.Prompt = prompt
	c.Logger.Level = src.Logger.Level
}
