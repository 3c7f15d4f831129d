package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"botframe/pkg/logger"
)

// FileStore keeps settings in a JSON file, written atomically.
type FileStore struct {
	log      *logger.Logger
	filePath string
	data     map[string]map[string]string
	mu       sync.RWMutex

	autoSave      bool
	saveInterval  time.Duration
	saveTicker    *time.Ticker
	stopSave      chan struct{}
	pendingWrites bool
}

// FileStoreConfig configures the file store.
type FileStoreConfig struct {
	FilePath     string
	AutoSave     bool          // batch writes instead of saving on every change
	SaveInterval time.Duration // default 5s
}

// NewFileStore opens or creates the settings file.
func NewFileStore(log *logger.Logger, cfg *FileStoreConfig) (*FileStore, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("settings file path is required")
	}
	if cfg.SaveInterval == 0 {
		cfg.SaveInterval = 5 * time.Second
	}

	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, fmt.Errorf("creating settings directory: %w", err)
	}

	s := &FileStore{
		log:          log,
		filePath:     cfg.FilePath,
		data:         make(map[string]map[string]string),
		autoSave:     cfg.AutoSave,
		saveInterval: cfg.SaveInterval,
		stopSave:     make(chan struct{}),
	}

	if err := s.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("loading settings: %w", err)
	}

	if s.autoSave {
		s.startAutoSave()
	}
	return s, nil
}

func (s *FileStore) Get(_ context.Context, scope, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[scope][key]
	return v, ok, nil
}

func (s *FileStore) Set(_ context.Context, scope, key, value string) error {
	s.mu.Lock()
	setValue(s.data, scope, key, value)
	s.pendingWrites = true
	s.mu.Unlock()
	return s.saveNow()
}

func (s *FileStore) Delete(_ context.Context, scope, key string) error {
	s.mu.Lock()
	changed := deleteValue(s.data, scope, key)
	s.pendingWrites = s.pendingWrites || changed
	s.mu.Unlock()
	if !changed {
		return nil
	}
	return s.saveNow()
}

func (s *FileStore) All(_ context.Context, scope string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.data[scope]))
	maps.Copy(out, s.data[scope])
	return out, nil
}

func (s *FileStore) Clear(_ context.Context, scope string) error {
	s.mu.Lock()
	delete(s.data, scope)
	s.pendingWrites = true
	s.mu.Unlock()
	return s.saveNow()
}

// Load reads the settings file.
func (s *FileStore) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}
	data := make(map[string]map[string]string)
	if err := json.Unmarshal(raw, &data); err != nil {
		return fmt.Errorf("unmarshaling settings: %w", err)
	}
	s.data = data

	s.log.Info("Loaded settings", zap.String("file", s.filePath), zap.Int("scopes", len(s.data)))
	return nil
}

// Save writes pending changes to disk.
func (s *FileStore) Save() error {
	s.mu.RLock()
	if !s.pendingWrites {
		s.mu.RUnlock()
		return nil
	}
	data, err := json.MarshalIndent(s.data, "", "  ")
	scopes := len(s.data)
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshaling settings: %w", err)
	}

	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("writing temp settings file: %w", err)
	}
	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("renaming temp settings file: %w", err)
	}

	s.mu.Lock()
	s.pendingWrites = false
	s.mu.Unlock()

	s.log.Debug("Saved settings", zap.String("file", s.filePath), zap.Int("scopes", scopes))
	return nil
}

func (s *FileStore) saveNow() error {
	if s.autoSave {
		return nil
	}
	return s.Save()
}

func (s *FileStore) startAutoSave() {
	s.saveTicker = time.NewTicker(s.saveInterval)

	go func() {
		for {
			select {
			case <-s.saveTicker.C:
				if err := s.Save(); err != nil {
					s.log.Error("Settings auto-save failed", zap.Error(err))
				}
			case <-s.stopSave:
				return
			}
		}
	}()
}

// Close stops auto-save and flushes pending changes.
func (s *FileStore) Close() error {
	if s.saveTicker != nil {
		s.saveTicker.Stop()
		close(s.stopSave)
		s.saveTicker = nil
	}
	return s.Save()
}
