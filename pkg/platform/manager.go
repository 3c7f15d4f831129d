package platform

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"botframe/pkg/logger"
)

// Manager owns the registered adapters and their lifecycles.
type Manager struct {
	log      *logger.Logger
	adapters map[string]Adapter
	mu       sync.RWMutex

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Teardown hooks run after every adapter stopped (prompt hub close).
	onStop []func()
}

// NewManager creates a new adapter manager.
func NewManager(log *logger.Logger) *Manager {
	ctx, cancel := context.WithCancel(context.Background())

	return &Manager{
		log:      log.Named("platform"),
		adapters: make(map[string]Adapter),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Register adds an adapter.
func (m *Manager) Register(adapter Adapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := adapter.ID()
	if _, exists := m.adapters[id]; exists {
		return fmt.Errorf("adapter %s already registered", id)
	}

	m.adapters[id] = adapter
	m.log.Info("Registered adapter",
		zap.String("id", id),
		zap.String("name", adapter.Name()))

	return nil
}

// Unregister removes an adapter without stopping it.
func (m *Manager) Unregister(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.adapters[id]; !exists {
		return fmt.Errorf("adapter %s not found", id)
	}
	delete(m.adapters, id)
	return nil
}

// Get returns an adapter by id.
func (m *Manager) Get(id string) (Adapter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.adapters[id]
	return a, ok
}

// IDs returns the registered adapter ids, sorted.
func (m *Manager) IDs() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.adapters))
	for id := range m.adapters {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// OnStop registers a hook run after all adapters stopped.
func (m *Manager) OnStop(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStop = append(m.onStop, fn)
}

// Start starts all enabled adapters, each on its own goroutine.
func (m *Manager) Start() error {
	m.mu.RLock()
	adapters := make([]Adapter, 0, len(m.adapters))
	for _, a := range m.adapters {
		if a.IsEnabled() {
			adapters = append(adapters, a)
		}
	}
	m.mu.RUnlock()

	for _, a := range adapters {
		adapter := a
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()

			m.log.Info("Starting adapter", zap.String("id", adapter.ID()))
			if err := adapter.Start(m.ctx); err != nil {
				m.log.Error("Adapter start failed",
					zap.String("adapter", adapter.ID()),
					zap.Error(err))
			}
		}()
	}

	if len(adapters) == 0 {
		m.log.Warn("No adapters enabled")
	} else {
		m.log.Info("Started adapters", zap.Int("count", len(adapters)))
	}

	return nil
}

// Stop stops all adapters and runs teardown hooks.
func (m *Manager) Stop() error {
	m.cancel()

	m.mu.RLock()
	adapters := make([]Adapter, 0, len(m.adapters))
	for _, a := range m.adapters {
		adapters = append(adapters, a)
	}
	hooks := append([]func(){}, m.onStop...)
	m.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, a := range adapters {
		if !a.IsEnabled() {
			continue
		}
		if err := a.Stop(ctx); err != nil {
			m.log.Error("Error stopping adapter",
				zap.String("adapter", a.ID()),
				zap.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		m.log.Warn("Timeout waiting for adapters to stop")
	}

	for _, fn := range hooks {
		fn()
	}
	return nil
}
