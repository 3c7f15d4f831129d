package settings

import (
	"context"
	"maps"
	"sync"
)

// MemoryStore keeps settings in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string]map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, scope, key string) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[scope][key]
	return v, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	setValue(s.data, scope, key, value)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleteValue(s.data, scope, key)
	return nil
}

func (s *MemoryStore) All(_ context.Context, scope string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]string, len(s.data[scope]))
	maps.Copy(out, s.data[scope])
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context, scope string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, scope)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func setValue(data map[string]map[string]string, scope, key, value string) {
	m := data[scope]
	if m == nil {
		m = make(map[string]string)
		data[scope] = m
	}
	m[key] = value
}

func deleteValue(data map[string]map[string]string, scope, key string) bool {
	m, ok := data[scope]
	if !ok {
		return false
	}
	if _, ok := m[key]; !ok {
		return false
	}
	delete(m, key)
	if len(m) == 0 {
		delete(data, scope)
	}
	return true
}
