package commands

import "sync"

// Locks holds the keys of running invocations per command.
type Locks struct {
	mu   sync.Mutex
	held map[string]map[string]struct{}
}

// NewLocks creates an empty lock table.
func NewLocks() *Locks {
	return &Locks{held: make(map[string]map[string]struct{})}
}

// Acquire takes key for commandID. It reports false when the key is held.
func (l *Locks) Acquire(commandID, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	keys := l.held[commandID]
	if keys == nil {
		keys = make(map[string]struct{})
		l.held[commandID] = keys
	}
	if _, taken := keys[key]; taken {
		return false
	}
	keys[key] = struct{}{}
	return true
}

// Release frees key for commandID.
func (l *Locks) Release(commandID, key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.held[commandID], key)
	if len(l.held[commandID]) == 0 {
		delete(l.held, commandID)
	}
}

// Held reports whether key is held for commandID.
func (l *Locks) Held(commandID, key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[commandID][key]
	return ok
}
