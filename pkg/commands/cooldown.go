package commands

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

type cooldownEntry struct {
	uses int
	end  time.Time
}

// cooldownWindow holds the entries of one command, keyed by user id. The
// cache drops an entry once its window has passed.
type cooldownWindow struct {
	d     time.Duration
	users *expirable.LRU[string, *cooldownEntry]
}

// Cooldowns tracks per-user, per-command usage windows in memory.
type Cooldowns struct {
	mu       sync.Mutex
	commands map[string]*cooldownWindow
	now      func() time.Time
}

// NewCooldowns creates an empty cooldown table.
func NewCooldowns() *Cooldowns {
	return &Cooldowns{
		commands: make(map[string]*cooldownWindow),
		now:      time.Now,
	}
}

// Hit records a use of commandID by userID within a window of d allowing
// limit uses. When the limit is already reached it reports the remaining
// time and true, without recording the use. Changing d for a command starts
// every user of it on a fresh window.
func (c *Cooldowns) Hit(userID, commandID string, d time.Duration, limit int) (time.Duration, bool) {
	if d <= 0 {
		return 0, false
	}
	if limit <= 0 {
		limit = 1
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	w := c.commands[commandID]
	if w == nil || w.d != d {
		w = &cooldownWindow{d: d, users: expirable.NewLRU[string, *cooldownEntry](0, nil, d)}
		c.commands[commandID] = w
	}

	now := c.now()
	entry, ok := w.users.Get(userID)
	if !ok || !now.Before(entry.end) {
		entry = &cooldownEntry{end: now.Add(d)}
		w.users.Add(userID, entry)
	}

	if entry.uses >= limit {
		return entry.end.Sub(now), true
	}
	entry.uses++
	return 0, false
}

// Uses returns how often userID used commandID in the current window.
func (c *Cooldowns) Uses(userID, commandID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w := c.commands[commandID]; w != nil {
		if entry, ok := w.users.Peek(userID); ok {
			return entry.uses
		}
	}
	return 0
}

// Reset clears the window of userID for commandID.
func (c *Cooldowns) Reset(userID, commandID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if w := c.commands[commandID]; w != nil {
		w.users.Remove(userID)
	}
}

// Len returns the number of open windows across all commands.
func (c *Cooldowns) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, w := range c.commands {
		n += w.users.Len()
	}
	return n
}
