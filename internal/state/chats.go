// Package state tracks the chats the bot has seen and keeps the durable
// records (sudo set, chat state) in sync with storage.
package state

import (
	"slices"
	"sync"
)

// Chats is the set of known chat ids.
type Chats struct {
	mu       sync.RWMutex
	known    map[int64]struct{}
	onChange func()
}

func NewChats() *Chats { return &Chats{known: map[int64]struct{}{}} }

func (c *Chats) OnChange(fn func()) {
	c.mu.Lock()
	c.onChange = fn
	c.mu.Unlock()
}

// Register records id and reports whether it was new.
func (c *Chats) Register(id int64) bool {
	if id == 0 {
		return false
	}
	c.mu.RLock()
	_, ok := c.known[id]
	c.mu.RUnlock()
	if ok {
		return false
	}

	c.mu.Lock()
	if _, ok := c.known[id]; ok {
		c.mu.Unlock()
		return false
	}
	c.known[id] = struct{}{}
	hook := c.onChange
	c.mu.Unlock()
	if hook != nil {
		hook()
	}
	return true
}

// Forget drops ids and reports how many were known.
func (c *Chats) Forget(ids ...int64) int {
	c.mu.Lock()
	n := 0
	for _, id := range ids {
		if _, ok := c.known[id]; ok {
			delete(c.known, id)
			n++
		}
	}
	hook := c.onChange
	c.mu.Unlock()
	if n > 0 && hook != nil {
		hook()
	}
	return n
}

func (c *Chats) Contains(id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.known[id]
	return ok
}

func (c *Chats) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.known)
}

// List returns the known ids, sorted.
func (c *Chats) List() []int64 {
	c.mu.RLock()
	out := make([]int64, 0, len(c.known))
	for id := range c.known {
		out = append(out, id)
	}
	c.mu.RUnlock()
	slices.Sort(out)
	return out
}

// Load replaces the set without firing the change hook.
func (c *Chats) Load(ids []int64) {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id != 0 {
			m[id] = struct{}{}
		}
	}
	c.mu.Lock()
	c.known = m
	c.mu.Unlock()
}
