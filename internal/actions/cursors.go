package actions

import (
	"sync"

	"pacebot/internal/task/registry"
)

// Cursors holds the rotation position of each playlist task. Positions only
// grow; callers reduce them modulo the current list size.
type Cursors struct {
	mu  sync.Mutex
	pos map[registry.Key]int
}

func NewCursors() *Cursors { return &Cursors{pos: map[registry.Key]int{}} }

func (c *Cursors) Get(k registry.Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pos[k]
}

// Next returns the current position and advances it by one.
func (c *Cursors) Next(k registry.Key) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.pos[k]
	c.pos[k] = p + 1
	return p
}

func (c *Cursors) Drop(k registry.Key) {
	c.mu.Lock()
	delete(c.pos, k)
	c.mu.Unlock()
}
