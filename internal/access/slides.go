package access

import (
	"slices"
	"sync"
)

// DefaultSlideReply is used when a target is added without text.
const DefaultSlideReply = "🔁 Auto-reply (slidespam)."

// Slides maps target user ids to the text sent back at each of their
// messages. Targets stay until removed. Kept in memory only.
type Slides struct {
	mu      sync.RWMutex
	targets map[int64]string
}

func NewSlides() *Slides { return &Slides{targets: map[int64]string{}} }

func (s *Slides) Add(id int64, reply string) {
	if reply == "" {
		reply = DefaultSlideReply
	}
	s.mu.Lock()
	s.targets[id] = reply
	s.mu.Unlock()
}

func (s *Slides) Remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.targets[id]
	delete(s.targets, id)
	return ok
}

func (s *Slides) Lookup(id int64) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.targets[id]
	return r, ok
}

func (s *Slides) IDs() []int64 {
	s.mu.RLock()
	out := make([]int64, 0, len(s.targets))
	for id := range s.targets {
		out = append(out, id)
	}
	s.mu.RUnlock()
	slices.Sort(out)
	return out
}
