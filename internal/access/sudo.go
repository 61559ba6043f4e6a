// Package access holds the authorization sets: the sudo set, with owners as
// implicit members, and the slide targets that get auto-replies.
package access

import (
	"slices"
	"sync"
)

type Sudo struct {
	mu       sync.RWMutex
	owners   map[int64]struct{}
	members  map[int64]struct{}
	onChange func()
}

func NewSudo(owners []int64) *Sudo {
	s := &Sudo{members: map[int64]struct{}{}}
	s.SetOwners(owners)
	return s
}

// OnChange installs a hook called after Add or Remove changes the set.
func (s *Sudo) OnChange(fn func()) {
	s.mu.Lock()
	s.onChange = fn
	s.mu.Unlock()
}

// SetOwners replaces the owner list (config reload).
func (s *Sudo) SetOwners(owners []int64) {
	m := make(map[int64]struct{}, len(owners))
	for _, id := range owners {
		if id != 0 {
			m[id] = struct{}{}
		}
	}
	s.mu.Lock()
	s.owners = m
	s.mu.Unlock()
}

func (s *Sudo) IsOwner(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.owners[id]
	return ok
}

func (s *Sudo) IsSudo(id int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.owners[id]; ok {
		return true
	}
	_, ok := s.members[id]
	return ok
}

// Add reports whether id was newly added.
func (s *Sudo) Add(id int64) bool {
	if id == 0 {
		return false
	}
	s.mu.Lock()
	if _, ok := s.members[id]; ok {
		s.mu.Unlock()
		return false
	}
	s.members[id] = struct{}{}
	hook := s.onChange
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return true
}

// Remove reports whether id was a member. Owners cannot be removed.
func (s *Sudo) Remove(id int64) bool {
	s.mu.Lock()
	if _, ok := s.members[id]; !ok {
		s.mu.Unlock()
		return false
	}
	delete(s.members, id)
	hook := s.onChange
	s.mu.Unlock()
	if hook != nil {
		hook()
	}
	return true
}

// Members returns the explicit members, sorted. Owners are not included.
func (s *Sudo) Members() []int64 {
	s.mu.RLock()
	out := make([]int64, 0, len(s.members))
	for id := range s.members {
		out = append(out, id)
	}
	s.mu.RUnlock()
	slices.Sort(out)
	return out
}

func (s *Sudo) Owners() []int64 {
	s.mu.RLock()
	out := make([]int64, 0, len(s.owners))
	for id := range s.owners {
		out = append(out, id)
	}
	s.mu.RUnlock()
	slices.Sort(out)
	return out
}

// Load replaces the members without firing the change hook.
func (s *Sudo) Load(ids []int64) {
	m := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		if id != 0 {
			m[id] = struct{}{}
		}
	}
	s.mu.Lock()
	s.members = m
	s.mu.Unlock()
}
