// Package pace holds the per-destination delay that every worker sleeps
// between iterations. The invoker raises it when Telegram pushes back.
package pace

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

// DefaultMinDelay is the floor applied to every destination.
const DefaultMinDelay = 50 * time.Millisecond

var ErrBelowMin = errors.New("delay below minimum")

type Model struct {
	mu       sync.RWMutex
	min      time.Duration
	delays   map[int64]time.Duration
	onChange func()
}

func New(min time.Duration) *Model {
	if min <= 0 {
		min = DefaultMinDelay
	}
	return &Model{min: min, delays: map[int64]time.Duration{}}
}

// OnChange installs a hook called (outside the lock) after every mutation.
func (m *Model) OnChange(fn func()) {
	m.mu.Lock()
	m.onChange = fn
	m.mu.Unlock()
}

func (m *Model) Min() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.min
}

// SetMin updates the floor. Stored overrides are kept; Delay clamps on read.
func (m *Model) SetMin(d time.Duration) {
	if d <= 0 {
		d = DefaultMinDelay
	}
	m.mu.Lock()
	m.min = d
	m.mu.Unlock()
}

// Delay returns the current delay for dest, never below the floor.
func (m *Model) Delay(dest int64) time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return max(m.min, m.delays[dest])
}

// Set stores an explicit delay for dest.
func (m *Model) Set(dest int64, d time.Duration) error {
	m.mu.Lock()
	if d < m.min {
		min := m.min
		m.mu.Unlock()
		return fmt.Errorf("%w: %s < %s", ErrBelowMin, d, min)
	}
	m.delays[dest] = d
	hook := m.onChange
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

// Raise lifts the delay for dest to at least atLeast. It never lowers it and
// reports whether the stored value changed.
func (m *Model) Raise(dest int64, atLeast time.Duration) bool {
	m.mu.Lock()
	cur := max(m.min, m.delays[dest])
	if atLeast <= cur {
		m.mu.Unlock()
		return false
	}
	m.delays[dest] = atLeast
	hook := m.onChange
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	return true
}

// Overrides returns a copy of the stored per-destination values.
func (m *Model) Overrides() map[int64]time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[int64]time.Duration, len(m.delays))
	for k, v := range m.delays {
		out[k] = v
	}
	return out
}

// Load replaces stored overrides without firing the change hook.
func (m *Model) Load(delays map[int64]time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delays = make(map[int64]time.Duration, len(delays))
	for k, v := range delays {
		if v > 0 {
			m.delays[k] = v
		}
	}
}

// Seconds converts d to float seconds, the unit used in persisted state and replies.
func Seconds(d time.Duration) float64 { return d.Seconds() }

// FromSeconds converts float seconds to a Duration. NaN and negatives map to 0.
func FromSeconds(s float64) time.Duration {
	if math.IsNaN(s) || s <= 0 {
		return 0
	}
	if s > math.MaxInt64/float64(time.Second) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(s * float64(time.Second))
}
