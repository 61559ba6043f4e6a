// Package clientpool holds the fixed, ordered set of bot clients.
package clientpool

import (
	"math/rand/v2"

	"pacebot/internal/transport"
)

// Pool is immutable after New.
type Pool struct {
	clients []transport.Remote
	pick    func(n int) int
}

type Option func(*Pool)

// WithPicker replaces the random index source; fn receives n > 0.
func WithPicker(fn func(n int) int) Option {
	return func(p *Pool) {
		if fn != nil {
			p.pick = fn
		}
	}
}

func New(clients []transport.Remote, opts ...Option) *Pool {
	p := &Pool{
		clients: append([]transport.Remote(nil), clients...),
		pick:    rand.IntN,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

func (p *Pool) Len() int {
	if p == nil {
		return 0
	}
	return len(p.clients)
}

// Select returns a uniformly random client index, or 0 for an empty pool.
// Callers pick once per task and keep the index for the task's lifetime.
func (p *Pool) Select() int {
	n := p.Len()
	if n == 0 {
		return 0
	}
	i := p.pick(n)
	if i < 0 || i >= n {
		return 0
	}
	return i
}

func (p *Pool) Client(i int) (transport.Remote, bool) {
	if i < 0 || i >= p.Len() {
		return nil, false
	}
	return p.clients[i], true
}
