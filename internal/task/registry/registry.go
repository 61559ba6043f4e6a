// Package registry tracks live background tasks by key. At most one task runs
// under a key at any time; replacing a task waits for the old one to unwind.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"pacebot/internal/eventbus"
	"pacebot/internal/runtime/supervisor"
	logx "pacebot/pkg/logx"
)

var ErrClosed = errors.New("task registry closed")

// Kind names an action family (see internal/actions).
type Kind string

type Key struct {
	Client int
	Dest   int64
	Kind   Kind
}

func (k Key) String() string { return fmt.Sprintf("%d:%d:%s", k.Client, k.Dest, k.Kind) }

func (k Key) less(o Key) bool {
	if k.Dest != o.Dest {
		return k.Dest < o.Dest
	}
	if k.Kind != o.Kind {
		return k.Kind < o.Kind
	}
	return k.Client < o.Client
}

type Handle struct {
	ID      string
	Key     Key
	Started time.Time
}

type Predicate func(Key) bool

func All() Predicate { return func(Key) bool { return true } }

func ForDest(dest int64) Predicate { return func(k Key) bool { return k.Dest == dest } }

// ForDestKinds matches keys for dest whose kind is one of kinds.
func ForDestKinds(dest int64, kinds ...Kind) Predicate {
	set := make(map[Kind]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return func(k Key) bool {
		if k.Dest != dest {
			return false
		}
		_, ok := set[k.Kind]
		return ok
	}
}

// Event is the payload of task.started and task.stopped bus events.
type Event struct {
	Handle Handle
	Err    error
}

type Option func(*Registry)

func WithLogger(log logx.Logger) Option { return func(r *Registry) { r.log = log } }

func WithBus(bus eventbus.Bus) Option {
	return func(r *Registry) {
		if bus != nil {
			r.bus = bus
		}
	}
}

type entry struct {
	h      Handle
	cancel context.CancelFunc
	done   chan struct{}
}

type Registry struct {
	mu     sync.Mutex
	tasks  map[Key]*entry
	closed bool

	sup *supervisor.Supervisor
	bus eventbus.Bus
	log logx.Logger
}

func New(parent context.Context, opts ...Option) *Registry {
	r := &Registry{
		tasks: map[Key]*entry{},
		bus:   eventbus.Nop(),
		log:   logx.Nop(),
	}
	for _, o := range opts {
		o(r)
	}
	r.sup = supervisor.New(parent, supervisor.WithLogger(r.log))
	return r
}

// Start replaces any task under key with a new one running fn. It blocks until
// the previous task has fully exited. ctx only bounds that wait; the task runs
// under the registry's own context.
func (r *Registry) Start(ctx context.Context, key Key, fn func(ctx context.Context) error) (Handle, error) {
	if fn == nil {
		return Handle{}, errors.New("nil task func")
	}
	for {
		r.mu.Lock()
		if r.closed {
			r.mu.Unlock()
			return Handle{}, ErrClosed
		}
		old := r.tasks[key]
		if old == nil {
			tctx, cancel := context.WithCancel(r.sup.Context())
			e := &entry{
				h:      Handle{ID: ulid.Make().String(), Key: key, Started: time.Now()},
				cancel: cancel,
				done:   make(chan struct{}),
			}
			r.tasks[key] = e
			r.bus.Publish(eventbus.Event{Type: eventbus.TaskStarted, Data: Event{Handle: e.h}})
			// Launch under the lock so Close never races the supervisor's WaitGroup.
			r.sup.GoWith(tctx, "task:"+key.String(), func(ctx context.Context) error {
				var err error
				defer func() { r.finish(e, err) }()
				err = fn(ctx)
				if err != nil && !errors.Is(err, context.Canceled) {
					r.log.Warn("task exited with error", logx.String("key", key.String()), logx.Err(err))
				}
				return nil
			})
			r.mu.Unlock()
			return e.h, nil
		}
		r.mu.Unlock()

		old.cancel()
		select {
		case <-old.done:
		case <-ctx.Done():
			return Handle{}, ctx.Err()
		}
	}
}

// finish runs on the task goroutine for every exit path, panics included.
func (r *Registry) finish(e *entry, err error) {
	r.mu.Lock()
	if cur, ok := r.tasks[e.h.Key]; ok && cur == e {
		delete(r.tasks, e.h.Key)
	}
	r.mu.Unlock()

	e.cancel()
	close(e.done)
	r.bus.Publish(eventbus.Event{Type: eventbus.TaskStopped, Data: Event{Handle: e.h, Err: err}})
}

// Cancel stops the task under key and waits for it to exit. It reports whether
// a task was present.
func (r *Registry) Cancel(ctx context.Context, key Key) bool {
	r.mu.Lock()
	e := r.tasks[key]
	r.mu.Unlock()
	if e == nil {
		return false
	}
	e.cancel()
	select {
	case <-e.done:
	case <-ctx.Done():
	}
	return true
}

// CancelMatching stops every task whose key satisfies pred and returns how many
// were signalled.
func (r *Registry) CancelMatching(ctx context.Context, pred Predicate) int {
	if pred == nil {
		return 0
	}
	r.mu.Lock()
	var hit []*entry
	for k, e := range r.tasks {
		if pred(k) {
			hit = append(hit, e)
		}
	}
	r.mu.Unlock()

	for _, e := range hit {
		e.cancel()
	}
	for _, e := range hit {
		select {
		case <-e.done:
		case <-ctx.Done():
			return len(hit)
		}
	}
	return len(hit)
}

// ListActive returns matching keys sorted by destination, kind, then client.
func (r *Registry) ListActive(pred Predicate) []Key {
	if pred == nil {
		pred = All()
	}
	r.mu.Lock()
	out := make([]Key, 0, len(r.tasks))
	for k := range r.tasks {
		if pred(k) {
			out = append(out, k)
		}
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].less(out[j]) })
	return out
}

func (r *Registry) Get(key Key) (Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.tasks[key]
	if !ok {
		return Handle{}, false
	}
	return e.h, true
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.tasks)
}

func (r *Registry) Counters() supervisor.Counters { return r.sup.Counters() }

// Close cancels every task, refuses new ones and waits for all to exit.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return r.sup.Stop(ctx)
}
