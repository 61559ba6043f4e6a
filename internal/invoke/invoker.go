// Package invoke wraps single remote calls with retry and backoff, and feeds
// rate-limit signals back into the per-destination pace model.
package invoke

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"pacebot/internal/pace"
	logx "pacebot/pkg/logx"
)

type Config struct {
	MaxAttempts int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	Multiplier  float64
	// Step is added on top of a rate-limit wait when raising a destination delay.
	Step     time.Duration
	Adaptive bool
}

func DefaultConfig() Config {
	return Config{
		MaxAttempts: 8,
		BaseBackoff: 500 * time.Millisecond,
		MaxBackoff:  30 * time.Second,
		Multiplier:  1.3,
		Step:        500 * time.Millisecond,
		Adaptive:    true,
	}
}

func (c Config) normalize() Config {
	d := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.BaseBackoff <= 0 {
		c.BaseBackoff = d.BaseBackoff
	}
	if c.MaxBackoff < c.BaseBackoff {
		c.MaxBackoff = max(d.MaxBackoff, c.BaseBackoff)
	}
	if c.Multiplier < 1 {
		c.Multiplier = d.Multiplier
	}
	if c.Step < 0 {
		c.Step = 0
	}
	return c
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type Option func(*Invoker)

func WithLogger(log logx.Logger) Option { return func(i *Invoker) { i.log = log } }

func WithSleeper(s Sleeper) Option {
	return func(i *Invoker) {
		if s != nil {
			i.sleep = s
		}
	}
}

// WithJitter replaces the jitter source. fn must return a value in [0, 1).
func WithJitter(fn func() float64) Option {
	return func(i *Invoker) {
		if fn != nil {
			i.jitter = fn
		}
	}
}

type Invoker struct {
	mu  sync.RWMutex
	cfg Config

	pace   *pace.Model
	log    logx.Logger
	sleep  Sleeper
	jitter func() float64
}

func New(model *pace.Model, cfg Config, opts ...Option) *Invoker {
	if model == nil {
		model = pace.New(0)
	}
	i := &Invoker{
		cfg:    cfg.normalize(),
		pace:   model,
		log:    logx.Nop(),
		sleep:  Sleep,
		jitter: rand.Float64,
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// Apply swaps the retry settings. Calls already in flight keep their values.
func (i *Invoker) Apply(cfg Config) {
	i.mu.Lock()
	i.cfg = cfg.normalize()
	i.mu.Unlock()
}

func (i *Invoker) Config() Config {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.cfg
}

// Pace exposes the model the invoker writes to.
func (i *Invoker) Pace() *pace.Model { return i.pace }

// Do runs call until it succeeds, fails terminally, or the attempt budget runs out.
func (i *Invoker) Do(ctx context.Context, dest int64, call func(ctx context.Context) error) error {
	cfg := i.Config()
	backoff := cfg.BaseBackoff

	var last error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := call(ctx)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		var wait time.Duration
		switch {
		case IsRateLimited(err):
			hint, _ := RetryAfter(err)
			wait = max(hint, backoff)
			if cfg.Adaptive && i.pace.Raise(dest, hint+cfg.Step) {
				i.log.Info("destination slowed down",
					logx.Int64("dest", dest),
					logx.Duration("delay", i.pace.Delay(dest)),
					logx.Duration("retry_after", hint),
				)
			}
		case IsTransient(err):
			wait = backoff + time.Duration(i.jitter()*0.5*float64(backoff))
			if cfg.Adaptive {
				i.pace.Raise(dest, wait)
			}
		default:
			return err
		}
		last = err

		i.log.Debug("remote call failed, retrying",
			logx.Int64("dest", dest),
			logx.Int("attempt", attempt),
			logx.Duration("wait", wait),
			logx.Err(err),
		)
		if attempt == cfg.MaxAttempts {
			break
		}
		if err := i.sleep(ctx, wait); err != nil {
			return err
		}
		backoff = min(time.Duration(float64(backoff)*cfg.Multiplier), cfg.MaxBackoff)
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, cfg.MaxAttempts, last)
}

// Call is Do for calls that return a value.
func Call[T any](ctx context.Context, inv *Invoker, dest int64, fn func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := inv.Do(ctx, dest, func(ctx context.Context) error {
		v, err := fn(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// IsExhausted reports whether err came from a spent attempt budget.
func IsExhausted(err error) bool { return errors.Is(err, ErrRetriesExhausted) }
