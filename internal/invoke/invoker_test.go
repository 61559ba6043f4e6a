package invoke

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pacebot/internal/pace"
)

type recordSleeper struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (r *recordSleeper) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.waits = append(r.waits, d)
	r.mu.Unlock()
	return ctx.Err()
}

func newTestInvoker(t *testing.T, cfg Config) (*Invoker, *pace.Model, *recordSleeper) {
	t.Helper()
	model := pace.New(50 * time.Millisecond)
	rec := &recordSleeper{}
	inv := New(model, cfg, WithSleeper(rec.sleep), WithJitter(func() float64 { return 0 }))
	return inv, model, rec
}

func TestRateLimitedOnceRaisesDelay(t *testing.T) {
	t.Parallel()

	inv, model, rec := newTestInvoker(t, DefaultConfig())
	const dest = int64(-1001)

	calls := 0
	err := inv.Do(context.Background(), dest, func(context.Context) error {
		calls++
		if calls == 1 {
			return RateLimited(errors.New("flood"), 2*time.Second)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.GreaterOrEqual(t, model.Delay(dest), 2500*time.Millisecond)
	assert.Equal(t, []time.Duration{2 * time.Second}, rec.waits)
}

func TestRateLimitedSequenceKeepsMaximum(t *testing.T) {
	t.Parallel()

	inv, model, _ := newTestInvoker(t, DefaultConfig())
	const dest = int64(42)
	waits := []time.Duration{time.Second, 4 * time.Second, 2 * time.Second}

	calls := 0
	err := inv.Do(context.Background(), dest, func(context.Context) error {
		if calls < len(waits) {
			w := waits[calls]
			calls++
			return RateLimited(errors.New("flood"), w)
		}
		return nil
	})
	require.NoError(t, err)
	assert.GreaterOrEqual(t, model.Delay(dest), 4*time.Second+500*time.Millisecond)
}

func TestRateLimitedSleepsAtLeastBackoff(t *testing.T) {
	t.Parallel()

	inv, _, rec := newTestInvoker(t, DefaultConfig())
	calls := 0
	_ = inv.Do(context.Background(), 1, func(context.Context) error {
		calls++
		if calls == 1 {
			return RateLimited(errors.New("flood"), 100*time.Millisecond)
		}
		return nil
	})
	assert.Equal(t, []time.Duration{500 * time.Millisecond}, rec.waits)
}

func TestTransientBackoffGrows(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxAttempts = 4
	inv, model, rec := newTestInvoker(t, cfg)

	err := inv.Do(context.Background(), 9, func(context.Context) error {
		return Transient(errors.New("timeout"))
	})
	require.ErrorIs(t, err, ErrRetriesExhausted)
	assert.True(t, IsTransient(err))

	require.Len(t, rec.waits, 3)
	assert.Equal(t, 500*time.Millisecond, rec.waits[0])
	assert.Equal(t, 650*time.Millisecond, rec.waits[1])
	assert.Equal(t, 845*time.Millisecond, rec.waits[2])
	assert.GreaterOrEqual(t, model.Delay(9), 845*time.Millisecond)
}

func TestBackoffIsCapped(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.MaxAttempts = 6
	cfg.BaseBackoff = time.Second
	cfg.MaxBackoff = 2 * time.Second
	inv, _, rec := newTestInvoker(t, cfg)

	_ = inv.Do(context.Background(), 1, func(context.Context) error {
		return Transient(errors.New("reset"))
	})
	for _, w := range rec.waits {
		assert.LessOrEqual(t, w, 2*time.Second)
	}
}

func TestTerminalErrorPassesThrough(t *testing.T) {
	t.Parallel()

	inv, model, rec := newTestInvoker(t, DefaultConfig())
	boom := errors.New("chat not found")

	calls := 0
	err := inv.Do(context.Background(), 5, func(context.Context) error {
		calls++
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, IsExhausted(err))
	assert.Equal(t, 1, calls)
	assert.Empty(t, rec.waits)
	assert.Equal(t, 50*time.Millisecond, model.Delay(5))
}

func TestNonAdaptiveLeavesDelay(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Adaptive = false
	inv, model, _ := newTestInvoker(t, cfg)

	calls := 0
	_ = inv.Do(context.Background(), 3, func(context.Context) error {
		calls++
		if calls == 1 {
			return RateLimited(errors.New("flood"), 5*time.Second)
		}
		return nil
	})
	assert.Equal(t, 50*time.Millisecond, model.Delay(3))
}

func TestCancelledContextIsTerminal(t *testing.T) {
	t.Parallel()

	inv, _, _ := newTestInvoker(t, DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())

	err := inv.Do(ctx, 1, func(context.Context) error {
		cancel()
		return Transient(errors.New("reset"))
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.False(t, IsExhausted(err))
}

func TestCallReturnsValue(t *testing.T) {
	t.Parallel()

	inv, _, _ := newTestInvoker(t, DefaultConfig())
	calls := 0
	v, err := Call(context.Background(), inv, 1, func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", Transient(errors.New("eof"))
		}
		return "ok", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestRetryAfterHint(t *testing.T) {
	t.Parallel()

	err := RateLimited(errors.New("429"), 3*time.Second)
	wrapped := errors.Join(errors.New("send"), err)
	d, ok := RetryAfter(wrapped)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, d)
	assert.True(t, IsRetryable(wrapped))
	assert.False(t, IsRetryable(errors.New("x")))
	assert.Nil(t, Transient(nil))
}
