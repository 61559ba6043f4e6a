package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "pacebot/pkg/logx"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "@every 10m0s", Normalize(" 10m "))
	assert.Equal(t, "@hourly", Normalize("@hourly"))
	assert.Equal(t, "", Normalize("  "))
}

func TestValidate(t *testing.T) {
	s := New(logx.Nop())
	assert.NoError(t, s.Validate(""))
	assert.NoError(t, s.Validate("*/5 * * * *"))
	assert.NoError(t, s.Validate("30s"))
	assert.Error(t, s.Validate("every tuesday"))
}

func TestSetReplaceAndRemove(t *testing.T) {
	s := New(logx.Nop())
	noop := func(context.Context) error { return nil }

	require.NoError(t, s.Set("a", "@hourly", 0, noop))
	require.NoError(t, s.Set("b", "5m", 0, noop))
	require.NoError(t, s.Set("a", "@daily", 0, noop))
	snap := s.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, "a", snap[0].Name)
	assert.Equal(t, "@daily", snap[0].Spec)

	require.NoError(t, s.Set("b", "", 0, noop))
	assert.Len(t, s.Snapshot(), 1)
	assert.Error(t, s.Set("c", "nonsense", 0, noop))
}

func TestSpreadDelaysFirstRun(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	sched, jitter := spreadEvery(time.Minute, now, "job")
	assert.GreaterOrEqual(t, jitter, time.Duration(0))
	assert.Less(t, jitter, 30*time.Second)
	assert.Equal(t, now.Add(time.Minute+jitter), sched.Next(now))
}

func TestRunRecoversPanicsAndSkipsAfterStop(t *testing.T) {
	s := New(logx.Nop())
	var calls atomic.Int32
	require.NoError(t, s.Set("boom", "@hourly", time.Second, func(context.Context) error {
		calls.Add(1)
		panic("x")
	}))
	s.Start(context.Background())
	s.run("boom")
	assert.Equal(t, int32(1), calls.Load())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	s.run("boom")
	assert.Equal(t, int32(1), calls.Load())
}
