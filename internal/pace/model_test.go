package pace

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDelayDefaultsToFloor(t *testing.T) {
	t.Parallel()

	m := New(50 * time.Millisecond)
	assert.Equal(t, 50*time.Millisecond, m.Delay(-100123))
}

func TestSetRejectsBelowMin(t *testing.T) {
	t.Parallel()

	m := New(50 * time.Millisecond)
	err := m.Set(1, 10*time.Millisecond)
	require.ErrorIs(t, err, ErrBelowMin)
	assert.Equal(t, 50*time.Millisecond, m.Delay(1))

	require.NoError(t, m.Set(1, 2*time.Second))
	assert.Equal(t, 2*time.Second, m.Delay(1))
}

func TestRaiseNeverLowers(t *testing.T) {
	t.Parallel()

	m := New(50 * time.Millisecond)
	assert.True(t, m.Raise(7, time.Second))
	assert.False(t, m.Raise(7, 500*time.Millisecond))
	assert.Equal(t, time.Second, m.Delay(7))
	assert.False(t, m.Raise(8, 10*time.Millisecond))
	assert.Equal(t, 50*time.Millisecond, m.Delay(8))
}

func TestOnChangeFiresOnMutation(t *testing.T) {
	t.Parallel()

	m := New(0)
	calls := 0
	m.OnChange(func() { calls++ })

	require.NoError(t, m.Set(1, time.Second))
	m.Raise(1, 2*time.Second)
	m.Raise(1, time.Second)
	m.Load(map[int64]time.Duration{2: time.Second})

	assert.Equal(t, 2, calls)
}

func TestSetMinClampsOnRead(t *testing.T) {
	t.Parallel()

	m := New(50 * time.Millisecond)
	require.NoError(t, m.Set(1, 100*time.Millisecond))
	m.SetMin(time.Second)
	assert.Equal(t, time.Second, m.Delay(1))
	assert.Equal(t, 100*time.Millisecond, m.Overrides()[1])
}

func TestFromSeconds(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   float64
		want time.Duration
	}{
		{0.05, 50 * time.Millisecond},
		{2.5, 2500 * time.Millisecond},
		{-1, 0},
		{0, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, FromSeconds(tc.in), "in=%v", tc.in)
	}
}
