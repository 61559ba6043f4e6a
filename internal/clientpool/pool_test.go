package clientpool

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"pacebot/internal/transport"
)

func TestSelectEmptyPool(t *testing.T) {
	t.Parallel()

	p := New(nil)
	assert.Equal(t, 0, p.Select())
	_, ok := p.Client(0)
	assert.False(t, ok)
}

func TestSelectCoversAllClients(t *testing.T) {
	t.Parallel()

	p := New(make([]transport.Remote, 3))
	seen := map[int]int{}
	for range 3000 {
		i := p.Select()
		assert.GreaterOrEqual(t, i, 0)
		assert.Less(t, i, 3)
		seen[i]++
	}
	assert.Len(t, seen, 3)
	for _, n := range seen {
		assert.Greater(t, n, 700)
	}
}

func TestSelectUsesPicker(t *testing.T) {
	t.Parallel()

	p := New(make([]transport.Remote, 2), WithPicker(func(int) int { return 1 }))
	assert.Equal(t, 1, p.Select())

	bad := New(make([]transport.Remote, 2), WithPicker(func(int) int { return 9 }))
	assert.Equal(t, 0, bad.Select())
}
