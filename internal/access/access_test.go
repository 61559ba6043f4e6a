package access

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOwnerIsImplicitSudo(t *testing.T) {
	t.Parallel()

	s := NewSudo([]int64{100})
	assert.True(t, s.IsSudo(100))
	assert.True(t, s.IsOwner(100))
	assert.False(t, s.IsSudo(5))
	assert.Empty(t, s.Members())

	assert.False(t, s.Remove(100))
	assert.True(t, s.IsSudo(100))
}

func TestSudoAddRemoveFiresHook(t *testing.T) {
	t.Parallel()

	s := NewSudo([]int64{1})
	changes := 0
	s.OnChange(func() { changes++ })

	assert.True(t, s.Add(9))
	assert.False(t, s.Add(9))
	assert.True(t, s.Add(3))
	assert.Equal(t, []int64{3, 9}, s.Members())
	assert.True(t, s.IsSudo(9))
	assert.False(t, s.IsOwner(9))

	assert.True(t, s.Remove(9))
	assert.False(t, s.Remove(9))
	assert.Equal(t, 3, changes)

	s.Load([]int64{7, 0})
	assert.Equal(t, []int64{7}, s.Members())
	assert.Equal(t, 3, changes)
}

func TestSetOwnersReplaces(t *testing.T) {
	t.Parallel()

	s := NewSudo([]int64{1})
	s.SetOwners([]int64{2, 0})
	assert.False(t, s.IsSudo(1))
	assert.True(t, s.IsOwner(2))
	assert.Equal(t, []int64{2}, s.Owners())
}

func TestSlides(t *testing.T) {
	t.Parallel()

	s := NewSlides()
	s.Add(5, "")
	s.Add(3, "go away")

	r, ok := s.Lookup(5)
	assert.True(t, ok)
	assert.Equal(t, DefaultSlideReply, r)

	// Targets persist across lookups.
	r, ok = s.Lookup(3)
	assert.True(t, ok)
	assert.Equal(t, "go away", r)
	_, ok = s.Lookup(3)
	assert.True(t, ok)

	assert.Equal(t, []int64{3, 5}, s.IDs())
	assert.True(t, s.Remove(3))
	assert.False(t, s.Remove(3))
	_, ok = s.Lookup(3)
	assert.False(t, ok)
}
