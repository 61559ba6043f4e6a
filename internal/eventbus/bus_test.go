package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPublishFanout(t *testing.T) {
	t.Parallel()

	b := New()
	a, unsubA := b.Subscribe(1)
	c, unsubC := b.Subscribe(1)
	defer unsubC()

	b.Publish(Event{Type: TaskStarted, Data: "x"})
	ea := <-a
	ec := <-c
	assert.Equal(t, TaskStarted, ea.Type)
	assert.False(t, ea.Time.IsZero())
	assert.Equal(t, "x", ec.Data)

	unsubA()
	_, open := <-a
	assert.False(t, open)
	b.Publish(Event{Type: TaskStopped})
}

func TestPublishDropsWhenFull(t *testing.T) {
	t.Parallel()

	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"})
	assert.Equal(t, "a", (<-ch).Type)
	assert.Empty(t, ch)
}
