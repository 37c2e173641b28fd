package eventbus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeFiltersByType(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(4, "monitor.cycle_failed")
	defer unsub()

	b.Publish(Event{Type: "monitor.transition"})
	b.Publish(Event{Type: "monitor.cycle_failed", Data: "x"})

	require.Len(t, ch, 1)
	e := <-ch
	assert.Equal(t, "monitor.cycle_failed", e.Type)
	assert.False(t, e.Time.IsZero())
}

func TestPublishDropsWhenSubscriberIsFull(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: "a"})
	b.Publish(Event{Type: "b"})

	require.Len(t, ch, 1)
	assert.Equal(t, "a", (<-ch).Type)
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()

	_, ok := <-ch
	assert.False(t, ok)
	b.Publish(Event{Type: "after"})
}
