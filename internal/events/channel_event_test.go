package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelEvent_Notify(t *testing.T) {
	event := NewChannelEvent[string](false)

	ch := make(chan string, 2)
	unregister := event.Listen(ch)
	require.Equal(t, 1, event.ListenerCount())

	event.Notify("tick")
	event.Notify("tock")
	assert.Equal(t, "tick", <-ch)
	assert.Equal(t, "tock", <-ch)

	unregister()
	event.Notify("late")
	assert.Len(t, ch, 0)
	assert.Equal(t, 0, event.ListenerCount())
}

func TestChannelEvent_FullChannelCountsDrop(t *testing.T) {
	event := NewChannelEvent[int](false)

	ch := make(chan int, 1)
	event.Listen(ch)

	event.Notify(1)
	event.Notify(2)
	event.Notify(3)

	assert.Equal(t, 1, <-ch)
	assert.Equal(t, uint64(2), event.Dropped())
}

func TestChannelEvent_StickyOffersLastValue(t *testing.T) {
	event := NewChannelEvent[int](true)
	event.Notify(175)

	ch := make(chan int, 1)
	event.Listen(ch)
	assert.Equal(t, 175, <-ch)

	last, ok := event.Last()
	assert.True(t, ok)
	assert.Equal(t, 175, last)
}

func TestChannelEvent_StickyReplayIntoFullChannel(t *testing.T) {
	event := NewChannelEvent[int](true)
	event.Notify(1)

	ch := make(chan int, 1)
	ch <- 0
	assert.NotPanics(t, func() { event.Listen(ch) })
	assert.Equal(t, uint64(1), event.Dropped())
}

func TestChannelEvent_NilChannelPanics(t *testing.T) {
	event := NewChannelEvent[int](false)
	assert.Panics(t, func() { event.Listen(nil) })
}
