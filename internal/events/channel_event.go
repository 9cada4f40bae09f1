package events

import (
	"sync"
	"sync/atomic"
)

// ChannelEvent fans a value out to registered channels without blocking.
// A full channel misses the value and the miss is counted.
type ChannelEvent[T any] struct {
	mu       sync.RWMutex
	channels map[uint64]chan<- T
	nextID   uint64
	sticky   bool
	last     T
	hasLast  bool
	dropped  atomic.Uint64
}

// NewChannelEvent creates a ChannelEvent. A sticky event remembers the last value
// and offers it to each new listener.
func NewChannelEvent[T any](sticky bool) *ChannelEvent[T] {
	return &ChannelEvent[T]{
		channels: make(map[uint64]chan<- T),
		sticky:   sticky,
	}
}

// Listen registers ch and returns its unregister func
func (e *ChannelEvent[T]) Listen(ch chan<- T) func() {
	if ch == nil {
		panic("ChannelEvent: channel cannot be nil")
	}

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.channels[id] = ch
	replay := e.sticky && e.hasLast
	last := e.last
	e.mu.Unlock()

	if replay {
		e.offer(ch, last)
	}

	return func() {
		e.mu.Lock()
		delete(e.channels, id)
		e.mu.Unlock()
	}
}

// Notify offers value to every registered channel
func (e *ChannelEvent[T]) Notify(value T) {
	e.mu.Lock()
	if e.sticky {
		e.last = value
		e.hasLast = true
	}
	targets := make([]chan<- T, 0, len(e.channels))
	for _, ch := range e.channels {
		targets = append(targets, ch)
	}
	e.mu.Unlock()

	for _, ch := range targets {
		e.offer(ch, value)
	}
}

func (e *ChannelEvent[T]) offer(ch chan<- T, value T) {
	select {
	case ch <- value:
	default:
		e.dropped.Add(1)
	}
}

// Dropped returns how many deliveries were skipped because a listener was full
func (e *ChannelEvent[T]) Dropped() uint64 {
	return e.dropped.Load()
}

func (e *ChannelEvent[T]) Last() (T, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last, e.hasLast
}

func (e *ChannelEvent[T]) ListenerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.channels)
}
