// Package events holds the small generic pub/sub primitives used between the engine and the UI.
package events

import (
	"sync"
)

type callbackListener[T any] struct {
	id uint64
	fn func(T)
}

// CallbackEvent delivers a value to registered callbacks, in registration order,
// on the goroutine that calls Notify.
type CallbackEvent[T any] struct {
	mu        sync.RWMutex
	listeners []callbackListener[T]
	nextID    uint64
	sticky    bool
	last      T
	hasLast   bool
}

// NewCallbackEvent creates a CallbackEvent. A sticky event remembers the last value
// and replays it to each new listener.
func NewCallbackEvent[T any](sticky bool) *CallbackEvent[T] {
	return &CallbackEvent[T]{sticky: sticky}
}

// Listen registers callback and returns its unregister func
func (e *CallbackEvent[T]) Listen(callback func(T)) func() {
	if callback == nil {
		panic("CallbackEvent: callback cannot be nil")
	}

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	e.listeners = append(e.listeners, callbackListener[T]{id: id, fn: callback})
	replay := e.sticky && e.hasLast
	last := e.last
	e.mu.Unlock()

	// External call after releasing lock
	if replay {
		callback(last)
	}

	var once sync.Once
	return func() {
		once.Do(func() { e.remove(id) })
	}
}

func (e *CallbackEvent[T]) remove(id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i, l := range e.listeners {
		if l.id == id {
			e.listeners = append(e.listeners[:i:i], e.listeners[i+1:]...)
			return
		}
	}
}

// Notify calls every listener with value. Listeners added or removed during
// delivery take effect on the next Notify.
func (e *CallbackEvent[T]) Notify(value T) {
	e.mu.Lock()
	if e.sticky {
		e.last = value
		e.hasLast = true
	}
	snapshot := make([]callbackListener[T], len(e.listeners))
	copy(snapshot, e.listeners)
	e.mu.Unlock()

	for _, l := range snapshot {
		l.fn(value)
	}
}

// Last returns the most recent value of a sticky event
func (e *CallbackEvent[T]) Last() (T, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last, e.hasLast
}

func (e *CallbackEvent[T]) ListenerCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners)
}
