// Package clock provides the periodic scheduling used by the metronome and the session timer.
package clock

import (
	"log"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/lowaak/slowrun-trainer/internal/go_func_utils"
)

// Scheduler runs a callback at a fixed period until the returned cancel func is called.
// Callbacks for one schedule never overlap: tick N returns before tick N+1 starts.
// Cancel must be safe to call from inside the callback and more than once.
type Scheduler interface {
	Every(period time.Duration, fn func()) (cancel func())
	Now() time.Time
}

// TickerScheduler drives each schedule with its own goroutine and ticker
type TickerScheduler struct {
	clock  clockwork.Clock
	logger *log.Logger
}

// NewTickerScheduler creates a scheduler on top of the given clock.
// Pass clockwork.NewRealClock() in production and a fake clock in tests.
func NewTickerScheduler(clk clockwork.Clock, logger *log.Logger) *TickerScheduler {
	if clk == nil {
		panic("TickerScheduler: clock cannot be nil")
	}
	if logger == nil {
		panic("TickerScheduler: logger cannot be nil")
	}
	return &TickerScheduler{clock: clk, logger: logger}
}

func (s *TickerScheduler) Now() time.Time {
	return s.clock.Now()
}

func (s *TickerScheduler) Every(period time.Duration, fn func()) func() {
	if period <= 0 {
		panic("TickerScheduler: period must be positive")
	}
	if fn == nil {
		panic("TickerScheduler: fn cannot be nil")
	}

	ticker := s.clock.NewTicker(period)
	stopChan := make(chan struct{})
	var stopOnce sync.Once

	go_func_utils.SafeGo(s.logger, func() {
		defer ticker.Stop()
		for {
			select {
			case <-stopChan:
				return
			case <-ticker.Chan():
				// Cancel may have raced the tick; prefer it
				select {
				case <-stopChan:
					return
				default:
				}
				fn()
			}
		}
	})

	return func() {
		stopOnce.Do(func() { close(stopChan) })
	}
}

type manualEntry struct {
	id     uint64
	period time.Duration
	next   time.Time
	fn     func()
}

// ManualScheduler is a virtual-time Scheduler. Nothing fires until Advance is called,
// and callbacks run synchronously on the goroutine calling Advance.
type ManualScheduler struct {
	mu      sync.Mutex
	now     time.Time
	nextID  uint64
	entries map[uint64]*manualEntry
}

func NewManualScheduler(start time.Time) *ManualScheduler {
	return &ManualScheduler{
		now:     start,
		entries: make(map[uint64]*manualEntry),
	}
}

func (m *ManualScheduler) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

func (m *ManualScheduler) Every(period time.Duration, fn func()) func() {
	if period <= 0 {
		panic("ManualScheduler: period must be positive")
	}
	if fn == nil {
		panic("ManualScheduler: fn cannot be nil")
	}

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.entries[id] = &manualEntry{id: id, period: period, next: m.now.Add(period), fn: fn}
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.entries, id)
		m.mu.Unlock()
	}
}

// Advance moves virtual time forward by d, firing every callback that falls due.
// Due callbacks fire in time order; ties fire in registration order.
func (m *ManualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now.Add(d)
	for {
		due := m.nextDueLocked(target)
		if due == nil {
			break
		}
		m.now = due.next
		due.next = due.next.Add(due.period)
		fn := due.fn

		// External call after releasing lock
		m.mu.Unlock()
		fn()
		m.mu.Lock()
	}
	m.now = target
	m.mu.Unlock()
}

// Active returns the number of live schedules
func (m *ManualScheduler) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Must be called with mu held
func (m *ManualScheduler) nextDueLocked(target time.Time) *manualEntry {
	var due *manualEntry
	for _, e := range m.entries {
		if e.next.After(target) {
			continue
		}
		if due == nil || e.next.Before(due.next) || (e.next.Equal(due.next) && e.id < due.id) {
			due = e
		}
	}
	return due
}
