package clock

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lowaak/slowrun-trainer/internal/go_func_utils"
)

var ErrInvalidPeriod = errors.New("clock: period must be positive")

// PeriodForBPM converts beats per minute to the interval between beats.
// Returns 0 for non-positive bpm.
func PeriodForBPM(bpm int) time.Duration {
	if bpm <= 0 {
		return 0
	}
	return time.Minute / time.Duration(bpm)
}

// PulseClock is a restartable fixed-period ticker.
// Restarting always resets phase: the first tick of the new schedule lands one full period
// after Start returns.
type PulseClock struct {
	name      string
	scheduler Scheduler
	logger    *log.Logger

	mu         sync.Mutex
	cancel     func()
	generation uint64
	period     time.Duration
}

func NewPulseClock(name string, scheduler Scheduler, logger *log.Logger) *PulseClock {
	if scheduler == nil {
		panic("PulseClock: scheduler cannot be nil")
	}
	if logger == nil {
		panic("PulseClock: logger cannot be nil")
	}
	return &PulseClock{name: name, scheduler: scheduler, logger: logger}
}

// Start begins calling onTick every period. A running schedule is stopped first.
// A panic inside onTick is logged and the schedule keeps going.
func (c *PulseClock) Start(period time.Duration, onTick func()) error {
	if period <= 0 {
		return fmt.Errorf("%w: got %v", ErrInvalidPeriod, period)
	}
	if onTick == nil {
		panic("PulseClock: onTick cannot be nil")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopLocked()
	c.generation++
	gen := c.generation
	c.period = period
	c.cancel = c.scheduler.Every(period, func() { c.fire(gen, onTick) })
	return nil
}

// Stop cancels the schedule. Calling it on a stopped clock does nothing.
func (c *PulseClock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopLocked()
}

func (c *PulseClock) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cancel != nil
}

// Period returns the period of the current schedule, or 0 when stopped
func (c *PulseClock) Period() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel == nil {
		return 0
	}
	return c.period
}

// Must be called with mu held
func (c *PulseClock) stopLocked() {
	if c.cancel == nil {
		return
	}
	c.cancel()
	c.cancel = nil
	c.generation++
}

func (c *PulseClock) fire(gen uint64, onTick func()) {
	c.mu.Lock()
	current := c.cancel != nil && c.generation == gen
	c.mu.Unlock()

	// A tick already in flight when the schedule was replaced or stopped
	if !current {
		return
	}
	go_func_utils.SafeCall(c.logger, c.name, onTick)
}
