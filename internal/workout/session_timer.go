// Package workout runs timed slow-running sessions on top of the metronome.
package workout

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lowaak/slowrun-trainer/internal/clock"
	"github.com/lowaak/slowrun-trainer/internal/events"
	"github.com/lowaak/slowrun-trainer/internal/go_func_utils"
)

var (
	ErrInvalidDuration = errors.New("workout: invalid duration")
	ErrTimerBusy       = errors.New("workout: timer is not idle")
	ErrNotArmed        = errors.New("workout: timer is not armed")
	ErrNoActiveWorkout = errors.New("workout: no active workout")
)

type Status int

const (
	StatusIdle Status = iota
	StatusRunning
	StatusPaused
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusRunning:
		return "Running"
	case StatusPaused:
		return "Paused"
	case StatusCompleted:
		return "Completed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Active reports whether a session is running or paused
func (s Status) Active() bool {
	return s == StatusRunning || s == StatusPaused
}

// TimerState is a snapshot of the SessionTimer
type TimerState struct {
	Status         Status
	ElapsedSeconds int
	TargetSeconds  int
	PauseSeconds   int
}

func (s TimerState) RemainingSeconds() int {
	if s.TargetSeconds <= s.ElapsedSeconds {
		return 0
	}
	return s.TargetSeconds - s.ElapsedSeconds
}

// StopResult describes a session ended early with Stop
type StopResult struct {
	ElapsedSeconds int
	TargetSeconds  int
	PauseSeconds   int
	Saved          bool
}

const timerTick = time.Second

// SessionTimer counts whole seconds toward a target.
// Elapsed never passes the target; reaching it completes the session exactly once.
type SessionTimer struct {
	scheduler  clock.Scheduler
	clock      *clock.PulseClock
	maxSeconds int
	logger     *log.Logger

	mu       sync.Mutex
	status   Status
	armed    bool
	target   int
	elapsed  int
	paused   int
	pausedAt time.Time

	tickEvent      *events.CallbackEvent[TimerState]
	completedEvent *events.CallbackEvent[TimerState]
}

func NewSessionTimer(scheduler clock.Scheduler, maxSeconds int, logger *log.Logger) *SessionTimer {
	if scheduler == nil {
		panic("SessionTimer: scheduler cannot be nil")
	}
	if logger == nil {
		panic("SessionTimer: logger cannot be nil")
	}
	if maxSeconds <= 0 {
		panic("SessionTimer: maxSeconds must be positive")
	}
	return &SessionTimer{
		scheduler:      scheduler,
		clock:          clock.NewPulseClock("SessionTimer", scheduler, logger),
		maxSeconds:     maxSeconds,
		logger:         logger,
		tickEvent:      events.NewCallbackEvent[TimerState](false),
		completedEvent: events.NewCallbackEvent[TimerState](false),
	}
}

// ListenToTick registers a callback run after every counted second.
// Returns a deregistration function.
func (t *SessionTimer) ListenToTick(fn func(TimerState)) func() {
	return t.tickEvent.Listen(fn)
}

// ListenToCompleted registers a callback run once when the target is reached.
// Returns a deregistration function.
func (t *SessionTimer) ListenToCompleted(fn func(TimerState)) func() {
	return t.completedEvent.Listen(fn)
}

// Arm sets the target for the next session. Only valid while Idle.
func (t *SessionTimer) Arm(targetSeconds int) error {
	if targetSeconds <= 0 || targetSeconds > t.maxSeconds {
		return fmt.Errorf("%w: %ds not in [1, %d]", ErrInvalidDuration, targetSeconds, t.maxSeconds)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusIdle {
		return fmt.Errorf("%w: %s", ErrTimerBusy, t.status)
	}
	t.armed = true
	t.target = targetSeconds
	t.elapsed = 0
	t.paused = 0
	return nil
}

// Start begins counting from an armed Idle state
func (t *SessionTimer) Start() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusIdle {
		return fmt.Errorf("%w: %s", ErrTimerBusy, t.status)
	}
	if !t.armed {
		return ErrNotArmed
	}
	if err := t.clock.Start(timerTick, t.onTick); err != nil {
		return err
	}
	t.status = StatusRunning
	t.logger.Printf("SessionTimer: started, target %ds", t.target)
	return nil
}

// Pause freezes elapsed time. No-op unless Running.
func (t *SessionTimer) Pause() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusRunning {
		return false
	}
	t.clock.Stop()
	t.status = StatusPaused
	t.pausedAt = t.scheduler.Now()
	t.logger.Printf("SessionTimer: paused at %ds", t.elapsed)
	return true
}

// Resume continues from the retained elapsed time. No-op unless Paused.
func (t *SessionTimer) Resume() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusPaused {
		return false
	}
	t.accumulatePause()
	if err := t.clock.Start(timerTick, t.onTick); err != nil {
		t.logger.Printf("SessionTimer: failed to resume: %v", err)
		return false
	}
	t.status = StatusRunning
	t.logger.Printf("SessionTimer: resumed at %ds", t.elapsed)
	return true
}

// Stop ends a Running or Paused session and returns to Idle. Progress is reported
// as saved only when save is set and at least one second was counted.
// On any other state Stop does nothing and returns a zero result.
func (t *SessionTimer) Stop(save bool) StopResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.status.Active() {
		return StopResult{}
	}
	t.clock.Stop()
	if t.status == StatusPaused {
		t.accumulatePause()
	}
	result := StopResult{
		ElapsedSeconds: t.elapsed,
		TargetSeconds:  t.target,
		PauseSeconds:   t.paused,
		Saved:          save && t.elapsed > 0,
	}
	t.logger.Printf("SessionTimer: stopped at %ds (saved=%t)", t.elapsed, result.Saved)
	t.resetLocked()
	return result
}

// Reset returns a Completed timer to Idle
func (t *SessionTimer) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.status != StatusCompleted {
		return
	}
	t.resetLocked()
}

// MaxSeconds is the longest target Arm accepts
func (t *SessionTimer) MaxSeconds() int {
	return t.maxSeconds
}

func (t *SessionTimer) State() TimerState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.buildState()
}

// Shutdown stops the tick without reporting anything
func (t *SessionTimer) Shutdown() {
	t.clock.Stop()
}

// Must be called with mu held
func (t *SessionTimer) resetLocked() {
	t.status = StatusIdle
	t.armed = false
	t.target = 0
	t.elapsed = 0
	t.paused = 0
	t.pausedAt = time.Time{}
}

// Must be called with mu held
func (t *SessionTimer) accumulatePause() {
	if t.pausedAt.IsZero() {
		return
	}
	t.paused += int(t.scheduler.Now().Sub(t.pausedAt) / time.Second)
	t.pausedAt = time.Time{}
}

// Must be called with mu held
func (t *SessionTimer) buildState() TimerState {
	return TimerState{
		Status:         t.status,
		ElapsedSeconds: t.elapsed,
		TargetSeconds:  t.target,
		PauseSeconds:   t.paused,
	}
}

func (t *SessionTimer) onTick() {
	t.mu.Lock()
	if t.status != StatusRunning {
		t.mu.Unlock()
		return
	}
	t.elapsed++
	completed := t.elapsed >= t.target
	if completed {
		t.elapsed = t.target
		t.status = StatusCompleted
		t.armed = false
		t.clock.Stop()
	}
	state := t.buildState()
	t.mu.Unlock()

	// External call after releasing lock. A failing tick listener must not cost us the completion.
	go_func_utils.SafeCall(t.logger, "SessionTimer", func() { t.tickEvent.Notify(state) })
	if completed {
		t.logger.Printf("SessionTimer: completed %ds", state.TargetSeconds)
		t.completedEvent.Notify(state)
	}
}
