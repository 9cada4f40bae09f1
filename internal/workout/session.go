package workout

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/lowaak/slowrun-trainer/internal/calories"
	"github.com/lowaak/slowrun-trainer/internal/clock"
	"github.com/lowaak/slowrun-trainer/internal/events"
	"github.com/lowaak/slowrun-trainer/internal/stats"
)

const (
	DefaultMinutes = 15
	MaxMinutes     = 999
)

// DurationPresets are the quick-pick workout lengths in minutes
var DurationPresets = []int{5, 10, 15, 20, 30, 45, 60}

// MetronomeDriver is the part of the metronome a workout controls
type MetronomeDriver interface {
	Start()
	Stop()
	IsRunning() bool
	BPM() int
}

// SummaryRecorder receives finished sessions
type SummaryRecorder interface {
	Append(ctx context.Context, summary stats.SessionSummary) error
}

// LiveMetrics is what the dashboard shows while a workout runs
type LiveMetrics struct {
	Status           Status
	ElapsedSeconds   int
	RemainingSeconds int
	TargetSeconds    int
	BPM              int
	Steps            int
	Calories         float64
	Progress         float64
}

type SessionArgs struct {
	Timer      *SessionTimer
	Metronome  MetronomeDriver
	Recorder   SummaryRecorder
	Scheduler  clock.Scheduler
	Estimator  func() calories.Estimator
	MaxMinutes int
	Logger     *log.Logger
}

// Session couples the SessionTimer with the metronome for one guided workout.
// The metronome is stopped at the end only if this session started it.
type Session struct {
	timer      *SessionTimer
	metronome  MetronomeDriver
	recorder   SummaryRecorder
	scheduler  clock.Scheduler
	estimator  func() calories.Estimator
	maxMinutes int
	logger     *log.Logger

	mu              sync.Mutex
	autoStarted     bool
	resumeMetronome bool

	metricsEvent  *events.CallbackEvent[LiveMetrics]
	finishedEvent *events.CallbackEvent[stats.SessionSummary]
	unregister    []func()
}

func NewSession(args SessionArgs) *Session {
	if args.Timer == nil {
		panic("WorkoutSession: timer cannot be nil")
	}
	if args.Metronome == nil {
		panic("WorkoutSession: metronome cannot be nil")
	}
	if args.Recorder == nil {
		panic("WorkoutSession: recorder cannot be nil")
	}
	if args.Scheduler == nil {
		panic("WorkoutSession: scheduler cannot be nil")
	}
	if args.Logger == nil {
		panic("WorkoutSession: logger cannot be nil")
	}
	if args.Estimator == nil {
		args.Estimator = func() calories.Estimator { return calories.Default() }
	}
	if args.MaxMinutes <= 0 {
		args.MaxMinutes = MaxMinutes
	}

	s := &Session{
		timer:         args.Timer,
		metronome:     args.Metronome,
		recorder:      args.Recorder,
		scheduler:     args.Scheduler,
		estimator:     args.Estimator,
		maxMinutes:    args.MaxMinutes,
		logger:        args.Logger,
		metricsEvent:  events.NewCallbackEvent[LiveMetrics](true),
		finishedEvent: events.NewCallbackEvent[stats.SessionSummary](false),
	}
	s.unregister = append(s.unregister,
		s.timer.ListenToTick(func(TimerState) { s.publishMetrics() }),
		s.timer.ListenToCompleted(s.onCompletion),
	)
	return s
}

// ListenToMetrics registers a callback run after every second and state change.
// Returns a deregistration function.
func (s *Session) ListenToMetrics(fn func(LiveMetrics)) func() {
	return s.metricsEvent.Listen(fn)
}

// ListenToFinished registers a callback run with the summary of every completed
// or stopped-and-saved session. Returns a deregistration function.
func (s *Session) ListenToFinished(fn func(stats.SessionSummary)) func() {
	return s.finishedEvent.Listen(fn)
}

// StartWorkout arms and starts a session of durationMinutes at the current BPM,
// starting the metronome if it is not already running.
func (s *Session) StartWorkout(durationMinutes int) error {
	if durationMinutes < 1 || durationMinutes > s.maxMinutes {
		return fmt.Errorf("%w: %d minutes not in [1, %d]", ErrInvalidDuration, durationMinutes, s.maxMinutes)
	}

	s.mu.Lock()
	if err := s.timer.Arm(durationMinutes * 60); err != nil {
		s.mu.Unlock()
		return err
	}
	if err := s.timer.Start(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.autoStarted = !s.metronome.IsRunning()
	s.resumeMetronome = false
	autoStart := s.autoStarted
	s.mu.Unlock()

	if autoStart {
		s.metronome.Start()
	}
	s.logger.Printf("WorkoutSession: started %d min at %d BPM", durationMinutes, s.metronome.BPM())
	s.publishMetrics()
	return nil
}

// PauseResume toggles between Running and Paused. Pausing silences the metronome
// and resuming brings it back. Returns the resulting status.
func (s *Session) PauseResume() Status {
	s.mu.Lock()
	switch s.timer.State().Status {
	case StatusRunning:
		s.timer.Pause()
		s.resumeMetronome = s.metronome.IsRunning()
		stopMetronome := s.resumeMetronome
		s.mu.Unlock()
		if stopMetronome {
			s.metronome.Stop()
		}
	case StatusPaused:
		s.timer.Resume()
		startMetronome := s.resumeMetronome
		s.resumeMetronome = false
		s.mu.Unlock()
		if startMetronome {
			s.metronome.Start()
		}
	default:
		s.mu.Unlock()
		return s.timer.State().Status
	}

	s.publishMetrics()
	return s.timer.State().Status
}

// StopWorkout ends the active session early. With save set and at least one second
// counted, the partial session is recorded and its summary returned.
func (s *Session) StopWorkout(ctx context.Context, save bool) (*stats.SessionSummary, error) {
	s.mu.Lock()
	if !s.timer.State().Status.Active() {
		s.mu.Unlock()
		return nil, ErrNoActiveWorkout
	}
	bpm := s.metronome.BPM()
	result := s.timer.Stop(save)
	stopMetronome, restartMetronome := s.takeMetronomeOwnership()
	s.mu.Unlock()

	s.restoreMetronome(stopMetronome, restartMetronome)
	s.publishMetrics()

	if !result.Saved {
		s.logger.Printf("WorkoutSession: stopped after %ds, discarded", result.ElapsedSeconds)
		return nil, nil
	}

	summary := stats.NewSessionSummary(stats.SummaryInput{
		At:              s.scheduler.Now(),
		DurationSeconds: result.ElapsedSeconds,
		TargetSeconds:   result.TargetSeconds,
		BPM:             bpm,
		PauseSeconds:    result.PauseSeconds,
	}, s.estimator())
	err := s.record(ctx, summary)
	s.finishedEvent.Notify(summary)
	return &summary, err
}

// LiveMetrics derives the current dashboard figures
func (s *Session) LiveMetrics() LiveMetrics {
	state := s.timer.State()
	bpm := s.metronome.BPM()
	m := LiveMetrics{
		Status:           state.Status,
		ElapsedSeconds:   state.ElapsedSeconds,
		RemainingSeconds: state.RemainingSeconds(),
		TargetSeconds:    state.TargetSeconds,
		BPM:              bpm,
		Steps:            stats.Steps(bpm, state.ElapsedSeconds),
		Calories:         s.estimator().Calories(state.ElapsedSeconds),
	}
	if state.TargetSeconds > 0 {
		m.Progress = float64(state.ElapsedSeconds) / float64(state.TargetSeconds)
	}
	return m
}

func (s *Session) Status() Status {
	return s.timer.State().Status
}

// Shutdown stops the timer and releases the timer listeners. An active session is discarded.
func (s *Session) Shutdown() {
	s.logger.Println("WorkoutSession: Shutting down")
	s.timer.Shutdown()
	for _, unregister := range s.unregister {
		unregister()
	}
}

// Must be called with mu held. Clears ownership and reports what to do with the metronome.
func (s *Session) takeMetronomeOwnership() (stop, restart bool) {
	stop = s.autoStarted
	restart = !s.autoStarted && s.resumeMetronome
	s.autoStarted = false
	s.resumeMetronome = false
	return stop, restart
}

func (s *Session) restoreMetronome(stop, restart bool) {
	if stop {
		s.metronome.Stop()
	}
	if restart {
		// the user's own metronome was only silenced by our pause
		s.metronome.Start()
	}
}

func (s *Session) onCompletion(state TimerState) {
	bpm := s.metronome.BPM()

	s.mu.Lock()
	stopMetronome, restartMetronome := s.takeMetronomeOwnership()
	s.mu.Unlock()

	s.restoreMetronome(stopMetronome, restartMetronome)

	summary := stats.NewSessionSummary(stats.SummaryInput{
		At:              s.scheduler.Now(),
		DurationSeconds: state.ElapsedSeconds,
		TargetSeconds:   state.TargetSeconds,
		BPM:             bpm,
		PauseSeconds:    state.PauseSeconds,
		Completed:       true,
	}, s.estimator())
	s.logger.Printf("WorkoutSession: completed %ds, %d steps, %.1f kcal", summary.DurationSeconds, summary.Steps, summary.Calories)

	if err := s.record(context.Background(), summary); err != nil {
		s.logger.Printf("WorkoutSession: summary kept in memory only: %v", err)
	}

	s.timer.Reset()
	s.publishMetrics()
	s.finishedEvent.Notify(summary)
}

func (s *Session) record(ctx context.Context, summary stats.SessionSummary) error {
	if err := s.recorder.Append(ctx, summary); err != nil {
		return fmt.Errorf("workout: record session: %w", err)
	}
	return nil
}

func (s *Session) publishMetrics() {
	s.metricsEvent.Notify(s.LiveMetrics())
}
