package trainer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lowaak/slowrun-trainer/internal/audio"
	"github.com/lowaak/slowrun-trainer/internal/checkin"
	"github.com/lowaak/slowrun-trainer/internal/clock"
	"github.com/lowaak/slowrun-trainer/internal/config"
	"github.com/lowaak/slowrun-trainer/internal/kvstore"
	"github.com/lowaak/slowrun-trainer/internal/metronome"
	"github.com/lowaak/slowrun-trainer/internal/plan"
	"github.com/lowaak/slowrun-trainer/internal/settings"
	"github.com/lowaak/slowrun-trainer/internal/stats"
	"github.com/lowaak/slowrun-trainer/internal/workout"
)

type AppArgs struct {
	Config     config.Config
	KV         kvstore.Store
	Scheduler  clock.Scheduler
	Sink       audio.Sink
	AppVersion string
	Location   *time.Location
	Logger     *log.Logger
}

// App wires the metronome, the workout session and the stores together.
// It owns every component except the kv store, which the caller closes.
type App struct {
	cfg       config.Config
	kv        kvstore.Store
	scheduler clock.Scheduler
	loc       *time.Location
	logger    *log.Logger

	pulse     *audio.AudioPulse
	metronome *metronome.Controller
	timer     *workout.SessionTimer
	session   *workout.Session
	stats     *stats.Store
	settings  *settings.Repository
	calendar  *checkin.Calendar

	mu             sync.Mutex
	workoutMinutes int
	savedState     stats.AppState

	unregister   []func()
	shutdownOnce sync.Once
}

func NewApp(args AppArgs) (*App, error) {
	if args.KV == nil {
		panic("App: kv cannot be nil")
	}
	if args.Scheduler == nil {
		panic("App: scheduler cannot be nil")
	}
	if args.Logger == nil {
		panic("App: logger cannot be nil")
	}
	if args.Location == nil {
		args.Location = time.Local
	}

	metronomeCfg, err := args.Config.MetronomeSettings()
	if err != nil {
		return nil, err
	}
	maxMinutes := args.Config.Workout.MaxMinutes
	if maxMinutes <= 0 {
		maxMinutes = workout.MaxMinutes
	}
	defaultMinutes := args.Config.Workout.DefaultMinutes
	if defaultMinutes < 1 || defaultMinutes > maxMinutes {
		defaultMinutes = min(workout.DefaultMinutes, maxMinutes)
	}

	a := &App{
		cfg:            args.Config,
		kv:             args.KV,
		scheduler:      args.Scheduler,
		loc:            args.Location,
		logger:         args.Logger,
		workoutMinutes: defaultMinutes,
	}
	a.pulse = audio.NewAudioPulse(args.Sink, args.Logger)
	a.metronome = metronome.NewController(metronomeCfg, args.Scheduler, a.pulse, args.Logger)
	a.stats = stats.NewStore(args.KV, stats.Options{
		Capacity:   args.Config.Stats.RecordCapacity,
		AppVersion: args.AppVersion,
		Now:        args.Scheduler.Now,
		Location:   args.Location,
	}, args.Logger)
	a.settings = settings.NewRepository(args.KV, args.Logger)
	a.calendar = checkin.NewCalendar(args.KV, checkin.Options{
		Now:      args.Scheduler.Now,
		Location: args.Location,
	}, args.Logger)
	a.timer = workout.NewSessionTimer(args.Scheduler, maxMinutes*60, args.Logger)
	a.session = workout.NewSession(workout.SessionArgs{
		Timer:      a.timer,
		Metronome:  a.metronome,
		Recorder:   a.stats,
		Scheduler:  args.Scheduler,
		Estimator:  a.settings.Estimator,
		MaxMinutes: maxMinutes,
		Logger:     args.Logger,
	})
	return a, nil
}

// Load reads every persisted document and restores the metronome and the
// planned workout length. Unreadable documents fall back to defaults.
func (a *App) Load(ctx context.Context) {
	a.stats.Load(ctx)
	current := a.settings.Load(ctx)
	days := a.calendar.Load(ctx)

	state, hasState := a.stats.State()
	switch {
	case hasState:
		a.metronome.Restore(metronome.Settings{BPM: state.BPM, Volume: state.Volume, Sound: state.SoundProfile})
	case a.settings.Saved():
		s := a.metronome.Settings()
		s.BPM = current.DefaultBPM
		a.metronome.Restore(s)
	}

	a.mu.Lock()
	if hasState {
		a.savedState = state
		if state.CurrentDuration >= 1 && state.CurrentDuration*60 <= a.timer.MaxSeconds() {
			a.workoutMinutes = state.CurrentDuration
		}
	}
	minutes := a.workoutMinutes
	a.mu.Unlock()

	a.pulse.SetEnabled(current.SoundEnabled)
	a.unregister = append(a.unregister,
		a.metronome.ListenToState(func(metronome.State) { a.persistState() }),
		a.settings.ListenToChanges(func(s settings.Settings) { a.pulse.SetEnabled(s.SoundEnabled) }),
	)
	a.logger.Printf("App: loaded %d sessions, %d check-ins, workout length %d min",
		a.stats.Aggregate().TotalSessions, days, minutes)
}

func (a *App) Config() config.Config            { return a.cfg }
func (a *App) Metronome() *metronome.Controller { return a.metronome }
func (a *App) Session() *workout.Session        { return a.session }
func (a *App) Stats() *stats.Store              { return a.stats }
func (a *App) Settings() *settings.Repository   { return a.settings }
func (a *App) Calendar() *checkin.Calendar      { return a.calendar }
func (a *App) Pulse() *audio.AudioPulse         { return a.pulse }
func (a *App) Location() *time.Location         { return a.loc }
func (a *App) Now() time.Time                   { return a.scheduler.Now() }
func (a *App) MaxWorkoutMinutes() int           { return a.timer.MaxSeconds() / 60 }
func (a *App) KV() kvstore.Store                { return a.kv }

func (a *App) WorkoutMinutes() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.workoutMinutes
}

// SetWorkoutMinutes changes the planned workout length and persists it with
// the metronome state. Out-of-range values are rejected.
func (a *App) SetWorkoutMinutes(minutes int) error {
	if minutes < 1 || minutes > a.MaxWorkoutMinutes() {
		return fmt.Errorf("%w: %d minutes not in [1, %d]", workout.ErrInvalidDuration, minutes, a.MaxWorkoutMinutes())
	}
	a.mu.Lock()
	changed := a.workoutMinutes != minutes
	a.workoutMinutes = minutes
	a.mu.Unlock()

	if changed {
		a.persistState()
	}
	return nil
}

// ApplyPlan sets the metronome to the plan's target cadence and the workout
// length to its session midpoint, both clamped to the configured ranges.
// It returns what was applied.
func (a *App) ApplyPlan(p plan.Plan) (bpm, minutes int, err error) {
	if a.session.Status().Active() {
		return 0, 0, fmt.Errorf("%w: cannot apply a plan during a workout", workout.ErrTimerBusy)
	}
	minutes = min(max(p.SessionMinutes(), 1), a.MaxWorkoutMinutes())
	if err := a.SetWorkoutMinutes(minutes); err != nil {
		return 0, 0, err
	}
	bpm = a.metronome.SetBPM(p.TargetBPM)
	a.logger.Printf("App: applied %s plan: %d BPM, %d min", p.Experience, bpm, minutes)
	return bpm, minutes, nil
}

// persistState saves the metronome settings and workout length when they differ
// from what was last written
func (a *App) persistState() {
	s := a.metronome.Settings()

	a.mu.Lock()
	state := stats.AppState{
		BPM:             s.BPM,
		Volume:          s.Volume,
		SoundProfile:    s.Sound,
		CurrentDuration: a.workoutMinutes,
	}
	if state == a.savedState {
		a.mu.Unlock()
		return
	}
	a.savedState = state
	a.mu.Unlock()

	// External call after releasing lock
	if err := a.stats.SaveState(context.Background(), state); err != nil {
		a.logger.Printf("App: failed to save state: %v", err)
	}
}

// Shutdown stops the workout and the metronome. An active workout is discarded.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(func() {
		a.logger.Println("App: Shutting down")
		if a.session.Status().Active() {
			if _, err := a.session.StopWorkout(context.Background(), false); err != nil && !errors.Is(err, workout.ErrNoActiveWorkout) {
				a.logger.Printf("App: failed to stop workout: %v", err)
			}
		}
		for _, unregister := range a.unregister {
			unregister()
		}
		a.session.Shutdown()
		a.metronome.Shutdown()
		a.logger.Println("App: Shutdown complete")
	})
}
