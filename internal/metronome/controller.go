package metronome

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lowaak/slowrun-trainer/internal/audio"
	"github.com/lowaak/slowrun-trainer/internal/clock"
	"github.com/lowaak/slowrun-trainer/internal/events"
)

// State is a snapshot of the metronome
type State struct {
	Running bool
	BPM     int
	Volume  float64
	Sound   audio.SoundProfile
	Beats   uint64
}

// Beat is published once per pulse, after the sound has been emitted.
// Index starts at 1 for the first beat after each Start.
type Beat struct {
	Index uint64
	BPM   int
	At    time.Time
}

// Settings is the persisted part of the metronome state
type Settings struct {
	BPM    int
	Volume float64
	Sound  string
}

// Controller is a Stopped/Running state machine over a PulseClock.
// Out-of-range BPM and volume values are clamped, never rejected.
type Controller struct {
	cfg       Config
	scheduler clock.Scheduler
	clock     *clock.PulseClock
	pulse     *audio.AudioPulse
	logger    *log.Logger

	mu      sync.RWMutex
	running bool
	bpm     int
	volume  float64
	sound   audio.SoundProfile
	beats   uint64

	beatEvent  *events.CallbackEvent[Beat]
	stateEvent *events.CallbackEvent[State]
}

func NewController(cfg Config, scheduler clock.Scheduler, pulse *audio.AudioPulse, logger *log.Logger) *Controller {
	if scheduler == nil {
		panic("Metronome: scheduler cannot be nil")
	}
	if pulse == nil {
		panic("Metronome: pulse cannot be nil")
	}
	if logger == nil {
		panic("Metronome: logger cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Metronome: %v", err))
	}

	c := &Controller{
		cfg:        cfg,
		scheduler:  scheduler,
		clock:      clock.NewPulseClock("Metronome", scheduler, logger),
		pulse:      pulse,
		logger:     logger,
		bpm:        cfg.DefaultBPM,
		volume:     cfg.DefaultVolume,
		sound:      cfg.DefaultSound,
		beatEvent:  events.NewCallbackEvent[Beat](false),
		stateEvent: events.NewCallbackEvent[State](true),
	}
	// Seed the sticky state so early listeners see the defaults
	c.stateEvent.Notify(c.buildState())
	return c
}

func (c *Controller) Config() Config {
	return c.cfg
}

// ListenToBeat registers a callback run on every beat (the visual pulse hook).
// Returns a deregistration function.
func (c *Controller) ListenToBeat(fn func(Beat)) func() {
	return c.beatEvent.Listen(fn)
}

// ListenToState registers a callback run after every state change.
// Returns a deregistration function.
func (c *Controller) ListenToState(fn func(State)) func() {
	return c.stateEvent.Listen(fn)
}

// Start begins beating at the current BPM. No-op if already running.
func (c *Controller) Start() {
	// Resume before the first tick; this may touch the audio device so it runs unlocked
	c.pulse.EnsureActive()

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return
	}
	if err := c.clock.Start(clock.PeriodForBPM(c.bpm), c.onBeat); err != nil {
		c.mu.Unlock()
		c.logger.Printf("Metronome: failed to start: %v", err)
		return
	}
	c.running = true
	c.beats = 0
	state := c.buildState()
	c.mu.Unlock()

	c.logger.Printf("Metronome: started at %d BPM", state.BPM)
	c.stateEvent.Notify(state)
}

// Stop halts the beat. No-op if already stopped.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.clock.Stop()
	c.running = false
	state := c.buildState()
	c.mu.Unlock()

	c.logger.Printf("Metronome: stopped after %d beats", state.Beats)
	c.stateEvent.Notify(state)
}

func (c *Controller) Toggle() {
	if c.IsRunning() {
		c.Stop()
	} else {
		c.Start()
	}
}

// SetBPM clamps v into the configured range and applies it. While running the clock
// is restarted with the new period, so the beat phase resets.
func (c *Controller) SetBPM(v int) int {
	c.mu.Lock()
	c.bpm = c.cfg.ClampBPM(v)
	if c.running {
		if err := c.clock.Start(clock.PeriodForBPM(c.bpm), c.onBeat); err != nil {
			c.logger.Printf("Metronome: failed to restart: %v", err)
		}
	}
	state := c.buildState()
	c.mu.Unlock()

	if state.BPM != v {
		c.logger.Printf("Metronome: BPM %d clamped to %d", v, state.BPM)
	} else {
		c.logger.Printf("Metronome: BPM set to %d", state.BPM)
	}
	c.stateEvent.Notify(state)
	return state.BPM
}

// AdjustBPM shifts the BPM by delta, clamped
func (c *Controller) AdjustBPM(delta int) int {
	return c.SetBPM(c.BPM() + delta)
}

// SetVolume clamps v into [0, 1] and applies it
func (c *Controller) SetVolume(v float64) float64 {
	c.mu.Lock()
	c.volume = ClampVolume(v)
	state := c.buildState()
	c.mu.Unlock()

	c.stateEvent.Notify(state)
	return state.Volume
}

func (c *Controller) AdjustVolume(delta float64) float64 {
	return c.SetVolume(c.Volume() + delta)
}

// SetSound selects a sound profile by name. Unknown names are rejected and
// the current profile is kept.
func (c *Controller) SetSound(name string) error {
	profile, err := audio.ParseSoundProfile(name)
	if err != nil {
		c.logger.Printf("Metronome: rejected sound %q", name)
		return err
	}

	c.mu.Lock()
	c.sound = profile
	state := c.buildState()
	c.mu.Unlock()

	c.logger.Printf("Metronome: sound set to %s", profile)
	c.stateEvent.Notify(state)

	if c.cfg.PreviewOnSoundChange {
		c.pulse.Play(state.Sound, state.Volume)
	}
	return nil
}

// CycleSound moves to the next sound profile and returns it
func (c *Controller) CycleSound() audio.SoundProfile {
	next := c.Sound().Next()
	if err := c.SetSound(next.String()); err != nil {
		c.logger.Printf("Metronome: cycle sound failed: %v", err)
	}
	return c.Sound()
}

// Restore applies persisted settings, clamping BPM and volume.
// An unknown sound keeps the current profile.
func (c *Controller) Restore(s Settings) {
	c.mu.Lock()
	if s.BPM != 0 {
		c.bpm = c.cfg.ClampBPM(s.BPM)
	}
	c.volume = ClampVolume(s.Volume)
	if profile, err := audio.ParseSoundProfile(s.Sound); err == nil {
		c.sound = profile
	} else if s.Sound != "" {
		c.logger.Printf("Metronome: ignoring persisted sound %q", s.Sound)
	}
	state := c.buildState()
	c.mu.Unlock()

	c.logger.Printf("Metronome: restored %d BPM, volume %.2f, sound %s", state.BPM, state.Volume, state.Sound)
	c.stateEvent.Notify(state)
}

func (c *Controller) IsRunning() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.running
}

func (c *Controller) BPM() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.bpm
}

func (c *Controller) Volume() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.volume
}

func (c *Controller) Sound() audio.SoundProfile {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sound
}

func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.buildState()
}

// Settings returns the part of the state worth persisting
func (c *Controller) Settings() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Settings{BPM: c.bpm, Volume: c.volume, Sound: c.sound.String()}
}

// Shutdown stops the metronome
func (c *Controller) Shutdown() {
	c.logger.Println("Metronome: Shutting down")
	c.Stop()
}

// Must be called with mu held
func (c *Controller) buildState() State {
	return State{
		Running: c.running,
		BPM:     c.bpm,
		Volume:  c.volume,
		Sound:   c.sound,
		Beats:   c.beats,
	}
}

func (c *Controller) onBeat() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.beats++
	beat := Beat{Index: c.beats, BPM: c.bpm, At: c.scheduler.Now()}
	sound, volume := c.sound, c.volume
	c.mu.Unlock()

	// External call after releasing lock
	c.pulse.Play(sound, volume)
	c.beatEvent.Notify(beat)
}
