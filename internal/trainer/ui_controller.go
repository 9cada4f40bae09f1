package trainer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/lowaak/slowrun-trainer/internal/audio"
	"github.com/lowaak/slowrun-trainer/internal/checkin"
	"github.com/lowaak/slowrun-trainer/internal/metronome"
	"github.com/lowaak/slowrun-trainer/internal/stats"
	"github.com/lowaak/slowrun-trainer/internal/workout"
)

// Export formats
const (
	ExportJSON = "json"
	ExportCSV  = "csv"
)

var ErrUnknownExportFormat = errors.New("trainer: unknown export format")

// UIController handles UI events and coordinates the App with the UIModel
type UIController struct {
	model  *UIModel
	app    *App
	logger *log.Logger

	mu           sync.Mutex
	checkinYear  int
	checkinMonth time.Month

	unregister []func()
}

// NewUIController creates a new UIController and starts mirroring the App's
// events into the model
func NewUIController(model *UIModel, app *App, logger *log.Logger) *UIController {
	if model == nil {
		panic("UIController: model cannot be nil")
	}
	if app == nil {
		panic("UIController: app cannot be nil")
	}
	if logger == nil {
		panic("UIController: logger cannot be nil")
	}

	now := app.Now().In(app.Location())
	c := &UIController{
		model:        model,
		app:          app,
		logger:       logger,
		checkinYear:  now.Year(),
		checkinMonth: now.Month(),
	}
	model.SetWorkoutMinutes(app.WorkoutMinutes())

	c.unregister = append(c.unregister,
		app.Metronome().ListenToState(model.SetMetronomeState),
		app.Metronome().ListenToBeat(model.SetBeat),
		app.Session().ListenToMetrics(model.SetMetrics),
		app.Session().ListenToFinished(c.onWorkoutFinished),
		app.Stats().ListenToChanges(func(stats.Snapshot) { c.refreshStats() }),
		app.Calendar().ListenToChanges(func(int) { c.refreshCheckin() }),
	)
	return c
}

// OnEscapeKey handles when the Escape key is pressed
func (c *UIController) OnEscapeKey() {
	c.model.RequestCloseApplication()
}

// OnModeChange handles when the user requests a mode change
func (c *UIController) OnModeChange(mode UIMode) {
	if info, ok := GetUIModeInfo(mode); ok {
		c.logger.Printf("Switching to %s mode", info.DisplayName)
	}
	switch mode {
	case UIModeStats:
		c.refreshStats()
	case UIModeCheckin:
		c.refreshCheckin()
	}
	c.model.SetMode(mode)
}

// --- Metronome Methods ---

func (c *UIController) StartMetronome() {
	c.app.Metronome().Start()
}

func (c *UIController) StopMetronome() {
	c.app.Metronome().Stop()
}

func (c *UIController) ToggleMetronome() {
	c.app.Metronome().Toggle()
}

// SetBPM sets the cadence, clamped to the configured range
func (c *UIController) SetBPM(bpm int) {
	applied := c.app.Metronome().SetBPM(bpm)
	if applied != bpm {
		c.model.SetStatus(fmt.Sprintf("BPM clamped to %d", applied))
	}
}

func (c *UIController) AdjustBPM(delta int) {
	c.app.Metronome().AdjustBPM(delta)
}

// CycleBPMPreset jumps to the next preset above the current cadence, wrapping around
func (c *UIController) CycleBPMPreset() {
	current := c.app.Metronome().BPM()
	next := metronome.BPMPresets[0]
	for _, preset := range metronome.BPMPresets {
		if preset > current {
			next = preset
			break
		}
	}
	c.SetBPM(next)
}

func (c *UIController) SetVolume(volume float64) {
	c.app.Metronome().SetVolume(volume)
}

func (c *UIController) AdjustVolume(delta float64) {
	c.app.Metronome().AdjustVolume(delta)
}

func (c *UIController) SetSound(name string) {
	if err := c.app.Metronome().SetSound(name); err != nil {
		c.logger.Printf("UIController: %v", err)
		c.model.SetStatus(fmt.Sprintf("Unknown sound %q", name))
	}
}

func (c *UIController) CycleSound() audio.SoundProfile {
	return c.app.Metronome().CycleSound()
}

// ToggleSoundEnabled flips the saved sound preference
func (c *UIController) ToggleSoundEnabled() {
	repo := c.app.Settings()
	current := repo.Current()
	current.SoundEnabled = !current.SoundEnabled
	if err := repo.Save(context.Background(), current); err != nil {
		c.logger.Printf("UIController: failed to save settings: %v", err)
		c.model.SetStatus("Could not save settings")
		return
	}
	if current.SoundEnabled {
		c.model.SetStatus("Sound on")
	} else {
		c.model.SetStatus("Sound off")
	}
}

// --- Workout Methods ---

// StartWorkout starts a workout of the given length at the current BPM
func (c *UIController) StartWorkout(minutes int) {
	if c.app.Session().Status().Active() {
		c.model.SetStatus("A workout is already in progress")
		return
	}
	if err := c.app.SetWorkoutMinutes(minutes); err != nil {
		c.model.SetStatus(fmt.Sprintf("Invalid duration: %d min", minutes))
		return
	}
	c.model.SetWorkoutMinutes(minutes)
	if err := c.app.Session().StartWorkout(minutes); err != nil {
		if errors.Is(err, workout.ErrTimerBusy) {
			c.model.SetStatus("A workout is already in progress")
		} else {
			c.model.SetStatus(err.Error())
		}
		c.logger.Printf("UIController: start workout: %v", err)
		return
	}
	c.model.SetStatus(fmt.Sprintf("Workout started: %d min", minutes))
}

// StartDefaultWorkout starts a workout with the planned length
func (c *UIController) StartDefaultWorkout() {
	c.StartWorkout(c.app.WorkoutMinutes())
}

// AdjustWorkoutMinutes changes the planned length by delta, clamped to the
// allowed range. Ignored while a workout is active.
func (c *UIController) AdjustWorkoutMinutes(delta int) {
	if c.app.Session().Status().Active() {
		c.model.SetStatus("Stop the workout to change its length")
		return
	}
	minutes := c.app.WorkoutMinutes() + delta
	minutes = max(1, min(minutes, c.app.MaxWorkoutMinutes()))
	if err := c.app.SetWorkoutMinutes(minutes); err != nil {
		c.logger.Printf("UIController: %v", err)
		return
	}
	c.model.SetWorkoutMinutes(minutes)
}

// CycleWorkoutPreset jumps to the next duration preset above the planned length
func (c *UIController) CycleWorkoutPreset() {
	current := c.app.WorkoutMinutes()
	next := workout.DurationPresets[0]
	for _, preset := range workout.DurationPresets {
		if preset > current {
			next = preset
			break
		}
	}
	c.AdjustWorkoutMinutes(next - current)
}

// PauseResumeWorkout pauses a running workout or resumes a paused one
func (c *UIController) PauseResumeWorkout() {
	status := c.app.Session().PauseResume()
	switch status {
	case workout.StatusPaused:
		c.model.SetStatus("Workout paused")
	case workout.StatusRunning:
		c.model.SetStatus("Workout resumed")
	default:
		c.model.SetStatus("No workout in progress")
	}
}

// StopWorkout ends the workout early. With save the partial run is recorded.
func (c *UIController) StopWorkout(save bool) {
	summary, err := c.app.Session().StopWorkout(context.Background(), save)
	if errors.Is(err, workout.ErrNoActiveWorkout) {
		c.model.SetStatus("No workout in progress")
		return
	}
	if err != nil {
		c.logger.Printf("UIController: stop workout: %v", err)
		c.model.SetStatus("Workout stopped but could not be saved")
		return
	}
	if summary == nil {
		c.model.SetStatus("Workout discarded")
		return
	}
	c.model.SetStatus(fmt.Sprintf("Workout saved: %s, %d steps", formatDurationMMSS(summary.DurationSeconds), summary.Steps))
}

// LiveMetrics returns the current workout metrics
func (c *UIController) LiveMetrics() workout.LiveMetrics {
	return c.app.Session().LiveMetrics()
}

// OnWorkoutCompleted registers fn to run with the summary of every workout that
// reaches its target. Returns a deregistration function.
func (c *UIController) OnWorkoutCompleted(fn func(stats.SessionSummary)) func() {
	return c.app.Session().ListenToFinished(func(summary stats.SessionSummary) {
		if summary.Completed {
			fn(summary)
		}
	})
}

func (c *UIController) onWorkoutFinished(summary stats.SessionSummary) {
	c.model.SetLastSummary(summary)
	if summary.Completed {
		c.model.SetStatus(fmt.Sprintf("Workout complete! %s, %d steps, %.0f kcal. Press c to check in",
			formatDurationMMSS(summary.DurationSeconds), summary.Steps, summary.Calories))
	}
}

// --- Stats Methods ---

// Stats returns the running totals
func (c *UIController) Stats() stats.Aggregate {
	return c.app.Stats().Aggregate()
}

func (c *UIController) refreshStats() {
	snapshot := c.app.Stats().Snapshot()
	c.model.SetStats(StatsView{
		Aggregate:    snapshot.Aggregate,
		Records:      snapshot.Records,
		TodaySeconds: c.app.Stats().TodaySeconds(),
	})
}

// ExportData writes every record in the given format
func (c *UIController) ExportData(w io.Writer, format string) error {
	switch strings.ToLower(format) {
	case ExportJSON:
		return c.app.Stats().WriteJSON(w)
	case ExportCSV:
		return c.app.Stats().WriteCSV(w)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownExportFormat, format)
	}
}

// ImportData replaces the stats and records with a previous export
func (c *UIController) ImportData(ctx context.Context, raw []byte) error {
	if err := c.app.Stats().ImportAll(ctx, raw); err != nil {
		c.model.SetStatus("Import failed: invalid file")
		return err
	}
	c.model.SetStatus("Import complete")
	return nil
}

// ResetStats clears every record and the aggregate
func (c *UIController) ResetStats() {
	if err := c.app.Stats().Reset(context.Background()); err != nil {
		c.logger.Printf("UIController: reset stats: %v", err)
		c.model.SetStatus("Could not reset stats")
		return
	}
	c.model.SetStatus("Stats cleared")
}

// --- Check-in Methods ---

// QuickCheckIn records today's run with the default feeling
func (c *UIController) QuickCheckIn() {
	c.CheckIn(QuickCheckinFeeling)
}

// CheckIn records today's run using the last finished workout, or the planned
// length when none finished yet. An existing check-in for today is replaced.
func (c *UIController) CheckIn(feeling checkin.Feeling) {
	minutes := c.app.WorkoutMinutes()
	if summary, ok := c.model.GetLastSummary(); ok {
		minutes = max(1, summary.DurationSeconds/60)
	}
	record, err := c.app.Calendar().CheckIn(context.Background(), c.app.Now(), minutes, feeling, "")
	if err != nil {
		c.logger.Printf("UIController: check-in: %v", err)
		c.model.SetStatus("Check-in failed")
		return
	}
	c.model.SetStatus(fmt.Sprintf("Checked in %s: %s, %s", record.Date, formatMinutes(record.Duration), feelingLabel(record.Feeling)))
}

// ShiftCheckinMonth moves the calendar view by delta months
func (c *UIController) ShiftCheckinMonth(delta int) {
	c.mu.Lock()
	first := time.Date(c.checkinYear, c.checkinMonth, 1, 0, 0, 0, 0, c.app.Location()).AddDate(0, delta, 0)
	c.checkinYear, c.checkinMonth = first.Year(), first.Month()
	c.mu.Unlock()

	c.refreshCheckin()
}

func (c *UIController) refreshCheckin() {
	c.mu.Lock()
	year, month := c.checkinYear, c.checkinMonth
	c.mu.Unlock()

	cal := c.app.Calendar()
	view := CheckinView{
		Year:  year,
		Month: month,
		Days:  cal.Month(year, month),
		Stats: cal.Stats(year, month),

		TodayDate: checkin.DateKey(c.app.Now(), c.app.Location()),
	}
	if today, ok := cal.Today(); ok {
		view.Today = &today
	}
	c.model.SetCheckin(view)
}

// Shutdown releases the App subscriptions and shuts the App down
func (c *UIController) Shutdown() {
	for _, unregister := range c.unregister {
		unregister()
	}
	c.app.Shutdown()
}
