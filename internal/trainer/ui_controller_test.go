package trainer

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lowaak/slowrun-trainer/internal/audio"
	"github.com/lowaak/slowrun-trainer/internal/checkin"
	"github.com/lowaak/slowrun-trainer/internal/clock"
	"github.com/lowaak/slowrun-trainer/internal/kvstore"
	"github.com/lowaak/slowrun-trainer/internal/stats"
	"github.com/lowaak/slowrun-trainer/internal/workout"
)

type controllerFixture struct {
	kv         *kvstore.MemoryStore
	sched      *clock.ManualScheduler
	app        *App
	model      *UIModel
	controller *UIController
}

func newControllerFixture(t *testing.T) *controllerFixture {
	t.Helper()
	kv := kvstore.NewMemoryStore()
	sched := clock.NewManualScheduler(epoch)
	app := newTestApp(t, kv, sched)
	model := NewUIModel(kv, discardLogger(), make(chan string))
	t.Cleanup(model.Shutdown)
	controller := NewUIController(model, app, discardLogger())
	t.Cleanup(controller.Shutdown)
	return &controllerFixture{kv: kv, sched: sched, app: app, model: model, controller: controller}
}

func TestUIController_MirrorsInitialState(t *testing.T) {
	f := newControllerFixture(t)

	state := f.model.GetMetronomeState()
	assert.Equal(t, 180, state.BPM)
	assert.InDelta(t, 0.65, state.Volume, 1e-9)
	assert.Equal(t, audio.SoundClick, state.Sound)
	assert.False(t, state.Running)
	assert.Equal(t, 15, f.model.GetUIState().WorkoutMinutes)
	assert.Equal(t, workout.StatusIdle, f.model.GetMetrics().Status)
}

func TestUIController_ModeChangeIsRemembered(t *testing.T) {
	f := newControllerFixture(t)

	f.controller.OnModeChange(UIModeCheckin)
	assert.Equal(t, UIModeCheckin, f.model.GetUIState().Mode)
	assert.Equal(t, 2026, f.model.GetCheckin().Year)
	assert.Equal(t, time.April, f.model.GetCheckin().Month)

	reopened := NewUIModel(f.kv, discardLogger(), make(chan string))
	defer reopened.Shutdown()
	assert.Equal(t, UIModeCheckin, reopened.GetUIState().Mode)
}

func TestUIController_MetronomeControls(t *testing.T) {
	f := newControllerFixture(t)

	f.controller.ToggleMetronome()
	assert.True(t, f.model.GetMetronomeState().Running)

	f.controller.AdjustBPM(3)
	assert.Equal(t, 183, f.model.GetMetronomeState().BPM)

	f.controller.SetBPM(250)
	assert.Equal(t, 190, f.model.GetMetronomeState().BPM)
	assert.Equal(t, "BPM clamped to 190", f.model.GetStatus())

	f.controller.CycleBPMPreset()
	assert.Equal(t, 170, f.model.GetMetronomeState().BPM, "wraps to the first preset")
	f.controller.CycleBPMPreset()
	assert.Equal(t, 175, f.model.GetMetronomeState().BPM)

	f.controller.SetSound("gong")
	assert.Equal(t, `Unknown sound "gong"`, f.model.GetStatus())
	assert.Equal(t, "beep", f.controller.CycleSound().String())

	f.controller.StopMetronome()
	assert.False(t, f.model.GetMetronomeState().Running)
}

func TestUIController_ToggleSoundEnabled(t *testing.T) {
	f := newControllerFixture(t)

	f.controller.ToggleSoundEnabled()
	assert.False(t, f.app.Pulse().Enabled())
	assert.Equal(t, "Sound off", f.model.GetStatus())

	f.controller.ToggleSoundEnabled()
	assert.True(t, f.app.Pulse().Enabled())
}

func TestUIController_StartWorkoutValidation(t *testing.T) {
	f := newControllerFixture(t)

	f.controller.StartWorkout(0)
	assert.Equal(t, "Invalid duration: 0 min", f.model.GetStatus())
	assert.Equal(t, workout.StatusIdle, f.app.Session().Status())

	f.controller.StartDefaultWorkout()
	assert.Equal(t, "Workout started: 15 min", f.model.GetStatus())
	assert.Equal(t, workout.StatusRunning, f.model.GetMetrics().Status)

	f.controller.StartWorkout(10)
	assert.Equal(t, "A workout is already in progress", f.model.GetStatus())
	assert.Equal(t, 15, f.app.WorkoutMinutes())
}

func TestUIController_AdjustWorkoutMinutes(t *testing.T) {
	f := newControllerFixture(t)

	f.controller.AdjustWorkoutMinutes(WorkoutMinutesStep)
	assert.Equal(t, 20, f.model.GetUIState().WorkoutMinutes)

	f.controller.AdjustWorkoutMinutes(-100)
	assert.Equal(t, 1, f.app.WorkoutMinutes())

	f.controller.CycleWorkoutPreset()
	assert.Equal(t, 5, f.app.WorkoutMinutes())

	require.NoError(t, f.app.SetWorkoutMinutes(60))
	f.controller.CycleWorkoutPreset()
	assert.Equal(t, 5, f.app.WorkoutMinutes(), "wraps to the first preset")

	f.controller.StartDefaultWorkout()
	f.controller.AdjustWorkoutMinutes(5)
	assert.Equal(t, 5, f.app.WorkoutMinutes())
}

func TestUIController_PauseResumeAndStop(t *testing.T) {
	f := newControllerFixture(t)

	f.controller.PauseResumeWorkout()
	assert.Equal(t, "No workout in progress", f.model.GetStatus())

	f.controller.StartWorkout(10)
	f.sched.Advance(2 * time.Minute)

	f.controller.PauseResumeWorkout()
	assert.Equal(t, "Workout paused", f.model.GetStatus())
	assert.False(t, f.model.GetMetronomeState().Running)

	f.controller.PauseResumeWorkout()
	assert.Equal(t, "Workout resumed", f.model.GetStatus())
	assert.True(t, f.model.GetMetronomeState().Running)

	f.controller.StopWorkout(true)
	assert.Equal(t, "Workout saved: 02:00, 360 steps", f.model.GetStatus())
	assert.Equal(t, 1, f.model.GetStats().Aggregate.TotalSessions)
	metrics := f.model.GetMetrics()
	assert.Equal(t, workout.StatusIdle, metrics.Status)
	assert.Equal(t, 0, metrics.TargetSeconds)
	assert.Equal(t, 0, metrics.RemainingSeconds)

	f.controller.StopWorkout(true)
	assert.Equal(t, "No workout in progress", f.model.GetStatus())
}

func TestUIController_StopAndDiscard(t *testing.T) {
	f := newControllerFixture(t)

	f.controller.StartWorkout(10)
	f.sched.Advance(30 * time.Second)
	f.controller.StopWorkout(false)

	assert.Equal(t, "Workout discarded", f.model.GetStatus())
	assert.Equal(t, 0, f.app.Stats().Aggregate().TotalSessions)
	_, ok := f.model.GetLastSummary()
	assert.False(t, ok)
}

func TestUIController_CompletionAndQuickCheckIn(t *testing.T) {
	f := newControllerFixture(t)

	var completed []stats.SessionSummary
	unregister := f.controller.OnWorkoutCompleted(func(s stats.SessionSummary) { completed = append(completed, s) })
	defer unregister()

	f.controller.StartWorkout(2)
	f.sched.Advance(2 * time.Minute)

	require.Len(t, completed, 1)
	assert.True(t, completed[0].Completed)
	assert.True(t, strings.HasPrefix(f.model.GetStatus(), "Workout complete! 02:00, 360 steps"))
	assert.Equal(t, workout.StatusIdle, f.controller.LiveMetrics().Status)
	assert.Equal(t, 1, f.controller.Stats().TotalSessions)

	summary, ok := f.model.GetLastSummary()
	require.True(t, ok)
	assert.Equal(t, 120, summary.DurationSeconds)

	f.controller.QuickCheckIn()
	record, ok := f.app.Calendar().Today()
	require.True(t, ok)
	assert.Equal(t, 2, record.Duration)
	assert.Equal(t, QuickCheckinFeeling, record.Feeling)

	view := f.model.GetCheckin()
	require.NotNil(t, view.Today)
	assert.Equal(t, "2026-04-12", view.TodayDate)
	assert.Equal(t, 1, view.Stats.CurrentStreak)

	f.controller.CheckIn(checkin.FeelingTired)
	record, _ = f.app.Calendar().Today()
	assert.Equal(t, checkin.FeelingTired, record.Feeling)
}

func TestUIController_StoppedWorkoutIsNotACompletion(t *testing.T) {
	f := newControllerFixture(t)

	calls := 0
	unregister := f.controller.OnWorkoutCompleted(func(stats.SessionSummary) { calls++ })
	defer unregister()

	f.controller.StartWorkout(5)
	f.sched.Advance(time.Minute)
	f.controller.StopWorkout(true)

	assert.Equal(t, 0, calls)
	summary, ok := f.model.GetLastSummary()
	require.True(t, ok)
	assert.False(t, summary.Completed)
}

func TestUIController_QuickCheckInWithoutWorkoutUsesPlannedLength(t *testing.T) {
	f := newControllerFixture(t)

	f.controller.QuickCheckIn()
	record, ok := f.app.Calendar().Today()
	require.True(t, ok)
	assert.Equal(t, 15, record.Duration)
}

func TestUIController_ShiftCheckinMonth(t *testing.T) {
	f := newControllerFixture(t)

	f.controller.ShiftCheckinMonth(-4)
	view := f.model.GetCheckin()
	assert.Equal(t, 2025, view.Year)
	assert.Equal(t, time.December, view.Month)
	assert.Len(t, view.Days, 31)

	f.controller.ShiftCheckinMonth(2)
	assert.Equal(t, time.February, f.model.GetCheckin().Month)
	assert.Equal(t, 2026, f.model.GetCheckin().Year)
}

func TestUIController_ExportAndImport(t *testing.T) {
	f := newControllerFixture(t)
	f.controller.StartWorkout(1)
	f.sched.Advance(time.Minute)

	var csvOut bytes.Buffer
	require.NoError(t, f.controller.ExportData(&csvOut, "CSV"))
	assert.True(t, strings.HasPrefix(csvOut.String(), "日期,"))

	var jsonOut bytes.Buffer
	require.NoError(t, f.controller.ExportData(&jsonOut, ExportJSON))

	err := f.controller.ExportData(&bytes.Buffer{}, "xml")
	assert.ErrorIs(t, err, ErrUnknownExportFormat)

	err = f.controller.ImportData(context.Background(), []byte(`{"stats": null}`))
	assert.ErrorIs(t, err, stats.ErrInvalidImportFormat)
	assert.Equal(t, "Import failed: invalid file", f.model.GetStatus())
	assert.Equal(t, 1, f.app.Stats().Aggregate().TotalSessions)

	f.controller.ResetStats()
	assert.Equal(t, 0, f.model.GetStats().Aggregate.TotalSessions)

	require.NoError(t, f.controller.ImportData(context.Background(), jsonOut.Bytes()))
	assert.Equal(t, "Import complete", f.model.GetStatus())
	assert.Equal(t, 1, f.model.GetStats().Aggregate.TotalSessions)
	assert.Len(t, f.model.GetStats().Records, 1)
}

func TestUIController_EscapeRequestsClose(t *testing.T) {
	f := newControllerFixture(t)

	ch := make(chan struct{}, 1)
	unregister := f.model.ListenToCloseApplication(ch)
	defer unregister()

	f.controller.OnEscapeKey()
	select {
	case <-ch:
	case <-time.After(time.Second):
		t.Fatal("close was not requested")
	}
}
