package trainer

import (
	"github.com/lowaak/slowrun-trainer/internal/metronome"
	"github.com/lowaak/slowrun-trainer/internal/workout"
)

// UIViewImpl defines the interface for framework-specific UI implementations
type UIViewImpl interface {
	// Initialize is called after construction to set up framework-specific widgets
	// controller is used to handle UI events
	Initialize(controller *UIController)

	// SetupKeyboardHandlers sets up keyboard event handlers
	// controller is used to handle keyboard events
	SetupKeyboardHandlers(controller *UIController)

	// Run starts the UI framework and blocks until it exits
	Run() error

	// Stop stops the UI framework
	Stop()

	// Draw refreshes/redraws the UI
	Draw() error

	// --- Mode Management ---

	SetMode(mode UIMode)
	GetCurrentMode() UIMode

	// --- Log View (shared across modes) ---

	GetLogViewHeight() int
	ClearLogView()
	WriteLogLine(line string) error

	// SetStatus shows a one-line message under the mode pages
	SetStatus(message string)

	// --- Dashboard Mode ---

	UpdateMetronome(state metronome.State)

	// UpdateBeat flashes the beat indicator
	UpdateBeat(beat metronome.Beat)

	// UpdateWorkout updates the workout panel; minutes is the planned length shown while idle
	UpdateWorkout(metrics workout.LiveMetrics, minutes int)

	// --- Stats Mode ---

	UpdateStats(view StatsView)

	// --- Check-in Mode ---

	UpdateCheckin(view CheckinView)
}
