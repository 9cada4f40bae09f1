package trainer

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/lowaak/slowrun-trainer/internal/checkin"
	"github.com/lowaak/slowrun-trainer/internal/metronome"
	"github.com/lowaak/slowrun-trainer/internal/workout"
)

// Page names for tview.Pages
const (
	pageDashboard = "dashboard"
	pageStats     = "stats"
	pageCheckin   = "checkin"
)

const progressBarWidth = 30

// CursesUIViewImpl implements UIViewImpl using tview (curses-based terminal UI)
type CursesUIViewImpl struct {
	logger      *log.Logger
	app         *tview.Application
	model       *UIModel
	currentMode UIMode

	// Root container that holds all pages
	pages *tview.Pages

	// Shared components (visible in all modes)
	logView    *tview.TextView
	statusView *tview.TextView
	mainFlex   *tview.Flex // Main layout: mode content and status on left, logs on right

	// Dashboard mode components
	dashboardFlex       *tview.Flex
	dashboardTabWidgets []*tview.Box
	metronomePanel      *tview.TextView
	beatPanel           *tview.TextView
	workoutPanel        *tview.TextView

	// Stats mode components
	statsFlex       *tview.Flex
	statsTabWidgets []*tview.Box
	summaryPanel    *tview.TextView
	recordsTable    *tview.Table

	// Check-in mode components
	checkinFlex       *tview.Flex
	checkinTabWidgets []*tview.Box
	calendarPanel     *tview.TextView
	monthPanel        *tview.TextView
}

func NewCursesUIView(logger *log.Logger, app *tview.Application, model *UIModel) *CursesUIViewImpl {
	return &CursesUIViewImpl{
		logger:      logger,
		app:         app,
		model:       model,
		currentMode: UIModeDashboard,
	}
}

func newPanel(title string) *tview.TextView {
	panel := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	panel.SetBorder(true).SetTitle(" " + title + " ")
	return panel
}

// Initialize sets up the tview widgets
func (ui *CursesUIViewImpl) Initialize(controller *UIController) {
	// Create shared log view
	// Note: Don't use SetChangedFunc with app.Draw() - it can cause hangs during shutdown
	// when the app has been stopped but log messages are still being written.
	// The BaseUIView's event listeners already call Draw() after updating content.
	ui.logView = tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(false)
	ui.logView.SetBorder(true).SetTitle(" Logs ")

	ui.statusView = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)

	// Create pages container for mode switching
	ui.pages = tview.NewPages()

	ui.initDashboardMode()
	ui.initStatsMode()
	ui.initCheckinMode()

	ui.pages.AddPage(pageDashboard, ui.dashboardFlex, true, true)
	ui.pages.AddPage(pageStats, ui.statsFlex, true, false)
	ui.pages.AddPage(pageCheckin, ui.checkinFlex, true, false)

	leftColumn := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.pages, 0, 1, true).
		AddItem(ui.statusView, 1, 0, false)

	// Create main layout: pages on left, logs on right
	ui.mainFlex = tview.NewFlex().
		AddItem(leftColumn, 0, 2, true).
		AddItem(ui.logView, 0, 1, false)

	ui.setFocusForCurrentMode()
}

func modeMenu() string {
	items := make([]string, 0, len(AllUIModes))
	for _, info := range AllUIModes {
		items = append(items, fmt.Sprintf("[yellow]%c[white] %s", info.KeyBinding, info.DisplayName))
	}
	return strings.Join(items, "  |  ")
}

func (ui *CursesUIViewImpl) initDashboardMode() {
	instructions := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	instructions.SetText("[yellow]Space[white] Metronome  |  [yellow]+/-[white] BPM  |  [yellow]b[white] Preset  |  [yellow][ ][white] Volume  |  [yellow]s[white] Sound  |  [yellow]m[white] Mute\n" +
		"[yellow]←/→[white] Length  |  [yellow]d[white] Preset  |  [yellow]w[white] Start  |  [yellow]p[white] Pause  |  [yellow]x[white] Stop  |  [yellow]X[white] Discard  |  [yellow]c[white] Check in\n" +
		modeMenu())

	ui.metronomePanel = newPanel("Metronome")
	ui.beatPanel = newPanel("Beat")
	ui.workoutPanel = newPanel("Workout")
	ui.UpdateMetronome(metronome.State{})
	ui.UpdateWorkout(workout.LiveMetrics{}, workout.DefaultMinutes)

	ui.dashboardTabWidgets = append(ui.dashboardTabWidgets, ui.metronomePanel.Box, ui.workoutPanel.Box)

	leftColumn := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(ui.metronomePanel, 0, 2, true).
		AddItem(ui.beatPanel, 5, 0, false)

	body := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(leftColumn, 0, 1, true).
		AddItem(ui.workoutPanel, 0, 1, false)

	ui.dashboardFlex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(instructions, 3, 0, false).
		AddItem(body, 0, 1, true)
}

func (ui *CursesUIViewImpl) initStatsMode() {
	ui.summaryPanel = newPanel("Totals")
	ui.recordsTable = tview.NewTable().
		SetBorders(false).
		SetFixed(1, 0).
		SetSelectable(true, false)
	ui.recordsTable.SetBorder(true).SetTitle(" Recent Sessions ")
	ui.UpdateStats(StatsView{})

	ui.statsTabWidgets = append(ui.statsTabWidgets, ui.recordsTable.Box, ui.summaryPanel.Box)

	menu := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText(modeMenu())

	body := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(ui.summaryPanel, 0, 1, false).
		AddItem(ui.recordsTable, 0, 2, true)

	ui.statsFlex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(menu, 1, 0, false).
		AddItem(body, 0, 1, true)
}

func (ui *CursesUIViewImpl) initCheckinMode() {
	ui.calendarPanel = newPanel("Calendar")
	ui.monthPanel = newPanel("This Month")
	ui.UpdateCheckin(CheckinView{})

	ui.checkinTabWidgets = append(ui.checkinTabWidgets, ui.calendarPanel.Box, ui.monthPanel.Box)

	instructions := tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	instructions.SetText("[yellow]←/→[white] Month  |  [yellow]c[white] Quick check-in  |  [yellow]e g n t h[white] Check in as excellent, good, normal, tired or hard\n" + modeMenu())

	body := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(ui.calendarPanel, 0, 3, true).
		AddItem(ui.monthPanel, 0, 2, false)

	ui.checkinFlex = tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(instructions, 2, 0, false).
		AddItem(body, 0, 1, true)
}

// SetMode switches the UI to the specified mode
func (ui *CursesUIViewImpl) SetMode(mode UIMode) {
	if ui.currentMode == mode {
		return
	}

	ui.currentMode = mode

	switch mode {
	case UIModeDashboard:
		ui.pages.SwitchToPage(pageDashboard)
	case UIModeStats:
		ui.pages.SwitchToPage(pageStats)
	case UIModeCheckin:
		ui.pages.SwitchToPage(pageCheckin)
	}

	ui.setFocusForCurrentMode()
	ui.app.Draw()
}

// GetCurrentMode returns the currently active UI mode
func (ui *CursesUIViewImpl) GetCurrentMode() UIMode {
	return ui.currentMode
}

// setFocusForCurrentMode sets focus to the first widget in the current mode
func (ui *CursesUIViewImpl) setFocusForCurrentMode() {
	if widgets := ui.getTabWidgetsForCurrentMode(); len(widgets) > 0 {
		ui.app.SetFocus(widgets[0])
	}
}

// getTabWidgetsForCurrentMode returns the tab widgets for the current mode
func (ui *CursesUIViewImpl) getTabWidgetsForCurrentMode() []*tview.Box {
	switch ui.currentMode {
	case UIModeDashboard:
		return ui.dashboardTabWidgets
	case UIModeStats:
		return ui.statsTabWidgets
	case UIModeCheckin:
		return ui.checkinTabWidgets
	default:
		return nil
	}
}

var feelingKeys = map[rune]checkin.Feeling{
	'e': checkin.FeelingExcellent,
	'g': checkin.FeelingGood,
	'n': checkin.FeelingNormal,
	't': checkin.FeelingTired,
	'h': checkin.FeelingHard,
}

// SetupKeyboardHandlers sets up keyboard event handlers
func (ui *CursesUIViewImpl) SetupKeyboardHandlers(controller *UIController) {
	ui.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyRune {
			if mode, ok := GetUIModeByKey(event.Rune()); ok {
				// Delegate to controller - it will update the model, which will notify us
				controller.OnModeChange(mode)
				return nil
			}
		}

		// Tab to switch focus between widgets in current mode
		if event.Key() == tcell.KeyTab {
			widgets := ui.getTabWidgetsForCurrentMode()
			widgetCount := len(widgets)
			if widgetCount > 0 {
				for i := 0; i < widgetCount+1; i++ {
					idx := i % widgetCount
					if widgets[idx].HasFocus() {
						nextIdx := (idx + 1) % widgetCount
						ui.app.SetFocus(widgets[nextIdx])
						break
					}
				}
			}
			return nil
		}

		// Escape to quit
		if event.Key() == tcell.KeyEscape {
			controller.OnEscapeKey()
			return nil
		}

		switch ui.currentMode {
		case UIModeDashboard:
			if ui.handleDashboardKey(controller, event) {
				return nil
			}
		case UIModeCheckin:
			if ui.handleCheckinKey(controller, event) {
				return nil
			}
		}

		return event
	})
}

func (ui *CursesUIViewImpl) handleDashboardKey(controller *UIController, event *tcell.EventKey) bool {
	switch event.Key() {
	case tcell.KeyUp:
		controller.AdjustBPM(metronome.BPMAdjustStep)
		return true
	case tcell.KeyDown:
		controller.AdjustBPM(-metronome.BPMAdjustStep)
		return true
	case tcell.KeyRight:
		controller.AdjustWorkoutMinutes(WorkoutMinutesStep)
		return true
	case tcell.KeyLeft:
		controller.AdjustWorkoutMinutes(-WorkoutMinutesStep)
		return true
	case tcell.KeyRune:
	default:
		return false
	}

	switch event.Rune() {
	case ' ':
		controller.ToggleMetronome()
	case '+', '=':
		controller.AdjustBPM(metronome.BPMAdjustStep)
	case '-':
		controller.AdjustBPM(-metronome.BPMAdjustStep)
	case 'b':
		controller.CycleBPMPreset()
	case ']':
		controller.AdjustVolume(metronome.VolumeStepSize)
	case '[':
		controller.AdjustVolume(-metronome.VolumeStepSize)
	case 's':
		controller.CycleSound()
	case 'm':
		controller.ToggleSoundEnabled()
	case 'd':
		controller.CycleWorkoutPreset()
	case 'w':
		controller.StartDefaultWorkout()
	case 'p':
		controller.PauseResumeWorkout()
	case 'x':
		controller.StopWorkout(true)
	case 'X':
		controller.StopWorkout(false)
	case 'c':
		controller.QuickCheckIn()
	default:
		return false
	}
	return true
}

func (ui *CursesUIViewImpl) handleCheckinKey(controller *UIController, event *tcell.EventKey) bool {
	switch event.Key() {
	case tcell.KeyLeft:
		controller.ShiftCheckinMonth(-1)
		return true
	case tcell.KeyRight:
		controller.ShiftCheckinMonth(1)
		return true
	case tcell.KeyRune:
	default:
		return false
	}

	if event.Rune() == 'c' {
		controller.QuickCheckIn()
		return true
	}
	if feeling, ok := feelingKeys[event.Rune()]; ok {
		controller.CheckIn(feeling)
		return true
	}
	return false
}

// GetLogViewHeight returns the visible height of the log view
func (ui *CursesUIViewImpl) GetLogViewHeight() int {
	_, _, _, height := ui.logView.GetInnerRect()
	return height
}

// ClearLogView clears the log view
func (ui *CursesUIViewImpl) ClearLogView() {
	ui.logView.Clear()
}

// WriteLogLine writes a line to the log view
func (ui *CursesUIViewImpl) WriteLogLine(line string) error {
	_, err := fmt.Fprint(ui.logView, tview.Escape(line))
	return err
}

func (ui *CursesUIViewImpl) SetStatus(message string) {
	if message == "" {
		ui.statusView.SetText("")
		return
	}
	ui.statusView.SetText(" [yellow]»[white] " + tview.Escape(message))
}

// Draw refreshes/redraws the UI
func (ui *CursesUIViewImpl) Draw() error {
	ui.app.Draw()
	return nil
}

// Run starts the UI and blocks until it exits
func (ui *CursesUIViewImpl) Run() error {
	// SetRoot must be called before setting focus, otherwise focus may be reset
	ui.app.SetRoot(ui.mainFlex, true)
	ui.setFocusForCurrentMode()
	return ui.app.Run()
}

// Stop stops the UI framework
func (ui *CursesUIViewImpl) Stop() {
	ui.app.Stop()
}

// UpdateMetronome updates the metronome panel
func (ui *CursesUIViewImpl) UpdateMetronome(state metronome.State) {
	if ui.metronomePanel == nil {
		return
	}
	if state.BPM == 0 {
		ui.metronomePanel.SetText("\n  [gray]Loading...[white]")
		return
	}

	text := "\n"
	if state.Running {
		text += "  [green]●[white] Running\n\n"
	} else {
		text += "  [gray]○ Stopped[white]\n\n"
	}
	text += fmt.Sprintf("  Cadence:  [yellow]%d[white] BPM [gray](%s)[white]\n", state.BPM, metronome.IntensityLabel(state.BPM))
	text += fmt.Sprintf("  Volume:   [yellow]%.0f%%[white]\n", state.Volume*100)
	text += fmt.Sprintf("  Sound:    [yellow]%s[white]\n", state.Sound)
	if state.Running {
		text += fmt.Sprintf("  Beats:    %d\n", state.Beats)
	}
	ui.metronomePanel.SetText(text)

	if !state.Running {
		ui.beatPanel.SetText("")
	}
}

// UpdateBeat swings the indicator to alternate sides on each beat
func (ui *CursesUIViewImpl) UpdateBeat(beat metronome.Beat) {
	if ui.beatPanel == nil || beat.Index == 0 {
		return
	}
	if beat.Index%2 == 1 {
		ui.beatPanel.SetText("\n  [cyan]●[white]            ○")
	} else {
		ui.beatPanel.SetText("\n  ○            [cyan]●[white]")
	}
}

// UpdateWorkout updates the workout panel
func (ui *CursesUIViewImpl) UpdateWorkout(metrics workout.LiveMetrics, minutes int) {
	if ui.workoutPanel == nil {
		return
	}

	var text string
	switch metrics.Status {
	case workout.StatusRunning, workout.StatusPaused:
		text = "\n"
		if metrics.Status == workout.StatusPaused {
			text += "  [yellow]Workout[white] [gray](PAUSED)[white]\n\n"
		} else {
			text += "  [yellow]Workout[white]\n\n"
		}
		text += fmt.Sprintf("  [gray]Elapsed:[white]   %s\n", formatDurationMMSS(metrics.ElapsedSeconds))
		text += fmt.Sprintf("  [gray]Remaining:[white] %s\n\n", formatDurationMMSS(metrics.RemainingSeconds))
		text += fmt.Sprintf("  [green]%s[white] %.0f%%\n\n", progressBar(metrics.Progress, progressBarWidth), metrics.Progress*100)
		text += fmt.Sprintf("  Steps:     [yellow]%d[white]\n", metrics.Steps)
		text += fmt.Sprintf("  Calories:  [yellow]%.0f[white] kcal\n", metrics.Calories)
		text += fmt.Sprintf("  Cadence:   [yellow]%d[white] BPM\n", metrics.BPM)

		text += "\n  [gray]─────────────────────────[white]\n"
		if metrics.Status == workout.StatusPaused {
			text += "  [yellow]p[white] Resume  |  [yellow]x[white] Stop & save  |  [yellow]X[white] Discard\n"
		} else {
			text += "  [yellow]p[white] Pause  |  [yellow]x[white] Stop & save  |  [yellow]X[white] Discard\n"
		}
	default:
		text = "\n  [gray]No workout running[white]\n\n"
		text += fmt.Sprintf("  Planned length: [yellow]%s[white]\n\n", formatMinutes(minutes))
		text += "  [gray]Press[white] [yellow]w[white] [gray]to start, the metronome starts with it[white]\n"
	}

	ui.workoutPanel.SetText(text)
}

// UpdateStats updates the totals panel and the recent sessions table
func (ui *CursesUIViewImpl) UpdateStats(view StatsView) {
	if ui.summaryPanel == nil {
		return
	}

	agg := view.Aggregate
	text := "\n"
	text += fmt.Sprintf("  Today:        [yellow]%s[white]\n\n", formatDurationMMSS(view.TodaySeconds))
	text += fmt.Sprintf("  Sessions:     [yellow]%d[white]\n", agg.TotalSessions)
	text += fmt.Sprintf("  Total time:   [yellow]%s[white]\n", formatMinutes(agg.TotalMinutes()))
	text += fmt.Sprintf("  Total steps:  [yellow]%d[white]\n", agg.TotalSteps)
	text += fmt.Sprintf("  Calories:     [yellow]%.0f[white] kcal\n", agg.TotalCalories)
	if agg.TotalSessions > 0 {
		text += fmt.Sprintf("  Average BPM:  [yellow]%d[white]\n", agg.AverageBPM)
	}
	ui.summaryPanel.SetText(text)

	ui.recordsTable.Clear()
	for col, header := range []string{"Date", "Time", "BPM", "Steps", "kcal", ""} {
		ui.recordsTable.SetCell(0, col, tview.NewTableCell(header).
			SetTextColor(tcell.ColorYellow).
			SetSelectable(false))
	}
	if len(view.Records) == 0 {
		ui.recordsTable.SetCell(1, 0, tview.NewTableCell("No sessions yet").SetTextColor(tcell.ColorGray))
		return
	}
	for i, record := range view.Records {
		row := i + 1
		mark := ""
		if !record.Completed {
			mark = "stopped"
		}
		ui.recordsTable.SetCell(row, 0, tview.NewTableCell(record.Date.Local().Format("2006-01-02 15:04")))
		ui.recordsTable.SetCell(row, 1, tview.NewTableCell(formatDurationMMSS(record.DurationSeconds)).SetAlign(tview.AlignRight))
		ui.recordsTable.SetCell(row, 2, tview.NewTableCell(fmt.Sprint(record.BPM)).SetAlign(tview.AlignRight))
		ui.recordsTable.SetCell(row, 3, tview.NewTableCell(fmt.Sprint(record.Steps)).SetAlign(tview.AlignRight))
		ui.recordsTable.SetCell(row, 4, tview.NewTableCell(fmt.Sprintf("%.0f", record.Calories)).SetAlign(tview.AlignRight))
		ui.recordsTable.SetCell(row, 5, tview.NewTableCell(mark).SetTextColor(tcell.ColorGray))
	}
}

// UpdateCheckin redraws the month calendar and its totals
func (ui *CursesUIViewImpl) UpdateCheckin(view CheckinView) {
	if ui.calendarPanel == nil {
		return
	}
	if view.Year == 0 {
		ui.calendarPanel.SetText("\n  [gray]Loading...[white]")
		ui.monthPanel.SetText("")
		return
	}

	ui.calendarPanel.SetTitle(fmt.Sprintf(" %s %d ", view.Month, view.Year))
	ui.calendarPanel.SetText(renderCalendar(view.Days, view.TodayDate))

	text := "\n"
	text += fmt.Sprintf("  Streak:       [yellow]%d[white] days\n", view.Stats.CurrentStreak)
	text += fmt.Sprintf("  This month:   [yellow]%d[white] runs\n", view.Stats.MonthTotal)
	text += fmt.Sprintf("  Minutes:      [yellow]%d[white]\n", view.Stats.TotalMinutes)
	text += fmt.Sprintf("  All time:     [yellow]%d[white] days\n\n", view.Stats.TotalDays)
	if view.Today != nil {
		text += fmt.Sprintf("  Today: %s, %s\n", formatMinutes(view.Today.Duration), feelingLabel(view.Today.Feeling))
		if view.Today.Notes != "" {
			text += "  [gray]" + tview.Escape(view.Today.Notes) + "[white]\n"
		}
	} else {
		text += "  [gray]Not checked in today[white]\n"
	}
	ui.monthPanel.SetText(text)
}

// renderCalendar lays the days out in Sunday-first weeks. Checked-in days are green,
// today is highlighted when it has no check-in yet.
func renderCalendar(days []checkin.Day, today string) string {
	var b strings.Builder
	b.WriteString("\n  [gray]Su  Mo  Tu  We  Th  Fr  Sa[white]\n  ")
	if len(days) == 0 {
		return b.String()
	}
	offset := int(days[0].Date.Weekday())
	b.WriteString(strings.Repeat("    ", offset))
	for i, day := range days {
		cell := fmt.Sprintf("%2d", day.Date.Day())
		switch {
		case day.Record != nil:
			cell = "[green]" + cell + "[white]"
		case day.Date.Format(time.DateOnly) == today:
			cell = "[yellow]" + cell + "[white]"
		}
		b.WriteString(cell)
		if (offset+i+1)%7 == 0 {
			b.WriteString("\n  ")
		} else {
			b.WriteString("  ")
		}
	}
	return b.String()
}
