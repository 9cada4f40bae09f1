package trainer

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/lowaak/slowrun-trainer/internal/checkin"
	"github.com/lowaak/slowrun-trainer/internal/events"
	"github.com/lowaak/slowrun-trainer/internal/go_func_utils"
	"github.com/lowaak/slowrun-trainer/internal/kvstore"
	"github.com/lowaak/slowrun-trainer/internal/metronome"
	"github.com/lowaak/slowrun-trainer/internal/stats"
	"github.com/lowaak/slowrun-trainer/internal/workout"
)

// UIState holds the current state of the UI that views need to render
type UIState struct {
	Mode           UIMode
	WorkoutMinutes int
}

// StatsView is what the Stats mode renders
type StatsView struct {
	Aggregate    stats.Aggregate
	Records      []stats.SessionSummary
	TodaySeconds int
}

// CheckinView is what the Check-in mode renders
type CheckinView struct {
	Year  int
	Month time.Month
	Days  []checkin.Day
	Stats checkin.MonthStats
	Today *checkin.Record

	// TodayDate is today's calendar key, YYYY-MM-DD
	TodayDate string
}

type UIModel struct {
	logEvent              *events.ChannelEvent[string]
	closeApplicationEvent *events.ChannelEvent[struct{}]
	uiStateEvent          *events.ChannelEvent[UIState]
	uiState               UIState
	metronomeEvent        *events.ChannelEvent[metronome.State]
	metronomeState        metronome.State
	beatEvent             *events.ChannelEvent[metronome.Beat]
	lastBeat              metronome.Beat
	metricsEvent          *events.ChannelEvent[workout.LiveMetrics]
	metrics               workout.LiveMetrics
	statsEvent            *events.ChannelEvent[StatsView]
	statsView             StatsView
	checkinEvent          *events.ChannelEvent[CheckinView]
	checkinView           CheckinView
	statusEvent           *events.ChannelEvent[string]
	status                string
	lastSummary           *stats.SessionSummary
	persistence           *uiModelPersistence
	logLines              []string
	logMu                 sync.RWMutex
	mu                    sync.RWMutex
	ctx                   context.Context
	cancel                context.CancelFunc
	wg                    sync.WaitGroup
	logger                *log.Logger
}

const maxLogLines = 1000

func NewUIModel(kv kvstore.Store, logger *log.Logger, uiLogChan <-chan string) *UIModel {
	if kv == nil {
		panic("UIModel: kv cannot be nil")
	}
	if logger == nil {
		panic("UIModel: logger cannot be nil")
	}
	if uiLogChan == nil {
		panic("UIModel: uiLogChan cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())
	model := &UIModel{
		logEvent:              events.NewChannelEvent[string](false),
		closeApplicationEvent: events.NewChannelEvent[struct{}](true),
		uiStateEvent:          events.NewChannelEvent[UIState](true),
		uiState:               UIState{Mode: UIModeDashboard, WorkoutMinutes: workout.DefaultMinutes},
		metronomeEvent:        events.NewChannelEvent[metronome.State](true),
		beatEvent:             events.NewChannelEvent[metronome.Beat](false),
		metricsEvent:          events.NewChannelEvent[workout.LiveMetrics](true),
		statsEvent:            events.NewChannelEvent[StatsView](true),
		checkinEvent:          events.NewChannelEvent[CheckinView](true),
		statusEvent:           events.NewChannelEvent[string](true),
		persistence:           newUIModelPersistence(kv, logger),
		logLines:              make([]string, 0, maxLogLines),
		ctx:                   ctx,
		cancel:                cancel,
		logger:                logger,
	}
	if mode, ok := model.persistence.getMode(); ok {
		model.uiState.Mode = mode
	}

	// Read from the UI log channel and populate logLines
	model.wg.Add(1)
	go_func_utils.SafeGo(model.logger, func() { model.readFromLogChannel(ctx, uiLogChan) })

	return model
}

// Shutdown stops all goroutines and waits for them to finish
func (m *UIModel) Shutdown() {
	m.logger.Println("UIModel: Shutting down")
	m.cancel()
	m.wg.Wait()
	m.logger.Println("UIModel: Shutdown complete")
}

// ListenToLog registers a channel to receive log messages
// Returns a deregistration function that can be called to remove the listener
func (m *UIModel) ListenToLog(ch chan<- string) func() {
	return m.logEvent.Listen(ch)
}

// ListenToCloseApplication registers a channel to receive close application signals
// Returns a deregistration function that can be called to remove the listener
func (m *UIModel) ListenToCloseApplication(ch chan<- struct{}) func() {
	return m.closeApplicationEvent.Listen(ch)
}

// RequestCloseApplication signals that the application should close
func (m *UIModel) RequestCloseApplication() {
	m.closeApplicationEvent.Notify(struct{}{})
}

// ListenToUIState registers a channel to receive UI state changes
// Returns a deregistration function that can be called to remove the listener
func (m *UIModel) ListenToUIState(ch chan<- UIState) func() {
	return m.uiStateEvent.Listen(ch)
}

// GetUIState returns the current UI state
func (m *UIModel) GetUIState() UIState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.uiState
}

// SetMode updates the current UI mode, remembers it for the next start and notifies listeners
func (m *UIModel) SetMode(mode UIMode) {
	m.mu.Lock()
	if m.uiState.Mode == mode {
		m.mu.Unlock()
		return
	}
	m.uiState.Mode = mode
	state := m.uiState
	m.mu.Unlock()

	m.persistence.setMode(mode)
	m.uiStateEvent.Notify(state)
}

// SetWorkoutMinutes updates the planned workout length shown on the dashboard
func (m *UIModel) SetWorkoutMinutes(minutes int) {
	m.mu.Lock()
	if m.uiState.WorkoutMinutes == minutes {
		m.mu.Unlock()
		return
	}
	m.uiState.WorkoutMinutes = minutes
	state := m.uiState
	m.mu.Unlock()

	m.uiStateEvent.Notify(state)
}

// ListenToMetronomeState registers a channel to receive metronome state changes
// Returns a deregistration function that can be called to remove the listener
func (m *UIModel) ListenToMetronomeState(ch chan<- metronome.State) func() {
	return m.metronomeEvent.Listen(ch)
}

func (m *UIModel) GetMetronomeState() metronome.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metronomeState
}

func (m *UIModel) SetMetronomeState(state metronome.State) {
	m.mu.Lock()
	m.metronomeState = state
	m.mu.Unlock()

	m.metronomeEvent.Notify(state)
}

// ListenToBeat registers a channel to receive one value per metronome beat
// Returns a deregistration function that can be called to remove the listener
func (m *UIModel) ListenToBeat(ch chan<- metronome.Beat) func() {
	return m.beatEvent.Listen(ch)
}

func (m *UIModel) GetLastBeat() metronome.Beat {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastBeat
}

func (m *UIModel) SetBeat(beat metronome.Beat) {
	m.mu.Lock()
	m.lastBeat = beat
	m.mu.Unlock()

	m.beatEvent.Notify(beat)
}

// ListenToMetrics registers a channel to receive live workout metrics
// Returns a deregistration function that can be called to remove the listener
func (m *UIModel) ListenToMetrics(ch chan<- workout.LiveMetrics) func() {
	return m.metricsEvent.Listen(ch)
}

func (m *UIModel) GetMetrics() workout.LiveMetrics {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.metrics
}

func (m *UIModel) SetMetrics(metrics workout.LiveMetrics) {
	m.mu.Lock()
	m.metrics = metrics
	m.mu.Unlock()

	m.metricsEvent.Notify(metrics)
}

// ListenToStats registers a channel to receive stats changes
// Returns a deregistration function that can be called to remove the listener
func (m *UIModel) ListenToStats(ch chan<- StatsView) func() {
	return m.statsEvent.Listen(ch)
}

// GetStats returns the current stats view; Records is a copy
func (m *UIModel) GetStats() StatsView {
	m.mu.RLock()
	defer m.mu.RUnlock()
	view := m.statsView
	view.Records = append([]stats.SessionSummary(nil), m.statsView.Records...)
	return view
}

func (m *UIModel) SetStats(view StatsView) {
	m.mu.Lock()
	m.statsView = view
	m.mu.Unlock()

	m.statsEvent.Notify(view)
}

// ListenToCheckin registers a channel to receive check-in calendar changes
// Returns a deregistration function that can be called to remove the listener
func (m *UIModel) ListenToCheckin(ch chan<- CheckinView) func() {
	return m.checkinEvent.Listen(ch)
}

func (m *UIModel) GetCheckin() CheckinView {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkinView
}

func (m *UIModel) SetCheckin(view CheckinView) {
	m.mu.Lock()
	m.checkinView = view
	m.mu.Unlock()

	m.checkinEvent.Notify(view)
}

// ListenToStatus registers a channel to receive the one-line status message
// Returns a deregistration function that can be called to remove the listener
func (m *UIModel) ListenToStatus(ch chan<- string) func() {
	return m.statusEvent.Listen(ch)
}

func (m *UIModel) GetStatus() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// SetStatus shows a short message to the user, such as a validation failure
func (m *UIModel) SetStatus(message string) {
	m.mu.Lock()
	m.status = message
	m.mu.Unlock()

	m.statusEvent.Notify(message)
}

// GetLastSummary returns the most recently finished session, if any
func (m *UIModel) GetLastSummary() (stats.SessionSummary, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.lastSummary == nil {
		return stats.SessionSummary{}, false
	}
	return *m.lastSummary, true
}

func (m *UIModel) SetLastSummary(summary stats.SessionSummary) {
	m.mu.Lock()
	m.lastSummary = &summary
	m.mu.Unlock()
}

// readFromLogChannel reads log lines from the channel and populates logLines
func (m *UIModel) readFromLogChannel(ctx context.Context, logChan <-chan string) {
	defer m.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-logChan:
			if !ok {
				return
			}

			m.logMu.Lock()
			m.logLines = append(m.logLines, line)
			if len(m.logLines) > maxLogLines {
				m.logLines = m.logLines[len(m.logLines)-maxLogLines:]
			}
			m.logMu.Unlock()

			m.logEvent.Notify(line)
		}
	}
}

// GetLogTail returns the last n lines of logs
func (m *UIModel) GetLogTail(n int) []string {
	m.logMu.RLock()
	defer m.logMu.RUnlock()

	if n <= 0 {
		return []string{}
	}

	if n >= len(m.logLines) {
		result := make([]string, len(m.logLines))
		copy(result, m.logLines)
		return result
	}

	result := make([]string, n)
	copy(result, m.logLines[len(m.logLines)-n:])
	return result
}
