package trainer

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/lowaak/slowrun-trainer/internal/go_func_utils"
)

// BaseUIView contains the base logic shared by all UI implementations
type BaseUIView struct {
	uiViewImpl   UIViewImpl
	uiModel      *UIModel
	uiController *UIController
	context      context.Context
	cancelFunc   context.CancelFunc
	waitGroup    sync.WaitGroup
	logger       *log.Logger
}

// NewBaseUIViewArg holds the arguments for creating a new BaseUIView
type NewBaseUIViewArg struct {
	UIViewImpl   UIViewImpl
	UIModel      *UIModel
	UIController *UIController
	Logger       *log.Logger
}

// NewBaseUIView creates a new BaseUIView with the given implementation
func NewBaseUIView(args NewBaseUIViewArg) *BaseUIView {
	if args.Logger == nil {
		panic("BaseUIView: logger cannot be nil")
	}
	if args.UIViewImpl == nil {
		panic("BaseUIView: UIViewImpl cannot be nil")
	}
	if args.UIModel == nil {
		panic("BaseUIView: UIModel cannot be nil")
	}
	if args.UIController == nil {
		panic("BaseUIView: UIController cannot be nil")
	}
	ctx, cancel := context.WithCancel(context.Background())

	base := &BaseUIView{
		uiViewImpl:   args.UIViewImpl,
		uiModel:      args.UIModel,
		uiController: args.UIController,
		context:      ctx,
		cancelFunc:   cancel,
		logger:       args.Logger,
	}

	// Initialize framework-specific widgets
	args.UIViewImpl.Initialize(args.UIController)

	// Set up keyboard handlers
	args.UIViewImpl.SetupKeyboardHandlers(args.UIController)

	// Set initial mode and contents from model
	args.UIViewImpl.SetMode(args.UIModel.GetUIState().Mode)
	base.renderDashboard()
	args.UIViewImpl.UpdateStats(args.UIModel.GetStats())
	args.UIViewImpl.UpdateCheckin(args.UIModel.GetCheckin())

	// Set up periodic resize check and initial display
	base.waitGroup.Add(1)
	go_func_utils.SafeGo(base.logger, func() { base.monitorLogResize() })
	base.updateLogDisplay()

	base.setupEventListeners()

	return base
}

// watch runs onSignal for every value delivered to a buffer-1 listener channel
// until the view shuts down. Handlers re-read the model, so a dropped value
// only skips an intermediate frame.
func watch[T any](base *BaseUIView, register func(chan<- T) func(), onSignal func()) {
	ch := make(chan T, 1)
	unregister := register(ch)
	base.waitGroup.Add(1)
	go_func_utils.SafeGo(base.logger, func() {
		defer base.waitGroup.Done()
		defer unregister()
		for {
			select {
			case <-base.context.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				onSignal()
			}
		}
	})
}

func (base *BaseUIView) setupEventListeners() {
	model := base.uiModel

	// When a new log arrives, update the display to show the tail
	watch(base, model.ListenToLog, func() {
		base.updateLogDisplay()
		base.draw()
	})

	// Listen to close application event from model
	closeChan := make(chan struct{}, 1)
	closeUnregister := model.ListenToCloseApplication(closeChan)
	base.waitGroup.Add(1)
	go_func_utils.SafeGo(base.logger, func() {
		defer base.waitGroup.Done()
		defer closeUnregister()
		select {
		case <-base.context.Done():
			return
		case _, ok := <-closeChan:
			if !ok {
				return
			}
			// Stop the UI implementation
			base.uiViewImpl.Stop()
		}
	})

	watch(base, model.ListenToUIState, func() {
		base.uiViewImpl.SetMode(model.GetUIState().Mode)
		base.renderDashboard()
		base.draw()
	})
	watch(base, model.ListenToMetronomeState, func() {
		base.uiViewImpl.UpdateMetronome(model.GetMetronomeState())
		base.draw()
	})
	watch(base, model.ListenToBeat, func() {
		base.uiViewImpl.UpdateBeat(model.GetLastBeat())
		base.draw()
	})
	watch(base, model.ListenToMetrics, func() {
		base.renderDashboard()
		base.draw()
	})
	watch(base, model.ListenToStats, func() {
		base.uiViewImpl.UpdateStats(model.GetStats())
		base.draw()
	})
	watch(base, model.ListenToCheckin, func() {
		base.uiViewImpl.UpdateCheckin(model.GetCheckin())
		base.draw()
	})
	watch(base, model.ListenToStatus, func() {
		base.uiViewImpl.SetStatus(model.GetStatus())
		base.draw()
	})
}

func (base *BaseUIView) renderDashboard() {
	base.uiViewImpl.UpdateMetronome(base.uiModel.GetMetronomeState())
	base.uiViewImpl.UpdateWorkout(base.uiModel.GetMetrics(), base.uiModel.GetUIState().WorkoutMinutes)
}

func (base *BaseUIView) draw() {
	if err := base.uiViewImpl.Draw(); err != nil {
		base.logger.Printf("BaseUIView: Error drawing: %v", err)
	}
}

func (base *BaseUIView) updateLogDisplay() {
	// Get the visible height of the log view
	height := base.uiViewImpl.GetLogViewHeight()
	if height <= 0 {
		return
	}

	// Get the tail of logs that fit in the visible area
	logLines := base.uiModel.GetLogTail(height)

	// Clear and update the log view
	base.uiViewImpl.ClearLogView()
	for _, line := range logLines {
		if err := base.uiViewImpl.WriteLogLine(line); err != nil {
			base.logger.Printf("BaseUIView: Error writing to log view: %v", err)
		}
	}
}

func (base *BaseUIView) monitorLogResize() {
	defer base.waitGroup.Done()
	var lastHeight int
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-base.context.Done():
			return
		case <-ticker.C:
			height := base.uiViewImpl.GetLogViewHeight()
			if height != lastHeight && height > 0 {
				lastHeight = height
				base.updateLogDisplay()
				base.draw()
			}
		}
	}
}

// Shutdown stops all goroutines and waits for them to finish
func (base *BaseUIView) Shutdown() {
	base.logger.Println("BaseUIView: Shutting down")
	base.cancelFunc()
	base.waitGroup.Wait()
	base.logger.Println("BaseUIView: Shutdown complete")
}

// Run starts the UI and blocks until it exits
func (base *BaseUIView) Run() error {
	return base.uiViewImpl.Run()
}
