// Package main provides the slowrun CLI: the terminal dashboard plus commands
// for stats, export and import, check-ins, calories, training plans and the
// user profile.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/jonboulle/clockwork"
	"github.com/rivo/tview"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/lowaak/slowrun-trainer/internal/audio"
	"github.com/lowaak/slowrun-trainer/internal/clock"
	"github.com/lowaak/slowrun-trainer/internal/config"
	"github.com/lowaak/slowrun-trainer/internal/kvstore"
	"github.com/lowaak/slowrun-trainer/internal/trainer"
)

var version = "dev"

const uiLogBuffer = 256

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "slowrun",
		Short:        "Cadence metronome and workout trainer for super-slow running",
		Version:      version,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE:         runDashboardCmd,
	}
	config.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newStatsCmd())
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(newImportCmd())
	rootCmd.AddCommand(newCheckinCmd())
	rootCmd.AddCommand(newCaloriesCmd())
	rootCmd.AddCommand(newPlanCmd())
	rootCmd.AddCommand(newSettingsCmd())

	return rootCmd
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Open the metronome and workout dashboard",
		Args:  cobra.NoArgs,
		RunE:  runDashboardCmd,
	}
}

// environment is what every command needs: the resolved config, a logger
// writing to the rotated log file and the opened store
type environment struct {
	cfg    config.Config
	kv     kvstore.Store
	logger *log.Logger
	logOut *lumberjack.Logger
}

// setup loads the config, opens the log and the store. extra receives a copy
// of every log line.
func setup(cmd *cobra.Command, extra ...io.Writer) (*environment, error) {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return nil, err
	}
	logOut := &lumberjack.Logger{
		Filename:   cfg.Log.File,
		MaxSize:    cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
	}
	writers := append([]io.Writer{logOut}, extra...)
	logger := log.New(io.MultiWriter(writers...), "", log.LstdFlags)

	kv, err := kvstore.Open(cfg.Storage, cfg.DataDir)
	if err != nil {
		_ = logOut.Close()
		return nil, fmt.Errorf("failed to open %s storage: %w", cfg.Storage, err)
	}
	if cfg.ConfigFile != "" {
		logger.Printf("Config: using %s", cfg.ConfigFile)
	}
	return &environment{cfg: cfg, kv: kv, logger: logger, logOut: logOut}, nil
}

func (e *environment) Close() {
	if err := e.kv.Close(); err != nil {
		e.logger.Printf("Storage: close failed: %v", err)
	}
	if err := e.logOut.Close(); err != nil {
		logErrf("failed to close log: %v\n", err)
	}
}

// newSink builds the configured audio backend. The returned close func is never nil.
func newSink(cfg config.AudioConfig, beeper audio.Beeper) (audio.Sink, func() error) {
	switch cfg.Backend {
	case config.AudioBell:
		return audio.NewBellSink(beeper), func() error { return nil }
	case config.AudioPCM:
		sink := audio.NewPCMSink(cfg.SampleRate, func() (io.WriteCloser, error) {
			return os.OpenFile(cfg.PCMFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		})
		return sink, sink.Close
	default:
		return nil, func() error { return nil }
	}
}

func runDashboardCmd(cmd *cobra.Command, _ []string) error {
	uiLog := trainer.NewUILogWriter(uiLogBuffer)
	env, err := setup(cmd, uiLog)
	if err != nil {
		return err
	}
	defer env.Close()
	logger := env.logger
	logger.Printf("slowrun %s starting", version)

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	sink, closeSink := newSink(env.cfg.Audio, screen)
	defer func() {
		if err := closeSink(); err != nil {
			logger.Printf("Audio: close failed: %v", err)
		}
	}()

	scheduler := clock.NewTickerScheduler(clockwork.NewRealClock(), logger)
	app, err := trainer.NewApp(trainer.AppArgs{
		Config:     env.cfg,
		KV:         env.kv,
		Scheduler:  scheduler,
		Sink:       sink,
		AppVersion: version,
		Location:   time.Local,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	app.Load(cmd.Context())

	model := trainer.NewUIModel(env.kv, logger, uiLog.Lines())
	controller := trainer.NewUIController(model, app, logger)
	tviewApp := tview.NewApplication().SetScreen(screen)
	view := trainer.NewBaseUIView(trainer.NewBaseUIViewArg{
		UIViewImpl:   trainer.NewCursesUIView(logger, tviewApp, model),
		UIModel:      model,
		UIController: controller,
		Logger:       logger,
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Leaving the UI ends the run
		defer stop()
		if err := view.Run(); err != nil {
			return fmt.Errorf("failed to run TUI: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		model.RequestCloseApplication()
		return nil
	})
	runErr := g.Wait()
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		logger.Printf("slowrun: %v", runErr)
	}

	view.Shutdown()
	controller.Shutdown()
	model.Shutdown()
	if dropped := uiLog.Dropped(); dropped > 0 {
		logger.Printf("slowrun: %d log lines did not reach the log pane", dropped)
	}
	logger.Println("slowrun: bye")
	return runErr
}

func logErrf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format, args...)
}
