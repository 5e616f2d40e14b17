package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/npratt/fingerlock/internal/config"
	"github.com/npratt/fingerlock/internal/controller"
	"github.com/npratt/fingerlock/internal/daemon"
	"github.com/npratt/fingerlock/internal/events"
	"github.com/npratt/fingerlock/internal/metrics"
	"github.com/npratt/fingerlock/internal/pinentry"
	"github.com/npratt/fingerlock/internal/sensor"
	"github.com/npratt/fingerlock/internal/shutdown"
	"github.com/npratt/fingerlock/internal/tui"
	"github.com/npratt/fingerlock/internal/worker"
)

// errRejected is returned when the workflow ends without acceptance. main
// exits 2 for it instead of logging a failure.
var errRejected = errors.New("workflow rejected")

// tuiEventBuffer is the TUI subscription size; the view drops nothing
// during a lockout countdown.
const tuiEventBuffer = 512

// workflowKind describes what a workflow command hosts.
type workflowKind struct {
	mode           worker.Mode
	enableOnAccept bool
}

// loadConfig loads the configuration, applies explicitly set flags and
// resolves paths against the project root.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	cfg, err := config.LoadConfig(viper.GetViper())
	if err != nil {
		return nil, "", fmt.Errorf("load config: %w", err)
	}
	applyFlagOverrides(cmd, cfg)

	projectRoot := daemon.FindProjectRoot("")
	cfg.Paths, err = daemon.ResolvePaths(cfg.Paths, projectRoot)
	if err != nil {
		return nil, "", fmt.Errorf("resolve paths: %w", err)
	}
	return cfg, projectRoot, nil
}

// applyFlagOverrides copies flags the user set explicitly into cfg.
func applyFlagOverrides(cmd *cobra.Command, cfg *config.Config) {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if changed(FlagLogFile) {
		cfg.Paths.Log = viper.GetString(FlagLogFile)
	}
	if changed(FlagStateFile) {
		cfg.Paths.State = viper.GetString(FlagStateFile)
	}
	if changed(FlagSocketPath) {
		cfg.Paths.Socket = viper.GetString(FlagSocketPath)
	}
	if changed(FlagSlotFile) {
		cfg.Paths.Slot = viper.GetString(FlagSlotFile)
	}
	if changed(FlagBackend) {
		cfg.Sensor.Backend = viper.GetString(FlagBackend)
	}
	if changed(FlagFinger) {
		cfg.Sensor.Finger = viper.GetString(FlagFinger)
	}
	if changed(FlagMetrics) {
		cfg.Metrics.Enabled = viper.GetBool(FlagMetrics)
	}
	if changed(FlagMetricsAddr) {
		cfg.Metrics.Addr = viper.GetString(FlagMetricsAddr)
	}
	if changed(FlagPinentry) {
		cfg.Pinentry.Enabled = viper.GetBool(FlagPinentry)
	}
}

// chooseTUI decides the host: explicit flags first, then whether stdout is
// a terminal.
func chooseTUI(cmd *cobra.Command, stdoutIsTTY bool) (bool, error) {
	tuiSet := cmd.Flags().Changed(FlagTUI) && viper.GetBool(FlagTUI)
	headless := cmd.Flags().Changed(FlagHeadless) && viper.GetBool(FlagHeadless)
	switch {
	case tuiSet && headless:
		return false, fmt.Errorf("--%s and --%s flags are incompatible", FlagTUI, FlagHeadless)
	case tuiSet:
		return true, nil
	case headless:
		return false, nil
	default:
		return stdoutIsTTY, nil
	}
}

// restoreOptions turns a persisted state file into controller options.
func restoreOptions(st events.State) []controller.Option {
	var opts []controller.Option
	if st.WrongAttempts > 0 {
		opts = append(opts, controller.WithRestoredAttempts(st.WrongAttempts))
	}
	if st.LockoutDeadline != nil && !st.LockoutDeadline.IsZero() {
		opts = append(opts, controller.WithRestoredDeadline(*st.LockoutDeadline))
	}
	return opts
}

// newSensor creates the configured sensor backend.
func newSensor(cfg *config.Config, logger *slog.Logger) (sensor.Sensor, error) {
	return sensor.New(sensor.Options{
		Backend:  cfg.Sensor.Backend,
		SlotPath: cfg.Paths.Slot,
		Logger:   logger,
		FprintdOptions: sensor.FprintdOptions{
			Finger:        cfg.Sensor.Finger,
			VerifyTimeout: cfg.Sensor.VerifyTimeout,
			Username:      cfg.Sensor.Username,
		},
	})
}

// printResult writes the final one-line verdict.
func printResult(w io.Writer, mode worker.Mode, accepted, done bool) {
	switch {
	case !done:
		_, _ = fmt.Fprintf(w, "%s stopped before a result\n", mode)
	case accepted:
		_, _ = fmt.Fprintf(w, "%s accepted\n", mode)
	default:
		_, _ = fmt.Fprintf(w, "%s rejected\n", mode)
	}
}

// runWorkflow hosts one workflow until it reaches a result or the process
// is asked to stop.
func runWorkflow(cmd *cobra.Command, logger *slog.Logger, logLevel *slog.LevelVar, kind workflowKind) error {
	tuiEnabled, err := chooseTUI(cmd, term.IsTerminal(int(os.Stdout.Fd())))
	if err != nil {
		return err
	}

	if viper.GetBool(FlagVerbose) {
		logLevel.Set(slog.LevelDebug)
		logger.Debug("verbose logging enabled")
	}

	cfg, projectRoot, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	// A second host on the same socket would split focus notifications.
	if !tuiEnabled && daemon.NewClient(cfg.Paths.Socket).IsRunning() {
		return fmt.Errorf("workflow already running (socket: %s)", cfg.Paths.Socket)
	}

	persisted, err := events.LoadState(cfg.Paths.State)
	if err != nil {
		logger.Warn("ignoring unreadable state file", "path", cfg.Paths.State, "error", err)
		persisted = events.State{Version: events.CurrentStateVersion}
	}

	// TUI mode: redirect logger to file before anything logs.
	hostLogger := logger
	if tuiEnabled {
		fl, err := setupTUILogger(filepath.Dir(cfg.Paths.Log), logLevel, cfg.LogRotation)
		if err != nil {
			return err
		}
		defer func() { _ = fl.Close() }()
		hostLogger = fl.Logger
		slog.SetDefault(hostLogger)
	}

	s, err := newSensor(cfg, hostLogger)
	if err != nil {
		return fmt.Errorf("create sensor: %w", err)
	}

	var passcode string
	if kind.mode == worker.ModeEnroll && cfg.Pinentry.Enabled {
		passcode, err = pinentry.New(cfg.Pinentry, hostLogger).Passcode(ctx)
		if err != nil {
			return fmt.Errorf("collect enrollment passcode: %w", err)
		}
	}

	router := events.NewRouter(events.DefaultBufferSize)
	router.SetLogger(hostLogger)

	logSink := events.NewLogSink(cfg.Paths.Log, events.Rotation{
		MaxSizeMB:  cfg.LogRotation.MaxSizeMB,
		MaxBackups: cfg.LogRotation.MaxBackups,
		MaxAgeDays: cfg.LogRotation.MaxAgeDays,
		Compress:   cfg.LogRotation.Compress,
	})
	stateSink := events.NewStateSink(cfg.Paths.State)

	if err := logSink.Start(ctx, router.Subscribe()); err != nil {
		router.Close()
		return fmt.Errorf("start log sink: %w", err)
	}
	if err := stateSink.Start(ctx, router.SubscribeBuffered(events.StateBufferSize)); err != nil {
		router.Close()
		_ = logSink.Stop()
		return fmt.Errorf("start state sink: %w", err)
	}
	// Closing the router lets both sinks drain before they stop.
	defer func() {
		router.Close()
		_ = logSink.Stop()
		_ = stateSink.Stop()
	}()

	opts := append(restoreOptions(persisted),
		controller.WithEnableOnAccept(kind.enableOnAccept),
		controller.WithPasscode(passcode),
	)

	var registry *prometheus.Registry
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		opts = append(opts, controller.WithRecorder(metrics.NewRecorder(registry)))
	}

	// Subscribe before the controller runs so the view sees WorkflowStart.
	var tuiEvents <-chan events.Event
	if tuiEnabled {
		tuiEvents = router.SubscribeBuffered(tuiEventBuffer)
	}

	ctrl := controller.New(cfg, kind.mode, s, router, hostLogger, opts...)

	hostLogger.Info("fingerlock starting",
		"version", version,
		"mode", kind.mode,
		"workflow_id", ctrl.ID(),
		"backend", cfg.Sensor.Backend,
		"log_file", cfg.Paths.Log,
		"state_file", cfg.Paths.State,
		"tui", tuiEnabled,
	)

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	if registry != nil {
		srv := metrics.NewServer(cfg.Metrics.Addr, registry, ctrl.Signal, hostLogger)
		if err := srv.Start(runCtx); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
	}

	if tuiEnabled {
		err = runTUIHost(runCtx, hostLogger, cfg, ctrl, tuiEvents, kind)
	} else {
		err = runHeadlessHost(runCtx, hostLogger, cfg, projectRoot, ctrl)
	}
	if err != nil {
		return err
	}

	accepted, done := ctrl.Result()
	printResult(cmd.OutOrStdout(), kind.mode, accepted, done)
	if done && !accepted {
		return errRejected
	}
	return nil
}

// runTUIHost runs the controller in the background and the TUI in the
// foreground. Leaving the TUI tears the workflow down.
func runTUIHost(ctx context.Context, logger *slog.Logger, cfg *config.Config, ctrl *controller.Controller, tuiEvents <-chan events.Event, kind workflowKind) error {
	ctrlCtx, ctrlCancel := context.WithCancel(ctx)
	defer ctrlCancel()

	return shutdown.RunWithGracefulShutdown(ctx, logger, cfg.Sensor.TeardownTimeout+time.Second,
		func(runCtx context.Context) error {
			ctrlDone := make(chan error, 1)
			go func() {
				ctrlDone <- ctrl.Run(ctrlCtx)
			}()

			app := tui.New(tuiEvents, ctrl,
				tui.WithMode(string(kind.mode)),
				tui.WithThreshold(cfg.Lockout.FailedAttemptsBeforeLockout),
				tui.WithAssumeFocused(viper.GetBool(FlagFocused)),
			)
			tuiErr := app.Run(runCtx)

			ctrlCancel()
			if err := <-ctrlDone; err != nil {
				return err
			}
			return tuiErr
		},
		func(shutdownCtx context.Context) error {
			ctrlCancel()
			return waitDone(shutdownCtx, ctrl.Done())
		},
	)
}

// runHeadlessHost serves the control socket while the controller runs.
// Focus arrives through `fingerlock focus` or --focused.
func runHeadlessHost(ctx context.Context, logger *slog.Logger, cfg *config.Config, projectRoot string, ctrl *controller.Controller) error {
	infoPath := daemon.DaemonInfoPath(projectRoot)
	info := &daemon.DaemonInfo{
		SocketPath: cfg.Paths.Socket,
		StatePath:  cfg.Paths.State,
		LogPath:    cfg.Paths.Log,
		WorkflowID: ctrl.ID(),
		Mode:       string(ctrl.Mode()),
		StartTime:  time.Now(),
		PID:        os.Getpid(),
	}
	if err := daemon.WriteDaemonInfo(infoPath, info); err != nil {
		logger.Warn("failed to write daemon info", "error", err)
	}
	defer func() { _ = daemon.RemoveDaemonInfo(infoPath) }()

	dmn := daemon.New(cfg, ctrl, logger)
	daemonCtx, daemonCancel := context.WithCancel(ctx)
	defer daemonCancel()
	daemonDone := make(chan struct{})
	go func() {
		defer close(daemonDone)
		if err := dmn.Start(daemonCtx); err != nil {
			logger.Error("daemon server error", "error", err)
		}
	}()

	if viper.GetBool(FlagFocused) {
		ctrl.FocusGained()
	}

	return shutdown.RunWithGracefulShutdown(ctx, logger, cfg.Sensor.TeardownTimeout+time.Second,
		ctrl.Run,
		shutdown.Sequence(
			func(shutdownCtx context.Context) error {
				return waitDone(shutdownCtx, ctrl.Done())
			},
			func(context.Context) error {
				daemonCancel()
				<-daemonDone
				return nil
			},
		),
	)
}

// waitDone blocks until done is closed or ctx expires.
func waitDone(ctx context.Context, done <-chan struct{}) error {
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for workflow teardown: %w", ctx.Err())
	}
}
