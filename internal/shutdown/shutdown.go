// Package shutdown runs a host until it finishes or the process is asked to
// stop, then gives its components a bounded window to close.
package shutdown

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// Signals are the signals that trigger a graceful shutdown.
var Signals = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP}

// Func closes one component within the deadline carried by ctx.
type Func func(ctx context.Context) error

// Sequence runs fns in order and joins their errors. Every fn runs even if
// an earlier one fails.
func Sequence(fns ...Func) Func {
	return func(ctx context.Context) error {
		var errs []error
		for _, fn := range fns {
			if fn == nil {
				continue
			}
			if err := fn(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

// RunWithGracefulShutdown starts runner and blocks until it returns. On a
// shutdown signal or cancellation of ctx the runner's context is canceled,
// shutdown is called, and the runner gets up to timeout to return.
func RunWithGracefulShutdown(
	ctx context.Context,
	logger *slog.Logger,
	timeout time.Duration,
	runner func(ctx context.Context) error,
	shutdown Func,
) error {
	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	runDone := make(chan error, 1)
	go func() {
		runDone <- runner(runCtx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, Signals...)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("received signal, initiating shutdown", "signal", sig)
	case <-ctx.Done():
		logger.Info("context canceled, initiating shutdown")
	case err := <-runDone:
		if shutdown != nil {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
			defer cancel()
			if serr := shutdown(shutdownCtx); serr != nil {
				logger.Error("shutdown error", "error", serr)
			}
		}
		if ctx.Err() != nil && errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	}

	runCancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
	defer shutdownCancel()

	// The runner settles first so its final state reaches the components
	// being closed.
	var runErr error
	select {
	case runErr = <-runDone:
		if errors.Is(runErr, context.Canceled) {
			runErr = nil
		}
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded", "timeout", timeout)
	}

	if shutdown != nil {
		if err := shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "error", err)
		}
	}

	logger.Info("shutdown complete")
	return runErr
}
