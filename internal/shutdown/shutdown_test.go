package shutdown

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"syscall"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSequence(t *testing.T) {
	var order []int
	errA := errors.New("a failed")
	errC := errors.New("c failed")

	fn := Sequence(
		func(context.Context) error { order = append(order, 1); return errA },
		nil,
		func(context.Context) error { order = append(order, 2); return nil },
		func(context.Context) error { order = append(order, 3); return errC },
	)

	err := fn(context.Background())
	if !errors.Is(err, errA) || !errors.Is(err, errC) {
		t.Errorf("err = %v, want both errors joined", err)
	}
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("order = %v, want [1 2 3]", order)
	}
}

func TestSequence_Empty(t *testing.T) {
	if err := Sequence()(context.Background()); err != nil {
		t.Errorf("err = %v, want nil", err)
	}
}

func TestRunWithGracefulShutdown_RunnerFinishes(t *testing.T) {
	var shutdownCalls atomic.Int32
	want := errors.New("runner failed")

	err := RunWithGracefulShutdown(context.Background(), testLogger(), time.Second,
		func(context.Context) error { return want },
		func(context.Context) error { shutdownCalls.Add(1); return nil },
	)

	if !errors.Is(err, want) {
		t.Errorf("err = %v, want %v", err, want)
	}
	if shutdownCalls.Load() != 1 {
		t.Errorf("shutdown called %d times, want 1", shutdownCalls.Load())
	}
}

func TestRunWithGracefulShutdown_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runnerSawCancel, shutdownCalled atomic.Bool

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := RunWithGracefulShutdown(ctx, testLogger(), time.Second,
		func(ctx context.Context) error {
			<-ctx.Done()
			runnerSawCancel.Store(true)
			return ctx.Err()
		},
		func(context.Context) error {
			if !runnerSawCancel.Load() {
				t.Error("shutdown ran before the runner returned")
			}
			shutdownCalled.Store(true)
			return nil
		},
	)

	if err != nil {
		t.Errorf("err = %v, want nil", err)
	}
	if !shutdownCalled.Load() {
		t.Error("shutdown was not called")
	}
}

func TestRunWithGracefulShutdown_Signal(t *testing.T) {
	started := make(chan struct{})
	var shutdownCalled atomic.Bool

	go func() {
		<-started
		// Notify is registered before the runner can block on ctx.
		time.Sleep(20 * time.Millisecond)
		_ = syscall.Kill(os.Getpid(), syscall.SIGTERM)
	}()

	err := RunWithGracefulShutdown(context.Background(), testLogger(), time.Second,
		func(ctx context.Context) error {
			close(started)
			<-ctx.Done()
			return ctx.Err()
		},
		func(context.Context) error { shutdownCalled.Store(true); return nil },
	)

	if err != nil {
		t.Errorf("err = %v, want nil", err)
	}
	if !shutdownCalled.Load() {
		t.Error("shutdown was not called")
	}
}

func TestRunWithGracefulShutdown_StuckRunner(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	block := make(chan struct{})
	defer close(block)

	start := time.Now()
	err := RunWithGracefulShutdown(ctx, testLogger(), 50*time.Millisecond,
		func(context.Context) error { <-block; return nil },
		nil,
	)
	if err != nil {
		t.Errorf("err = %v, want nil", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("returned after %v, want about the timeout", elapsed)
	}
}
