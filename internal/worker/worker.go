// Package worker runs the blocking sensor call of a workflow on its own
// goroutine and hands the outcome back to the owner.
package worker

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/npratt/fingerlock/internal/sensor"
	"github.com/npratt/fingerlock/internal/status"
)

// Mode selects what the worker asks the sensor to do.
type Mode string

// Workflow modes.
const (
	ModeVerify Mode = "verify"
	ModeEnroll Mode = "enroll"
)

// State is the lifecycle state of a Handle.
type State int32

// Handle states. A nil *Handle reports StateAbsent.
const (
	StateAbsent State = iota
	StateRunning
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "absent"
	}
}

// Request describes one sensor interaction.
type Request struct {
	Mode    Mode
	Session sensor.Session
	// Passcode is an optional pre-supplied enrollment passcode in plain form.
	Passcode string
}

// Result is delivered when a started execution finishes.
type Result struct {
	Seq      uint64
	Mode     Mode
	Outcome  status.Outcome
	Duration time.Duration
}

// Handle tracks one execution started by Worker.Start. It is never reused:
// once Terminated, a new execution needs a new Start.
type Handle struct {
	seq   uint64
	state atomic.Int32
	done  chan struct{}
}

// Seq returns the execution's sequence number.
func (h *Handle) Seq() uint64 {
	if h == nil {
		return 0
	}
	return h.seq
}

// State returns the handle's current state.
func (h *Handle) State() State {
	if h == nil {
		return StateAbsent
	}
	return State(h.state.Load())
}

// Done is closed when the execution has terminated.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Worker executes sensor calls.
type Worker struct {
	sensor sensor.Sensor
	logger *slog.Logger
	seq    atomic.Uint64
}

// New creates a Worker backed by s.
func New(s sensor.Sensor, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{sensor: s, logger: logger}
}

// Start runs req on a new goroutine and returns its Handle in StateRunning.
// When the sensor call returns, the handle moves to StateTerminated and then
// deliver is called with the result. deliver runs on the worker goroutine
// and must hand the result off rather than mutate its owner directly.
func (w *Worker) Start(ctx context.Context, req Request, deliver func(Result)) *Handle {
	h := &Handle{
		seq:  w.seq.Add(1),
		done: make(chan struct{}),
	}
	h.state.Store(int32(StateRunning))

	w.logger.Debug("worker starting", "seq", h.seq, "mode", req.Mode, "session", req.Session.ID)

	go func() {
		start := time.Now()
		outcome := w.Run(ctx, req)
		res := Result{
			Seq:      h.seq,
			Mode:     req.Mode,
			Outcome:  outcome,
			Duration: time.Since(start),
		}

		h.state.Store(int32(StateTerminated))
		close(h.done)

		w.logger.Debug("worker finished", "seq", h.seq, "outcome", outcome.String(), "duration", res.Duration)
		if deliver != nil {
			deliver(res)
		}
	}()

	return h
}

// Run performs req synchronously and translates the sensor's raw status.
func (w *Worker) Run(ctx context.Context, req Request) (outcome status.Outcome) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("sensor call panicked", "mode", req.Mode, "panic", fmt.Sprint(r))
			outcome = status.Translate(status.CodeUnknownError)
		}
	}()

	var code int
	switch req.Mode {
	case ModeEnroll:
		var passcode string
		if req.Passcode != "" {
			passcode = hex.EncodeToString([]byte(req.Passcode))
		}
		code = w.sensor.Enroll(ctx, req.Session, passcode)
	default:
		code = w.sensor.Verify(ctx, req.Session)
	}
	return status.Translate(code)
}
