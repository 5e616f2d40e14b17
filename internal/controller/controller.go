// Package controller runs the fingerprint authentication workflow: it owns
// the single worker, counts bad swipes, drives the lockout countdown and
// publishes the UI signal hosts render.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/npratt/fingerlock/internal/config"
	"github.com/npratt/fingerlock/internal/events"
	"github.com/npratt/fingerlock/internal/lockout"
	"github.com/npratt/fingerlock/internal/sensor"
	"github.com/npratt/fingerlock/internal/viewmodel"
	"github.com/npratt/fingerlock/internal/worker"
)

// State represents the controller's current state.
type State string

// Controller states.
const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateLockedOut State = "locked_out"
	StateTerminal  State = "terminal"
)

// AttemptState is the wrong-attempt bookkeeping. A zero Deadline means no
// lockout is pending.
type AttemptState struct {
	WrongAttempts int       `json:"wrong_attempt_count"`
	LockedOut     bool      `json:"locked_out"`
	Deadline      time.Time `json:"lockout_deadline"`
}

// Recorder receives workflow measurements. metrics.Recorder implements it.
type Recorder interface {
	WorkerStarted(mode string)
	OutcomeObserved(mode, outcome string, d time.Duration)
	LockoutArmed(mode string)
	WrongAttempts(n int)
	WorkflowFinished(mode string, accepted bool)
}

type msgKind int

const (
	msgFocusGained msgKind = iota
	msgFocusLost
	msgDismiss
	msgResult
)

type message struct {
	kind   msgKind
	result worker.Result
}

const inboxSize = 64

var errAlreadyRunning = errors.New("controller: Run called more than once")

// Option configures a Controller.
type Option func(*Controller)

// WithOnTerminal registers fn to be called once, on the controller
// goroutine, when the workflow reaches a terminal result.
func WithOnTerminal(fn func(accepted bool)) Option {
	return func(c *Controller) { c.onTerminal = fn }
}

// WithEnableOnAccept makes an accepted verification turn the credential slot
// on, as in the "enable fingerprint unlock" flow.
func WithEnableOnAccept(enable bool) Option {
	return func(c *Controller) { c.enableOnAccept = enable }
}

// WithRestoredAttempts restores a persisted wrong-attempt count.
func WithRestoredAttempts(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.attempts.WrongAttempts = n
		}
	}
}

// WithRestoredDeadline restores a persisted lockout deadline. A deadline
// still in the future when Run starts re-enters the lockout.
func WithRestoredDeadline(t time.Time) Option {
	return func(c *Controller) { c.restoredDeadline = t }
}

// WithPasscode supplies a plain enrollment passcode for the sensor.
func WithPasscode(passcode string) Option {
	return func(c *Controller) { c.passcode = passcode }
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(c *Controller) {
		if r != nil {
			c.recorder = r
		}
	}
}

// WithWorkflowID overrides the generated workflow ID.
func WithWorkflowID(id string) Option {
	return func(c *Controller) {
		if id != "" {
			c.id = id
		}
	}
}

// Controller is the authentication workflow state machine. All transitions
// run on the goroutine that calls Run; the exported notification methods
// only post messages to it.
type Controller struct {
	cfg    *config.Config
	mode   worker.Mode
	sensor sensor.Sensor
	worker *worker.Worker
	router *events.Router
	logger *slog.Logger
	id     string

	onTerminal       func(bool)
	enableOnAccept   bool
	passcode         string
	restoredDeadline time.Time
	recorder         Recorder

	inbox   chan message
	stopped chan struct{}
	wg      sync.WaitGroup

	// Owned by the Run goroutine.
	state         State
	signal        viewmodel.Signal
	attempts      AttemptState
	focused       bool
	dismissed     bool
	closing       bool
	handle        *worker.Handle
	superseded    map[uint64]struct{}
	timer         *lockout.Timer
	sessCtx       context.Context
	cancelSession context.CancelFunc
	terminalOnce  sync.Once

	// Published snapshot for other goroutines.
	snapMu  sync.RWMutex
	snap    snapshot
	runOnce sync.Once
}

type snapshot struct {
	state    State
	signal   viewmodel.Signal
	attempts AttemptState
	done     bool
	accepted bool
}

// New creates a Controller for one workflow in the given mode.
func New(cfg *config.Config, mode worker.Mode, s sensor.Sensor, router *events.Router, logger *slog.Logger, opts ...Option) *Controller {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Controller{
		cfg:      cfg,
		mode:     mode,
		sensor:   s,
		router:   router,
		id:       uuid.NewString(),
		recorder: nopRecorder{},
		inbox:    make(chan message, inboxSize),
		stopped:  make(chan struct{}),
		state:    StateIdle,

		superseded: make(map[uint64]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = logger.With("workflow_id", c.id, "mode", string(mode))
	c.worker = worker.New(s, c.logger)
	c.signal = viewmodel.Signal{Header: c.promptHeader(), Footer: cfg.UI.FooterText}
	c.snap = snapshot{state: c.state, signal: c.signal, attempts: c.attempts}
	return c
}

// ID returns the workflow ID carried by every event.
func (c *Controller) ID() string {
	return c.id
}

// Mode returns the workflow mode.
func (c *Controller) Mode() worker.Mode {
	return c.mode
}

// FocusGained notifies the controller that the host UI gained focus.
func (c *Controller) FocusGained() {
	c.post(message{kind: msgFocusGained})
}

// FocusLost notifies the controller that the host UI lost focus. An
// in-flight sensor call is left to finish.
func (c *Controller) FocusLost() {
	c.post(message{kind: msgFocusLost})
}

// Dismiss tells the sensor session the UI was dismissed. A running worker's
// outcome is still awaited; otherwise the workflow rejects at once.
func (c *Controller) Dismiss() {
	c.post(message{kind: msgDismiss})
}

// Signal returns the latest UI snapshot.
func (c *Controller) Signal() viewmodel.Signal {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap.signal
}

// State returns the current state.
func (c *Controller) State() State {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap.state
}

// Attempts returns the current attempt bookkeeping.
func (c *Controller) Attempts() AttemptState {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap.attempts
}

// Persisted returns the fields a host saves to survive a restart: the
// wrong-attempt count and, while locked out, the deadline.
func (c *Controller) Persisted() (wrongAttempts int, deadline time.Time) {
	a := c.Attempts()
	return a.WrongAttempts, a.Deadline
}

// Result reports the terminal result. done is false until the workflow
// reaches StateTerminal.
func (c *Controller) Result() (accepted, done bool) {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap.accepted, c.snap.done
}

// Done is closed when Run has returned.
func (c *Controller) Done() <-chan struct{} {
	return c.stopped
}

// Run processes notifications until the workflow is terminal or ctx is
// canceled. On return the lockout timer is canceled and every started
// worker has finished, or sensor.teardown_timeout has elapsed.
func (c *Controller) Run(ctx context.Context) error {
	started := false
	c.runOnce.Do(func() { started = true })
	if !started {
		return errAlreadyRunning
	}

	c.sessCtx, c.cancelSession = context.WithCancel(context.Background())
	defer c.cancelSession()

	c.start()

	for c.state != StateTerminal {
		select {
		case <-ctx.Done():
			c.teardown("context canceled")
			return nil

		case msg := <-c.inbox:
			c.dispatch(msg)

		case ev := <-c.timer.C():
			c.handleTimer(ev)
		}
	}

	c.teardown("terminal")
	return nil
}

// post delivers msg to the Run goroutine, or drops it once Run has returned.
func (c *Controller) post(msg message) {
	select {
	case c.inbox <- msg:
	case <-c.stopped:
	}
}

func (c *Controller) dispatch(msg message) {
	switch msg.kind {
	case msgFocusGained:
		c.onFocusGained()
	case msgFocusLost:
		c.onFocusLost()
	case msgDismiss:
		c.onDismiss()
	case msgResult:
		c.onResult(msg.result)
	}
}

// teardown cancels the countdown, dismisses the sensor session and waits
// for started workers, still processing their results.
func (c *Controller) teardown(reason string) {
	c.closing = true
	c.stopTimer(false)
	c.cancelSession()

	waited := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(waited)
	}()

	timeout := time.NewTimer(c.cfg.Sensor.TeardownTimeout)
	defer timeout.Stop()

wait:
	for {
		select {
		case <-waited:
			break wait
		case msg := <-c.inbox:
			if msg.kind == msgResult {
				c.onResult(msg.result)
			}
		case <-timeout.C:
			c.logger.Warn("teardown timed out waiting for worker",
				"timeout", c.cfg.Sensor.TeardownTimeout)
			break wait
		}
	}

	// Results posted just before the workers finished.
	for drained := false; !drained; {
		select {
		case msg := <-c.inbox:
			if msg.kind == msgResult {
				c.onResult(msg.result)
			}
		default:
			drained = true
		}
	}

	if c.state != StateTerminal {
		c.emit(&events.WorkflowEndEvent{
			BaseEvent: c.event(events.EventWorkflowEnd),
			Mode:      string(c.mode),
			Reason:    reason,
		})
		c.logger.Info("workflow torn down", "reason", reason, "state", c.state)
	}
	close(c.stopped)
}

func (c *Controller) event(t events.EventType) events.BaseEvent {
	return events.NewWorkflowEvent(t, c.id)
}

func (c *Controller) emit(event events.Event) {
	if c.router != nil {
		c.router.Emit(event)
	}
}

type nopRecorder struct{}

func (nopRecorder) WorkerStarted(string)                          {}
func (nopRecorder) OutcomeObserved(string, string, time.Duration) {}
func (nopRecorder) LockoutArmed(string)                           {}
func (nopRecorder) WrongAttempts(int)                             {}
func (nopRecorder) WorkflowFinished(string, bool)                 {}
