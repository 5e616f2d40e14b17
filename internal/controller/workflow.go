package controller

import (
	"context"
	"fmt"
	"time"

	"github.com/npratt/fingerlock/internal/events"
	"github.com/npratt/fingerlock/internal/lockout"
	"github.com/npratt/fingerlock/internal/sensor"
	"github.com/npratt/fingerlock/internal/status"
	"github.com/npratt/fingerlock/internal/worker"
)

// Fixed header texts.
const (
	HeaderTimedOut  = "Fingerprint sensor timed out"
	HeaderLockedOut = "Too many bad swipes"
	HeaderAccepted  = "Fingerprint recognized"
)

const slotUpdateTimeout = 5 * time.Second

// CountdownText is the footer shown while locked out.
func CountdownText(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("Try again in %d seconds.", seconds)
}

// RemainingText is the footer shown after a bad swipe below the threshold.
func RemainingText(remaining int) string {
	if remaining == 1 {
		return "1 attempt remaining"
	}
	return fmt.Sprintf("%d attempts remaining", remaining)
}

func (c *Controller) threshold() int {
	return c.cfg.Lockout.FailedAttemptsBeforeLockout
}

func (c *Controller) promptHeader() string {
	if c.mode == worker.ModeEnroll {
		return c.cfg.UI.EnrollHeaderText
	}
	return c.cfg.UI.HeaderText
}

// start runs once at the top of Run.
func (c *Controller) start() {
	c.refreshToggle()

	c.emit(&events.WorkflowStartEvent{
		BaseEvent:     c.event(events.EventWorkflowStart),
		Mode:          string(c.mode),
		WrongAttempts: c.attempts.WrongAttempts,
		Threshold:     c.threshold(),
	})
	c.logger.Info("workflow started",
		"wrong_attempts", c.attempts.WrongAttempts,
		"threshold", c.threshold())

	if !c.restoredDeadline.IsZero() {
		if c.restoredDeadline.After(time.Now()) {
			c.armLockout(c.restoredDeadline, HeaderLockedOut)
		} else {
			// The lockout elapsed while nothing was running.
			c.resetAttempts()
		}
	}

	c.recorder.WrongAttempts(c.attempts.WrongAttempts)
	c.publish()
}

func (c *Controller) refreshToggle() {
	stored, err := c.sensor.HasStoredCredential(c.sessCtx)
	if err != nil {
		c.logger.Warn("query stored credential", "error", err)
	}
	enabled, err := c.sensor.CredentialSlotEnabled(c.sessCtx)
	if err != nil {
		c.logger.Warn("query credential slot", "error", err)
	}
	c.signal.ToggleEnabled = stored
	c.signal.ToggleChecked = enabled
}

func (c *Controller) onFocusGained() {
	c.focused = true

	switch c.state {
	case StateIdle:
		c.startWorker(true)
	case StateRunning:
		// A terminated worker cannot be restarted in place. Its result is
		// still on the way and is applied when it arrives.
		if c.handle.State() == worker.StateTerminated {
			seq := c.handle.Seq()
			c.logger.Debug("worker terminated before its result arrived, starting a fresh one",
				"superseded_seq", seq)
			c.superseded[seq] = struct{}{}
			c.startWorker(true)
		}
	}
}

func (c *Controller) onFocusLost() {
	c.focused = false
	c.logger.Debug("focus lost", "state", c.state)
}

func (c *Controller) onDismiss() {
	if c.state == StateTerminal || c.dismissed {
		return
	}
	c.dismissed = true
	c.cancelSession()

	if c.state == StateRunning {
		c.logger.Info("dismissed, awaiting worker outcome", "seq", c.handle.Seq())
		return
	}
	c.finish(false, nil, "dismissed")
}

func (c *Controller) onResult(r worker.Result) {
	_, superseded := c.superseded[r.Seq]
	delete(c.superseded, r.Seq)
	current := c.handle != nil && r.Seq == c.handle.Seq()

	switch {
	case current && c.state == StateRunning:
		c.handle = nil
	case current:
		// The worker outlived a lockout armed by a superseded result.
		c.handle = nil
		c.logger.Debug("dropping result of a worker overtaken by lockout",
			"seq", r.Seq, "outcome", r.Outcome.String(), "state", c.state)
		return
	case superseded:
		c.onSupersededResult(r)
		return
	default:
		c.logger.Debug("dropping stale worker result",
			"seq", r.Seq, "outcome", r.Outcome.String(), "state", c.state)
		return
	}

	o := r.Outcome
	c.observe(r)

	switch o.Class() {
	case status.ClassSuccess:
		c.accept(o)
	case status.ClassCounted:
		c.countFailure(o)
	default:
		if c.closing && !c.dismissed {
			// Usually the sensor echoing our own teardown cancel.
			c.logger.Debug("ignoring terminal outcome during teardown", "outcome", o.String())
			return
		}
		c.finish(false, &o, "")
	}
}

// onSupersededResult applies the result of a worker that was replaced by
// a refocus before its result arrived. Accepts and bad swipes still count;
// the replacement worker keeps running unless a lockout is armed.
func (c *Controller) onSupersededResult(r worker.Result) {
	if c.state == StateTerminal || c.state == StateLockedOut || c.dismissed {
		c.logger.Debug("dropping superseded worker result",
			"seq", r.Seq, "outcome", r.Outcome.String(), "state", c.state)
		return
	}

	o := r.Outcome
	c.observe(r)

	switch o.Class() {
	case status.ClassSuccess:
		c.accept(o)
	case status.ClassCounted:
		c.recordFailure(o)
		c.publish()
	default:
		c.logger.Debug("ignoring terminal outcome of a superseded worker", "seq", r.Seq, "outcome", o.String())
	}
}

func (c *Controller) observe(r worker.Result) {
	o := r.Outcome
	c.recorder.OutcomeObserved(string(c.mode), o.Label(), r.Duration)
	c.emit(&events.OutcomeEvent{
		BaseEvent:  c.event(events.EventOutcome),
		Seq:        r.Seq,
		Mode:       string(r.Mode),
		Outcome:    o.String(),
		Class:      o.Class().String(),
		DurationMs: r.Duration.Milliseconds(),
	})
	c.logger.Info("worker outcome", "seq", r.Seq, "outcome", o.String(), "duration", r.Duration)
}

func (c *Controller) accept(o status.Outcome) {
	if o.Kind == status.KindAccepted && (c.mode == worker.ModeEnroll || c.enableOnAccept) {
		ctx, cancel := context.WithTimeout(context.Background(), slotUpdateTimeout)
		err := c.sensor.SetCredentialSlotEnabled(ctx, true)
		cancel()
		if err != nil {
			c.logger.Warn("enable credential slot", "error", err)
			c.emit(&events.ErrorEvent{
				BaseEvent: c.event(events.EventError),
				Message:   fmt.Sprintf("enable credential slot: %v", err),
				Severity:  events.SeverityWarning,
			})
		} else {
			c.signal.ToggleChecked = true
		}
		if c.mode == worker.ModeEnroll {
			c.signal.ToggleEnabled = true
		}
	}
	c.finish(true, &o, "")
}

func (c *Controller) countFailure(o status.Outcome) {
	if c.dismissed {
		c.finish(false, &o, "dismissed")
		return
	}

	if !c.recordFailure(o) && (!c.focused || !c.startWorker(false)) {
		c.setState(StateIdle)
	}
	c.publish()
}

// recordFailure counts a bad swipe and arms the lockout once the threshold
// is reached, reporting whether it did. Below the threshold it only sets
// the failure texts.
func (c *Controller) recordFailure(o status.Outcome) bool {
	c.attempts.WrongAttempts++
	n := c.attempts.WrongAttempts
	remaining := max(c.threshold()-n, 0)

	c.recorder.WrongAttempts(n)
	c.emit(&events.AttemptsChangedEvent{
		BaseEvent:     c.event(events.EventAttemptsChanged),
		WrongAttempts: n,
		Remaining:     remaining,
	})

	if n >= c.threshold() {
		header := HeaderLockedOut
		if o.Kind == status.KindUITimeout {
			header = HeaderTimedOut
		}
		c.armLockout(time.Now().Add(c.cfg.Lockout.Cooldown), header)
		return true
	}

	if o.Kind == status.KindUITimeout {
		c.signal.Header = HeaderTimedOut
	} else {
		c.signal.Header = c.cfg.UI.HeaderWrongText
	}
	c.signal.Footer = RemainingText(remaining)
	if c.cfg.UI.FooterWrongText != "" {
		c.signal.Footer = c.cfg.UI.FooterWrongText
	}
	return false
}

// armLockout enters StateLockedOut until deadline. While tearing down the
// deadline is recorded for persistence but no countdown runs.
func (c *Controller) armLockout(deadline time.Time, header string) {
	c.attempts.LockedOut = true
	c.attempts.Deadline = deadline
	c.signal.Header = header
	c.signal.Footer = CountdownText(int(time.Until(deadline) / time.Second))

	if !c.closing {
		c.stopTimer(false)
		c.timer = lockout.Arm(deadline, c.cfg.Lockout.TickInterval)
	}

	c.recorder.LockoutArmed(string(c.mode))
	c.emit(&events.LockoutStartEvent{
		BaseEvent:     c.event(events.EventLockoutStart),
		Deadline:      deadline,
		WrongAttempts: c.attempts.WrongAttempts,
	})
	c.logger.Info("lockout armed", "deadline", deadline, "wrong_attempts", c.attempts.WrongAttempts)
	c.setState(StateLockedOut)
}

func (c *Controller) handleTimer(ev lockout.Event) {
	if c.timer == nil || ev.TimerID != c.timer.ID() || c.state != StateLockedOut {
		c.logger.Debug("dropping stale timer event", "timer_id", ev.TimerID, "kind", ev.Kind.String())
		return
	}

	switch ev.Kind {
	case lockout.EventTick:
		secs := ev.SecondsRemaining()
		c.signal.Footer = CountdownText(secs)
		c.emit(&events.LockoutTickEvent{
			BaseEvent:        c.event(events.EventLockoutTick),
			SecondsRemaining: secs,
		})
		c.publish()

	case lockout.EventExpired:
		c.timer = nil
		c.emit(&events.LockoutEndEvent{BaseEvent: c.event(events.EventLockoutEnd)})
		c.logger.Info("lockout expired", "focused", c.focused)
		c.resetAttempts()

		c.signal.Header = c.promptHeader()
		c.signal.Footer = c.cfg.UI.FooterText
		switch {
		case c.handle != nil:
			// A worker started before the lockout is still out; its result
			// decides what happens next.
			c.setState(StateRunning)
		case !c.focused || !c.startWorker(true):
			c.setState(StateIdle)
		}
		c.publish()
	}
}

// startWorker launches a fresh worker and enters StateRunning. It reports
// false when the workflow can no longer start sensor calls.
func (c *Controller) startWorker(resetText bool) bool {
	if c.dismissed || c.closing {
		return false
	}
	if resetText {
		c.signal.Header = c.promptHeader()
		c.signal.Footer = c.cfg.UI.FooterText
	}

	req := worker.Request{
		Mode:     c.mode,
		Session:  sensor.Session{ID: c.id, Prompt: c.promptHeader()},
		Passcode: c.passcode,
	}

	c.wg.Add(1)
	c.handle = c.worker.Start(c.sessCtx, req, func(r worker.Result) {
		defer c.wg.Done()
		c.post(message{kind: msgResult, result: r})
	})

	c.recorder.WorkerStarted(string(c.mode))
	c.emit(&events.WorkerStartEvent{
		BaseEvent: c.event(events.EventWorkerStart),
		Seq:       c.handle.Seq(),
		Mode:      string(c.mode),
	})
	c.setState(StateRunning)
	c.publish()
	return true
}

// finish moves to StateTerminal, clearing any lockout, and fires the
// terminal callback once.
func (c *Controller) finish(accepted bool, o *status.Outcome, reason string) {
	c.stopTimer(true)
	c.resetAttempts()
	c.cancelSession()

	outcome := ""
	if o != nil {
		outcome = o.String()
	}

	message := ""
	switch {
	case c.mode == worker.ModeEnroll && o != nil:
		message = status.EnrollMessage(*o)
		c.signal.Header = message
		c.signal.Footer = ""
	case accepted:
		c.signal.Header = HeaderAccepted
		c.signal.Footer = ""
	}

	c.setState(StateTerminal)
	c.snapMu.Lock()
	c.snap.done = true
	c.snap.accepted = accepted
	c.snapMu.Unlock()
	c.publish()

	c.recorder.WorkflowFinished(string(c.mode), accepted)
	c.emit(&events.WorkflowEndEvent{
		BaseEvent: c.event(events.EventWorkflowEnd),
		Mode:      string(c.mode),
		Terminal:  true,
		Accepted:  accepted,
		Outcome:   outcome,
		Message:   message,
		Reason:    reason,
	})
	c.logger.Info("workflow finished", "accepted", accepted, "outcome", outcome, "reason", reason)

	if c.onTerminal != nil {
		c.terminalOnce.Do(func() { c.onTerminal(accepted) })
	}
}

// stopTimer cancels a running countdown. emitEnd records the cancellation,
// which also clears the persisted deadline.
func (c *Controller) stopTimer(emitEnd bool) {
	if c.timer == nil {
		return
	}
	c.timer.Cancel()
	c.timer = nil
	if emitEnd {
		c.emit(&events.LockoutEndEvent{BaseEvent: c.event(events.EventLockoutEnd), Canceled: true})
	}
}

func (c *Controller) resetAttempts() {
	if c.attempts == (AttemptState{}) {
		return
	}
	c.attempts = AttemptState{}
	c.recorder.WrongAttempts(0)
	c.emit(&events.AttemptsChangedEvent{
		BaseEvent:     c.event(events.EventAttemptsChanged),
		WrongAttempts: 0,
		Remaining:     c.threshold(),
	})
}

func (c *Controller) setState(s State) {
	if c.state == s {
		return
	}
	from := c.state
	c.state = s
	c.emit(&events.StateChangedEvent{
		BaseEvent: c.event(events.EventStateChanged),
		From:      string(from),
		To:        string(s),
	})
	c.logger.Debug("state changed", "from", from, "to", s)
}

// publish copies the Run-owned state into the snapshot readers see and
// emits the signal if it changed.
func (c *Controller) publish() {
	c.snapMu.Lock()
	changed := c.snap.signal != c.signal
	c.snap.state = c.state
	c.snap.signal = c.signal
	c.snap.attempts = c.attempts
	c.snapMu.Unlock()

	if changed {
		c.emit(&events.SignalEvent{
			BaseEvent:     c.event(events.EventSignal),
			Header:        c.signal.Header,
			Footer:        c.signal.Footer,
			ToggleChecked: c.signal.ToggleChecked,
			ToggleEnabled: c.signal.ToggleEnabled,
		})
	}
}
