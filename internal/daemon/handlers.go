package daemon

import (
	"fmt"
	"time"
)

// handleRequest dispatches the request to the appropriate handler.
func (d *Daemon) handleRequest(req *Request) Response {
	if d.controller == nil {
		return Response{Error: "no workflow available"}
	}

	switch req.Method {
	case MethodStatus:
		return d.handleStatus()
	case MethodSignal:
		return Response{Result: d.controller.Signal()}
	case MethodFocus:
		d.controller.FocusGained()
		return Response{Result: "focused"}
	case MethodBlur:
		d.controller.FocusLost()
		return Response{Result: "blurred"}
	case MethodDismiss:
		d.controller.Dismiss()
		return Response{Result: "dismissing"}
	default:
		return Response{Error: fmt.Sprintf("unknown method: %s", req.Method)}
	}
}

// handleStatus reports the workflow state and attempt bookkeeping.
func (d *Daemon) handleStatus() Response {
	attempts := d.controller.Attempts()
	accepted, done := d.controller.Result()

	d.mu.RLock()
	startTime := d.startTime
	d.mu.RUnlock()

	status := StatusResponse{
		WorkflowID:    d.controller.ID(),
		Mode:          string(d.controller.Mode()),
		State:         string(d.controller.State()),
		WrongAttempts: attempts.WrongAttempts,
		Threshold:     d.config.Lockout.FailedAttemptsBeforeLockout,
		Done:          done,
		Accepted:      accepted,
		Uptime:        time.Since(startTime).Truncate(time.Second).String(),
		StartTime:     startTime.Format(time.RFC3339),
	}
	if !attempts.Deadline.IsZero() {
		status.LockoutDeadline = attempts.Deadline.Format(time.RFC3339)
	}
	return Response{Result: status}
}
