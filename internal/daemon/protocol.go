package daemon

import "github.com/npratt/fingerlock/internal/viewmodel"

// Methods understood by the daemon.
const (
	MethodStatus  = "status"
	MethodSignal  = "signal"
	MethodFocus   = "focus"
	MethodBlur    = "blur"
	MethodDismiss = "dismiss"
)

// Request represents a JSON-RPC request from a client.
type Request struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
	ID     int    `json:"id,omitempty"`
}

// Response represents a JSON-RPC response to a client.
type Response struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	ID     int    `json:"id,omitempty"`
}

// StatusResponse describes the hosted workflow.
type StatusResponse struct {
	WorkflowID      string `json:"workflow_id"`
	Mode            string `json:"mode"`
	State           string `json:"state"`
	WrongAttempts   int    `json:"wrong_attempt_count"`
	Threshold       int    `json:"threshold"`
	LockoutDeadline string `json:"lockout_deadline,omitempty"`
	Done            bool   `json:"done"`
	Accepted        bool   `json:"accepted"`
	Uptime          string `json:"uptime"`
	StartTime       string `json:"start_time"`
}

// SignalResponse is the UI snapshot returned by the signal method.
type SignalResponse = viewmodel.Signal
