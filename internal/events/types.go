// Package events defines the event taxonomy emitted by the authentication
// workflow and the router and sinks that consume it.
package events

import "time"

// EventType identifies the category and nature of an event.
type EventType string

const (
	// Workflow lifecycle
	EventWorkflowStart EventType = "workflow.start"
	EventWorkflowEnd   EventType = "workflow.end"
	EventStateChanged  EventType = "workflow.state_changed"

	// UI snapshot published after every transition
	EventSignal EventType = "ui.signal"

	// Worker events
	EventWorkerStart EventType = "worker.start"
	EventOutcome     EventType = "worker.outcome"

	// Lockout events
	EventLockoutStart    EventType = "lockout.start"
	EventLockoutTick     EventType = "lockout.tick"
	EventLockoutEnd      EventType = "lockout.end"
	EventAttemptsChanged EventType = "lockout.attempts_changed"

	EventError EventType = "error"
)

// SourceInternal identifies events produced by this process.
const SourceInternal = "fingerlock"

// Event is the base interface for all events in the system.
type Event interface {
	Type() EventType
	Timestamp() time.Time
	Source() string
	Workflow() string
}

// BaseEvent provides the common fields for all events.
type BaseEvent struct {
	EventType  EventType `json:"type"`
	Time       time.Time `json:"timestamp"`
	Src        string    `json:"source"`
	WorkflowID string    `json:"workflow_id,omitempty"`
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.Time
}

// Source returns the origin of the event.
func (e BaseEvent) Source() string {
	return e.Src
}

// Workflow returns the ID of the workflow the event belongs to.
func (e BaseEvent) Workflow() string {
	return e.WorkflowID
}

// WorkflowStartEvent is emitted when a controller begins running.
type WorkflowStartEvent struct {
	BaseEvent
	Mode          string `json:"mode"`
	WrongAttempts int    `json:"wrong_attempts"`
	Threshold     int    `json:"threshold"`
}

// WorkflowEndEvent is emitted once when the workflow reaches a terminal result
// or is torn down.
type WorkflowEndEvent struct {
	BaseEvent
	Mode     string `json:"mode"`
	Terminal bool   `json:"terminal"`
	Accepted bool   `json:"accepted"`
	Outcome  string `json:"outcome,omitempty"`
	Message  string `json:"message,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

// StateChangedEvent is emitted on every controller state transition.
type StateChangedEvent struct {
	BaseEvent
	From string `json:"from"`
	To   string `json:"to"`
}

// SignalEvent carries the UI snapshot after a transition.
type SignalEvent struct {
	BaseEvent
	Header        string `json:"header"`
	Footer        string `json:"footer"`
	ToggleChecked bool   `json:"toggle_checked"`
	ToggleEnabled bool   `json:"toggle_enabled"`
}

// WorkerStartEvent is emitted when a fresh worker execution begins.
type WorkerStartEvent struct {
	BaseEvent
	Seq  uint64 `json:"seq"`
	Mode string `json:"mode"`
}

// OutcomeEvent is emitted when the controller processes a worker result.
type OutcomeEvent struct {
	BaseEvent
	Seq        uint64 `json:"seq"`
	Mode       string `json:"mode"`
	Outcome    string `json:"outcome"`
	Class      string `json:"class"`
	DurationMs int64  `json:"duration_ms"`
}

// LockoutStartEvent is emitted when the lockout countdown is armed.
type LockoutStartEvent struct {
	BaseEvent
	Deadline      time.Time `json:"deadline"`
	WrongAttempts int       `json:"wrong_attempts"`
}

// LockoutTickEvent is emitted for each countdown tick.
type LockoutTickEvent struct {
	BaseEvent
	SecondsRemaining int `json:"seconds_remaining"`
}

// LockoutEndEvent is emitted when a lockout expires or is canceled.
type LockoutEndEvent struct {
	BaseEvent
	Canceled bool `json:"canceled,omitempty"`
}

// AttemptsChangedEvent is emitted when the wrong-attempt count changes.
type AttemptsChangedEvent struct {
	BaseEvent
	WrongAttempts int `json:"wrong_attempts"`
	Remaining     int `json:"remaining"`
}

// Severity constants for error events.
const (
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// ErrorEvent is emitted for infrastructure failures that do not end the
// workflow, such as a failed credential slot update.
type ErrorEvent struct {
	BaseEvent
	Message  string            `json:"message"`
	Severity string            `json:"severity"`
	Context  map[string]string `json:"context,omitempty"`
}

// NewEvent creates a BaseEvent with the given type and source.
func NewEvent(eventType EventType, source string) BaseEvent {
	return BaseEvent{
		EventType: eventType,
		Time:      time.Now(),
		Src:       source,
	}
}

// NewWorkflowEvent creates a BaseEvent for the given workflow.
func NewWorkflowEvent(eventType EventType, workflowID string) BaseEvent {
	e := NewEvent(eventType, SourceInternal)
	e.WorkflowID = workflowID
	return e
}
