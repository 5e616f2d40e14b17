package events

import (
	"encoding/json"
	"log/slog"
)

type eventEnvelope struct {
	Type EventType `json:"type"`
}

// ParseEvent decodes one JSON line from the event log into a typed Event.
// Unknown types yield (nil, nil) so old readers tolerate new event kinds.
func ParseEvent(line []byte) (Event, error) {
	var envelope eventEnvelope
	if err := json.Unmarshal(line, &envelope); err != nil {
		return nil, err
	}

	var ev Event
	switch envelope.Type {
	case EventWorkflowStart:
		ev = &WorkflowStartEvent{}
	case EventWorkflowEnd:
		ev = &WorkflowEndEvent{}
	case EventStateChanged:
		ev = &StateChangedEvent{}
	case EventSignal:
		ev = &SignalEvent{}
	case EventWorkerStart:
		ev = &WorkerStartEvent{}
	case EventOutcome:
		ev = &OutcomeEvent{}
	case EventLockoutStart:
		ev = &LockoutStartEvent{}
	case EventLockoutTick:
		ev = &LockoutTickEvent{}
	case EventLockoutEnd:
		ev = &LockoutEndEvent{}
	case EventAttemptsChanged:
		ev = &AttemptsChangedEvent{}
	case EventError:
		ev = &ErrorEvent{}
	default:
		slog.Debug("unknown event type", "type", envelope.Type)
		return nil, nil
	}

	if err := json.Unmarshal(line, ev); err != nil {
		return nil, err
	}
	return ev, nil
}
