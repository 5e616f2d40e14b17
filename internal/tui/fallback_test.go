package tui

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/npratt/fingerlock/internal/events"
)

func TestIsTerminal_ReturnsBoolean(t *testing.T) {
	// The value depends on how the test is run.
	_ = isTerminal()
}

func TestTerminalSize_ReturnsInts(t *testing.T) {
	width, height := terminalSize()
	if width < 0 || height < 0 {
		t.Errorf("terminalSize returned negative values: %d, %d", width, height)
	}
}

func TestRunSimple_ExitsOnChannelClose(t *testing.T) {
	eventChan := make(chan events.Event)
	wf := &fakeWorkflow{}
	tui := New(eventChan, wf)

	done := make(chan error, 1)
	go func() {
		done <- tui.runSimpleTo(context.Background(), &bytes.Buffer{})
	}()

	close(eventChan)

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("runSimple returned error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("runSimple did not exit after channel close")
	}
	if gained, _, _ := wf.counts(); gained != 1 {
		t.Errorf("FocusGained called %d times, want 1", gained)
	}
}

func TestRunSimple_ExitsOnContextCancel(t *testing.T) {
	tui := New(make(chan events.Event), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := tui.runSimpleTo(ctx, &bytes.Buffer{}); err != nil {
		t.Errorf("runSimple returned error: %v", err)
	}
}

func TestRunSimple_PrintsUntilWorkflowEnd(t *testing.T) {
	eventChan := make(chan events.Event, 3)
	eventChan <- &events.WorkerStartEvent{BaseEvent: ev(events.EventWorkerStart), Seq: 1, Mode: "verify"}
	eventChan <- &events.LockoutTickEvent{BaseEvent: ev(events.EventLockoutTick), SecondsRemaining: 3}
	eventChan <- &events.WorkflowEndEvent{BaseEvent: ev(events.EventWorkflowEnd), Mode: "verify", Terminal: true, Accepted: true, Reason: "accepted"}

	var out bytes.Buffer
	tui := New(eventChan, &fakeWorkflow{})
	if err := tui.runSimpleTo(context.Background(), &out); err != nil {
		t.Fatalf("runSimple: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "worker #1 started (verify)") {
		t.Errorf("output missing worker start:\n%s", got)
	}
	if !strings.Contains(got, "lockout: 3s remaining") {
		t.Errorf("output missing tick:\n%s", got)
	}
	if lines := strings.Count(got, "\n"); lines != 3 {
		t.Errorf("printed %d lines, want 3:\n%s", lines, got)
	}
}
