package tui

import (
	"bytes"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"

	"github.com/npratt/fingerlock/internal/controller"
	"github.com/npratt/fingerlock/internal/events"
	"github.com/npratt/fingerlock/internal/testutil"
	"github.com/npratt/fingerlock/internal/viewmodel"
)

// TestTUILifecycleSmoke runs the program headlessly: focus starts the
// workflow, events update the view and the workflow end quits.
func TestTUILifecycleSmoke(t *testing.T) {
	eventChan := make(chan events.Event, 10)
	wf := &fakeWorkflow{snapshot: viewmodel.Signal{Header: "Touch the fingerprint sensor", ToggleEnabled: true}}

	m := newModel(eventChan, wf, "verify", 4, false)
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(80, 24))

	tm.Send(tea.FocusMsg{})
	testutil.WaitFor(t, 2*time.Second, "FocusGained", func() bool {
		gained, _, _ := wf.counts()
		return gained == 1
	})

	eventChan <- &events.StateChangedEvent{BaseEvent: ev(events.EventStateChanged), From: "idle", To: "running"}
	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("waiting for finger"))
	}, teatest.WithDuration(2*time.Second))

	eventChan <- &events.SignalEvent{BaseEvent: ev(events.EventSignal), Header: controller.HeaderAccepted, ToggleChecked: true, ToggleEnabled: true}
	eventChan <- &events.WorkflowEndEvent{BaseEvent: ev(events.EventWorkflowEnd), Mode: "verify", Terminal: true, Accepted: true, Reason: "accepted"}

	fm := tm.FinalModel(t, teatest.WithFinalTimeout(5*time.Second))
	final, ok := fm.(model)
	if !ok {
		t.Fatalf("final model type %T", fm)
	}
	if !final.done || !final.accepted {
		t.Errorf("done=%v accepted=%v", final.done, final.accepted)
	}
	if final.signal.Header != controller.HeaderAccepted {
		t.Errorf("header = %q", final.signal.Header)
	}
}

// TestTUIDismissFlow checks that q dismisses and the program keeps running
// until the workflow reports its end.
func TestTUIDismissFlow(t *testing.T) {
	eventChan := make(chan events.Event, 10)
	wf := &fakeWorkflow{}

	m := newModel(eventChan, wf, "enroll", 4, false)
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(80, 24))

	tm.Send(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	testutil.WaitFor(t, 2*time.Second, "Dismiss", func() bool {
		_, _, dismiss := wf.counts()
		return dismiss == 1
	})

	eventChan <- &events.WorkflowEndEvent{BaseEvent: ev(events.EventWorkflowEnd), Mode: "enroll", Terminal: true, Reason: "dismissed"}

	fm := tm.FinalModel(t, teatest.WithFinalTimeout(5*time.Second))
	final := fm.(model)
	if !final.done || final.accepted {
		t.Errorf("done=%v accepted=%v", final.done, final.accepted)
	}
	if final.reason != "dismissed" {
		t.Errorf("reason = %q, want dismissed", final.reason)
	}

	out := tm.FinalOutput(t, teatest.WithFinalTimeout(5*time.Second))
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(out)
	if !strings.Contains(buf.String(), "fingerlock") {
		t.Error("output never rendered the title")
	}
}
