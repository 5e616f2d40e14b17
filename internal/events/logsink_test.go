package events

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func startLogSink(t *testing.T, path string) (*LogSink, chan Event, context.CancelFunc) {
	t.Helper()
	sink := NewLogSink(path, Rotation{MaxSizeMB: 1, MaxBackups: 2})
	events := make(chan Event, 10)
	ctx, cancel := context.WithCancel(context.Background())
	if err := sink.Start(ctx, events); err != nil {
		cancel()
		t.Fatalf("Start failed: %v", err)
	}
	return sink, events, cancel
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	return lines
}

func TestLogSinkCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "events.jsonl")

	sink, events, cancel := startLogSink(t, path)
	close(events)
	_ = sink.Stop()
	cancel()

	if _, err := os.Stat(filepath.Dir(path)); err != nil {
		t.Errorf("directory not created: %v", err)
	}
}

func TestLogSinkWritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink, events, cancel := startLogSink(t, path)
	defer cancel()

	events <- &WorkflowStartEvent{
		BaseEvent: NewWorkflowEvent(EventWorkflowStart, "wf-1"),
		Mode:      "verify",
		Threshold: 4,
	}
	events <- &OutcomeEvent{
		BaseEvent: NewWorkflowEvent(EventOutcome, "wf-1"),
		Seq:       1,
		Mode:      "verify",
		Outcome:   "credential_locked",
		Class:     "counted",
	}
	close(events)
	if err := sink.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}

	lines := readLines(t, path)
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}

	first, err := ParseEvent([]byte(lines[0]))
	if err != nil {
		t.Fatalf("parse line 1: %v", err)
	}
	if first.Type() != EventWorkflowStart || first.Workflow() != "wf-1" {
		t.Errorf("line 1 = %s/%s", first.Type(), first.Workflow())
	}

	second, err := ParseEvent([]byte(lines[1]))
	if err != nil {
		t.Fatalf("parse line 2: %v", err)
	}
	outcome, ok := second.(*OutcomeEvent)
	if !ok {
		t.Fatalf("line 2 type = %T", second)
	}
	if outcome.Outcome != "credential_locked" {
		t.Errorf("Outcome = %q", outcome.Outcome)
	}
}

func TestLogSinkRotatesExistingLogOnStart(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "events.jsonl")
	if err := os.WriteFile(path, []byte(`{"type":"old"}`+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	sink, events, cancel := startLogSink(t, path)
	defer cancel()
	events <- newTick(3)
	close(events)
	_ = sink.Stop()

	lines := readLines(t, path)
	if len(lines) != 1 || strings.Contains(lines[0], `"old"`) {
		t.Errorf("fresh log = %v, want only the new event", lines)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) < 2 {
		t.Errorf("expected a rotated backup next to the log, found %d entries", len(entries))
	}
}

func TestLogSinkStopsOnContextCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")
	sink, _, cancel := startLogSink(t, path)

	cancel()

	done := make(chan error, 1)
	go func() { done <- sink.Stop() }()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return after cancel")
	}
	if sink.Path() != path {
		t.Errorf("Path() = %q", sink.Path())
	}
}
