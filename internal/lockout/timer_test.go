package lockout

import (
	"testing"
	"time"
)

// collect reads events from the timer until it expires or the timeout passes.
func collect(t *testing.T, tm *Timer, timeout time.Duration) []Event {
	t.Helper()
	var got []Event
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-tm.C():
			got = append(got, ev)
			if ev.Kind == EventExpired {
				return got
			}
		case <-deadline:
			t.Fatalf("timer did not expire within %v (events: %v)", timeout, got)
			return got
		}
	}
}

func TestTimer_TicksThenExpires(t *testing.T) {
	tm := Arm(time.Now().Add(120*time.Millisecond), 30*time.Millisecond)
	defer tm.Cancel()

	events := collect(t, tm, 2*time.Second)

	if len(events) < 3 {
		t.Fatalf("expected at least 2 ticks and an expiry, got %d events", len(events))
	}
	for i, ev := range events[:len(events)-1] {
		if ev.Kind != EventTick {
			t.Errorf("event %d kind = %v, want tick", i, ev.Kind)
		}
		if ev.TimerID != tm.ID() {
			t.Errorf("event %d timer id = %d, want %d", i, ev.TimerID, tm.ID())
		}
		if i > 0 && ev.Remaining > events[i-1].Remaining {
			t.Errorf("remaining increased: %v -> %v", events[i-1].Remaining, ev.Remaining)
		}
	}

	select {
	case <-tm.Done():
	case <-time.After(time.Second):
		t.Fatal("timer goroutine did not exit after expiry")
	}
}

func TestTimer_ExactlyOneExpiry(t *testing.T) {
	tm := Arm(time.Now().Add(20*time.Millisecond), 5*time.Millisecond)
	collect(t, tm, time.Second)

	select {
	case ev := <-tm.C():
		t.Fatalf("unexpected event after expiry: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimer_PastDeadlineExpiresImmediately(t *testing.T) {
	tm := Arm(time.Now().Add(-time.Second), time.Second)
	events := collect(t, tm, time.Second)

	if len(events) != 1 || events[0].Kind != EventExpired {
		t.Fatalf("expected a single expiry, got %+v", events)
	}
}

func TestTimer_CancelStopsEvents(t *testing.T) {
	tm := Arm(time.Now().Add(time.Hour), 10*time.Millisecond)

	first := <-tm.C()
	if first.Kind != EventTick {
		t.Fatalf("first event = %v, want tick", first.Kind)
	}

	tm.Cancel()

	select {
	case <-tm.Done():
	default:
		t.Fatal("Done not closed after Cancel returned")
	}

	select {
	case ev := <-tm.C():
		t.Fatalf("event after cancel: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTimer_CancelIsIdempotent(t *testing.T) {
	t.Run("cancel twice", func(t *testing.T) {
		tm := Arm(time.Now().Add(time.Hour), time.Second)
		tm.Cancel()
		tm.Cancel()
	})

	t.Run("cancel after expiry", func(t *testing.T) {
		tm := Arm(time.Now().Add(10*time.Millisecond), 5*time.Millisecond)
		collect(t, tm, time.Second)
		tm.Cancel()
		tm.Cancel()
	})

	t.Run("cancel nil timer", func(t *testing.T) {
		var tm *Timer
		tm.Cancel()
		if tm.C() != nil {
			t.Error("nil timer should return nil channel")
		}
		if tm.ID() != 0 {
			t.Error("nil timer should have id 0")
		}
	})
}

func TestEvent_SecondsRemaining(t *testing.T) {
	tests := []struct {
		remaining time.Duration
		want      int
	}{
		{30 * time.Second, 30},
		{29999 * time.Millisecond, 29},
		{999 * time.Millisecond, 0},
		{0, 0},
		{-time.Second, 0},
	}
	for _, tt := range tests {
		got := Event{Remaining: tt.remaining}.SecondsRemaining()
		if got != tt.want {
			t.Errorf("SecondsRemaining(%v) = %d, want %d", tt.remaining, got, tt.want)
		}
	}
}

func TestArm_UniqueIDs(t *testing.T) {
	a := Arm(time.Now().Add(time.Hour), time.Second)
	b := Arm(time.Now().Add(time.Hour), time.Second)
	defer a.Cancel()
	defer b.Cancel()

	if a.ID() == b.ID() {
		t.Errorf("timers share id %d", a.ID())
	}
}
