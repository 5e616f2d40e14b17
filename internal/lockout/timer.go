// Package lockout provides the countdown timer that runs while verification
// attempts are suspended.
package lockout

import (
	"sync"
	"sync/atomic"
	"time"
)

// EventKind distinguishes countdown ticks from the terminal expiry.
type EventKind int

const (
	// EventTick reports the time left until the deadline.
	EventTick EventKind = iota
	// EventExpired is delivered once when the deadline has passed.
	EventExpired
)

func (k EventKind) String() string {
	if k == EventExpired {
		return "expired"
	}
	return "tick"
}

// Event is delivered by a Timer.
type Event struct {
	TimerID   uint64
	Kind      EventKind
	Remaining time.Duration
}

// SecondsRemaining returns the whole seconds left, truncated.
func (e Event) SecondsRemaining() int {
	if e.Remaining <= 0 {
		return 0
	}
	return int(e.Remaining / time.Second)
}

var nextID atomic.Uint64

// Timer delivers tick events on C until its deadline, then one expired event.
// Events are unbuffered: the timer waits for the owner to receive each one,
// so ticks and expiry are totally ordered with the owner's other work.
type Timer struct {
	id       uint64
	deadline time.Time
	interval time.Duration

	c        chan Event
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// Arm starts a timer that sends a tick immediately and every interval
// afterwards while the deadline is in the future, then EventExpired.
func Arm(deadline time.Time, interval time.Duration) *Timer {
	if interval <= 0 {
		interval = time.Second
	}
	t := &Timer{
		id:       nextID.Add(1),
		deadline: deadline,
		interval: interval,
		c:        make(chan Event),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go t.run()
	return t
}

// C returns the event channel. A nil timer returns a nil channel, which
// blocks forever in a select.
func (t *Timer) C() <-chan Event {
	if t == nil {
		return nil
	}
	return t.c
}

// ID identifies the timer in the events it delivers.
func (t *Timer) ID() uint64 {
	if t == nil {
		return 0
	}
	return t.id
}

// Deadline returns the time the timer expires.
func (t *Timer) Deadline() time.Time {
	return t.deadline
}

// Done is closed once the timer goroutine has exited.
func (t *Timer) Done() <-chan struct{} {
	return t.done
}

// Cancel stops the timer and waits for its goroutine to exit; no event is
// sent after Cancel returns. It is safe on a nil, expired or canceled timer.
func (t *Timer) Cancel() {
	if t == nil {
		return
	}
	t.stopOnce.Do(func() { close(t.stop) })
	<-t.done
}

func (t *Timer) run() {
	defer close(t.done)

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		remaining := time.Until(t.deadline)
		if remaining <= 0 {
			t.send(Event{TimerID: t.id, Kind: EventExpired})
			return
		}
		if !t.send(Event{TimerID: t.id, Kind: EventTick, Remaining: remaining}) {
			return
		}

		var expiry <-chan time.Time
		if remaining < t.interval {
			expiry = time.After(remaining)
		}
		select {
		case <-t.stop:
			return
		case <-ticker.C:
		case <-expiry:
		}
	}
}

// send blocks until ev is received or the timer is stopped.
func (t *Timer) send(ev Event) bool {
	select {
	case <-t.stop:
		return false
	default:
	}
	select {
	case t.c <- ev:
		return true
	case <-t.stop:
		return false
	}
}
