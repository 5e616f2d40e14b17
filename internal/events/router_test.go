package events

import (
	"sync"
	"testing"
	"time"
)

func newTick(seconds int) *LockoutTickEvent {
	return &LockoutTickEvent{
		BaseEvent:        NewWorkflowEvent(EventLockoutTick, "wf-1"),
		SecondsRemaining: seconds,
	}
}

func TestNewRouter(t *testing.T) {
	tests := []struct {
		name string
		size int
		want int
	}{
		{"default buffer size", 0, DefaultBufferSize},
		{"negative buffer size uses default", -10, DefaultBufferSize},
		{"custom buffer size", 50, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(tt.size)
			if r.bufferSize != tt.want {
				t.Errorf("bufferSize = %d, want %d", r.bufferSize, tt.want)
			}
		})
	}
}

func TestRouterEmitSubscribe(t *testing.T) {
	t.Run("single subscriber receives event", func(t *testing.T) {
		r := NewRouter(10)
		defer r.Close()

		ch := r.Subscribe()
		r.Emit(newTick(29))

		select {
		case received := <-ch:
			tick, ok := received.(*LockoutTickEvent)
			if !ok {
				t.Fatalf("expected *LockoutTickEvent, got %T", received)
			}
			if tick.SecondsRemaining != 29 {
				t.Errorf("SecondsRemaining = %d, want 29", tick.SecondsRemaining)
			}
			if tick.Workflow() != "wf-1" {
				t.Errorf("Workflow() = %q, want wf-1", tick.Workflow())
			}
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for event")
		}
	})

	t.Run("every subscriber receives every event", func(t *testing.T) {
		r := NewRouter(10)
		defer r.Close()

		subs := []<-chan Event{r.Subscribe(), r.Subscribe(), r.Subscribe()}
		for i := 3; i > 0; i-- {
			r.Emit(newTick(i))
		}

		for _, ch := range subs {
			for want := 3; want > 0; want-- {
				select {
				case ev := <-ch:
					if got := ev.(*LockoutTickEvent).SecondsRemaining; got != want {
						t.Errorf("got tick %d, want %d", got, want)
					}
				case <-time.After(time.Second):
					t.Fatalf("timeout waiting for tick %d", want)
				}
			}
		}
	})
}

func TestRouterDropsWhenFull(t *testing.T) {
	r := NewRouter(10)
	defer r.Close()

	ch := r.SubscribeBuffered(2)
	for i := 0; i < 5; i++ {
		r.Emit(newTick(i))
	}

	if len(ch) != 2 {
		t.Errorf("buffered = %d, want 2", len(ch))
	}
	if r.Dropped() != 3 {
		t.Errorf("Dropped() = %d, want 3", r.Dropped())
	}
}

func TestRouterUnsubscribe(t *testing.T) {
	r := NewRouter(10)
	defer r.Close()

	ch := r.Subscribe()
	other := r.Subscribe()
	r.Unsubscribe(ch)

	if _, ok := <-ch; ok {
		t.Error("unsubscribed channel should be closed")
	}

	r.Emit(newTick(1))
	select {
	case <-other:
	case <-time.After(time.Second):
		t.Error("remaining subscriber missed event")
	}

	// Unknown and repeated unsubscribes are no-ops.
	r.Unsubscribe(ch)
	r.Unsubscribe(make(chan Event))
}

func TestRouterClose(t *testing.T) {
	r := NewRouter(10)
	ch := r.Subscribe()

	r.Close()
	r.Close()

	if _, ok := <-ch; ok {
		t.Error("channel should be closed after Close")
	}

	r.Emit(newTick(1))

	late := r.Subscribe()
	if _, ok := <-late; ok {
		t.Error("subscribe after Close should return a closed channel")
	}
}

func TestRouterConcurrentEmit(t *testing.T) {
	r := NewRouter(1000)
	defer r.Close()

	ch := r.Subscribe()

	var wg sync.WaitGroup
	for g := 0; g < 10; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				r.Emit(newTick(i))
			}
		}()
	}
	wg.Wait()

	if len(ch) != 500 {
		t.Errorf("received %d events, want 500", len(ch))
	}
}
