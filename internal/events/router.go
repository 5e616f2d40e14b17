package events

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the default channel buffer size for subscribers.
const DefaultBufferSize = 100

// Router fans events out from the controller to any number of subscribers.
// Delivery never blocks the producer: a full subscriber misses the event.
type Router struct {
	mu          sync.RWMutex
	subscribers []chan Event
	bufferSize  int
	closed      bool
	dropped     atomic.Uint64
	logger      *slog.Logger
}

// NewRouter creates a router. A non-positive bufferSize selects
// DefaultBufferSize.
func NewRouter(bufferSize int) *Router {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	return &Router{
		bufferSize: bufferSize,
		logger:     slog.Default(),
	}
}

// SetLogger replaces the logger used for drop warnings.
func (r *Router) SetLogger(logger *slog.Logger) {
	if logger == nil {
		return
	}
	r.mu.Lock()
	r.logger = logger
	r.mu.Unlock()
}

// Emit publishes an event to all subscribers. It is safe to call
// concurrently and becomes a no-op after Close.
func (r *Router) Emit(event Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return
	}

	for _, ch := range r.subscribers {
		select {
		case ch <- event:
		default:
			r.dropped.Add(1)
			r.logger.Warn("event dropped: subscriber channel full",
				"event_type", event.Type(),
				"workflow_id", event.Workflow(),
			)
		}
	}
}

// Subscribe returns a channel with the router's default buffer size. The
// channel is closed by Unsubscribe or Close.
func (r *Router) Subscribe() <-chan Event {
	return r.SubscribeBuffered(r.bufferSize)
}

// SubscribeBuffered returns a channel with the given buffer size.
func (r *Router) SubscribeBuffered(size int) <-chan Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		ch := make(chan Event)
		close(ch)
		return ch
	}

	ch := make(chan Event, size)
	r.subscribers = append(r.subscribers, ch)
	return ch
}

// Unsubscribe removes a subscription and closes its channel. Unknown
// channels are ignored.
func (r *Router) Unsubscribe(ch <-chan Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, sub := range r.subscribers {
		if sub == ch {
			r.subscribers = append(r.subscribers[:i], r.subscribers[i+1:]...)
			close(sub)
			return
		}
	}
}

// Dropped returns the number of deliveries skipped because a subscriber was
// full.
func (r *Router) Dropped() uint64 {
	return r.dropped.Load()
}

// Close closes every subscriber channel. It is safe to call more than once.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	for _, ch := range r.subscribers {
		close(ch)
	}
	r.subscribers = nil
}
