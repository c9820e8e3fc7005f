package testutil

import (
	"sync"

	"github.com/roach88/crid/internal/registry"
)

// EventRecorder collects committed events, e.g. as an engine subscriber:
//
//	rec := testutil.NewEventRecorder()
//	eng.Subscribe(rec.Record)
//
// Thread-safety: all methods are safe for concurrent use.
type EventRecorder struct {
	mu     sync.Mutex
	events []registry.Event
}

func NewEventRecorder() *EventRecorder {
	return &EventRecorder{}
}

// Record appends ev.
func (r *EventRecorder) Record(ev registry.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

// Events returns a copy of everything recorded, in record order.
func (r *EventRecorder) Events() []registry.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]registry.Event, len(r.events))
	copy(out, r.events)
	return out
}

// Len returns the number of recorded events.
func (r *EventRecorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

// Kinds returns the kinds of the recorded events, in order.
func (r *EventRecorder) Kinds() []registry.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]registry.EventKind, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Kind
	}
	return out
}

// Reset discards everything recorded.
func (r *EventRecorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
