package events

import (
	"context"
	"sync"

	"github.com/Flora-Ebah/kairos-backend/internal/ports/out/events"
)

// Recorder is an in-memory events.Publisher that keeps every published event.
// It is safe for concurrent use.
type Recorder struct {
	mu     sync.Mutex
	events []events.Event

	// Err, when set, is returned by Publish after the event is recorded.
	Err error
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(ctx context.Context, e events.Event) error {
	_ = ctx
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.Err
}

// Events returns a copy of the published events in order.
func (r *Recorder) Events() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

// Kinds returns the kinds of the published events in order.
func (r *Recorder) Kinds() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]events.Kind, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Kind)
	}
	return out
}

// Discard is a Publisher that drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, events.Event) error { return nil }
