package manager

import "clinicd/pkg/types"

// Event represents a manager lifecycle event.
// Minimal and stable: name + category and optional fields via key/values.
type Event struct {
	Name     string
	Category types.Category
	Fields   map[string]any
}

// Event names.
const (
	EventLoadStart  = "load_start"
	EventLoadReady  = "load_ready"
	EventLoadFailed = "load_failed"
	EventTooBusy    = "too_busy"
)

// EventPublisher receives events from the manager. Implementations should be
// lightweight and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}

// Publishers fans an event out to several publishers in order.
type Publishers []EventPublisher

func (ps Publishers) Publish(e Event) {
	for _, p := range ps {
		if p != nil {
			p.Publish(e)
		}
	}
}
