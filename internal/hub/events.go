package hub

// Event records a mode-lifecycle occurrence: a transition, a fail-safe trip,
// shutdown. Minimal and stable: name plus key/values.
type Event struct {
	Name   string
	Fields map[string]any
}

// EventPublisher receives hub events. Implementations must be lightweight
// and non-blocking; Publish must not panic.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
