package hub

import "sync"

// MemoryPublisher collects published events in memory. Tests use it to assert
// on the hub's transition and fail-safe event stream; deployments wire a real
// sink instead.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryPublisher returns an empty in-memory event sink.
func NewMemoryPublisher() *MemoryPublisher { return &MemoryPublisher{} }

// Publish appends e to the captured stream.
func (p *MemoryPublisher) Publish(e Event) {
	p.mu.Lock()
	p.events = append(p.events, e)
	p.mu.Unlock()
}

// Events returns a copy of everything published so far.
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Event, len(p.events))
	copy(out, p.events)
	return out
}

// Seen reports whether an event with the given name was published.
func (p *MemoryPublisher) Seen(name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e.Name == name {
			return true
		}
	}
	return false
}
