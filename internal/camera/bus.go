// Package camera implements the streaming pipeline: per-source workers encode
// the freshest raw frame off the control loop's hot path and publish the
// result to in-process subscribers and TCP stream clients.
package camera

import (
	"sync"

	"hubd/internal/proto"
)

// Bus fans encoded frames out to subscribers. Delivery is best-effort: a
// subscriber whose buffer is full loses the frame rather than stalling the
// publisher. Publishers never block.
type Bus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// Subscription is one receiver on the bus. Frames arrives encoded frames;
// dropped counts frames lost to a full buffer.
type Subscription struct {
	bus     *Bus
	camera  string
	ch      chan proto.Frame
	dropped uint64

	mu     sync.Mutex
	closed bool
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Subscribe registers a receiver. camera filters to one source; "" receives
// every source. buffer is the per-subscriber queue depth.
func (b *Bus) Subscribe(camera string, buffer int) *Subscription {
	if buffer < 1 {
		buffer = 1
	}
	sub := &Subscription{bus: b, camera: camera, ch: make(chan proto.Frame, buffer)}
	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Publish delivers frame to every matching subscriber without blocking.
func (b *Bus) Publish(frame proto.Frame) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		if sub.camera != "" && sub.camera != frame.Camera {
			continue
		}
		select {
		case sub.ch <- frame:
			framesPublished.WithLabelValues(frame.Camera).Inc()
		default:
			sub.mu.Lock()
			sub.dropped++
			sub.mu.Unlock()
			framesDropped.WithLabelValues(frame.Camera).Inc()
		}
	}
}

// Subscribers returns the current receiver count.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Frames returns the receive channel. Closed when the subscription is closed.
func (s *Subscription) Frames() <-chan proto.Frame { return s.ch }

// Dropped returns the number of frames lost to a full buffer.
func (s *Subscription) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close removes the subscription from the bus and closes its channel.
func (s *Subscription) Close() {
	s.bus.mu.Lock()
	delete(s.bus.subs, s)
	s.bus.mu.Unlock()
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	s.mu.Unlock()
}
