package control

import (
	"context"
	"math"
	"sync"
	"time"

	"hubd/internal/proto"
)

// Hardware abstracts the robot below the control loop: read a fused
// observation, apply one action. Implementations own their bus or driver
// handles; the loop calls them from a single goroutine.
type Hardware interface {
	Connect(ctx context.Context) error
	Disconnect() error
	// ReadObservation returns the current state vector and any camera frames
	// captured alongside it.
	ReadObservation(ctx context.Context) (proto.Observation, error)
	// ApplyAction drives the actuators. A returned error means the robot can
	// no longer be commanded and the loop must stop.
	ApplyAction(ctx context.Context, act proto.Action) error
	// NeutralAction is the safe action applied while idle.
	NeutralAction() proto.Action
}

// SimHardware is a software robot for development and tests: joints move
// toward commanded positions with first-order lag, and an optional synthetic
// camera renders a test pattern. Safe for concurrent reads against the loop's
// writes.
type SimHardware struct {
	mu       sync.Mutex
	joints   map[string]float64
	targets  map[string]float64
	cameras  []string
	camW     int
	camH     int
	lastStep time.Time
}

// NewSimHardware creates a simulated robot with the given joint names at
// position zero. Camera names, if any, each produce a 320x240 synthetic feed.
func NewSimHardware(joints []string, cameras []string) *SimHardware {
	s := &SimHardware{
		joints:  make(map[string]float64, len(joints)),
		targets: make(map[string]float64, len(joints)),
		cameras: cameras,
		camW:    320,
		camH:    240,
	}
	for _, j := range joints {
		s.joints[j] = 0
		s.targets[j] = 0
	}
	return s
}

func (s *SimHardware) Connect(ctx context.Context) error {
	s.mu.Lock()
	s.lastStep = time.Now()
	s.mu.Unlock()
	return nil
}

func (s *SimHardware) Disconnect() error { return nil }

func (s *SimHardware) ReadObservation(ctx context.Context) (proto.Observation, error) {
	s.mu.Lock()
	s.step()
	state := make(map[string]float64, len(s.joints))
	for j, v := range s.joints {
		state[j] = v
	}
	s.mu.Unlock()

	var frames map[string]proto.RawFrame
	if len(s.cameras) > 0 {
		frames = make(map[string]proto.RawFrame, len(s.cameras))
		for _, cam := range s.cameras {
			frames[cam] = s.renderFrame()
		}
	}
	return proto.NewObservation(state, frames), nil
}

func (s *SimHardware) ApplyAction(ctx context.Context, act proto.Action) error {
	s.mu.Lock()
	for j, v := range act.Values {
		if _, ok := s.targets[j]; ok {
			s.targets[j] = v
		}
	}
	s.mu.Unlock()
	return nil
}

func (s *SimHardware) NeutralAction() proto.Action {
	s.mu.Lock()
	values := make(map[string]float64, len(s.joints))
	for j := range s.joints {
		values[j] = 0
	}
	s.mu.Unlock()
	return proto.NewAction(values)
}

// step advances joints toward their targets with an exponential approach.
func (s *SimHardware) step() {
	now := time.Now()
	dt := now.Sub(s.lastStep).Seconds()
	s.lastStep = now
	k := 1 - math.Exp(-6*dt)
	for j, v := range s.joints {
		s.joints[j] = v + (s.targets[j]-v)*k
	}
}

// renderFrame draws a moving gradient so streams visibly update.
func (s *SimHardware) renderFrame() proto.RawFrame {
	w, h := s.camW, s.camH
	phase := byte(time.Now().UnixMilli() / 16)
	pixels := make([]byte, w*h*3)
	for y := 0; y < h; y++ {
		row := y * w * 3
		for x := 0; x < w; x++ {
			i := row + x*3
			pixels[i] = byte(x) + phase
			pixels[i+1] = byte(y)
			pixels[i+2] = phase
		}
	}
	return proto.RawFrame{Width: w, Height: h, Pixels: pixels}
}
