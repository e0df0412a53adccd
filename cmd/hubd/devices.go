package main

import (
	"context"
	"fmt"
	"math"
	"time"

	"hubd/internal/provider"
	"hubd/internal/proto"
)

// builtinDevices returns the in-process devices local providers can bind to.
// Real installations register their driver here; the sim arm lets the full
// stack run without hardware.
func builtinDevices() map[string]provider.Device {
	return map[string]provider.Device{
		"sim-arm": newSimArm(),
	}
}

// simArm replays a slow sinusoid across four joints, standing in for a
// leader-arm rig.
type simArm struct {
	connected bool
	start     time.Time
}

func newSimArm() *simArm { return &simArm{} }

func (a *simArm) Connect() error {
	a.connected = true
	a.start = time.Now()
	return nil
}

func (a *simArm) Disconnect() error {
	a.connected = false
	return nil
}

func (a *simArm) ReadAction(ctx context.Context) (proto.Action, error) {
	if !a.connected {
		return proto.Action{}, fmt.Errorf("sim arm is not connected")
	}
	t := time.Since(a.start).Seconds()
	return proto.NewAction(map[string]float64{
		"shoulder": 0.4 * math.Sin(t/3),
		"elbow":    0.3 * math.Sin(t/2),
		"wrist":    0.2 * math.Sin(t),
		"gripper":  0.5 + 0.5*math.Sin(t/4),
	}), nil
}
