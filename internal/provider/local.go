package provider

import (
	"context"

	"hubd/internal/proto"
)

// Local wraps an in-process device as a provider. Connect/Disconnect map
// straight onto the device lifecycle; liveness is trivially true while
// connected.
type Local struct {
	name      string
	device    Device
	connected bool
}

// NewLocal builds a local provider around a registered device.
func NewLocal(name string, device Device) *Local {
	return &Local{name: name, device: device}
}

func (l *Local) Name() string      { return l.name }
func (l *Local) WantsFrames() bool { return false }

func (l *Local) Connect(ctx context.Context) error {
	if l.connected {
		return nil
	}
	if err := l.device.Connect(); err != nil {
		return err
	}
	l.connected = true
	return nil
}

func (l *Local) Disconnect() error {
	if !l.connected {
		return nil
	}
	l.connected = false
	return l.device.Disconnect()
}

func (l *Local) IsAlive(ctx context.Context) error {
	if !l.connected {
		return errNotConnected{name: l.name}
	}
	return nil
}

func (l *Local) ProduceAction(ctx context.Context, obs proto.Observation) (proto.Action, error) {
	return l.device.ReadAction(ctx)
}

type errNotConnected struct{ name string }

func (e errNotConnected) Error() string { return e.name + ": not connected" }
