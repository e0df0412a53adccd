// Package provider defines the command-source capability: anything that can
// turn an observation into an action, whether an in-process device or a
// network peer. Providers are constructed once at startup by the Registry;
// there is no runtime discovery or code loading.
package provider

import (
	"context"

	"hubd/internal/proto"
)

// Provider is a source of actions given observations.
//
// Connect is idempotent; calling it on a connected provider is a no-op.
// IsAlive performs a lightweight liveness check bounded by the caller's
// context. ProduceAction must honor ctx and never block past its deadline.
type Provider interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect() error
	IsAlive(ctx context.Context) error
	ProduceAction(ctx context.Context, obs proto.Observation) (proto.Action, error)
	// WantsFrames reports whether this provider consumes camera frames in
	// its observations. Teleop rigs don't; policy servers do.
	WantsFrames() bool
}

// Device is an in-process action source (joystick driver, keyboard rig).
// Binaries register concrete devices by name; local providers wrap them.
type Device interface {
	Connect() error
	Disconnect() error
	ReadAction(ctx context.Context) (proto.Action, error)
}
