package provider

import (
	"context"

	"hubd/internal/proto"
)

// Idle is a provider that replays a fixed action, or holds the observed pose
// when no values are configured. Used for hold poses configured as selectable
// sources; the control loop's built-in Idle mode needs no provider at all.
type Idle struct {
	name   string
	action proto.Action
}

// NewIdle builds an idle provider. With nil values it mirrors each
// observation's state back as the action, holding the current pose.
func NewIdle(name string, values map[string]float64) *Idle {
	return &Idle{name: name, action: proto.Action{Values: values}}
}

func (p *Idle) Name() string                      { return p.name }
func (p *Idle) WantsFrames() bool                 { return false }
func (p *Idle) Connect(ctx context.Context) error { return nil }
func (p *Idle) Disconnect() error                 { return nil }
func (p *Idle) IsAlive(ctx context.Context) error { return nil }

func (p *Idle) ProduceAction(ctx context.Context, obs proto.Observation) (proto.Action, error) {
	if p.action.Empty() {
		held := make(map[string]float64, len(obs.State))
		for k, v := range obs.State {
			held[k] = v
		}
		return proto.NewAction(held), nil
	}
	return p.action.Clone(), nil
}
