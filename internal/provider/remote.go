package provider

import (
	"context"
	"fmt"
	"sync"
	"time"

	"hubd/internal/proto"
	"hubd/internal/transport"
)

// actionRequest is the payload of a get_action exchange.
type actionRequest struct {
	Observation proto.Observation `cbor:"observation"`
}

type actionReply struct {
	Action proto.Action `cbor:"action"`
}

// Remote is a provider reachable over the request/reply fabric: a teleop
// server on another machine or the AI policy endpoint. One get_action
// exchange per ProduceAction call, bounded by the configured timeout.
type Remote struct {
	name    string
	address string
	timeout time.Duration
	token   string
	frames  bool

	mu     sync.Mutex
	client *transport.Client
}

// NewRemote builds a remote provider. wantFrames selects whether the peer
// receives full observations (policy servers) or numeric-only (teleop rigs).
func NewRemote(name, address string, timeout time.Duration, token string, wantFrames bool) *Remote {
	return &Remote{name: name, address: address, timeout: timeout, token: token, frames: wantFrames}
}

func (r *Remote) Name() string      { return r.name }
func (r *Remote) WantsFrames() bool { return r.frames }

// Connect establishes and caches the underlying connection by performing a
// ping. Idempotent: an already-live client is reused.
func (r *Remote) Connect(ctx context.Context) error {
	r.mu.Lock()
	if r.client == nil {
		r.client = transport.NewClient(r.address, r.timeout, r.token)
	}
	c := r.client
	r.mu.Unlock()
	if err := c.Ping(ctx); err != nil {
		return fmt.Errorf("connect %s (%s): %w", r.name, r.address, err)
	}
	return nil
}

// Disconnect releases the cached connection. The provider may be reconnected
// later.
func (r *Remote) Disconnect() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	return err
}

// IsAlive pings the peer within the provider timeout.
func (r *Remote) IsAlive(ctx context.Context) error {
	c := r.currentClient()
	if c == nil {
		return fmt.Errorf("%s: not connected", r.name)
	}
	return c.Ping(ctx)
}

// ProduceAction performs one get_action request/reply exchange.
func (r *Remote) ProduceAction(ctx context.Context, obs proto.Observation) (proto.Action, error) {
	c := r.currentClient()
	if c == nil {
		return proto.Action{}, fmt.Errorf("%s: not connected", r.name)
	}
	var rep actionReply
	if err := c.Call(ctx, "get_action", actionRequest{Observation: obs}, &rep); err != nil {
		return proto.Action{}, err
	}
	return rep.Action, nil
}

func (r *Remote) currentClient() *transport.Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.client
}

// IsTimeout reports whether a ProduceAction error was a deadline overrun
// rather than a hard failure. Both count against the missed-action budget;
// the distinction only matters for logging.
func IsTimeout(err error) bool { return transport.IsTimeout(err) }
