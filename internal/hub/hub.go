package hub

import (
	"context"

	"github.com/rs/zerolog"

	"hubd/internal/proto"
	"hubd/internal/transport"
	"hubd/pkg/types"
)

// Hub is the synchronous request/reply front end. Each inbound message is
// decoded into the command vocabulary and handed to the Manager; the reply
// mirrors the outcome on the same request. The hub holds no mutable state of
// its own and performs no actuation.
type Hub struct {
	manager *Manager
	status  func() types.StatusResponse
	log     zerolog.Logger
}

// commandReply is the success payload mirrored back to the caller.
type commandReply struct {
	Status string `cbor:"status"`
}

// NewHub registers the hub's endpoints on the transport server. statusFn
// assembles the status snapshot (mode, session, loop counters); nil disables
// the status endpoint.
func NewHub(server *transport.Server, manager *Manager, statusFn func() types.StatusResponse, log zerolog.Logger) *Hub {
	h := &Hub{manager: manager, status: statusFn, log: log}
	server.Handle("command", h.handleCommand)
	if statusFn != nil {
		server.Handle("status", func(proto.RawMessage) (any, error) {
			return statusFn(), nil
		})
	}
	return h
}

func (h *Hub) handleCommand(data proto.RawMessage) (any, error) {
	var body map[string]any
	if err := proto.Unmarshal(data, &body); err != nil {
		commandsTotal.WithLabelValues("undecodable", "error").Inc()
		return nil, ErrMalformedCommand("request body is not a map: " + err.Error())
	}
	cmd, err := DecodeCommand(body)
	if err != nil {
		commandsTotal.WithLabelValues("undecodable", "error").Inc()
		h.log.Warn().Err(err).Msg("rejected command")
		return nil, err
	}
	if err := h.manager.Transition(context.Background(), cmd); err != nil {
		commandsTotal.WithLabelValues(string(cmd.Kind), "error").Inc()
		h.log.Warn().Err(err).Str("command", string(cmd.Kind)).Msg("transition failed")
		return nil, err
	}
	commandsTotal.WithLabelValues(string(cmd.Kind), "ok").Inc()
	return commandReply{Status: "OK"}, nil
}
