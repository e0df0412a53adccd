package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"hubd/internal/proto"
)

// Handler serves one endpoint call. The returned value is CBOR-encoded into
// the reply; returning an error sends an error reply instead.
type Handler func(data proto.RawMessage) (any, error)

// Server accepts request/reply connections and dispatches calls to named
// endpoints. Requests on a single connection are handled strictly in order;
// connections are independent of each other.
type Server struct {
	listener net.Listener
	token    string
	log      zerolog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
}

// NewServer listens on address (use ":0" for an ephemeral port in tests).
// If token is non-empty, requests must carry a matching token.
func NewServer(address, token string, log zerolog.Logger) (*Server, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	s := &Server{
		listener: listener,
		token:    token,
		log:      log,
		handlers: make(map[string]Handler),
		conns:    make(map[net.Conn]struct{}),
	}
	s.Handle("ping", func(proto.RawMessage) (any, error) {
		return map[string]string{"status": "ok"}, nil
	})
	return s, nil
}

// Address returns the bound address in "host:port" form.
func (s *Server) Address() string { return s.listener.Addr().String() }

// Handle registers a handler for an endpoint name. Registration happens at
// startup, before Serve; later calls replace the previous handler.
func (s *Server) Handle(endpoint string, h Handler) {
	s.mu.Lock()
	s.handlers[endpoint] = h
	s.mu.Unlock()
}

// Serve accepts connections until ctx is cancelled or Close is called.
func (s *Server) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.Close()
	}()
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if ctx.Err() != nil || s.isClosed() {
				return nil
			}
			return err
		}
		s.track(conn)
		go s.serveConn(conn)
	}
}

// Close stops the listener and tears down live connections.
func (s *Server) Close() error {
	s.connMu.Lock()
	if s.closed {
		s.connMu.Unlock()
		return nil
	}
	s.closed = true
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = make(map[net.Conn]struct{})
	s.connMu.Unlock()
	return s.listener.Close()
}

func (s *Server) isClosed() bool {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	return s.closed
}

func (s *Server) track(conn net.Conn) {
	s.connMu.Lock()
	s.conns[conn] = struct{}{}
	s.connMu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.connMu.Lock()
	delete(s.conns, conn)
	s.connMu.Unlock()
}

func (s *Server) serveConn(conn net.Conn) {
	defer func() {
		conn.Close()
		s.untrack(conn)
	}()
	for {
		var req request
		if err := readFrame(conn, &req); err != nil {
			// EOF and reset are the normal ends of a connection.
			if !errors.Is(err, net.ErrClosed) {
				s.log.Debug().Err(err).Msg("connection closed")
			}
			return
		}
		if err := writeFrame(conn, s.dispatch(req)); err != nil {
			s.log.Debug().Err(err).Str("endpoint", req.Endpoint).Msg("reply write failed")
			return
		}
	}
}

func (s *Server) dispatch(req request) reply {
	if s.token != "" && req.Token != s.token {
		return reply{Error: "unauthorized: invalid token"}
	}
	s.mu.RLock()
	h, ok := s.handlers[req.Endpoint]
	s.mu.RUnlock()
	if !ok {
		return reply{Error: fmt.Sprintf("unknown endpoint: %q", req.Endpoint)}
	}
	result, err := h(req.Data)
	if err != nil {
		return reply{Error: err.Error()}
	}
	if result == nil {
		return reply{}
	}
	payload, err := proto.Marshal(result)
	if err != nil {
		s.log.Error().Err(err).Str("endpoint", req.Endpoint).Msg("reply encode failed")
		return reply{Error: "internal: reply encode failed"}
	}
	return reply{Data: payload}
}
