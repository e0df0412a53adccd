package camera

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"hubd/internal/proto"
)

const maxSubscribeBytes = 4096

// subscribeRequest is the single message a stream client sends on connect.
type subscribeRequest struct {
	// Camera filters to one source; empty subscribes to all.
	Camera string `cbor:"camera"`
	// Buffer is the requested queue depth; capped server-side.
	Buffer int `cbor:"buffer,omitempty"`
}

// Server streams encoded frames over TCP. A client connects, sends one
// subscribe request, and then receives length-prefixed CBOR frames until it
// disconnects. Slow clients lose frames at the bus rather than backing up
// the encoders.
type Server struct {
	listener net.Listener
	bus      *Bus
	log      zerolog.Logger

	mu     sync.Mutex
	conns  map[net.Conn]struct{}
	closed bool
}

// NewServer listens on address for stream subscribers.
func NewServer(address string, bus *Bus, log zerolog.Logger) (*Server, error) {
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		bus:      bus,
		log:      log,
		conns:    make(map[net.Conn]struct{}),
	}, nil
}

// Address returns the bound address in "host:port" form.
func (s *Server) Address() string { return s.listener.Addr().String() }

// Serve accepts subscribers until ctx is cancelled or Close is called.
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

// Close stops the listener and disconnects live subscribers.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	for conn := range s.conns {
		conn.Close()
	}
	s.conns = make(map[net.Conn]struct{})
	s.mu.Unlock()
	return s.listener.Close()
}

func (s *Server) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

func (s *Server) serveConn(conn net.Conn) {
	defer func() {
		conn.Close()
		s.untrack(conn)
	}()

	req, err := readSubscribe(conn)
	if err != nil {
		s.log.Debug().Err(err).Msg("bad subscribe request")
		return
	}
	buffer := req.Buffer
	if buffer <= 0 || buffer > 16 {
		buffer = 4
	}
	sub := s.bus.Subscribe(req.Camera, buffer)
	defer sub.Close()
	s.log.Info().Str("camera", req.Camera).Str("peer", conn.RemoteAddr().String()).Msg("stream subscriber connected")

	for frame := range sub.Frames() {
		if err := writeFramed(conn, frame); err != nil {
			s.log.Debug().Err(err).Msg("stream subscriber gone")
			return
		}
	}
}

func readSubscribe(conn net.Conn) (subscribeRequest, error) {
	var req subscribeRequest
	var header [4]byte
	if _, err := io.ReadFull(conn, header[:]); err != nil {
		return req, err
	}
	size := binary.BigEndian.Uint32(header[:])
	if size > maxSubscribeBytes {
		return req, fmt.Errorf("subscribe request too large: %d bytes", size)
	}
	payload := make([]byte, size)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return req, err
	}
	if err := proto.Unmarshal(payload, &req); err != nil {
		return req, fmt.Errorf("decode subscribe request: %w", err)
	}
	return req, nil
}

func writeFramed(conn net.Conn, frame proto.Frame) error {
	payload, err := proto.Marshal(frame)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := conn.Write(header[:]); err != nil {
		return err
	}
	_, err = conn.Write(payload)
	return err
}
