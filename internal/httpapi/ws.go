package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

const wsWriteTimeout = 5 * time.Second

// handleCameraWS relays one camera's encoded stream over a websocket. Each
// frame is one binary message carrying the JPEG payload. Frames the socket
// cannot keep up with are dropped at the bus, never queued.
func (s *server) handleCameraWS(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Frames == nil {
		writeJSONError(w, http.StatusNotFound, "camera streaming is disabled")
		return
	}
	name := chi.URLParam(r, "name")
	if !s.knownCamera(name) {
		writeJSONError(w, http.StatusNotFound, "unknown camera: "+name)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 64 << 10,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		s.cfg.Log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	sub := s.cfg.Frames.Subscribe(name, 2)
	defer sub.Close()
	s.cfg.Log.Info().Str("camera", name).Str("peer", r.RemoteAddr).Msg("websocket stream connected")

	// Drain client messages so close frames and pings are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				conn.Close()
				return
			}
		}
	}()

	for frame := range sub.Frames() {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.BinaryMessage, frame.Data); err != nil {
			s.cfg.Log.Debug().Err(err).Str("camera", name).Msg("websocket stream closed")
			return
		}
	}
}

func (s *server) knownCamera(name string) bool {
	for _, cam := range s.cfg.Cameras {
		if cam == name {
			return true
		}
	}
	return false
}

func (s *server) checkOrigin(r *http.Request) bool {
	if len(s.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.AllowedOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}
