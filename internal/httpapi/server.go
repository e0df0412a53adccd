// Package httpapi exposes the hub's observability surface over HTTP: status,
// health, metrics, a JSON mirror of the command endpoint, and camera stream
// relays for browser dashboards.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"hubd/internal/camera"
	"hubd/internal/hub"
	"hubd/pkg/types"
)

// maxBodyBytes bounds JSON command bodies.
const maxBodyBytes = 1 << 20

// Service defines the methods required by the HTTP layer.
type Service interface {
	Status() types.StatusResponse
	Transition(ctx context.Context, cmd hub.Command) error
	Ready() bool
}

// Config assembles the mux dependencies. Frames may be nil when camera
// streaming is disabled; the camera routes then return 404.
type Config struct {
	Service        Service
	Frames         *camera.Bus
	Cameras        []string
	AllowedOrigins []string
	Log            zerolog.Logger
}

// NewMux builds the HTTP handler.
func NewMux(cfg Config) http.Handler {
	api := &server{cfg: cfg}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg.AllowedOrigins),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/status", api.handleStatus)
	r.Get("/healthz", api.handleHealthz)
	r.Get("/readyz", api.handleReadyz)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Post("/command", api.handleCommand)
	r.Get("/cameras", api.handleCameras)
	r.Get("/cameras/{name}/ws", api.handleCameraWS)
	MountSwagger(r)
	return r
}

func allowedOrigins(configured []string) []string {
	if len(configured) == 0 {
		return []string{"*"}
	}
	return configured
}

type server struct {
	cfg Config
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.cfg.Service.Status())
}

func (s *server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if !s.cfg.Service.Ready() {
		writeJSONError(w, http.StatusServiceUnavailable, "not ready")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleCommand accepts the same command vocabulary as the hub endpoint, as a
// JSON object, e.g. {"teleop": "leader"} or {"data": {"command": "start"}}.
func (s *server) handleCommand(w http.ResponseWriter, r *http.Request) {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	cmd, err := hub.DecodeCommand(body)
	if err != nil {
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	if err := s.cfg.Service.Transition(r.Context(), cmd); err != nil {
		s.cfg.Log.Warn().Err(err).Str("command", string(cmd.Kind)).Msg("command rejected")
		writeJSONError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, types.CommandReply{Status: "OK"})
}

func (s *server) handleCameras(w http.ResponseWriter, r *http.Request) {
	cameras := s.cfg.Cameras
	if cameras == nil {
		cameras = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"cameras": cameras})
}
