package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"hubd/internal/camera"
	"hubd/internal/config"
	"hubd/internal/control"
	"hubd/internal/httpapi"
	"hubd/internal/hub"
	"hubd/internal/provider"
	"hubd/internal/session"
	"hubd/internal/transport"
	"hubd/pkg/types"
)

// shutdownGrace lets the shutdown command's reply flush before the listeners
// are torn down.
const shutdownGrace = 200 * time.Millisecond

func run(ctx context.Context, cfg config.Config) error {
	log := newLogger(cfg.Log)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry, err := provider.NewRegistry(cfg.Providers, cfg.AIProvider, builtinDevices())
	if err != nil {
		return err
	}

	recorder := session.NewRecorder(cfg.Data.Dir, log.With().Str("component", "session").Logger())

	manager := hub.NewManager(hub.ManagerConfig{
		Registry:     registry,
		AIProvider:   cfg.AIProvider,
		DataProvider: cfg.Data.Provider,
		Recorder:     recorder,
		OnShutdown: func() {
			go func() {
				time.Sleep(shutdownGrace)
				stop()
			}()
		},
		Log: log.With().Str("component", "hub").Logger(),
	})

	// Camera pipeline, when sources are configured.
	var streamer *camera.Streamer
	var cameraNames []string
	if len(cfg.Cameras.Sources) > 0 {
		streamer = camera.NewStreamer(cfg.Cameras, camera.NewBus(), log.With().Str("component", "camera").Logger())
		cameraNames = streamer.Sources()
	}

	hardware := control.NewSimHardware(
		[]string{"shoulder", "elbow", "wrist", "gripper"},
		cameraNames,
	)
	var frames control.FrameSink
	if streamer != nil {
		frames = streamer
	}
	loop := control.NewLoop(cfg.Loop, cfg.Filter, hardware, manager, frames, log.With().Str("component", "control").Logger())

	hubServer, err := transport.NewServer(cfg.Hub.Address, cfg.Hub.Token, log.With().Str("component", "transport").Logger())
	if err != nil {
		return err
	}
	statusFn := func() types.StatusResponse {
		return statusSnapshot(manager, registry, loop, recorder)
	}
	hub.NewHub(hubServer, manager, statusFn, log.With().Str("component", "hub").Logger())

	httpSrv := &http.Server{
		Addr: cfg.HTTP.Address,
		Handler: httpapi.NewMux(httpapi.Config{
			Service:        &daemonService{manager: manager, status: statusFn, loop: loop},
			Frames:         busOrNil(streamer),
			Cameras:        cameraNames,
			AllowedOrigins: cfg.HTTP.AllowedOrigins,
			Log:            log.With().Str("component", "http").Logger(),
		}),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info().Str("address", cfg.Hub.Address).Msg("hub listening")
		return hubServer.Serve(ctx)
	})

	g.Go(func() error { return loop.Run(ctx) })

	if streamer != nil {
		g.Go(func() error { return streamer.Run(ctx) })
		if cfg.Cameras.Address != "" {
			streamSrv, err := camera.NewServer(cfg.Cameras.Address, streamer.Bus(), log.With().Str("component", "camera").Logger())
			if err != nil {
				return err
			}
			g.Go(func() error {
				log.Info().Str("address", cfg.Cameras.Address).Msg("camera stream listening")
				return streamSrv.Serve(ctx)
			})
		}
	}

	g.Go(func() error {
		log.Info().Str("address", cfg.HTTP.Address).Msg("http listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	// A SIGTERM must flush any open episode the same way a shutdown command
	// does.
	g.Go(func() error {
		<-ctx.Done()
		if err := recorder.CloseSession(); err != nil {
			log.Warn().Err(err).Msg("session flush on exit failed")
		}
		return nil
	})

	err = g.Wait()
	log.Info().Msg("hubd stopped")
	return err
}

// daemonService adapts the daemon's pieces to the HTTP layer.
type daemonService struct {
	manager *hub.Manager
	status  func() types.StatusResponse
	loop    *control.Loop
}

func (s *daemonService) Status() types.StatusResponse { return s.status() }

func (s *daemonService) Transition(ctx context.Context, cmd hub.Command) error {
	return s.manager.Transition(ctx, cmd)
}

func (s *daemonService) Ready() bool {
	return s.loop.Stats().Running && !s.manager.ShuttingDown()
}

func statusSnapshot(m *hub.Manager, reg *provider.Registry, loop *control.Loop, rec *session.Recorder) types.StatusResponse {
	mode := m.Current()
	stats := loop.Stats()
	resp := types.StatusResponse{
		Mode:        string(mode.Kind),
		Provider:    mode.ProviderName(),
		Instruction: mode.Instruction,
		Providers:   reg.Names(),
		Loop: types.LoopStatus{
			Running:       stats.Running,
			RateHZ:        stats.RateHZ,
			Ticks:         stats.Ticks,
			MissedActions: stats.MissedActions,
			FailsafeTrips: stats.FailsafeTrips,
		},
	}
	if snap := rec.Status(); snap.State != session.StateIdle {
		resp.Session = &types.SessionStatus{
			SessionID:     snap.SessionID,
			State:         string(snap.State),
			Episode:       snap.Episode,
			Buffered:      snap.Buffered,
			EpisodesSaved: snap.EpisodesSaved,
		}
	}
	return resp
}

func busOrNil(s *camera.Streamer) *camera.Bus {
	if s == nil {
		return nil
	}
	return s.Bus()
}

func newLogger(cfg config.LogConfig) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var log zerolog.Logger
	if cfg.Format == "json" {
		log = zerolog.New(os.Stderr)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	return log.Level(level).With().Timestamp().Logger()
}
