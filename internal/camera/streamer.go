package camera

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"hubd/internal/config"
	"hubd/internal/proto"
)

// Streamer owns one worker per configured camera source. The control loop
// calls Submit with each observation's raw frames; each worker keeps only the
// freshest frame, encodes it off the hot path, and publishes the result to
// the bus. Submit never blocks and never allocates per call beyond the slot
// swap, so a slow encoder or subscriber cannot add tick latency.
type Streamer struct {
	bus     *Bus
	workers map[string]*worker
	log     zerolog.Logger
}

type worker struct {
	name     string
	quality  int
	maxWidth int
	interval time.Duration
	slot     chan slotFrame
	log      zerolog.Logger
}

type slotFrame struct {
	raw proto.RawFrame
	ts  int64
}

// NewStreamer builds workers from the camera configuration. Sources inherit
// cfg.Quality unless they override it.
func NewStreamer(cfg config.CameraConfig, bus *Bus, log zerolog.Logger) *Streamer {
	s := &Streamer{bus: bus, workers: make(map[string]*worker, len(cfg.Sources)), log: log}
	for _, src := range cfg.Sources {
		quality := src.Quality
		if quality <= 0 {
			quality = cfg.Quality
		}
		var interval time.Duration
		if src.FPS > 0 {
			interval = time.Duration(float64(time.Second) / src.FPS)
		}
		s.workers[src.Name] = &worker{
			name:     src.Name,
			quality:  quality,
			maxWidth: src.MaxWidth,
			interval: interval,
			slot:     make(chan slotFrame, 1),
			log:      log.With().Str("camera", src.Name).Logger(),
		}
	}
	return s
}

// Sources returns the configured camera names.
func (s *Streamer) Sources() []string {
	out := make([]string, 0, len(s.workers))
	for name := range s.workers {
		out = append(out, name)
	}
	return out
}

// Bus returns the publish bus for in-process subscribers.
func (s *Streamer) Bus() *Bus { return s.bus }

// Submit hands the raw frames of one observation to the workers. Frames for
// unconfigured sources are ignored; a frame already waiting in a worker's
// slot is replaced by the newer one.
func (s *Streamer) Submit(frames map[string]proto.RawFrame, timestampNS int64) {
	for name, raw := range frames {
		w, ok := s.workers[name]
		if !ok {
			continue
		}
		w.offer(slotFrame{raw: raw, ts: timestampNS})
	}
}

// Run drives all workers until ctx is cancelled.
func (s *Streamer) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, w := range s.workers {
		w := w
		g.Go(func() error {
			w.run(ctx, s.bus)
			return nil
		})
	}
	return g.Wait()
}

// offer replaces the slot's content with the newer frame, never blocking.
func (w *worker) offer(f slotFrame) {
	for {
		select {
		case w.slot <- f:
			return
		default:
		}
		select {
		case <-w.slot:
			framesReplaced.WithLabelValues(w.name).Inc()
		default:
		}
	}
}

func (w *worker) run(ctx context.Context, bus *Bus) {
	var lastPublish time.Time
	for {
		var f slotFrame
		select {
		case <-ctx.Done():
			return
		case f = <-w.slot:
		}
		if w.interval > 0 && time.Since(lastPublish) < w.interval {
			continue
		}
		raw := downscale(f.raw, w.maxWidth)
		data, err := encodeJPEG(raw, w.quality)
		if err != nil {
			w.log.Warn().Err(err).Msg("frame encode failed")
			continue
		}
		lastPublish = time.Now()
		bus.Publish(proto.Frame{
			Camera:      w.name,
			TimestampNS: f.ts,
			Encoding:    "jpeg",
			Width:       raw.Width,
			Height:      raw.Height,
			Quality:     w.quality,
			Data:        data,
		})
	}
}
