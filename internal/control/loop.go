package control

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"hubd/internal/config"
	"hubd/internal/hub"
	"hubd/internal/proto"
	"hubd/internal/session"
)

// ModeSource is the loop's view of the hub manager: the live mode, the
// fail-safe trigger, and the data recorder.
type ModeSource interface {
	Current() hub.Mode
	ForceIdle(reason string)
	Recorder() *session.Recorder
}

// FrameSink receives the camera frames captured with each observation. Submit
// must never block the caller.
type FrameSink interface {
	Submit(frames map[string]proto.RawFrame, timestampNS int64)
}

// Stats is a snapshot of loop counters for the status surface.
type Stats struct {
	Running       bool
	RateHZ        float64
	Ticks         uint64
	MissedActions int
	FailsafeTrips uint64
}

// Loop drives the robot at a fixed rate: read an observation, ask the active
// provider for an action, filter it, actuate, and hand frames and recording
// pairs off. A provider that misses too many consecutive actions trips the
// fail-safe; a hardware fault stops the loop.
type Loop struct {
	cfg      config.LoopConfig
	hardware Hardware
	modes    ModeSource
	frames   FrameSink
	filter   *Filter
	log      zerolog.Logger

	running atomic.Bool
	ticks   atomic.Uint64
	missed  atomic.Int64
	trips   atomic.Uint64

	// Loop-goroutine state.
	lastFiltered proto.Action
	lastMode     hub.ModeKind
	lastProvider string
}

// NewLoop wires a loop. frames may be nil when camera streaming is disabled.
func NewLoop(cfg config.LoopConfig, fcfg config.FilterConfig, hw Hardware, modes ModeSource, frames FrameSink, log zerolog.Logger) *Loop {
	return &Loop{
		cfg:      cfg,
		hardware: hw,
		modes:    modes,
		frames:   frames,
		filter:   NewFilter(fcfg.Window, fcfg.Alpha),
		log:      log,
		lastMode: hub.ModeIdle,
	}
}

// Stats returns the current counters. Safe from any goroutine.
func (l *Loop) Stats() Stats {
	return Stats{
		Running:       l.running.Load(),
		RateHZ:        l.cfg.RateHZ,
		Ticks:         l.ticks.Load(),
		MissedActions: int(l.missed.Load()),
		FailsafeTrips: l.trips.Load(),
	}
}

// Run connects the hardware and ticks until ctx is cancelled or the hardware
// faults. Returns nil on cancellation.
func (l *Loop) Run(ctx context.Context) error {
	if err := l.hardware.Connect(ctx); err != nil {
		return fmt.Errorf("connect hardware: %w", err)
	}
	defer l.hardware.Disconnect()

	l.running.Store(true)
	defer l.running.Store(false)
	l.log.Info().Float64("rate_hz", l.cfg.RateHZ).Msg("control loop running")

	ticker := time.NewTicker(l.cfg.Period())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
		if err := l.tick(ctx); err != nil {
			l.log.Error().Err(err).Msg("control loop stopped")
			return err
		}
	}
}

func (l *Loop) tick(ctx context.Context) error {
	start := time.Now()
	defer func() {
		tickDuration.Observe(time.Since(start).Seconds())
		l.ticks.Add(1)
	}()

	obs, err := l.hardware.ReadObservation(ctx)
	if err != nil {
		return fmt.Errorf("read observation: %w", err)
	}
	if l.frames != nil && len(obs.Frames) > 0 {
		l.frames.Submit(obs.Frames, obs.TimestampNS)
	}

	mode := l.modes.Current()
	if mode.Kind != l.lastMode || mode.ProviderName() != l.lastProvider {
		// New action source; its output must not blend with the old one's.
		l.filter.Reset()
		l.missed.Store(0)
		l.lastFiltered = proto.Action{}
		l.lastMode = mode.Kind
		l.lastProvider = mode.ProviderName()
	}

	act := l.selectAction(ctx, mode, obs)
	if err := l.hardware.ApplyAction(ctx, act); err != nil {
		return fmt.Errorf("apply action: %w", err)
	}

	if rec := l.modes.Recorder(); rec != nil && mode.Kind == hub.ModeData {
		rec.Append(obs, act, time.Now().UnixNano())
	}
	return nil
}

// selectAction produces this tick's action: neutral while idle, otherwise the
// filtered provider output, falling back to the previous output on a miss.
func (l *Loop) selectAction(ctx context.Context, mode hub.Mode, obs proto.Observation) proto.Action {
	if mode.Kind == hub.ModeIdle || mode.Provider == nil {
		l.missed.Store(0)
		return l.hardware.NeutralAction()
	}

	shaped := obs
	if !mode.Provider.WantsFrames() {
		shaped = obs.NumericOnly()
	}
	if mode.Kind == hub.ModeAI {
		shaped = shaped.WithInstruction(mode.Instruction)
	}

	raw, err := mode.Provider.ProduceAction(ctx, shaped)
	if err != nil || raw.Empty() {
		return l.missTick(mode, err)
	}

	l.missed.Store(0)
	l.lastFiltered = l.filter.Apply(raw)
	return l.lastFiltered
}

// missTick handles one missed action: hold the last filtered output and trip
// the fail-safe once the consecutive-miss threshold is reached.
func (l *Loop) missTick(mode hub.Mode, cause error) proto.Action {
	missed := l.missed.Add(1)
	missedActionsTotal.WithLabelValues(mode.ProviderName()).Inc()
	l.log.Warn().
		Err(cause).
		Str("provider", mode.ProviderName()).
		Int64("missed", missed).
		Msg("missed action")

	if missed >= int64(l.cfg.MaxMissedActions) {
		l.trips.Add(1)
		failsafeTripsTotal.Inc()
		l.missed.Store(0)
		if l.cfg.Failsafe == config.FailsafeHold {
			l.log.Warn().Str("provider", mode.ProviderName()).Msg("fail-safe tripped, holding position")
		} else {
			l.modes.ForceIdle("missed_actions")
		}
	}

	if l.lastFiltered.Empty() {
		return l.hardware.NeutralAction()
	}
	return l.lastFiltered
}
