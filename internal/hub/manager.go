package hub

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"hubd/internal/provider"
	"hubd/internal/session"
)

// ManagerConfig encapsulates everything a Manager needs at construction.
type ManagerConfig struct {
	Registry *provider.Registry
	// AIProvider names the registry entry serving `infer` mode; empty
	// disables AI mode.
	AIProvider string
	// DataProvider names the teleop entry driving the robot during data
	// sessions; empty disables data mode.
	DataProvider string
	Recorder     *session.Recorder
	Events       EventPublisher
	// RawHandler receives `raw` command payloads; nil rejects them.
	RawHandler func(map[string]any) error
	// OnShutdown is invoked once, after the terminal shutdown transition
	// completes. The daemon uses it to unwind the process.
	OnShutdown func()
	Log        zerolog.Logger
}

// Manager owns the single live Mode value and performs validated, serialized
// transitions among providers. Transitions execute under a single-writer
// lock; the resulting mode is published with an atomic swap only after
// provider connect/teardown completes, so readers never lock and never see a
// half-built mode.
type Manager struct {
	registry     *provider.Registry
	aiProvider   string
	dataProvider string
	recorder     *session.Recorder
	events       EventPublisher
	rawHandler   func(map[string]any) error
	onShutdown   func()
	log          zerolog.Logger

	mu           sync.Mutex
	mode         atomic.Pointer[Mode]
	shuttingDown bool
}

// NewManager constructs a Manager starting in idle.
func NewManager(cfg ManagerConfig) *Manager {
	m := &Manager{
		registry:     cfg.Registry,
		aiProvider:   cfg.AIProvider,
		dataProvider: cfg.DataProvider,
		recorder:     cfg.Recorder,
		events:       cfg.Events,
		rawHandler:   cfg.RawHandler,
		onShutdown:   cfg.OnShutdown,
		log:          cfg.Log,
	}
	if m.events == nil {
		m.events = noopPublisher{}
	}
	initial := idleMode
	m.mode.Store(&initial)
	return m
}

// Current returns the live mode. Lock-free; safe from any goroutine.
func (m *Manager) Current() Mode { return *m.mode.Load() }

// Instruction returns the stored AI instruction, or "" outside AI mode.
func (m *Manager) Instruction() string { return m.Current().Instruction }

// Recorder exposes the data-session recorder for the control loop and the
// status surface. May be nil when data mode is disabled.
func (m *Manager) Recorder() *session.Recorder { return m.recorder }

// ShuttingDown reports whether the terminal shutdown transition has run.
func (m *Manager) ShuttingDown() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.shuttingDown
}

// Transition applies one command. Exactly one transition is in flight at a
// time; concurrent callers queue on the manager lock. On any error the
// current mode is unchanged.
func (m *Manager) Transition(ctx context.Context, cmd Command) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shuttingDown {
		return ErrShuttingDown
	}
	switch cmd.Kind {
	case CmdTeleop:
		return m.enterProviderLocked(ctx, ModeTeleop, cmd.Provider, "")
	case CmdInfer:
		if m.aiProvider == "" {
			return ErrUnknownProvider("ai")
		}
		return m.enterProviderLocked(ctx, ModeAI, m.aiProvider, cmd.Instruction)
	case CmdIdle:
		m.enterIdleLocked("command")
		return nil
	case CmdData:
		return m.dataCommandLocked(ctx, cmd.DataCommand)
	case CmdShutdown:
		m.shutdownLocked()
		return nil
	case CmdRaw:
		if m.rawHandler == nil {
			return ErrMalformedCommand("no raw command handler installed")
		}
		return m.rawHandler(cmd.Raw)
	default:
		return ErrMalformedCommand(fmt.Sprintf("unhandled command kind %q", cmd.Kind))
	}
}

// ForceIdle is the fail-safe entry point used by the control loop after the
// missed-action threshold trips. Serialized with normal transitions.
func (m *Manager) ForceIdle(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.shuttingDown || m.Current().Kind == ModeIdle {
		return
	}
	m.enterIdleLocked(reason)
}

// enterProviderLocked validates, connects, and swaps in a provider-backed
// mode. The new provider is live before the old one is torn down, and the
// swap is published only after teardown completes.
func (m *Manager) enterProviderLocked(ctx context.Context, kind ModeKind, name, instruction string) error {
	target, ok := m.registry.Lookup(name)
	if !ok {
		return ErrUnknownProvider(name)
	}
	if err := target.Connect(ctx); err != nil {
		return ErrProviderUnreachable(name, err)
	}
	if err := target.IsAlive(ctx); err != nil {
		// Release the connection we just opened, unless the target is the
		// provider already serving the current mode.
		if target != m.Current().Provider {
			target.Disconnect()
		}
		return ErrProviderUnreachable(name, err)
	}
	prev := m.Current()
	if prev.Provider != nil && prev.Provider != target {
		if err := prev.Provider.Disconnect(); err != nil {
			m.log.Warn().Err(err).Str("provider", prev.ProviderName()).Msg("disconnect failed")
		}
	}
	m.closeAbandonedSessionLocked(prev)
	m.publishLocked(Mode{Kind: kind, Provider: target, Instruction: instruction}, prev)
	return nil
}

func (m *Manager) enterIdleLocked(reason string) {
	prev := m.Current()
	if prev.Provider != nil {
		if err := prev.Provider.Disconnect(); err != nil {
			m.log.Warn().Err(err).Str("provider", prev.ProviderName()).Msg("disconnect failed")
		}
	}
	if prev.Kind == ModeIdle && reason == "command" {
		// Explicit idle while already idle is a no-op, but still OK.
		return
	}
	m.closeAbandonedSessionLocked(prev)
	mode := idleMode
	m.publishLocked(mode, prev)
	if reason != "command" {
		m.events.Publish(Event{Name: "failsafe", Fields: map[string]any{
			"reason": reason, "from": string(prev.Kind), "provider": prev.ProviderName(),
		}})
	}
}

// closeAbandonedSessionLocked flushes the recorder when a transition leaves
// data mode without an explicit stop. A fail-safe trip or a direct mode
// switch would otherwise strand the session: the mode gate refuses every data
// sub-command once the mode is no longer data, so the session could neither
// be closed nor restarted.
func (m *Manager) closeAbandonedSessionLocked(prev Mode) {
	if prev.Kind != ModeData || m.recorder == nil {
		return
	}
	if err := m.recorder.CloseSession(); err != nil {
		m.log.Warn().Err(err).Msg("session flush on mode exit failed")
	}
}

func (m *Manager) dataCommandLocked(ctx context.Context, sub string) error {
	if m.recorder == nil || m.dataProvider == "" {
		return ErrMalformedCommand("data mode is not configured")
	}
	cur := m.Current()
	if cur.Kind != ModeData {
		if sub != "start" {
			return fmt.Errorf("no active data session (state %s)", m.recorder.State())
		}
		target, ok := m.registry.Lookup(m.dataProvider)
		if !ok {
			return ErrUnknownProvider(m.dataProvider)
		}
		if err := target.Connect(ctx); err != nil {
			return ErrProviderUnreachable(m.dataProvider, err)
		}
		if err := target.IsAlive(ctx); err != nil {
			if target != cur.Provider {
				target.Disconnect()
			}
			return ErrProviderUnreachable(m.dataProvider, err)
		}
		if err := m.recorder.Command("start"); err != nil {
			if target != cur.Provider {
				target.Disconnect()
			}
			return err
		}
		if cur.Provider != nil && cur.Provider != target {
			if err := cur.Provider.Disconnect(); err != nil {
				m.log.Warn().Err(err).Str("provider", cur.ProviderName()).Msg("disconnect failed")
			}
		}
		m.publishLocked(Mode{Kind: ModeData, Provider: target}, cur)
		return nil
	}
	if err := m.recorder.Command(sub); err != nil {
		return err
	}
	if sub == "stop" || sub == "end" {
		m.enterIdleLocked("command")
	}
	return nil
}

// shutdownLocked is terminal: flush the recorder, tear down the active
// provider, publish idle, and hand control to the daemon's unwind hook.
// Further commands are refused. Idle is published before the hook fires, so
// the control loop only ever ticks neutral actions between here and the
// daemon cancelling it; the brief overlap exists to let the reply flush.
func (m *Manager) shutdownLocked() {
	m.shuttingDown = true
	if m.recorder != nil {
		if err := m.recorder.CloseSession(); err != nil {
			m.log.Warn().Err(err).Msg("session flush on shutdown failed")
		}
	}
	prev := m.Current()
	mode := idleMode
	m.mode.Store(&mode)
	if prev.Provider != nil {
		if err := prev.Provider.Disconnect(); err != nil {
			m.log.Warn().Err(err).Str("provider", prev.ProviderName()).Msg("disconnect failed")
		}
	}
	m.events.Publish(Event{Name: "shutdown", Fields: map[string]any{"from": string(prev.Kind)}})
	m.log.Info().Msg("shutdown transition complete")
	if m.onShutdown != nil {
		m.onShutdown()
	}
}

func (m *Manager) publishLocked(next, prev Mode) {
	m.mode.Store(&next)
	transitionsTotal.WithLabelValues(string(next.Kind)).Inc()
	m.events.Publish(Event{Name: "mode_change", Fields: map[string]any{
		"from": string(prev.Kind), "to": string(next.Kind), "provider": next.ProviderName(),
	}})
	m.log.Info().
		Str("from", string(prev.Kind)).
		Str("to", string(next.Kind)).
		Str("provider", next.ProviderName()).
		Msg("mode change")
}
