package hub

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"hubd/internal/proto"
	"hubd/internal/provider"
	"hubd/internal/session"
)

// fakeProvider is a scriptable in-memory provider.
type fakeProvider struct {
	name        string
	connectErr  error
	aliveErr    error
	connects    int
	disconnects int
	connected   bool
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) WantsFrames() bool { return false }
func (f *fakeProvider) Connect(ctx context.Context) error {
	f.connects++
	if f.connectErr != nil {
		return f.connectErr
	}
	f.connected = true
	return nil
}
func (f *fakeProvider) Disconnect() error {
	f.disconnects++
	f.connected = false
	return nil
}
func (f *fakeProvider) IsAlive(ctx context.Context) error { return f.aliveErr }
func (f *fakeProvider) ProduceAction(ctx context.Context, obs proto.Observation) (proto.Action, error) {
	return proto.NewAction(map[string]float64{"j": 1}), nil
}

type managerFixture struct {
	manager  *Manager
	leader   *fakeProvider
	policy   *fakeProvider
	recorder *session.Recorder
	events   *MemoryPublisher
	shutdown chan struct{}
}

func newFixture(t *testing.T) *managerFixture {
	t.Helper()
	f := &managerFixture{
		leader:   &fakeProvider{name: "leader"},
		policy:   &fakeProvider{name: "policy"},
		events:   NewMemoryPublisher(),
		shutdown: make(chan struct{}),
	}
	f.recorder = session.NewRecorder(t.TempDir(), zerolog.Nop())
	f.manager = NewManager(ManagerConfig{
		Registry:     provider.NewRegistryFromProviders(f.leader, f.policy),
		AIProvider:   "policy",
		DataProvider: "leader",
		Recorder:     f.recorder,
		Events:       f.events,
		OnShutdown:   func() { close(f.shutdown) },
		Log:          zerolog.Nop(),
	})
	return f
}

func (f *managerFixture) apply(t *testing.T, cmd Command) {
	t.Helper()
	if err := f.manager.Transition(context.Background(), cmd); err != nil {
		t.Fatalf("transition %s: %v", cmd.Kind, err)
	}
}

func TestTeleopTransition(t *testing.T) {
	f := newFixture(t)
	f.apply(t, Command{Kind: CmdTeleop, Provider: "leader"})
	mode := f.manager.Current()
	if mode.Kind != ModeTeleop || mode.ProviderName() != "leader" {
		t.Fatalf("mode %v/%v", mode.Kind, mode.ProviderName())
	}
	if !f.leader.connected {
		t.Fatal("leader not connected")
	}
}

func TestUnknownProviderLeavesModeUnchanged(t *testing.T) {
	f := newFixture(t)
	f.apply(t, Command{Kind: CmdTeleop, Provider: "leader"})
	err := f.manager.Transition(context.Background(), Command{Kind: CmdTeleop, Provider: "nope"})
	if !IsUnknownProvider(err) {
		t.Fatalf("expected unknown provider, got %v", err)
	}
	if mode := f.manager.Current(); mode.ProviderName() != "leader" {
		t.Fatalf("mode changed to %v", mode.ProviderName())
	}
}

func TestUnreachableProviderLeavesModeUnchanged(t *testing.T) {
	f := newFixture(t)
	f.policy.aliveErr = errors.New("no route")
	err := f.manager.Transition(context.Background(), Command{Kind: CmdInfer, Instruction: "open the shelf"})
	if !IsProviderUnreachable(err) {
		t.Fatalf("expected unreachable, got %v", err)
	}
	if mode := f.manager.Current(); mode.Kind != ModeIdle {
		t.Fatalf("mode changed to %v", mode.Kind)
	}
	if f.policy.connected {
		t.Fatal("failed health check left the provider connected")
	}
}

func TestFailedHealthCheckKeepsLiveProviderConnected(t *testing.T) {
	f := newFixture(t)
	f.apply(t, Command{Kind: CmdTeleop, Provider: "leader"})
	f.leader.aliveErr = errors.New("no route")
	err := f.manager.Transition(context.Background(), Command{Kind: CmdTeleop, Provider: "leader"})
	if !IsProviderUnreachable(err) {
		t.Fatalf("expected unreachable, got %v", err)
	}
	if !f.leader.connected {
		t.Fatal("reselect tore down the provider serving the current mode")
	}
}

func TestInstructionStoredAndCleared(t *testing.T) {
	f := newFixture(t)
	f.apply(t, Command{Kind: CmdInfer, Instruction: "open the shelf"})
	if got := f.manager.Instruction(); got != "open the shelf" {
		t.Fatalf("instruction %q", got)
	}
	f.apply(t, Command{Kind: CmdIdle})
	if got := f.manager.Instruction(); got != "" {
		t.Fatalf("instruction not cleared: %q", got)
	}
}

func TestInstructionClearedBySwitchToTeleop(t *testing.T) {
	f := newFixture(t)
	f.apply(t, Command{Kind: CmdInfer, Instruction: "fold the towel"})
	f.apply(t, Command{Kind: CmdTeleop, Provider: "leader"})
	if got := f.manager.Instruction(); got != "" {
		t.Fatalf("instruction survived teleop switch: %q", got)
	}
	if f.policy.disconnects == 0 {
		t.Fatal("previous provider not disconnected")
	}
}

func TestSwitchDisconnectsPreviousProvider(t *testing.T) {
	f := newFixture(t)
	f.apply(t, Command{Kind: CmdTeleop, Provider: "leader"})
	f.apply(t, Command{Kind: CmdInfer, Instruction: "x"})
	if f.leader.disconnects != 1 {
		t.Fatalf("leader disconnects = %d", f.leader.disconnects)
	}
	f.apply(t, Command{Kind: CmdIdle})
	if f.policy.disconnects != 1 {
		t.Fatalf("policy disconnects = %d", f.policy.disconnects)
	}
}

func TestReselectingSameProviderKeepsConnection(t *testing.T) {
	f := newFixture(t)
	f.apply(t, Command{Kind: CmdTeleop, Provider: "leader"})
	f.apply(t, Command{Kind: CmdTeleop, Provider: "leader"})
	if f.leader.disconnects != 0 {
		t.Fatalf("reselect tore down the live provider (%d disconnects)", f.leader.disconnects)
	}
}

func TestDataSessionFlow(t *testing.T) {
	f := newFixture(t)
	f.apply(t, Command{Kind: CmdData, DataCommand: "start"})
	if mode := f.manager.Current(); mode.Kind != ModeData || mode.ProviderName() != "leader" {
		t.Fatalf("mode %v/%v", mode.Kind, mode.ProviderName())
	}
	if st := f.recorder.State(); st != session.StateArmed {
		t.Fatalf("session state %s", st)
	}
	f.apply(t, Command{Kind: CmdData, DataCommand: "resume"})
	if st := f.recorder.State(); st != session.StateRecording {
		t.Fatalf("session state %s", st)
	}
	f.apply(t, Command{Kind: CmdData, DataCommand: "stop"})
	if mode := f.manager.Current(); mode.Kind != ModeIdle {
		t.Fatalf("mode after stop: %v", mode.Kind)
	}
	if f.leader.disconnects == 0 {
		t.Fatal("data provider not released on stop")
	}
}

func TestDataStartWithDeadProviderReleasesConnection(t *testing.T) {
	f := newFixture(t)
	f.leader.aliveErr = errors.New("no route")
	err := f.manager.Transition(context.Background(), Command{Kind: CmdData, DataCommand: "start"})
	if !IsProviderUnreachable(err) {
		t.Fatalf("expected unreachable, got %v", err)
	}
	if f.leader.connected {
		t.Fatal("failed health check left the data provider connected")
	}
	if st := f.recorder.State(); st != session.StateIdle {
		t.Fatalf("session state %s", st)
	}
}

func TestFailsafeDuringRecordingClosesSession(t *testing.T) {
	f := newFixture(t)
	f.apply(t, Command{Kind: CmdData, DataCommand: "start"})
	f.apply(t, Command{Kind: CmdData, DataCommand: "resume"})

	f.manager.ForceIdle("missed_actions")

	if st := f.recorder.State(); st != session.StateIdle {
		t.Fatalf("session stranded in state %s", st)
	}
	// A fresh session must start cleanly after the trip.
	f.apply(t, Command{Kind: CmdData, DataCommand: "start"})
	if st := f.recorder.State(); st != session.StateArmed {
		t.Fatalf("session state %s after restart", st)
	}
}

func TestTeleopSwitchDuringRecordingClosesSession(t *testing.T) {
	f := newFixture(t)
	f.apply(t, Command{Kind: CmdData, DataCommand: "start"})
	f.apply(t, Command{Kind: CmdData, DataCommand: "resume"})

	f.apply(t, Command{Kind: CmdTeleop, Provider: "leader"})

	if st := f.recorder.State(); st != session.StateIdle {
		t.Fatalf("session stranded in state %s", st)
	}
}

func TestDataSubCommandWithoutSession(t *testing.T) {
	f := newFixture(t)
	if err := f.manager.Transition(context.Background(), Command{Kind: CmdData, DataCommand: "resume"}); err == nil {
		t.Fatal("resume without a session should fail")
	}
	if mode := f.manager.Current(); mode.Kind != ModeIdle {
		t.Fatalf("mode changed: %v", mode.Kind)
	}
}

func TestShutdownIsTerminal(t *testing.T) {
	f := newFixture(t)
	f.apply(t, Command{Kind: CmdTeleop, Provider: "leader"})
	f.apply(t, Command{Kind: CmdShutdown})
	select {
	case <-f.shutdown:
	default:
		t.Fatal("OnShutdown not invoked")
	}
	if f.leader.disconnects == 0 {
		t.Fatal("active provider not disconnected on shutdown")
	}
	err := f.manager.Transition(context.Background(), Command{Kind: CmdIdle})
	if !errors.Is(err, ErrShuttingDown) {
		t.Fatalf("expected ErrShuttingDown, got %v", err)
	}
}

func TestForceIdlePublishesFailsafeEvent(t *testing.T) {
	f := newFixture(t)
	f.apply(t, Command{Kind: CmdTeleop, Provider: "leader"})
	f.manager.ForceIdle("missed_actions")
	if mode := f.manager.Current(); mode.Kind != ModeIdle {
		t.Fatalf("mode %v", mode.Kind)
	}
	if !f.events.Seen("failsafe") {
		t.Fatal("no failsafe event published")
	}
}

func TestForceIdleWhileIdleIsNoop(t *testing.T) {
	f := newFixture(t)
	f.manager.ForceIdle("missed_actions")
	if f.events.Seen("failsafe") {
		t.Fatal("failsafe event published from idle")
	}
}
