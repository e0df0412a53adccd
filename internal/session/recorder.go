// Package session implements data-recording sessions: a sub-state-machine
// driven by the hub's `data` commands that gates which control-loop ticks are
// persisted as training episodes.
package session

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"hubd/internal/proto"
)

// State of a recording session.
type State string

const (
	StateIdle      State = "idle"
	StateArmed     State = "armed"
	StateRecording State = "recording"
	StatePaused    State = "paused"
)

// Pair is one recorded (observation, action) sample.
type Pair struct {
	Observation proto.Observation `cbor:"observation"`
	Action      proto.Action      `cbor:"action"`
	TimestampNS int64             `cbor:"timestamp_ns"`
}

// Episode is the persisted form of one closed episode buffer.
type Episode struct {
	SessionID string `cbor:"session_id"`
	Index     int    `cbor:"index"`
	Pairs     []Pair `cbor:"pairs"`
}

// Snapshot is a read-only projection of recorder state for status reporting.
type Snapshot struct {
	SessionID     string `json:"session_id,omitempty"`
	State         State  `json:"state"`
	Episode       int    `json:"episode"`
	Buffered      int    `json:"buffered"`
	EpisodesSaved int    `json:"episodes_saved"`
}

// Recorder owns the session state machine and the open episode buffer.
// Commands arrive on the hub's single-writer path; Append is called from the
// control loop, so the recorder carries its own lock.
type Recorder struct {
	dir string
	log zerolog.Logger

	mu        sync.Mutex
	sessionID string
	state     State
	episode   int
	buffer    []Pair
	saved     int
}

// NewRecorder writes episodes under dir (one subdirectory per session).
func NewRecorder(dir string, log zerolog.Logger) *Recorder {
	return &Recorder{dir: dir, log: log, state: StateIdle}
}

// State returns the current session state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Status returns a snapshot for the status surface.
func (r *Recorder) Status() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{
		SessionID:     r.sessionID,
		State:         r.state,
		Episode:       r.episode,
		Buffered:      len(r.buffer),
		EpisodesSaved: r.saved,
	}
}

// Command drives the state machine:
//
//	idle --start--> armed --resume/go--> recording --reset--> paused
//	paused --resume/go--> recording
//	recording|paused --next/skip--> (close episode, index+1) armed
//	recording|paused --rerecord/redo--> (discard buffer, same index)
//	any non-idle --stop/end--> (close episode) idle
func (r *Recorder) Command(cmd string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	switch cmd {
	case "start":
		if r.state != StateIdle {
			return fmt.Errorf("session already active (state %s)", r.state)
		}
		r.sessionID = uuid.NewString()
		r.state = StateArmed
		r.episode = 0
		r.buffer = nil
		r.saved = 0
		r.log.Info().Str("session", r.sessionID).Msg("session armed")
		return nil
	case "resume", "go":
		switch r.state {
		case StateArmed, StatePaused:
			r.state = StateRecording
			r.log.Info().Int("episode", r.episode).Msg("recording")
			return nil
		case StateRecording:
			return nil
		default:
			return fmt.Errorf("cannot resume: no active session")
		}
	case "reset":
		if r.state != StateRecording {
			return fmt.Errorf("cannot reset from state %s", r.state)
		}
		r.state = StatePaused
		r.log.Info().Int("episode", r.episode).Msg("paused for reset")
		return nil
	case "next", "skip":
		if r.state != StateRecording && r.state != StatePaused {
			return fmt.Errorf("cannot advance from state %s", r.state)
		}
		if err := r.closeEpisodeLocked(); err != nil {
			return err
		}
		r.episode++
		r.state = StateArmed
		r.log.Info().Int("episode", r.episode).Msg("armed for next episode")
		return nil
	case "rerecord", "redo":
		if r.state != StateRecording && r.state != StatePaused {
			return fmt.Errorf("cannot rerecord from state %s", r.state)
		}
		dropped := len(r.buffer)
		r.buffer = nil
		r.log.Info().Int("episode", r.episode).Int("dropped", dropped).Msg("episode discarded for rerecord")
		return nil
	case "stop", "end":
		if r.state == StateIdle {
			return fmt.Errorf("no active session")
		}
		if err := r.closeEpisodeLocked(); err != nil {
			return err
		}
		r.log.Info().Str("session", r.sessionID).Int("episodes", r.saved).Msg("session closed")
		r.state = StateIdle
		r.sessionID = ""
		r.episode = 0
		return nil
	default:
		return fmt.Errorf("unknown data command %q", cmd)
	}
}

// Append records one (observation, action) pair if the session is recording.
// Ticks during armed/paused drive the robot but are not recorded.
func (r *Recorder) Append(obs proto.Observation, act proto.Action, tsNS int64) {
	r.mu.Lock()
	if r.state == StateRecording {
		r.buffer = append(r.buffer, Pair{Observation: obs, Action: act, TimestampNS: tsNS})
	}
	r.mu.Unlock()
}

// CloseSession flushes any open episode and returns the recorder to idle.
// Called on shutdown so a partial episode is not lost.
func (r *Recorder) CloseSession() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == StateIdle {
		return nil
	}
	err := r.closeEpisodeLocked()
	r.state = StateIdle
	r.sessionID = ""
	r.episode = 0
	return err
}

// closeEpisodeLocked persists the open buffer, if any, and clears it.
func (r *Recorder) closeEpisodeLocked() error {
	if len(r.buffer) == 0 {
		return nil
	}
	ep := Episode{SessionID: r.sessionID, Index: r.episode, Pairs: r.buffer}
	dir := filepath.Join(r.dir, r.sessionID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	payload, err := proto.Marshal(ep)
	if err != nil {
		return fmt.Errorf("encode episode %d: %w", r.episode, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("episode_%d.cbor", r.episode))
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write episode %d: %w", r.episode, err)
	}
	r.log.Info().Str("path", path).Int("pairs", len(r.buffer)).Msg("episode saved")
	r.saved++
	r.buffer = nil
	return nil
}
