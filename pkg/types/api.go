// Package types holds the JSON API types shared with external dashboards
// and the hubctl CLI.
package types

// LoopStatus reports control-loop health.
type LoopStatus struct {
	Running       bool    `json:"running"`
	RateHZ        float64 `json:"rate_hz"`
	Ticks         uint64  `json:"ticks"`
	MissedActions int     `json:"missed_actions"`
	FailsafeTrips uint64  `json:"failsafe_trips"`
}

// SessionStatus reports the data-recording sub-state-machine.
type SessionStatus struct {
	SessionID     string `json:"session_id,omitempty"`
	State         string `json:"state"`
	Episode       int    `json:"episode"`
	Buffered      int    `json:"buffered"`
	EpisodesSaved int    `json:"episodes_saved"`
}

// StatusResponse is the hub's full status snapshot.
type StatusResponse struct {
	Mode        string         `json:"mode"`
	Provider    string         `json:"provider,omitempty"`
	Instruction string         `json:"instruction,omitempty"`
	Providers   []string       `json:"providers"`
	Loop        LoopStatus     `json:"loop"`
	Session     *SessionStatus `json:"session,omitempty"`
}

// CommandReply is the JSON mirror of a command outcome.
type CommandReply struct {
	Status string `json:"status,omitempty"`
	Error  string `json:"error,omitempty"`
}

// ErrorResponse is the consistent JSON error payload for HTTP endpoints.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
