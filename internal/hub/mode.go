// Package hub implements the command hub: the mode state machine that
// arbitrates exactly one active command source, and the request/reply front
// end that drives it.
package hub

import (
	"hubd/internal/provider"
)

// ModeKind discriminates the mode variants.
type ModeKind string

const (
	ModeIdle   ModeKind = "idle"
	ModeTeleop ModeKind = "teleop"
	ModeAI     ModeKind = "ai"
	ModeData   ModeKind = "data"
)

// Mode is the single currently active command source. Values are immutable
// once published; the manager swaps whole Mode values atomically, so readers
// always see either the fully-prior or fully-new mode.
type Mode struct {
	Kind ModeKind
	// Provider supplies actions for teleop/ai/data modes; nil for idle.
	Provider provider.Provider
	// Instruction is the stored AI task text; set only while Kind is ModeAI.
	Instruction string
}

// idleMode is the zero command source. Always reachable, needs no provider.
var idleMode = Mode{Kind: ModeIdle}

// ProviderName returns the active provider's identifier, or "" for idle.
func (m Mode) ProviderName() string {
	if m.Provider == nil {
		return ""
	}
	return m.Provider.Name()
}
