package proto

import "time"

// RawFrame is an unencoded camera frame as read from the hardware layer:
// packed RGB bytes, row-major.
type RawFrame struct {
	Width  int    `cbor:"width" json:"width"`
	Height int    `cbor:"height" json:"height"`
	Pixels []byte `cbor:"pixels" json:"pixels"`
}

// Observation is one snapshot of robot state: a named numeric state vector
// plus any raw camera frames the hardware captured alongside it. Frames is
// nil when the observation was shaped numeric-only.
type Observation struct {
	State       map[string]float64  `cbor:"state" json:"state"`
	Frames      map[string]RawFrame `cbor:"frames,omitempty" json:"frames,omitempty"`
	Instruction string              `cbor:"instruction,omitempty" json:"instruction,omitempty"`
	TimestampNS int64               `cbor:"timestamp_ns" json:"timestamp_ns"`
}

// NewObservation stamps an observation with the current time.
func NewObservation(state map[string]float64, frames map[string]RawFrame) Observation {
	return Observation{State: state, Frames: frames, TimestampNS: time.Now().UnixNano()}
}

// NumericOnly returns a copy of the observation with frames stripped. Used
// for teleop peers where timing matters more than payload completeness.
func (o Observation) NumericOnly() Observation {
	return Observation{State: o.State, Instruction: o.Instruction, TimestampNS: o.TimestampNS}
}

// WithInstruction returns a copy carrying the AI instruction text.
func (o Observation) WithInstruction(instruction string) Observation {
	o.Instruction = instruction
	return o
}

// Action is a named numeric command vector matching the robot's actuation
// dimensionality.
type Action struct {
	Values      map[string]float64 `cbor:"values" json:"values"`
	TimestampNS int64              `cbor:"timestamp_ns" json:"timestamp_ns"`
}

// NewAction stamps an action with the current time.
func NewAction(values map[string]float64) Action {
	return Action{Values: values, TimestampNS: time.Now().UnixNano()}
}

// Clone returns a deep copy so callers can mutate values freely.
func (a Action) Clone() Action {
	out := Action{Values: make(map[string]float64, len(a.Values)), TimestampNS: a.TimestampNS}
	for k, v := range a.Values {
		out.Values[k] = v
	}
	return out
}

// Empty reports whether the action carries no channels.
func (a Action) Empty() bool { return len(a.Values) == 0 }

// Frame is an encoded camera frame as published to stream subscribers.
// Immutable once published.
type Frame struct {
	Camera      string `cbor:"camera" json:"camera"`
	TimestampNS int64  `cbor:"timestamp_ns" json:"timestamp_ns"`
	Encoding    string `cbor:"encoding" json:"encoding"`
	Width       int    `cbor:"width" json:"width"`
	Height      int    `cbor:"height" json:"height"`
	Quality     int    `cbor:"quality" json:"quality"`
	Data        []byte `cbor:"data" json:"-"`
}
