// Package control implements the robot-side control loop: observe, fetch an
// action from the active provider, filter it, and actuate at a fixed rate.
package control

import (
	"sort"

	"hubd/internal/proto"
)

// Filter smooths raw provider actions per channel: the median over a sliding
// window removes spikes, then a low-pass blend against the previous output
// removes residual jitter:
//
//	filtered = alpha*median + (1-alpha)*previous
//
// Until a channel's window fills, the median is taken over the samples seen
// so far. Not safe for concurrent use; the loop owns it.
type Filter struct {
	window int
	alpha  float64

	history map[string][]float64
	prev    map[string]float64
	scratch []float64
}

// NewFilter returns a filter with the given window size and blend factor.
// Window must be >= 1 and alpha in [0, 1]; alpha 1 disables the low-pass.
func NewFilter(window int, alpha float64) *Filter {
	if window < 1 {
		window = 1
	}
	return &Filter{
		window:  window,
		alpha:   alpha,
		history: make(map[string][]float64),
		prev:    make(map[string]float64),
		scratch: make([]float64, 0, window),
	}
}

// Apply pushes one raw action and returns the filtered output. Channels are
// filtered independently; a channel appearing mid-stream starts its own
// window.
func (f *Filter) Apply(raw proto.Action) proto.Action {
	out := proto.Action{
		Values:      make(map[string]float64, len(raw.Values)),
		TimestampNS: raw.TimestampNS,
	}
	for name, v := range raw.Values {
		h := append(f.history[name], v)
		if len(h) > f.window {
			h = h[len(h)-f.window:]
		}
		f.history[name] = h

		med := f.median(h)
		filtered := med
		if prev, ok := f.prev[name]; ok {
			filtered = f.alpha*med + (1-f.alpha)*prev
		}
		f.prev[name] = filtered
		out.Values[name] = filtered
	}
	return out
}

// Reset clears all history. Called on every mode change so a new provider's
// first actions are not blended against the previous provider's output.
func (f *Filter) Reset() {
	f.history = make(map[string][]float64)
	f.prev = make(map[string]float64)
}

func (f *Filter) median(h []float64) float64 {
	f.scratch = append(f.scratch[:0], h...)
	sort.Float64s(f.scratch)
	n := len(f.scratch)
	if n%2 == 1 {
		return f.scratch[n/2]
	}
	return (f.scratch[n/2-1] + f.scratch[n/2]) / 2
}
