// ABOUTME: Per-slot playback flags shared between callers and the mixer
// ABOUTME: Atomic cells so the mixer sees updates on its next iteration
package dualdeck

import (
	"math"
	"sync/atomic"
)

// ChannelState holds the pause, gain and end-of-stream flags for a slot.
// Callers write paused and gain; the mixer writes end-of-stream.
type ChannelState struct {
	paused atomic.Bool
	eos    atomic.Bool
	gain   atomic.Uint64 // math.Float64bits
}

func newChannelState() *ChannelState {
	cs := &ChannelState{}
	cs.SetGain(1)
	return cs
}

// Paused reports whether the slot is paused
func (cs *ChannelState) Paused() bool { return cs.paused.Load() }

// SetPaused sets the paused flag
func (cs *ChannelState) SetPaused(p bool) { cs.paused.Store(p) }

// Gain returns the software volume
func (cs *ChannelState) Gain() float64 {
	return math.Float64frombits(cs.gain.Load())
}

// SetGain stores the software volume. Negative and NaN become 0.
func (cs *ChannelState) SetGain(g float64) {
	if math.IsNaN(g) || g < 0 {
		g = 0
	}
	cs.gain.Store(math.Float64bits(g))
}

// EndOfStream reports whether the slot hit end-of-stream
func (cs *ChannelState) EndOfStream() bool { return cs.eos.Load() }

// markEnd latches end-of-stream and pauses the slot. It returns true only
// for the call that performed the transition.
func (cs *ChannelState) markEnd() bool {
	cs.paused.Store(true)
	return cs.eos.CompareAndSwap(false, true)
}

func (cs *ChannelState) clearEnd() { cs.eos.Store(false) }
