// ABOUTME: One playback position: its decoder, activation id and cached transport
// ABOUTME: The slot mutex is the exclusive section for decoder read/seek/close
package dualdeck

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

type slot struct {
	id    Slot
	state *ChannelState

	mu         sync.Mutex
	dec        Decoder
	activation uuid.UUID

	// Cached for non-blocking accessors
	loaded     atomic.Bool
	source     atomic.Value // string
	positionMs atomic.Int64
	durationMs atomic.Int64
	rate       atomic.Int64
	rateWarned atomic.Bool
}

func newSlot(id Slot) *slot {
	s := &slot{id: id, state: newChannelState()}
	s.source.Store("")
	return s
}

// install swaps in dec (nil to empty the slot) and returns the previous
// decoder for the caller to close outside the lock
func (s *slot) install(dec Decoder, source string) Decoder {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.dec
	s.dec = dec
	s.activation = uuid.New()
	s.state.clearEnd()
	s.rateWarned.Store(false)
	s.positionMs.Store(0)

	if dec != nil {
		s.loaded.Store(true)
		s.source.Store(source)
		s.durationMs.Store(dec.DurationMs())
		s.rate.Store(int64(dec.SampleRate()))
	} else {
		s.loaded.Store(false)
		s.source.Store("")
		s.durationMs.Store(0)
		s.rate.Store(0)
	}
	return old
}

// read performs one decoder read inside the exclusive section.
// ok is false when the slot has no decoder.
func (s *slot) read(dst []int16) (n int, act uuid.UUID, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dec == nil {
		return 0, uuid.Nil, false, nil
	}
	n, err = s.dec.ReadFrames(dst)
	s.positionMs.Store(s.dec.PositionMs())
	s.rate.Store(int64(s.dec.SampleRate()))
	return n, s.activation, true, err
}

// seek repositions the decoder and re-arms end-of-stream
func (s *slot) seek(positionMs int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dec == nil {
		return ErrNoSource
	}
	if err := s.dec.Seek(positionMs); err != nil {
		return err
	}
	s.positionMs.Store(s.dec.PositionMs())
	s.state.clearEnd()
	return nil
}

// finish latches end-of-stream for the given activation. It returns true
// when a completion should be dispatched.
func (s *slot) finish(act uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dec == nil || s.activation != act {
		return false
	}
	return s.state.markEnd()
}

func (s *slot) sourceName() string {
	v, _ := s.source.Load().(string)
	return v
}
