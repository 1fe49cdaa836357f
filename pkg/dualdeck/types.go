// ABOUTME: Core types for the dual-source engine
// ABOUTME: Slots, routing modes, collaborator interfaces and errors
package dualdeck

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dualdeck/dualdeck-go/pkg/audio/decode"
)

// Slot identifies one of the two playback positions
type Slot int

const (
	SlotA Slot = iota
	SlotB
)

// Slots lists both slots in order
var Slots = [2]Slot{SlotA, SlotB}

func (s Slot) String() string {
	switch s {
	case SlotA:
		return "A"
	case SlotB:
		return "B"
	default:
		return fmt.Sprintf("Slot(%d)", int(s))
	}
}

// Other returns the opposite slot
func (s Slot) Other() Slot {
	if s == SlotA {
		return SlotB
	}
	return SlotA
}

func (s Slot) valid() bool { return s == SlotA || s == SlotB }

// ParseSlot accepts "A"/"B" in any case
func ParseSlot(v string) (Slot, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "A":
		return SlotA, nil
	case "B":
		return SlotB, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidSlot, v)
	}
}

// Mode is the routing policy
type Mode int32

const (
	// ModeSplit sends A to the left channel and B to the right (or swapped)
	ModeSplit Mode = iota
	// ModeSame plays the primary slot on both channels
	ModeSame
)

func (m Mode) String() string {
	switch m {
	case ModeSplit:
		return "split"
	case ModeSame:
		return "same"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// ParseMode accepts "split" or "same" in any case
func ParseMode(v string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "split":
		return ModeSplit, nil
	case "same":
		return ModeSame, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidMode, v)
	}
}

// Decoder is a single source producing mono frames.
// ReadFrames returning (0, nil) means "try again"; end of stream is
// reported with an error matching io.EOF.
type Decoder interface {
	ReadFrames(dst []int16) (int, error)
	SampleRate() int
	Seek(positionMs int64) error
	PositionMs() int64
	DurationMs() int64
	Close() error
}

// Opener turns a source handle into a Decoder
type Opener func(source string) (Decoder, error)

// DefaultOpener opens sources with the decode package
func DefaultOpener(source string) (Decoder, error) {
	return decode.Open(source)
}

// Sink is a blocking 16-bit interleaved PCM output.
// output.Output satisfies it.
type Sink interface {
	Open(sampleRate, channels int) error
	Write(samples []int16) (int, error)
	Close() error
}

// Observer receives engine events for instrumentation. Calls happen on the
// mixer goroutine and must not block.
type Observer interface {
	FramesWritten(frames int, elapsed time.Duration)
	SinkError(err error)
	DecodeStall(slot Slot)
	DecodeFault(slot Slot)
	Completion(slot Slot)
	CompletionDropped(slot Slot)
	Running(running bool)
}

type nopObserver struct{}

func (nopObserver) FramesWritten(int, time.Duration) {}
func (nopObserver) SinkError(error)                  {}
func (nopObserver) DecodeStall(Slot)                 {}
func (nopObserver) DecodeFault(Slot)                 {}
func (nopObserver) Completion(Slot)                  {}
func (nopObserver) CompletionDropped(Slot)           {}
func (nopObserver) Running(bool)                     {}

var (
	// ErrSourceUnavailable is returned when a source cannot be opened or
	// repositioned; the slot is left silent
	ErrSourceUnavailable = errors.New("source unavailable")

	// ErrSinkUnavailable is returned by Start when the output cannot be opened
	ErrSinkUnavailable = errors.New("sink unavailable")

	// ErrNoSource is returned by slot operations on an empty slot
	ErrNoSource = errors.New("no source assigned")

	// ErrInvalidSlot is returned for slot values other than A and B
	ErrInvalidSlot = errors.New("invalid slot")

	// ErrInvalidMode is returned for unknown routing modes
	ErrInvalidMode = errors.New("invalid mode")

	// ErrClosed is returned after Close
	ErrClosed = errors.New("engine closed")
)
