// ABOUTME: Engine facade owning both slots, the output sink and the mixer lifecycle
// ABOUTME: Start/stop state machine plus slot controls, routing and accessors
package dualdeck

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dualdeck/dualdeck-go/pkg/audio/output"
	"github.com/sirupsen/logrus"
)

const (
	DefaultSampleRate      = 44100
	DefaultChunkFrames     = 4096
	DefaultReadAttempts    = 5
	DefaultRetryDelay      = 2 * time.Millisecond
	DefaultIdleDelay       = 20 * time.Millisecond
	DefaultStopTimeout     = 2 * time.Second
	DefaultCompletionQueue = 16
)

// Config holds engine configuration
type Config struct {
	// Opener creates decoders for SetSource (default: decode.Open)
	Opener Opener
	// Sink receives the mixed stereo stream (default: oto)
	Sink Sink

	// DefaultSampleRate is used by Start when slot A is empty
	DefaultSampleRate int
	// ChunkFrames is the most mono frames pulled per slot per iteration
	ChunkFrames int
	// ReadAttempts and RetryDelay bound the wait for a decoder with no output
	ReadAttempts int
	RetryDelay   time.Duration
	// IdleDelay is the sleep while both slots are paused or starved
	IdleDelay time.Duration
	// StopTimeout bounds the join before the sink is force-closed
	StopTimeout time.Duration
	// CompletionQueue is the capacity of the completion channel
	CompletionQueue int

	// OnCompletion runs on the dispatcher goroutine, once per end-of-stream
	OnCompletion func(Slot)
	Observer     Observer
	Logger       logrus.FieldLogger
}

// Engine mixes two decoders into one stereo sink.
//
// States are Stopped and Running. Resume on a stopped engine starts it:
// this is the one transition driven by a slot control.
type Engine struct {
	cfg   Config
	log   logrus.FieldLogger
	obs   Observer
	slots [2]*slot

	mode    atomic.Int32
	swapped atomic.Bool
	primary atomic.Int32

	lifeMu   sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	running  atomic.Bool
	sinkRate atomic.Int64
	closed   bool

	completions chan Slot
	closeOnce   sync.Once
}

// New creates a stopped engine and starts its completion dispatcher
func New(cfg Config) *Engine {
	if cfg.Opener == nil {
		cfg.Opener = DefaultOpener
	}
	if cfg.Sink == nil {
		cfg.Sink = output.NewOto()
	}
	if cfg.DefaultSampleRate <= 0 {
		cfg.DefaultSampleRate = DefaultSampleRate
	}
	if cfg.ChunkFrames <= 0 {
		cfg.ChunkFrames = DefaultChunkFrames
	}
	if cfg.ReadAttempts <= 0 {
		cfg.ReadAttempts = DefaultReadAttempts
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.IdleDelay <= 0 {
		cfg.IdleDelay = DefaultIdleDelay
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if cfg.CompletionQueue <= 0 {
		cfg.CompletionQueue = DefaultCompletionQueue
	}
	if cfg.Observer == nil {
		cfg.Observer = nopObserver{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	e := &Engine{
		cfg:         cfg,
		log:         cfg.Logger.WithField("component", "engine"),
		obs:         cfg.Observer,
		slots:       [2]*slot{newSlot(SlotA), newSlot(SlotB)},
		completions: make(chan Slot, cfg.CompletionQueue),
	}
	e.primary.Store(int32(SlotA))

	go e.dispatch()
	return e
}

// Start opens the sink at slot A's sample rate (or the default) and spawns
// the mixer. It is a no-op while running.
func (e *Engine) Start() error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	return e.startLocked()
}

func (e *Engine) startLocked() error {
	if e.closed {
		return ErrClosed
	}
	if e.cancel != nil {
		return nil
	}

	rate := e.cfg.DefaultSampleRate
	if r := int(e.slots[SlotA].rate.Load()); r > 0 {
		rate = r
	}

	if err := e.cfg.Sink.Open(rate, 2); err != nil {
		return fmt.Errorf("%w: %w", ErrSinkUnavailable, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	e.cancel = cancel
	e.done = done
	e.sinkRate.Store(int64(rate))
	e.running.Store(true)
	e.obs.Running(true)

	go func() {
		defer close(done)
		e.run(ctx)
	}()

	e.log.WithField("rate", rate).Info("Engine started")
	return nil
}

// Stop ends the mixer, waits for it, then releases the sink and both decoders
func (e *Engine) Stop() error {
	e.lifeMu.Lock()
	defer e.lifeMu.Unlock()
	return e.stopLocked()
}

func (e *Engine) stopLocked() error {
	if e.cancel == nil {
		return nil
	}

	e.cancel()

	var errs []error
	sinkClosed := false
	select {
	case <-e.done:
	case <-time.After(e.cfg.StopTimeout):
		// The mixer is parked in a sink write; closing the sink releases it
		e.log.Warn("Mixer did not stop in time, closing sink")
		if err := e.cfg.Sink.Close(); err != nil {
			errs = append(errs, err)
		}
		sinkClosed = true
		<-e.done
	}

	if !sinkClosed {
		if err := e.cfg.Sink.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close sink: %w", err))
		}
	}

	for _, s := range e.slots {
		if old := s.install(nil, ""); old != nil {
			if err := old.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close slot %s: %w", s.id, err))
			}
		}
	}

	e.cancel = nil
	e.done = nil
	e.running.Store(false)
	e.obs.Running(false)
	e.log.Info("Engine stopped")

	return errors.Join(errs...)
}

// Close stops the engine and ends the completion dispatcher. Completions
// already queued are still delivered.
func (e *Engine) Close() error {
	e.lifeMu.Lock()
	err := e.stopLocked()
	e.closed = true
	e.lifeMu.Unlock()

	e.closeOnce.Do(func() { close(e.completions) })
	return err
}

func (e *Engine) slot(s Slot) (*slot, error) {
	if !s.valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSlot, int(s))
	}
	return e.slots[s], nil
}

// SetSource opens source and replaces the slot's decoder. Pause and volume
// are kept. On failure the slot is left empty and silent.
func (e *Engine) SetSource(s Slot, source string) error {
	sl, err := e.slot(s)
	if err != nil {
		return err
	}

	dec, err := e.cfg.Opener(source)
	if err != nil {
		e.replace(sl, nil, "")
		e.log.WithFields(logrus.Fields{"slot": s, "source": source}).Warnf("Source unavailable: %v", err)
		return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	e.replace(sl, dec, source)
	e.log.WithFields(logrus.Fields{"slot": s, "source": source, "rate": dec.SampleRate()}).Info("Source set")
	return nil
}

// SetDecoder installs an already-open decoder, for callers with their own
// sources. name is reported by Source.
func (e *Engine) SetDecoder(s Slot, dec Decoder, name string) error {
	sl, err := e.slot(s)
	if err != nil {
		return err
	}
	e.replace(sl, dec, name)
	return nil
}

// ClearSource releases the slot's decoder
func (e *Engine) ClearSource(s Slot) error {
	sl, err := e.slot(s)
	if err != nil {
		return err
	}
	e.replace(sl, nil, "")
	return nil
}

func (e *Engine) replace(sl *slot, dec Decoder, name string) {
	old := sl.install(dec, name)
	if old != nil {
		if err := old.Close(); err != nil {
			e.log.WithField("slot", sl.id).Warnf("Error closing previous decoder: %v", err)
		}
	}
}

// Pause stops pulling from the slot
func (e *Engine) Pause(s Slot) error {
	sl, err := e.slot(s)
	if err != nil {
		return err
	}
	sl.state.SetPaused(true)
	return nil
}

// Resume unpauses the slot and starts the engine if it is stopped
func (e *Engine) Resume(s Slot) error {
	sl, err := e.slot(s)
	if err != nil {
		return err
	}
	sl.state.SetPaused(false)
	return e.Start()
}

// PauseAll pauses both slots
func (e *Engine) PauseAll() {
	for _, sl := range e.slots {
		sl.state.SetPaused(true)
	}
}

// ResumeAll unpauses both slots and starts the engine if needed
func (e *Engine) ResumeAll() error {
	for _, sl := range e.slots {
		sl.state.SetPaused(false)
	}
	return e.Start()
}

// Seek repositions the slot's decoder and re-arms its end-of-stream
func (e *Engine) Seek(s Slot, positionMs int64) error {
	sl, err := e.slot(s)
	if err != nil {
		return err
	}
	if err := sl.seek(positionMs); err != nil {
		if errors.Is(err, ErrNoSource) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}
	return nil
}

// SetVolume sets the slot's software gain
func (e *Engine) SetVolume(s Slot, gain float64) error {
	sl, err := e.slot(s)
	if err != nil {
		return err
	}
	sl.state.SetGain(gain)
	return nil
}

// SetMode selects split or same routing
func (e *Engine) SetMode(m Mode) error {
	if m != ModeSplit && m != ModeSame {
		return fmt.Errorf("%w: %d", ErrInvalidMode, int(m))
	}
	e.mode.Store(int32(m))
	return nil
}

// ToggleSwap flips the split-mode channel assignment and returns the new value
func (e *Engine) ToggleSwap() bool {
	for {
		old := e.swapped.Load()
		if e.swapped.CompareAndSwap(old, !old) {
			return !old
		}
	}
}

// SetSwap sets the split-mode channel assignment
func (e *Engine) SetSwap(swapped bool) { e.swapped.Store(swapped) }

// SetPrimarySource selects the slot played in same mode
func (e *Engine) SetPrimarySource(s Slot) error {
	if !s.valid() {
		return fmt.Errorf("%w: %d", ErrInvalidSlot, int(s))
	}
	e.primary.Store(int32(s))
	return nil
}

// Running reports whether the mixer is active
func (e *Engine) Running() bool { return e.running.Load() }

// Mode returns the routing mode
func (e *Engine) Mode() Mode { return Mode(e.mode.Load()) }

// Swapped returns the split-mode swap flag
func (e *Engine) Swapped() bool { return e.swapped.Load() }

// Primary returns the same-mode source slot
func (e *Engine) Primary() Slot { return Slot(e.primary.Load()) }

// SampleRate returns the rate the sink was opened at, 0 when stopped
func (e *Engine) SampleRate() int {
	if !e.Running() {
		return 0
	}
	return int(e.sinkRate.Load())
}

// State returns the slot's channel state
func (e *Engine) State(s Slot) *ChannelState {
	if !s.valid() {
		return nil
	}
	return e.slots[s].state
}

// Paused reports the slot's pause flag
func (e *Engine) Paused(s Slot) bool {
	if !s.valid() {
		return true
	}
	return e.slots[s].state.Paused()
}

// Playing reports whether the slot is loaded, unpaused and the engine runs
func (e *Engine) Playing(s Slot) bool {
	if !s.valid() {
		return false
	}
	sl := e.slots[s]
	return e.Running() && sl.loaded.Load() && !sl.state.Paused()
}

// ProgressMs returns the slot's decode position
func (e *Engine) ProgressMs(s Slot) int64 {
	if !s.valid() {
		return 0
	}
	return e.slots[s].positionMs.Load()
}

// DurationMs returns the slot's declared duration, 0 when unknown
func (e *Engine) DurationMs(s Slot) int64 {
	if !s.valid() {
		return 0
	}
	return e.slots[s].durationMs.Load()
}

// Volume returns the slot's gain
func (e *Engine) Volume(s Slot) float64 {
	if !s.valid() {
		return 0
	}
	return e.slots[s].state.Gain()
}

// Source returns the slot's source handle, empty when unloaded
func (e *Engine) Source(s Slot) string {
	if !s.valid() {
		return ""
	}
	return e.slots[s].sourceName()
}

// SlotStatus is a point-in-time view of one slot
type SlotStatus struct {
	Slot        Slot
	Source      string
	Loaded      bool
	Paused      bool
	Playing     bool
	EndOfStream bool
	Volume      float64
	ProgressMs  int64
	DurationMs  int64
	SampleRate  int
}

// Snapshot is a point-in-time view of the engine for presenters
type Snapshot struct {
	Running    bool
	Mode       Mode
	Swapped    bool
	Primary    Slot
	SampleRate int
	Slots      [2]SlotStatus
}

// Snapshot collects every accessor without blocking on the mixer
func (e *Engine) Snapshot() Snapshot {
	snap := Snapshot{
		Running:    e.Running(),
		Mode:       e.Mode(),
		Swapped:    e.Swapped(),
		Primary:    e.Primary(),
		SampleRate: e.SampleRate(),
	}
	for i, sl := range e.slots {
		snap.Slots[i] = SlotStatus{
			Slot:        sl.id,
			Source:      sl.sourceName(),
			Loaded:      sl.loaded.Load(),
			Paused:      sl.state.Paused(),
			Playing:     e.Playing(sl.id),
			EndOfStream: sl.state.EndOfStream(),
			Volume:      sl.state.Gain(),
			ProgressMs:  sl.positionMs.Load(),
			DurationMs:  sl.durationMs.Load(),
			SampleRate:  int(sl.rate.Load()),
		}
	}
	return snap
}
