// ABOUTME: Scripted decoders, sinks and observers for engine tests
// ABOUTME: Count calls so tests can assert what the mixer touched
package dualdeck

import (
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dualdeck/dualdeck-go/pkg/audio/decode"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

type fakeDecoder struct {
	mu     sync.Mutex
	rate   int
	total  int64 // frames available, negative for endless
	pos    int64
	value  int16
	gen    func(frame int64) int16 // per-frame value, overrides value
	stalls int // reads returning (0, nil) before data
	stuck  bool
	fault  error
	reads  int
	closed bool
}

func newFake(rate int, total int64, value int16) *fakeDecoder {
	return &fakeDecoder{rate: rate, total: total, value: value}
}

// newSignalFake yields gen(i) for frame i
func newSignalFake(rate int, total int64, gen func(int64) int16) *fakeDecoder {
	return &fakeDecoder{rate: rate, total: total, gen: gen}
}

func (f *fakeDecoder) ReadFrames(dst []int16) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.reads++
	if f.closed {
		return 0, decode.ErrClosed
	}
	if f.fault != nil {
		return 0, f.fault
	}
	if f.stuck {
		return 0, nil
	}
	if f.stalls > 0 {
		f.stalls--
		return 0, nil
	}

	n := int64(len(dst))
	if f.total >= 0 {
		if remaining := f.total - f.pos; remaining < n {
			n = remaining
		}
	}
	if n <= 0 {
		return 0, io.EOF
	}
	for i := int64(0); i < n; i++ {
		if f.gen != nil {
			dst[i] = f.gen(f.pos + i)
		} else {
			dst[i] = f.value
		}
	}
	f.pos += n
	return int(n), nil
}

func (f *fakeDecoder) SampleRate() int { return f.rate }

func (f *fakeDecoder) Seek(positionMs int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return decode.ErrClosed
	}
	f.pos = max(positionMs, 0) * int64(f.rate) / 1000
	if f.total >= 0 && f.pos > f.total {
		f.pos = f.total
	}
	return nil
}

func (f *fakeDecoder) PositionMs() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pos * 1000 / int64(f.rate)
}

func (f *fakeDecoder) DurationMs() int64 {
	if f.total < 0 {
		return 0
	}
	return f.total * 1000 / int64(f.rate)
}

func (f *fakeDecoder) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeDecoder) Reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads
}

func (f *fakeDecoder) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type captureSink struct {
	mu       sync.Mutex
	openErr  error
	writeErr error
	rate     int
	channels int
	opens    int
	closes   int
	writes   int
	frames   int64
	samples  []int16
}

func (s *captureSink) Open(sampleRate, channels int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.openErr != nil {
		return s.openErr
	}
	s.opens++
	s.rate = sampleRate
	s.channels = channels
	return nil
}

func (s *captureSink) Write(samples []int16) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return 0, s.writeErr
	}
	s.writes++
	s.frames += int64(len(samples) / 2)
	s.samples = append(s.samples, samples...)
	return len(samples) / 2, nil
}

func (s *captureSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *captureSink) Frames() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *captureSink) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

func (s *captureSink) Samples() []int16 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int16(nil), s.samples...)
}

// blockingSink parks every write until Close
type blockingSink struct {
	entered   chan struct{}
	closed    chan struct{}
	enterOnce sync.Once
	closeOnce sync.Once
}

func newBlockingSink() *blockingSink {
	return &blockingSink{entered: make(chan struct{}), closed: make(chan struct{})}
}

func (s *blockingSink) Open(int, int) error { return nil }

func (s *blockingSink) Write([]int16) (int, error) {
	s.enterOnce.Do(func() { close(s.entered) })
	<-s.closed
	return 0, errors.New("sink closed")
}

func (s *blockingSink) Close() error {
	s.closeOnce.Do(func() { close(s.closed) })
	return nil
}

type countingObserver struct {
	nopObserver
	written   atomic.Int64
	stalls    atomic.Int32
	faults    atomic.Int32
	completed atomic.Int32
	dropped   atomic.Int32
}

func (o *countingObserver) FramesWritten(frames int, _ time.Duration) { o.written.Add(int64(frames)) }
func (o *countingObserver) DecodeStall(Slot)                          { o.stalls.Add(1) }
func (o *countingObserver) DecodeFault(Slot)                          { o.faults.Add(1) }
func (o *countingObserver) Completion(Slot)                           { o.completed.Add(1) }
func (o *countingObserver) CompletionDropped(Slot)                    { o.dropped.Add(1) }

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// newTestEngine builds a stopped engine with fast timings and a capture sink
func newTestEngine(t *testing.T, a, b Decoder, opts ...func(*Config)) (*Engine, *captureSink) {
	t.Helper()

	sink := &captureSink{}
	cfg := Config{
		Sink:        sink,
		ChunkFrames: 64,
		RetryDelay:  time.Millisecond,
		IdleDelay:   time.Millisecond,
		StopTimeout: time.Second,
		Logger:      quietLogger(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	e := New(cfg)
	t.Cleanup(func() { _ = e.Close() })

	if a != nil {
		require.NoError(t, e.SetDecoder(SlotA, a, "a"))
	}
	if b != nil {
		require.NoError(t, e.SetDecoder(SlotB, b, "b"))
	}
	return e, sink
}

func completionRecorder(ch chan Slot) func(*Config) {
	return func(c *Config) {
		c.OnCompletion = func(s Slot) { ch <- s }
	}
}

func expectCompletion(t *testing.T, ch <-chan Slot, want Slot) {
	t.Helper()
	select {
	case got := <-ch:
		require.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("no completion for slot %s", want)
	}
}

func expectNoCompletion(t *testing.T, ch <-chan Slot) {
	t.Helper()
	select {
	case got := <-ch:
		t.Fatalf("unexpected completion for slot %s", got)
	case <-time.After(50 * time.Millisecond):
	}
}
