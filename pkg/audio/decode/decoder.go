// ABOUTME: Seekable mono PCM decoder over a codec backend
// ABOUTME: Serializes read/seek/close, downmixes to mono and tracks position
package decode

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/dualdeck/dualdeck-go/pkg/audio"
)

// stream is implemented by each codec backend.
//
// read fills dst with interleaved samples (a whole number of frames) and
// returns the sample count; io.EOF marks the end. The samples use the layout
// channels() reports after the call, which may differ from the one before it.
// A read does one bounded unit of work and may return 0 with a nil error.
// seek repositions to the nearest sync point at or before frame and returns
// the frame it landed on.
type stream interface {
	read(dst []int16) (int, error)
	sampleRate() int
	channels() int
	seek(frame int64) (int64, error)
	length() int64
	close() error
}

// Decoder produces mono int16 frames from one audio source
type Decoder struct {
	mu     sync.Mutex
	src    string
	codec  string
	st     stream
	buf    []int16
	carry  []int16 // mono frames decoded but not yet returned
	rate   int
	chans  int
	baseUs int64 // position at the last seek or rate change
	frames int64 // frames read since baseUs
	eos    bool
	ended  bool // backend hit io.EOF, report it on the next read
	closed bool
}

func newDecoder(src, codec string, st stream) *Decoder {
	return &Decoder{
		src:   src,
		codec: codec,
		st:    st,
		rate:  st.sampleRate(),
		chans: st.channels(),
	}
}

// ReadFrames decodes up to len(dst) mono frames into dst.
// A zero count with a nil error means no output was ready yet.
func (d *Decoder) ReadFrames(dst []int16) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, ErrClosed
	}
	if d.eos {
		return 0, ErrEndOfStream
	}
	if len(dst) == 0 {
		return 0, nil
	}
	if len(d.carry) > 0 {
		n := copy(dst, d.carry)
		d.carry = d.carry[n:]
		d.frames += int64(n)
		return n, nil
	}
	if d.ended {
		d.eos = true
		return 0, ErrEndOfStream
	}

	ch := max(d.chans, 1)
	need := len(dst) * ch
	if cap(d.buf) < need {
		d.buf = make([]int16, need)
	}

	n, err := d.st.read(d.buf[:need])

	// The backend may switch layout inside a read; its samples follow the new one
	if c := d.st.channels(); c > 0 {
		ch = c
		d.chans = c
	}
	frames := d.downmix(dst, d.buf[:n-n%ch], ch)
	d.frames += int64(frames)

	if r := d.st.sampleRate(); r > 0 && r != d.rate {
		d.rebase()
		d.rate = r
	}

	switch {
	case err == nil:
		return frames, nil
	case errors.Is(err, io.EOF):
		if frames > 0 {
			d.ended = true
			return frames, nil
		}
		d.eos = true
		return 0, ErrEndOfStream
	default:
		return frames, fmt.Errorf("%w: %s: %v", ErrDecodeFault, d.codec, err)
	}
}

// downmix writes mono frames of src into dst and keeps any that do not fit
// in carry. It returns the number written to dst.
func (d *Decoder) downmix(dst, src []int16, ch int) int {
	total := len(src) / ch
	frames := min(total, len(dst))
	for i := 0; i < total; i++ {
		var v int16
		if ch == 1 {
			v = src[i]
		} else {
			v = audio.DownmixFrame(src[i*ch : (i+1)*ch])
		}
		if i < frames {
			dst[i] = v
		} else {
			d.carry = append(d.carry, v)
		}
	}
	return frames
}

// rebase folds frames read at the current rate into baseUs (must hold d.mu)
func (d *Decoder) rebase() {
	if d.rate > 0 {
		d.baseUs += d.frames * 1_000_000 / int64(d.rate)
	}
	d.frames = 0
}

// Seek moves to the nearest sync point at or before positionMs and clears
// end-of-stream
func (d *Decoder) Seek(positionMs int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}
	if positionMs < 0 {
		positionMs = 0
	}

	target := audio.MsToFrames(positionMs, d.rate)
	landed, err := d.st.seek(target)
	if err != nil {
		return fmt.Errorf("seek %s to %dms: %w", d.src, positionMs, err)
	}

	if r := d.st.sampleRate(); r > 0 {
		d.rate = r
	}
	d.baseUs = landed * 1_000_000 / int64(max(d.rate, 1))
	d.frames = 0
	d.carry = d.carry[:0]
	d.eos = false
	d.ended = false
	return nil
}

// SampleRate returns the most recently observed sample rate
func (d *Decoder) SampleRate() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.rate
}

// Channels returns the source channel count before downmixing
func (d *Decoder) Channels() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.chans
}

// PositionMs returns the read position in milliseconds
func (d *Decoder) PositionMs() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.positionUs() / 1000
}

func (d *Decoder) positionUs() int64 {
	if d.rate <= 0 {
		return d.baseUs
	}
	return d.baseUs + d.frames*1_000_000/int64(d.rate)
}

// DurationMs returns the declared stream length, or 0 when unknown
func (d *Decoder) DurationMs() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.rate <= 0 {
		return 0
	}
	return audio.FramesToMs(d.st.length(), d.rate)
}

// EndOfStream reports whether the decoder has signalled end-of-stream
func (d *Decoder) EndOfStream() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.eos
}

// Codec returns the backend name
func (d *Decoder) Codec() string { return d.codec }

// Source returns the source handle the decoder was opened with
func (d *Decoder) Source() string { return d.src }

// Close releases backend resources. It waits for an in-flight read.
func (d *Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	d.buf = nil
	d.carry = nil
	return d.st.close()
}
