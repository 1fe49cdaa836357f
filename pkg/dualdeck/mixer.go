// ABOUTME: Mixer loop pulling mono frames from both slots into the stereo sink
// ABOUTME: Handles routing, gain, starvation retries and end-of-stream detection
package dualdeck

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/dualdeck/dualdeck-go/pkg/audio"
	"github.com/dualdeck/dualdeck-go/pkg/audio/decode"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// sinkErrorLogEvery throttles repeated sink write warnings
const sinkErrorLogEvery = 50

// routing is the per-iteration snapshot of the shared mix settings
type routing struct {
	mode    Mode
	swapped bool
	primary Slot
	gain    [2]float64
}

type mixBuffers struct {
	src       [2][]int16
	out       []int16
	sinkFails int
}

func newMixBuffers(chunk int) *mixBuffers {
	return &mixBuffers{
		src: [2][]int16{make([]int16, chunk), make([]int16, chunk)},
		out: make([]int16, chunk*2),
	}
}

func (e *Engine) run(ctx context.Context) {
	buf := newMixBuffers(e.cfg.ChunkFrames)
	for ctx.Err() == nil {
		e.mixOnce(ctx, buf)
	}
}

// mixOnce runs a single mixer iteration
func (e *Engine) mixOnce(ctx context.Context, buf *mixBuffers) {
	r := routing{mode: e.Mode(), swapped: e.Swapped(), primary: e.Primary()}

	var n [2]int
	live := false
	for _, sl := range e.slots {
		if sl.state.Paused() {
			continue
		}
		// Same mode only consumes the primary; the other slot holds position
		if r.mode == ModeSame && sl.id != r.primary {
			continue
		}
		live = true
		n[sl.id] = e.pull(ctx, sl, buf.src[sl.id])
	}

	if !live {
		sleep(ctx, e.cfg.IdleDelay)
		return
	}

	frames := max(n[SlotA], n[SlotB])
	if frames == 0 {
		sleep(ctx, e.cfg.IdleDelay)
		return
	}

	for _, sl := range e.slots {
		r.gain[sl.id] = sl.state.Gain()
	}
	out := compose(buf.out, [2][]int16{buf.src[SlotA][:n[SlotA]], buf.src[SlotB][:n[SlotB]]}, frames, r)

	start := time.Now()
	written, err := e.cfg.Sink.Write(out)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		buf.sinkFails++
		e.obs.SinkError(err)
		if buf.sinkFails%sinkErrorLogEvery == 1 {
			e.log.WithField("failures", buf.sinkFails).Warnf("Sink write failed: %v", err)
		}
		sleep(ctx, e.cfg.IdleDelay)
		return
	}
	buf.sinkFails = 0
	e.obs.FramesWritten(written, time.Since(start))
}

// pull reads up to len(dst) frames from the slot, retrying a bounded number
// of times while the decoder has nothing ready. It returns the frame count.
func (e *Engine) pull(ctx context.Context, sl *slot, dst []int16) int {
	for attempt := 0; attempt < e.cfg.ReadAttempts; attempt++ {
		n, act, ok, err := sl.read(dst)
		if !ok {
			return 0
		}

		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				e.endOfStream(sl, act)
			case errors.Is(err, decode.ErrClosed):
				return 0
			default:
				e.log.WithField("slot", sl.id).Errorf("Decode failed: %v", err)
				e.obs.DecodeFault(sl.id)
				e.endOfStream(sl, act)
			}
			return n
		}

		if n > 0 {
			e.checkRate(sl)
			return n
		}

		if !sleep(ctx, e.cfg.RetryDelay) {
			return 0
		}
	}

	e.obs.DecodeStall(sl.id)
	return 0
}

func (e *Engine) checkRate(sl *slot) {
	rate := sl.rate.Load()
	sink := e.sinkRate.Load()
	if rate <= 0 || rate == sink {
		return
	}
	if sl.rateWarned.CompareAndSwap(false, true) {
		e.log.WithFields(logrus.Fields{
			"slot":      sl.id,
			"rate":      rate,
			"sink_rate": sink,
		}).Warn("Source sample rate differs from output, playing without resampling")
	}
}

// endOfStream latches EOS for the activation that produced it and queues a
// completion. Reports from a superseded activation are dropped.
func (e *Engine) endOfStream(sl *slot, act uuid.UUID) {
	if !sl.finish(act) {
		return
	}

	e.log.WithField("slot", sl.id).Info("End of stream")
	e.obs.Completion(sl.id)

	select {
	case e.completions <- sl.id:
	default:
		e.obs.CompletionDropped(sl.id)
		e.log.WithField("slot", sl.id).Warn("Completion queue full, dropping notification")
	}
}

// compose interleaves frames stereo frames into out. A source shorter than
// frames contributes silence for the remainder.
func compose(out []int16, src [2][]int16, frames int, r routing) []int16 {
	out = out[:frames*2]
	for i := 0; i < frames; i++ {
		var v [2]int16
		for s := range src {
			if i < len(src[s]) {
				v[s] = audio.Scale(src[s][i], r.gain[s])
			}
		}

		var left, right int16
		if r.mode == ModeSame {
			left = v[r.primary]
			right = left
		} else {
			left, right = v[SlotA], v[SlotB]
			if r.swapped {
				left, right = right, left
			}
		}
		out[2*i] = left
		out[2*i+1] = right
	}
	return out
}

// sleep waits for d or until ctx is done. It returns false on cancellation.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
