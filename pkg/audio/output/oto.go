// ABOUTME: Oto-based audio output implementation
// ABOUTME: Streams int16 PCM into a persistent oto player through a pipe
package output

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/ebitengine/oto/v3"
	"github.com/sirupsen/logrus"
)

// oto allows a single context per process, shared by every Oto output
var (
	otoMu    sync.Mutex
	otoCtx   *oto.Context
	otoRate  int
	otoChans int
)

// Oto output implementation using oto library
type Oto struct {
	mu         sync.Mutex
	player     *oto.Player
	pipeReader *io.PipeReader
	pipeWriter *io.PipeWriter
	buf        []byte
	channels   int
	log        logrus.FieldLogger
}

// NewOto creates a new Oto output
func NewOto() *Oto {
	return &Oto{log: logrus.WithField("component", "output.oto")}
}

// Open initializes the shared context on first use and starts a player
func (o *Oto) Open(sampleRate, channels int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		return nil
	}

	ctx, err := sharedContext(sampleRate, channels, o.log)
	if err != nil {
		return err
	}

	o.channels = channels
	o.pipeReader, o.pipeWriter = io.Pipe()
	o.player = ctx.NewPlayer(o.pipeReader)
	o.player.Play()

	o.log.WithFields(logrus.Fields{"rate": sampleRate, "channels": channels}).Info("Audio output initialized")
	return nil
}

func sharedContext(sampleRate, channels int, log logrus.FieldLogger) (*oto.Context, error) {
	otoMu.Lock()
	defer otoMu.Unlock()

	if otoCtx != nil {
		if otoRate != sampleRate || otoChans != channels {
			// oto cannot reinitialize; keep playing at the original format
			log.Warnf("format change (%dHz %dch -> %dHz %dch) not supported by oto, keeping existing context",
				otoRate, otoChans, sampleRate, channels)
		}
		if err := otoCtx.Resume(); err != nil {
			return nil, fmt.Errorf("failed to resume oto context: %w", err)
		}
		return otoCtx, nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	otoCtx, otoRate, otoChans = ctx, sampleRate, channels
	return ctx, nil
}

// Write converts samples to little-endian bytes and feeds the player.
// The pipe blocks until oto consumes the data.
func (o *Oto) Write(samples []int16) (int, error) {
	o.mu.Lock()
	w := o.pipeWriter
	chans := o.channels
	if cap(o.buf) < len(samples)*2 {
		o.buf = make([]byte, len(samples)*2)
	}
	out := o.buf[:len(samples)*2]
	o.mu.Unlock()

	if w == nil {
		return 0, ErrNotOpen
	}

	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}

	n, err := w.Write(out)
	if err != nil {
		return n / 2 / chans, fmt.Errorf("pipe write failed: %w", err)
	}
	return len(samples) / chans, nil
}

// Close stops the player and unblocks any pending Write
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.pipeWriter != nil {
		o.pipeWriter.Close()
		o.pipeWriter = nil
	}
	if o.player != nil {
		o.player.Close()
		o.player = nil
	}
	if o.pipeReader != nil {
		o.pipeReader.Close()
		o.pipeReader = nil
	}

	otoMu.Lock()
	defer otoMu.Unlock()
	if otoCtx != nil {
		if err := otoCtx.Suspend(); err != nil {
			return fmt.Errorf("failed to suspend oto context: %w", err)
		}
	}
	return nil
}
