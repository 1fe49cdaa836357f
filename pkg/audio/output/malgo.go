// ABOUTME: Malgo-based audio output implementation
// ABOUTME: miniaudio device fed from a blocking int16 ring buffer
package output

import (
	"fmt"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/sirupsen/logrus"
)

// RingBuffer is a bounded sample queue. Write blocks while full so the
// producer is paced by the device callback.
type RingBuffer struct {
	buffer   []int16
	readPos  int
	writePos int
	count    int
	closed   bool
	mu       sync.Mutex
	notFull  *sync.Cond
}

// NewRingBuffer creates a ring buffer with given capacity (in samples)
func NewRingBuffer(capacity int) *RingBuffer {
	rb := &RingBuffer{buffer: make([]int16, capacity)}
	rb.notFull = sync.NewCond(&rb.mu)
	return rb
}

// Write queues all samples, waiting for space. It returns early with the
// count written so far once the buffer is closed.
func (rb *RingBuffer) Write(samples []int16) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	written := 0
	for written < len(samples) {
		for rb.count == len(rb.buffer) && !rb.closed {
			rb.notFull.Wait()
		}
		if rb.closed {
			return written
		}
		for written < len(samples) && rb.count < len(rb.buffer) {
			rb.buffer[rb.writePos] = samples[written]
			rb.writePos = (rb.writePos + 1) % len(rb.buffer)
			rb.count++
			written++
		}
	}
	return written
}

// Read drains up to len(samples), zero-filling on underrun
func (rb *RingBuffer) Read(samples []int16) int {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	read := 0
	for read < len(samples) && rb.count > 0 {
		samples[read] = rb.buffer[rb.readPos]
		rb.readPos = (rb.readPos + 1) % len(rb.buffer)
		rb.count--
		read++
	}
	for i := read; i < len(samples); i++ {
		samples[i] = 0
	}
	if read > 0 {
		rb.notFull.Broadcast()
	}
	return read
}

// Available returns the number of queued samples
func (rb *RingBuffer) Available() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.count
}

// Close wakes blocked writers; later writes return immediately
func (rb *RingBuffer) Close() {
	rb.mu.Lock()
	rb.closed = true
	rb.mu.Unlock()
	rb.notFull.Broadcast()
}

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	mu         sync.Mutex
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	ring       *RingBuffer
	scratch    []int16
	sampleRate int
	channels   int
	log        logrus.FieldLogger
}

// NewMalgo creates a new Malgo output
func NewMalgo() *Malgo {
	return &Malgo{log: logrus.WithField("component", "output.malgo")}
}

// Open initializes the playback device with a 250ms ring buffer
func (m *Malgo) Open(sampleRate, channels int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil && m.sampleRate == sampleRate && m.channels == channels {
		return nil
	}
	if m.device != nil {
		m.log.Infof("Format change (%dHz/%dch -> %dHz/%dch), reinitializing device",
			m.sampleRate, m.channels, sampleRate, channels)
		m.closeDevice()
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	m.ring = NewRingBuffer(sampleRate * channels / 4)

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = uint32(channels)
	cfg.SampleRate = uint32(sampleRate)
	cfg.Alsa.NoMMap = 1

	ring := m.ring
	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			m.fill(ring, out, int(frameCount)*channels)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, cfg, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}

	m.device = device
	m.sampleRate = sampleRate
	m.channels = channels

	m.log.WithFields(logrus.Fields{"rate": sampleRate, "channels": channels}).Info("Audio output initialized")
	return nil
}

// fill runs on the device thread
func (m *Malgo) fill(ring *RingBuffer, out []byte, samples int) {
	if cap(m.scratch) < samples {
		m.scratch = make([]int16, samples)
	}
	buf := m.scratch[:samples]
	ring.Read(buf)
	for i, s := range buf {
		out[i*2] = byte(s)
		out[i*2+1] = byte(s >> 8)
	}
}

// Write queues samples, blocking while the ring buffer is full
func (m *Malgo) Write(samples []int16) (int, error) {
	m.mu.Lock()
	ring := m.ring
	chans := m.channels
	ready := m.device != nil
	m.mu.Unlock()

	if !ready {
		return 0, ErrNotOpen
	}

	n := ring.Write(samples)
	if n < len(samples) {
		return n / chans, ErrNotOpen
	}
	return n / chans, nil
}

// Close releases the device and context
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			m.log.Warnf("malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.ring != nil {
		m.ring.Close()
	}
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			m.log.Warnf("device stop error: %v", err)
		}
		m.device.Uninit()
		m.device = nil
	}
}
