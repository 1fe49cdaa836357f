// ABOUTME: WAV file output for offline rendering
// ABOUTME: Encodes the mixed stream with go-audio/wav as fast as it is produced
package output

import (
	"fmt"
	"os"
	"sync"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVFile writes 16-bit PCM to a file instead of a device
type WAVFile struct {
	path     string
	mu       sync.Mutex
	f        *os.File
	enc      *wav.Encoder
	buf      *goaudio.IntBuffer
	channels int
	frames   int64
}

// NewWAVFile creates a file sink that is created or truncated on Open
func NewWAVFile(path string) *WAVFile {
	return &WAVFile{path: path}
}

// Open creates the file and writes the header
func (w *WAVFile) Open(sampleRate, channels int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.enc != nil {
		return nil
	}

	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", w.path, err)
	}

	w.f = f
	w.enc = wav.NewEncoder(f, sampleRate, 16, channels, 1)
	w.channels = channels
	w.buf = &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: sampleRate},
		SourceBitDepth: 16,
	}
	return nil
}

// Write appends interleaved samples
func (w *WAVFile) Write(samples []int16) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.enc == nil {
		return 0, ErrNotOpen
	}

	if cap(w.buf.Data) < len(samples) {
		w.buf.Data = make([]int, len(samples))
	}
	w.buf.Data = w.buf.Data[:len(samples)]
	for i, s := range samples {
		w.buf.Data[i] = int(s)
	}

	if err := w.enc.Write(w.buf); err != nil {
		return 0, fmt.Errorf("wav encode: %w", err)
	}
	n := len(samples) / w.channels
	w.frames += int64(n)
	return n, nil
}

// Frames returns the number of frames written since Open
func (w *WAVFile) Frames() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Close finalizes the header and closes the file
func (w *WAVFile) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.enc == nil {
		return nil
	}
	err := w.enc.Close()
	if cerr := w.f.Close(); err == nil {
		err = cerr
	}
	w.enc = nil
	w.f = nil
	if err != nil {
		return fmt.Errorf("finalize %s: %w", w.path, err)
	}
	return nil
}
