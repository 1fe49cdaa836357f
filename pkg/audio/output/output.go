// ABOUTME: Audio output interface definition and sink factory
// ABOUTME: Common interface for 16-bit interleaved playback backends
package output

import (
	"errors"
	"fmt"
)

// ErrNotOpen is returned by Write before Open or after Close
var ErrNotOpen = errors.New("output not initialized")

// Output represents a push-model 16-bit PCM sink
type Output interface {
	// Open initializes the device for the given format
	Open(sampleRate, channels int) error

	// Write outputs interleaved samples, blocking under back-pressure.
	// It returns the number of frames accepted.
	Write(samples []int16) (int, error)

	// Close releases output resources
	Close() error
}

// Backend names accepted by New
const (
	BackendOto   = "oto"
	BackendMalgo = "malgo"
	BackendWAV   = "wav"
)

// New builds an output by backend name; path is used by file backends
func New(backend, path string) (Output, error) {
	switch backend {
	case BackendOto, "":
		return NewOto(), nil
	case BackendMalgo:
		return NewMalgo(), nil
	case BackendWAV:
		if path == "" {
			return nil, fmt.Errorf("wav output needs a file path")
		}
		return NewWAVFile(path), nil
	default:
		return nil, fmt.Errorf("unknown output backend: %s", backend)
	}
}
