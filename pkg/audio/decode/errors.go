// ABOUTME: Error values returned by decoders
// ABOUTME: Callers classify open and read failures with errors.Is
package decode

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrUnsupported is returned when no backend handles the source format
	ErrUnsupported = errors.New("unsupported audio format")

	// ErrNotFound is returned when the source does not exist
	ErrNotFound = errors.New("audio source not found")

	// ErrCodecInit is returned when a backend fails to parse stream headers
	ErrCodecInit = errors.New("codec initialization failed")

	// ErrEndOfStream is returned once a decoder has no more frames.
	// It matches io.EOF.
	ErrEndOfStream = fmt.Errorf("end of stream: %w", io.EOF)

	// ErrClosed is returned by operations on a closed decoder
	ErrClosed = errors.New("decoder closed")

	// ErrDecodeFault wraps backend errors surfaced during a read
	ErrDecodeFault = errors.New("decode fault")
)
