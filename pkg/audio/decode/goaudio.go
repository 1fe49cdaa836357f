// ABOUTME: Shared backend for go-audio container decoders (WAV, AIFF)
// ABOUTME: Reads IntBuffers, rescales to 16 bits, seeks by reopen-and-skip
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/dualdeck/dualdeck-go/pkg/audio"
	goaudio "github.com/go-audio/audio"
)

// pcmReader is the part of wav.Decoder and aiff.Decoder the backend needs
type pcmReader interface {
	PCMBuffer(buf *goaudio.IntBuffer) (int, error)
}

// containerInfo is produced by a container-specific opener
type containerInfo struct {
	dec    pcmReader
	rate   int
	chans  int
	depth  int
	frames int64
}

type containerStream struct {
	f      io.ReadSeekCloser
	reopen func(io.ReadSeeker) (containerInfo, error)
	info   containerInfo
	ibuf   *goaudio.IntBuffer
}

func newContainerStream(f io.ReadSeekCloser, reopen func(io.ReadSeeker) (containerInfo, error)) (stream, error) {
	info, err := reopen(f)
	if err != nil {
		return nil, err
	}
	return &containerStream{f: f, reopen: reopen, info: info}, nil
}

func (s *containerStream) read(dst []int16) (int, error) {
	if s.ibuf == nil || cap(s.ibuf.Data) < len(dst) {
		s.ibuf = &goaudio.IntBuffer{
			Format: &goaudio.Format{NumChannels: s.info.chans, SampleRate: s.info.rate},
			Data:   make([]int, len(dst)),
		}
	}
	s.ibuf.Data = s.ibuf.Data[:len(dst)]

	n, err := s.info.dec.PCMBuffer(s.ibuf)
	n -= n % max(s.info.chans, 1)
	for i := 0; i < n; i++ {
		dst[i] = audio.ShiftToInt16(s.ibuf.Data[i], s.info.depth)
	}

	if err != nil && !errors.Is(err, io.EOF) {
		return n, err
	}
	if n == 0 || errors.Is(err, io.EOF) {
		return n, io.EOF
	}
	return n, nil
}

func (s *containerStream) sampleRate() int { return s.info.rate }
func (s *containerStream) channels() int   { return s.info.chans }
func (s *containerStream) length() int64   { return s.info.frames }

// seek rewinds, reparses the header and discards frames up to the target
func (s *containerStream) seek(frame int64) (int64, error) {
	if _, err := s.f.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("rewind: %w", err)
	}
	info, err := s.reopen(s.f)
	if err != nil {
		return 0, err
	}
	s.info = info
	s.ibuf = nil

	if s.info.frames > 0 && frame > s.info.frames {
		frame = s.info.frames
	}

	chans := max(s.info.chans, 1)
	skip := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: chans, SampleRate: s.info.rate},
		Data:   make([]int, 4096*chans),
	}
	var landed int64
	for landed < frame {
		want := min(frame-landed, 4096) * int64(chans)
		skip.Data = skip.Data[:want]
		n, err := s.info.dec.PCMBuffer(skip)
		landed += int64(n / chans)
		if n == 0 || err != nil {
			break
		}
	}
	return landed, nil
}

func (s *containerStream) close() error { return s.f.Close() }
