// ABOUTME: FLAC backend built on mewkiz/flac
// ABOUTME: Parses one frame per read, honours per-frame format changes
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/dualdeck/dualdeck-go/pkg/audio"
	"github.com/mewkiz/flac"
)

type flacStream struct {
	f        io.ReadSeekCloser
	stream   *flac.Stream
	rate     int
	chans    int
	depth    int
	pending  []int16 // interleaved samples of the current frame not yet returned
	consumed int
}

func newFLACStream(f io.ReadSeekCloser) (stream, error) {
	st, err := flac.NewSeek(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse flac stream: %w", err)
	}
	return &flacStream{
		f:      f,
		stream: st,
		rate:   int(st.Info.SampleRate),
		chans:  int(st.Info.NChannels),
		depth:  int(st.Info.BitsPerSample),
	}, nil
}

func (s *flacStream) read(dst []int16) (int, error) {
	if s.consumed >= len(s.pending) {
		if err := s.nextFrame(); err != nil {
			return 0, err
		}
	}

	n := copy(dst, s.pending[s.consumed:])
	n -= n % max(s.chans, 1)
	s.consumed += n
	return n, nil
}

// nextFrame decodes one frame into pending
func (s *flacStream) nextFrame() error {
	frame, err := s.stream.ParseNext()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return io.EOF
		}
		return fmt.Errorf("flac frame: %w", err)
	}

	if frame.SampleRate > 0 {
		s.rate = int(frame.SampleRate)
	}
	if frame.BitsPerSample > 0 {
		s.depth = int(frame.BitsPerSample)
	}
	chans := len(frame.Subframes)
	if chans > 0 {
		s.chans = chans
	}

	blockSize := int(frame.BlockSize)
	need := blockSize * s.chans
	if cap(s.pending) < need {
		s.pending = make([]int16, need)
	}
	s.pending = s.pending[:need]

	for i := 0; i < blockSize; i++ {
		for ch, sub := range frame.Subframes {
			s.pending[i*s.chans+ch] = flacSample(sub.Samples[i], s.depth)
		}
	}
	s.consumed = 0
	return nil
}

// flacSample rescales a signed FLAC sample to 16 bits. FLAC stores 8-bit
// audio signed, unlike WAV.
func flacSample(v int32, depth int) int16 {
	if depth == 8 {
		return int16(v << 8)
	}
	return audio.ShiftToInt16(int(v), depth)
}

func (s *flacStream) sampleRate() int { return s.rate }
func (s *flacStream) channels() int   { return s.chans }

func (s *flacStream) seek(frame int64) (int64, error) {
	if frame < 0 {
		frame = 0
	}
	if n := s.length(); n > 0 && frame >= n {
		frame = n - 1
	}
	landed, err := s.stream.Seek(uint64(frame))
	if err != nil {
		return 0, fmt.Errorf("flac seek: %w", err)
	}
	s.pending = s.pending[:0]
	s.consumed = 0
	return int64(landed), nil
}

func (s *flacStream) length() int64 {
	return int64(s.stream.Info.NSamples)
}

// close also closes f, since the flac stream closes its reader
func (s *flacStream) close() error {
	return s.stream.Close()
}
