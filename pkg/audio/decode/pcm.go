// ABOUTME: In-memory PCM backend and synthetic tone source
// ABOUTME: Serve tests, examples and "tone:<hz>[:<seconds>]" sources
package decode

import (
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
)

const (
	tonePrefix     = "tone:"
	ToneSampleRate = 44100
	toneAmplitude  = 0.5
)

type pcmStream struct {
	rate  int
	chans int
	data  []int16
	pos   int // sample index
}

// NewFromPCM wraps interleaved 16-bit samples in a Decoder
func NewFromPCM(rate, channels int, interleaved []int16) *Decoder {
	if channels < 1 {
		channels = 1
	}
	st := &pcmStream{rate: rate, chans: channels, data: interleaved}
	return newDecoder(fmt.Sprintf("pcm:%dHz/%dch", rate, channels), CodecPCM, st)
}

func (s *pcmStream) read(dst []int16) (int, error) {
	if s.pos >= len(s.data) {
		return 0, io.EOF
	}
	n := copy(dst, s.data[s.pos:])
	n -= n % s.chans
	s.pos += n
	if s.pos >= len(s.data) {
		return n, io.EOF
	}
	return n, nil
}

func (s *pcmStream) sampleRate() int { return s.rate }
func (s *pcmStream) channels() int   { return s.chans }
func (s *pcmStream) length() int64   { return int64(len(s.data) / s.chans) }
func (s *pcmStream) close() error    { return nil }

func (s *pcmStream) seek(frame int64) (int64, error) {
	frame = min(max(frame, 0), s.length())
	s.pos = int(frame) * s.chans
	return frame, nil
}

// toneStream generates a mono sine wave, endless when frames is 0
type toneStream struct {
	freq   float64
	rate   int
	frames int64
	index  int64
}

func openTone(source string) (*Decoder, error) {
	st, err := parseTone(source)
	if err != nil {
		return nil, err
	}
	return newDecoder(source, CodecTone, st), nil
}

func parseTone(source string) (*toneStream, error) {
	parts := strings.Split(strings.TrimPrefix(source, tonePrefix), ":")
	freq, err := strconv.ParseFloat(parts[0], 64)
	if err != nil || freq <= 0 {
		return nil, fmt.Errorf("%w: bad tone frequency in %q", ErrUnsupported, source)
	}

	st := &toneStream{freq: freq, rate: ToneSampleRate}
	if len(parts) > 1 {
		secs, err := strconv.ParseFloat(parts[1], 64)
		if err != nil || secs <= 0 {
			return nil, fmt.Errorf("%w: bad tone duration in %q", ErrUnsupported, source)
		}
		st.frames = int64(secs * float64(st.rate))
	}
	return st, nil
}

func (s *toneStream) read(dst []int16) (int, error) {
	n := len(dst)
	if s.frames > 0 {
		left := s.frames - s.index
		if left <= 0 {
			return 0, io.EOF
		}
		n = int(min(int64(n), left))
	}

	for i := 0; i < n; i++ {
		t := float64(s.index+int64(i)) / float64(s.rate)
		dst[i] = int16(math.Sin(2*math.Pi*s.freq*t) * 32767.0 * toneAmplitude)
	}
	s.index += int64(n)

	if s.frames > 0 && s.index >= s.frames {
		return n, io.EOF
	}
	return n, nil
}

func (s *toneStream) sampleRate() int { return s.rate }
func (s *toneStream) channels() int   { return 1 }
func (s *toneStream) length() int64   { return s.frames }
func (s *toneStream) close() error    { return nil }

func (s *toneStream) seek(frame int64) (int64, error) {
	frame = max(frame, 0)
	if s.frames > 0 {
		frame = min(frame, s.frames)
	}
	s.index = frame
	return frame, nil
}
