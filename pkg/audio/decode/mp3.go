// ABOUTME: MP3 backend built on go-mp3
// ABOUTME: Decodes to interleaved 16-bit stereo with byte-offset seeking
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// go-mp3 always yields 16-bit little-endian stereo
const mp3FrameBytes = 4

type mp3Stream struct {
	f     io.ReadSeekCloser
	dec   *mp3.Decoder
	raw   []byte
	carry int // leftover bytes of a partial frame at the head of raw
}

func newMP3Stream(f io.ReadSeekCloser) (stream, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}
	return &mp3Stream{f: f, dec: dec}, nil
}

func (s *mp3Stream) read(dst []int16) (int, error) {
	want := len(dst) * 2
	if cap(s.raw) < want {
		raw := make([]byte, want)
		copy(raw, s.raw[:s.carry])
		s.raw = raw
	}
	s.raw = s.raw[:want]

	n, err := s.dec.Read(s.raw[s.carry:])
	total := s.carry + n
	usable := total - total%mp3FrameBytes

	for i := 0; i < usable/2; i++ {
		dst[i] = int16(binary.LittleEndian.Uint16(s.raw[i*2:]))
	}

	s.carry = copy(s.raw, s.raw[usable:total])

	if err != nil {
		return usable / 2, err
	}
	return usable / 2, nil
}

func (s *mp3Stream) sampleRate() int { return s.dec.SampleRate() }
func (s *mp3Stream) channels() int   { return 2 }

func (s *mp3Stream) seek(frame int64) (int64, error) {
	if n := s.length(); n > 0 && frame > n {
		frame = n
	}
	pos, err := s.dec.Seek(frame*mp3FrameBytes, io.SeekStart)
	if err != nil {
		return 0, fmt.Errorf("mp3 seek: %w", err)
	}
	s.carry = 0
	return pos / mp3FrameBytes, nil
}

func (s *mp3Stream) length() int64 {
	n := s.dec.Length()
	if n <= 0 {
		return 0
	}
	return n / mp3FrameBytes
}

func (s *mp3Stream) close() error {
	return s.f.Close()
}
