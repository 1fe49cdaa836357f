// ABOUTME: Ogg Vorbis backend built on jfreymuth/oggvorbis
// ABOUTME: Converts float output to int16 and seeks by sample position
package decode

import (
	"fmt"
	"io"

	"github.com/dualdeck/dualdeck-go/pkg/audio"
	"github.com/jfreymuth/oggvorbis"
)

type vorbisStream struct {
	f     io.ReadSeekCloser
	dec   *oggvorbis.Reader
	fbuf  []float32
	chans int
}

func newVorbisStream(f io.ReadSeekCloser) (stream, error) {
	dec, err := oggvorbis.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("failed to create vorbis reader: %w", err)
	}
	return &vorbisStream{f: f, dec: dec, chans: dec.Channels()}, nil
}

func (s *vorbisStream) read(dst []int16) (int, error) {
	if cap(s.fbuf) < len(dst) {
		s.fbuf = make([]float32, len(dst))
	}
	s.fbuf = s.fbuf[:len(dst)]

	n, err := s.dec.Read(s.fbuf)
	n -= n % max(s.chans, 1)
	for i := 0; i < n; i++ {
		dst[i] = audio.FloatToInt16(s.fbuf[i])
	}
	return n, err
}

func (s *vorbisStream) sampleRate() int { return s.dec.SampleRate() }
func (s *vorbisStream) channels() int   { return s.chans }

func (s *vorbisStream) seek(frame int64) (int64, error) {
	if n := s.length(); n > 0 && frame > n {
		frame = n
	}
	if err := s.dec.SetPosition(frame); err != nil {
		return 0, fmt.Errorf("vorbis seek: %w", err)
	}
	return s.dec.Position(), nil
}

func (s *vorbisStream) length() int64 { return s.dec.Length() }

func (s *vorbisStream) close() error { return s.f.Close() }
