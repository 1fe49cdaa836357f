// ABOUTME: Ogg Opus backend built on hraban/opus
// ABOUTME: Decodes one packet per read at 48kHz, applies pre-skip, seeks by page
package decode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"gopkg.in/hraban/opus.v2"
)

const (
	opusRate         = 48000
	opusMaxFrameSize = 5760 // 120ms at 48kHz
)

type opusStream struct {
	f         io.ReadSeekCloser
	ogg       *oggReader
	dec       *opus.Decoder
	chans     int
	preSkip   int64
	skip      int64 // frames still to drop after open or seek
	serial    uint32
	dataStart int64
	total     int64
	pcm       []int16
	pending   []int16
	consumed  int
}

func newOpusStream(f io.ReadSeekCloser) (stream, error) {
	o := newOggReader(f)

	h, err := o.readHeader()
	if err != nil {
		return nil, fmt.Errorf("ogg header: %w", err)
	}
	if err := o.seekTo(h.offset, false); err != nil {
		return nil, err
	}

	head, err := o.readPacket()
	if err != nil {
		return nil, fmt.Errorf("read OpusHead: %w", err)
	}
	if len(head) < 19 || !bytes.HasPrefix(head, []byte("OpusHead")) {
		return nil, fmt.Errorf("missing OpusHead")
	}
	chans := int(head[9])
	if chans < 1 || chans > 2 {
		return nil, fmt.Errorf("unsupported opus channel count %d", chans)
	}
	preSkip := int64(binary.LittleEndian.Uint16(head[10:12]))

	if _, err := o.readPacket(); err != nil {
		return nil, fmt.Errorf("read OpusTags: %w", err)
	}
	// Audio starts on a fresh page after the tags
	dataStart := o.offset

	dec, err := opus.NewDecoder(opusRate, chans)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus decoder: %w", err)
	}

	s := &opusStream{
		f:         f,
		ogg:       o,
		dec:       dec,
		chans:     chans,
		preSkip:   preSkip,
		skip:      preSkip,
		serial:    h.serial,
		dataStart: dataStart,
		pcm:       make([]int16, opusMaxFrameSize*chans),
	}

	if last, err := lastGranule(f, h.serial); err == nil && last > preSkip {
		s.total = last - preSkip
	}
	if err := o.seekTo(dataStart, false); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *opusStream) read(dst []int16) (int, error) {
	if s.consumed >= len(s.pending) {
		pkt, err := s.ogg.readPacket()
		if err != nil {
			return 0, err
		}
		n, err := s.dec.Decode(pkt, s.pcm)
		if err != nil {
			return 0, fmt.Errorf("opus packet: %w", err)
		}
		frames := int64(n)
		start := int64(0)
		if s.skip > 0 {
			start = min(s.skip, frames)
			s.skip -= start
		}
		s.pending = s.pcm[start*int64(s.chans) : frames*int64(s.chans)]
		s.consumed = 0
		if len(s.pending) == 0 {
			return 0, nil
		}
	}

	n := copy(dst, s.pending[s.consumed:])
	n -= n % s.chans
	s.consumed += n
	return n, nil
}

func (s *opusStream) sampleRate() int { return opusRate }
func (s *opusStream) channels() int   { return s.chans }
func (s *opusStream) length() int64   { return s.total }

// seek lands at the start of the first page whose packets reach frame
func (s *opusStream) seek(frame int64) (int64, error) {
	target := frame + s.preSkip
	if err := s.ogg.seekTo(s.dataStart, false); err != nil {
		return 0, fmt.Errorf("opus seek: %w", err)
	}

	prev := int64(0)
	for {
		h, err := s.ogg.readHeader()
		if err != nil {
			// Past the end: park at end of stream
			if _, serr := s.f.Seek(0, io.SeekEnd); serr != nil {
				return 0, fmt.Errorf("opus seek: %w", serr)
			}
			s.pending = nil
			s.consumed = 0
			return s.total, nil
		}
		if h.serial == s.serial && h.granule != -1 && h.granule >= target {
			if err := s.ogg.seekTo(h.offset, h.headerType&oggContinued != 0); err != nil {
				return 0, fmt.Errorf("opus seek: %w", err)
			}
			break
		}
		if h.granule != -1 {
			prev = h.granule
		}
		if err := s.ogg.skipBody(h); err != nil {
			return 0, fmt.Errorf("opus seek: %w", err)
		}
	}

	dec, err := opus.NewDecoder(opusRate, s.chans)
	if err != nil {
		return 0, fmt.Errorf("reset opus decoder: %w", err)
	}
	s.dec = dec
	s.pending = nil
	s.consumed = 0
	s.skip = max(s.preSkip-prev, 0)

	return max(prev-s.preSkip, 0), nil
}

func (s *opusStream) close() error { return s.f.Close() }
