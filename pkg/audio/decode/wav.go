// ABOUTME: WAV backend built on go-audio/wav
// ABOUTME: Accepts integer PCM (plain or extensible) at 8 to 32 bits
package decode

import (
	"fmt"
	"io"

	"github.com/go-audio/wav"
)

const (
	wavFormatPCM        = 1
	wavFormatExtensible = 0xFFFE
)

func newWAVStream(f io.ReadSeekCloser) (stream, error) {
	return newContainerStream(f, openWAV)
}

func openWAV(rs io.ReadSeeker) (containerInfo, error) {
	d := wav.NewDecoder(rs)
	if !d.IsValidFile() {
		return containerInfo{}, fmt.Errorf("not a valid wav file")
	}
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return containerInfo{}, fmt.Errorf("wav header: %w", err)
	}
	if d.WavAudioFormat != wavFormatPCM && d.WavAudioFormat != wavFormatExtensible {
		return containerInfo{}, fmt.Errorf("unsupported wav format tag %d", d.WavAudioFormat)
	}
	if d.NumChans == 0 || d.BitDepth == 0 {
		return containerInfo{}, fmt.Errorf("wav header missing channels or bit depth")
	}
	if err := d.FwdToPCM(); err != nil {
		return containerInfo{}, fmt.Errorf("wav data chunk: %w", err)
	}

	frameBytes := int64(d.NumChans) * int64(d.BitDepth/8)
	var frames int64
	if frameBytes > 0 {
		frames = d.PCMLen() / frameBytes
	}

	return containerInfo{
		dec:    d,
		rate:   int(d.SampleRate),
		chans:  int(d.NumChans),
		depth:  int(d.BitDepth),
		frames: frames,
	}, nil
}
