// ABOUTME: AIFF backend built on go-audio/aiff
// ABOUTME: Shares reading and seeking with the WAV backend
package decode

import (
	"fmt"
	"io"

	"github.com/go-audio/aiff"
)

func newAIFFStream(f io.ReadSeekCloser) (stream, error) {
	return newContainerStream(f, openAIFF)
}

func openAIFF(rs io.ReadSeeker) (containerInfo, error) {
	d := aiff.NewDecoder(rs)
	if !d.IsValidFile() {
		return containerInfo{}, fmt.Errorf("not a valid aiff file")
	}
	d.ReadInfo()
	if err := d.Err(); err != nil {
		return containerInfo{}, fmt.Errorf("aiff header: %w", err)
	}

	format := d.Format()
	if format == nil || format.NumChannels == 0 {
		return containerInfo{}, fmt.Errorf("aiff header missing format")
	}

	return containerInfo{
		dec:    d,
		rate:   format.SampleRate,
		chans:  format.NumChannels,
		depth:  int(d.BitDepth),
		frames: int64(d.NumSampleFrames),
	}, nil
}
