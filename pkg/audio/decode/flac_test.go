// ABOUTME: Tests for the FLAC backend
// ABOUTME: Builds fixtures with the mewkiz/flac encoder
package decode

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFLAC encodes per-channel samples as fixed-size verbatim frames.
// block must be at least 16 and divide the sample count.
func writeFLAC(t *testing.T, path string, rate, depth, block int, channels [][]int32) {
	t.Helper()
	nch := len(channels)
	total := len(channels[0])
	require.Zero(t, total%block)

	f, err := os.Create(path)
	require.NoError(t, err)

	info := &meta.StreamInfo{
		BlockSizeMin:  uint16(block),
		BlockSizeMax:  uint16(block),
		SampleRate:    uint32(rate),
		NChannels:     uint8(nch),
		BitsPerSample: uint8(depth),
		NSamples:      uint64(total),
	}
	enc, err := flac.NewEncoder(f, info)
	require.NoError(t, err)
	enc.EnablePredictionAnalysis(false)

	assignment := frame.ChannelsMono
	if nch == 2 {
		assignment = frame.ChannelsLR
	}

	for off := 0; off < total; off += block {
		fr := &frame.Frame{
			Header: frame.Header{
				HasFixedBlockSize: true,
				BlockSize:         uint16(block),
				SampleRate:        uint32(rate),
				Channels:          assignment,
				BitsPerSample:     uint8(depth),
			},
			Subframes: make([]*frame.Subframe, nch),
		}
		for ch := range channels {
			samples := make([]int32, block)
			copy(samples, channels[ch][off:off+block])
			fr.Subframes[ch] = &frame.Subframe{
				SubHeader: frame.SubHeader{Pred: frame.PredVerbatim},
				Samples:   samples,
				NSamples:  block,
			}
		}
		require.NoError(t, enc.WriteFrame(fr))
	}

	// Close rewrites the stream info and closes f
	require.NoError(t, enc.Close())
}

func TestFLACDecodeDownmixesStereo(t *testing.T) {
	const frames = 4096
	left := make([]int32, frames)
	right := make([]int32, frames)
	for i := range left {
		left[i] = int32(i % 10000)
		right[i] = left[i] + 100
	}

	path := filepath.Join(t.TempDir(), "stereo.flac")
	writeFLAC(t, path, 44100, 16, 1024, [][]int32{left, right})

	dec, err := Open(path)
	require.NoError(t, err)
	defer dec.Close()

	assert.Equal(t, CodecFLAC, dec.Codec())
	assert.Equal(t, 44100, dec.SampleRate())
	assert.Equal(t, 2, dec.Channels())
	assert.Equal(t, int64(frames*1000/44100), dec.DurationMs())

	out := readAll(t, dec)
	require.Len(t, out, frames)
	for i, v := range out {
		if !assert.Equal(t, int16(left[i]+50), v, "frame %d", i) {
			break
		}
	}
}

func TestFLACEightBitIsSigned(t *testing.T) {
	samples := make([]int32, 16)
	copy(samples, []int32{0, -1, 1, -128, 127})

	path := filepath.Join(t.TempDir(), "8bit.flac")
	writeFLAC(t, path, 8000, 8, 16, [][]int32{samples})

	dec, err := Open(path)
	require.NoError(t, err)
	defer dec.Close()

	out := readAll(t, dec)
	require.Len(t, out, 16)
	assert.Equal(t, []int16{0, -256, 256, -32768, 32512}, out[:5])
	assert.Equal(t, int16(0), out[15])
}

func TestFLACTwentyFourBitScalesDown(t *testing.T) {
	samples := make([]int32, 16)
	copy(samples, []int32{0, 256, -256, 8388607, -8388608})

	path := filepath.Join(t.TempDir(), "24bit.flac")
	writeFLAC(t, path, 48000, 24, 16, [][]int32{samples})

	dec, err := Open(path)
	require.NoError(t, err)
	defer dec.Close()

	out := readAll(t, dec)
	require.Len(t, out, 16)
	assert.Equal(t, []int16{0, 1, -1, 32767, -32768}, out[:5])
}

func TestFLACSeekLandsAtOrBeforeTarget(t *testing.T) {
	const (
		rate   = 8000
		block  = 1024
		frames = 8 * block
	)
	samples := make([]int32, frames)
	for i := range samples {
		samples[i] = int32(i)
	}

	path := filepath.Join(t.TempDir(), "ramp.flac")
	writeFLAC(t, path, rate, 16, block, [][]int32{samples})

	dec, err := Open(path)
	require.NoError(t, err)
	defer dec.Close()

	// 500ms is frame 4000, inside the block starting at 3072
	require.NoError(t, dec.Seek(500))
	pos := dec.PositionMs()
	assert.LessOrEqual(t, pos, int64(500))
	assert.Equal(t, int64(3072*1000/rate), pos)

	out := readAll(t, dec)
	require.Len(t, out, frames-3072)
	assert.Equal(t, int16(3072), out[0])
	assert.Equal(t, int16(frames-1), out[len(out)-1])
	assert.True(t, dec.EndOfStream())

	// Seek re-arms a finished stream
	require.NoError(t, dec.Seek(0))
	assert.False(t, dec.EndOfStream())
	assert.Len(t, readAll(t, dec), frames)
}
