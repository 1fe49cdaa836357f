// ABOUTME: Tests for the Ogg Vorbis backend
// ABOUTME: testdata/mono-1s.ogg is one second of 44.1 kHz mono from the oggvorbis test suite
package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const vorbisFixture = "testdata/mono-1s.ogg"

func TestVorbisDecodeAndLength(t *testing.T) {
	dec, err := Open(vorbisFixture)
	require.NoError(t, err)
	defer dec.Close()

	assert.Equal(t, CodecVorbis, dec.Codec())
	assert.Equal(t, 44100, dec.SampleRate())
	assert.Equal(t, 1, dec.Channels())
	assert.Equal(t, int64(1000), dec.DurationMs())

	out := readAll(t, dec)
	assert.InDelta(t, 44100, len(out), 1024)

	var peak int16
	for _, v := range out {
		peak = max(peak, v, -v)
	}
	assert.Positive(t, peak)
}

func TestVorbisSeek(t *testing.T) {
	dec, err := Open(vorbisFixture)
	require.NoError(t, err)
	defer dec.Close()

	require.NoError(t, dec.Seek(500))
	assert.Equal(t, int64(500), dec.PositionMs())
	assert.InDelta(t, 22050, len(readAll(t, dec)), 1024)

	// Past the end clamps to the stream length
	require.NoError(t, dec.Seek(5000))
	_, err = dec.ReadFrames(make([]int16, 256))
	assert.ErrorIs(t, err, ErrEndOfStream)
}
