// ABOUTME: Tests for the MP3 backend
// ABOUTME: Uses synthesized silent MPEG-1 Layer III frames
package decode

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	// MPEG-1 Layer III, 128 kbit/s, 44.1 kHz, mono, no CRC
	silentFrameBytes   = 417
	mp3SamplesPerFrame = 1152
)

// silentMP3 returns n frames with zeroed side info and main data
func silentMP3(n int) []byte {
	frame := make([]byte, silentFrameBytes)
	copy(frame, []byte{0xFF, 0xFB, 0x90, 0xC0})
	return bytes.Repeat(frame, n)
}

func writeSilentMP3(t *testing.T, frames int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "silence.mp3")
	require.NoError(t, os.WriteFile(path, silentMP3(frames), 0o644))
	return path
}

func TestMP3DecodeAndLength(t *testing.T) {
	dec, err := Open(writeSilentMP3(t, 20))
	require.NoError(t, err)
	defer dec.Close()

	assert.Equal(t, CodecMP3, dec.Codec())
	assert.Equal(t, 44100, dec.SampleRate())
	assert.Equal(t, 2, dec.Channels())
	assert.Equal(t, int64(20*mp3SamplesPerFrame*1000/44100), dec.DurationMs())

	out := readAll(t, dec)
	assert.Len(t, out, 20*mp3SamplesPerFrame)
	for i, v := range out {
		if !assert.Zero(t, v, "frame %d", i) {
			break
		}
	}
}

func TestMP3Seek(t *testing.T) {
	const total = 20 * mp3SamplesPerFrame
	dec, err := Open(writeSilentMP3(t, 20))
	require.NoError(t, err)
	defer dec.Close()

	require.NoError(t, dec.Seek(300))
	assert.Equal(t, int64(300), dec.PositionMs())

	target := 300 * 44100 / 1000
	assert.Len(t, readAll(t, dec), total-target)
	assert.True(t, dec.EndOfStream())

	require.NoError(t, dec.Seek(0))
	assert.False(t, dec.EndOfStream())
	assert.Equal(t, int64(0), dec.PositionMs())
	assert.Len(t, readAll(t, dec), total)
}
