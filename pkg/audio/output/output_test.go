// ABOUTME: Audio output tests
// ABOUTME: Interface conformance, WAV rendering and ring buffer back-pressure
package output

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBackendsImplementOutput(t *testing.T) {
	var _ Output = (*Oto)(nil)
	var _ Output = (*Malgo)(nil)
	var _ Output = (*WAVFile)(nil)
}

func TestNewByName(t *testing.T) {
	out, err := New(BackendOto, "")
	require.NoError(t, err)
	assert.IsType(t, &Oto{}, out)

	out, err = New(BackendMalgo, "")
	require.NoError(t, err)
	assert.IsType(t, &Malgo{}, out)

	out, err = New(BackendWAV, "mix.wav")
	require.NoError(t, err)
	assert.IsType(t, &WAVFile{}, out)

	_, err = New(BackendWAV, "")
	assert.Error(t, err)

	_, err = New("alsa", "")
	assert.Error(t, err)
}

func TestWriteBeforeOpen(t *testing.T) {
	_, err := NewOto().Write([]int16{1, 2})
	assert.ErrorIs(t, err, ErrNotOpen)

	_, err = NewMalgo().Write([]int16{1, 2})
	assert.ErrorIs(t, err, ErrNotOpen)

	_, err = NewWAVFile(filepath.Join(t.TempDir(), "x.wav")).Write([]int16{1, 2})
	assert.ErrorIs(t, err, ErrNotOpen)
}

func TestWAVFileRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mix.wav")
	sink := NewWAVFile(path)
	require.NoError(t, sink.Open(44100, 2))

	samples := []int16{100, -100, 32767, -32768, 0, 5}
	n, err := sink.Write(samples)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int64(3), sink.Frames())
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	dec := wav.NewDecoder(f)
	require.True(t, dec.IsValidFile())
	assert.Equal(t, uint32(44100), dec.SampleRate)
	assert.Equal(t, uint16(2), dec.NumChans)

	buf := &goaudio.IntBuffer{
		Format: &goaudio.Format{NumChannels: 2, SampleRate: 44100},
		Data:   make([]int, 16),
	}
	got, err := dec.PCMBuffer(buf)
	require.NoError(t, err)
	require.Equal(t, len(samples), got)
	for i, s := range samples {
		assert.Equal(t, int(s), buf.Data[i])
	}
}

func TestRingBufferBlocksUntilDrained(t *testing.T) {
	rb := NewRingBuffer(4)

	done := make(chan int)
	go func() {
		done <- rb.Write([]int16{1, 2, 3, 4, 5, 6})
	}()

	select {
	case <-done:
		t.Fatal("write should block while buffer is full")
	case <-time.After(50 * time.Millisecond):
	}

	out := make([]int16, 4)
	assert.Equal(t, 4, rb.Read(out))
	assert.Equal(t, []int16{1, 2, 3, 4}, out)

	select {
	case n := <-done:
		assert.Equal(t, 6, n)
	case <-time.After(time.Second):
		t.Fatal("write did not resume after read")
	}

	out = make([]int16, 4)
	assert.Equal(t, 2, rb.Read(out))
	assert.Equal(t, []int16{5, 6, 0, 0}, out)
}

func TestRingBufferCloseUnblocksWriter(t *testing.T) {
	rb := NewRingBuffer(2)
	done := make(chan int)
	go func() {
		done <- rb.Write([]int16{1, 2, 3})
	}()

	time.Sleep(20 * time.Millisecond)
	rb.Close()

	select {
	case n := <-done:
		assert.Equal(t, 2, n)
	case <-time.After(time.Second):
		t.Fatal("close did not unblock writer")
	}
	assert.Equal(t, 0, rb.Write([]int16{9}))
}
