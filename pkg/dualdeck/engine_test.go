// ABOUTME: Tests for the engine facade and its start/stop lifecycle
// ABOUTME: Covers lazy start, sink failures, source changes and full playback runs
package dualdeck

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaults(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil)

	assert.False(t, e.Running())
	assert.Equal(t, ModeSplit, e.Mode())
	assert.Equal(t, SlotA, e.Primary())
	assert.False(t, e.Swapped())
	assert.Zero(t, e.SampleRate())
	for _, s := range Slots {
		assert.Equal(t, 1.0, e.Volume(s))
		assert.False(t, e.Paused(s))
		assert.False(t, e.Playing(s))
		assert.Empty(t, e.Source(s))
	}
}

func TestStartSinkUnavailable(t *testing.T) {
	e, sink := newTestEngine(t, newFake(44100, -1, 0), nil)
	sink.openErr = errors.New("no device")

	err := e.Start()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSinkUnavailable)
	assert.False(t, e.Running())

	err = e.Resume(SlotA)
	assert.ErrorIs(t, err, ErrSinkUnavailable)
	assert.False(t, e.Running())
}

func TestStartUsesSlotARate(t *testing.T) {
	e, sink := newTestEngine(t, newFake(22050, -1, 0), newFake(48000, -1, 0))

	require.NoError(t, e.Start())
	defer e.Stop()

	assert.True(t, e.Running())
	assert.Equal(t, 22050, sink.rate)
	assert.Equal(t, 2, sink.channels)
	assert.Equal(t, 22050, e.SampleRate())

	// Second start is a no-op
	require.NoError(t, e.Start())
	assert.Equal(t, 1, sink.opens)
}

func TestStartUsesDefaultRateWhenSlotAEmpty(t *testing.T) {
	e, sink := newTestEngine(t, nil, newFake(48000, -1, 0), func(c *Config) {
		c.DefaultSampleRate = 32000
	})

	require.NoError(t, e.Start())
	defer e.Stop()

	assert.Equal(t, 32000, sink.rate)
}

func TestResumeStartsStoppedEngine(t *testing.T) {
	a := newFake(44100, -1, 42)
	e, sink := newTestEngine(t, a, nil)
	require.NoError(t, e.Pause(SlotA))
	require.NoError(t, e.Pause(SlotB))

	require.NoError(t, e.Resume(SlotA))
	defer e.Stop()

	assert.True(t, e.Running())
	assert.True(t, e.Playing(SlotA))
	assert.False(t, e.Playing(SlotB))
	require.Eventually(t, func() bool { return sink.Frames() > 0 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, int16(42), sink.Samples()[0])
}

func TestStopReleasesDecodersAndSink(t *testing.T) {
	a := newFake(44100, -1, 1)
	b := newFake(44100, -1, 1)
	e, sink := newTestEngine(t, a, b)

	require.NoError(t, e.Start())
	require.Eventually(t, func() bool { return sink.Frames() > 0 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, e.Stop())

	assert.False(t, e.Running())
	assert.True(t, a.Closed())
	assert.True(t, b.Closed())
	assert.Empty(t, e.Source(SlotA))
	assert.Equal(t, 1, sink.closes)

	// Stop on a stopped engine is a no-op
	require.NoError(t, e.Stop())
	assert.Equal(t, 1, sink.closes)
}

func TestStopDoesNotResetPause(t *testing.T) {
	e, _ := newTestEngine(t, newFake(44100, -1, 0), nil)
	require.NoError(t, e.Pause(SlotB))
	require.NoError(t, e.Start())
	require.NoError(t, e.Stop())
	require.NoError(t, e.Start())
	defer e.Stop()

	assert.True(t, e.Paused(SlotB))
}

func TestStopClosesBlockedSink(t *testing.T) {
	sink := newBlockingSink()
	e, _ := newTestEngine(t, newFake(44100, -1, 1), nil, func(c *Config) {
		c.Sink = sink
		c.StopTimeout = 20 * time.Millisecond
	})

	require.NoError(t, e.Start())
	select {
	case <-sink.entered:
	case <-time.After(2 * time.Second):
		t.Fatal("mixer never wrote")
	}

	stopped := make(chan error, 1)
	go func() { stopped <- e.Stop() }()

	select {
	case err := <-stopped:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stop did not return")
	}
	assert.False(t, e.Running())
}

func TestCloseRejectsStart(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil)
	require.NoError(t, e.Close())

	assert.ErrorIs(t, e.Start(), ErrClosed)
	assert.ErrorIs(t, e.Resume(SlotA), ErrClosed)
	require.NoError(t, e.Close())
}

func TestSetSourceFailureLeavesSlotEmpty(t *testing.T) {
	first := newFake(44100, -1, 0)
	opener := func(source string) (Decoder, error) {
		if source == "good" {
			return first, nil
		}
		return nil, fmt.Errorf("open %s: missing", source)
	}
	e, _ := newTestEngine(t, nil, nil, func(c *Config) { c.Opener = opener })

	require.NoError(t, e.SetSource(SlotA, "good"))
	assert.Equal(t, "good", e.Source(SlotA))

	err := e.SetSource(SlotA, "bad")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Empty(t, e.Source(SlotA))
	assert.True(t, first.Closed())
	assert.ErrorIs(t, e.Seek(SlotA, 0), ErrNoSource)
}

func TestSetSourceKeepsPauseAndVolume(t *testing.T) {
	e, _ := newTestEngine(t, newFake(44100, -1, 0), nil)
	require.NoError(t, e.Pause(SlotA))
	require.NoError(t, e.SetVolume(SlotA, 0.3))

	require.NoError(t, e.SetDecoder(SlotA, newFake(44100, -1, 0), "next"))

	assert.True(t, e.Paused(SlotA))
	assert.Equal(t, 0.3, e.Volume(SlotA))
	assert.Equal(t, "next", e.Source(SlotA))
}

func TestSeekAndProgress(t *testing.T) {
	a := newFake(1000, 5000, 0)
	e, _ := newTestEngine(t, a, nil)

	assert.Equal(t, int64(5000), e.DurationMs(SlotA))
	require.NoError(t, e.Seek(SlotA, 1234))
	assert.Equal(t, int64(1234), e.ProgressMs(SlotA))

	require.NoError(t, e.Seek(SlotA, -10))
	assert.Equal(t, int64(0), e.ProgressMs(SlotA))
}

func TestInvalidArguments(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil)

	assert.ErrorIs(t, e.Pause(Slot(7)), ErrInvalidSlot)
	assert.ErrorIs(t, e.Resume(Slot(-1)), ErrInvalidSlot)
	assert.ErrorIs(t, e.SetSource(Slot(2), "x"), ErrInvalidSlot)
	assert.ErrorIs(t, e.SetVolume(Slot(2), 1), ErrInvalidSlot)
	assert.ErrorIs(t, e.SetPrimarySource(Slot(2)), ErrInvalidSlot)
	assert.ErrorIs(t, e.SetMode(Mode(9)), ErrInvalidMode)
	assert.False(t, e.Running())
}

func TestToggleSwap(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil)

	assert.True(t, e.ToggleSwap())
	assert.True(t, e.Swapped())
	assert.False(t, e.ToggleSwap())
	assert.False(t, e.Swapped())
}

func TestVolumeRejectsNegative(t *testing.T) {
	e, _ := newTestEngine(t, nil, nil)
	require.NoError(t, e.SetVolume(SlotB, -2))
	assert.Equal(t, 0.0, e.Volume(SlotB))
}

func TestSnapshot(t *testing.T) {
	e, _ := newTestEngine(t, newFake(1000, 2000, 0), nil)
	require.NoError(t, e.SetMode(ModeSame))
	require.NoError(t, e.SetPrimarySource(SlotB))
	require.NoError(t, e.Pause(SlotB))

	snap := e.Snapshot()
	assert.False(t, snap.Running)
	assert.Equal(t, ModeSame, snap.Mode)
	assert.Equal(t, SlotB, snap.Primary)
	assert.Equal(t, "a", snap.Slots[SlotA].Source)
	assert.True(t, snap.Slots[SlotA].Loaded)
	assert.Equal(t, int64(2000), snap.Slots[SlotA].DurationMs)
	assert.Equal(t, 1000, snap.Slots[SlotA].SampleRate)
	assert.False(t, snap.Slots[SlotB].Loaded)
	assert.True(t, snap.Slots[SlotB].Paused)
}

func TestSplitPlaybackRunsToCompletion(t *testing.T) {
	const rate = 44100
	total := int64(10 * rate)
	signalA := func(i int64) int16 { return int16(i) }
	signalB := func(i int64) int16 { return int16(-3 * i) }

	done := make(chan Slot, 2)
	e, sink := newTestEngine(t, newSignalFake(rate, total, signalA), newSignalFake(rate, total, signalB), func(c *Config) {
		c.ChunkFrames = DefaultChunkFrames
		c.OnCompletion = func(s Slot) { done <- s }
	})

	require.NoError(t, e.ResumeAll())

	seen := map[Slot]bool{}
	for len(seen) < 2 {
		select {
		case s := <-done:
			seen[s] = true
		case <-time.After(10 * time.Second):
			t.Fatalf("completions so far: %v", seen)
		}
	}
	assert.True(t, e.Paused(SlotA))
	assert.True(t, e.Paused(SlotB))
	assert.True(t, e.Running())
	require.NoError(t, e.Stop())

	// Left carries A and right carries B, frame for frame in decode order
	samples := sink.Samples()
	require.Len(t, samples, int(total)*2)
	for i := int64(0); i < total; i++ {
		l, r := samples[2*i], samples[2*i+1]
		if l != signalA(i) || r != signalB(i) {
			t.Fatalf("frame %d: got L=%d R=%d, want L=%d R=%d", i, l, r, signalA(i), signalB(i))
		}
	}
}

func TestCompletionHandlerMayResume(t *testing.T) {
	resumed := make(chan error, 1)
	var e *Engine
	e, _ = newTestEngine(t, newFake(44100, 100, 1), newFake(44100, -1, 2), func(c *Config) {
		c.OnCompletion = func(s Slot) {
			if s == SlotA {
				resumed <- e.Resume(SlotB)
			}
		}
	})
	require.NoError(t, e.Pause(SlotB))
	require.NoError(t, e.Resume(SlotA))
	defer e.Stop()

	select {
	case err := <-resumed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("completion not delivered")
	}
	assert.True(t, e.Playing(SlotB))
}

func TestCompletionHandlerPanicIsContained(t *testing.T) {
	calls := make(chan Slot, 2)
	e, _ := newTestEngine(t, newFake(44100, 0, 0), nil, func(c *Config) {
		c.OnCompletion = func(s Slot) {
			calls <- s
			panic("listener bug")
		}
	})
	require.NoError(t, e.Pause(SlotB))
	require.NoError(t, e.Start())
	defer e.Stop()

	expectCompletion(t, calls, SlotA)

	require.NoError(t, e.Seek(SlotA, 0))
	require.NoError(t, e.Resume(SlotA))
	expectCompletion(t, calls, SlotA)
}

func TestParseSlotAndMode(t *testing.T) {
	s, err := ParseSlot(" b ")
	require.NoError(t, err)
	assert.Equal(t, SlotB, s)
	_, err = ParseSlot("c")
	assert.ErrorIs(t, err, ErrInvalidSlot)

	m, err := ParseMode("SAME")
	require.NoError(t, err)
	assert.Equal(t, ModeSame, m)
	_, err = ParseMode("mono")
	assert.ErrorIs(t, err, ErrInvalidMode)

	assert.Equal(t, SlotB, SlotA.Other())
	assert.Equal(t, "A", SlotA.String())
	assert.Equal(t, "split", ModeSplit.String())
}
