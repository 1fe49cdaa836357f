// ABOUTME: Sample-level helpers shared by decoders, the mixer and sinks
// ABOUTME: Clamping, gain scaling, downmixing and bit-depth conversion for int16 PCM
package audio

import (
	"math"
)

const (
	// 16-bit audio range constants
	MaxInt16 = 32767
	MinInt16 = -32768
)

// Format describes a PCM stream
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Clamp16 saturates v to the signed 16-bit range
func Clamp16(v int64) int16 {
	if v > MaxInt16 {
		return MaxInt16
	}
	if v < MinInt16 {
		return MinInt16
	}
	return int16(v)
}

// Scale applies gain to a sample, rounding before clamping.
// Gains above 1.0 may clip.
func Scale(s int16, gain float64) int16 {
	if gain == 1 {
		return s
	}
	v := math.Round(float64(s) * gain)
	if v >= MaxInt16 {
		return MaxInt16
	}
	if v <= MinInt16 {
		return MinInt16
	}
	return int16(v)
}

// Downmix2 averages a stereo pair, rounding half away from zero
func Downmix2(l, r int16) int16 {
	sum := int32(l) + int32(r)
	if sum >= 0 {
		return int16((sum + 1) / 2)
	}
	return int16((sum - 1) / 2)
}

// DownmixFrame averages one interleaved frame of any channel count
func DownmixFrame(frame []int16) int16 {
	switch len(frame) {
	case 0:
		return 0
	case 1:
		return frame[0]
	case 2:
		return Downmix2(frame[0], frame[1])
	}
	var sum int64
	for _, s := range frame {
		sum += int64(s)
	}
	return Clamp16(int64(math.Round(float64(sum) / float64(len(frame)))))
}

// FloatToInt16 converts a [-1, 1] float sample to int16
func FloatToInt16(f float32) int16 {
	return Clamp16(int64(math.Round(float64(f) * MaxInt16)))
}

// ShiftToInt16 rescales an integer sample of the given bit depth to 16 bits.
// 8-bit input is treated as unsigned, as stored by WAV.
func ShiftToInt16(v int, bitDepth int) int16 {
	switch {
	case bitDepth == 8:
		return int16((v - 128) << 8)
	case bitDepth > 16:
		return Clamp16(int64(v >> (bitDepth - 16)))
	case bitDepth < 16 && bitDepth > 0:
		return Clamp16(int64(v << (16 - bitDepth)))
	default:
		return Clamp16(int64(v))
	}
}

// FramesToMs converts a frame count at rate to milliseconds
func FramesToMs(frames int64, rate int) int64 {
	if rate <= 0 || frames <= 0 {
		return 0
	}
	return frames * 1000 / int64(rate)
}

// MsToFrames converts milliseconds to a frame index at rate
func MsToFrames(ms int64, rate int) int64 {
	if rate <= 0 || ms <= 0 {
		return 0
	}
	return ms * int64(rate) / 1000
}
