// ABOUTME: Audio fundamentals package providing sample helpers
// ABOUTME: Shared by decode, output and the dualdeck engine
// Package audio provides 16-bit PCM sample utilities.
//
// Everything downstream of a decoder in dualdeck works on int16 samples:
//   - Downmix2 / DownmixFrame fold multi-channel frames to mono
//   - Scale applies software gain with saturation
//   - ShiftToInt16 / FloatToInt16 normalise codec output to 16 bits
//
// Example:
//
//	mono := audio.Downmix2(left, right)
//	out := audio.Scale(mono, 1.2) // may clip, by intent
package audio
