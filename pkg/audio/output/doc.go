// ABOUTME: Audio output package for playing mixed PCM
// ABOUTME: Provides the Output interface with oto, malgo and WAV file backends
// Package output provides 16-bit stereo PCM sinks.
//
// Write blocks while the device is behind, which paces the producer.
// Backends: oto (default), malgo (miniaudio) and a WAV file renderer.
//
// Example:
//
//	out, err := output.New(output.BackendOto, "")
//	err = out.Open(44100, 2)
//	frames, err := out.Write(samples)
package output
