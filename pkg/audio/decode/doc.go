// ABOUTME: Audio decoder package for file-backed sources
// ABOUTME: Provides the mono Decoder over MP3, FLAC, Vorbis, Opus, WAV and AIFF backends
// Package decode turns an audio source into mono 16-bit PCM frames.
//
// Supports: MP3, FLAC, Ogg Vorbis, Ogg Opus, WAV, AIFF, in-memory PCM and
// synthetic "tone:<hz>[:<seconds>]" sources.
//
// Multi-channel sources are averaged to mono inside ReadFrames. Each read
// performs one bounded unit of backend work; a zero count with a nil error
// means "try again". Sample rate may change between reads and should be
// re-checked by the caller.
//
// Example:
//
//	dec, err := decode.Open("track.flac")
//	n, err := dec.ReadFrames(buf)
//	if errors.Is(err, decode.ErrEndOfStream) { ... }
package decode
