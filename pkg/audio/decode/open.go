// ABOUTME: Source opening and codec detection
// ABOUTME: Sniffs magic bytes, falls back to the file extension, builds a backend
package decode

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Codec names reported by Decoder.Codec
const (
	CodecMP3    = "mp3"
	CodecFLAC   = "flac"
	CodecVorbis = "vorbis"
	CodecOpus   = "opus"
	CodecWAV    = "wav"
	CodecAIFF   = "aiff"
	CodecPCM    = "pcm"
	CodecTone   = "tone"
)

type openFunc func(rs io.ReadSeekCloser) (stream, error)

var backends = map[string]openFunc{
	CodecMP3:    newMP3Stream,
	CodecFLAC:   newFLACStream,
	CodecVorbis: newVorbisStream,
	CodecOpus:   newOpusStream,
	CodecWAV:    newWAVStream,
	CodecAIFF:   newAIFFStream,
}

var extensions = map[string]string{
	".mp3":  CodecMP3,
	".flac": CodecFLAC,
	".ogg":  CodecVorbis,
	".oga":  CodecVorbis,
	".opus": CodecOpus,
	".wav":  CodecWAV,
	".wave": CodecWAV,
	".aif":  CodecAIFF,
	".aiff": CodecAIFF,
	".aifc": CodecAIFF,
}

// Supported reports whether path has an extension Open recognises
func Supported(path string) bool {
	_, ok := extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Open creates a decoder for a file path or a "tone:" spec
func Open(source string) (*Decoder, error) {
	if strings.HasPrefix(source, tonePrefix) {
		return openTone(source)
	}

	f, err := os.Open(source)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, source)
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrNotFound, source, err)
	}

	codec, err := detect(f, source)
	if err != nil {
		f.Close()
		return nil, err
	}

	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: rewind %s: %v", ErrCodecInit, source, err)
	}

	st, err := backends[codec](f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s %s: %v", ErrCodecInit, codec, source, err)
	}

	return newDecoder(source, codec, st), nil
}

// detect picks a codec from magic bytes, then from the extension
func detect(r io.Reader, name string) (string, error) {
	head := make([]byte, 64)
	n, err := io.ReadFull(r, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("%w: read header: %v", ErrCodecInit, err)
	}
	head = head[:n]

	if codec := sniff(head); codec != "" {
		return codec, nil
	}
	if codec, ok := extensions[strings.ToLower(filepath.Ext(name))]; ok {
		return codec, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnsupported, name)
}

func sniff(b []byte) string {
	switch {
	case bytes.HasPrefix(b, []byte("fLaC")):
		return CodecFLAC
	case bytes.HasPrefix(b, []byte("OggS")):
		if len(b) < 27 {
			return ""
		}
		start := 27 + int(b[26])
		if len(b) < start+8 {
			return ""
		}
		pkt := b[start:]
		if bytes.HasPrefix(pkt, []byte("OpusHead")) {
			return CodecOpus
		}
		if bytes.HasPrefix(pkt, []byte("\x01vorbis")) {
			return CodecVorbis
		}
	case len(b) >= 12 && bytes.HasPrefix(b, []byte("RIFF")) && string(b[8:12]) == "WAVE":
		return CodecWAV
	case len(b) >= 12 && bytes.HasPrefix(b, []byte("FORM")) && (string(b[8:12]) == "AIFF" || string(b[8:12]) == "AIFC"):
		return CodecAIFF
	case bytes.HasPrefix(b, []byte("ID3")):
		return CodecMP3
	case len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0:
		return CodecMP3
	}
	return ""
}
