// ABOUTME: Per-slot track lists built from files, directories, m3u lists or tones
// ABOUTME: Tracks a cursor with optional seeded shuffle for auto-advance
package app

import (
	"bufio"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/dualdeck/dualdeck-go/pkg/audio/decode"
)

var (
	// ErrEmptyPlaylist is returned when a source yields no playable tracks
	ErrEmptyPlaylist = errors.New("playlist is empty")
	// ErrEndOfPlaylist is returned when skipping past either end
	ErrEndOfPlaylist = errors.New("end of playlist")
)

// Playlist is an ordered list of sources with a cursor
type Playlist struct {
	mu     sync.Mutex
	tracks []string
	pos    int
}

// NewPlaylist creates a playlist. When shuffle is set the order is a
// permutation drawn from seed.
func NewPlaylist(tracks []string, shuffle bool, seed int64) *Playlist {
	t := append([]string(nil), tracks...)
	if shuffle && len(t) > 1 {
		r := rand.New(rand.NewSource(seed))
		r.Shuffle(len(t), func(i, j int) { t[i], t[j] = t[j], t[i] })
	}
	return &Playlist{tracks: t}
}

// LoadPlaylist expands source into tracks. An empty source gives an empty
// playlist.
func LoadPlaylist(source string, shuffle bool, seed int64) (*Playlist, error) {
	if source == "" {
		return NewPlaylist(nil, false, 0), nil
	}
	if strings.HasPrefix(source, "tone:") {
		return NewPlaylist([]string{source}, false, 0), nil
	}

	info, err := os.Stat(source)
	if err != nil {
		return nil, fmt.Errorf("playlist %s: %w", source, err)
	}

	var tracks []string
	switch {
	case info.IsDir():
		tracks, err = scanDir(source)
	case isM3U(source):
		tracks, err = readM3U(source)
	default:
		tracks = []string{source}
	}
	if err != nil {
		return nil, err
	}
	if len(tracks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyPlaylist, source)
	}
	return NewPlaylist(tracks, shuffle, seed), nil
}

func isM3U(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".m3u" || ext == ".m3u8"
}

// scanDir lists supported audio files in name order, without recursion
func scanDir(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	var tracks []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		if decode.Supported(path) {
			tracks = append(tracks, path)
		}
	}
	sort.Strings(tracks)
	return tracks, nil
}

// readM3U reads one entry per line; relative entries resolve against the list
func readM3U(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open playlist: %w", err)
	}
	defer f.Close()

	base := filepath.Dir(path)
	var tracks []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		line = strings.TrimPrefix(line, "\ufeff")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !strings.HasPrefix(line, "tone:") && !filepath.IsAbs(line) {
			line = filepath.Join(base, line)
		}
		tracks = append(tracks, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read playlist: %w", err)
	}
	return tracks, nil
}

// Len returns the number of tracks
func (p *Playlist) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tracks)
}

// Position returns the zero-based cursor
func (p *Playlist) Position() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pos
}

// Current returns the track under the cursor
func (p *Playlist) Current() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pos >= len(p.tracks) {
		return "", false
	}
	return p.tracks[p.pos], true
}

// Next moves the cursor forward; it stays put at the last track
func (p *Playlist) Next() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pos+1 >= len(p.tracks) {
		return "", false
	}
	p.pos++
	return p.tracks[p.pos], true
}

// Prev moves the cursor back; it stays put at the first track
func (p *Playlist) Prev() (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pos == 0 || len(p.tracks) == 0 {
		return "", false
	}
	p.pos--
	return p.tracks[p.pos], true
}

// Title derives a display title from a source handle
func Title(source string) string {
	if source == "" || strings.HasPrefix(source, "tone:") {
		return source
	}
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
