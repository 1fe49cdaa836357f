package app

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadPlaylistEmptySource(t *testing.T) {
	pl, err := LoadPlaylist("", false, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, pl.Len())

	_, ok := pl.Current()
	assert.False(t, ok)
	_, ok = pl.Next()
	assert.False(t, ok)
	_, ok = pl.Prev()
	assert.False(t, ok)
}

func TestLoadPlaylistTone(t *testing.T) {
	pl, err := LoadPlaylist("tone:440:2", true, 1)
	require.NoError(t, err)

	track, ok := pl.Current()
	require.True(t, ok)
	assert.Equal(t, "tone:440:2", track)
}

func TestLoadPlaylistDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"b.flac", "a.mp3", "notes.txt", "c.WAV"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.mp3"), 0o755))

	pl, err := LoadPlaylist(dir, false, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.mp3"),
		filepath.Join(dir, "b.flac"),
		filepath.Join(dir, "c.WAV"),
	}, pl.tracks)
}

func TestLoadPlaylistDirectoryWithoutAudio(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "readme.md"), nil, 0o644))

	_, err := LoadPlaylist(dir, false, 0)
	assert.ErrorIs(t, err, ErrEmptyPlaylist)
}

func TestLoadPlaylistM3U(t *testing.T) {
	dir := t.TempDir()
	abs := filepath.Join(t.TempDir(), "abs.ogg")
	content := "\ufeff#EXTM3U\n#EXTINF:10,Intro\nintro.mp3\n\n  " + abs + "  \ntone:220:1\n"
	path := filepath.Join(dir, "set.m3u8")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	pl, err := LoadPlaylist(path, false, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "intro.mp3"), abs, "tone:220:1"}, pl.tracks)
}

func TestLoadPlaylistMissing(t *testing.T) {
	_, err := LoadPlaylist(filepath.Join(t.TempDir(), "nope.mp3"), false, 0)
	assert.Error(t, err)
}

func TestPlaylistCursor(t *testing.T) {
	pl := NewPlaylist([]string{"one", "two", "three"}, false, 0)

	track, ok := pl.Current()
	require.True(t, ok)
	assert.Equal(t, "one", track)

	_, ok = pl.Prev()
	assert.False(t, ok, "prev stays on the first track")
	assert.Equal(t, 0, pl.Position())

	pl.Next()
	track, ok = pl.Next()
	require.True(t, ok)
	assert.Equal(t, "three", track)

	_, ok = pl.Next()
	assert.False(t, ok, "next stays on the last track")
	assert.Equal(t, 2, pl.Position())

	track, ok = pl.Prev()
	require.True(t, ok)
	assert.Equal(t, "two", track)
}

func TestPlaylistShuffleIsSeeded(t *testing.T) {
	tracks := []string{"a", "b", "c", "d", "e", "f", "g", "h"}

	first := NewPlaylist(tracks, true, 42)
	second := NewPlaylist(tracks, true, 42)
	assert.Equal(t, first.tracks, second.tracks)
	assert.ElementsMatch(t, tracks, first.tracks)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g", "h"}, tracks, "input is not modified")
}

func TestTitle(t *testing.T) {
	assert.Equal(t, "Song Name", Title("/music/Song Name.flac"))
	assert.Equal(t, "tone:440", Title("tone:440"))
	assert.Equal(t, "", Title(""))
}
