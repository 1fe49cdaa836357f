// ABOUTME: Main player application orchestration
// ABOUTME: Binds per-slot playlists to the engine and executes control commands
package app

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dualdeck/dualdeck-go/internal/protocol"
	"github.com/dualdeck/dualdeck-go/internal/ui"
	"github.com/dualdeck/dualdeck-go/pkg/dualdeck"
	"github.com/sirupsen/logrus"
)

// ErrUnknownAction is returned by Execute for unrecognised actions
var ErrUnknownAction = errors.New("unknown action")

// Config holds player configuration
type Config struct {
	SourceA string
	SourceB string
	Shuffle bool
	Seed    int64

	Mode    dualdeck.Mode
	Swap    bool
	Primary dualdeck.Slot
	VolumeA float64
	VolumeB float64

	// Name is shown in the TUI and announced to controllers
	Name string

	// Engine is passed to dualdeck.New; OnCompletion is owned by the app
	Engine dualdeck.Config
	Logger logrus.FieldLogger
}

// App represents the main player application
type App struct {
	config Config
	log    logrus.FieldLogger
	engine *dualdeck.Engine

	mu        sync.Mutex
	playlists [2]*Playlist
	broadcast func(msgType string, payload interface{})
}

// New loads both playlists and creates a stopped engine
func New(config Config) (*App, error) {
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}

	a := &App{
		config: config,
		log:    config.Logger.WithField("component", "app"),
	}

	for i, src := range []string{config.SourceA, config.SourceB} {
		pl, err := LoadPlaylist(src, config.Shuffle, config.Seed+int64(i))
		if err != nil {
			return nil, fmt.Errorf("slot %s: %w", dualdeck.Slots[i], err)
		}
		a.playlists[i] = pl
	}

	ecfg := config.Engine
	ecfg.OnCompletion = a.onCompletion
	if ecfg.Logger == nil {
		ecfg.Logger = config.Logger
	}
	a.engine = dualdeck.New(ecfg)

	if err := a.engine.SetMode(config.Mode); err != nil {
		a.engine.Close()
		return nil, err
	}
	if err := a.engine.SetPrimarySource(config.Primary); err != nil {
		a.engine.Close()
		return nil, err
	}
	a.engine.SetSwap(config.Swap)
	a.engine.SetVolume(dualdeck.SlotA, config.VolumeA)
	a.engine.SetVolume(dualdeck.SlotB, config.VolumeB)

	return a, nil
}

// Engine returns the underlying engine
func (a *App) Engine() *dualdeck.Engine {
	return a.engine
}

// SetBroadcaster installs the function used to announce completions and
// state changes to remote controllers
func (a *App) SetBroadcaster(fn func(msgType string, payload interface{})) {
	a.mu.Lock()
	a.broadcast = fn
	a.mu.Unlock()
}

// Start loads the first playable track of each playlist, starts the engine
// and resumes every loaded slot
func (a *App) Start() error {
	loaded := [2]bool{}
	for _, s := range dualdeck.Slots {
		loaded[s] = a.loadCurrent(s)
	}

	if err := a.engine.Start(); err != nil {
		return err
	}

	for _, s := range dualdeck.Slots {
		if !loaded[s] {
			continue
		}
		if err := a.engine.Resume(s); err != nil {
			return err
		}
	}

	a.log.WithFields(logrus.Fields{
		"rate": a.engine.SampleRate(),
		"mode": a.engine.Mode(),
	}).Info("Player started")
	return nil
}

// Close stops playback and releases the engine
func (a *App) Close() error {
	return a.engine.Close()
}

func (a *App) playlist(s dualdeck.Slot) *Playlist {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.playlists[s]
}

// loadCurrent assigns the track under the cursor, skipping forward past
// sources that fail to open
func (a *App) loadCurrent(s dualdeck.Slot) bool {
	pl := a.playlist(s)
	track, ok := pl.Current()
	for ok {
		if err := a.engine.SetSource(s, track); err == nil {
			return true
		}
		track, ok = pl.Next()
	}
	return false
}

// advance moves to the next playable track
func (a *App) advance(s dualdeck.Slot) bool {
	pl := a.playlist(s)
	for {
		track, ok := pl.Next()
		if !ok {
			return false
		}
		if err := a.engine.SetSource(s, track); err == nil {
			return true
		}
	}
}

func (a *App) onCompletion(s dualdeck.Slot) {
	source := a.engine.Source(s)
	a.log.WithFields(logrus.Fields{"slot": s, "source": source}).Info("Track finished")
	a.notify(protocol.TypeCompletion, protocol.Completion{Slot: s.String(), Source: source})

	if a.advance(s) {
		if err := a.engine.Resume(s); err != nil {
			a.log.WithField("slot", s).Errorf("Failed to resume after advance: %v", err)
		}
	} else {
		a.log.WithField("slot", s).Info("Playlist finished")
	}
	a.notify(protocol.TypeStatus, a.Status())
}

func (a *App) notify(msgType string, payload interface{}) {
	a.mu.Lock()
	fn := a.broadcast
	a.mu.Unlock()
	if fn != nil {
		fn(msgType, payload)
	}
}

// Next skips the slot to its next track. A slot that had ended resumes.
func (a *App) Next(s dualdeck.Slot) error {
	ended := a.engine.State(s).EndOfStream()
	if !a.advance(s) {
		return ErrEndOfPlaylist
	}
	if ended {
		return a.engine.Resume(s)
	}
	return nil
}

// Prev steps the slot back one track; on the first track it restarts it
func (a *App) Prev(s dualdeck.Slot) error {
	ended := a.engine.State(s).EndOfStream()
	pl := a.playlist(s)

	if track, ok := pl.Prev(); ok {
		if err := a.engine.SetSource(s, track); err != nil {
			return err
		}
	} else if err := a.engine.Seek(s, 0); err != nil {
		return err
	}

	if ended {
		return a.engine.Resume(s)
	}
	return nil
}

// Load replaces the slot's playlist with source
func (a *App) Load(s dualdeck.Slot, source string) error {
	pl, err := LoadPlaylist(source, a.config.Shuffle, a.config.Seed+int64(s))
	if err != nil {
		return err
	}
	if pl.Len() == 0 {
		return fmt.Errorf("%w: %q", ErrEmptyPlaylist, source)
	}

	a.mu.Lock()
	a.playlists[s] = pl
	a.mu.Unlock()

	if !a.loadCurrent(s) {
		return fmt.Errorf("%w: no playable track in %s", dualdeck.ErrSourceUnavailable, source)
	}
	return nil
}

// Clear empties the slot and its playlist
func (a *App) Clear(s dualdeck.Slot) error {
	a.mu.Lock()
	a.playlists[s] = NewPlaylist(nil, false, 0)
	a.mu.Unlock()
	return a.engine.ClearSource(s)
}

// Execute applies one control command
func (a *App) Execute(cmd protocol.Command) error {
	e := a.engine

	switch cmd.Action {
	case protocol.ActionPauseAll:
		e.PauseAll()
		return nil
	case protocol.ActionResumeAll:
		return e.ResumeAll()
	case protocol.ActionSwap:
		if cmd.Value == "" {
			e.ToggleSwap()
			return nil
		}
		v, err := strconv.ParseBool(cmd.Value)
		if err != nil {
			return fmt.Errorf("swap value %q: %w", cmd.Value, err)
		}
		e.SetSwap(v)
		return nil
	case protocol.ActionMode:
		if cmd.Value == "" {
			if e.Mode() == dualdeck.ModeSplit {
				return e.SetMode(dualdeck.ModeSame)
			}
			return e.SetMode(dualdeck.ModeSplit)
		}
		m, err := dualdeck.ParseMode(cmd.Value)
		if err != nil {
			return err
		}
		return e.SetMode(m)
	case protocol.ActionPrimary:
		if cmd.Value == "" && cmd.Slot == "" {
			return e.SetPrimarySource(e.Primary().Other())
		}
		target := cmd.Slot
		if target == "" {
			target = cmd.Value
		}
		s, err := dualdeck.ParseSlot(target)
		if err != nil {
			return err
		}
		return e.SetPrimarySource(s)
	}

	s, err := dualdeck.ParseSlot(cmd.Slot)
	if err != nil {
		return err
	}

	switch cmd.Action {
	case protocol.ActionLoad:
		return a.Load(s, cmd.Value)
	case protocol.ActionClear:
		return a.Clear(s)
	case protocol.ActionPause:
		return e.Pause(s)
	case protocol.ActionResume:
		return e.Resume(s)
	case protocol.ActionToggle:
		if e.Paused(s) || !e.Running() {
			return e.Resume(s)
		}
		return e.Pause(s)
	case protocol.ActionSeek:
		ms, err := relativeInt(cmd.Value, e.ProgressMs(s))
		if err != nil {
			return err
		}
		return e.Seek(s, max(ms, 0))
	case protocol.ActionVolume:
		gain, err := relativeFloat(cmd.Value, e.Volume(s))
		if err != nil {
			return err
		}
		return e.SetVolume(s, max(gain, 0))
	case protocol.ActionNext:
		return a.Next(s)
	case protocol.ActionPrev:
		return a.Prev(s)
	}

	return fmt.Errorf("%w: %q", ErrUnknownAction, cmd.Action)
}

// relativeInt parses "+n"/"-n" as an offset from cur and "n" as absolute
func relativeInt(v string, cur int64) (int64, error) {
	n, err := strconv.ParseInt(strings.TrimPrefix(v, "+"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", v, err)
	}
	if isRelative(v) {
		return cur + n, nil
	}
	return n, nil
}

func relativeFloat(v string, cur float64) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimPrefix(v, "+"), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid value %q: %w", v, err)
	}
	if isRelative(v) {
		return cur + f, nil
	}
	return f, nil
}

func isRelative(v string) bool {
	return strings.HasPrefix(v, "+") || strings.HasPrefix(v, "-")
}

// RunCommands executes commands from the TUI until ctx is done
func (a *App) RunCommands(ctx context.Context, cmds <-chan protocol.Command) {
	for {
		select {
		case cmd := <-cmds:
			if err := a.Execute(cmd); err != nil {
				a.log.WithField("action", cmd.Action).Warnf("Command failed: %v", err)
				continue
			}
			a.notify(protocol.TypeStatus, a.Status())
		case <-ctx.Done():
			return
		}
	}
}

// PublishStatus broadcasts the status every interval until ctx is done
func (a *App) PublishStatus(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.notify(protocol.TypeStatus, a.Status())
		case <-ctx.Done():
			return
		}
	}
}

// Status reports engine and playlist state for remote controllers
func (a *App) Status() protocol.Status {
	snap := a.engine.Snapshot()
	st := protocol.Status{
		Running:    snap.Running,
		Mode:       snap.Mode.String(),
		Swapped:    snap.Swapped,
		Primary:    snap.Primary.String(),
		SampleRate: snap.SampleRate,
		Slots:      make([]protocol.SlotStatus, 0, len(snap.Slots)),
	}

	for _, ss := range snap.Slots {
		info := a.slotInfo(ss)
		st.Slots = append(st.Slots, protocol.SlotStatus{
			Slot:        ss.Slot.String(),
			Source:      ss.Source,
			Title:       info.Title,
			Track:       info.Track,
			Tracks:      info.Tracks,
			Loaded:      ss.Loaded,
			Paused:      ss.Paused,
			Playing:     ss.Playing,
			EndOfStream: ss.EndOfStream,
			Volume:      ss.Volume,
			ProgressMs:  ss.ProgressMs,
			DurationMs:  ss.DurationMs,
		})
	}
	return st
}

// UIStatus reports state for the TUI
func (a *App) UIStatus() ui.StatusMsg {
	snap := a.engine.Snapshot()
	msg := ui.StatusMsg{Name: a.config.Name, Snapshot: snap}
	for i, ss := range snap.Slots {
		msg.Slots[i] = a.slotInfo(ss)
	}
	return msg
}

func (a *App) slotInfo(ss dualdeck.SlotStatus) ui.SlotInfo {
	info := ui.SlotInfo{Title: Title(ss.Source)}
	if pl := a.playlist(ss.Slot); pl != nil && pl.Len() > 0 {
		info.Track = pl.Position() + 1
		info.Tracks = pl.Len()
	}
	return info
}
