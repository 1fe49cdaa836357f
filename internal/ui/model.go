// ABOUTME: Bubbletea model for the dual-deck TUI
// ABOUTME: Renders both slots and turns key presses into player commands
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dualdeck/dualdeck-go/internal/protocol"
	"github.com/dualdeck/dualdeck-go/pkg/dualdeck"
)

const (
	seekStepMs = "10000"
	volumeStep = "0.1"
	barWidth   = 30
)

// SlotInfo is presentation data the engine does not track
type SlotInfo struct {
	Title  string
	Track  int // 1-based, 0 when unknown
	Tracks int
}

// StatusMsg updates TUI state
type StatusMsg struct {
	Name     string
	Snapshot dualdeck.Snapshot
	Slots    [2]SlotInfo
}

// Model represents the TUI state
type Model struct {
	status   StatusMsg
	controls *Controls
	poll     func() StatusMsg

	quitting bool
	width    int
	height   int
}

type tickMsg time.Time

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	slotStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	helpStyle   = lipgloss.NewStyle().Faint(true)
)

// Init starts the once-per-second poll
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		if m.poll != nil {
			m.status = m.poll()
		}
		return m, tickEvery()
	case StatusMsg:
		m.status = msg
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n\n")
	for _, s := range dualdeck.Slots {
		b.WriteString(m.renderSlot(s))
		b.WriteString("\n")
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderHeader() string {
	snap := m.status.Snapshot

	name := "Dualdeck"
	if m.status.Name != "" {
		name += " · " + m.status.Name
	}

	engine := "stopped"
	if snap.Running {
		engine = fmt.Sprintf("running %d Hz", snap.SampleRate)
	}

	swap := "off"
	if snap.Swapped {
		swap = "on"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(name))
	b.WriteString("\n")
	b.WriteString(headerStyle.Render("Mode: "))
	b.WriteString(valueStyle.Render(snap.Mode.String()))
	b.WriteString(headerStyle.Render("  Swap: "))
	b.WriteString(valueStyle.Render(swap))
	b.WriteString(headerStyle.Render("  Primary: "))
	b.WriteString(valueStyle.Render(snap.Primary.String()))
	b.WriteString(headerStyle.Render("  Engine: "))
	b.WriteString(valueStyle.Render(engine))
	return b.String()
}

func (m Model) renderSlot(s dualdeck.Slot) string {
	st := m.status.Snapshot.Slots[s]
	info := m.status.Slots[s]

	title := info.Title
	if title == "" {
		title = "(no source)"
	}
	if info.Tracks > 1 {
		title += fmt.Sprintf("  [%d/%d]", info.Track, info.Tracks)
	}

	var b strings.Builder
	b.WriteString(slotStyle.Render(fmt.Sprintf("%s  %-8s", s, slotState(st))))
	b.WriteString(valueStyle.Render(truncate(title, 60)))
	b.WriteString("\n   ")
	b.WriteString(renderBar(st.ProgressMs, st.DurationMs, barWidth))
	b.WriteString(valueStyle.Render(fmt.Sprintf("  %s / %s   vol %d%%",
		formatMs(st.ProgressMs), formatMs(st.DurationMs), int(st.Volume*100+0.5))))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderHelp() string {
	return helpStyle.Render("a/b:Pause  space:All  s:Swap  m:Mode  p:Primary  ←/→ ,/.:Seek  +/- ]/[:Volume  n/N:Next  q:Quit")
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "q" || key == "ctrl+c" {
		m.quitting = true
		if m.controls != nil {
			select {
			case m.controls.Quit <- struct{}{}:
			default:
			}
		}
		return m, tea.Quit
	}

	if cmd, ok := keyCommand(key, m.status.Snapshot); ok && m.controls != nil {
		select {
		case m.controls.Commands <- cmd:
		default:
		}
	}
	return m, nil
}

// keyCommand maps a key to a player command
func keyCommand(key string, snap dualdeck.Snapshot) (protocol.Command, bool) {
	switch key {
	case "a":
		return protocol.Command{Action: protocol.ActionToggle, Slot: "A"}, true
	case "b":
		return protocol.Command{Action: protocol.ActionToggle, Slot: "B"}, true
	case " ":
		for _, st := range snap.Slots {
			if st.Playing {
				return protocol.Command{Action: protocol.ActionPauseAll}, true
			}
		}
		return protocol.Command{Action: protocol.ActionResumeAll}, true
	case "s":
		return protocol.Command{Action: protocol.ActionSwap}, true
	case "m":
		return protocol.Command{Action: protocol.ActionMode}, true
	case "p":
		return protocol.Command{Action: protocol.ActionPrimary}, true
	case "left":
		return protocol.Command{Action: protocol.ActionSeek, Slot: "A", Value: "-" + seekStepMs}, true
	case "right":
		return protocol.Command{Action: protocol.ActionSeek, Slot: "A", Value: "+" + seekStepMs}, true
	case ",":
		return protocol.Command{Action: protocol.ActionSeek, Slot: "B", Value: "-" + seekStepMs}, true
	case ".":
		return protocol.Command{Action: protocol.ActionSeek, Slot: "B", Value: "+" + seekStepMs}, true
	case "+", "=":
		return protocol.Command{Action: protocol.ActionVolume, Slot: "A", Value: "+" + volumeStep}, true
	case "-":
		return protocol.Command{Action: protocol.ActionVolume, Slot: "A", Value: "-" + volumeStep}, true
	case "]":
		return protocol.Command{Action: protocol.ActionVolume, Slot: "B", Value: "+" + volumeStep}, true
	case "[":
		return protocol.Command{Action: protocol.ActionVolume, Slot: "B", Value: "-" + volumeStep}, true
	case "n":
		return protocol.Command{Action: protocol.ActionNext, Slot: "A"}, true
	case "N":
		return protocol.Command{Action: protocol.ActionNext, Slot: "B"}, true
	}
	return protocol.Command{}, false
}

func slotState(st dualdeck.SlotStatus) string {
	switch {
	case !st.Loaded:
		return "empty"
	case st.EndOfStream:
		return "ended"
	case st.Playing:
		return "playing"
	case st.Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Utility functions
func renderBar(value, max int64, width int) string {
	filled := 0
	if max > 0 {
		filled = int(value * int64(width) / max)
	}
	if filled > width {
		filled = width
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func formatMs(ms int64) string {
	if ms < 0 {
		ms = 0
	}
	s := ms / 1000
	return fmt.Sprintf("%02d:%02d", s/60, s%60)
}

func truncate(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	return string(r[:length-3]) + "..."
}
