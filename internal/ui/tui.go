// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the channels it shares with the app
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dualdeck/dualdeck-go/internal/protocol"
)

// Controls carries key actions out of the TUI
type Controls struct {
	Commands chan protocol.Command
	Quit     chan struct{}
}

// NewControls creates the TUI control channels
func NewControls() *Controls {
	return &Controls{
		Commands: make(chan protocol.Command, 16),
		Quit:     make(chan struct{}, 1),
	}
}

// NewModel creates a new TUI model. poll is called once per second for a
// fresh status; it may be nil when status arrives via StatusMsg.
func NewModel(ctrl *Controls, poll func() StatusMsg) Model {
	m := Model{
		controls: ctrl,
		poll:     poll,
	}
	if poll != nil {
		m.status = poll()
	}
	return m
}

// Run creates the TUI program; the caller runs it
func Run(ctrl *Controls, poll func() StatusMsg) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(ctrl, poll), tea.WithAltScreen())
	return p, nil
}
