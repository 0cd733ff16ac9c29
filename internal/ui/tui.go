// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the channels it drives the app through
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// ActionKind identifies a user request from the TUI
type ActionKind int

const (
	ActionStart ActionKind = iota
	ActionStop
	ActionLanguages
)

// Action is a session request from the TUI
type Action struct {
	Kind       ActionKind
	SourceLang string
	TargetLang string
}

// VolumeChangeMsg carries a volume or mute change
type VolumeChangeMsg struct {
	Volume int
	Muted  bool
}

// QuitMsg signals the user asked to quit
type QuitMsg struct{}

// Controls holds channels for TUI to app communication
type Controls struct {
	Actions chan Action
	Changes chan VolumeChangeMsg
	Quit    chan QuitMsg
}

// NewControls creates a new control handler
func NewControls() *Controls {
	return &Controls{
		Actions: make(chan Action, 10),
		Changes: make(chan VolumeChangeMsg, 10),
		Quit:    make(chan QuitMsg, 1),
	}
}

// send forwards an action without blocking the UI loop
func (c *Controls) send(a Action) {
	if c == nil {
		return
	}
	select {
	case c.Actions <- a:
	default:
	}
}

func (c *Controls) sendVolume(volume int, muted bool) {
	if c == nil {
		return
	}
	select {
	case c.Changes <- VolumeChangeMsg{Volume: volume, Muted: muted}:
	default:
	}
}

func (c *Controls) quit() {
	if c == nil {
		return
	}
	select {
	case c.Quit <- QuitMsg{}:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls, sourceLang, targetLang string) Model {
	return Model{
		volume:     100,
		status:     "Idle",
		sourceLang: sourceLang,
		targetLang: targetLang,
		controls:   controls,
	}
}

// Run creates the TUI program
func Run(controls *Controls, sourceLang, targetLang string) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(controls, sourceLang, targetLang), tea.WithAltScreen())
	return p, nil
}
