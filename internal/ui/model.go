// ABOUTME: Bubbletea model for the dubbing TUI
// ABOUTME: Defines session display state and key handling
package ui

import (
	"fmt"
	"strings"

	"github.com/livedub/livedub-go/internal/version"
	"github.com/livedub/livedub-go/pkg/dubbing"
	tea "github.com/charmbracelet/bubbletea"
)

// Model represents the TUI state
type Model struct {
	// Backend
	backendURL string

	// Session
	status     string
	running    bool
	sessionID  string
	sourceLang string
	targetLang string

	// Latest result
	text        string
	translation string

	// Outputs
	finalURL string
	srtURL   string
	rawURL   string
	saved    []string

	// Playback
	volume int
	muted  bool

	// Stats
	clipsSent   int64
	dubbed      int64
	played      int64
	queueLength int
	failed      int64

	// Debug
	showDebug  bool
	goroutines int
	memAlloc   uint64

	controls *Controls

	// Dimensions
	width  int
	height int
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := ""
	s += m.renderHeader()
	s += m.renderTranscript()
	s += m.renderOutputs()
	s += m.renderControls()
	s += m.renderStats()

	if m.showDebug {
		s += m.renderDebug()
	}

	s += m.renderHelp()

	return s
}

// renderHeader renders backend and session status
func (m Model) renderHeader() string {
	title := fmt.Sprintf("─ %s %s ", version.Product, version.Version)
	session := "none"
	if m.sessionID != "" {
		session = m.sessionID
	}

	return fmt.Sprintf("┌%s%s┐\n", title, strings.Repeat("─", 54-len([]rune(title)))) +
		fmt.Sprintf("│ Backend: %-43s │\n", truncate(m.backendURL, 43)) +
		fmt.Sprintf("│ Status:  %-43s │\n", truncate(m.status, 43)) +
		fmt.Sprintf("│ Session: %-43s │\n", truncate(session, 43)) +
		fmt.Sprintf("│ Languages: %-41s │\n", fmt.Sprintf("%s → %s",
			dubbing.LanguageLabel(m.sourceLang), dubbing.LanguageLabel(m.targetLang))) +
		"├──────────────────────────────────────────────────────┤\n"
}

// renderTranscript renders the last recognition and translation
func (m Model) renderTranscript() string {
	if m.text == "" && m.translation == "" {
		return "│ (no speech yet)                                      │\n"
	}

	return fmt.Sprintf("│ ASR:         %-39s │\n", truncate(m.text, 39)) +
		fmt.Sprintf("│ Translation: %-39s │\n", truncate(m.translation, 39))
}

// renderOutputs renders links from the last stopped session
func (m Model) renderOutputs() string {
	if m.finalURL == "" && m.srtURL == "" && m.rawURL == "" && len(m.saved) == 0 {
		return ""
	}

	s := "├──────────────────────────────────────────────────────┤\n"
	if m.finalURL != "" {
		s += fmt.Sprintf("│ Final video: %-39s │\n", truncate(m.finalURL, 39))
	}
	if m.srtURL != "" {
		s += fmt.Sprintf("│ Subtitles:   %-39s │\n", truncate(m.srtURL, 39))
	}
	if m.rawURL != "" {
		s += fmt.Sprintf("│ Raw video:   %-39s │\n", truncate(m.rawURL, 39))
	}
	for _, path := range m.saved {
		s += fmt.Sprintf("│ Saved:       %-39s │\n", truncate(path, 39))
	}
	return s
}

// renderControls renders volume and queue status
func (m Model) renderControls() string {
	muteIcon := ""
	if m.muted {
		muteIcon = " 🔇"
	}

	volumeBar := renderBar(m.volume, 100, 10)

	return fmt.Sprintf("│                                                      │\n"+
		"│ Volume: [%s] %d%%%s%-17s │\n"+
		"│ Queue:  %d waiting%-35s │\n",
		volumeBar, m.volume, muteIcon, "",
		m.queueLength, "")
}

// renderStats renders session statistics
func (m Model) renderStats() string {
	return fmt.Sprintf(`├──────────────────────────────────────────────────────┤
│ Stats:  Sent: %d  Dubbed: %d  Played: %d  Failed: %d%-3s │
│                                                      │
`, m.clipsSent, m.dubbed, m.played, m.failed, "")
}

// renderHelp renders keyboard shortcuts
func (m Model) renderHelp() string {
	return `│ s:Start/Stop  l/t:Langs  ↑/↓:Vol  m:Mute  q:Quit     │
└──────────────────────────────────────────────────────┘
`
}

// renderDebug renders runtime information
func (m Model) renderDebug() string {
	return fmt.Sprintf("│ DEBUG:                                               │\n"+
		"│   Goroutines: %-38d │\n"+
		"│   Heap: %-44s │\n",
		m.goroutines, fmt.Sprintf("%.1f MB", float64(m.memAlloc)/(1024*1024)))
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.controls.quit()
		return m, tea.Quit
	case "s", " ":
		if m.running {
			m.controls.send(Action{Kind: ActionStop})
		} else {
			m.controls.send(Action{Kind: ActionStart})
		}
	case "l":
		// Languages are fixed while a session runs
		if !m.running {
			m.sourceLang = dubbing.NextLanguage(m.sourceLang)
			m.controls.send(Action{Kind: ActionLanguages, SourceLang: m.sourceLang, TargetLang: m.targetLang})
		}
	case "t":
		if !m.running {
			m.targetLang = dubbing.NextLanguage(m.targetLang)
			m.controls.send(Action{Kind: ActionLanguages, SourceLang: m.sourceLang, TargetLang: m.targetLang})
		}
	case "up":
		if m.volume < 100 {
			m.volume += 5
			if m.volume > 100 {
				m.volume = 100
			}
			m.controls.sendVolume(m.volume, m.muted)
		}
	case "down":
		if m.volume > 0 {
			m.volume -= 5
			if m.volume < 0 {
				m.volume = 0
			}
			m.controls.sendVolume(m.volume, m.muted)
		}
	case "m":
		m.muted = !m.muted
		m.controls.sendVolume(m.volume, m.muted)
	case "d":
		m.showDebug = !m.showDebug
	}

	return m, nil
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.BackendURL != "" {
		m.backendURL = msg.BackendURL
	}
	if msg.Status != "" {
		m.status = msg.Status
	}
	if msg.Running != nil {
		m.running = *msg.Running
		if !m.running {
			m.sessionID = ""
		}
	}
	if msg.SessionID != "" {
		m.sessionID = msg.SessionID
	}
	if msg.SourceLang != "" {
		m.sourceLang = msg.SourceLang
	}
	if msg.TargetLang != "" {
		m.targetLang = msg.TargetLang
	}
	if msg.Transcript != nil {
		m.text = msg.Transcript.Text
		m.translation = msg.Transcript.Translation
	}
	if msg.Links != nil {
		m.finalURL = msg.Links.FinalURL
		m.srtURL = msg.Links.SRTURL
		m.rawURL = msg.Links.RawURL
		m.saved = nil
	}
	if msg.SavedPath != "" {
		m.saved = append(m.saved, msg.SavedPath)
	}
	if msg.Volume != 0 {
		m.volume = msg.Volume
	}
	if msg.ClipsSent != 0 || msg.Played != 0 || msg.Dubbed != 0 {
		m.clipsSent = msg.ClipsSent
		m.dubbed = msg.Dubbed
		m.played = msg.Played
		m.queueLength = msg.QueueLength
		m.failed = msg.Failed
	}
	if msg.Goroutines != 0 {
		m.goroutines = msg.Goroutines
		m.memAlloc = msg.MemAlloc
	}
}

// TranscriptLine is the text shown for the last chunk
type TranscriptLine struct {
	Text        string
	Translation string
}

// OutputLinks are the session output URLs
type OutputLinks struct {
	FinalURL string
	SRTURL   string
	RawURL   string
}

// StatusMsg updates TUI state. Zero fields leave the display unchanged.
type StatusMsg struct {
	BackendURL  string
	Status      string
	Running     *bool
	SessionID   string
	SourceLang  string
	TargetLang  string
	Transcript  *TranscriptLine
	Links       *OutputLinks
	SavedPath   string
	Volume      int
	ClipsSent   int64
	Dubbed      int64
	Played      int64
	QueueLength int
	Failed      int64
	Goroutines  int
	MemAlloc    uint64
}

// Utility functions
func renderBar(value, max, width int) string {
	filled := (value * width) / max
	bar := ""
	for i := 0; i < width; i++ {
		if i < filled {
			bar += "█"
		} else {
			bar += "░"
		}
	}
	return bar
}

func truncate(s string, length int) string {
	r := []rune(s)
	if len(r) <= length {
		return s
	}
	return string(r[:length-3]) + "..."
}
