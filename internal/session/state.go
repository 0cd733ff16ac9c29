// ABOUTME: Session lifecycle states and user-visible status strings
// ABOUTME: A single transition function enforces Idle -> Starting -> Running -> Stopping -> Idle
package session

import "fmt"

// State is the capture session lifecycle state
type State int

const (
	// Idle means no capture session exists
	Idle State = iota
	// Starting means the backend session and capture are being acquired
	Starting
	// Running means clips are being captured and submitted
	Running
	// Stopping means capture has ended and outputs are being finalized
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Starting:
		return "starting"
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Status strings shown to the user
const (
	StatusIdle          = "Idle"
	StatusRunning       = "Running"
	StatusErrorStarting = "Error starting"
	StatusTranslating   = "Translating..."
	StatusNoSpeech      = "No speech detected"
	StatusEmptyAudio    = "Empty audio"
	StatusReady         = "Ready"
	StatusErrorChunk    = "Error (chunk)"
	StatusStopping      = "Stopping..."
	StatusUploading     = "Uploading video..."
	StatusRendering     = "Rendering final video (merge audio + captions)..."
	StatusFinalReady    = "Final video ready!"
	StatusStopped       = "Stopped"
	StatusErrorStopping = "Error stopping"
)

// StatusSavedRaw formats the status for a stop that only saved the raw video
func StatusSavedRaw(saved string) string {
	return "Saved raw video: " + saved
}

// validTransitions lists every allowed lifecycle move
var validTransitions = map[State][]State{
	Idle:     {Starting},
	Starting: {Running, Idle},
	Running:  {Stopping},
	Stopping: {Idle},
}

// transition validates and applies a state change.
// Caller must hold s.mu.
func (s *Session) transition(from, to State) error {
	if s.state != from {
		return fmt.Errorf("invalid session transition %s -> %s: current state is %s", from, to, s.state)
	}
	for _, next := range validTransitions[from] {
		if next == to {
			s.state = to
			s.config.Metrics.SetSessionState(int(to))
			return nil
		}
	}
	return fmt.Errorf("invalid session transition %s -> %s", from, to)
}
