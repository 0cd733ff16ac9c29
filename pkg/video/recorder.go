// ABOUTME: Full-session video recording abstraction
// ABOUTME: Defines the Recorder interface and container MIME preference probing
package video

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// PreferredMIMEs lists recording container types in descending preference
var PreferredMIMEs = []string{
	"video/webm;codecs=vp9",
	"video/webm;codecs=vp8",
	"video/webm",
}

// Recording describes a finished recording on disk
type Recording struct {
	Path string
	MIME string
	Size int64
}

// Recorder captures the whole session to a file
type Recorder interface {
	// Start begins recording; it returns once recording is underway
	Start(ctx context.Context) error
	// Stop finalizes the recording and returns it
	Stop(ctx context.Context) (*Recording, error)
}

// PickSupportedMIME returns the first candidate accepted by supported.
// An empty candidate ends the search.
func PickSupportedMIME(candidates []string, supported func(string) bool) string {
	for _, m := range candidates {
		if m == "" {
			return ""
		}
		if supported(m) {
			return m
		}
	}
	return ""
}

// FileRecorder stands in for a live recorder by reporting an existing file
type FileRecorder struct {
	path    string
	started bool
}

// NewFileRecorder creates a recorder that yields path on Stop
func NewFileRecorder(path string) *FileRecorder {
	return &FileRecorder{path: path}
}

// Start checks that the file exists
func (r *FileRecorder) Start(ctx context.Context) error {
	if _, err := os.Stat(r.path); err != nil {
		return fmt.Errorf("recording file unavailable: %w", err)
	}
	r.started = true
	return nil
}

// Stop returns the file as the session recording
func (r *FileRecorder) Stop(ctx context.Context) (*Recording, error) {
	if !r.started {
		return nil, fmt.Errorf("recorder not started")
	}
	r.started = false
	return statRecording(r.path, mimeForPath(r.path))
}

// statRecording builds a Recording for a finished file
func statRecording(path, mimeType string) (*Recording, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("recording missing: %w", err)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("recording %s is empty", path)
	}
	return &Recording{Path: path, MIME: mimeType, Size: info.Size()}, nil
}

// mimeForPath guesses a container type from the file extension
func mimeForPath(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".webm":
		return "video/webm"
	case ".mp4":
		return "video/mp4"
	case ".mkv":
		return "video/x-matroska"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}
