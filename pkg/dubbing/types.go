// ABOUTME: Request and response types for the dubbing backend API
// ABOUTME: Mirrors the JSON bodies of the session, chunk and video endpoints
package dubbing

import (
	"encoding/base64"
	"fmt"

	"github.com/livedub/livedub-go/pkg/audio"
)

// StartResponse is returned by /api/session/start
type StartResponse struct {
	SessionID string `json:"session_id"`
}

// StopResponse is returned by /api/session/stop
type StopResponse struct {
	OK bool `json:"ok"`
}

// ChunkRequest carries one clip to /api/chunk
type ChunkRequest struct {
	Clip       audio.Clip
	ClientTS   int64 // milliseconds since the Unix epoch
	SourceLang string
	TargetLang string
	SessionID  string
}

// ChunkResponse is returned by /api/chunk
type ChunkResponse struct {
	Text           string `json:"text"`
	TranslatedText string `json:"translated_text"`
	AudioB64       string `json:"audio_b64,omitempty"`
	MIME           string `json:"mime,omitempty"`
	ClientTS       int64  `json:"client_ts"`
}

// HasAudio reports whether the backend returned any dubbed audio
func (r *ChunkResponse) HasAudio() bool {
	return r != nil && r.AudioB64 != ""
}

// DubbedAudio decodes the base64 payload
func (r *ChunkResponse) DubbedAudio() ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(r.AudioB64)
	if err != nil {
		return nil, fmt.Errorf("invalid audio_b64 payload: %w", err)
	}
	return data, nil
}

// UploadResponse is returned by /api/video/upload
type UploadResponse struct {
	Saved string `json:"saved,omitempty"`
	URL   string `json:"url,omitempty"`
}

// RenderResponse is returned by /api/video/render. URLs are server-relative.
type RenderResponse struct {
	FinalPath string `json:"final_path,omitempty"`
	SRTPath   string `json:"srt_path,omitempty"`
	FinalURL  string `json:"final_url,omitempty"`
	SRTURL    string `json:"srt_url,omitempty"`
}

// TranslateHealth is the provider diagnostic from /api/health/translate
type TranslateHealth map[string]ProviderHealth

// ProviderHealth describes a single translation provider
type ProviderHealth struct {
	OK           bool   `json:"ok"`
	Available    *bool  `json:"available,omitempty"`
	URLs         string `json:"urls,omitempty"`
	APIKeyMasked string `json:"api_key_masked,omitempty"`
}

// Healthy reports whether any provider answered
func (h TranslateHealth) Healthy() bool {
	for _, p := range h {
		if p.OK {
			return true
		}
	}
	return false
}
