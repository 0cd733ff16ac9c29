// ABOUTME: Decoder interface definition and MIME dispatch
// ABOUTME: Common interface for all whole-file audio decoders
package decode

import (
	"fmt"
	"mime"
	"strings"

	"github.com/livedub/livedub-go/pkg/audio"
)

// Decoder decodes a complete encoded audio file to PCM
type Decoder interface {
	// Decode converts encoded audio data to interleaved 16-bit PCM
	Decode(data []byte) (audio.PCM, error)
}

// ForMIME returns the decoder registered for a MIME type.
// Parameters such as "; codecs=opus" are ignored.
func ForMIME(mimeType string) (Decoder, error) {
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		mediaType = strings.ToLower(strings.TrimSpace(mimeType))
	}

	switch mediaType {
	case "audio/mpeg", "audio/mp3", "audio/mpeg3":
		return NewMP3(), nil
	case "audio/wav", "audio/wave", "audio/x-wav", "audio/vnd.wave":
		return NewWAV(), nil
	case "audio/flac", "audio/x-flac":
		return NewFLAC(), nil
	case "audio/ogg", "audio/opus":
		return NewOpus(), nil
	default:
		return nil, fmt.Errorf("unsupported audio type: %q", mimeType)
	}
}

// ForExtension returns the decoder for a file extension such as ".mp3"
func ForExtension(ext string) (Decoder, error) {
	switch strings.ToLower(ext) {
	case ".mp3":
		return NewMP3(), nil
	case ".wav", ".wave":
		return NewWAV(), nil
	case ".flac":
		return NewFLAC(), nil
	case ".ogg", ".opus":
		return NewOpus(), nil
	default:
		return nil, fmt.Errorf("unsupported audio format: %s (supported: .mp3, .wav, .flac, .ogg, .opus)", ext)
	}
}
