// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MP3 files to interleaved 16-bit stereo PCM
package decode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/livedub/livedub-go/pkg/audio"
)

// MP3Decoder decodes MP3 audio
type MP3Decoder struct{}

// NewMP3 creates a new MP3 decoder
func NewMP3() Decoder {
	return MP3Decoder{}
}

// Decode converts MP3 bytes to PCM. go-mp3 always produces 16-bit stereo.
func (MP3Decoder) Decode(data []byte) (audio.PCM, error) {
	if len(data) == 0 {
		return audio.PCM{}, fmt.Errorf("empty mp3 payload")
	}

	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return audio.PCM{}, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	raw, err := io.ReadAll(decoder)
	if err != nil {
		return audio.PCM{}, fmt.Errorf("mp3 decode error: %w", err)
	}

	numSamples := len(raw) / 2
	samples := make([]int16, numSamples)
	for i := 0; i < numSamples; i++ {
		samples[i] = int16(binary.LittleEndian.Uint16(raw[i*2:]))
	}

	return audio.PCM{
		Samples:    samples,
		SampleRate: decoder.SampleRate(),
		Channels:   2,
	}, nil
}
