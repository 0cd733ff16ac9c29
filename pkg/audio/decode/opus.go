// ABOUTME: Ogg Opus audio decoder
// ABOUTME: Decodes Ogg Opus files to 48kHz 16-bit PCM via libopusfile
package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/livedub/livedub-go/pkg/audio"
	"gopkg.in/hraban/opus.v2"
)

// opusSampleRate is the fixed output rate of libopusfile
const opusSampleRate = 48000

// OpusDecoder decodes Ogg Opus audio. Speech synthesis output is mono,
// so the stream is read as a single channel.
type OpusDecoder struct{}

// NewOpus creates a new Ogg Opus decoder
func NewOpus() Decoder {
	return OpusDecoder{}
}

// Decode converts Ogg Opus bytes to PCM
func (OpusDecoder) Decode(data []byte) (audio.PCM, error) {
	if len(data) == 0 {
		return audio.PCM{}, fmt.Errorf("empty opus payload")
	}

	stream, err := opus.NewStream(bytes.NewReader(data))
	if err != nil {
		return audio.PCM{}, fmt.Errorf("failed to open opus stream: %w", err)
	}
	defer stream.Close()

	var samples []int16
	frame := make([]int16, 5760) // 120ms at 48kHz, the largest Opus frame
	for {
		n, err := stream.Read(frame)
		if err == io.EOF {
			break
		}
		if err != nil {
			return audio.PCM{}, fmt.Errorf("opus decode failed: %w", err)
		}
		samples = append(samples, frame[:n]...)
	}

	return audio.PCM{
		Samples:    samples,
		SampleRate: opusSampleRate,
		Channels:   1,
	}, nil
}
