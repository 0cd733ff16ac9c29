// ABOUTME: Player that decodes dubbed audio and renders it on an output device
// ABOUTME: Selects a decoder from the item MIME type
package playback

import (
	"context"
	"fmt"

	"github.com/livedub/livedub-go/pkg/audio/decode"
	"github.com/livedub/livedub-go/pkg/audio/output"
)

// DefaultMIME is assumed when the backend omits the audio type
const DefaultMIME = "audio/mpeg"

// DecodingPlayer decodes items and plays them on a shared output
type DecodingPlayer struct {
	out output.Output
}

// NewDecodingPlayer opens out at the given format and wraps it
func NewDecodingPlayer(out output.Output, sampleRate, channels int) (*DecodingPlayer, error) {
	if err := out.Open(sampleRate, channels); err != nil {
		return nil, fmt.Errorf("failed to open audio output: %w", err)
	}
	return &DecodingPlayer{out: out}, nil
}

// Play decodes item and blocks until the output has rendered it
func (p *DecodingPlayer) Play(ctx context.Context, item *Item) error {
	mimeType := item.MIME
	if mimeType == "" {
		mimeType = DefaultMIME
	}

	dec, err := decode.ForMIME(mimeType)
	if err != nil {
		return err
	}

	pcm, err := dec.Decode(item.Data)
	if err != nil {
		return fmt.Errorf("failed to decode %s: %w", mimeType, err)
	}

	return p.out.Play(ctx, pcm)
}

// Output returns the underlying output for volume control
func (p *DecodingPlayer) Output() output.Output {
	return p.out
}
