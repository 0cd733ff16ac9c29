// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes whole FLAC files to interleaved 16-bit PCM using mewkiz/flac
package decode

import (
	"bytes"
	"fmt"
	"io"

	"github.com/livedub/livedub-go/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLACDecoder decodes FLAC audio
type FLACDecoder struct{}

// NewFLAC creates a new FLAC decoder
func NewFLAC() Decoder {
	return FLACDecoder{}
}

// Decode converts FLAC bytes to PCM
func (FLACDecoder) Decode(data []byte) (audio.PCM, error) {
	stream, err := flac.New(bytes.NewReader(data))
	if err != nil {
		return audio.PCM{}, fmt.Errorf("failed to decode FLAC: %w", err)
	}
	defer stream.Close()

	channels := int(stream.Info.NChannels)
	bitDepth := int(stream.Info.BitsPerSample)
	samples := make([]int16, 0, int(stream.Info.NSamples)*channels)

	for {
		frame, err := stream.ParseNext()
		if err == io.EOF {
			break
		}
		if err != nil {
			return audio.PCM{}, fmt.Errorf("flac frame error: %w", err)
		}

		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < channels; ch++ {
				samples = append(samples, scaleToInt16(frame.Subframes[ch].Samples[i], bitDepth))
			}
		}
	}

	return audio.PCM{
		Samples:    samples,
		SampleRate: int(stream.Info.SampleRate),
		Channels:   channels,
	}, nil
}

// scaleToInt16 shifts a sample of the given bit depth into 16-bit range
func scaleToInt16(sample int32, bitDepth int) int16 {
	shift := bitDepth - 16
	if shift > 0 {
		return int16(sample >> shift)
	}
	return int16(sample << -shift)
}
