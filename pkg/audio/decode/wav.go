// ABOUTME: WAV audio decoder
// ABOUTME: Parses RIFF/WAVE chunks and decodes 16-bit or float PCM data
package decode

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/livedub/livedub-go/pkg/audio"
)

const (
	wavFormatPCM   = 1
	wavFormatFloat = 3
)

// wavFormat mirrors the fmt sub-chunk fields we need
type wavFormat struct {
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	BitsPerSample uint16
}

// WAVDecoder decodes RIFF/WAVE audio
type WAVDecoder struct{}

// NewWAV creates a new WAV decoder
func NewWAV() Decoder {
	return WAVDecoder{}
}

// Decode implements Decoder
func (WAVDecoder) Decode(data []byte) (audio.PCM, error) {
	return DecodeWAV(data)
}

// DecodeWAV walks the RIFF chunk list and decodes the data chunk.
// Unknown chunks (LIST, fact, ...) are skipped.
func DecodeWAV(data []byte) (audio.PCM, error) {
	if len(data) < 12 {
		return audio.PCM{}, fmt.Errorf("WAV data too short: need at least 12 bytes, got %d", len(data))
	}
	if string(data[0:4]) != "RIFF" {
		return audio.PCM{}, fmt.Errorf("invalid WAV file: missing RIFF header")
	}
	if string(data[8:12]) != "WAVE" {
		return audio.PCM{}, fmt.Errorf("invalid WAV file: missing WAVE format")
	}

	le := binary.LittleEndian
	var format *wavFormat
	pos := 12

	for pos+8 <= len(data) {
		id := string(data[pos : pos+4])
		size := int(le.Uint32(data[pos+4 : pos+8]))
		body := pos + 8
		end := body + size
		if end > len(data) {
			// Streaming writers sometimes leave the size unfinalized
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return audio.PCM{}, fmt.Errorf("invalid WAV file: fmt chunk too short")
			}
			format = &wavFormat{
				AudioFormat:   le.Uint16(data[body:]),
				NumChannels:   le.Uint16(data[body+2:]),
				SampleRate:    le.Uint32(data[body+4:]),
				BitsPerSample: le.Uint16(data[body+14:]),
			}
		case "data":
			if format == nil {
				return audio.PCM{}, fmt.Errorf("invalid WAV file: data chunk before fmt chunk")
			}
			return decodeWAVData(*format, data[body:end])
		}

		pos = body + size
		if size%2 == 1 {
			pos++ // chunks are word aligned
		}
	}

	return audio.PCM{}, fmt.Errorf("invalid WAV file: missing data chunk")
}

func decodeWAVData(f wavFormat, payload []byte) (audio.PCM, error) {
	if f.NumChannels == 0 {
		return audio.PCM{}, fmt.Errorf("invalid WAV file: zero channels")
	}
	if f.SampleRate == 0 {
		return audio.PCM{}, fmt.Errorf("invalid sample rate: 0")
	}

	le := binary.LittleEndian
	var samples []int16

	switch {
	case f.AudioFormat == wavFormatPCM && f.BitsPerSample == 16:
		samples = make([]int16, len(payload)/2)
		for i := range samples {
			samples[i] = int16(le.Uint16(payload[i*2:]))
		}
	case f.AudioFormat == wavFormatFloat && f.BitsPerSample == 32:
		samples = make([]int16, len(payload)/4)
		for i := range samples {
			samples[i] = audio.QuantizeSample(math.Float32frombits(le.Uint32(payload[i*4:])))
		}
	default:
		return audio.PCM{}, fmt.Errorf("unsupported WAV encoding: format=%d bits=%d (supported: 16-bit PCM, 32-bit float)",
			f.AudioFormat, f.BitsPerSample)
	}

	// Drop a trailing partial frame
	channels := int(f.NumChannels)
	samples = samples[:len(samples)-len(samples)%channels]

	return audio.PCM{
		Samples:    samples,
		SampleRate: int(f.SampleRate),
		Channels:   channels,
	}, nil
}
