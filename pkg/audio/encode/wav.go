// ABOUTME: WAV clip encoder
// ABOUTME: Encodes mono float32 samples into a 44-byte header RIFF/WAVE file
package encode

import (
	"encoding/binary"

	"github.com/livedub/livedub-go/pkg/audio"
)

const (
	// WAVHeaderSize is the fixed size of the canonical RIFF/WAVE header
	WAVHeaderSize = 44

	// MIMEWAV is the MIME type attached to encoded clips
	MIMEWAV = "audio/wav"

	wavChannels      = 1
	wavBitsPerSample = 16
	wavBytesPerFrame = wavChannels * wavBitsPerSample / 8
)

// WAVEncoder encodes mono 16-bit PCM WAV files
type WAVEncoder struct{}

// NewWAV creates a WAV encoder
func NewWAV() Encoder {
	return WAVEncoder{}
}

// Encode implements Encoder; it never fails
func (WAVEncoder) Encode(samples []float32, sampleRate int) ([]byte, error) {
	return EncodeWAV(samples, sampleRate), nil
}

// MIME implements Encoder
func (WAVEncoder) MIME() string { return MIMEWAV }

// EncodeWAV quantizes samples to 16-bit PCM and wraps them in a WAV header.
// The result is always WAVHeaderSize + 2*len(samples) bytes long.
func EncodeWAV(samples []float32, sampleRate int) []byte {
	dataSize := len(samples) * wavBytesPerFrame
	buf := make([]byte, WAVHeaderSize+dataSize)
	le := binary.LittleEndian

	// RIFF chunk
	copy(buf[0:4], "RIFF")
	le.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	le.PutUint32(buf[16:20], 16)
	le.PutUint16(buf[20:22], 1) // linear PCM
	le.PutUint16(buf[22:24], wavChannels)
	le.PutUint32(buf[24:28], uint32(sampleRate))
	le.PutUint32(buf[28:32], uint32(sampleRate*wavBytesPerFrame))
	le.PutUint16(buf[32:34], wavBytesPerFrame)
	le.PutUint16(buf[34:36], wavBitsPerSample)

	// data sub-chunk
	copy(buf[36:40], "data")
	le.PutUint32(buf[40:44], uint32(dataSize))

	for i, s := range samples {
		le.PutUint16(buf[WAVHeaderSize+i*2:], uint16(audio.QuantizeSample(s)))
	}

	return buf
}

// NewClip encodes samples into an immutable WAV clip
func NewClip(samples []float32, sampleRate int) audio.Clip {
	return audio.Clip{
		Data:       EncodeWAV(samples, sampleRate),
		MIME:       MIMEWAV,
		SampleRate: sampleRate,
		Samples:    len(samples),
	}
}
