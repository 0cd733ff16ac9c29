// ABOUTME: Audio type definitions
// ABOUTME: Defines formats, encoded clips, decoded PCM and sample conversions
package audio

import (
	"math"
	"time"
)

const (
	// MaxInt16Scale scales non-negative samples so that +1.0 maps to 32767
	MaxInt16Scale = 0x7FFF
	// MinInt16Scale scales negative samples so that -1.0 maps to -32768
	MinInt16Scale = 0x8000
)

// Format describes audio stream format
type Format struct {
	Codec      string
	SampleRate int
	Channels   int
	BitDepth   int
}

// Clip is an immutable, self-contained encoded audio file
type Clip struct {
	Data       []byte
	MIME       string
	SampleRate int
	Samples    int // number of mono samples encoded in Data
}

// Duration returns the playback length of the clip
func (c Clip) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Samples) * time.Second / time.Duration(c.SampleRate)
}

// PCM holds decoded, interleaved signed 16-bit audio
type PCM struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Frames returns the number of sample frames (samples per channel)
func (p PCM) Frames() int {
	if p.Channels <= 0 {
		return 0
	}
	return len(p.Samples) / p.Channels
}

// Duration returns the playback length of the PCM data
func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(p.Frames()) * time.Second / time.Duration(p.SampleRate)
}

// QuantizeSample converts a float sample to 16-bit linear PCM.
// The input is clamped to [-1, 1]; NaN is treated as silence.
func QuantizeSample(s float32) int16 {
	v := float64(s)
	if math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	if v < 0 {
		return int16(v * MinInt16Scale)
	}
	return int16(v * MaxInt16Scale)
}

// SampleToFloat converts a 16-bit sample back to the [-1, 1] range
func SampleToFloat(s int16) float32 {
	if s < 0 {
		return float32(s) / MinInt16Scale
	}
	return float32(s) / MaxInt16Scale
}

// MergeBlocks concatenates captured blocks into one contiguous slice.
// total is the expected combined length; it only sizes the allocation.
func MergeBlocks(blocks [][]float32, total int) []float32 {
	out := make([]float32, 0, total)
	for _, b := range blocks {
		out = append(out, b...)
	}
	return out
}

// DownmixInt16 averages interleaved samples down to a single channel
func DownmixInt16(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	out := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int32
		for ch := 0; ch < channels; ch++ {
			sum += int32(samples[i*channels+ch])
		}
		out[i] = int16(sum / int32(channels))
	}
	return out
}

// ConvertChannels maps interleaved PCM between mono and multi-channel layouts
func ConvertChannels(samples []int16, from, to int) []int16 {
	if from == to || from <= 0 || to <= 0 {
		return samples
	}
	mono := DownmixInt16(samples, from)
	if to == 1 {
		return mono
	}
	out := make([]int16, len(mono)*to)
	for i, s := range mono {
		for ch := 0; ch < to; ch++ {
			out[i*to+ch] = s
		}
	}
	return out
}
