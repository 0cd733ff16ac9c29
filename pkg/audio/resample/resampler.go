// ABOUTME: Linear interpolation sample rate conversion for whole clips
// ABOUTME: Dubbed clips arrive at the backend's rate and are converted to the device rate
package resample

import (
	"fmt"

	"github.com/livedub/livedub-go/pkg/audio"
)

// Converter maps interleaved int16 frames from one sample rate to another.
// Source positions are tracked as exact fractions of the input rate so long
// clips do not drift.
type Converter struct {
	from     int
	to       int
	channels int
}

// NewConverter returns a converter between two positive rates
func NewConverter(from, to, channels int) (*Converter, error) {
	if from <= 0 || to <= 0 {
		return nil, fmt.Errorf("invalid sample rates %d -> %d", from, to)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channel count %d", channels)
	}
	return &Converter{from: from, to: to, channels: channels}, nil
}

// Frames returns how many output frames n input frames produce
func (c *Converter) Frames(n int) int {
	if n <= 0 {
		return 0
	}
	return int((int64(n)*int64(c.to) + int64(c.from) - 1) / int64(c.from))
}

// Apply converts a buffer of interleaved samples. A trailing partial frame
// is ignored and the final input frame is held rather than extrapolated.
func (c *Converter) Apply(in []int16) []int16 {
	frames := len(in) / c.channels
	if frames == 0 {
		return nil
	}
	if c.from == c.to {
		out := make([]int16, frames*c.channels)
		copy(out, in)
		return out
	}

	outFrames := c.Frames(frames)
	out := make([]int16, outFrames*c.channels)
	last := frames - 1

	for i := 0; i < outFrames; i++ {
		// Source position is i*from/to input frames
		num := int64(i) * int64(c.from)
		idx := int(num / int64(c.to))
		frac := float64(num%int64(c.to)) / float64(c.to)

		a := min(idx, last) * c.channels
		b := min(idx+1, last) * c.channels
		for ch := 0; ch < c.channels; ch++ {
			s0, s1 := float64(in[a+ch]), float64(in[b+ch])
			out[i*c.channels+ch] = int16(s0 + (s1-s0)*frac)
		}
	}
	return out
}

// Convert resamples a whole PCM buffer to the target rate.
// The input is returned unchanged if the rates already match or the
// buffer cannot be converted.
func Convert(pcm audio.PCM, targetRate int) audio.PCM {
	if pcm.SampleRate == targetRate || len(pcm.Samples) == 0 {
		return pcm
	}

	c, err := NewConverter(pcm.SampleRate, targetRate, pcm.Channels)
	if err != nil {
		return pcm
	}
	return audio.PCM{
		Samples:    c.Apply(pcm.Samples),
		SampleRate: targetRate,
		Channels:   pcm.Channels,
	}
}
