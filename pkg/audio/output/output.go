// ABOUTME: Audio output interface definition
// ABOUTME: Common interface, gain control and sample preparation shared by playback backends
package output

import (
	"context"
	"encoding/binary"
	"log"
	"sync"

	"github.com/livedub/livedub-go/pkg/audio"
	"github.com/livedub/livedub-go/pkg/audio/resample"
)

// Output represents an audio output device
type Output interface {
	// Open initializes the output device
	Open(sampleRate, channels int) error

	// Play renders pcm and returns once it has finished playing or ctx is done
	Play(ctx context.Context, pcm audio.PCM) error

	// SetVolume sets the volume (0-100)
	SetVolume(volume int)

	// SetMuted sets mute state
	SetMuted(muted bool)

	// Close releases output resources
	Close() error
}

// Playback backend names
const (
	BackendOto   = "oto"
	BackendMalgo = "malgo"
)

// New returns the named backend, defaulting to oto
func New(backend string) Output {
	if backend == BackendMalgo {
		return NewMalgo()
	}
	return NewOto()
}

// gain holds the volume and mute state. It is applied when a clip is
// prepared, so a change takes effect from the next clip.
type gain struct {
	mu     sync.Mutex
	volume int
	muted  bool
}

// SetVolume sets the volume (0-100)
func (g *gain) SetVolume(volume int) {
	g.mu.Lock()
	g.volume = clampVolume(volume)
	g.mu.Unlock()
	log.Printf("Volume set to %d", volume)
}

// SetMuted sets mute state
func (g *gain) SetMuted(muted bool) {
	g.mu.Lock()
	g.muted = muted
	g.mu.Unlock()
	log.Printf("Muted: %v", muted)
}

// Volume returns the current volume
func (g *gain) Volume() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.volume
}

// Muted returns the mute state
func (g *gain) Muted() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.muted
}

func (g *gain) multiplier() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return volumeMultiplier(g.volume, g.muted)
}

// prepare converts pcm to the device rate and channel layout and scales it
func prepare(pcm audio.PCM, sampleRate, channels int, multiplier float64) []int16 {
	pcm = resample.Convert(pcm, sampleRate)
	samples := audio.ConvertChannels(pcm.Samples, pcm.Channels, channels)
	return scale(samples, multiplier)
}

// scale multiplies samples into a new slice, saturating at the int16 range
func scale(samples []int16, multiplier float64) []int16 {
	out := make([]int16, len(samples))
	if multiplier == 0 {
		return out
	}
	for i, s := range samples {
		v := int32(float64(s) * multiplier)
		out[i] = int16(max(-32768, min(32767, v)))
	}
	return out
}

// volumeMultiplier maps a 0-100 volume to a linear gain
func volumeMultiplier(volume int, muted bool) float64 {
	if muted {
		return 0
	}
	return float64(volume) / 100
}

// clampVolume bounds a volume to 0-100
func clampVolume(volume int) int {
	return max(0, min(100, volume))
}

// putSamples serializes samples as little-endian bytes into dst
func putSamples(dst []byte, samples []int16) {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(dst[i*2:], uint16(s))
	}
}

// int16ToBytes serializes samples as little-endian bytes
func int16ToBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	putSamples(out, samples)
	return out
}
