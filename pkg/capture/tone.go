// ABOUTME: Tone generator capture source
// ABOUTME: Generates a sine tone or silence for a fixed duration
package capture

import (
	"context"
	"fmt"
	"math"
	"time"
)

// ToneConfig describes a generated signal. A zero Frequency yields silence.
type ToneConfig struct {
	SampleRate int
	Frequency  float64
	Amplitude  float64
	Duration   time.Duration
	Realtime   bool
}

// ToneSource generates a test signal
type ToneSource struct {
	config ToneConfig
}

// NewToneSource creates a tone source, defaulting to 48kHz at half amplitude
func NewToneSource(config ToneConfig) *ToneSource {
	if config.SampleRate <= 0 {
		config.SampleRate = 48000
	}
	if config.Amplitude == 0 {
		config.Amplitude = 0.5
	}
	return &ToneSource{config: config}
}

// NewSilenceSource creates a source of digital silence lasting d
func NewSilenceSource(sampleRate int, d time.Duration) *ToneSource {
	return NewToneSource(ToneConfig{SampleRate: sampleRate, Duration: d})
}

// Open validates the configuration
func (s *ToneSource) Open() error {
	if s.config.Duration <= 0 {
		return fmt.Errorf("tone duration must be positive, got %v", s.config.Duration)
	}
	return nil
}

// SampleRate returns the configured rate
func (s *ToneSource) SampleRate() int {
	return s.config.SampleRate
}

// Samples returns the number of samples the source produces
func (s *ToneSource) Samples() int {
	return int(s.config.Duration * time.Duration(s.config.SampleRate) / time.Second)
}

// Run delivers the generated signal in BlockSize blocks
func (s *ToneSource) Run(ctx context.Context, out chan<- []float32) error {
	samples := make([]float32, s.Samples())
	if s.config.Frequency > 0 {
		for i := range samples {
			t := float64(i) / float64(s.config.SampleRate)
			samples[i] = float32(s.config.Amplitude * math.Sin(2*math.Pi*s.config.Frequency*t))
		}
	}
	return emit(ctx, out, samples, s.config.SampleRate, s.config.Realtime)
}

// Close is a no-op
func (s *ToneSource) Close() error { return nil }
