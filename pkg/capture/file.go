// ABOUTME: File-backed capture source for dubbing pre-recorded audio
// ABOUTME: Supports WAV, MP3 and FLAC files with optional real-time pacing
package capture

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/livedub/livedub-go/pkg/audio"
	"github.com/livedub/livedub-go/pkg/audio/decode"
)

// FileSource replays a decoded audio file as capture blocks
type FileSource struct {
	path     string
	realtime bool

	samples    []float32
	sampleRate int
}

// NewFileSource creates a source for path. With realtime set, blocks are
// paced at the file's own rate as a microphone would deliver them.
func NewFileSource(path string, realtime bool) *FileSource {
	return &FileSource{
		path:     path,
		realtime: realtime,
	}
}

// Open decodes the whole file to mono float samples
func (s *FileSource) Open() error {
	if _, err := os.Stat(s.path); os.IsNotExist(err) {
		return fmt.Errorf("audio file not found: %s", s.path)
	}

	decoder, err := decode.ForExtension(strings.ToLower(filepath.Ext(s.path)))
	if err != nil {
		return err
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return fmt.Errorf("failed to read audio file: %w", err)
	}

	pcm, err := decoder.Decode(data)
	if err != nil {
		return err
	}

	mono := audio.DownmixInt16(pcm.Samples, pcm.Channels)
	s.samples = make([]float32, len(mono))
	for i, v := range mono {
		s.samples[i] = audio.SampleToFloat(v)
	}
	s.sampleRate = pcm.SampleRate

	title := strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path))
	log.Printf("Loaded audio file: %s (%dHz, %d channels, %v)",
		title, pcm.SampleRate, pcm.Channels, pcm.Duration())
	return nil
}

// SampleRate returns the file's sample rate
func (s *FileSource) SampleRate() int {
	return s.sampleRate
}

// Run delivers the file in BlockSize blocks and returns when it is exhausted
func (s *FileSource) Run(ctx context.Context, out chan<- []float32) error {
	if s.sampleRate == 0 {
		return fmt.Errorf("file source not opened")
	}
	return emit(ctx, out, s.samples, s.sampleRate, s.realtime)
}

// Close releases the decoded samples
func (s *FileSource) Close() error {
	s.samples = nil
	return nil
}

// emit sends samples as copied blocks, optionally pacing them in real time
func emit(ctx context.Context, out chan<- []float32, samples []float32, sampleRate int, realtime bool) error {
	var ticker *time.Ticker
	if realtime {
		ticker = time.NewTicker(time.Duration(BlockSize) * time.Second / time.Duration(sampleRate))
		defer ticker.Stop()
	}

	for offset := 0; offset < len(samples); offset += BlockSize {
		end := offset + BlockSize
		if end > len(samples) {
			end = len(samples)
		}
		block := make([]float32, end-offset)
		copy(block, samples[offset:end])

		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
				return nil
			}
		}

		select {
		case out <- block:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}
