// ABOUTME: Segmenter that turns a live sample stream into fixed-length clips
// ABOUTME: Flushes about two seconds of mono audio into a WAV clip per threshold crossing
package segment

import (
	"github.com/livedub/livedub-go/pkg/audio"
	"github.com/livedub/livedub-go/pkg/audio/encode"
)

// ClipSeconds is the amount of buffered audio that triggers a flush
const ClipSeconds = 2

// Segmenter accumulates sample blocks and emits a clip once the threshold
// is reached. It is not safe for concurrent use; one goroutine owns it.
type Segmenter struct {
	sampleRate int
	threshold  int

	blocks   [][]float32
	buffered int
}

// New creates a segmenter for audio captured at sampleRate
func New(sampleRate int) *Segmenter {
	return &Segmenter{
		sampleRate: sampleRate,
		threshold:  sampleRate * ClipSeconds,
	}
}

// SampleRate returns the capture rate clips are encoded at
func (s *Segmenter) SampleRate() int {
	return s.sampleRate
}

// Threshold returns the sample count that triggers a flush
func (s *Segmenter) Threshold() int {
	return s.threshold
}

// Push appends a copy of block. When the buffer reaches the threshold it is
// merged, reset and encoded, and the clip is returned with ok set.
func (s *Segmenter) Push(block []float32) (clip audio.Clip, ok bool) {
	if len(block) == 0 {
		return audio.Clip{}, false
	}

	owned := make([]float32, len(block))
	copy(owned, block)
	s.blocks = append(s.blocks, owned)
	s.buffered += len(owned)

	if s.buffered < s.threshold {
		return audio.Clip{}, false
	}

	merged := audio.MergeBlocks(s.blocks, s.buffered)
	s.blocks = nil
	s.buffered = 0

	return encode.NewClip(merged, s.sampleRate), true
}

// Buffered returns the number of samples waiting for the next flush
func (s *Segmenter) Buffered() int {
	return s.buffered
}

// Discard drops the partial buffer and returns how many samples were lost
func (s *Segmenter) Discard() int {
	n := s.buffered
	s.blocks = nil
	s.buffered = 0
	return n
}
