// ABOUTME: Capture source abstraction for live and generated audio
// ABOUTME: Sources push fixed-size mono float32 blocks onto a channel
package capture

import "context"

// BlockSize is the number of mono samples delivered per block
const BlockSize = 4096

// Source produces mono float32 sample blocks in [-1, 1]
type Source interface {
	// Open acquires the device or input and fixes the sample rate
	Open() error
	// SampleRate returns the native rate; valid after Open
	SampleRate() int
	// Run pushes blocks onto out until ctx is done or the input is exhausted.
	// It never closes out.
	Run(ctx context.Context, out chan<- []float32) error
	// Close releases the device or input
	Close() error
}

// blocker regroups arbitrary sized sample runs into BlockSize blocks
type blocker struct {
	size int
	buf  []float32
}

func newBlocker(size int) *blocker {
	if size <= 0 {
		size = BlockSize
	}
	return &blocker{
		size: size,
		buf:  make([]float32, 0, size),
	}
}

// add appends samples and returns every completed block
func (b *blocker) add(samples []float32) [][]float32 {
	var blocks [][]float32
	for len(samples) > 0 {
		n := b.size - len(b.buf)
		if n > len(samples) {
			n = len(samples)
		}
		b.buf = append(b.buf, samples[:n]...)
		samples = samples[n:]

		if len(b.buf) == b.size {
			blocks = append(blocks, b.buf)
			b.buf = make([]float32, 0, b.size)
		}
	}
	return blocks
}

// flush returns the partial block, if any
func (b *blocker) flush() []float32 {
	if len(b.buf) == 0 {
		return nil
	}
	out := b.buf
	b.buf = make([]float32, 0, b.size)
	return out
}
