// ABOUTME: Malgo-based audio output implementation
// ABOUTME: Feeds one clip at a time to a miniaudio playback callback
package output

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/gen2brain/malgo"
	"github.com/livedub/livedub-go/pkg/audio"
)

// Malgo output implementation using malgo/miniaudio library
type Malgo struct {
	gain

	mu         sync.Mutex
	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate int
	channels   int
	feed       *feeder
}

// feeder hands the current clip to the device callback and signals when
// the callback has consumed all of it
type feeder struct {
	mu      sync.Mutex
	pending []int16
	done    chan struct{}
}

// load replaces the current clip and returns a channel closed once it has played
func (f *feeder) load(samples []int16) <-chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.finish()
	f.pending = samples
	f.done = make(chan struct{})
	if len(samples) == 0 {
		f.finish()
		return closedChan
	}
	return f.done
}

// fill writes the next samples into out as S16LE, padding with silence
func (f *feeder) fill(out []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n := min(len(out)/2, len(f.pending))
	putSamples(out, f.pending[:n])
	clear(out[n*2:])
	f.pending = f.pending[n:]

	if len(f.pending) == 0 {
		f.finish()
	}
}

// reset drops whatever is left of the current clip
func (f *feeder) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = nil
	f.finish()
}

// finish closes done once. Caller must hold f.mu.
func (f *feeder) finish() {
	if f.done != nil {
		close(f.done)
		f.done = nil
	}
}

var closedChan = func() chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}()

// NewMalgo creates a new Malgo output
func NewMalgo() Output {
	return &Malgo{gain: gain{volume: 100}}
}

// Open initializes the playback device with the given format
func (m *Malgo) Open(sampleRate, channels int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil && m.sampleRate == sampleRate && m.channels == channels {
		return nil
	}
	if m.device != nil {
		log.Printf("Format change (%dHz/%dch -> %dHz/%dch), reinitializing device",
			m.sampleRate, m.channels, sampleRate, channels)
		m.closeDevice()
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	feed := &feeder{}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = uint32(channels)
	deviceConfig.SampleRate = uint32(sampleRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: func(output, _ []byte, _ uint32) {
			feed.fill(output)
		},
	})
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start playback device: %w", err)
	}

	m.device = device
	m.feed = feed
	m.sampleRate = sampleRate
	m.channels = channels

	log.Printf("Audio output initialized: %dHz, %d channels (malgo/S16)", sampleRate, channels)
	return nil
}

// Play hands pcm to the device and waits until the callback consumed it
func (m *Malgo) Play(ctx context.Context, pcm audio.PCM) error {
	m.mu.Lock()
	feed := m.feed
	rate, channels := m.sampleRate, m.channels
	m.mu.Unlock()

	if feed == nil {
		return fmt.Errorf("output not initialized")
	}

	done := feed.load(prepare(pcm, rate, channels, m.multiplier()))
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		feed.reset()
		return ctx.Err()
	}
}

// Close releases the device and context
func (m *Malgo) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}

// closeDevice stops the device and releases any waiting Play. Caller must hold m.mu.
func (m *Malgo) closeDevice() {
	if m.device == nil {
		return
	}
	if err := m.device.Stop(); err != nil {
		log.Printf("Warning: device stop error: %v", err)
	}
	m.device.Uninit()
	m.device = nil
	m.feed.reset()
	m.feed = nil
}
