// ABOUTME: Microphone capture via miniaudio (malgo)
// ABOUTME: Captures mono float32 frames and regroups them into fixed blocks
package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"log"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

// Microphone captures the default input device
type Microphone struct {
	requestedRate int

	malgoCtx   *malgo.AllocatedContext
	device     *malgo.Device
	sampleRate int

	mu      sync.Mutex
	blocks  *blocker
	out     chan<- []float32
	dropped atomic.Uint64

	// OnDrop is called from the audio thread when a block is dropped
	OnDrop func()
}

// NewMicrophone creates a microphone source. A zero rate uses the device default.
func NewMicrophone(sampleRate int) *Microphone {
	return &Microphone{
		requestedRate: sampleRate,
		blocks:        newBlocker(BlockSize),
	}
}

// Open initializes the capture device
func (m *Microphone) Open() error {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return fmt.Errorf("failed to initialize malgo context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(m.requestedRate)
	deviceConfig.Alsa.NoMMap = 1

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: m.onFrames,
	})
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("failed to initialize capture device: %w", err)
	}

	m.malgoCtx = ctx
	m.device = device
	m.sampleRate = int(device.SampleRate())

	log.Printf("Microphone initialized: %dHz mono (malgo/F32)", m.sampleRate)
	return nil
}

// SampleRate returns the device rate
func (m *Microphone) SampleRate() int {
	return m.sampleRate
}

// Dropped returns how many blocks were dropped because out was full
func (m *Microphone) Dropped() uint64 {
	return m.dropped.Load()
}

// Run starts the device and delivers blocks until ctx is done
func (m *Microphone) Run(ctx context.Context, out chan<- []float32) error {
	if m.device == nil {
		return fmt.Errorf("microphone not opened")
	}

	m.mu.Lock()
	m.out = out
	m.mu.Unlock()

	if err := m.device.Start(); err != nil {
		return fmt.Errorf("failed to start capture device: %w", err)
	}
	log.Printf("Microphone capture started")

	<-ctx.Done()

	if err := m.device.Stop(); err != nil {
		log.Printf("Warning: capture device stop error: %v", err)
	}

	m.mu.Lock()
	m.out = nil
	m.mu.Unlock()

	log.Printf("Microphone capture stopped (%d blocks dropped)", m.Dropped())
	return nil
}

// onFrames runs on the audio thread and must never block
func (m *Microphone) onFrames(_, input []byte, frameCount uint32) {
	samples := make([]float32, frameCount)
	for i := range samples {
		if (i+1)*4 > len(input) {
			break
		}
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(input[i*4:]))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.out == nil {
		return
	}

	for _, block := range m.blocks.add(samples) {
		select {
		case m.out <- block:
		default:
			m.dropped.Add(1)
			if m.OnDrop != nil {
				m.OnDrop()
			}
		}
	}
}

// Close releases the device and context
func (m *Microphone) Close() error {
	if m.device != nil {
		m.device.Uninit()
		m.device = nil
	}
	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
	return nil
}
