// ABOUTME: Oto-based audio output implementation
// ABOUTME: Plays each clip on its own oto player and waits for it to drain
package output

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/livedub/livedub-go/pkg/audio"
)

// drainPoll is how often Play checks whether the player has finished
const drainPoll = 10 * time.Millisecond

// Oto output implementation using oto library.
// oto allows one context per process, so the first Open fixes the device
// format and later clips are converted to it.
type Oto struct {
	gain

	mu         sync.Mutex
	otoCtx     *oto.Context
	sampleRate int
	channels   int
	suspended  bool
}

// NewOto creates a new Oto output
func NewOto() Output {
	return &Oto{gain: gain{volume: 100}}
}

// Open creates the oto context on first use
func (o *Oto) Open(sampleRate, channels int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.otoCtx != nil {
		if o.sampleRate != sampleRate || o.channels != channels {
			log.Printf("Keeping oto format %dHz/%dch, clips will be converted from %dHz/%dch",
				o.sampleRate, o.channels, sampleRate, channels)
		}
		if o.suspended {
			if err := o.otoCtx.Resume(); err != nil {
				return fmt.Errorf("failed to resume oto context: %w", err)
			}
			o.suspended = false
		}
		return nil
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatSignedInt16LE,
	})
	if err != nil {
		return fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	o.otoCtx = ctx
	o.sampleRate = sampleRate
	o.channels = channels

	log.Printf("Audio output initialized: %dHz, %d channels (oto)", sampleRate, channels)
	return nil
}

// Play renders pcm on a fresh player and blocks until playback ends
func (o *Oto) Play(ctx context.Context, pcm audio.PCM) error {
	o.mu.Lock()
	otoCtx := o.otoCtx
	ready := otoCtx != nil && !o.suspended
	rate, channels := o.sampleRate, o.channels
	o.mu.Unlock()

	if !ready {
		return fmt.Errorf("output not initialized")
	}

	samples := prepare(pcm, rate, channels, o.multiplier())
	if len(samples) == 0 {
		return nil
	}

	player := otoCtx.NewPlayer(bytes.NewReader(int16ToBytes(samples)))
	defer player.Close()
	player.Play()

	ticker := time.NewTicker(drainPoll)
	defer ticker.Stop()

	for player.IsPlaying() {
		select {
		case <-ctx.Done():
			player.Pause()
			return ctx.Err()
		case <-ticker.C:
		}
	}

	if err := player.Err(); err != nil {
		return fmt.Errorf("oto playback failed: %w", err)
	}
	return nil
}

// Close suspends the context; oto contexts cannot be destroyed
func (o *Oto) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.otoCtx == nil || o.suspended {
		return nil
	}
	if err := o.otoCtx.Suspend(); err != nil {
		return fmt.Errorf("failed to suspend oto context: %w", err)
	}
	o.suspended = true
	return nil
}
