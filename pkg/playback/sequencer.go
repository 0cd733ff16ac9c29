// ABOUTME: Strict FIFO playback sequencer for dubbed audio
// ABOUTME: Plays queued items one at a time on a single shared output
package playback

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"
)

// ErrClosed is returned when enqueueing on a closed sequencer
var ErrClosed = errors.New("sequencer closed")

// Item is one dubbed-audio payload awaiting playback
type Item struct {
	Data     []byte
	MIME     string
	ClientTS int64
}

// Player renders a single item and returns once playback has ended
type Player interface {
	Play(ctx context.Context, item *Item) error
}

// State is the sequencer's drain state
type State int

const (
	// Idle means no drain loop is running
	Idle State = iota
	// Draining means one drain loop is playing queued items
	Draining
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Draining:
		return "draining"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Stats tracks sequencer counters
type Stats struct {
	Enqueued int64
	Played   int64
	Failed   int64
}

// Config configures a sequencer
type Config struct {
	Player Player

	// OnPlay is called before an item starts playing
	OnPlay func(item *Item)
	// OnDone is called after an item finished or failed
	OnDone func(item *Item, err error, elapsed time.Duration)
}

// Sequencer plays items in enqueue order, never overlapping.
// Items are never reordered by ClientTS and a playing item is never preempted.
type Sequencer struct {
	config Config

	mu    sync.Mutex
	queue []*Item
	state State
	idle  chan struct{} // closed while Idle
	stats Stats

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSequencer creates an idle sequencer
func NewSequencer(config Config) *Sequencer {
	ctx, cancel := context.WithCancel(context.Background())

	idle := make(chan struct{})
	close(idle)

	return &Sequencer{
		config: config,
		state:  Idle,
		idle:   idle,
		ctx:    ctx,
		cancel: cancel,
	}
}

// transition moves between states, rejecting anything but Idle<->Draining.
// Caller must hold s.mu.
func (s *Sequencer) transition(from, to State) error {
	if s.state != from {
		return fmt.Errorf("invalid sequencer transition %s -> %s: current state is %s", from, to, s.state)
	}

	switch {
	case from == Idle && to == Draining:
		s.idle = make(chan struct{})
	case from == Draining && to == Idle:
		close(s.idle)
	default:
		return fmt.Errorf("invalid sequencer transition %s -> %s", from, to)
	}

	s.state = to
	return nil
}

// Enqueue appends item to the queue and starts the drain loop if Idle
func (s *Sequencer) Enqueue(item *Item) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return ErrClosed
	}

	s.queue = append(s.queue, item)
	s.stats.Enqueued++

	if s.state == Idle {
		if err := s.transition(Idle, Draining); err != nil {
			return err
		}
		go s.drain()
	}

	return nil
}

// drain plays the head of the queue until it is observed empty
func (s *Sequencer) drain() {
	for {
		s.mu.Lock()
		if len(s.queue) == 0 || s.ctx.Err() != nil {
			if dropped := len(s.queue); dropped > 0 {
				log.Printf("Sequencer closed with %d items queued", dropped)
				s.queue = nil
			}
			if err := s.transition(Draining, Idle); err != nil {
				log.Printf("Sequencer: %v", err)
			}
			s.mu.Unlock()
			return
		}
		item := s.queue[0]
		s.queue[0] = nil
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if s.config.OnPlay != nil {
			s.config.OnPlay(item)
		}

		start := time.Now()
		err := s.config.Player.Play(s.ctx, item)
		elapsed := time.Since(start)

		// Release the payload before moving on
		item.Data = nil

		s.mu.Lock()
		if err != nil {
			s.stats.Failed++
		} else {
			s.stats.Played++
		}
		s.mu.Unlock()

		if err != nil {
			log.Printf("Playback failed (client_ts=%d): %v", item.ClientTS, err)
		}
		if s.config.OnDone != nil {
			s.config.OnDone(item, err, elapsed)
		}
	}
}

// State returns the current drain state
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Len returns the number of items waiting to play
func (s *Sequencer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Stats returns a snapshot of the counters
func (s *Sequencer) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Wait blocks until the sequencer is Idle with an empty queue
func (s *Sequencer) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		idle := s.idle
		s.mu.Unlock()

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}

		s.mu.Lock()
		done := s.state == Idle && len(s.queue) == 0
		s.mu.Unlock()
		if done {
			return nil
		}
	}
}

// Close cancels the active playback and drops queued items
func (s *Sequencer) Close() {
	s.cancel()
}
