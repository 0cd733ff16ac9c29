// ABOUTME: Unbounded clip FIFO between the segmenter and the chunk submitter
// ABOUTME: Pushing never blocks, so a slow backend cannot stall capture
package session

import (
	"sync"

	"github.com/livedub/livedub-go/pkg/audio"
)

// pendingClip is a flushed clip stamped at flush time
type pendingClip struct {
	clip     audio.Clip
	clientTS int64
}

// clipQueue has one producer and one consumer
type clipQueue struct {
	mu     sync.Mutex
	items  []pendingClip
	closed bool
	wake   chan struct{}
}

func newClipQueue() *clipQueue {
	return &clipQueue{wake: make(chan struct{}, 1)}
}

// push appends p and returns the backlog length
func (q *clipQueue) push(p pendingClip) int {
	q.mu.Lock()
	q.items = append(q.items, p)
	n := len(q.items)
	q.mu.Unlock()
	q.signal()
	return n
}

// close marks the end of input; queued clips are still delivered
func (q *clipQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// pop blocks for the next clip. ok is false once the queue is closed and empty.
func (q *clipQueue) pop() (p pendingClip, remaining int, ok bool) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			p = q.items[0]
			q.items[0] = pendingClip{}
			q.items = q.items[1:]
			remaining = len(q.items)
			q.mu.Unlock()
			return p, remaining, true
		}
		if q.closed {
			q.mu.Unlock()
			return pendingClip{}, 0, false
		}
		q.mu.Unlock()
		<-q.wake
	}
}

func (q *clipQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}
