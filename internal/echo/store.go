// ABOUTME: In-memory session store for the echo backend
// ABOUTME: Tracks per-session chunk timeline, caption segments and uploaded video
package echo

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// MinChunkAdvance is the smallest timeline step a chunk can take
const MinChunkAdvance = 200 * time.Millisecond

// Segment is one captioned span of the session timeline
type Segment struct {
	StartMS        int64
	EndMS          int64
	Text           string
	TranslatedText string
}

// Session is the backend view of one capture session
type Session struct {
	ID         string
	Created    time.Time
	Chunks     int
	TimelineMS int64
	Segments   []Segment
	VideoPath  string
}

// Store holds active sessions
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Create registers a new session and returns its ID
func (s *Store) Create() string {
	id := uuid.New().String()

	s.mu.Lock()
	s.sessions[id] = &Session{ID: id, Created: time.Now()}
	s.mu.Unlock()

	return id
}

// Exists reports whether id is an active session
func (s *Store) Exists(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

// Delete forgets a session. Unknown IDs are ignored.
func (s *Store) Delete(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// AddChunk advances the session timeline by the chunk duration, at least
// MinChunkAdvance, and records a segment when text is not empty.
// It returns the span the chunk occupies.
func (s *Store) AddChunk(id string, dur time.Duration, text, translated string) (start, end int64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return 0, 0, false
	}

	if dur < MinChunkAdvance {
		dur = MinChunkAdvance
	}
	start = sess.TimelineMS
	end = start + dur.Milliseconds()
	sess.TimelineMS = end
	sess.Chunks++

	if text != "" {
		sess.Segments = append(sess.Segments, Segment{
			StartMS:        start,
			EndMS:          end,
			Text:           text,
			TranslatedText: translated,
		})
	}
	return start, end, true
}

// SetVideo records the uploaded video path for a session
func (s *Store) SetVideo(id, path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if ok {
		sess.VideoPath = path
	}
	return ok
}

// Snapshot returns a copy of a session
func (s *Store) Snapshot(id string) (Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return Session{}, false
	}
	cp := *sess
	cp.Segments = append([]Segment(nil), sess.Segments...)
	return cp, true
}

// Len returns the number of active sessions
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}
