// ABOUTME: Live dubbing capture session
// ABOUTME: Wires capture, segmentation, chunk submission, playback and video into one lifecycle
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/livedub/livedub-go/internal/metrics"
	"github.com/livedub/livedub-go/pkg/capture"
	"github.com/livedub/livedub-go/pkg/dubbing"
	"github.com/livedub/livedub-go/pkg/playback"
	"github.com/livedub/livedub-go/pkg/segment"
	"github.com/livedub/livedub-go/pkg/video"
	"golang.org/x/sync/errgroup"
)

// Backend is the subset of the dubbing API a session drives
type Backend interface {
	StartSession(ctx context.Context) (*dubbing.StartResponse, error)
	StopSession(ctx context.Context, sessionID string) error
	SendChunk(ctx context.Context, req dubbing.ChunkRequest) (*dubbing.ChunkResponse, error)
	UploadVideo(ctx context.Context, sessionID, path string) (*dubbing.UploadResponse, error)
	RenderVideo(ctx context.Context, sessionID string, burnSubs bool) (*dubbing.RenderResponse, error)
	ResolveURL(ref string) string
}

// Queue accepts dubbed audio for playback
type Queue interface {
	Enqueue(item *playback.Item) error
}

// Transcript is the latest recognition and translation pair
type Transcript struct {
	Text        string
	Translation string
	ClientTS    int64
}

// Links are the absolute output URLs of a finished session
type Links struct {
	FinalURL string
	SRTURL   string
	RawURL   string
}

// Result summarizes a stopped session
type Result struct {
	Links
	Saved     string
	FinalPath string
	SRTPath   string
}

// Config configures a session
type Config struct {
	Backend Backend
	// NewSource opens a fresh capture source for each start
	NewSource func() (capture.Source, error)
	// Recorder records the whole session; nil disables upload and render
	Recorder video.Recorder
	Queue    Queue

	SourceLang string
	TargetLang string
	BurnSubs   bool

	// BlockBuffer sizes the capture block channel
	BlockBuffer int

	OnStatus     func(status string)
	OnTranscript func(t Transcript)
	OnLinks      func(l Links)

	Metrics *metrics.Metrics
}

// Stats counts chunk round trips across sessions
type Stats struct {
	ClipsSent int64
	Dubbed    int64
	NoSpeech  int64
	Failed    int64
}

// Session runs one capture session at a time
type Session struct {
	config Config

	mu         sync.Mutex
	state      State
	status     string
	token      uint64
	sessionID  string
	sourceLang string
	targetLang string
	links      Links
	transcript Transcript
	stats      Stats

	source capture.Source
	cancel context.CancelFunc
	group  *errgroup.Group
	tail   chan int
}

// New creates an idle session
func New(config Config) (*Session, error) {
	if config.Backend == nil {
		return nil, fmt.Errorf("session requires a backend")
	}
	if config.NewSource == nil {
		return nil, fmt.Errorf("session requires a capture source")
	}
	if config.Queue == nil {
		return nil, fmt.Errorf("session requires a playback queue")
	}
	if config.SourceLang == "" {
		config.SourceLang = dubbing.DefaultSourceLang
	}
	if config.TargetLang == "" {
		config.TargetLang = dubbing.DefaultTargetLang
	}
	if !dubbing.ValidLanguage(config.SourceLang) || !dubbing.ValidLanguage(config.TargetLang) {
		return nil, fmt.Errorf("unsupported language pair %s -> %s", config.SourceLang, config.TargetLang)
	}
	if config.BlockBuffer <= 0 {
		config.BlockBuffer = 32
	}

	return &Session{
		config:     config,
		state:      Idle,
		status:     StatusIdle,
		sourceLang: config.SourceLang,
		targetLang: config.TargetLang,
	}, nil
}

// State returns the lifecycle state
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns the current status string
func (s *Session) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// SessionID returns the backend session identifier, empty when not running
func (s *Session) SessionID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// Links returns the output links of the last stopped session
func (s *Session) Links() Links {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.links
}

// Transcript returns the latest recognition result
func (s *Session) Transcript() Transcript {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transcript
}

// Stats returns a snapshot of the chunk counters
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

func (s *Session) count(f func(*Stats)) {
	s.mu.Lock()
	f(&s.stats)
	s.mu.Unlock()
}

// Languages returns the source and target language codes
func (s *Session) Languages() (string, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sourceLang, s.targetLang
}

// SetLanguages changes the language pair. Only allowed while Idle.
func (s *Session) SetLanguages(src, tgt string) error {
	if !dubbing.ValidLanguage(src) || !dubbing.ValidLanguage(tgt) {
		return fmt.Errorf("unsupported language pair %s -> %s", src, tgt)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Idle {
		return fmt.Errorf("cannot change languages while %s", s.state)
	}
	s.sourceLang = src
	s.targetLang = tgt
	return nil
}

// Start opens capture, starts a backend session and begins streaming clips
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if err := s.transition(Idle, Starting); err != nil {
		s.mu.Unlock()
		return err
	}
	s.token++
	token := s.token
	s.links = Links{}
	s.mu.Unlock()

	s.emitLinks(Links{})

	src, sessionID, err := s.startResources(ctx)
	if err != nil {
		log.Printf("Session start failed: %v", err)
		s.mu.Lock()
		s.transition(Starting, Idle)
		s.mu.Unlock()
		s.config.Metrics.SessionEvent("start_failed")
		s.setStatus(StatusErrorStarting)
		return err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	group, groupCtx := errgroup.WithContext(runCtx)

	blocks := make(chan []float32, s.config.BlockBuffer)
	clips := newClipQueue()
	tail := make(chan int, 1)
	seg := segment.New(src.SampleRate())

	s.mu.Lock()
	s.source = src
	s.cancel = cancel
	s.group = group
	s.tail = tail
	s.sessionID = sessionID
	s.transition(Starting, Running)
	srcLang, tgtLang := s.sourceLang, s.targetLang
	s.mu.Unlock()

	log.Printf("Session started: %s (%dHz, %s -> %s)", sessionID, src.SampleRate(), srcLang, tgtLang)
	s.config.Metrics.SessionEvent("started")
	s.setStatus(StatusRunning)

	group.Go(func() error {
		if err := src.Run(groupCtx, blocks); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("capture: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		s.segmentLoop(groupCtx, seg, blocks, clips, tail)
		return nil
	})

	// The submitter is not part of the group: Stop never waits for an
	// in-flight chunk request. It keeps sending until every flushed clip
	// has been submitted.
	go s.submitLoop(runCtx, token, sessionID, clips)

	go func() {
		if err := group.Wait(); err != nil {
			log.Printf("Capture pipeline stopped: %v", err)
		}
	}()

	return nil
}

// startResources acquires capture, the backend session and the recorder,
// releasing whatever was acquired if a later step fails
func (s *Session) startResources(ctx context.Context) (capture.Source, string, error) {
	src, err := s.config.NewSource()
	if err != nil {
		return nil, "", fmt.Errorf("failed to create capture source: %w", err)
	}
	if err := src.Open(); err != nil {
		return nil, "", fmt.Errorf("failed to open capture source: %w", err)
	}
	if src.SampleRate() <= 0 {
		src.Close()
		return nil, "", fmt.Errorf("capture source reported invalid sample rate %d", src.SampleRate())
	}

	start, err := s.config.Backend.StartSession(ctx)
	if err != nil {
		src.Close()
		return nil, "", err
	}

	if s.config.Recorder != nil {
		if err := s.config.Recorder.Start(ctx); err != nil {
			src.Close()
			if stopErr := s.config.Backend.StopSession(ctx, start.SessionID); stopErr != nil {
				log.Printf("Failed to release backend session %s: %v", start.SessionID, stopErr)
			}
			return nil, "", fmt.Errorf("failed to start video recorder: %w", err)
		}
	}

	return src, start.SessionID, nil
}

// segmentLoop owns the segmenter. It never waits on the submitter; when it
// returns, the clip queue is closed and the discarded tail is reported.
func (s *Session) segmentLoop(ctx context.Context, seg *segment.Segmenter, blocks <-chan []float32, clips *clipQueue, tail chan<- int) {
	defer func() {
		clips.close()
		tail <- seg.Discard()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case block := <-blocks:
			clip, ok := seg.Push(block)
			if !ok {
				continue
			}
			s.config.Metrics.ClipFlushed()
			n := clips.push(pendingClip{clip: clip, clientTS: time.Now().UnixMilli()})
			s.config.Metrics.SetPendingClips(n)
		}
	}
}

// submitLoop sends flushed clips one at a time, in flush order, until the
// queue is closed and empty. Clips flushed before Stop are still sent.
func (s *Session) submitLoop(ctx context.Context, token uint64, sessionID string, clips *clipQueue) {
	// Requests outlive the session context so Stop does not cancel them
	reqCtx := context.WithoutCancel(ctx)

	for {
		p, remaining, ok := clips.pop()
		if !ok {
			return
		}
		s.config.Metrics.SetPendingClips(remaining)
		s.submit(reqCtx, token, sessionID, p)
	}
}

// submit performs one chunk round trip and routes the result
func (s *Session) submit(ctx context.Context, token uint64, sessionID string, p pendingClip) {
	src, tgt := s.Languages()
	s.setStatusFor(token, StatusTranslating)

	start := time.Now()
	resp, err := s.config.Backend.SendChunk(ctx, dubbing.ChunkRequest{
		Clip:       p.clip,
		ClientTS:   p.clientTS,
		SourceLang: src,
		TargetLang: tgt,
		SessionID:  sessionID,
	})
	elapsed := time.Since(start)
	s.count(func(st *Stats) { st.ClipsSent++ })

	if err != nil {
		s.count(func(st *Stats) { st.Failed++ })
		log.Printf("Chunk failed after %v: %v", elapsed, err)
		s.config.Metrics.ObserveChunk(metrics.OutcomeError, elapsed)
		s.setStatusFor(token, StatusErrorChunk)
		return
	}

	current := s.isCurrent(token)
	if !current {
		s.config.Metrics.ObserveChunk(metrics.OutcomeStale, elapsed)
	}

	if current {
		s.setTranscript(Transcript{Text: resp.Text, Translation: resp.TranslatedText, ClientTS: resp.ClientTS})
	}

	if !resp.HasAudio() {
		log.Printf("Chunk returned no audio (likely silence)")
		s.count(func(st *Stats) { st.NoSpeech++ })
		if current {
			s.config.Metrics.ObserveChunk(metrics.OutcomeNoSpeech, elapsed)
		}
		s.setStatusFor(token, StatusNoSpeech)
		return
	}

	data, err := resp.DubbedAudio()
	if err != nil {
		log.Printf("Chunk audio undecodable: %v", err)
		if current {
			s.config.Metrics.ObserveChunk(metrics.OutcomeError, elapsed)
		}
		s.setStatusFor(token, StatusErrorChunk)
		return
	}
	if len(data) == 0 {
		log.Printf("Chunk returned empty audio, skipping")
		if current {
			s.config.Metrics.ObserveChunk(metrics.OutcomeEmpty, elapsed)
		}
		s.setStatusFor(token, StatusEmptyAudio)
		return
	}

	mimeType := resp.MIME
	if mimeType == "" {
		mimeType = playback.DefaultMIME
	}

	// Stale audio still plays; only UI state is guarded by the token
	if err := s.config.Queue.Enqueue(&playback.Item{Data: data, MIME: mimeType, ClientTS: resp.ClientTS}); err != nil {
		log.Printf("Failed to enqueue dubbed audio: %v", err)
		s.setStatusFor(token, StatusErrorChunk)
		return
	}

	s.count(func(st *Stats) { st.Dubbed++ })
	if current {
		s.config.Metrics.ObserveChunk(metrics.OutcomeDubbed, elapsed)
	}
	log.Printf("Enqueued dubbed audio: %d bytes (%s) after %v", len(data), mimeType, elapsed)
	s.setStatusFor(token, StatusReady)
}

// Stop ends a running session. It is a no-op unless Running.
// Upload and render only happen with a recorder and a session ID.
func (s *Session) Stop(ctx context.Context) (*Result, error) {
	s.mu.Lock()
	if s.state != Running {
		s.mu.Unlock()
		return nil, nil
	}
	s.transition(Running, Stopping)
	s.token++
	sessionID := s.sessionID
	src, cancel, group, tail := s.source, s.cancel, s.group, s.tail
	s.source, s.cancel, s.group, s.tail = nil, nil, nil, nil
	s.mu.Unlock()

	s.setStatus(StatusStopping)

	cancel()
	group.Wait()
	if n := <-tail; n > 0 {
		log.Printf("Discarded %d buffered samples at stop", n)
		s.config.Metrics.AddDiscardedSamples(n)
	}
	if d, ok := src.(interface{ Dropped() uint64 }); ok {
		s.config.Metrics.AddCaptureDrops(d.Dropped())
	}
	if err := src.Close(); err != nil {
		log.Printf("Failed to close capture source: %v", err)
	}

	result, stopErr := s.finish(ctx, sessionID)

	if sessionID != "" {
		if err := s.config.Backend.StopSession(ctx, sessionID); err != nil && stopErr == nil {
			stopErr = fmt.Errorf("failed to stop backend session: %w", err)
		}
	}

	s.mu.Lock()
	s.sessionID = ""
	s.links = result.Links
	s.transition(Stopping, Idle)
	s.mu.Unlock()

	s.emitLinks(result.Links)

	switch {
	case stopErr != nil:
		log.Printf("Session stop failed: %v", stopErr)
		s.config.Metrics.SessionEvent("stop_failed")
		s.setStatus(StatusErrorStopping)
	case result.FinalURL != "":
		s.config.Metrics.SessionEvent("rendered")
		s.setStatus(StatusFinalReady)
	case result.Saved != "":
		s.config.Metrics.SessionEvent("saved")
		s.setStatus(StatusSavedRaw(result.Saved))
	default:
		s.config.Metrics.SessionEvent("stopped")
		s.setStatus(StatusStopped)
	}

	log.Printf("Session stopped: %s", sessionID)
	return result, stopErr
}

// finish stops the recorder, then uploads and renders the recording.
// Render runs before the backend session is stopped.
func (s *Session) finish(ctx context.Context, sessionID string) (*Result, error) {
	result := &Result{}
	if s.config.Recorder == nil {
		return result, nil
	}

	rec, err := s.config.Recorder.Stop(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to stop video recorder: %w", err)
	}
	if sessionID == "" {
		return result, nil
	}

	s.setStatus(StatusUploading)
	upload, err := s.config.Backend.UploadVideo(ctx, sessionID, rec.Path)
	if err != nil {
		return result, err
	}
	result.Saved = upload.Saved
	result.RawURL = s.config.Backend.ResolveURL(upload.URL)
	log.Printf("Uploaded video: %s (%d bytes)", upload.Saved, rec.Size)

	s.setStatus(StatusRendering)
	render, err := s.config.Backend.RenderVideo(ctx, sessionID, s.config.BurnSubs)
	if err != nil {
		return result, err
	}
	result.FinalPath = render.FinalPath
	result.SRTPath = render.SRTPath
	result.FinalURL = s.config.Backend.ResolveURL(render.FinalURL)
	result.SRTURL = s.config.Backend.ResolveURL(render.SRTURL)
	log.Printf("Render complete: final=%q srt=%q", render.FinalPath, render.SRTPath)

	return result, nil
}

func (s *Session) isCurrent(token uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token == token && s.state == Running
}

// setStatusFor updates status only if token still names the running session
func (s *Session) setStatusFor(token uint64, status string) {
	if !s.isCurrent(token) {
		return
	}
	s.setStatus(status)
}

func (s *Session) setStatus(status string) {
	s.mu.Lock()
	s.status = status
	s.mu.Unlock()

	if s.config.OnStatus != nil {
		s.config.OnStatus(status)
	}
}

func (s *Session) setTranscript(t Transcript) {
	s.mu.Lock()
	s.transcript = t
	s.mu.Unlock()

	if s.config.OnTranscript != nil {
		s.config.OnTranscript(t)
	}
}

func (s *Session) emitLinks(l Links) {
	if s.config.OnLinks != nil {
		s.config.OnLinks(l)
	}
}
