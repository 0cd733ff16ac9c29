// ABOUTME: Tests for the capture session lifecycle
// ABOUTME: Drives sessions against an httptest backend with generated audio
package session

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/livedub/livedub-go/internal/metrics"
	"github.com/livedub/livedub-go/pkg/capture"
	"github.com/livedub/livedub-go/pkg/dubbing"
	"github.com/livedub/livedub-go/pkg/playback"
	"github.com/livedub/livedub-go/pkg/video"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// fakeBackend records calls and answers with canned JSON
type fakeBackend struct {
	t *testing.T

	mu     sync.Mutex
	calls  []string
	chunks []map[string]string
	sizes  []int64

	startStatus int
	chunkReply  func(n int) (int, string)
	uploadReply string
	renderReply string
}

func (b *fakeBackend) record(call string) {
	b.mu.Lock()
	b.calls = append(b.calls, call)
	b.mu.Unlock()
}

func (b *fakeBackend) callLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.calls...)
}

func (b *fakeBackend) chunkCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

func (b *fakeBackend) server() *httptest.Server {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/session/start", func(w http.ResponseWriter, r *http.Request) {
		b.record("start")
		if b.startStatus != 0 {
			w.WriteHeader(b.startStatus)
			w.Write([]byte(`{"error":"backend down"}`))
			return
		}
		w.Write([]byte(`{"session_id":"sess-1"}`))
	})

	mux.HandleFunc("/api/session/stop", func(w http.ResponseWriter, r *http.Request) {
		b.record("stop:" + r.FormValue("session_id"))
		w.Write([]byte(`{"ok":true}`))
	})

	mux.HandleFunc("/api/chunk", func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("audio")
		if err != nil {
			b.t.Errorf("chunk without audio: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		if header.Filename != dubbing.ChunkFilename {
			b.t.Errorf("expected filename %s, got %s", dubbing.ChunkFilename, header.Filename)
		}

		b.record("chunk")
		b.mu.Lock()
		b.chunks = append(b.chunks, map[string]string{
			"client_ts":   r.FormValue("client_ts"),
			"source_lang": r.FormValue("source_lang"),
			"target_lang": r.FormValue("target_lang"),
			"session_id":  r.FormValue("session_id"),
		})
		b.sizes = append(b.sizes, int64(len(data)))
		n := len(b.chunks)
		b.mu.Unlock()

		status, body := http.StatusOK, `{"text":"","translated_text":""}`
		if b.chunkReply != nil {
			status, body = b.chunkReply(n)
		}
		w.WriteHeader(status)
		w.Write([]byte(body))
	})

	mux.HandleFunc("/api/video/upload", func(w http.ResponseWriter, r *http.Request) {
		b.record("upload")
		if _, _, err := r.FormFile("video"); err != nil {
			b.t.Errorf("upload without video: %v", err)
		}
		w.Write([]byte(b.uploadReply))
	})

	mux.HandleFunc("/api/video/render", func(w http.ResponseWriter, r *http.Request) {
		b.record("render:" + r.FormValue("burn_subs"))
		w.Write([]byte(b.renderReply))
	})

	return httptest.NewServer(mux)
}

// fakeQueue collects enqueued items
type fakeQueue struct {
	mu    sync.Mutex
	items []*playback.Item
}

func (q *fakeQueue) Enqueue(item *playback.Item) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
	return nil
}

func (q *fakeQueue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// statusLog collects status callbacks
type statusLog struct {
	mu       sync.Mutex
	statuses []string
}

func (l *statusLog) add(s string) {
	l.mu.Lock()
	l.statuses = append(l.statuses, s)
	l.mu.Unlock()
}

func (l *statusLog) seen(s string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, got := range l.statuses {
		if got == s {
			return true
		}
	}
	return false
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type fixture struct {
	backend *fakeBackend
	server  *httptest.Server
	queue   *fakeQueue
	status  *statusLog
	session *Session
}

func newFixture(t *testing.T, backend *fakeBackend, src func() (capture.Source, error), rec video.Recorder) *fixture {
	t.Helper()
	backend.t = t
	srv := backend.server()
	t.Cleanup(srv.Close)

	client, err := dubbing.NewClient(dubbing.Config{BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("failed to create client: %v", err)
	}

	f := &fixture{
		backend: backend,
		server:  srv,
		queue:   &fakeQueue{},
		status:  &statusLog{},
	}

	s, err := New(Config{
		Backend:   client,
		NewSource: src,
		Recorder:  rec,
		Queue:     f.queue,
		BurnSubs:  true,
		OnStatus:  f.status.add,
		Metrics:   metrics.New(),
	})
	if err != nil {
		t.Fatalf("failed to create session: %v", err)
	}
	f.session = s
	return f
}

func silence(rate int, d time.Duration) func() (capture.Source, error) {
	return func() (capture.Source, error) {
		return capture.NewSilenceSource(rate, d), nil
	}
}

func TestSilenceScenario(t *testing.T) {
	// 4.2s at 16kHz flushes two clips and leaves a short tail unsent
	f := newFixture(t, &fakeBackend{}, silence(16000, 4200*time.Millisecond), nil)

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if f.session.State() != Running {
		t.Fatalf("expected running, got %s", f.session.State())
	}

	waitFor(t, "two chunks", func() bool { return f.backend.chunkCount() == 2 })
	waitFor(t, "no speech status", func() bool { return f.status.seen(StatusNoSpeech) })

	result, err := f.session.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if result.FinalURL != "" || result.Saved != "" {
		t.Errorf("expected no outputs without a recorder, got %+v", result)
	}

	time.Sleep(100 * time.Millisecond)
	if n := f.backend.chunkCount(); n != 2 {
		t.Errorf("expected exactly 2 chunks, got %d", n)
	}
	if f.queue.len() != 0 {
		t.Errorf("expected nothing enqueued for silence, got %d", f.queue.len())
	}

	f.backend.mu.Lock()
	for i, size := range f.backend.sizes {
		// 8 blocks of 4096 samples cross the 32000 sample threshold
		if want := int64(44 + 2*8*capture.BlockSize); size != want {
			t.Errorf("chunk %d: expected %d bytes, got %d", i, want, size)
		}
	}
	first := f.backend.chunks[0]
	f.backend.mu.Unlock()

	if first["source_lang"] != "en" || first["target_lang"] != "hi" {
		t.Errorf("unexpected languages %s -> %s", first["source_lang"], first["target_lang"])
	}
	if first["session_id"] != "sess-1" {
		t.Errorf("expected session_id sess-1, got %q", first["session_id"])
	}
	if first["client_ts"] == "" {
		t.Error("expected client_ts")
	}

	if f.session.Status() != StatusStopped {
		t.Errorf("expected %q, got %q", StatusStopped, f.session.Status())
	}
	if f.session.State() != Idle || f.session.SessionID() != "" {
		t.Errorf("expected idle with cleared session, got %s %q", f.session.State(), f.session.SessionID())
	}

	calls := f.backend.callLog()
	if calls[len(calls)-1] != "stop:sess-1" {
		t.Errorf("expected backend stop last, got %v", calls)
	}
}

func TestDubbedAudioEnqueued(t *testing.T) {
	dub := base64.StdEncoding.EncodeToString([]byte("dubbed-mp3"))
	backend := &fakeBackend{
		chunkReply: func(n int) (int, string) {
			return http.StatusOK, fmt.Sprintf(`{"text":"hello","translated_text":"namaste","audio_b64":%q,"client_ts":42}`, dub)
		},
	}
	f := newFixture(t, backend, silence(8000, 2100*time.Millisecond), nil)

	var transcripts []Transcript
	var mu sync.Mutex
	f.session.config.OnTranscript = func(tr Transcript) {
		mu.Lock()
		transcripts = append(transcripts, tr)
		mu.Unlock()
	}

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitFor(t, "ready status", func() bool { return f.session.Status() == StatusReady })

	if !f.status.seen(StatusTranslating) {
		t.Error("expected translating status before the response")
	}
	if f.queue.len() != 1 {
		t.Fatalf("expected 1 item, got %d", f.queue.len())
	}
	item := f.queue.items[0]
	if string(item.Data) != "dubbed-mp3" || item.MIME != playback.DefaultMIME || item.ClientTS != 42 {
		t.Errorf("unexpected item %+v", item)
	}

	if st := f.session.Stats(); st.ClipsSent != 1 || st.Dubbed != 1 {
		t.Errorf("unexpected stats %+v", st)
	}

	tr := f.session.Transcript()
	if tr.Text != "hello" || tr.Translation != "namaste" {
		t.Errorf("unexpected transcript %+v", tr)
	}
	mu.Lock()
	if len(transcripts) != 1 {
		t.Errorf("expected 1 transcript callback, got %d", len(transcripts))
	}
	mu.Unlock()

	f.session.Stop(context.Background())
}

func TestChunkErrorContinues(t *testing.T) {
	backend := &fakeBackend{
		chunkReply: func(n int) (int, string) {
			if n == 1 {
				return http.StatusInternalServerError, `{"error":"asr failed"}`
			}
			return http.StatusOK, `{"text":"","translated_text":""}`
		},
	}
	f := newFixture(t, backend, silence(16000, 4200*time.Millisecond), nil)

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	waitFor(t, "second chunk", func() bool { return f.backend.chunkCount() == 2 })
	waitFor(t, "second response", func() bool { return f.status.seen(StatusNoSpeech) })

	if !f.status.seen(StatusErrorChunk) {
		t.Error("expected chunk error status")
	}
	f.session.Stop(context.Background())
}

func TestStopUploadsAndRendersBeforeStoppingSession(t *testing.T) {
	backend := &fakeBackend{
		uploadReply: `{"saved":"/data/sess-1.webm","url":"/files/sess-1.webm"}`,
		renderReply: `{"final_url":"/files/sess-1_final.mp4","final_path":"/data/sess-1_final.mp4"}`,
	}
	rec := video.NewFileRecorder(writeVideo(t))
	f := newFixture(t, backend, silence(16000, time.Second), rec)

	var links []Links
	f.session.config.OnLinks = func(l Links) { links = append(links, l) }

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	result, err := f.session.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	if result.FinalURL != f.server.URL+"/files/sess-1_final.mp4" {
		t.Errorf("unexpected final URL %q", result.FinalURL)
	}
	if result.SRTURL != "" {
		t.Errorf("expected no SRT link, got %q", result.SRTURL)
	}
	if result.RawURL != f.server.URL+"/files/sess-1.webm" {
		t.Errorf("unexpected raw URL %q", result.RawURL)
	}
	if f.session.Status() != StatusFinalReady {
		t.Errorf("expected %q, got %q", StatusFinalReady, f.session.Status())
	}

	for _, s := range []string{StatusStopping, StatusUploading, StatusRendering} {
		if !f.status.seen(s) {
			t.Errorf("expected status %q", s)
		}
	}

	got := strings.Join(f.backend.callLog(), ",")
	if !strings.HasSuffix(got, "upload,render:1,stop:sess-1") {
		t.Errorf("expected upload, render then stop, got %s", got)
	}

	// Links reset at start, then set at stop
	if len(links) != 2 || links[0] != (Links{}) || links[1].FinalURL == "" {
		t.Errorf("unexpected link callbacks %+v", links)
	}
}

func TestStopSavedRawVideo(t *testing.T) {
	backend := &fakeBackend{
		uploadReply: `{"saved":"/data/sess-1.webm"}`,
		renderReply: `{}`,
	}
	f := newFixture(t, backend, silence(16000, time.Second), video.NewFileRecorder(writeVideo(t)))

	f.session.Start(context.Background())
	if _, err := f.session.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if want := "Saved raw video: /data/sess-1.webm"; f.session.Status() != want {
		t.Errorf("expected %q, got %q", want, f.session.Status())
	}
}

func TestStopRecorderFailure(t *testing.T) {
	f := newFixture(t, &fakeBackend{}, silence(16000, time.Second), &failingRecorder{})

	f.session.Start(context.Background())
	if _, err := f.session.Stop(context.Background()); err == nil {
		t.Fatal("expected stop error")
	}
	if f.session.Status() != StatusErrorStopping {
		t.Errorf("expected %q, got %q", StatusErrorStopping, f.session.Status())
	}
	if f.session.State() != Idle {
		t.Errorf("expected idle after failed stop, got %s", f.session.State())
	}
	calls := f.backend.callLog()
	if calls[len(calls)-1] != "stop:sess-1" {
		t.Errorf("expected backend session released, got %v", calls)
	}
}

func TestStopWhileIdleIsNoop(t *testing.T) {
	f := newFixture(t, &fakeBackend{}, silence(16000, time.Second), nil)

	result, err := f.session.Stop(context.Background())
	if result != nil || err != nil {
		t.Errorf("expected no-op, got %+v %v", result, err)
	}
	if f.session.Status() != StatusIdle {
		t.Errorf("expected status unchanged, got %q", f.session.Status())
	}
	if len(f.status.statuses) != 0 {
		t.Errorf("expected no status callbacks, got %v", f.status.statuses)
	}
	if len(f.backend.callLog()) != 0 {
		t.Errorf("expected no backend calls, got %v", f.backend.callLog())
	}
}

func TestStartFailureRollsBack(t *testing.T) {
	src := &trackingSource{rate: 16000}
	f := newFixture(t, &fakeBackend{startStatus: http.StatusInternalServerError},
		func() (capture.Source, error) { return src, nil }, nil)

	err := f.session.Start(context.Background())
	if err == nil {
		t.Fatal("expected start error")
	}
	if f.session.State() != Idle {
		t.Errorf("expected idle, got %s", f.session.State())
	}
	if f.session.Status() != StatusErrorStarting {
		t.Errorf("expected %q, got %q", StatusErrorStarting, f.session.Status())
	}
	if !src.closed {
		t.Error("expected capture source released")
	}

	// A later start is allowed
	f.backend.startStatus = 0
	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	f.session.Stop(context.Background())
}

func TestStartOpenFailure(t *testing.T) {
	src := &trackingSource{openErr: fmt.Errorf("no microphone")}
	f := newFixture(t, &fakeBackend{}, func() (capture.Source, error) { return src, nil }, nil)

	if err := f.session.Start(context.Background()); err == nil {
		t.Fatal("expected start error")
	}
	if len(f.backend.callLog()) != 0 {
		t.Errorf("expected no backend session, got %v", f.backend.callLog())
	}
}

func TestStartWhileRunningFails(t *testing.T) {
	f := newFixture(t, &fakeBackend{}, silence(16000, time.Second), nil)

	f.session.Start(context.Background())
	defer f.session.Stop(context.Background())

	if err := f.session.Start(context.Background()); err == nil {
		t.Error("expected error starting twice")
	}
}

func TestStaleResponseKeepsStatus(t *testing.T) {
	release := make(chan struct{})
	arrived := make(chan struct{}, 1)
	dub := base64.StdEncoding.EncodeToString([]byte("late"))

	backend := &fakeBackend{
		chunkReply: func(n int) (int, string) {
			arrived <- struct{}{}
			<-release
			return http.StatusOK, fmt.Sprintf(`{"text":"late","translated_text":"late","audio_b64":%q}`, dub)
		},
	}
	f := newFixture(t, backend, silence(8000, 2100*time.Millisecond), nil)
	defer close(release)

	f.session.Start(context.Background())
	<-arrived

	if _, err := f.session.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	release <- struct{}{}

	// Stale audio still plays
	waitFor(t, "stale audio enqueued", func() bool { return f.queue.len() == 1 })
	time.Sleep(50 * time.Millisecond)

	if f.session.Status() != StatusStopped {
		t.Errorf("stale response changed status to %q", f.session.Status())
	}
	if f.session.Transcript().Text != "" {
		t.Errorf("stale response changed transcript to %q", f.session.Transcript().Text)
	}
}

func TestFlushedClipsSentAfterStop(t *testing.T) {
	release := make(chan struct{})
	arrived := make(chan struct{}, 1)

	backend := &fakeBackend{
		chunkReply: func(n int) (int, string) {
			if n == 1 {
				arrived <- struct{}{}
				<-release
			}
			return http.StatusOK, `{"text":"","translated_text":""}`
		},
	}
	// 4.2s at 16kHz flushes two clips; the second waits behind the first request
	f := newFixture(t, backend, silence(16000, 4200*time.Millisecond), nil)
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	defer unblock()

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	<-arrived
	waitFor(t, "second clip flushed", func() bool {
		return testutil.ToFloat64(f.session.config.Metrics.ClipsFlushed) == 2
	})

	if _, err := f.session.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if n := f.backend.chunkCount(); n != 1 {
		t.Fatalf("expected 1 chunk before release, got %d", n)
	}
	unblock()

	waitFor(t, "queued clip submitted", func() bool { return f.backend.chunkCount() == 2 })
	time.Sleep(50 * time.Millisecond)

	if n := f.backend.chunkCount(); n != 2 {
		t.Errorf("expected exactly 2 chunks, got %d", n)
	}
	if st := f.session.Stats(); st.ClipsSent != 2 {
		t.Errorf("expected 2 clips sent, got %+v", st)
	}
	if f.session.Status() != StatusStopped {
		t.Errorf("late chunk changed status to %q", f.session.Status())
	}
}

// pushSource hands blocks off without waiting on the reader, counting the
// ones it could not deliver, as a device callback does
type pushSource struct {
	rate    int
	blocks  int
	dropped atomic.Int64
}

func (s *pushSource) Open() error     { return nil }
func (s *pushSource) SampleRate() int { return s.rate }
func (s *pushSource) Close() error    { return nil }

func (s *pushSource) Run(ctx context.Context, out chan<- []float32) error {
	for i := 0; i < s.blocks; i++ {
		select {
		case out <- make([]float32, capture.BlockSize):
		default:
			s.dropped.Add(1)
		}
		select {
		case <-time.After(2 * time.Millisecond):
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

func TestStalledBackendDoesNotBlockCapture(t *testing.T) {
	release := make(chan struct{})
	backend := &fakeBackend{
		chunkReply: func(n int) (int, string) {
			<-release
			return http.StatusOK, `{"text":"","translated_text":""}`
		},
	}

	// 96 blocks of 4096 samples at 16kHz make 12 clips
	src := &pushSource{rate: 16000, blocks: 96}
	f := newFixture(t, backend, func() (capture.Source, error) { return src, nil }, nil)
	f.session.config.BlockBuffer = 4
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	defer unblock()

	if err := f.session.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	m := f.session.config.Metrics
	waitFor(t, "all clips flushed", func() bool { return testutil.ToFloat64(m.ClipsFlushed) == 12 })

	if n := src.dropped.Load(); n != 0 {
		t.Errorf("capture dropped %d blocks while the backend was stalled", n)
	}
	waitFor(t, "first chunk in flight", func() bool { return f.backend.chunkCount() == 1 })
	waitFor(t, "backlog of 11", func() bool { return testutil.ToFloat64(m.ClipsPending) == 11 })
	if n := f.backend.chunkCount(); n != 1 {
		t.Errorf("expected only the first chunk in flight, got %d", n)
	}

	unblock()
	if _, err := f.session.Stop(context.Background()); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	waitFor(t, "every clip submitted", func() bool { return f.backend.chunkCount() == 12 })
	waitFor(t, "backlog drained", func() bool { return testutil.ToFloat64(m.ClipsPending) == 0 })
}

func TestClipQueue(t *testing.T) {
	q := newClipQueue()
	for i := int64(1); i <= 3; i++ {
		if n := q.push(pendingClip{clientTS: i}); n != int(i) {
			t.Errorf("expected backlog %d, got %d", i, n)
		}
	}
	q.close()

	for want := int64(1); want <= 3; want++ {
		p, remaining, ok := q.pop()
		if !ok || p.clientTS != want {
			t.Fatalf("expected clip %d, got %d (ok=%v)", want, p.clientTS, ok)
		}
		if remaining != int(3-want) {
			t.Errorf("expected %d remaining, got %d", 3-want, remaining)
		}
	}
	if _, _, ok := q.pop(); ok {
		t.Error("expected closed empty queue to end")
	}
}

func TestClipQueuePopWaitsForPush(t *testing.T) {
	q := newClipQueue()
	got := make(chan int64, 1)
	go func() {
		p, _, _ := q.pop()
		got <- p.clientTS
	}()

	time.Sleep(20 * time.Millisecond)
	q.push(pendingClip{clientTS: 7})

	select {
	case ts := <-got:
		if ts != 7 {
			t.Errorf("expected clip 7, got %d", ts)
		}
	case <-time.After(time.Second):
		t.Fatal("pop did not wake on push")
	}
}

func TestSetLanguages(t *testing.T) {
	f := newFixture(t, &fakeBackend{}, silence(16000, time.Second), nil)

	if err := f.session.SetLanguages("es", "ja"); err != nil {
		t.Fatalf("set languages failed: %v", err)
	}
	if src, tgt := f.session.Languages(); src != "es" || tgt != "ja" {
		t.Errorf("expected es -> ja, got %s -> %s", src, tgt)
	}
	if err := f.session.SetLanguages("xx", "hi"); err == nil {
		t.Error("expected unsupported language error")
	}

	f.session.Start(context.Background())
	if err := f.session.SetLanguages("en", "hi"); err == nil {
		t.Error("expected error changing languages while running")
	}
	f.session.Stop(context.Background())
}

func TestNewValidatesConfig(t *testing.T) {
	client, _ := dubbing.NewClient(dubbing.Config{})
	src := silence(16000, time.Second)

	tests := []struct {
		name   string
		config Config
	}{
		{"no backend", Config{NewSource: src, Queue: &fakeQueue{}}},
		{"no source", Config{Backend: client, Queue: &fakeQueue{}}},
		{"no queue", Config{Backend: client, NewSource: src}},
		{"bad language", Config{Backend: client, NewSource: src, Queue: &fakeQueue{}, TargetLang: "xx"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.config); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestTransitions(t *testing.T) {
	s := &Session{state: Idle}

	if err := s.transition(Idle, Running); err == nil {
		t.Error("expected Idle -> Running to be rejected")
	}
	if err := s.transition(Running, Stopping); err == nil {
		t.Error("expected transition from wrong current state to be rejected")
	}

	for _, step := range [][2]State{{Idle, Starting}, {Starting, Running}, {Running, Stopping}, {Stopping, Idle}} {
		if err := s.transition(step[0], step[1]); err != nil {
			t.Errorf("expected %s -> %s to succeed: %v", step[0], step[1], err)
		}
	}
}

func TestStateString(t *testing.T) {
	if Stopping.String() != "stopping" || State(9).String() != "state(9)" {
		t.Error("unexpected state names")
	}
}

func TestStatusStrings(t *testing.T) {
	tests := map[string]string{
		StatusIdle:          "Idle",
		StatusErrorChunk:    "Error (chunk)",
		StatusRendering:     "Rendering final video (merge audio + captions)...",
		StatusSavedRaw("x"): "Saved raw video: x",
	}
	for got, want := range tests {
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}

// writeVideo creates a stand-in recording
func writeVideo(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "session.webm")
	if err := os.WriteFile(path, []byte("webm-bytes"), 0644); err != nil {
		t.Fatalf("failed to write video: %v", err)
	}
	return path
}

type failingRecorder struct{}

func (failingRecorder) Start(ctx context.Context) error { return nil }
func (failingRecorder) Stop(ctx context.Context) (*video.Recording, error) {
	return nil, fmt.Errorf("camera vanished")
}

// trackingSource is a capture source that records its lifecycle
type trackingSource struct {
	rate    int
	openErr error
	closed  bool
}

func (s *trackingSource) Open() error     { return s.openErr }
func (s *trackingSource) SampleRate() int { return s.rate }
func (s *trackingSource) Run(ctx context.Context, out chan<- []float32) error {
	<-ctx.Done()
	return nil
}
func (s *trackingSource) Close() error { s.closed = true; return nil }
