// ABOUTME: Echo dubbing backend for local runs and tests
// ABOUTME: Serves the session, chunk and video endpoints and echoes audio back as dubbed speech
package echo

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/livedub/livedub-go/internal/discovery"
	"github.com/livedub/livedub-go/pkg/audio"
	"github.com/livedub/livedub-go/pkg/audio/decode"
	"github.com/livedub/livedub-go/pkg/dubbing"
	"golang.org/x/sync/errgroup"
)

// DefaultSilenceThreshold is the RMS level below which a chunk has no speech
const DefaultSilenceThreshold = 0.01

// maxChunkBytes bounds a single /api/chunk upload
const maxChunkBytes = 32 << 20

// Config holds echo backend configuration
type Config struct {
	Addr       string
	Name       string
	StorageDir string
	EnableMDNS bool

	// SilenceThreshold is the RMS level (0-1) treated as silence
	SilenceThreshold float64
}

// Server is the echo backend
type Server struct {
	config Config
	store  *Store
	mux    *http.ServeMux

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// New creates an echo backend. Storage defaults to a temp directory.
func New(config Config) (*Server, error) {
	if config.Addr == "" {
		config.Addr = ":8000"
	}
	if config.Name == "" {
		config.Name = "livedub-echo"
	}
	if config.SilenceThreshold == 0 {
		config.SilenceThreshold = DefaultSilenceThreshold
	}
	if config.StorageDir == "" {
		config.StorageDir = filepath.Join(os.TempDir(), "livedub-echo")
	}
	if err := os.MkdirAll(filepath.Join(config.StorageDir, "video"), 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage: %w", err)
	}

	s := &Server{
		config: config,
		store:  NewStore(),
		mux:    http.NewServeMux(),
		ready:  make(chan struct{}),
	}

	s.mux.HandleFunc("POST /api/session/start", s.handleStart)
	s.mux.HandleFunc("POST /api/session/stop", s.handleStop)
	s.mux.HandleFunc("POST /api/chunk", s.handleChunk)
	s.mux.HandleFunc("POST /api/video/upload", s.handleUpload)
	s.mux.HandleFunc("POST /api/video/render", s.handleRender)
	s.mux.HandleFunc("GET /api/health/translate", s.handleHealth)
	s.mux.Handle("GET /files/", http.StripPrefix("/files/", http.FileServer(http.Dir(config.StorageDir))))

	return s, nil
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Store returns the session store
func (s *Server) Store() *Store {
	return s.store
}

// Addr returns the listen address once Run has bound it
func (s *Server) Addr() string {
	<-s.ready
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.config.Addr)
	if err != nil {
		close(s.ready)
		return fmt.Errorf("failed to listen on %s: %w", s.config.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	close(s.ready)

	log.Printf("Echo backend %s listening on %s (storage %s)", s.config.Name, ln.Addr(), s.config.StorageDir)

	if s.config.EnableMDNS {
		adv, err := discovery.Advertise(s.config.Name, ln.Addr().(*net.TCPAddr).Port, "http")
		if err != nil {
			log.Printf("Failed to start mDNS advertisement: %v", err)
		} else {
			defer adv.Close()
		}
	}

	httpServer := &http.Server{Handler: s.mux}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	log.Printf("Echo backend stopped")
	return err
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id := s.store.Create()
	log.Printf("session.start sid=%s", id)
	writeJSON(w, http.StatusOK, dubbing.StartResponse{SessionID: id})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	id := r.FormValue("session_id")
	s.store.Delete(id)
	log.Printf("session.stop sid=%s", id)
	writeJSON(w, http.StatusOK, dubbing.StopResponse{OK: true})
}

func (s *Server) handleChunk(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxChunkBytes)

	id := r.FormValue("session_id")
	if !s.store.Exists(id) {
		writeError(w, http.StatusBadRequest, "invalid session")
		return
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio file required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read audio: %v", err))
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty audio chunk")
		return
	}

	pcm, err := decode.DecodeWAV(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("ASR failed: %v", err))
		return
	}

	clientTS, _ := strconv.ParseInt(r.FormValue("client_ts"), 10, 64)
	tgt := r.FormValue("target_lang")
	dur := pcm.Duration()

	resp := dubbing.ChunkResponse{ClientTS: clientTS}
	level := rms(pcm)
	if level >= s.config.SilenceThreshold {
		resp.Text = fmt.Sprintf("speech %.1fs level %.2f", dur.Seconds(), level)
		resp.TranslatedText = fmt.Sprintf("[%s] %s", tgt, resp.Text)
		resp.AudioB64 = base64.StdEncoding.EncodeToString(data)
		resp.MIME = "audio/wav"
	}

	start, end, ok := s.store.AddChunk(id, dur, resp.Text, resp.TranslatedText)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid session")
		return
	}

	log.Printf("chunk sid=%s bytes=%d dur=%v span=%d-%dms text=%q", id, len(data), dur, start, end, resp.Text)
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	id := r.FormValue("session_id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "session_id required")
		return
	}

	file, header, err := r.FormFile("video")
	if err != nil {
		writeError(w, http.StatusBadRequest, "video file required")
		return
	}
	defer file.Close()

	ext := filepath.Ext(header.Filename)
	if ext == "" {
		ext = ".webm"
	}
	rel := filepath.Join("video", fmt.Sprintf("%s_%d%s", id, time.Now().UnixMilli(), ext))
	path := filepath.Join(s.config.StorageDir, rel)

	if err := copyToFile(path, file); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to save video: %v", err))
		return
	}
	s.store.SetVideo(id, path)

	log.Printf("video.saved sid=%s path=%s", id, path)
	writeJSON(w, http.StatusOK, dubbing.UploadResponse{Saved: path, URL: fileURL(rel)})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	id := r.FormValue("session_id")
	sess, ok := s.store.Snapshot(id)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid session")
		return
	}
	if sess.VideoPath == "" {
		writeError(w, http.StatusBadRequest, "video not uploaded for this session")
		return
	}
	if len(sess.Segments) == 0 {
		writeError(w, http.StatusBadRequest, "no audio segments to render")
		return
	}

	burn := r.FormValue("burn_subs") != "0"
	resp, err := s.render(sess)
	if err != nil {
		log.Printf("render.failed sid=%s err=%v", id, err)
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("render failed: %v", err))
		return
	}

	log.Printf("render.done sid=%s final=%s burn=%v", id, resp.FinalPath, burn)
	writeJSON(w, http.StatusOK, resp)
}

// render writes the SRT and a final video next to the upload.
// The echo backend does not mux audio, so the final video is a copy.
func (s *Server) render(sess Session) (*dubbing.RenderResponse, error) {
	base := fmt.Sprintf("%s_final", sess.ID)
	srtRel := filepath.Join("video", base+".srt")
	finalRel := filepath.Join("video", base+filepath.Ext(sess.VideoPath))

	srtFile, err := os.Create(filepath.Join(s.config.StorageDir, srtRel))
	if err != nil {
		return nil, err
	}
	if err := WriteSRT(srtFile, sess.Segments, true); err != nil {
		srtFile.Close()
		return nil, err
	}
	if err := srtFile.Close(); err != nil {
		return nil, err
	}

	src, err := os.Open(sess.VideoPath)
	if err != nil {
		return nil, err
	}
	defer src.Close()
	if err := copyToFile(filepath.Join(s.config.StorageDir, finalRel), src); err != nil {
		return nil, err
	}

	return &dubbing.RenderResponse{
		FinalPath: filepath.Join(s.config.StorageDir, finalRel),
		SRTPath:   filepath.Join(s.config.StorageDir, srtRel),
		FinalURL:  fileURL(finalRel),
		SRTURL:    fileURL(srtRel),
	}, nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	src, tgt := r.URL.Query().Get("src"), r.URL.Query().Get("tgt")
	if src == "" {
		src = dubbing.DefaultSourceLang
	}
	if tgt == "" {
		tgt = dubbing.DefaultTargetLang
	}
	ok := dubbing.ValidLanguage(src) && dubbing.ValidLanguage(tgt)
	writeJSON(w, http.StatusOK, dubbing.TranslateHealth{"echo": {OK: ok}})
}

// rms returns the root mean square level of pcm in [0, 1]
func rms(pcm audio.PCM) float64 {
	if len(pcm.Samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range pcm.Samples {
		f := float64(audio.SampleToFloat(v))
		sum += f * f
	}
	return math.Sqrt(sum / float64(len(pcm.Samples)))
}

func copyToFile(path string, r io.Reader) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fileURL(rel string) string {
	return "/files/" + filepath.ToSlash(rel)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
