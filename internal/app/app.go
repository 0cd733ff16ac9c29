// ABOUTME: Dubbing client application orchestration
// ABOUTME: Coordinates backend, capture session, playback, overlay and UI updates
package app

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"time"

	"github.com/livedub/livedub-go/internal/config"
	"github.com/livedub/livedub-go/internal/discovery"
	"github.com/livedub/livedub-go/internal/download"
	"github.com/livedub/livedub-go/internal/metrics"
	"github.com/livedub/livedub-go/internal/overlay"
	"github.com/livedub/livedub-go/internal/session"
	"github.com/livedub/livedub-go/internal/ui"
	"github.com/livedub/livedub-go/internal/version"
	"github.com/livedub/livedub-go/pkg/audio/output"
	"github.com/livedub/livedub-go/pkg/capture"
	"github.com/livedub/livedub-go/pkg/dubbing"
	"github.com/livedub/livedub-go/pkg/playback"
	"github.com/livedub/livedub-go/pkg/video"
)

// Config holds application configuration
type Config struct {
	Settings *config.Config

	// Output overrides the configured playback backend
	Output output.Output
	// NewSource overrides the configured capture source
	NewSource func() (capture.Source, error)
	// Recorder overrides the configured video recorder
	Recorder video.Recorder

	// OnUpdate receives display updates, typically forwarded to the TUI
	OnUpdate func(ui.StatusMsg)
}

// App represents the dubbing client application
type App struct {
	config   Config
	settings *config.Config

	client     *dubbing.Client
	out        output.Output
	sequencer  *playback.Sequencer
	session    *session.Session
	overlay    *overlay.Server
	downloader *download.Downloader
	metrics    *metrics.Metrics
}

// New builds the application. When discovery is enabled the backend
// is located over mDNS before anything else is created.
func New(ctx context.Context, cfg Config) (*App, error) {
	if cfg.Settings == nil {
		cfg.Settings = config.Default()
	}
	settings := cfg.Settings

	if settings.Discovery.Enabled {
		baseURL, err := discoverBackend(ctx, settings.Discovery.Timeout)
		if err != nil {
			return nil, err
		}
		settings.API.BaseURL = baseURL
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	client, err := dubbing.NewClient(dubbing.Config{
		BaseURL:   settings.API.BaseURL,
		Timeout:   settings.API.Timeout,
		UserAgent: version.UserAgent(),
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		config:   cfg,
		settings: settings,
		client:   client,
		metrics:  metrics.New(),
	}

	a.out = cfg.Output
	if a.out == nil {
		a.out = output.New(settings.Audio.Backend)
	}
	player, err := playback.NewDecodingPlayer(a.out, settings.Audio.OutputRate, 2)
	if err != nil {
		return nil, err
	}
	a.out.SetVolume(settings.Audio.Volume)
	log.Printf("Audio output initialized: %s %dHz", settings.Audio.Backend, settings.Audio.OutputRate)

	a.sequencer = playback.NewSequencer(playback.Config{
		Player: player,
		OnDone: a.onPlaybackDone,
	})

	if settings.Output.DownloadDir != "" {
		a.downloader, err = download.NewDownloader(settings.Output.DownloadDir, nil)
		if err != nil {
			a.out.Close()
			return nil, err
		}
	}

	newSource := cfg.NewSource
	if newSource == nil {
		newSource = sourceFactory(settings.Audio)
	}
	recorder := cfg.Recorder
	if recorder == nil {
		recorder = recorderFor(settings.Video)
	}

	a.session, err = session.New(session.Config{
		Backend:      client,
		NewSource:    newSource,
		Recorder:     recorder,
		Queue:        a.sequencer,
		SourceLang:   settings.Session.SourceLang,
		TargetLang:   settings.Session.TargetLang,
		BurnSubs:     settings.Session.BurnSubs,
		OnStatus:     a.onStatus,
		OnTranscript: a.onTranscript,
		OnLinks:      a.onLinks,
		Metrics:      a.metrics,
	})
	if err != nil {
		a.out.Close()
		return nil, err
	}

	if settings.Overlay.Addr != "" {
		a.overlay = overlay.New(overlay.Config{Addr: settings.Overlay.Addr, Metrics: a.metrics})
		if err := a.overlay.Start(); err != nil {
			a.out.Close()
			return nil, err
		}
	}

	a.update(ui.StatusMsg{
		BackendURL: client.BaseURL(),
		Status:     session.StatusIdle,
		Volume:     settings.Audio.Volume,
	})

	return a, nil
}

// discoverBackend browses mDNS for the first dubbing backend
func discoverBackend(ctx context.Context, timeout time.Duration) (string, error) {
	log.Printf("Starting backend discovery...")

	ctx, cancel := context.WithTimeout(ctx, 3*timeout)
	defer cancel()

	backend, err := discovery.NewBrowser(timeout).Discover(ctx)
	if err != nil {
		return "", err
	}
	return backend.BaseURL(), nil
}

// sourceFactory returns the capture source constructor for the settings
func sourceFactory(cfg config.AudioConfig) func() (capture.Source, error) {
	if cfg.InputFile != "" {
		return func() (capture.Source, error) {
			return capture.NewFileSource(cfg.InputFile, true), nil
		}
	}
	return func() (capture.Source, error) {
		return capture.NewMicrophone(cfg.CaptureRate), nil
	}
}

// recorderFor returns the configured recorder, or nil when video is off
func recorderFor(cfg config.VideoConfig) video.Recorder {
	switch {
	case cfg.File != "":
		return video.NewFileRecorder(cfg.File)
	case cfg.Enabled:
		return video.NewFFmpegRecorder(video.FFmpegConfig{
			Binary:      cfg.FFmpeg,
			InputFormat: cfg.InputFormat,
			VideoDevice: cfg.Device,
			AudioFormat: cfg.AudioFormat,
			AudioDevice: cfg.AudioDevice,
		})
	}
	return nil
}

// Session returns the capture session
func (a *App) Session() *session.Session {
	return a.session
}

// Metrics returns the application metrics
func (a *App) Metrics() *metrics.Metrics {
	return a.metrics
}

// Check probes the backend translation providers for the configured pair
func (a *App) Check(ctx context.Context) (dubbing.TranslateHealth, error) {
	src, tgt := a.session.Languages()
	health, err := a.client.TranslateHealth(ctx, src, tgt)
	if err != nil {
		return nil, err
	}
	for name, p := range health {
		log.Printf("Translate provider %s: ok=%v", name, p.OK)
	}
	if !health.Healthy() {
		return health, fmt.Errorf("no translation provider available for %s -> %s", src, tgt)
	}
	return health, nil
}

// Start begins a capture session
func (a *App) Start(ctx context.Context) error {
	return a.session.Start(ctx)
}

// Stop ends the capture session and downloads rendered outputs
func (a *App) Stop(ctx context.Context) (*session.Result, error) {
	result, err := a.session.Stop(ctx)
	if result == nil || a.downloader == nil {
		return result, err
	}

	for _, u := range []string{result.FinalURL, result.SRTURL} {
		if u == "" {
			continue
		}
		path, dlErr := a.downloader.Download(ctx, u)
		if dlErr != nil {
			log.Printf("Failed to download %s: %v", u, dlErr)
			continue
		}
		log.Printf("Saved output: %s", path)
		a.update(ui.StatusMsg{SavedPath: path})
	}
	return result, err
}

// HandleControls processes TUI actions until ctx is done or the user quits
func (a *App) HandleControls(ctx context.Context, controls *ui.Controls) {
	for {
		select {
		case action := <-controls.Actions:
			a.handleAction(ctx, action)
		case vol := <-controls.Changes:
			log.Printf("Volume change: %d%%, muted=%v", vol.Volume, vol.Muted)
			a.out.SetVolume(vol.Volume)
			a.out.SetMuted(vol.Muted)
		case <-ctx.Done():
			return
		}
	}
}

func (a *App) handleAction(ctx context.Context, action ui.Action) {
	switch action.Kind {
	case ui.ActionStart:
		if err := a.Start(ctx); err != nil {
			log.Printf("Start failed: %v", err)
		}
	case ui.ActionStop:
		if _, err := a.Stop(ctx); err != nil {
			log.Printf("Stop failed: %v", err)
		}
	case ui.ActionLanguages:
		if err := a.session.SetLanguages(action.SourceLang, action.TargetLang); err != nil {
			log.Printf("Language change rejected: %v", err)
			src, tgt := a.session.Languages()
			a.update(ui.StatusMsg{SourceLang: src, TargetLang: tgt})
			return
		}
		log.Printf("Languages: %s -> %s", action.SourceLang, action.TargetLang)
	}
}

// StatsLoop periodically publishes session and playback statistics
func (a *App) StatsLoop(ctx context.Context) {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	// Use a slower ticker for expensive runtime stats
	runtimeStatsTicker := time.NewTicker(2 * time.Second)
	defer runtimeStatsTicker.Stop()

	var lastGoroutines int
	var lastMemAlloc uint64

	for {
		select {
		case <-runtimeStatsTicker.C:
			var m runtime.MemStats
			runtime.ReadMemStats(&m)
			lastGoroutines = runtime.NumGoroutine()
			lastMemAlloc = m.Alloc

		case <-ticker.C:
			a.update(a.statsMsg(lastGoroutines, lastMemAlloc))

		case <-ctx.Done():
			return
		}
	}
}

func (a *App) statsMsg(goroutines int, memAlloc uint64) ui.StatusMsg {
	st := a.session.Stats()
	ps := a.sequencer.Stats()
	queued := a.sequencer.Len()
	a.metrics.SetPlaybackQueue(queued)

	return ui.StatusMsg{
		ClipsSent:   st.ClipsSent,
		Dubbed:      st.Dubbed,
		Played:      ps.Played,
		QueueLength: queued,
		Failed:      st.Failed + ps.Failed,
		Goroutines:  goroutines,
		MemAlloc:    memAlloc,
	}
}

// WaitPlayback blocks until queued dubbed audio has finished playing
func (a *App) WaitPlayback(ctx context.Context) error {
	return a.sequencer.Wait(ctx)
}

// Close stops any running session and releases devices
func (a *App) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if a.session.State() == session.Running {
		if _, err := a.Stop(ctx); err != nil {
			log.Printf("Error stopping session: %v", err)
		}
	}

	a.sequencer.Close()

	if a.overlay != nil {
		if err := a.overlay.Stop(ctx); err != nil {
			log.Printf("Error stopping overlay: %v", err)
		}
	}

	return a.out.Close()
}

func (a *App) onStatus(status string) {
	log.Printf("Status: %s", status)

	running := a.session.State() == session.Running
	msg := ui.StatusMsg{Status: status, Running: &running}
	if running {
		msg.SessionID = a.session.SessionID()
	}
	a.update(msg)

	if a.overlay != nil {
		a.overlay.Broadcast(overlay.Event{Type: overlay.EventStatus, Status: status})
	}
}

func (a *App) onTranscript(t session.Transcript) {
	if t.Text != "" {
		log.Printf("ASR: %s", t.Text)
		log.Printf("Translation: %s", t.Translation)
	}
	a.update(ui.StatusMsg{Transcript: &ui.TranscriptLine{Text: t.Text, Translation: t.Translation}})

	if a.overlay != nil {
		a.overlay.Broadcast(overlay.Event{Type: overlay.EventCaption, Text: t.Text, Translation: t.Translation})
	}
}

func (a *App) onLinks(l session.Links) {
	a.update(ui.StatusMsg{Links: &ui.OutputLinks{FinalURL: l.FinalURL, SRTURL: l.SRTURL, RawURL: l.RawURL}})

	if a.overlay != nil {
		a.overlay.Broadcast(overlay.Event{Type: overlay.EventLinks, FinalURL: l.FinalURL, SRTURL: l.SRTURL})
	}
}

func (a *App) onPlaybackDone(item *playback.Item, err error, elapsed time.Duration) {
	a.metrics.ObservePlayback(err, elapsed)
	a.metrics.SetPlaybackQueue(a.sequencer.Len())
}

func (a *App) update(msg ui.StatusMsg) {
	if a.config.OnUpdate != nil {
		a.config.OnUpdate(msg)
	}
}
