// ABOUTME: Prometheus metrics for the dubbing client
// ABOUTME: Tracks chunk round trips, playback, capture drops and session lifecycle
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Chunk outcomes
const (
	OutcomeDubbed   = "dubbed"
	OutcomeNoSpeech = "no_speech"
	OutcomeEmpty    = "empty"
	OutcomeError    = "error"
	OutcomeStale    = "stale"
)

// Metrics contains all Prometheus metrics for the client.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// Chunk metrics
	ClipsFlushed   prometheus.Counter
	ClipsPending   prometheus.Gauge
	ChunkResponses *prometheus.CounterVec
	ChunkLatency   prometheus.Histogram

	// Capture metrics
	CaptureDrops     prometheus.Counter
	DiscardedSamples prometheus.Counter

	// Playback metrics
	PlaybackItems    *prometheus.CounterVec
	PlaybackDuration prometheus.Histogram
	PlaybackQueue    prometheus.Gauge

	// Session metrics
	Sessions     *prometheus.CounterVec
	SessionState prometheus.Gauge
}

// New creates metrics on a private registry
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ClipsFlushed: factory.NewCounter(prometheus.CounterOpts{
			Name: "livedub_clips_flushed_total",
			Help: "Total number of audio clips produced by the segmenter",
		}),
		ClipsPending: factory.NewGauge(prometheus.GaugeOpts{
			Name: "livedub_clips_pending",
			Help: "Flushed clips waiting for an earlier chunk request to finish",
		}),
		ChunkResponses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "livedub_chunk_responses_total",
			Help: "Chunk round trips by outcome",
		}, []string{"outcome"}),
		ChunkLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "livedub_chunk_latency_seconds",
			Help:    "Chunk request round trip time",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~51s
		}),

		CaptureDrops: factory.NewCounter(prometheus.CounterOpts{
			Name: "livedub_capture_blocks_dropped_total",
			Help: "Capture blocks dropped because the segmenter fell behind",
		}),
		DiscardedSamples: factory.NewCounter(prometheus.CounterOpts{
			Name: "livedub_discarded_samples_total",
			Help: "Buffered samples discarded at session stop",
		}),

		PlaybackItems: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "livedub_playback_items_total",
			Help: "Dubbed audio items played by result",
		}, []string{"result"}),
		PlaybackDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "livedub_playback_duration_seconds",
			Help:    "Wall time spent playing each dubbed item",
			Buckets: prometheus.LinearBuckets(0.5, 0.5, 10), // 0.5s to 5s
		}),
		PlaybackQueue: factory.NewGauge(prometheus.GaugeOpts{
			Name: "livedub_playback_queue_length",
			Help: "Current number of items waiting to play",
		}),

		Sessions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "livedub_sessions_total",
			Help: "Session starts and stops by result",
		}, []string{"event"}),
		SessionState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "livedub_session_state",
			Help: "Current session state (0 idle, 1 starting, 2 running, 3 stopping)",
		}),
	}
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ClipFlushed records a clip handed to the submitter
func (m *Metrics) ClipFlushed() {
	if m == nil {
		return
	}
	m.ClipsFlushed.Inc()
}

// SetPendingClips records the submit backlog
func (m *Metrics) SetPendingClips(n int) {
	if m == nil {
		return
	}
	m.ClipsPending.Set(float64(n))
}

// ObserveChunk records one chunk round trip
func (m *Metrics) ObserveChunk(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ChunkResponses.WithLabelValues(outcome).Inc()
	m.ChunkLatency.Observe(elapsed.Seconds())
}

// AddCaptureDrops records dropped capture blocks
func (m *Metrics) AddCaptureDrops(n uint64) {
	if m == nil || n == 0 {
		return
	}
	m.CaptureDrops.Add(float64(n))
}

// AddDiscardedSamples records the unflushed tail dropped at stop
func (m *Metrics) AddDiscardedSamples(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.DiscardedSamples.Add(float64(n))
}

// ObservePlayback records one finished playback item
func (m *Metrics) ObservePlayback(err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	result := "played"
	if err != nil {
		result = "failed"
	}
	m.PlaybackItems.WithLabelValues(result).Inc()
	m.PlaybackDuration.Observe(elapsed.Seconds())
}

// SetPlaybackQueue records the current queue length
func (m *Metrics) SetPlaybackQueue(n int) {
	if m == nil {
		return
	}
	m.PlaybackQueue.Set(float64(n))
}

// SessionEvent counts a lifecycle event such as "started" or "start_failed"
func (m *Metrics) SessionEvent(event string) {
	if m == nil {
		return
	}
	m.Sessions.WithLabelValues(event).Inc()
}

// SetSessionState records the numeric session state
func (m *Metrics) SetSessionState(state int) {
	if m == nil {
		return
	}
	m.SessionState.Set(float64(state))
}
