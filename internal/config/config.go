// ABOUTME: Layered client configuration
// ABOUTME: Defaults, then a YAML file, then .env and environment, then command-line flags
package config

import (
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/livedub/livedub-go/pkg/audio/output"
	"github.com/livedub/livedub-go/pkg/dubbing"
	"gopkg.in/yaml.v3"
)

// Environment variables. EnvConfigFile names the YAML file, the rest overlay it.
const (
	EnvConfigFile = "LIVEDUB_CONFIG"
	EnvBaseURL    = "LIVEDUB_API_BASE_URL"
	EnvSourceLang = "LIVEDUB_SOURCE_LANG"
	EnvTargetLang = "LIVEDUB_TARGET_LANG"
	EnvBurnSubs   = "LIVEDUB_BURN_SUBS"
	EnvOverlay    = "LIVEDUB_OVERLAY_ADDR"
)

// Config represents the complete client configuration
type Config struct {
	API       APIConfig       `yaml:"api"`
	Session   SessionConfig   `yaml:"session"`
	Audio     AudioConfig     `yaml:"audio"`
	Video     VideoConfig     `yaml:"video"`
	Overlay   OverlayConfig   `yaml:"overlay"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Output    OutputConfig    `yaml:"output"`
}

// APIConfig locates the dubbing backend
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig holds per-session options
type SessionConfig struct {
	SourceLang string `yaml:"source_lang"`
	TargetLang string `yaml:"target_lang"`
	BurnSubs   bool   `yaml:"burn_subs"`
}

// AudioConfig selects capture and playback devices
type AudioConfig struct {
	CaptureRate int    `yaml:"capture_rate"` // 0 uses the device rate
	InputFile   string `yaml:"input_file"`   // dub a file instead of the microphone
	Backend     string `yaml:"backend"`      // oto or malgo
	OutputRate  int    `yaml:"output_rate"`
	Volume      int    `yaml:"volume"`
}

// VideoConfig controls the full-session recording
type VideoConfig struct {
	Enabled     bool   `yaml:"enabled"`
	FFmpeg      string `yaml:"ffmpeg"`
	InputFormat string `yaml:"input_format"`
	Device      string `yaml:"device"`
	AudioFormat string `yaml:"audio_format"`
	AudioDevice string `yaml:"audio_device"`
	File        string `yaml:"file"` // upload an existing recording instead
}

// OverlayConfig controls the caption overlay server
type OverlayConfig struct {
	Addr string `yaml:"addr"` // empty disables the overlay
}

// DiscoveryConfig controls mDNS backend discovery
type DiscoveryConfig struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

// OutputConfig controls where rendered outputs are saved
type OutputConfig struct {
	DownloadDir string `yaml:"download_dir"` // empty disables downloads
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: dubbing.DefaultBaseURL,
			Timeout: 120 * time.Second,
		},
		Session: SessionConfig{
			SourceLang: dubbing.DefaultSourceLang,
			TargetLang: dubbing.DefaultTargetLang,
			BurnSubs:   true,
		},
		Audio: AudioConfig{
			Backend:    output.BackendOto,
			OutputRate: 48000,
			Volume:     100,
		},
		Video: VideoConfig{
			FFmpeg: "ffmpeg",
		},
		Discovery: DiscoveryConfig{
			Timeout: 3 * time.Second,
		},
	}
}

// Load builds a configuration from defaults, an optional YAML file and
// the environment. An empty path skips the file layer.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	if err := loadDotEnv(envFiles...); err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadDotEnv loads .env files without overriding variables already set.
// A missing file is not an error.
func loadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overlays LIVEDUB_* environment variables onto c
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvBaseURL); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv(EnvSourceLang); v != "" {
		c.Session.SourceLang = v
	}
	if v := os.Getenv(EnvTargetLang); v != "" {
		c.Session.TargetLang = v
	}
	if v := os.Getenv(EnvBurnSubs); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvBurnSubs, v, err)
		}
		c.Session.BurnSubs = b
	}
	if v := os.Getenv(EnvOverlay); v != "" {
		c.Overlay.Addr = v
	}
	return nil
}

// RegisterFlags binds command-line flags to c. Flag defaults are the
// values already loaded, so flags override every other layer.
func (c *Config) RegisterFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.API.BaseURL, "api", c.API.BaseURL, "Dubbing backend base URL")
	fs.DurationVar(&c.API.Timeout, "timeout", c.API.Timeout, "HTTP request timeout")
	fs.StringVar(&c.Session.SourceLang, "source", c.Session.SourceLang, "Source language code")
	fs.StringVar(&c.Session.TargetLang, "target", c.Session.TargetLang, "Target language code")
	fs.BoolVar(&c.Session.BurnSubs, "burn-subs", c.Session.BurnSubs, "Burn subtitles into the final video")
	fs.IntVar(&c.Audio.CaptureRate, "capture-rate", c.Audio.CaptureRate, "Microphone sample rate (0 = device default)")
	fs.StringVar(&c.Audio.InputFile, "input", c.Audio.InputFile, "Dub an audio file instead of the microphone")
	fs.StringVar(&c.Audio.Backend, "audio-backend", c.Audio.Backend, "Playback backend (oto or malgo)")
	fs.IntVar(&c.Audio.Volume, "volume", c.Audio.Volume, "Playback volume (0-100)")
	fs.BoolVar(&c.Video.Enabled, "video", c.Video.Enabled, "Record the session with ffmpeg")
	fs.StringVar(&c.Video.Device, "video-device", c.Video.Device, "Camera device for ffmpeg")
	fs.StringVar(&c.Video.File, "video-file", c.Video.File, "Upload an existing recording at stop")
	fs.StringVar(&c.Overlay.Addr, "overlay", c.Overlay.Addr, "Caption overlay listen address (empty = disabled)")
	fs.BoolVar(&c.Discovery.Enabled, "discover", c.Discovery.Enabled, "Find the backend via mDNS")
	fs.StringVar(&c.Output.DownloadDir, "download-dir", c.Output.DownloadDir, "Save rendered outputs here")
}

// Validate performs validation of the configuration
func (c *Config) Validate() error {
	if err := c.API.Validate(); err != nil {
		return fmt.Errorf("api config: %w", err)
	}
	if err := c.Session.Validate(); err != nil {
		return fmt.Errorf("session config: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio config: %w", err)
	}
	if c.Video.Enabled && c.Video.File != "" {
		return fmt.Errorf("video config: enabled and file are mutually exclusive")
	}
	if c.Discovery.Enabled && c.Discovery.Timeout <= 0 {
		return fmt.Errorf("discovery config: timeout must be positive, got %v", c.Discovery.Timeout)
	}
	return nil
}

// Validate validates API configuration
func (a *APIConfig) Validate() error {
	u, err := url.Parse(a.BaseURL)
	if err != nil {
		return fmt.Errorf("invalid base_url %q: %w", a.BaseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base_url must be http or https, got %q", a.BaseURL)
	}
	if u.Host == "" {
		return fmt.Errorf("base_url has no host: %q", a.BaseURL)
	}
	if a.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", a.Timeout)
	}
	return nil
}

// Validate validates session configuration
func (s *SessionConfig) Validate() error {
	if !dubbing.ValidLanguage(s.SourceLang) {
		return fmt.Errorf("unsupported source_lang %q", s.SourceLang)
	}
	if !dubbing.ValidLanguage(s.TargetLang) {
		return fmt.Errorf("unsupported target_lang %q", s.TargetLang)
	}
	return nil
}

// Validate validates audio configuration
func (a *AudioConfig) Validate() error {
	if a.Backend != output.BackendOto && a.Backend != output.BackendMalgo {
		return fmt.Errorf("backend must be %s or %s, got %q", output.BackendOto, output.BackendMalgo, a.Backend)
	}
	if a.CaptureRate < 0 {
		return fmt.Errorf("capture_rate cannot be negative, got %d", a.CaptureRate)
	}
	if a.OutputRate < 8000 {
		return fmt.Errorf("output_rate must be at least 8000, got %d", a.OutputRate)
	}
	if a.Volume < 0 || a.Volume > 100 {
		return fmt.Errorf("volume must be between 0 and 100, got %d", a.Volume)
	}
	return nil
}
