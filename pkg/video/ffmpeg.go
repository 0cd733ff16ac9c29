// ABOUTME: FFmpeg-based camera and microphone recorder
// ABOUTME: Runs ffmpeg as a subprocess writing WebM and stops it gracefully
package video

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

// FFmpegConfig configures the ffmpeg recorder
type FFmpegConfig struct {
	// Binary is the ffmpeg executable, default "ffmpeg"
	Binary string
	// InputFormat is the capture demuxer (v4l2, avfoundation, dshow); empty picks one per OS
	InputFormat string
	// VideoDevice is the camera input, e.g. /dev/video0 or "0"
	VideoDevice string
	// AudioFormat and AudioDevice add a microphone track when set
	AudioFormat string
	AudioDevice string
	// Dir receives the recording; default is the system temp dir
	Dir string
	// StopTimeout bounds how long Stop waits after asking ffmpeg to quit
	StopTimeout time.Duration
}

// FFmpegRecorder records the camera with ffmpeg
type FFmpegRecorder struct {
	config FFmpegConfig

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	done   chan error
	path   string
	mime   string
	stderr *bytes.Buffer
}

// NewFFmpegRecorder creates a recorder, filling OS defaults
func NewFFmpegRecorder(config FFmpegConfig) *FFmpegRecorder {
	if config.Binary == "" {
		config.Binary = "ffmpeg"
	}
	if config.InputFormat == "" {
		config.InputFormat = defaultInputFormat()
	}
	if config.VideoDevice == "" {
		config.VideoDevice = defaultVideoDevice()
	}
	if config.Dir == "" {
		config.Dir = os.TempDir()
	}
	if config.StopTimeout <= 0 {
		config.StopTimeout = 10 * time.Second
	}
	return &FFmpegRecorder{config: config}
}

// SupportedEncoders lists the video encoders the ffmpeg binary offers
func (r *FFmpegRecorder) SupportedEncoders(ctx context.Context) (map[string]bool, error) {
	out, err := exec.CommandContext(ctx, r.config.Binary, "-hide_banner", "-encoders").Output()
	if err != nil {
		return nil, fmt.Errorf("failed to probe ffmpeg encoders: %w", err)
	}
	return parseEncoders(out), nil
}

// Start probes codecs and launches ffmpeg
func (r *FFmpegRecorder) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd != nil {
		return fmt.Errorf("recorder already running")
	}

	encoders, err := r.SupportedEncoders(ctx)
	if err != nil {
		return err
	}

	mimeType := PickSupportedMIME(PreferredMIMEs, func(m string) bool {
		enc := encoderForMIME(m)
		return enc == "" || encoders[enc]
	})
	log.Printf("Video MIME selected: %q", mimeType)

	f, err := os.CreateTemp(r.config.Dir, "livedub-session-*.webm")
	if err != nil {
		return fmt.Errorf("failed to create recording file: %w", err)
	}
	path := f.Name()
	f.Close()

	// Process lifetime is managed by Stop, not the start context
	cmd := exec.Command(r.config.Binary, r.buildArgs(mimeType, path)...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to open ffmpeg stdin: %w", err)
	}
	stderr := &bytes.Buffer{}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		os.Remove(path)
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	r.cmd = cmd
	r.stdin = stdin
	r.done = done
	r.path = path
	r.mime = mimeType
	if r.mime == "" {
		r.mime = "video/webm"
	}
	r.stderr = stderr

	log.Printf("Video recording started: %s (pid %d)", path, cmd.Process.Pid)
	return nil
}

// Stop asks ffmpeg to finish the file and waits for it to exit
func (r *FFmpegRecorder) Stop(ctx context.Context) (*Recording, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cmd == nil {
		return nil, fmt.Errorf("recorder not running")
	}
	defer func() {
		r.cmd = nil
		r.stdin = nil
	}()

	// "q" on stdin makes ffmpeg flush and write the container trailer
	if _, err := io.WriteString(r.stdin, "q\n"); err != nil {
		log.Printf("Warning: failed to signal ffmpeg: %v", err)
	}
	r.stdin.Close()

	timer := time.NewTimer(r.config.StopTimeout)
	defer timer.Stop()

	select {
	case err := <-r.done:
		if err != nil {
			log.Printf("ffmpeg exited with error: %v (%s)", err, lastLine(r.stderr.String()))
		}
	case <-timer.C:
		log.Printf("ffmpeg did not exit within %v, killing", r.config.StopTimeout)
		r.cmd.Process.Kill()
		<-r.done
	case <-ctx.Done():
		r.cmd.Process.Kill()
		<-r.done
		return nil, ctx.Err()
	}

	rec, err := statRecording(r.path, r.mime)
	if err != nil {
		return nil, err
	}
	log.Printf("Video recording stopped: %s (%d bytes, %s)", rec.Path, rec.Size, rec.MIME)
	return rec, nil
}

// buildArgs assembles the ffmpeg command line
func (r *FFmpegRecorder) buildArgs(mimeType, path string) []string {
	args := []string{"-hide_banner", "-loglevel", "error", "-y",
		"-f", r.config.InputFormat, "-i", r.config.VideoDevice}

	if r.config.AudioDevice != "" {
		format := r.config.AudioFormat
		if format == "" {
			format = r.config.InputFormat
		}
		args = append(args, "-f", format, "-i", r.config.AudioDevice)
	}

	if enc := encoderForMIME(mimeType); enc != "" {
		args = append(args, "-c:v", enc, "-deadline", "realtime", "-b:v", "1M")
	}
	if r.config.AudioDevice != "" {
		args = append(args, "-c:a", "libopus")
	}

	return append(args, "-f", "webm", path)
}

// encoderForMIME maps a codecs parameter to an ffmpeg encoder name
func encoderForMIME(mimeType string) string {
	switch {
	case strings.Contains(mimeType, "codecs=vp9"):
		return "libvpx-vp9"
	case strings.Contains(mimeType, "codecs=vp8"):
		return "libvpx"
	}
	return ""
}

// parseEncoders extracts encoder names from `ffmpeg -encoders` output
func parseEncoders(out []byte) map[string]bool {
	encoders := make(map[string]bool)
	scanner := bufio.NewScanner(bytes.NewReader(out))
	inList := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if strings.HasPrefix(line, "------") {
			inList = true
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		// Lines look like "V....D libvpx-vp9  libvpx VP9"
		if inList {
			encoders[fields[1]] = true
		}
	}
	return encoders
}

func defaultInputFormat() string {
	switch runtime.GOOS {
	case "darwin":
		return "avfoundation"
	case "windows":
		return "dshow"
	}
	return "v4l2"
}

func defaultVideoDevice() string {
	switch runtime.GOOS {
	case "darwin":
		return "0"
	case "windows":
		return "video=Integrated Camera"
	}
	return "/dev/video0"
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}

