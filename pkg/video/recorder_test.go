// ABOUTME: Tests for video recorders
// ABOUTME: Tests MIME preference probing, ffmpeg argument building and a scripted ffmpeg run
package video

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"
)

func TestRecordersImplementRecorder(t *testing.T) {
	var _ Recorder = (*FFmpegRecorder)(nil)
	var _ Recorder = (*FileRecorder)(nil)
}

func TestPickSupportedMIME(t *testing.T) {
	tests := []struct {
		name      string
		supported []string
		expected  string
	}{
		{"all supported", []string{"video/webm;codecs=vp9", "video/webm;codecs=vp8", "video/webm"}, "video/webm;codecs=vp9"},
		{"vp8 only", []string{"video/webm;codecs=vp8", "video/webm"}, "video/webm;codecs=vp8"},
		{"plain webm", []string{"video/webm"}, "video/webm"},
		{"nothing", nil, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PickSupportedMIME(PreferredMIMEs, func(m string) bool {
				for _, s := range tt.supported {
					if s == m {
						return true
					}
				}
				return false
			})
			if got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestPickSupportedMIMEStopsAtEmpty(t *testing.T) {
	got := PickSupportedMIME([]string{"video/x-none", "", "video/webm"}, func(m string) bool {
		return m == "video/webm"
	})
	if got != "" {
		t.Errorf("expected search to end at empty candidate, got %q", got)
	}
}

func TestParseEncoders(t *testing.T) {
	out := []byte(`Encoders:
 V..... = Video
 A..... = Audio
 ------
 V....D libvpx               libvpx VP8 (codec vp8)
 V....D libvpx-vp9           libvpx VP9 (codec vp9)
 A....D libopus              libopus Opus (codec opus)
`)
	encoders := parseEncoders(out)
	for _, name := range []string{"libvpx", "libvpx-vp9", "libopus"} {
		if !encoders[name] {
			t.Errorf("expected encoder %s", name)
		}
	}
	if encoders["="] {
		t.Error("legend lines should not be parsed as encoders")
	}
}

func TestBuildArgs(t *testing.T) {
	r := NewFFmpegRecorder(FFmpegConfig{
		InputFormat: "v4l2",
		VideoDevice: "/dev/video2",
		AudioFormat: "pulse",
		AudioDevice: "default",
	})

	args := strings.Join(r.buildArgs("video/webm;codecs=vp8", "/tmp/out.webm"), " ")
	for _, want := range []string{
		"-f v4l2 -i /dev/video2",
		"-f pulse -i default",
		"-c:v libvpx ",
		"-c:a libopus",
		"-f webm /tmp/out.webm",
	} {
		if !strings.Contains(args, want) {
			t.Errorf("expected %q in %q", want, args)
		}
	}

	plain := strings.Join(r.buildArgs("video/webm", "/tmp/out.webm"), " ")
	if strings.Contains(plain, "-c:v") {
		t.Errorf("plain webm should leave the codec to ffmpeg: %q", plain)
	}
}

func TestEncoderForMIME(t *testing.T) {
	if encoderForMIME("video/webm;codecs=vp9") != "libvpx-vp9" {
		t.Error("expected libvpx-vp9")
	}
	if encoderForMIME("video/webm;codecs=vp8") != "libvpx" {
		t.Error("expected libvpx")
	}
	if encoderForMIME("video/webm") != "" {
		t.Error("expected no explicit encoder")
	}
}

func TestFileRecorder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.webm")
	os.WriteFile(path, []byte("webm"), 0644)

	r := NewFileRecorder(path)
	if _, err := r.Stop(context.Background()); err == nil {
		t.Error("expected error stopping before start")
	}
	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	rec, err := r.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if rec.Path != path || rec.MIME != "video/webm" || rec.Size != 4 {
		t.Errorf("unexpected recording %+v", rec)
	}

	if err := NewFileRecorder("/missing.webm").Start(context.Background()); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestMimeForPath(t *testing.T) {
	tests := map[string]string{
		"a.webm": "video/webm",
		"a.MP4":  "video/mp4",
		"a.mkv":  "video/x-matroska",
		"a":      "application/octet-stream",
	}
	for path, want := range tests {
		if got := mimeForPath(path); got != want {
			t.Errorf("mimeForPath(%q) = %q, want %q", path, got, want)
		}
	}
}

// fakeFFmpeg writes a shell script that answers -encoders and records until "q"
func fakeFFmpeg(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script ffmpeg stand-in requires a POSIX shell")
	}

	script := `#!/bin/sh
for a in "$@"; do last="$a"; done
case "$*" in
  *-encoders*)
    printf ' ------\n V....D libvpx  libvpx VP8\n'
    exit 0
    ;;
esac
printf 'fake-webm-data' > "$last"
read line
exit 0
`
	path := filepath.Join(t.TempDir(), "ffmpeg")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatalf("failed to write fake ffmpeg: %v", err)
	}
	return path
}

func TestFFmpegRecorderLifecycle(t *testing.T) {
	r := NewFFmpegRecorder(FFmpegConfig{
		Binary:      fakeFFmpeg(t),
		Dir:         t.TempDir(),
		StopTimeout: 5 * time.Second,
	})

	if err := r.Start(context.Background()); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := r.Start(context.Background()); err == nil {
		t.Error("expected error starting twice")
	}

	// Give the script time to write its output
	time.Sleep(100 * time.Millisecond)

	rec, err := r.Stop(context.Background())
	if err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if rec.MIME != "video/webm;codecs=vp8" {
		t.Errorf("expected vp8 to be selected, got %s", rec.MIME)
	}
	if rec.Size != int64(len("fake-webm-data")) {
		t.Errorf("unexpected recording size %d", rec.Size)
	}

	if _, err := r.Stop(context.Background()); err == nil {
		t.Error("expected error stopping twice")
	}
}

func TestFFmpegRecorderMissingBinary(t *testing.T) {
	r := NewFFmpegRecorder(FFmpegConfig{Binary: filepath.Join(t.TempDir(), "no-ffmpeg")})
	if err := r.Start(context.Background()); err == nil {
		t.Error("expected error when ffmpeg is missing")
	}
}
