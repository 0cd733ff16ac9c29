// ABOUTME: Unit tests for the WAV clip encoder
// ABOUTME: Tests header layout, length invariant and quantization edges
package encode

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestEncodeWAVLength(t *testing.T) {
	for _, n := range []int{0, 1, 2, 3, 441, 4096, 96000} {
		data := EncodeWAV(make([]float32, n), 48000)
		if len(data) != WAVHeaderSize+2*n {
			t.Errorf("n=%d: expected %d bytes, got %d", n, WAVHeaderSize+2*n, len(data))
		}
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	samples := make([]float32, 100)
	data := EncodeWAV(samples, 44100)
	le := binary.LittleEndian

	tests := []struct {
		name     string
		got      interface{}
		expected interface{}
	}{
		{"riff", string(data[0:4]), "RIFF"},
		{"riff size", le.Uint32(data[4:8]), uint32(36 + 200)},
		{"wave", string(data[8:12]), "WAVE"},
		{"fmt id", string(data[12:16]), "fmt "},
		{"fmt size", le.Uint32(data[16:20]), uint32(16)},
		{"audio format", le.Uint16(data[20:22]), uint16(1)},
		{"channels", le.Uint16(data[22:24]), uint16(1)},
		{"sample rate", le.Uint32(data[24:28]), uint32(44100)},
		{"byte rate", le.Uint32(data[28:32]), uint32(88200)},
		{"block align", le.Uint16(data[32:34]), uint16(2)},
		{"bits per sample", le.Uint16(data[34:36]), uint16(16)},
		{"data id", string(data[36:40]), "data"},
		{"data size", le.Uint32(data[40:44]), uint32(200)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, tt.got)
			}
		})
	}
}

func TestEncodeWAVFullScale(t *testing.T) {
	data := EncodeWAV([]float32{1.0, -1.0, 0, 2.5, -2.5}, 16000)
	pcm := data[WAVHeaderSize:]

	var got [5]int16
	if err := binary.Read(bytes.NewReader(pcm), binary.LittleEndian, &got); err != nil {
		t.Fatalf("failed to read samples: %v", err)
	}

	expected := [5]int16{32767, -32768, 0, 32767, -32768}
	if got != expected {
		t.Errorf("expected %v, got %v", expected, got)
	}
}

func TestEncodeWAVDeterministic(t *testing.T) {
	samples := []float32{0.25, -0.75, 0.125, 0.9}
	a := EncodeWAV(samples, 48000)
	b := EncodeWAV(samples, 48000)
	if !bytes.Equal(a, b) {
		t.Error("expected identical output for identical input")
	}
}

func TestNewClip(t *testing.T) {
	clip := NewClip(make([]float32, 480), 48000)

	if clip.MIME != MIMEWAV {
		t.Errorf("expected MIME %s, got %s", MIMEWAV, clip.MIME)
	}
	if clip.Samples != 480 {
		t.Errorf("expected 480 samples, got %d", clip.Samples)
	}
	if len(clip.Data) != WAVHeaderSize+960 {
		t.Errorf("expected %d bytes, got %d", WAVHeaderSize+960, len(clip.Data))
	}
}

func TestWAVEncoderImplementsEncoder(t *testing.T) {
	enc := NewWAV()
	if enc.MIME() != "audio/wav" {
		t.Errorf("unexpected MIME: %s", enc.MIME())
	}
	data, err := enc.Encode([]float32{0.1}, 8000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(data) != WAVHeaderSize+2 {
		t.Errorf("expected %d bytes, got %d", WAVHeaderSize+2, len(data))
	}
}
