// ABOUTME: Tests for decoder dispatch and WAV decoding
// ABOUTME: Tests MIME lookup, WAV round trips and malformed input handling
package decode

import (
	"encoding/binary"
	"strings"
	"testing"

	"github.com/livedub/livedub-go/pkg/audio/encode"
)

func TestForMIME(t *testing.T) {
	tests := []struct {
		mime     string
		expected string
		wantErr  bool
	}{
		{"audio/mpeg", "decode.MP3Decoder", false},
		{"audio/mp3", "decode.MP3Decoder", false},
		{"audio/wav", "decode.WAVDecoder", false},
		{"audio/x-wav", "decode.WAVDecoder", false},
		{"audio/flac", "decode.FLACDecoder", false},
		{"audio/ogg; codecs=opus", "decode.OpusDecoder", false},
		{"AUDIO/MPEG", "decode.MP3Decoder", false},
		{"video/webm", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.mime, func(t *testing.T) {
			dec, err := ForMIME(tt.mime)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error for %q", tt.mime)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got := typeName(dec); got != tt.expected {
				t.Errorf("expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestForExtension(t *testing.T) {
	if _, err := ForExtension(".MP3"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := ForExtension(".flac"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	_, err := ForExtension(".aac")
	if err == nil || !strings.Contains(err.Error(), "unsupported audio format") {
		t.Errorf("expected unsupported format error, got %v", err)
	}
}

func TestDecodeWAVRoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1, -1}
	pcm, err := DecodeWAV(encode.EncodeWAV(samples, 22050))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if pcm.SampleRate != 22050 {
		t.Errorf("expected 22050Hz, got %d", pcm.SampleRate)
	}
	if pcm.Channels != 1 {
		t.Errorf("expected mono, got %d channels", pcm.Channels)
	}

	expected := []int16{0, 16383, -16384, 32767, -32768}
	if len(pcm.Samples) != len(expected) {
		t.Fatalf("expected %d samples, got %d", len(expected), len(pcm.Samples))
	}
	for i := range expected {
		if pcm.Samples[i] != expected[i] {
			t.Errorf("sample %d: expected %d, got %d", i, expected[i], pcm.Samples[i])
		}
	}
}

func TestDecodeWAVSkipsUnknownChunks(t *testing.T) {
	base := encode.EncodeWAV([]float32{0.25, -0.25}, 8000)

	// Insert an odd-sized LIST chunk between fmt and data
	list := []byte{'L', 'I', 'S', 'T', 3, 0, 0, 0, 'a', 'b', 'c', 0}
	data := append([]byte{}, base[:36]...)
	data = append(data, list...)
	data = append(data, base[36:]...)
	binary.LittleEndian.PutUint32(data[4:8], uint32(len(data)-8))

	pcm, err := DecodeWAV(data)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(pcm.Samples) != 2 {
		t.Errorf("expected 2 samples, got %d", len(pcm.Samples))
	}
}

func TestDecodeWAVErrors(t *testing.T) {
	valid := encode.EncodeWAV([]float32{0.1}, 8000)

	noData := append([]byte{}, valid[:36]...)
	badFormat := append([]byte{}, valid...)
	binary.LittleEndian.PutUint16(badFormat[34:36], 8)

	tests := []struct {
		name string
		data []byte
		want string
	}{
		{"too short", []byte("RIFF"), "too short"},
		{"not riff", append([]byte("RIFX"), valid[4:]...), "missing RIFF"},
		{"no data chunk", noData, "missing data chunk"},
		{"unsupported bits", badFormat, "unsupported WAV encoding"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeWAV(tt.data)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}

func TestMP3DecodeRejectsGarbage(t *testing.T) {
	if _, err := NewMP3().Decode(nil); err == nil {
		t.Error("expected error for empty payload")
	}
	if _, err := NewMP3().Decode([]byte("definitely not an mp3")); err == nil {
		t.Error("expected error for invalid payload")
	}
}

func TestFLACDecodeRejectsGarbage(t *testing.T) {
	if _, err := NewFLAC().Decode([]byte("fLaX-nope")); err == nil {
		t.Error("expected error for invalid payload")
	}
}

func TestScaleToInt16(t *testing.T) {
	if got := scaleToInt16(1<<23-1, 24); got != 32767 {
		t.Errorf("24-bit max: expected 32767, got %d", got)
	}
	if got := scaleToInt16(-100, 16); got != -100 {
		t.Errorf("16-bit passthrough: expected -100, got %d", got)
	}
	if got := scaleToInt16(127, 8); got != 127<<8 {
		t.Errorf("8-bit: expected %d, got %d", 127<<8, got)
	}
}

func typeName(v interface{}) string {
	switch v.(type) {
	case MP3Decoder:
		return "decode.MP3Decoder"
	case WAVDecoder:
		return "decode.WAVDecoder"
	case FLACDecoder:
		return "decode.FLACDecoder"
	case OpusDecoder:
		return "decode.OpusDecoder"
	}
	return "unknown"
}
