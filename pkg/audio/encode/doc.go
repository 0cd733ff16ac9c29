// ABOUTME: Audio encoder package for turning captured samples into upload clips
// ABOUTME: Provides the Encoder interface and the mono 16-bit WAV implementation
// Package encode provides audio encoders for captured microphone audio.
//
// Supports: WAV (RIFF, linear PCM, mono, 16-bit)
//
// Encoders accept float32 samples in [-1, 1] and produce a self-contained
// audio file. The WAV layout is a fixed 44-byte header followed by
// little-endian sample data, so len(output) == 44 + 2*len(samples).
//
// Example:
//
//	clip := encode.NewClip(samples, 48000)
//	data := encode.EncodeWAV(samples, 48000)
package encode
