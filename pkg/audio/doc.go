// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Clip, PCM and Format types plus float/int16 sample conversion
// Package audio provides fundamental audio types used throughout livedub.
//
// This package defines:
//   - Format: describes an audio stream (codec, sample rate, channels, bit depth)
//   - Clip: an encoded, self-contained audio file ready to be uploaded
//   - PCM: decoded interleaved 16-bit audio ready for playback
//
// Captured microphone audio travels as mono float32 samples in [-1, 1].
// QuantizeSample converts those to signed 16-bit linear PCM using the
// asymmetric rule (negative values scaled by 32768, the rest by 32767) so
// that +1.0 never wraps around.
//
// Example:
//
//	merged := audio.MergeBlocks(blocks, total)
//	s16 := audio.QuantizeSample(merged[0])
package audio
