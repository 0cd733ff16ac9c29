// ABOUTME: Audio decoder package for dubbed-audio payloads and capture files
// ABOUTME: Provides Decoder interface and implementations for MP3, WAV, FLAC, Ogg Opus
// Package decode provides audio decoders for the formats a dubbing backend
// may return and for local capture files.
//
// Supports: MP3, WAV (16-bit PCM), FLAC, Ogg Opus
//
// All decoders take a complete encoded file and return interleaved 16-bit
// PCM at the file's native sample rate and channel count.
//
// Example:
//
//	decoder, err := decode.ForMIME("audio/mpeg")
//	pcm, err := decoder.Decode(payload)
package decode
