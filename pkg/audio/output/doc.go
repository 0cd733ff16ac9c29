// ABOUTME: Audio output package for playing dubbed audio
// ABOUTME: Provides Output interface with oto and malgo implementations
// Package output provides audio playback backends.
//
// Play blocks until the given buffer has been rendered to the device, which
// lets callers sequence clips without overlap. Volume and mute apply from
// the next clip.
//
// Example:
//
//	out := output.NewOto()
//	err := out.Open(48000, 2)
//	err = out.Play(ctx, pcm)
package output
