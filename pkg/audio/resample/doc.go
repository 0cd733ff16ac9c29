// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts dubbed audio to the playback device sample rate
// Package resample converts clips between sample rates.
//
// Example:
//
//	c, err := resample.NewConverter(24000, 48000, 1)
//	out := c.Apply(samples)
//
//	pcm = resample.Convert(pcm, 48000)
package resample
