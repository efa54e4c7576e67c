// Package pcm converts captured float frames into the canonical wire
// representation: mono signed 16-bit PCM at a fixed target rate.
//
// Resampling is plain box-average decimation. There is no anti-aliasing
// filter beyond the averaging window.
package pcm
