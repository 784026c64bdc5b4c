// Package audio defines the types and interfaces for audio capture and
// windowing within Sotto.
//
// The two primary abstractions are:
//
//   - [Source] — an open stream of raw float32 audio frames (a microphone
//     backend, a WAV replay source, or a test double).
//   - [Capture] — consumes a Source, tracks the live audio level, and slices
//     the stream into fixed-duration [Window] values on a bounded queue for
//     the transcription worker.
//
// This package lives under pkg/ because external code (platform-specific
// microphone adapters) is expected to implement [Source].
package audio

import (
	"context"
	"time"
)

// Window is a fixed-duration slice of mono float32 audio samples, the atomic
// unit handed from capture to transcription. A Window is produced once,
// consumed exactly once, and never reordered.
type Window struct {
	// Samples holds mono audio normalised to [-1.0, 1.0].
	Samples []float32

	// SampleRate in Hz (16000 for STT input).
	SampleRate int

	// Captured marks when the window was completed.
	Captured time.Time
}

// Duration returns the playback length of the window.
func (w Window) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(w.SampleRate)
}

// AvailabilityChecker is an optional Source capability: implementations can
// report whether their underlying device or file is usable without opening
// the stream. Session preflight checks use it when present.
type AvailabilityChecker interface {
	Available(ctx context.Context) error
}

// Source is an open stream of raw audio frames.
//
// Implementations deliver mono float32 frames of arbitrary size on the
// returned channel and close it when the stream ends or ctx is cancelled.
// A Source that cannot open its underlying device must return an error from
// Start rather than delivering an empty stream.
type Source interface {
	// Start opens the stream and returns a channel of raw sample frames.
	// The channel is closed by the implementation when the stream ends.
	Start(ctx context.Context) (<-chan []float32, error)

	// SampleRate returns the rate of the delivered samples in Hz.
	SampleRate() int
}
