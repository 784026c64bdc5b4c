// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription engine (e.g. a local whisper.cpp
// server or the native whisper bindings) and exposes a uniform batch
// interface: a window of normalised audio samples in, transcribed text out.
//
// Implementations must be safe for concurrent use.
package stt

import "context"

// Request describes a single transcription call.
type Request struct {
	// Samples is a window of mono audio, normalised to [-1.0, 1.0].
	Samples []float32

	// SampleRate is the sample rate of Samples in Hz. Whisper engines expect
	// 16000; implementations may reject other rates.
	SampleRate int

	// Language is the ISO 639-1 language hint (e.g. "en"). An empty string
	// lets the engine auto-detect, if supported.
	Language string
}

// Result is the transcription of one audio window.
type Result struct {
	// Text is the transcribed speech, whitespace-trimmed. Empty when the
	// window contains no recognisable speech.
	Text string

	// Segments holds per-segment text when the engine reports it. May be nil.
	Segments []string
}

// Provider is the abstraction over any batch STT backend.
//
// Transcribe blocks until the whole window has been processed or ctx is
// cancelled. Implementations must be safe for concurrent use, though engines
// backed by a single model context may serialise calls internally.
type Provider interface {
	Transcribe(ctx context.Context, req Request) (Result, error)
}
