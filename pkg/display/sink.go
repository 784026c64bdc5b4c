// Package display defines the Sink interface through which generated answers
// reach the user-facing overlay.
//
// A sink receives Suggestion values — the question, the generated answer and
// its confidence score — and is responsible for getting them in front of the
// user. The process ships a WebSocket broadcaster (see the overlayws
// subpackage) that any overlay client can subscribe to.
package display

import (
	"context"
	"time"
)

// Suggestion is one answer card for the overlay.
type Suggestion struct {
	// Question is the detected interview question this suggestion answers.
	Question string `json:"question"`

	// Answer is the generated answer text. Empty while Loading is true.
	Answer string `json:"answer"`

	// Confidence is the heuristic confidence score in [0, 1].
	Confidence float64 `json:"confidence"`

	// Sources lists the knowledge-base sources backing the answer.
	Sources []string `json:"sources,omitempty"`

	// Tips carries short delivery hints shown alongside the answer
	// (e.g. pacing advice).
	Tips []string `json:"tips,omitempty"`

	// Loading marks the interim card shown while generation is in flight.
	Loading bool `json:"loading,omitempty"`

	// Created is when the suggestion was produced.
	Created time.Time `json:"created"`
}

// Sink is the abstraction over any suggestion display surface.
//
// Implementations must be safe for concurrent use. A later ShowSuggestion
// replaces whatever is currently displayed.
type Sink interface {
	// ShowSuggestion displays s, replacing any current suggestion.
	ShowSuggestion(ctx context.Context, s Suggestion) error

	// Clear removes the current suggestion from the display.
	Clear(ctx context.Context) error

	// Show makes the display surface visible.
	Show(ctx context.Context) error

	// Hide conceals the display surface without discarding its content.
	Hide(ctx context.Context) error
}
