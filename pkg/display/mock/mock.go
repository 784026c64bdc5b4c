// Package mock provides a test double for the display.Sink interface.
package mock

import (
	"context"
	"sync"

	"github.com/sotto-ai/sotto/pkg/display"
)

// Sink is a mock implementation of display.Sink that records every call.
type Sink struct {
	mu sync.Mutex

	// ShowSuggestionErr, if non-nil, is returned by ShowSuggestion.
	ShowSuggestionErr error

	// Suggestions records every suggestion passed to ShowSuggestion in order.
	Suggestions []display.Suggestion

	// ClearCalls is the number of times Clear was called.
	ClearCalls int

	// ShowCalls is the number of times Show was called.
	ShowCalls int

	// HideCalls is the number of times Hide was called.
	HideCalls int
}

// ShowSuggestion records the suggestion and returns ShowSuggestionErr.
func (s *Sink) ShowSuggestion(_ context.Context, sugg display.Suggestion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Suggestions = append(s.Suggestions, sugg)
	return s.ShowSuggestionErr
}

// Clear records the call.
func (s *Sink) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ClearCalls++
	return nil
}

// Show records the call.
func (s *Sink) Show(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ShowCalls++
	return nil
}

// Hide records the call.
func (s *Sink) Hide(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.HideCalls++
	return nil
}

// HideCallCount returns the number of Hide calls. Thread-safe.
func (s *Sink) HideCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.HideCalls
}

// Shown returns a copy of the recorded suggestions. Thread-safe.
func (s *Sink) Shown() []display.Suggestion {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]display.Suggestion, len(s.Suggestions))
	copy(out, s.Suggestions)
	return out
}

// Last returns the most recent suggestion and whether one exists.
func (s *Sink) Last() (display.Suggestion, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.Suggestions) == 0 {
		return display.Suggestion{}, false
	}
	return s.Suggestions[len(s.Suggestions)-1], true
}

// Reset clears all recorded calls. Thread-safe.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Suggestions = nil
	s.ClearCalls = 0
	s.ShowCalls = 0
	s.HideCalls = 0
}

// Ensure Sink implements display.Sink at compile time.
var _ display.Sink = (*Sink)(nil)
