// Package detect decides whether a transcribed utterance is an interview
// question addressed to the user.
//
// Two signals mark a question: a terminal question mark, or an interrogative
// first word following a long enough pause since the previous utterance. The
// pause requirement keeps mid-answer rhetorical openers ("what I did then
// was…") from being treated as fresh questions.
package detect

import (
	"strings"
	"sync"
	"time"
	"unicode"
)

// DefaultSilenceDuration is the minimum gap since the previous utterance for
// an interrogative opener to count as a new question.
const DefaultSilenceDuration = 1500 * time.Millisecond

// questionWords are the interrogative openers that mark a question when they
// start an utterance after a pause.
var questionWords = map[string]struct{}{
	"what": {}, "why": {}, "how": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "can": {}, "could": {}, "would": {},
	"should": {}, "is": {}, "are": {}, "do": {}, "does": {}, "did": {},
}

// Detector classifies utterances as questions. It is safe for concurrent use.
type Detector struct {
	silenceDuration time.Duration
	now             func() time.Time

	mu             sync.Mutex
	lastSpeechTime time.Time
}

// Option is a functional option for Detector.
type Option func(*Detector)

// WithSilenceDuration overrides DefaultSilenceDuration.
func WithSilenceDuration(d time.Duration) Option {
	return func(det *Detector) {
		if d > 0 {
			det.silenceDuration = d
		}
	}
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(det *Detector) {
		if now != nil {
			det.now = now
		}
	}
}

// New creates a Detector. The first utterance ever seen is treated as
// following a pause of infinite length.
func New(opts ...Option) *Detector {
	det := &Detector{
		silenceDuration: DefaultSilenceDuration,
		now:             time.Now,
	}
	for _, o := range opts {
		o(det)
	}
	return det
}

// IsQuestion reports whether text is an interview question. Every call also
// records the utterance time, so call it exactly once per transcribed window.
func (det *Detector) IsQuestion(text string) bool {
	det.mu.Lock()
	defer det.mu.Unlock()

	now := det.now()
	last := det.lastSpeechTime
	det.lastSpeechTime = now

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	if strings.HasSuffix(trimmed, "?") {
		return true
	}

	first := firstWord(trimmed)
	if _, ok := questionWords[first]; !ok {
		return false
	}
	// Interrogative opener counts only after a real pause. A zero last time
	// means this is the first utterance, which always qualifies.
	return last.IsZero() || now.Sub(last) > det.silenceDuration
}

// firstWord returns the lowercased first word of text with surrounding
// punctuation stripped.
func firstWord(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return ""
	}
	return strings.ToLower(strings.TrimFunc(fields[0], func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}))
}
