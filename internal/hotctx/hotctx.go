// Package hotctx maintains the rolling window of recent transcript text that
// accompanies every detected question.
//
// Transcribed windows are appended as they arrive; entries older than the
// configured retention are evicted on every append, so the window tracks the
// last N seconds of speech regardless of how fast the speaker talks.
package hotctx

import (
	"strings"
	"sync"
	"time"
)

// DefaultRetention is how long transcript entries stay in the window.
const DefaultRetention = 30 * time.Second

// Entry is one transcribed utterance with its arrival time and the question
// detector's verdict.
type Entry struct {
	Text       string
	At         time.Time
	IsQuestion bool
}

// Window is the rolling transcript context. It is safe for concurrent use.
type Window struct {
	retention time.Duration
	now       func() time.Time

	mu      sync.Mutex
	entries []Entry
}

// Option is a functional option for Window.
type Option func(*Window)

// WithRetention overrides DefaultRetention.
func WithRetention(d time.Duration) Option {
	return func(w *Window) {
		if d > 0 {
			w.retention = d
		}
	}
}

// WithClock replaces the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Window) {
		if now != nil {
			w.now = now
		}
	}
}

// New creates an empty Window.
func New(opts ...Option) *Window {
	w := &Window{
		retention: DefaultRetention,
		now:       time.Now,
	}
	for _, o := range opts {
		o(w)
	}
	return w
}

// Append records an utterance at the current time and evicts expired entries.
// Empty or whitespace-only text is ignored.
func (w *Window) Append(text string, isQuestion bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.entries = append(w.entries, Entry{Text: text, At: now, IsQuestion: isQuestion})
	w.evict(now)
}

// Recent returns all retained utterances joined with single spaces, oldest
// first. Expired entries are evicted before joining.
func (w *Window) Recent() string {
	return w.RecentFor(w.retention)
}

// RecentFor returns the utterances from the last d, joined with single
// spaces, oldest first. Asking for more than the retention silently returns
// only what is retained.
func (w *Window) RecentFor(d time.Duration) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	now := w.now()
	w.evict(now)
	cutoff := now.Add(-d)
	var texts []string
	for _, e := range w.entries {
		if e.At.After(cutoff) {
			texts = append(texts, e.Text)
		}
	}
	return strings.Join(texts, " ")
}

// Entries returns a copy of the retained entries, oldest first.
func (w *Window) Entries() []Entry {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evict(w.now())
	out := make([]Entry, len(w.entries))
	copy(out, w.entries)
	return out
}

// Len returns the number of retained entries.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.evict(w.now())
	return len(w.entries)
}

// Reset discards all entries.
func (w *Window) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.entries = nil
}

// evict drops entries older than the retention. Callers must hold mu.
func (w *Window) evict(now time.Time) {
	cutoff := now.Add(-w.retention)
	keep := 0
	for keep < len(w.entries) && !w.entries[keep].At.After(cutoff) {
		keep++
	}
	if keep > 0 {
		w.entries = append([]Entry(nil), w.entries[keep:]...)
	}
}
