// Package sessionlog records question/answer pairs during an interview
// session and persists the session as a JSON file when it ends. Sessions
// with no recorded questions are not persisted.
package sessionlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Entry is a single question/answer pair recorded during a session.
type Entry struct {
	Timestamp      time.Time `json:"timestamp"`
	Question       string    `json:"question"`
	Answer         string    `json:"answer"`
	Confidence     float64   `json:"confidence"`
	Sources        []string  `json:"sources,omitempty"`
	ContextUsed    bool      `json:"context_used"`
	GenerationTime float64   `json:"generation_time"`
}

// session is the on-disk shape of a persisted session.
type session struct {
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds float64   `json:"duration_seconds"`
	TotalQuestions  int       `json:"total_questions"`
	Questions       []Entry   `json:"questions"`
}

// Log collects entries for a single session. Thread-safe for
// concurrent use.
type Log struct {
	mu      sync.Mutex
	dir     string
	started time.Time
	entries []Entry
	now     func() time.Time
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the time source. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		l.now = now
	}
}

// New creates a Log that persists finished sessions into dir.
func New(dir string, opts ...Option) *Log {
	l := &Log{
		dir: dir,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	l.started = l.now()
	return l
}

// Record appends a question/answer entry to the session.
func (l *Log) Record(entry Entry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now()
	}
	l.entries = append(l.entries, entry)
}

// Len reports the number of recorded entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Persist writes the session to a timestamped JSON file in the log
// directory and returns its path. When no questions were recorded the
// session is not written and the returned path is empty.
func (l *Log) Persist() (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.entries) == 0 {
		return "", nil
	}

	end := l.now()
	s := session{
		StartTime:       l.started,
		EndTime:         end,
		DurationSeconds: end.Sub(l.started).Seconds(),
		TotalQuestions:  len(l.entries),
		Questions:       l.entries,
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("sessionlog: marshal: %w", err)
	}

	if err := os.MkdirAll(l.dir, 0o755); err != nil {
		return "", fmt.Errorf("sessionlog: create directory: %w", err)
	}

	path := filepath.Join(l.dir, fmt.Sprintf("session_%s.json", end.Format("20060102_150405")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("sessionlog: write file: %w", err)
	}
	return path, nil
}

// Reset clears recorded entries and restarts the session clock.
func (l *Log) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
	l.started = l.now()
}
