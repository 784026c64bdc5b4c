package sessionlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestPersistWritesSession(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	base := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	current := base
	log := New(dir, WithClock(func() time.Time { return current }))

	current = base.Add(30 * time.Second)
	log.Record(Entry{
		Question:    "Tell me about a time you led a project?",
		Answer:      "I led the migration of our billing platform.",
		Confidence:  0.85,
		Sources:     []string{"resume.md"},
		ContextUsed: true,
	})

	current = base.Add(5 * time.Minute)
	path, err := log.Persist()
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if filepath.Base(path) != "session_20250601_100500.json" {
		t.Errorf("path = %q, want session_20250601_100500.json", filepath.Base(path))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading session file: %v", err)
	}
	var s session
	if err := json.Unmarshal(data, &s); err != nil {
		t.Fatalf("unmarshal session: %v", err)
	}
	if s.TotalQuestions != 1 {
		t.Errorf("TotalQuestions = %d, want 1", s.TotalQuestions)
	}
	if s.DurationSeconds != 300 {
		t.Errorf("DurationSeconds = %v, want 300", s.DurationSeconds)
	}
	if len(s.Questions) != 1 || s.Questions[0].Confidence != 0.85 {
		t.Errorf("unexpected questions: %+v", s.Questions)
	}
	if !s.Questions[0].Timestamp.Equal(base.Add(30 * time.Second)) {
		t.Errorf("entry timestamp = %v, want %v", s.Questions[0].Timestamp, base.Add(30*time.Second))
	}
}

func TestPersistSkipsEmptySession(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	log := New(dir)

	path, err := log.Persist()
	if err != nil {
		t.Fatalf("Persist() error = %v", err)
	}
	if path != "" {
		t.Errorf("path = %q, want empty", path)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("reading dir: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("expected no files written, got %d", len(entries))
	}
}

func TestResetClearsEntries(t *testing.T) {
	t.Parallel()

	log := New(t.TempDir())
	log.Record(Entry{Question: "What is Go?"})
	if log.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", log.Len())
	}

	log.Reset()
	if log.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", log.Len())
	}
}
