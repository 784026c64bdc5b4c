package hotctx

import (
	"testing"
	"time"
)

type clock struct {
	t time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *clock) now() time.Time { return c.t }

func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestRecentJoinsInOrder(t *testing.T) {
	t.Parallel()
	c := newClock()
	w := New(WithClock(c.now))

	w.Append("Tell me about", false)
	c.advance(time.Second)
	w.Append("your last project.", true)

	if got := w.Recent(); got != "Tell me about your last project." {
		t.Errorf("Recent() = %q", got)
	}
}

func TestAppendIgnoresBlankText(t *testing.T) {
	t.Parallel()
	w := New()
	w.Append("", false)
	w.Append("   ", false)
	if w.Len() != 0 {
		t.Errorf("Len() = %d, want 0", w.Len())
	}
}

func TestExpiredEntriesEvicted(t *testing.T) {
	t.Parallel()
	c := newClock()
	w := New(WithClock(c.now), WithRetention(30*time.Second))

	w.Append("old utterance", false)
	c.advance(31 * time.Second)
	w.Append("fresh utterance", false)

	if got := w.Recent(); got != "fresh utterance" {
		t.Errorf("Recent() = %q, want only the fresh entry", got)
	}
}

func TestRecentEvictsWithoutAppend(t *testing.T) {
	t.Parallel()
	c := newClock()
	w := New(WithClock(c.now), WithRetention(10*time.Second))

	w.Append("fading utterance", false)
	c.advance(11 * time.Second)

	if got := w.Recent(); got != "" {
		t.Errorf("Recent() = %q, want empty after retention elapsed", got)
	}
	if w.Len() != 0 {
		t.Errorf("Len() = %d, want 0", w.Len())
	}
}

func TestReset(t *testing.T) {
	t.Parallel()
	w := New()
	w.Append("something", false)
	w.Reset()
	if got := w.Recent(); got != "" {
		t.Errorf("Recent() after Reset = %q, want empty", got)
	}
}

func TestEntriesReturnsCopy(t *testing.T) {
	t.Parallel()
	w := New()
	w.Append("one", true)
	entries := w.Entries()
	if len(entries) != 1 {
		t.Fatalf("Entries() len = %d, want 1", len(entries))
	}
	entries[0].Text = "mutated"
	if got := w.Recent(); got != "one" {
		t.Errorf("mutating the returned slice should not affect the window, got %q", got)
	}
}

func TestRecentForHonoursRequestedDuration(t *testing.T) {
	t.Parallel()
	c := newClock()
	w := New(WithClock(c.now), WithRetention(30*time.Second))

	w.Append("first answer", false)
	c.advance(20 * time.Second)
	w.Append("what motivates you?", true)

	if got := w.RecentFor(10 * time.Second); got != "what motivates you?" {
		t.Errorf("RecentFor(10s) = %q, want only the newest entry", got)
	}
	// Asking for more than the retention returns what is retained.
	if got := w.RecentFor(time.Hour); got != "first answer what motivates you?" {
		t.Errorf("RecentFor(1h) = %q", got)
	}
}

func TestEntriesKeepQuestionFlag(t *testing.T) {
	t.Parallel()
	w := New()
	w.Append("I shipped the payments service.", false)
	w.Append("How did you test it?", true)

	entries := w.Entries()
	if len(entries) != 2 {
		t.Fatalf("Entries() len = %d, want 2", len(entries))
	}
	if entries[0].IsQuestion || !entries[1].IsQuestion {
		t.Errorf("IsQuestion flags = %v/%v, want false/true", entries[0].IsQuestion, entries[1].IsQuestion)
	}
}
