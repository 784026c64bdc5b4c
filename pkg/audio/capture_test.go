package audio_test

import (
	"context"
	"testing"
	"time"

	"github.com/sotto-ai/sotto/pkg/audio"
	"github.com/sotto-ai/sotto/pkg/audio/mock"
)

func TestCaptureSlicesWindows(t *testing.T) {
	t.Parallel()

	// 100 samples at 100Hz with 1s chunks → one window per 100 samples.
	src := &mock.Source{
		Rate: 100,
		Frames: [][]float32{
			make([]float32, 60),
			make([]float32, 60), // buffer hits 120: one window, 20 left over
			make([]float32, 90), // buffer hits 110: one window, 10 left over
		},
	}
	cpt := audio.NewCapture(src, audio.WithChunkDuration(time.Second))
	if err := cpt.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer cpt.Stop()

	var windows []audio.Window
	for w := range cpt.Windows() {
		windows = append(windows, w)
	}
	if len(windows) != 2 {
		t.Fatalf("got %d windows, want 2", len(windows))
	}
	for i, w := range windows {
		if len(w.Samples) != 100 {
			t.Errorf("window %d: %d samples, want 100", i, len(w.Samples))
		}
		if w.SampleRate != 100 {
			t.Errorf("window %d: rate %d, want 100", i, w.SampleRate)
		}
		if w.Duration() != time.Second {
			t.Errorf("window %d: duration %v, want 1s", i, w.Duration())
		}
	}
}

func TestCaptureDropsWhenQueueFull(t *testing.T) {
	t.Parallel()

	frames := make([][]float32, 5)
	for i := range frames {
		frames[i] = make([]float32, 10)
	}
	src := &mock.Source{Rate: 10, Frames: frames}

	// Five 1s windows into a queue of one with no consumer: windows beyond
	// the first must be dropped rather than block the capture loop.
	cpt := audio.NewCapture(src, audio.WithChunkDuration(time.Second), audio.WithQueueSize(1))
	if err := cpt.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for cpt.Dropped() < 4 {
		select {
		case <-deadline:
			t.Fatalf("dropped = %d, want 4", cpt.Dropped())
		case <-time.After(10 * time.Millisecond):
		}
	}
	cpt.Stop()

	var delivered int
	for range cpt.Windows() {
		delivered++
	}
	if delivered != 1 {
		t.Errorf("delivered = %d, want 1", delivered)
	}
}

func TestCaptureLevel(t *testing.T) {
	t.Parallel()

	loud := make([]float32, 100)
	for i := range loud {
		loud[i] = 0.5
	}
	src := &mock.Source{Rate: 100, Frames: [][]float32{loud}}

	cpt := audio.NewCapture(src, audio.WithChunkDuration(time.Second))
	if err := cpt.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer cpt.Stop()

	for range cpt.Windows() {
	}
	if lvl := cpt.Level(); lvl < 0.49 || lvl > 0.51 {
		t.Errorf("Level() = %v, want ~0.5", lvl)
	}
}

func TestCaptureStartTwice(t *testing.T) {
	t.Parallel()

	src := &mock.Source{Rate: 100}
	cpt := audio.NewCapture(src)
	if err := cpt.Start(context.Background()); err != nil {
		t.Fatalf("first Start() error: %v", err)
	}
	defer cpt.Stop()

	if err := cpt.Start(context.Background()); err == nil {
		t.Error("second Start() should fail while running")
	}
}

func TestCaptureStopIdempotent(t *testing.T) {
	t.Parallel()

	src := &mock.Source{Rate: 100}
	cpt := audio.NewCapture(src)
	if err := cpt.Start(context.Background()); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	cpt.Stop()
	cpt.Stop()
}
