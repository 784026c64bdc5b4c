// Package mock provides an in-memory audio source for tests.
package mock

import (
	"context"
	"sync"
)

// Source replays a scripted sequence of sample frames. The frame channel is
// closed once all frames have been delivered or the context is cancelled.
type Source struct {
	Rate   int
	Frames [][]float32

	// KeepOpen leaves the frame channel open after the scripted frames until
	// the context is cancelled, like a microphone that keeps listening.
	KeepOpen bool

	// AvailableErr is returned from Available, scripting a missing device.
	AvailableErr error

	mu      sync.Mutex
	started int
}

// Start delivers the scripted frames on a fresh channel.
func (s *Source) Start(ctx context.Context) (<-chan []float32, error) {
	s.mu.Lock()
	s.started++
	s.mu.Unlock()

	out := make(chan []float32)
	go func() {
		defer close(out)
		for _, frame := range s.Frames {
			select {
			case out <- frame:
			case <-ctx.Done():
				return
			}
		}
		if s.KeepOpen {
			<-ctx.Done()
		}
	}()
	return out, nil
}

// Available returns AvailableErr.
func (s *Source) Available(context.Context) error {
	return s.AvailableErr
}

// SampleRate returns the configured rate, defaulting to 16000.
func (s *Source) SampleRate() int {
	if s.Rate == 0 {
		return 16000
	}
	return s.Rate
}

// StartCalls returns how many times Start has been invoked.
func (s *Source) StartCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}
