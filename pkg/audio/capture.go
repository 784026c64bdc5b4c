package audio

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Capture reads raw sample frames from a Source, tracks the live input level
// and slices the stream into fixed-duration Windows. Windows are delivered on
// a bounded channel; when the consumer falls behind, the oldest pending work
// is not blocked on — the new window is dropped and a warning is logged.
type Capture struct {
	source Source
	logger *slog.Logger

	chunkDuration time.Duration
	queueSize     int

	// levelBits holds the most recent RMS level as math.Float64bits.
	levelBits atomic.Uint64

	windows chan Window
	dropped atomic.Uint64

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// CaptureOption customises a Capture.
type CaptureOption func(*Capture)

// WithChunkDuration sets the length of each emitted Window. Default is 5s.
func WithChunkDuration(d time.Duration) CaptureOption {
	return func(c *Capture) {
		if d > 0 {
			c.chunkDuration = d
		}
	}
}

// WithQueueSize sets the capacity of the window channel. Default is 8.
func WithQueueSize(n int) CaptureOption {
	return func(c *Capture) {
		if n > 0 {
			c.queueSize = n
		}
	}
}

// WithCaptureLogger sets the logger used for drop warnings.
func WithCaptureLogger(logger *slog.Logger) CaptureOption {
	return func(c *Capture) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewCapture creates a Capture reading from the given source.
func NewCapture(source Source, opts ...CaptureOption) *Capture {
	c := &Capture{
		source:        source,
		logger:        slog.Default(),
		chunkDuration: 5 * time.Second,
		queueSize:     8,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Windows returns the channel on which sliced audio windows are delivered.
// The channel is closed after Stop returns or the source ends.
func (c *Capture) Windows() <-chan Window {
	return c.windows
}

// Level returns the RMS amplitude of the most recently received frame,
// in [0, 1]. It is safe to call from any goroutine.
func (c *Capture) Level() float64 {
	return math.Float64frombits(c.levelBits.Load())
}

// Dropped returns the number of windows discarded because the queue was full.
func (c *Capture) Dropped() uint64 {
	return c.dropped.Load()
}

// Start begins reading from the source and slicing windows. It returns an
// error if the capture is already running or the source fails to start.
func (c *Capture) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("audio: capture already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	frames, err := c.source.Start(runCtx)
	if err != nil {
		cancel()
		return fmt.Errorf("audio: starting source: %w", err)
	}

	c.windows = make(chan Window, c.queueSize)
	c.done = make(chan struct{})
	c.cancel = cancel
	c.running = true

	go c.run(runCtx, frames)
	return nil
}

// Stop cancels the capture and waits for the processing goroutine to drain.
// The window channel is closed before Stop returns.
func (c *Capture) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	cancel, done := c.cancel, c.done
	c.running = false
	c.mu.Unlock()

	cancel()
	<-done
}

func (c *Capture) run(ctx context.Context, frames <-chan []float32) {
	defer close(c.done)
	defer close(c.windows)

	chunkSamples := int(c.chunkDuration.Seconds() * float64(c.source.SampleRate()))
	if chunkSamples <= 0 {
		chunkSamples = 1
	}

	var buffer []float32
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			c.levelBits.Store(math.Float64bits(RMS(frame)))
			buffer = append(buffer, frame...)
			for len(buffer) >= chunkSamples {
				chunk := make([]float32, chunkSamples)
				copy(chunk, buffer[:chunkSamples])
				buffer = buffer[chunkSamples:]
				c.emit(Window{
					Samples:    chunk,
					SampleRate: c.source.SampleRate(),
					Captured:   time.Now(),
				})
			}
		}
	}
}

func (c *Capture) emit(w Window) {
	select {
	case c.windows <- w:
	default:
		n := c.dropped.Add(1)
		c.logger.Warn("audio window queue full, dropping window",
			"duration", w.Duration(), "dropped_total", n)
	}
}
