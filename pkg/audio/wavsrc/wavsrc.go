// Package wavsrc provides an audio.Source that replays a WAV file, pacing
// frames in real time. It is used for development without a microphone and
// for end-to-end testing against recorded interviews.
package wavsrc

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"

	"github.com/sotto-ai/sotto/pkg/audio"
)

// Source replays the samples of a decoded WAV file.
type Source struct {
	path       string
	samples    []float32
	sampleRate int
	frameSize  time.Duration
	realtime   bool
}

var (
	_ audio.Source              = (*Source)(nil)
	_ audio.AvailabilityChecker = (*Source)(nil)
)

// Option customises a Source.
type Option func(*Source)

// WithFrameSize sets the duration of each delivered frame. Default is 100ms.
func WithFrameSize(d time.Duration) Option {
	return func(s *Source) {
		if d > 0 {
			s.frameSize = d
		}
	}
}

// WithRealtime controls whether frames are paced at playback speed. When
// disabled frames are delivered as fast as the consumer accepts them.
func WithRealtime(enabled bool) Option {
	return func(s *Source) {
		s.realtime = enabled
	}
}

// Open decodes the WAV file at path into a replayable source. Multi-channel
// files are downmixed to mono.
func Open(path string, opts ...Option) (*Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wavsrc: opening %q: %w", path, err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("wavsrc: %q is not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("wavsrc: decoding %q: %w", path, err)
	}

	bitDepth := buf.SourceBitDepth
	if bitDepth == 0 {
		bitDepth = int(dec.BitDepth)
	}
	scale := float32(int(1) << (bitDepth - 1))

	samples := make([]float32, len(buf.Data))
	for i, v := range buf.Data {
		samples[i] = float32(v) / scale
	}
	samples = audio.DownmixToMono(samples, buf.Format.NumChannels)

	s := &Source{
		path:       path,
		samples:    samples,
		sampleRate: buf.Format.SampleRate,
		frameSize:  100 * time.Millisecond,
		realtime:   true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Available reports whether the decoded file holds any audio.
func (s *Source) Available(context.Context) error {
	if len(s.samples) == 0 {
		return fmt.Errorf("wav file %q holds no samples", s.path)
	}
	return nil
}

// SampleRate returns the sample rate of the decoded file.
func (s *Source) SampleRate() int {
	return s.sampleRate
}

// Start replays the file's samples in frame-sized slices on a fresh channel.
// The channel is closed when the file ends or the context is cancelled.
func (s *Source) Start(ctx context.Context) (<-chan []float32, error) {
	samplesPerFrame := int(s.frameSize.Seconds() * float64(s.sampleRate))
	if samplesPerFrame <= 0 {
		samplesPerFrame = 1
	}

	out := make(chan []float32)
	go func() {
		defer close(out)
		var ticker *time.Ticker
		if s.realtime {
			ticker = time.NewTicker(s.frameSize)
			defer ticker.Stop()
		}
		for pos := 0; pos < len(s.samples); pos += samplesPerFrame {
			end := min(pos+samplesPerFrame, len(s.samples))
			if ticker != nil {
				select {
				case <-ticker.C:
				case <-ctx.Done():
					return
				}
			}
			select {
			case out <- s.samples[pos:end]:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
