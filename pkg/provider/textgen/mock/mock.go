// Package mock provides a test double for the textgen.Provider interface.
//
// Use Provider to return canned generations without a live model and to
// verify the prompts and options the caller submits.
package mock

import (
	"context"
	"sync"

	"github.com/sotto-ai/sotto/pkg/provider/textgen"
)

// GenerateCall records a single invocation of Generate or GenerateStream.
type GenerateCall struct {
	// Ctx is the context passed to the call.
	Ctx context.Context
	// Prompt is the prompt passed to the call.
	Prompt string
	// Opts is the Options value passed to the call.
	Opts textgen.Options
	// Stream is true when the call was GenerateStream.
	Stream bool
}

// Provider is a mock implementation of textgen.Provider.
type Provider struct {
	mu sync.Mutex

	// GenerateResult is returned by Generate and, split into per-rune chunks,
	// streamed by GenerateStream.
	GenerateResult string

	// GenerateErr, if non-nil, is returned as the error from Generate and as
	// the start error from GenerateStream.
	GenerateErr error

	// StreamChunks, if non-nil, overrides GenerateResult for GenerateStream.
	StreamChunks []textgen.Chunk

	// ModelIDValue is returned by ModelID.
	ModelIDValue string

	// GenerateCalls records every call to Generate and GenerateStream in order.
	GenerateCalls []GenerateCall
}

// Generate records the call and returns GenerateResult, GenerateErr. Stop
// sequences in Opts are honoured by truncation, mirroring real providers.
func (p *Provider) Generate(ctx context.Context, prompt string, opts textgen.Options) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Ctx: ctx, Prompt: prompt, Opts: opts})
	if p.GenerateErr != nil {
		return "", p.GenerateErr
	}
	return textgen.TruncateAtStop(p.GenerateResult, opts.Stop), nil
}

// GenerateStream records the call and streams either StreamChunks or the
// words of GenerateResult.
func (p *Provider) GenerateStream(ctx context.Context, prompt string, opts textgen.Options) (<-chan textgen.Chunk, error) {
	p.mu.Lock()
	p.GenerateCalls = append(p.GenerateCalls, GenerateCall{Ctx: ctx, Prompt: prompt, Opts: opts, Stream: true})
	err := p.GenerateErr
	chunks := p.StreamChunks
	result := p.GenerateResult
	p.mu.Unlock()

	if err != nil {
		return nil, err
	}

	ch := make(chan textgen.Chunk, 32)
	go func() {
		defer close(ch)
		if chunks == nil {
			chunks = []textgen.Chunk{{Text: textgen.TruncateAtStop(result, opts.Stop)}}
		}
		for _, c := range chunks {
			select {
			case ch <- c:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// ModelID returns ModelIDValue.
func (p *Provider) ModelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ModelIDValue
}

// GenerateCallCount returns the number of recorded calls. Thread-safe.
func (p *Provider) GenerateCallCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.GenerateCalls)
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.GenerateCalls = nil
}

// Ensure Provider implements textgen.Provider at compile time.
var _ textgen.Provider = (*Provider)(nil)
