// Package textgen defines the Provider interface for text generation backends.
//
// A textgen provider wraps a local or remote language model (e.g. an Ollama
// instance or any OpenAI-compatible API) and exposes a uniform prompt-in,
// text-out interface for answer generation, without coupling to any specific
// SDK.
//
// Implementations must be safe for concurrent use. Channels returned by
// GenerateStream must be closed by the implementation when the stream ends or
// when the supplied context is cancelled.
package textgen

import (
	"context"
	"strings"
)

// Options carries the sampling parameters for a generation call.
type Options struct {
	// Temperature controls output randomness in the range [0.0, 2.0]. Lower
	// values produce more deterministic outputs. Zero means use the provider
	// default.
	Temperature float64

	// MaxTokens caps the number of completion tokens the model may generate.
	// Zero means use the provider default.
	MaxTokens int

	// Stop lists sequences at which generation must halt. The matched
	// sequence is not included in the output. Providers without native stop
	// support truncate client-side at the first occurrence.
	Stop []string
}

// Chunk is a fragment emitted by a streaming generation.
type Chunk struct {
	// Text is the incremental text content of this chunk. May be empty on
	// the final chunk when it only carries an error.
	Text string

	// Err is non-nil on the final chunk when the stream failed mid-way.
	// No further chunks follow a chunk with a non-nil Err.
	Err error
}

// Provider is the abstraction over any text generation backend.
//
// Implementations must be safe for concurrent use from multiple goroutines
// and must propagate context cancellation promptly.
type Provider interface {
	// Generate sends the prompt to the model and waits for the full response.
	Generate(ctx context.Context, prompt string, opts Options) (string, error)

	// GenerateStream sends the prompt to the model and returns a read-only
	// channel emitting Chunk values as they arrive. The channel is closed by
	// the implementation when generation finishes or ctx is cancelled.
	//
	// Callers must drain the channel to avoid goroutine leaks. Errors that
	// occur after the stream has started are surfaced as a final Chunk with
	// a non-nil Err; the initial error return is non-nil only for failures
	// that prevent the stream from starting.
	GenerateStream(ctx context.Context, prompt string, opts Options) (<-chan Chunk, error)

	// ModelID returns the provider-specific model identifier (e.g.
	// "llama3.2:3b"). Useful for logging.
	ModelID() string
}

// TruncateAtStop cuts text at the earliest occurrence of any stop sequence.
// It is the client-side fallback for providers without native stop support.
func TruncateAtStop(text string, stop []string) string {
	cut := len(text)
	for _, s := range stop {
		if s == "" {
			continue
		}
		if idx := strings.Index(text, s); idx >= 0 && idx < cut {
			cut = idx
		}
	}
	return text[:cut]
}
