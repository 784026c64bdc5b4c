// Package anyllm provides a universal textgen provider backed by
// github.com/mozilla-ai/any-llm-go, a unified multi-provider interface that
// supports OpenAI, Anthropic, Gemini, Ollama, DeepSeek, Mistral, Groq, and more.
//
// Usage:
//
//	p, err := anyllm.New("openai", "gpt-4o-mini", anyllmlib.WithAPIKey("sk-..."))
//	p, err := anyllm.NewAnthropic("claude-3-5-haiku-latest", anyllmlib.WithAPIKey("sk-ant-..."))
//
// The chat-completion APIs wrapped here do not expose a uniform stop-sequence
// parameter, so stop handling is client-side: Generate truncates the final
// text, and GenerateStream stops forwarding as soon as a stop sequence
// appears in the accumulated output.
package anyllm

import (
	"context"
	"fmt"
	"strings"

	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/anthropic"
	"github.com/mozilla-ai/any-llm-go/providers/deepseek"
	"github.com/mozilla-ai/any-llm-go/providers/gemini"
	"github.com/mozilla-ai/any-llm-go/providers/groq"
	"github.com/mozilla-ai/any-llm-go/providers/llamacpp"
	"github.com/mozilla-ai/any-llm-go/providers/llamafile"
	"github.com/mozilla-ai/any-llm-go/providers/mistral"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
	anyllmoai "github.com/mozilla-ai/any-llm-go/providers/openai"

	"github.com/sotto-ai/sotto/pkg/provider/textgen"
)

// Ensure Provider implements the textgen.Provider interface at compile time.
var _ textgen.Provider = (*Provider)(nil)

// Provider implements textgen.Provider by wrapping github.com/mozilla-ai/any-llm-go.
type Provider struct {
	backend anyllmlib.Provider
	model   string
}

// New creates a new Provider backed by the given LLM provider name.
//
// providerName is one of: "openai", "anthropic", "gemini", "ollama", "deepseek",
// "mistral", "groq", "llamacpp", "llamafile".
//
// model is the specific model to use (e.g., "gpt-4o-mini", "llama3.2:3b").
//
// opts are any-llm-go configuration options (e.g., anyllmlib.WithAPIKey,
// anyllmlib.WithBaseURL). If no API key option is provided, the provider
// falls back to the relevant environment variable (OPENAI_API_KEY, etc.).
func New(providerName string, model string, opts ...anyllmlib.Option) (*Provider, error) {
	if providerName == "" {
		return nil, fmt.Errorf("anyllm: providerName must not be empty")
	}
	if model == "" {
		return nil, fmt.Errorf("anyllm: model must not be empty")
	}

	backend, err := createBackend(providerName, opts...)
	if err != nil {
		return nil, fmt.Errorf("anyllm: create %q backend: %w", providerName, err)
	}

	return &Provider{backend: backend, model: model}, nil
}

// NewOpenAI creates a Provider backed by OpenAI.
// Without options, it reads the OPENAI_API_KEY environment variable.
func NewOpenAI(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("openai", model, opts...)
}

// NewAnthropic creates a Provider backed by Anthropic.
// Without options, it reads the ANTHROPIC_API_KEY environment variable.
func NewAnthropic(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("anthropic", model, opts...)
}

// NewOllama creates a Provider backed by Ollama's OpenAI-compatible chat API.
// Without options, it connects to http://localhost:11434.
func NewOllama(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("ollama", model, opts...)
}

// NewLlamaCpp creates a Provider backed by a running llama.cpp server.
// Without options, it connects to http://127.0.0.1:8080/v1.
func NewLlamaCpp(model string, opts ...anyllmlib.Option) (*Provider, error) {
	return New("llamacpp", model, opts...)
}

// createBackend creates the underlying any-llm-go provider for the given provider name.
func createBackend(providerName string, opts ...anyllmlib.Option) (anyllmlib.Provider, error) {
	switch strings.ToLower(providerName) {
	case "openai":
		return anyllmoai.New(opts...)
	case "anthropic":
		return anthropic.New(opts...)
	case "gemini":
		return gemini.New(opts...)
	case "ollama":
		return ollama.New(opts...)
	case "deepseek":
		return deepseek.New(opts...)
	case "mistral":
		return mistral.New(opts...)
	case "groq":
		return groq.New(opts...)
	case "llamacpp":
		return llamacpp.New(opts...)
	case "llamafile":
		return llamafile.New(opts...)
	default:
		return nil, fmt.Errorf("unsupported provider %q; supported: openai, anthropic, gemini, ollama, deepseek, mistral, groq, llamacpp, llamafile", providerName)
	}
}

// Generate implements textgen.Provider.
func (p *Provider) Generate(ctx context.Context, prompt string, opts textgen.Options) (string, error) {
	params := p.buildParams(prompt, opts)

	resp, err := p.backend.Completion(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anyllm: completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("anyllm: empty choices in response")
	}

	text := resp.Choices[0].Message.ContentString()
	return textgen.TruncateAtStop(text, opts.Stop), nil
}

// GenerateStream implements textgen.Provider. Stop sequences are enforced
// client-side: once a stop sequence appears in the accumulated output,
// forwarding ceases and the stream ends after the text before the match.
func (p *Provider) GenerateStream(ctx context.Context, prompt string, opts textgen.Options) (<-chan textgen.Chunk, error) {
	params := p.buildParams(prompt, opts)

	backendChunks, backendErrs := p.backend.CompletionStream(ctx, params)

	ch := make(chan textgen.Chunk, 32)
	go func() {
		defer close(ch)

		var accumulated strings.Builder
		var forwarded int

		for chunk := range backendChunks {
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			accumulated.WriteString(delta)

			text := textgen.TruncateAtStop(accumulated.String(), opts.Stop)
			stopped := len(text) < accumulated.Len()

			if len(text) > forwarded {
				select {
				case ch <- textgen.Chunk{Text: text[forwarded:]}:
					forwarded = len(text)
				case <-ctx.Done():
					return
				}
			}
			if stopped {
				// Drain the backend so its goroutine can exit.
				for range backendChunks {
				}
				<-backendErrs
				return
			}
		}

		if err := <-backendErrs; err != nil {
			select {
			case ch <- textgen.Chunk{Err: fmt.Errorf("anyllm: stream: %w", err)}:
			case <-ctx.Done():
			}
		}
	}()

	return ch, nil
}

// ModelID implements textgen.Provider.
func (p *Provider) ModelID() string {
	return p.model
}

// buildParams converts a prompt and Options into anyllm CompletionParams.
func (p *Provider) buildParams(prompt string, opts textgen.Options) anyllmlib.CompletionParams {
	params := anyllmlib.CompletionParams{
		Model: p.model,
		Messages: []anyllmlib.Message{
			{Role: anyllmlib.RoleUser, Content: prompt},
		},
	}
	if opts.Temperature != 0 {
		t := opts.Temperature
		params.Temperature = &t
	}
	if opts.MaxTokens > 0 {
		mt := opts.MaxTokens
		params.MaxTokens = &mt
	}
	return params
}
