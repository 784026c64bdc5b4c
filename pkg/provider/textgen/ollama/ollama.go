// Package ollama provides a textgen provider backed by a local Ollama server.
//
// It uses Ollama's native /api/generate endpoint, which supports stop
// sequences and newline-delimited JSON streaming out of the box.
//
// Example usage:
//
//	p, err := ollama.New("", "llama3.2:3b") // connects to http://localhost:11434
//	answer, err := p.Generate(ctx, prompt, textgen.Options{Temperature: 0.7})
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sotto-ai/sotto/pkg/provider/textgen"
)

// DefaultBaseURL is the default base URL for a locally running Ollama instance.
const DefaultBaseURL = "http://localhost:11434"

// Ensure Provider implements the textgen.Provider interface at compile time.
var _ textgen.Provider = (*Provider)(nil)

// Provider implements textgen.Provider using a local Ollama server.
// It is safe for concurrent use.
type Provider struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// config holds optional configuration collected from functional options.
type config struct {
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithTimeout sets a per-request HTTP timeout on the underlying HTTP client.
// A zero or negative value means no timeout (the default). Streaming calls
// should use a generous timeout or none at all.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
	}
}

// New constructs a new Ollama Provider.
//
// baseURL is the base URL of the Ollama server (e.g., "http://localhost:11434").
// If empty, DefaultBaseURL is used. A trailing slash is stripped automatically.
//
// model is the Ollama model name to use for generation (e.g., "llama3.2:3b").
// It must not be empty.
func New(baseURL string, model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama textgen: model must not be empty")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	cfg := &config{}
	for _, o := range opts {
		o(cfg)
	}

	httpClient := &http.Client{}
	if cfg.timeout > 0 {
		httpClient.Timeout = cfg.timeout
	}

	return &Provider{
		baseURL:    baseURL,
		model:      model,
		httpClient: httpClient,
	}, nil
}

// generateRequest is the JSON request body sent to Ollama's /api/generate endpoint.
type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options,omitempty"`
}

// generateOptions carries Ollama model options. Zero values are omitted so the
// server defaults apply.
type generateOptions struct {
	Temperature float64  `json:"temperature,omitempty"`
	NumPredict  int      `json:"num_predict,omitempty"`
	Stop        []string `json:"stop,omitempty"`
}

// generateResponse is one JSON object from Ollama's /api/generate endpoint.
// In streaming mode the endpoint emits one object per line.
type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

// Generate implements textgen.Provider with a single non-streaming request.
func (p *Provider) Generate(ctx context.Context, prompt string, opts textgen.Options) (string, error) {
	resp, err := p.call(ctx, prompt, opts, false)
	if err != nil {
		return "", fmt.Errorf("ollama textgen: generate: %w", err)
	}
	defer resp.Body.Close()

	var result generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("ollama textgen: generate: decode response: %w", err)
	}
	if result.Error != "" {
		return "", fmt.Errorf("ollama textgen: generate: server error: %s", result.Error)
	}
	return result.Response, nil
}

// GenerateStream implements textgen.Provider by consuming Ollama's
// newline-delimited JSON stream and forwarding each fragment as a Chunk.
func (p *Provider) GenerateStream(ctx context.Context, prompt string, opts textgen.Options) (<-chan textgen.Chunk, error) {
	resp, err := p.call(ctx, prompt, opts, true)
	if err != nil {
		return nil, fmt.Errorf("ollama textgen: stream: %w", err)
	}

	ch := make(chan textgen.Chunk, 32)
	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 {
				continue
			}
			var part generateResponse
			if err := json.Unmarshal(line, &part); err != nil {
				p.emit(ctx, ch, textgen.Chunk{Err: fmt.Errorf("ollama textgen: stream: decode line: %w", err)})
				return
			}
			if part.Error != "" {
				p.emit(ctx, ch, textgen.Chunk{Err: fmt.Errorf("ollama textgen: stream: server error: %s", part.Error)})
				return
			}
			if part.Response != "" {
				if !p.emit(ctx, ch, textgen.Chunk{Text: part.Response}) {
					return
				}
			}
			if part.Done {
				return
			}
		}
		if err := scanner.Err(); err != nil {
			p.emit(ctx, ch, textgen.Chunk{Err: fmt.Errorf("ollama textgen: stream: read: %w", err)})
		}
	}()

	return ch, nil
}

// ModelID implements textgen.Provider by returning the Ollama model name
// supplied at construction time.
func (p *Provider) ModelID() string {
	return p.model
}

// emit sends a chunk unless ctx is cancelled. Returns false when the send was
// abandoned.
func (p *Provider) emit(ctx context.Context, ch chan<- textgen.Chunk, c textgen.Chunk) bool {
	select {
	case ch <- c:
		return true
	case <-ctx.Done():
		return false
	}
}

// call issues the POST /api/generate request and returns the raw response
// after checking the status code. The caller owns resp.Body.
func (p *Provider) call(ctx context.Context, prompt string, opts textgen.Options, stream bool) (*http.Response, error) {
	body, err := json.Marshal(generateRequest{
		Model:  p.model,
		Prompt: prompt,
		Stream: stream,
		Options: generateOptions{
			Temperature: opts.Temperature,
			NumPredict:  opts.MaxTokens,
			Stop:        opts.Stop,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return resp, nil
}
