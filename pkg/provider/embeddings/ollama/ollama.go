// Package ollama provides an embeddings provider backed by a local Ollama
// server.
//
// Sotto's default deployment keeps everything on-machine, so this provider
// speaks Ollama's native /api/embed endpoint directly with net/http rather
// than pulling in a client SDK. Typical models: nomic-embed-text,
// mxbai-embed-large, all-minilm.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sotto-ai/sotto/pkg/provider/embeddings"
)

// DefaultBaseURL is where a locally running Ollama instance listens.
const DefaultBaseURL = "http://localhost:11434"

var _ embeddings.Provider = (*Provider)(nil)

// Provider implements embeddings.Provider against an Ollama server.
//
// The vector dimension is resolved from, in order: the WithDimensions
// option, a table of well-known model names, or a one-time probe embed on
// the first Dimensions call. Provider is safe for concurrent use.
type Provider struct {
	baseURL string
	model   string
	client  *http.Client

	dims      int
	probeOnce sync.Once
}

// Option is a functional option for Provider.
type Option func(*Provider)

// WithTimeout sets a per-request HTTP timeout. Zero or negative means no
// timeout (the default).
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		if d > 0 {
			p.client.Timeout = d
		}
	}
}

// WithDimensions pre-sets the vector dimension, skipping both the model
// table and the probe request for unknown models.
func WithDimensions(dims int) Option {
	return func(p *Provider) {
		p.dims = dims
	}
}

// New constructs a Provider for the given server and model. An empty baseURL
// means DefaultBaseURL; model must not be empty.
func New(baseURL string, model string, opts ...Option) (*Provider, error) {
	if model == "" {
		return nil, fmt.Errorf("ollama embeddings: model must not be empty")
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	p := &Provider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  &http.Client{},
	}
	for _, o := range opts {
		o(p)
	}
	if p.dims == 0 {
		p.dims = knownDimensions(model)
	}
	return p, nil
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed implements embeddings.Provider. The text is forwarded verbatim; any
// model-specific prefixing ("query: ", "passage: ") is the caller's job.
func (p *Provider) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := p.post(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: embed: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("ollama embeddings: embed: empty response")
	}
	return vecs[0], nil
}

// EmbedBatch implements embeddings.Provider with a single /api/embed call.
// An empty texts slice returns (nil, nil) without touching the network.
func (p *Provider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	vecs, err := p.post(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings: embed batch: %w", err)
	}
	if len(vecs) != len(texts) {
		return nil, fmt.Errorf("ollama embeddings: embed batch: expected %d embeddings, got %d", len(texts), len(vecs))
	}
	return vecs, nil
}

// Dimensions implements embeddings.Provider. For models missing from the
// built-in table it issues one probe embed against the live server and
// caches the result; a failed probe yields 0.
func (p *Provider) Dimensions() int {
	if p.dims != 0 {
		return p.dims
	}
	p.probeOnce.Do(func() {
		vecs, err := p.post(context.Background(), []string{"probe"})
		if err == nil && len(vecs) > 0 {
			p.dims = len(vecs[0])
		}
	})
	return p.dims
}

// ModelID implements embeddings.Provider.
func (p *Provider) ModelID() string {
	return p.model
}

func (p *Provider) post(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: p.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var result embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("empty embeddings in response")
	}
	return result.Embeddings, nil
}

// knownDimensions returns the output dimension for recognised Ollama
// embedding models, or 0 to trigger a probe.
func knownDimensions(model string) int {
	lower := strings.ToLower(model)
	switch {
	case strings.Contains(lower, "nomic-embed-text"):
		return 768
	case strings.Contains(lower, "mxbai-embed-large"):
		return 1024
	case strings.Contains(lower, "all-minilm"):
		return 384
	default:
		return 0
	}
}
