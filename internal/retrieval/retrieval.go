// Package retrieval finds the knowledge-base passages most relevant to a
// detected question.
//
// The engine embeds the question, queries the vector store for the nearest
// passages, and caches question embeddings keyed by an MD5 digest of the
// normalised text so that repeated or re-transcribed questions skip the
// embedding call.
package retrieval

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sotto-ai/sotto/pkg/provider/embeddings"
	"github.com/sotto-ai/sotto/pkg/vectorstore"
)

const (
	// DefaultTopK is the number of passages fetched per question.
	DefaultTopK = 3

	// defaultCacheSize bounds the embedding cache. Interview sessions see at
	// most a few hundred distinct questions, so a small cache never evicts in
	// practice while still capping memory for long-running processes.
	defaultCacheSize = 256
)

// Engine retrieves relevant passages for questions. It is safe for
// concurrent use.
type Engine struct {
	embedder embeddings.Provider
	store    vectorstore.Store
	logger   *slog.Logger
	topK     int

	mu        sync.Mutex
	cache     map[string][]float32
	cacheKeys []string
	cacheSize int
}

// Option is a functional option for Engine.
type Option func(*Engine)

// WithTopK overrides DefaultTopK.
func WithTopK(k int) Option {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithCacheSize overrides the embedding cache bound. Zero disables caching.
func WithCacheSize(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.cacheSize = n
		}
	}
}

// WithLogger sets the logger used for retrieval failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Engine over the given embedder and store.
func New(embedder embeddings.Provider, store vectorstore.Store, opts ...Option) *Engine {
	e := &Engine{
		embedder:  embedder,
		store:     store,
		logger:    slog.Default(),
		topK:      DefaultTopK,
		cache:     make(map[string][]float32),
		cacheSize: defaultCacheSize,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Retrieve returns the passages most relevant to question, ordered most
// similar first. Failures degrade to an empty result: answering continues
// without context rather than not at all, and the error is returned for the
// caller to log or count.
func (e *Engine) Retrieve(ctx context.Context, question string) ([]vectorstore.Result, error) {
	embedding, err := e.embed(ctx, question)
	if err != nil {
		return []vectorstore.Result{}, fmt.Errorf("retrieval: embedding question: %w", err)
	}
	results, err := e.store.Query(ctx, embedding, e.topK)
	if err != nil {
		return []vectorstore.Result{}, fmt.Errorf("retrieval: querying store: %w", err)
	}
	return results, nil
}

// embed returns the question's embedding, consulting the cache first.
func (e *Engine) embed(ctx context.Context, question string) ([]float32, error) {
	key := cacheKey(question)

	e.mu.Lock()
	if vec, ok := e.cache[key]; ok {
		e.mu.Unlock()
		return vec, nil
	}
	e.mu.Unlock()

	vec, err := e.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.put(key, vec)
	e.mu.Unlock()
	return vec, nil
}

// put inserts an entry, evicting the oldest when the bound is reached.
// Callers must hold mu.
func (e *Engine) put(key string, vec []float32) {
	if e.cacheSize == 0 {
		return
	}
	if _, ok := e.cache[key]; ok {
		return
	}
	if len(e.cacheKeys) >= e.cacheSize {
		oldest := e.cacheKeys[0]
		e.cacheKeys = e.cacheKeys[1:]
		delete(e.cache, oldest)
	}
	e.cache[key] = vec
	e.cacheKeys = append(e.cacheKeys, key)
}

// CacheLen returns the number of cached question embeddings.
func (e *Engine) CacheLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}

// Stats describes the engine's current state.
type Stats struct {
	CachedEmbeddings int `json:"cached_embeddings"`
	IndexedPassages  int `json:"indexed_passages"`
	TopK             int `json:"top_k"`
}

// Stats reports cache occupancy and the passage count in the backing store.
func (e *Engine) Stats(ctx context.Context) (Stats, error) {
	n, err := e.store.Count(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("retrieval: counting passages: %w", err)
	}
	return Stats{
		CachedEmbeddings: e.CacheLen(),
		IndexedPassages:  n,
		TopK:             e.topK,
	}, nil
}

// cacheKey normalises the question and digests it, so trivial case and
// whitespace variations share one cache entry.
func cacheKey(question string) string {
	sum := md5.Sum([]byte(strings.ToLower(strings.TrimSpace(question))))
	return hex.EncodeToString(sum[:])
}
