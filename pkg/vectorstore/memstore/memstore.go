// Package memstore provides an in-memory vectorstore.Store with exact
// brute-force cosine search. It backs single-user setups that have no
// PostgreSQL available and is the store of choice in tests.
package memstore

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/sotto-ai/sotto/pkg/vectorstore"
)

// Ensure Store implements vectorstore.Store at compile time.
var _ vectorstore.Store = (*Store)(nil)

// Store is an in-memory implementation of vectorstore.Store.
// All methods are safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	dimensions int
	passages   map[string]vectorstore.Passage
}

// New creates an empty Store expecting embeddings of the given length.
func New(dimensions int) (*Store, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("memstore: dimensions must be positive, got %d", dimensions)
	}
	return &Store{
		dimensions: dimensions,
		passages:   make(map[string]vectorstore.Passage),
	}, nil
}

// Upsert implements vectorstore.Store.
func (s *Store) Upsert(_ context.Context, passages []vectorstore.Passage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range passages {
		if len(p.Embedding) != s.dimensions {
			return fmt.Errorf("memstore: upsert %q: embedding has %d dimensions, store expects %d",
				p.ID, len(p.Embedding), s.dimensions)
		}
		s.passages[p.ID] = p
	}
	return nil
}

// Query implements vectorstore.Store with a brute-force scan. Results are
// ordered by ascending cosine distance; ties break by passage ID for
// deterministic output.
func (s *Store) Query(_ context.Context, embedding []float32, topK int) ([]vectorstore.Result, error) {
	if len(embedding) != s.dimensions {
		return nil, fmt.Errorf("memstore: query: embedding has %d dimensions, store expects %d",
			len(embedding), s.dimensions)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make([]vectorstore.Result, 0, len(s.passages))
	for _, p := range s.passages {
		results = append(results, vectorstore.Result{
			Passage:  p,
			Distance: cosineDistance(embedding, p.Embedding),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Distance != results[j].Distance {
			return results[i].Distance < results[j].Distance
		}
		return results[i].Passage.ID < results[j].Passage.ID
	})
	if topK < 0 {
		topK = 0
	}
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Count implements vectorstore.Store.
func (s *Store) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.passages), nil
}

// cosineDistance returns 1 − cosine similarity, matching pgvector's <=>
// operator. Zero vectors yield the maximum distance of 1.
func cosineDistance(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(normA)*math.Sqrt(normB))
}
