// Package vectorstore defines the storage interface for embedded document
// passages and the similarity search that powers answer retrieval.
//
// A passage is a chunk of text from the user's knowledge base (résumé, role
// description, prepared stories) together with its embedding vector and
// source metadata. Implementations index passages and answer k-nearest-
// neighbour queries by cosine distance.
//
// Implementations must be safe for concurrent use.
package vectorstore

import "context"

// Passage is one embedded chunk of knowledge-base text.
type Passage struct {
	// ID uniquely identifies the passage. Upserting a passage with an
	// existing ID replaces it.
	ID string

	// Text is the passage content handed to the prompt builder.
	Text string

	// Source names where the passage came from (e.g. "resume.md").
	Source string

	// Metadata carries arbitrary extra fields persisted with the passage.
	Metadata map[string]string

	// Embedding is the passage's vector. Its length must match the
	// dimensionality the store was created with.
	Embedding []float32
}

// Result is one similarity search hit.
type Result struct {
	Passage Passage

	// Distance is the cosine distance between the query embedding and the
	// passage embedding, in [0, 2]. Lower is more similar.
	Distance float64
}

// Similarity converts the result's cosine distance to a similarity score in
// [0, 1], clamping negative values to zero.
func (r Result) Similarity() float64 {
	sim := 1 - r.Distance/2
	if sim < 0 {
		return 0
	}
	return sim
}

// Store is the abstraction over any passage storage backend.
type Store interface {
	// Upsert inserts the passages, replacing any existing passage with the
	// same ID. All embeddings must share the store's dimensionality.
	Upsert(ctx context.Context, passages []Passage) error

	// Query returns the topK passages closest to the query embedding,
	// ordered by ascending cosine distance. Fewer than topK results are
	// returned when the store holds fewer passages. The result slice is
	// never nil on success.
	Query(ctx context.Context, embedding []float32, topK int) ([]Result, error)

	// Count returns the number of stored passages.
	Count(ctx context.Context) (int, error)
}
