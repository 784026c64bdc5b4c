// Package embeddings defines the Provider interface for vector embedding
// backends.
//
// An embeddings provider maps text to dense float32 vectors. Sotto uses the
// same provider on both sides of retrieval: the indexer embeds document
// passages at startup, and the retriever embeds detected questions during a
// session. Mixing vectors from different providers (or models) in one store
// produces meaningless distances, so a deployment picks one provider and
// sticks with it.
//
// Implementations must be safe for concurrent use.
package embeddings

import "context"

// Provider is the abstraction over any text-embedding backend.
type Provider interface {
	// Embed computes the vector for a single text. The result has length
	// Dimensions(). Text is passed to the backend verbatim; any model-specific
	// prefixing is the caller's job.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds texts in one backend call where the API allows it.
	// The i-th result corresponds to texts[i]. On error no partial results
	// are returned.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions is the fixed length of every vector this provider produces,
	// constant for the provider's lifetime. The vector store validates
	// against it.
	Dimensions() int

	// ModelID identifies the underlying model, for logging and for checking
	// that an existing store was built with the same model.
	ModelID() string
}
