package retrieval

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/sotto-ai/sotto/pkg/provider/embeddings"
	"github.com/sotto-ai/sotto/pkg/vectorstore"
)

// defaultMaxChunkChars caps passage length so a single passage never
// dominates the prompt's context block.
const defaultMaxChunkChars = 1200

// indexableExtensions lists the file types the indexer reads.
var indexableExtensions = map[string]struct{}{
	".md": {}, ".txt": {},
}

// Indexer loads knowledge-base documents, splits them into passages, embeds
// them in batches, and upserts them into the vector store.
type Indexer struct {
	embedder      embeddings.Provider
	store         vectorstore.Store
	logger        *slog.Logger
	maxChunkChars int
}

// IndexerOption is a functional option for Indexer.
type IndexerOption func(*Indexer)

// WithMaxChunkChars overrides the passage length cap.
func WithMaxChunkChars(n int) IndexerOption {
	return func(ix *Indexer) {
		if n > 0 {
			ix.maxChunkChars = n
		}
	}
}

// WithIndexerLogger sets the logger used for per-file progress.
func WithIndexerLogger(logger *slog.Logger) IndexerOption {
	return func(ix *Indexer) {
		if logger != nil {
			ix.logger = logger
		}
	}
}

// NewIndexer creates an Indexer over the given embedder and store.
func NewIndexer(embedder embeddings.Provider, store vectorstore.Store, opts ...IndexerOption) *Indexer {
	ix := &Indexer{
		embedder:      embedder,
		store:         store,
		logger:        slog.Default(),
		maxChunkChars: defaultMaxChunkChars,
	}
	for _, o := range opts {
		o(ix)
	}
	return ix
}

// IndexDir walks dir, indexing every .md and .txt file found. It returns the
// total number of passages written to the store.
func (ix *Indexer) IndexDir(ctx context.Context, dir string) (int, error) {
	var total int
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := indexableExtensions[strings.ToLower(filepath.Ext(path))]; !ok {
			return nil
		}
		n, err := ix.IndexFile(ctx, path)
		if err != nil {
			return err
		}
		total += n
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("retrieval: indexing %s: %w", dir, err)
	}
	return total, nil
}

// IndexFile indexes a single document and returns the number of passages
// written. Files that yield no passages (e.g. empty files) are skipped.
func (ix *Indexer) IndexFile(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("retrieval: reading %s: %w", path, err)
	}
	source := filepath.Base(path)
	chunks := splitChunks(string(data), ix.maxChunkChars)
	if len(chunks) == 0 {
		ix.logger.Debug("skipping empty document", "source", source)
		return 0, nil
	}

	vectors, err := ix.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		return 0, fmt.Errorf("retrieval: embedding %s: %w", source, err)
	}
	if len(vectors) != len(chunks) {
		return 0, fmt.Errorf("retrieval: embedding %s: got %d vectors for %d chunks", source, len(vectors), len(chunks))
	}

	passages := make([]vectorstore.Passage, len(chunks))
	for i, text := range chunks {
		passages[i] = vectorstore.Passage{
			ID:        passageID(source, i, text),
			Text:      text,
			Source:    source,
			Embedding: vectors[i],
		}
	}
	if err := ix.store.Upsert(ctx, passages); err != nil {
		return 0, fmt.Errorf("retrieval: storing %s: %w", source, err)
	}

	ix.logger.Info("indexed document", "source", source, "passages", len(passages))
	return len(passages), nil
}

// splitChunks splits a document into paragraph-aligned passages no longer
// than maxChars. Paragraphs longer than maxChars are split on sentence-ish
// boundaries as a fallback, then hard-wrapped if still too long.
func splitChunks(text string, maxChars int) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
	}

	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if len(para) > maxChars {
			flush()
			chunks = append(chunks, splitLong(para, maxChars)...)
			continue
		}
		if current.Len() > 0 && current.Len()+len(para)+2 > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString("\n\n")
		}
		current.WriteString(para)
	}
	flush()
	return chunks
}

// splitLong breaks an oversized paragraph at sentence boundaries, falling
// back to a hard cut when a single sentence exceeds maxChars.
func splitLong(para string, maxChars int) []string {
	var chunks []string
	var current strings.Builder

	flush := func() {
		chunk := strings.TrimSpace(current.String())
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		current.Reset()
	}

	for _, sentence := range strings.SplitAfter(para, ". ") {
		for len(sentence) > maxChars {
			flush()
			chunks = append(chunks, strings.TrimSpace(sentence[:maxChars]))
			sentence = sentence[maxChars:]
		}
		if current.Len()+len(sentence) > maxChars {
			flush()
		}
		current.WriteString(sentence)
	}
	flush()
	return chunks
}

// passageID derives a stable ID from the source name, chunk index, and a
// digest of the text, so re-indexing an unchanged file is a no-op upsert.
func passageID(source string, index int, text string) string {
	sum := md5.Sum([]byte(text))
	return fmt.Sprintf("%s:%d:%s", source, index, hex.EncodeToString(sum[:8]))
}
