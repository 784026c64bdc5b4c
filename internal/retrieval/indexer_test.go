package retrieval

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	embmock "github.com/sotto-ai/sotto/pkg/provider/embeddings/mock"
	"github.com/sotto-ai/sotto/pkg/vectorstore/memstore"
)

func TestSplitChunks(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name     string
		text     string
		maxChars int
		want     int
	}{
		{name: "empty document", text: "", maxChars: 100, want: 0},
		{name: "single paragraph", text: "A short paragraph.", maxChars: 100, want: 1},
		{
			name:     "paragraphs merge under the cap",
			text:     "First.\n\nSecond.",
			maxChars: 100,
			want:     1,
		},
		{
			name:     "paragraphs split over the cap",
			text:     strings.Repeat("a", 60) + "\n\n" + strings.Repeat("b", 60),
			maxChars: 100,
			want:     2,
		},
		{
			name:     "oversized paragraph hard-split",
			text:     strings.Repeat("x", 250),
			maxChars: 100,
			want:     3,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := splitChunks(tt.text, tt.maxChars)
			if len(got) != tt.want {
				t.Errorf("splitChunks() produced %d chunks, want %d: %q", len(got), tt.want, got)
			}
			for i, c := range got {
				if len(c) > tt.maxChars {
					t.Errorf("chunk %d has %d chars, cap is %d", i, len(c), tt.maxChars)
				}
			}
		})
	}
}

func TestIndexDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	files := map[string]string{
		"resume.md":  "Led a team of five engineers.\n\nShipped a payments platform.",
		"stories.txt": "Resolved a deployment dispute between two teams.",
		"photo.png":  "binary junk that must be skipped",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("writing fixture: %v", err)
		}
	}

	store, err := memstore.New(2)
	if err != nil {
		t.Fatalf("memstore.New() error: %v", err)
	}
	embedder := &embmock.Provider{
		EmbedFunc: func(text string) []float32 {
			return []float32{float32(len(text)), 1}
		},
	}

	ix := NewIndexer(embedder, store)
	n, err := ix.IndexDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("IndexDir() error: %v", err)
	}
	if n != 2 {
		t.Errorf("IndexDir() = %d passages, want 2", n)
	}

	count, err := store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if count != 2 {
		t.Errorf("store holds %d passages, want 2", count)
	}
}

func TestIndexFileIdempotent(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "resume.md")
	if err := os.WriteFile(path, []byte("Five years of Go in production."), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	store, err := memstore.New(2)
	if err != nil {
		t.Fatalf("memstore.New() error: %v", err)
	}
	embedder := &embmock.Provider{EmbedBatchResult: [][]float32{{1, 0}}}
	ix := NewIndexer(embedder, store)

	ctx := context.Background()
	for range 2 {
		if _, err := ix.IndexFile(ctx, path); err != nil {
			t.Fatalf("IndexFile() error: %v", err)
		}
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error: %v", err)
	}
	if count != 1 {
		t.Errorf("re-indexing duplicated passages: count = %d, want 1", count)
	}
}

func TestIndexFileEmptyDocument(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "empty.md")
	if err := os.WriteFile(path, []byte("\n\n  \n"), 0o644); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	store, err := memstore.New(2)
	if err != nil {
		t.Fatalf("memstore.New() error: %v", err)
	}
	embedder := &embmock.Provider{}
	ix := NewIndexer(embedder, store)

	n, err := ix.IndexFile(context.Background(), path)
	if err != nil {
		t.Fatalf("IndexFile() error: %v", err)
	}
	if n != 0 {
		t.Errorf("IndexFile() = %d, want 0 for an empty document", n)
	}
	if len(embedder.EmbedBatchCalls) != 0 {
		t.Error("empty document should not reach the embedder")
	}
}
