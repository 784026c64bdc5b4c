package answer

import (
	"math"
	"strings"
	"testing"

	"github.com/sotto-ai/sotto/pkg/vectorstore"
)

// resultWithSimilarity builds a retrieval result whose Similarity() equals s.
func resultWithSimilarity(s float64) vectorstore.Result {
	return vectorstore.Result{Distance: 2 * (1 - s)}
}

// mediumAnswer is long enough to avoid the short-answer penalty.
const mediumAnswer = "I led the migration of our payment stack to a new provider over one quarter, " +
	"coordinating three teams and cutting checkout latency by forty percent."

func TestConfidenceScore(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		answer  string
		results []vectorstore.Result
		want    float64
	}{
		{
			name:    "no context",
			answer:  mediumAnswer,
			results: nil,
			want:    0.2,
		},
		{
			name:    "high similarity",
			answer:  mediumAnswer,
			results: []vectorstore.Result{resultWithSimilarity(0.8)},
			want:    0.85,
		},
		{
			name:    "medium similarity",
			answer:  mediumAnswer,
			results: []vectorstore.Result{resultWithSimilarity(0.6)},
			want:    0.65,
		},
		{
			name:    "low similarity",
			answer:  mediumAnswer,
			results: []vectorstore.Result{resultWithSimilarity(0.4)},
			want:    0.45,
		},
		{
			name:    "very low similarity",
			answer:  mediumAnswer,
			results: []vectorstore.Result{resultWithSimilarity(0.1)},
			want:    0.25,
		},
		{
			name:    "short answer penalty",
			answer:  "I led the migration.",
			results: []vectorstore.Result{resultWithSimilarity(0.8)},
			want:    0.85 * 0.7,
		},
		{
			name:    "long answer penalty",
			answer:  strings.Repeat("word ", 101),
			results: []vectorstore.Result{resultWithSimilarity(0.8)},
			want:    0.85 * 0.9,
		},
		{
			name:    "hedging halves confidence",
			answer:  "I don't have specific experience with that, but I once handled a comparable rollout with a small team on short notice.",
			results: []vectorstore.Result{resultWithSimilarity(0.8)},
			want:    0.85 * 0.5,
		},
		{
			name:    "penalties stack",
			answer:  "Not sure about that.",
			results: []vectorstore.Result{resultWithSimilarity(0.8)},
			want:    0.85 * 0.7 * 0.5,
		},
		{
			name:    "only top result matters",
			answer:  mediumAnswer,
			results: []vectorstore.Result{resultWithSimilarity(0.8), resultWithSimilarity(0.1)},
			want:    0.85,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := confidenceScore(tt.answer, tt.results)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("confidenceScore() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestConfidenceScoreBounds(t *testing.T) {
	t.Parallel()
	got := confidenceScore(mediumAnswer, []vectorstore.Result{resultWithSimilarity(1.0)})
	if got < 0 || got > 1 {
		t.Errorf("confidenceScore() = %v, outside [0, 1]", got)
	}
}
