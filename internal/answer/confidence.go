package answer

import (
	"strings"

	"github.com/sotto-ai/sotto/pkg/vectorstore"
)

// hedgingPhrases mark answers where the model admitted it had nothing
// concrete to work with. Their presence halves the confidence.
var hedgingPhrases = []string{
	"don't have specific experience",
	"not sure about",
	"can't recall",
	"trouble generating",
}

// confidenceScore estimates how much the user should trust a generated
// answer, in [0, 1]. The base score follows the top retrieval similarity and
// is then damped for suspicious answer lengths and hedging language.
func confidenceScore(answerText string, results []vectorstore.Result) float64 {
	if len(results) == 0 {
		return 0.2
	}

	topScore := results[0].Similarity()

	var confidence float64
	switch {
	case topScore >= 0.7:
		confidence = 0.85
	case topScore >= 0.5:
		confidence = 0.65
	case topScore >= 0.3:
		confidence = 0.45
	default:
		confidence = 0.25
	}

	words := len(strings.Fields(answerText))
	if words < 10 {
		confidence *= 0.7
	} else if words > 100 {
		confidence *= 0.9
	}

	lower := strings.ToLower(answerText)
	for _, phrase := range hedgingPhrases {
		if strings.Contains(lower, phrase) {
			confidence *= 0.5
			break
		}
	}

	return min(1.0, max(0.0, confidence))
}
