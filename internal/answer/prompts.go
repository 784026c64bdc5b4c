package answer

import (
	"fmt"
	"strings"

	"github.com/sotto-ai/sotto/pkg/vectorstore"
)

// contextThreshold is the minimum top-passage similarity for the retrieved
// context to be considered useful. Below it the fallback prompt is used.
const contextThreshold = 0.3

// promptTemplate drives grounded answers. %s slots: formatted context, question.
const promptTemplate = `You are helping during a job interview. Based on the context from the candidate's documents, provide a concise, natural answer.

Context from candidate's resume and notes:
%s

Interview Question: "%s"

Instructions:
- Use STAR method (Situation, Task, Action, Result) if applicable
- Keep answer to 2-3 sentences (60-90 seconds when spoken)
- Be specific and reference actual experience from the context
- Sound natural and conversational (not robotic)
- If the context doesn't contain relevant information, say "I don't have specific experience with that, but here's a related example..."

Answer:`

// fallbackPrompt is used when retrieval found nothing relevant enough.
const fallbackPrompt = `You are helping during a job interview. The candidate doesn't have specific documented experience for this question.

Interview Question: "%s"

Provide a brief, professional response acknowledging the gap while demonstrating willingness to learn. Keep it to 1-2 sentences.

Answer:`

// stopSequences halt generation before the model rambles into a follow-up
// question of its own invention.
var stopSequences = []string{"\n\n", "Question:", "Interview Question:"}

// buildPrompt selects and fills the prompt for a question. The second return
// reports whether the context block was included.
func buildPrompt(question string, results []vectorstore.Result) (string, bool) {
	if hasUsefulContext(results) {
		return fmt.Sprintf(promptTemplate, formatContext(results), question), true
	}
	return fmt.Sprintf(fallbackPrompt, question), false
}

// hasUsefulContext reports whether the best passage clears the similarity
// threshold.
func hasUsefulContext(results []vectorstore.Result) bool {
	return len(results) > 0 && results[0].Similarity() > contextThreshold
}

// formatContext renders passages as a numbered, source-tagged list. Duplicate
// texts (the same chunk retrieved twice) are collapsed.
func formatContext(results []vectorstore.Result) string {
	if len(results) == 0 {
		return "No relevant context found in documents."
	}

	seen := make(map[string]struct{}, len(results))
	var lines []string
	for _, r := range results {
		text := strings.TrimSpace(r.Passage.Text)
		if _, dup := seen[r.Passage.Text]; dup {
			continue
		}
		seen[r.Passage.Text] = struct{}{}
		source := r.Passage.Source
		if source == "" {
			source = "Unknown"
		}
		lines = append(lines, fmt.Sprintf("%d. [%s] %s", len(lines)+1, source, text))
	}
	return strings.Join(lines, "\n\n")
}

// sourceList returns the unique sources across the retrieved passages, in
// first-seen order.
func sourceList(results []vectorstore.Result) []string {
	seen := make(map[string]struct{}, len(results))
	var sources []string
	for _, r := range results {
		source := r.Passage.Source
		if source == "" {
			source = "Unknown"
		}
		if _, dup := seen[source]; dup {
			continue
		}
		seen[source] = struct{}{}
		sources = append(sources, source)
	}
	return sources
}
