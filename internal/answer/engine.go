// Package answer turns a detected interview question into a displayable
// suggestion: it retrieves supporting passages, builds the prompt, runs text
// generation, and scores the result's confidence.
//
// Generation failures never propagate as errors to the caller's display
// path; the engine degrades to an apologetic canned answer with zero
// confidence so the overlay always shows something.
package answer

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/sotto-ai/sotto/pkg/provider/textgen"
	"github.com/sotto-ai/sotto/pkg/vectorstore"
)

const (
	// DefaultTemperature is the generation temperature.
	DefaultTemperature = 0.7

	// DefaultMaxTokens caps answer length. 250 tokens is roughly the spoken
	// 60-90 seconds the prompt asks for.
	DefaultMaxTokens = 250
)

// errorAnswer is shown when generation fails outright.
const errorAnswer = "I apologize, but I'm having trouble generating a response right now. " +
	"Could you please rephrase the question?"

// streamErrorAnswer is the shorter variant forwarded to streaming consumers.
const streamErrorAnswer = "I apologize, but I'm having trouble generating a response right now."

// Retriever supplies the passages relevant to a question. Implemented by
// internal/retrieval.Engine.
type Retriever interface {
	Retrieve(ctx context.Context, question string) ([]vectorstore.Result, error)
}

// Answer is one generated suggestion with its metadata.
type Answer struct {
	// Question is the interview question that was answered.
	Question string

	// Text is the generated answer.
	Text string

	// Confidence is the heuristic confidence score in [0, 1].
	Confidence float64

	// Sources lists the unique knowledge-base sources that were retrieved.
	Sources []string

	// ContextUsed reports whether the grounded prompt was used (true) or the
	// fallback prompt (false).
	ContextUsed bool

	// GenerationTime is how long retrieval plus generation took.
	GenerationTime time.Duration

	// Err records the generation failure behind a canned answer, if any.
	Err error
}

// Engine generates answers. It is safe for concurrent use.
type Engine struct {
	retriever   Retriever
	generator   textgen.Provider
	logger      *slog.Logger
	temperature float64
	maxTokens   int
	now         func() time.Time
}

// Option is a functional option for Engine.
type Option func(*Engine)

// WithTemperature overrides DefaultTemperature.
func WithTemperature(t float64) Option {
	return func(e *Engine) {
		if t > 0 {
			e.temperature = t
		}
	}
}

// WithMaxTokens overrides DefaultMaxTokens.
func WithMaxTokens(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxTokens = n
		}
	}
}

// WithLogger sets the logger used for generation progress and failures.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Engine over the given retriever and generator.
func New(retriever Retriever, generator textgen.Provider, opts ...Option) *Engine {
	e := &Engine{
		retriever:   retriever,
		generator:   generator,
		logger:      slog.Default(),
		temperature: DefaultTemperature,
		maxTokens:   DefaultMaxTokens,
		now:         time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Generate produces an answer for the question. Retrieval failures degrade
// to the fallback prompt; generation failures degrade to a canned answer
// with the cause recorded in Answer.Err.
func (e *Engine) Generate(ctx context.Context, question string) Answer {
	start := e.now()

	results := e.retrieve(ctx, question)
	prompt, contextUsed := buildPrompt(question, results)

	text, err := e.generator.Generate(ctx, prompt, e.options())
	if err != nil {
		e.logger.Error("answer generation failed", "question", question, "error", err)
		return Answer{
			Question:       question,
			Text:           errorAnswer,
			Confidence:     0,
			Sources:        []string{},
			GenerationTime: e.now().Sub(start),
			Err:            err,
		}
	}
	text = strings.TrimSpace(text)

	a := Answer{
		Question:       question,
		Text:           text,
		Confidence:     confidenceScore(text, results),
		Sources:        sourceList(results),
		ContextUsed:    contextUsed,
		GenerationTime: e.now().Sub(start),
	}
	e.logger.Info("generated answer",
		"question", question,
		"confidence", a.Confidence,
		"sources", len(a.Sources),
		"duration", a.GenerationTime)
	return a
}

// GenerateStream produces an answer while forwarding each text fragment to
// onToken as it arrives. The returned Answer carries the full text. A
// mid-stream failure forwards the canned apology to onToken and records the
// cause in Answer.Err.
func (e *Engine) GenerateStream(ctx context.Context, question string, onToken func(string)) Answer {
	start := e.now()

	results := e.retrieve(ctx, question)
	prompt, contextUsed := buildPrompt(question, results)

	chunks, err := e.generator.GenerateStream(ctx, prompt, e.options())
	if err != nil {
		e.logger.Error("answer stream failed to start", "question", question, "error", err)
		onToken(streamErrorAnswer)
		return Answer{
			Question:       question,
			Text:           streamErrorAnswer,
			Confidence:     0,
			Sources:        []string{},
			GenerationTime: e.now().Sub(start),
			Err:            err,
		}
	}

	var full strings.Builder
	var streamErr error
	for chunk := range chunks {
		if chunk.Err != nil {
			streamErr = chunk.Err
			break
		}
		full.WriteString(chunk.Text)
		onToken(chunk.Text)
	}
	if streamErr != nil {
		e.logger.Error("answer stream failed", "question", question, "error", streamErr)
		onToken(streamErrorAnswer)
		return Answer{
			Question:       question,
			Text:           streamErrorAnswer,
			Confidence:     0,
			Sources:        []string{},
			GenerationTime: e.now().Sub(start),
			Err:            streamErr,
		}
	}

	text := strings.TrimSpace(full.String())
	a := Answer{
		Question:       question,
		Text:           text,
		Confidence:     confidenceScore(text, results),
		Sources:        sourceList(results),
		ContextUsed:    contextUsed,
		GenerationTime: e.now().Sub(start),
	}
	e.logger.Info("streamed answer",
		"question", question,
		"confidence", a.Confidence,
		"duration", a.GenerationTime)
	return a
}

// retrieve fetches passages, degrading to none on failure.
func (e *Engine) retrieve(ctx context.Context, question string) []vectorstore.Result {
	results, err := e.retriever.Retrieve(ctx, question)
	if err != nil {
		e.logger.Warn("context retrieval failed, answering without context", "error", err)
		return nil
	}
	return results
}

func (e *Engine) options() textgen.Options {
	return textgen.Options{
		Temperature: e.temperature,
		MaxTokens:   e.maxTokens,
		Stop:        stopSequences,
	}
}
