package ollama_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sotto-ai/sotto/pkg/provider/textgen"
	"github.com/sotto-ai/sotto/pkg/provider/textgen/ollama"
)

// decodedRequest mirrors the JSON body the provider sends to /api/generate.
type decodedRequest struct {
	Model   string `json:"model"`
	Prompt  string `json:"prompt"`
	Stream  bool   `json:"stream"`
	Options struct {
		Temperature float64  `json:"temperature"`
		NumPredict  int      `json:"num_predict"`
		Stop        []string `json:"stop"`
	} `json:"options"`
}

func TestNewRequiresModel(t *testing.T) {
	t.Parallel()
	if _, err := ollama.New("", ""); err == nil {
		t.Error("New with empty model should return an error")
	}
}

func TestGenerate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %q, want /api/generate", r.URL.Path)
		}
		var req decodedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "llama3.2:3b" {
			t.Errorf("model = %q, want llama3.2:3b", req.Model)
		}
		if req.Stream {
			t.Error("stream should be false for Generate")
		}
		if req.Options.Temperature != 0.7 {
			t.Errorf("temperature = %v, want 0.7", req.Options.Temperature)
		}
		if req.Options.NumPredict != 250 {
			t.Errorf("num_predict = %d, want 250", req.Options.NumPredict)
		}
		if len(req.Options.Stop) != 2 {
			t.Errorf("stop = %v, want 2 sequences", req.Options.Stop)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"response": "I led the migration project.",
			"done":     true,
		})
	}))
	defer srv.Close()

	p, err := ollama.New(srv.URL, "llama3.2:3b")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	got, err := p.Generate(context.Background(), "Tell me about a project.", textgen.Options{
		Temperature: 0.7,
		MaxTokens:   250,
		Stop:        []string{"\n\n", "Question:"},
	})
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	if got != "I led the migration project." {
		t.Errorf("Generate() = %q", got)
	}
}

func TestGenerateServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"error": "model not found"})
	}))
	defer srv.Close()

	p, err := ollama.New(srv.URL, "missing")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := p.Generate(context.Background(), "prompt", textgen.Options{}); err == nil {
		t.Error("Generate() should surface the server error")
	}
}

func TestGenerateStream(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req decodedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if !req.Stream {
			t.Error("stream should be true for GenerateStream")
		}
		for _, word := range []string{"I ", "used ", "the ", "STAR ", "method."} {
			fmt.Fprintf(w, `{"response": %q, "done": false}`+"\n", word)
		}
		fmt.Fprintln(w, `{"response": "", "done": true}`)
	}))
	defer srv.Close()

	p, err := ollama.New(srv.URL, "llama3.2:3b")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ch, err := p.GenerateStream(context.Background(), "prompt", textgen.Options{})
	if err != nil {
		t.Fatalf("GenerateStream() error: %v", err)
	}

	var sb strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			t.Fatalf("stream error: %v", chunk.Err)
		}
		sb.WriteString(chunk.Text)
	}
	if got := sb.String(); got != "I used the STAR method." {
		t.Errorf("streamed text = %q", got)
	}
}

func TestGenerateStreamMidStreamError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response": "partial ", "done": false}`)
		fmt.Fprintln(w, `{"error": "out of memory"}`)
	}))
	defer srv.Close()

	p, err := ollama.New(srv.URL, "llama3.2:3b")
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	ch, err := p.GenerateStream(context.Background(), "prompt", textgen.Options{})
	if err != nil {
		t.Fatalf("GenerateStream() error: %v", err)
	}

	var streamErr error
	var text strings.Builder
	for chunk := range ch {
		if chunk.Err != nil {
			streamErr = chunk.Err
			continue
		}
		text.WriteString(chunk.Text)
	}
	if streamErr == nil {
		t.Error("expected a mid-stream error chunk")
	}
	if text.String() != "partial " {
		t.Errorf("text before error = %q, want %q", text.String(), "partial ")
	}
}
