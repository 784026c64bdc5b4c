package whisper

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sotto-ai/sotto/pkg/provider/stt"
)

func TestNewRequiresServerURL(t *testing.T) {
	t.Parallel()
	if _, err := New(""); err == nil {
		t.Error("New(\"\") should return an error")
	}
}

func TestTranscribe(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/inference" {
			t.Errorf("path = %q, want /inference", r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Fatalf("parsing multipart form: %v", err)
		}
		if got := r.FormValue("language"); got != "en" {
			t.Errorf("language field = %q, want en", got)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("reading file field: %v", err)
		}
		defer file.Close()
		if header.Filename != "audio.wav" {
			t.Errorf("filename = %q, want audio.wav", header.Filename)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text": "  Tell me about your experience.  "}`))
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	res, err := p.Transcribe(context.Background(), stt.Request{
		Samples:    make([]float32, 1600),
		SampleRate: 16000,
		Language:   "en",
	})
	if err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}
	if res.Text != "Tell me about your experience." {
		t.Errorf("Text = %q, want trimmed transcription", res.Text)
	}
}

func TestTranscribeEmptyWindow(t *testing.T) {
	t.Parallel()

	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	res, err := p.Transcribe(context.Background(), stt.Request{})
	if err != nil {
		t.Fatalf("Transcribe() error: %v", err)
	}
	if res.Text != "" {
		t.Errorf("Text = %q, want empty", res.Text)
	}
	if calls.Load() != 0 {
		t.Error("empty window should not hit the server")
	}
}

func TestTranscribeServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusInternalServerError)
	}))
	defer srv.Close()

	p, err := New(srv.URL)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if _, err := p.Transcribe(context.Background(), stt.Request{
		Samples:    make([]float32, 16),
		SampleRate: 16000,
	}); err == nil {
		t.Error("Transcribe() should fail on HTTP 500")
	}
}
