package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/metric/noop"

	"github.com/sotto-ai/sotto/internal/config"
	"github.com/sotto-ai/sotto/internal/observe"
	audiomock "github.com/sotto-ai/sotto/pkg/audio/mock"
	embedmock "github.com/sotto-ai/sotto/pkg/provider/embeddings/mock"
	sttmock "github.com/sotto-ai/sotto/pkg/provider/stt/mock"
	textgenmock "github.com/sotto-ai/sotto/pkg/provider/textgen/mock"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	docs := t.TempDir()
	if err := os.WriteFile(filepath.Join(docs, "resume.md"), []byte("Led a team of five engineers."), 0o644); err != nil {
		t.Fatalf("writing test document: %v", err)
	}

	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Server.ListenAddr = ":0"
	cfg.Documents.Dir = docs
	cfg.Store.EmbeddingDimensions = 3
	return cfg
}

func testProviders() *Providers {
	return &Providers{
		Audio: &audiomock.Source{Rate: 100, KeepOpen: true},
		STT:   &sttmock.Provider{},
		Embeddings: &embedmock.Provider{
			EmbedFunc: func(string) []float32 { return []float32{1, 0, 0} },
		},
		TextGen: &textgenmock.Provider{GenerateResult: "A fine answer."},
	}
}

func testAppMetrics(t *testing.T) *observe.Metrics {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}
	return m
}

func TestNewIndexesDocuments(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, testProviders(), WithMetrics(testAppMetrics(t)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Shutdown(context.Background())

	n, err := a.store.Count(context.Background())
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 1 {
		t.Errorf("indexed passages = %d, want 1", n)
	}
}

func TestNewRequiresProviders(t *testing.T) {
	t.Parallel()

	p := testProviders()
	p.TextGen = nil

	_, err := New(context.Background(), testConfig(t), p)
	if err == nil {
		t.Fatal("New() = nil error, want missing-provider error")
	}
}

func TestSessionAPI(t *testing.T) {
	cfg := testConfig(t)
	a, err := New(context.Background(), cfg, testProviders(), WithMetrics(testAppMetrics(t)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Shutdown(context.Background())

	handler := a.server.Handler

	do := func(method, path string) *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
		return rec
	}

	// Idle status.
	rec := do(http.MethodGet, "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("status code = %d", rec.Code)
	}
	var st struct {
		Active bool `json:"active"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&st); err != nil {
		t.Fatalf("decode status: %v", err)
	}
	if st.Active {
		t.Error("active = true before session start")
	}

	// Start, double-start, stop.
	if rec := do(http.MethodPost, "/api/session/start"); rec.Code != http.StatusOK {
		t.Fatalf("start code = %d, body %s", rec.Code, rec.Body)
	}
	if rec := do(http.MethodPost, "/api/session/start"); rec.Code != http.StatusConflict {
		t.Errorf("double start code = %d, want 409", rec.Code)
	}
	if rec := do(http.MethodPost, "/api/session/stop"); rec.Code != http.StatusOK {
		t.Errorf("stop code = %d", rec.Code)
	}
	if rec := do(http.MethodPost, "/api/session/stop"); rec.Code != http.StatusConflict {
		t.Errorf("double stop code = %d, want 409", rec.Code)
	}

	// Prerequisite report.
	rec = do(http.MethodGet, "/api/prerequisites")
	if rec.Code != http.StatusOK {
		t.Fatalf("prerequisites code = %d", rec.Code)
	}
	var rep struct {
		Ready  bool     `json:"ready"`
		Issues []string `json:"issues"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode prerequisites: %v", err)
	}
	if !rep.Ready || len(rep.Issues) != 0 {
		t.Errorf("prerequisites = %+v, want ready", rep)
	}

	// Liveness and readiness.
	if rec := do(http.MethodGet, "/healthz"); rec.Code != http.StatusOK {
		t.Errorf("healthz code = %d", rec.Code)
	}
	if rec := do(http.MethodGet, "/readyz"); rec.Code != http.StatusOK {
		t.Errorf("readyz code = %d, body %s", rec.Code, rec.Body)
	}
}

func TestStartCollectsAudioPrerequisite(t *testing.T) {
	cfg := testConfig(t)
	p := testProviders()
	p.Audio = &audiomock.Source{Rate: 100, AvailableErr: errors.New("no capture device")}

	a, err := New(context.Background(), cfg, p, WithMetrics(testAppMetrics(t)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Shutdown(context.Background())

	rec := httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/session/start", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("start code = %d, want 503", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "no capture device") {
		t.Errorf("start error %q does not mention the audio source", rec.Body)
	}

	rec = httptest.NewRecorder()
	a.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/prerequisites", nil))
	var rep struct {
		Ready  bool     `json:"ready"`
		Issues []string `json:"issues"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&rep); err != nil {
		t.Fatalf("decode prerequisites: %v", err)
	}
	if rep.Ready || len(rep.Issues) != 1 || !strings.Contains(rep.Issues[0], "audio") {
		t.Errorf("prerequisites = %+v, want a single audio issue", rep)
	}
}

func TestRunFailsWithoutDocuments(t *testing.T) {
	cfg := testConfig(t)
	cfg.Documents.Dir = "" // nothing indexed, DocumentsIndexed prerequisite fails
	cfg.Server.ListenAddr = ""

	a, err := New(context.Background(), cfg, testProviders(), WithMetrics(testAppMetrics(t)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Shutdown(context.Background())

	// With no HTTP surface there is no way to retry, so the refusal is fatal.
	if err := a.Run(context.Background()); err == nil {
		t.Fatal("Run() = nil, want prerequisite error")
	}
}

func TestRunKeepsServingWhenAutoStartRefused(t *testing.T) {
	cfg := testConfig(t)
	cfg.Documents.Dir = "" // DocumentsIndexed prerequisite fails
	cfg.Server.ListenAddr = "127.0.0.1:0"

	a, err := New(context.Background(), cfg, testProviders(), WithMetrics(testAppMetrics(t)))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	// The refused auto-start must not abort Run; it exits on the cancelled
	// context instead.
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run() = %v, want context.Canceled", err)
	}
	if a.copilot.Status().Active {
		t.Error("session active despite failed prerequisites")
	}
}
